// Package typeir implements the Type Arena & Identifier Registry (spec §4.1,
// C1): it interns Types by identity, vends stable opaque TypeId handles, and
// allows those handles to be mutated in place to record inference progress.
package typeir

import (
	"fmt"

	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/intern"
)

// TypeId is an opaque, stable handle to a slot in the arena (spec §3). It is
// never invalidated: arena entries are append-only, and mutation only
// replaces a slot's Kind, never its span (spec Invariant 1).
type TypeId int

// TraitId identifies a trait declaration; owned by whatever built the item
// tree (spec §3 TraitRestriction.trait_id). Opaque from C1's point of view.
type TraitId int

// TraitRestriction is a single trait-satisfaction requirement attached to a
// type variable (spec §3).
type TraitRestriction struct {
	TraitID TraitId
	Args    []TypeId
	Span    diagnostics.Span
}

// SameTrait reports whether r and other are structurally equal (same trait id,
// same arity) — used by the Generic/Generic unification rule (spec §4.4)
// which compares restriction sets by trait id and pairwise unifying args,
// not by deep arg equality (that's the unifier's job).
func (r TraitRestriction) SameTrait(other TraitRestriction) bool {
	return r.TraitID == other.TraitID && len(r.Args) == len(other.Args)
}

// Kind is the tag of a Type's shape (spec §3 Type.kind). It is a closed set
// — never add a case without updating every switch in unify/traitres/hir.
type Kind interface {
	isKind()
	String() string
}

// KUnknown is an as-yet-unconstrained type variable.
type KUnknown struct{}

func (KUnknown) isKind()        {}
func (KUnknown) String() string { return "?" }

// KNever is the bottom type (a diverging expression's type).
type KNever struct{}

func (KNever) isKind()        {}
func (KNever) String() string { return "!" }

// KInt is an unresolved integer literal.
type KInt struct{}

func (KInt) isKind()        {}
func (KInt) String() string { return "{int}" }

// KFloat is an unresolved float literal.
type KFloat struct{}

func (KFloat) isKind()        {}
func (KFloat) String() string { return "{float}" }

// KRef is a unification link: the type at this id has been decided to be
// whatever Target denotes. Resolving a TypeId follows KRef chains
// transparently (spec Invariant 2: following Ref links terminates).
type KRef struct{ Target TypeId }

func (KRef) isKind()          {}
func (k KRef) String() string { return fmt.Sprintf("->%d", int(k.Target)) }

// KGeneric is a named generic type parameter carrying its where-clause
// restrictions (spec §3).
type KGeneric struct {
	Name         intern.Word
	Restrictions []TraitRestriction
}

func (KGeneric) isKind()        {}
func (k KGeneric) String() string { return "generic" }

// KThisPath is a path whose first segment is `This`, resolved against the
// active ThisCtx inside a trait or apply block (spec §3, §4.2).
type KThisPath struct {
	Segments []intern.Word
}

func (KThisPath) isKind()        {}
func (k KThisPath) String() string { return "This..." }

// ConcreteKind is the shape of a fully concrete (non-variable) type
// (spec §3).
type ConcreteKind interface {
	isConcreteKind()
	String() string
}

// CPath is a nominal type path with optional generic arguments, e.g.
// `List<Int>` or `u32`. Args are TypeIds so unification can walk into them.
// AliasOf is set when the path resolved to a `type X = ...` declaration
// (supplemented feature, absent from spec.md's type model): it names the
// TypeId the alias expands to, which the unifier consults before failing a
// segment mismatch rather than as a change to segment identity itself.
type CPath struct {
	Segments []intern.Word
	Args     []TypeId
	AliasOf  *TypeId
}

func (CPath) isConcreteKind()   {}
func (c CPath) String() string { return "path" }

// CPtr is a pointer-to type, e.g. `*Node`.
type CPtr struct{ Elem TypeId }

func (CPtr) isConcreteKind()   {}
func (CPtr) String() string { return "ptr" }

// CArray is a fixed-size array type, e.g. `[Int; 4]`.
type CArray struct {
	Elem TypeId
	Len  uint64
}

func (CArray) isConcreteKind()   {}
func (CArray) String() string { return "array" }

// CTuple is a tuple type, e.g. `(Int, Bool)`.
type CTuple struct{ Elems []TypeId }

func (CTuple) isConcreteKind()   {}
func (CTuple) String() string { return "tuple" }

// KConcrete wraps a ConcreteKind as a Kind (spec §3: Concrete(ConcreteKind)).
type KConcrete struct{ Concrete ConcreteKind }

func (KConcrete) isKind()          {}
func (k KConcrete) String() string { return k.Concrete.String() }

// Type is one arena entry: a Kind tagged with the restrictions accumulated
// on it (used for generic parameters and as an inference residue) and its
// originating span (spec §3).
type Type struct {
	Kind         Kind
	Restrictions []TraitRestriction
	Span         diagnostics.Span
}

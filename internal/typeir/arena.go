package typeir

import (
	"github.com/flux-lang/flux-core/internal/config"
	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/intern"
)

// Arena is the append-only type store (spec §4.1). It grows monotonically
// during the lowering of a package (spec §3 Lifecycles) and is shared by
// every function body lowered within that package.
type Arena struct {
	entries []Type
	session config.Session
}

// NewArena returns an empty Arena configured with session's defaulting
// rules (spec §9 Open Question 2).
func NewArena(session config.Session) *Arena {
	return &Arena{session: session}
}

// Session returns the session tunables this arena was configured with
// (spec §9 Open Question 2), for callers (traitres) that need the
// canonical integer/float path lists.
func (a *Arena) Session() config.Session { return a.session }

// Len returns the number of entries currently in the arena — used by
// snapshot/rollback in traitres (spec §4.5) since the arena only ever grows
// or mutates existing slots in place, never shrinks.
func (a *Arena) Len() int { return len(a.entries) }

// Snapshot is an opaque save point for speculative unification (spec §4.3
// candidates_for, §4.5 step 3: "in a snapshotted arena view"). It captures
// every entry that exists at the time of the snapshot so Restore can undo
// both new insertions and in-place Ref/Kind mutations to pre-existing ones.
type Snapshot struct {
	entries []Type
}

// Snapshot captures the arena's current state.
func (a *Arena) Snapshot() Snapshot {
	saved := make([]Type, len(a.entries))
	copy(saved, a.entries)
	return Snapshot{entries: saved}
}

// Restore reverts the arena to s, discarding any entries inserted and
// undoing any mutations made since the snapshot was taken.
func (a *Arena) Restore(s Snapshot) {
	a.entries = a.entries[:0]
	a.entries = append(a.entries, s.entries...)
}

// Insert appends a new Type and returns its fresh TypeId (spec §4.1).
func (a *Arena) Insert(kind Kind, span diagnostics.Span) TypeId {
	id := TypeId(len(a.entries))
	a.entries = append(a.entries, Type{Kind: kind, Span: span})
	return id
}

// InsertWithRestrictions is Insert plus an initial restriction set, for
// generic parameters materialized with their where-clause bounds attached.
func (a *Arena) InsertWithRestrictions(kind Kind, restrictions []TraitRestriction, span diagnostics.Span) TypeId {
	id := a.Insert(kind, span)
	a.entries[id].Restrictions = restrictions
	return id
}

// mustGet is the internal accessor; an out-of-bounds id is an
// internal-compiler-error (spec Invariant 1, spec §7: panics only on
// invariant violations).
func (a *Arena) mustGet(id TypeId) *Type {
	if int(id) < 0 || int(id) >= len(a.entries) {
		panic("typeir: TypeId out of bounds — internal compiler error")
	}
	return &a.entries[id]
}

// Get returns the Type stored at id (spec §4.1).
func (a *Arena) Get(id TypeId) Type {
	return *a.mustGet(id)
}

// GetSpan returns id's originating span (spec §4.1). Span never changes
// after insertion (spec Invariant 1).
func (a *Arena) GetSpan(id TypeId) diagnostics.Span {
	return a.mustGet(id).Span
}

// GetKind returns id's current Kind, without following Ref chains.
func (a *Arena) GetKind(id TypeId) Kind {
	return a.mustGet(id).Kind
}

// GetRestrictions returns id's accumulated trait restrictions.
func (a *Arena) GetRestrictions(id TypeId) []TraitRestriction {
	return a.mustGet(id).Restrictions
}

// AddRestriction appends r to id's restriction set in place.
func (a *Arena) AddRestriction(id TypeId, r TraitRestriction) {
	e := a.mustGet(id)
	e.Restrictions = append(e.Restrictions, r)
}

// SetKind replaces id's Kind in place, preserving span (spec §4.1 set_with,
// Invariant 1: mutation never touches span).
func (a *Arena) SetKind(id TypeId, kind Kind) {
	a.mustGet(id).Kind = kind
}

// SetWith applies a mutator function to id's current Type, replacing its
// Kind with the result's Kind and leaving span untouched (spec §4.1).
func (a *Arena) SetWith(id TypeId, mutate func(Type) Type) {
	e := a.mustGet(id)
	next := mutate(*e)
	e.Kind = next.Kind
	e.Restrictions = next.Restrictions
}

// BindRef points src at target in place — this is how the unifier "decides"
// an Unknown became another type (spec §4.4: `Unknown` | any → set LHS to
// Ref(RHS)). It must only be called when target is strictly different from
// src (spec Invariant 2).
func (a *Arena) BindRef(src TypeId, target TypeId) {
	if src == target {
		panic("typeir: attempted to make a Ref point at itself — internal compiler error")
	}
	a.SetKind(src, KRef{Target: target})
}

// NewRef inserts a fresh TypeId whose kind is Ref(target) at span — the
// make_ref(src, span) helper (spec §4.2), used e.g. to give an arithmetic
// expression's result type its own id that just happens to alias its LHS
// operand (spec §4.7.1 binary arithmetic rule).
func (a *Arena) NewRef(target TypeId, span diagnostics.Span) TypeId {
	return a.Insert(KRef{Target: target}, span)
}

// resolveChain follows KRef links starting at id, returning the terminal id
// and its Kind. It is bounded by arena length: an arena that is truly
// acyclic (Invariant 2: Ref is only set when target is strictly different
// from source) always terminates within a.Len() steps (Testable Property 1).
func (a *Arena) resolveChain(id TypeId) (TypeId, Kind) {
	seen := 0
	for {
		k := a.mustGet(id).Kind
		ref, ok := k.(KRef)
		if !ok {
			return id, k
		}
		id = ref.Target
		seen++
		if seen > len(a.entries) {
			panic("typeir: Ref chain does not terminate — internal compiler error")
		}
	}
}

// Terminal follows id's Ref chain and returns the terminal TypeId (spec
// §4.1 resolve, without the integer/float defaulting or Unknown diagnostic
// — used internally by the unifier and trait resolver which want the
// terminal id itself, not a resolved Kind value).
func (a *Arena) Terminal(id TypeId) TypeId {
	t, _ := a.resolveChain(id)
	return t
}

// Resolve follows id's Ref chain (spec §4.1): if the terminal Kind is
// KUnknown, it returns a CouldNotInfer diagnostic; if it is KInt with no
// refinement, it defaults to the session's canonical integer path and
// commits that binding by pointing the terminal id at a fresh concrete
// path; KFloat defaults symmetrically. Resolve is total except for the
// Unknown case.
func (a *Arena) Resolve(id TypeId, words *intern.Interner) (Kind, *diagnostics.Diagnostic) {
	terminal, kind := a.resolveChain(id)
	switch kind.(type) {
	case KUnknown:
		return kind, diagnostics.New(diagnostics.CodeCouldNotInfer, a.GetSpan(terminal),
			"could not infer this type")
	case KInt:
		resolved := a.defaultPath(terminal, a.session.IntDefault, words)
		return resolved, nil
	case KFloat:
		resolved := a.defaultPath(terminal, a.session.FloatDefault, words)
		return resolved, nil
	}
	return kind, nil
}

// defaultPath inserts a fresh concrete path named name, points terminal's
// Ref at it, and returns the new Kind — the commit side of integer/float
// defaulting.
func (a *Arena) defaultPath(terminal TypeId, name string, words *intern.Interner) Kind {
	path := CPath{Segments: []intern.Word{words.GetOrInternStatic(name)}}
	fresh := a.Insert(KConcrete{Concrete: path}, a.GetSpan(terminal))
	a.BindRef(terminal, fresh)
	return KConcrete{Concrete: path}
}

// Import copies the type id names in src into a, recursively, and returns
// the equivalent fresh local TypeId. A TypeId is only a valid index into
// the arena that minted it (spec §4.1) — a per-package arena (internal/driver
// builds one fresh Arena per compiled package) means a dependency's
// function signature or an apply block's implementor type has to be copied
// across the arena boundary before this package's unifier can compare it
// against its own ids; reusing the foreign int directly would silently
// address the wrong slot, or panic once the two arenas' lengths diverge.
func (a *Arena) Import(src *Arena, id TypeId) TypeId {
	return a.importWithCache(src, id, make(map[TypeId]TypeId))
}

func (a *Arena) importWithCache(src *Arena, id TypeId, cache map[TypeId]TypeId) TypeId {
	terminal, kind := src.resolveChain(id)
	if local, ok := cache[terminal]; ok {
		return local
	}
	// Reserve the slot before recursing so a cyclic reference (a generic's
	// own restriction referring back to itself, say) finds an entry in the
	// cache instead of recursing forever; the placeholder Kind is
	// overwritten below once the real one is known.
	local := a.Insert(KUnknown{}, src.GetSpan(terminal))
	cache[terminal] = local

	switch k := kind.(type) {
	case KConcrete:
		a.SetKind(local, KConcrete{Concrete: a.importConcrete(src, k.Concrete, cache)})
	case KGeneric:
		a.SetKind(local, KGeneric{Name: k.Name, Restrictions: a.importRestrictions(src, k.Restrictions, cache)})
	default:
		// KUnknown, KNever, KInt, KFloat, KThisPath carry no TypeId payload.
		a.SetKind(local, k)
	}
	for _, r := range src.GetRestrictions(terminal) {
		a.AddRestriction(local, a.importRestriction(src, r, cache))
	}
	return local
}

func (a *Arena) importConcrete(src *Arena, c ConcreteKind, cache map[TypeId]TypeId) ConcreteKind {
	switch v := c.(type) {
	case CPath:
		args := make([]TypeId, len(v.Args))
		for i, arg := range v.Args {
			args[i] = a.importWithCache(src, arg, cache)
		}
		var aliasOf *TypeId
		if v.AliasOf != nil {
			imported := a.importWithCache(src, *v.AliasOf, cache)
			aliasOf = &imported
		}
		return CPath{Segments: v.Segments, Args: args, AliasOf: aliasOf}
	case CPtr:
		return CPtr{Elem: a.importWithCache(src, v.Elem, cache)}
	case CArray:
		return CArray{Elem: a.importWithCache(src, v.Elem, cache), Len: v.Len}
	case CTuple:
		elems := make([]TypeId, len(v.Elems))
		for i, e := range v.Elems {
			elems[i] = a.importWithCache(src, e, cache)
		}
		return CTuple{Elems: elems}
	default:
		return c
	}
}

func (a *Arena) importRestrictions(src *Arena, rs []TraitRestriction, cache map[TypeId]TypeId) []TraitRestriction {
	out := make([]TraitRestriction, len(rs))
	for i, r := range rs {
		out[i] = a.importRestriction(src, r, cache)
	}
	return out
}

func (a *Arena) importRestriction(src *Arena, r TraitRestriction, cache map[TypeId]TypeId) TraitRestriction {
	args := make([]TypeId, len(r.Args))
	for i, arg := range r.Args {
		args[i] = a.importWithCache(src, arg, cache)
	}
	return TraitRestriction{TraitID: r.TraitID, Args: args, Span: r.Span}
}

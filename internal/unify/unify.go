// Package unify implements the Unifier (spec §4.4, C4): it equates two
// TypeIds by mutating the shared arena in place (setting Unknowns to Refs,
// descending into concrete type arguments pairwise) rather than returning a
// substitution, unlike the teacher's Hindley-Milner Unify which builds and
// composes a Subst map. The case dispatch below still follows the teacher's
// shape: a type-switch per LHS/RHS pair, symmetric handling via a generic
// swap, and a co-inductive cycle guard for the rare case a unification job
// revisits the same pair.
package unify

import (
	"fmt"

	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/intern"
	"github.com/flux-lang/flux-core/internal/tenv"
	"github.com/flux-lang/flux-core/internal/typeir"
)

// TraitChecker is the subset of the trait resolver (C5) the unifier needs
// to satisfy Generic-vs-concrete restrictions (spec §4.4 row 10/11). It is
// an interface rather than a direct import of internal/traitres to avoid a
// C4/C5 import cycle: C5 itself calls into C4 to unify candidate
// implementors.
type TraitChecker interface {
	TypeImplementsTrait(env *tenv.TEnv, tid typeir.TypeId, restriction typeir.TraitRestriction) (bool, *diagnostics.Diagnostic)
}

// Unifier equates TypeIds under the shared arena held by a TEnv.
type Unifier struct {
	env    *tenv.TEnv
	words  *intern.Interner
	traits TraitChecker
}

// New builds a Unifier over env, using words to render mismatched types in
// diagnostics and traits to discharge Generic restriction checks.
func New(env *tenv.TEnv, words *intern.Interner, traits TraitChecker) *Unifier {
	return &Unifier{env: env, words: words, traits: traits}
}

// SetEnv retargets the unifier at env. A Unifier is built once per package
// and shared across every function/apply-method body (internal/hir.Lowerer
// holds one for its whole lifetime), but each body gets its own fresh TEnv
// (spec §4.7 Pass 2 step 1) carrying that body's ThisCtx and obligation
// queue — SetEnv is how the Lowerer points the shared unifier at whichever
// body's TEnv is currently being lowered, so ThisPath resolution and any
// restriction a TraitChecker call queues land on the right body.
func (u *Unifier) SetEnv(env *tenv.TEnv) { u.env = env }

// pair is a co-induction guard entry: unifying the same (terminal,terminal)
// pair again within one call tree succeeds vacuously, mirroring the
// teacher's visited-pairs list in unifyInternal.
type pair struct{ a, b typeir.TypeId }

// Unify equates a and b, mutating the arena in place, and reports a
// TypeMismatch diagnostic (carrying both spans) on failure (spec §4.4).
func (u *Unifier) Unify(a, b typeir.TypeId, span diagnostics.Span) *diagnostics.Diagnostic {
	return u.unify(a, b, span, nil)
}

func (u *Unifier) unify(a, b typeir.TypeId, span diagnostics.Span, visited []pair) *diagnostics.Diagnostic {
	arena := u.env.Arena()
	ta, ka := arena.Terminal(a), arena.GetKind(arena.Terminal(a))
	tb, kb := arena.Terminal(b), arena.GetKind(arena.Terminal(b))

	if ta == tb {
		return nil
	}
	for _, p := range visited {
		if (p.a == ta && p.b == tb) || (p.a == tb && p.b == ta) {
			return nil
		}
	}
	visited = append(visited, pair{ta, tb})

	// Unknown unifies with anything by becoming a Ref to it (spec §4.4 row
	// 2); checked before the symmetric dispatch below so `Unknown`/`Unknown`
	// picks a stable direction (bind the left-hand side to the right-hand one).
	if _, ok := ka.(typeir.KUnknown); ok {
		arena.BindRef(ta, tb)
		return nil
	}
	if _, ok := kb.(typeir.KUnknown); ok {
		arena.BindRef(tb, ta)
		return nil
	}

	if d := u.unifyKinds(ta, ka, tb, kb, span, visited); d != nil {
		return d
	}
	return nil
}

// unifyKinds dispatches on the terminal kinds once both Ref and Unknown
// cases are out of the way. It tries (ka,kb) and, on no match, the swapped
// (kb,ka) so every row in spec §4.4's table only needs to be written once.
func (u *Unifier) unifyKinds(ta typeir.TypeId, ka typeir.Kind, tb typeir.TypeId, kb typeir.Kind, span diagnostics.Span, visited []pair) *diagnostics.Diagnostic {
	if d, matched := u.tryUnifyKinds(ta, ka, tb, kb, span, visited); matched {
		return d
	}
	if d, matched := u.tryUnifyKinds(tb, kb, ta, ka, span, visited); matched {
		return d
	}
	return u.mismatch(ta, ka, tb, kb, span)
}

// tryUnifyKinds attempts the rows of spec §4.4's table with ka in the LHS
// position. matched is false when no row's LHS shape applies, signaling the
// caller to retry with the pair swapped.
func (u *Unifier) tryUnifyKinds(ta typeir.TypeId, ka typeir.Kind, tb typeir.TypeId, kb typeir.Kind, span diagnostics.Span, visited []pair) (diag *diagnostics.Diagnostic, matched bool) {
	arena := u.env.Arena()

	switch a := ka.(type) {
	case typeir.KInt:
		switch b := kb.(type) {
		case typeir.KInt:
			return nil, true
		case typeir.KConcrete:
			if path, ok := b.Concrete.(typeir.CPath); ok && u.isIntegerPath(path) {
				arena.BindRef(ta, tb)
				return nil, true
			}
		}
		return nil, false

	case typeir.KFloat:
		switch b := kb.(type) {
		case typeir.KFloat:
			return nil, true
		case typeir.KConcrete:
			if path, ok := b.Concrete.(typeir.CPath); ok && u.isFloatPath(path) {
				arena.BindRef(ta, tb)
				return nil, true
			}
		}
		return nil, false

	case typeir.KConcrete:
		b, ok := kb.(typeir.KConcrete)
		if !ok {
			return nil, false
		}
		// A path naming a type alias unifies as whatever it expands to
		// (supplemented feature), not by its own segment identity.
		if ap, isPath := a.Concrete.(typeir.CPath); isPath && ap.AliasOf != nil {
			return u.unify(*ap.AliasOf, tb, span, visited), true
		}
		if bp, isPath := b.Concrete.(typeir.CPath); isPath && bp.AliasOf != nil {
			return u.unify(ta, *bp.AliasOf, span, visited), true
		}
		return u.unifyConcrete(a.Concrete, b.Concrete, span, visited), true

	case typeir.KGeneric:
		switch kb.(type) {
		case typeir.KGeneric:
			return u.unifyGenericGeneric(a, kb.(typeir.KGeneric), span), true
		default:
			return u.unifyGenericAgainst(ta, a, tb, span), true
		}

	case typeir.KThisPath:
		resolved, ok := u.resolveThisPath(a)
		if !ok {
			return diagnostics.New(diagnostics.CodeTypeMismatch, span,
				"This is not valid outside a trait declaration or apply block"), true
		}
		return u.unify(resolved, tb, span, visited), true
	}

	return nil, false
}

func (u *Unifier) isIntegerPath(p typeir.CPath) bool {
	return len(p.Segments) == 1 && u.env.Arena() != nil && isOneOf(u.words.Resolve(p.Segments[0]), integerNames)
}

func (u *Unifier) isFloatPath(p typeir.CPath) bool {
	return len(p.Segments) == 1 && isOneOf(u.words.Resolve(p.Segments[0]), floatNames)
}

var integerNames = []string{"u8", "u16", "u32", "u64", "s8", "s16", "s32", "s64"}
var floatNames = []string{"f32", "f64"}

func isOneOf(s string, set []string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// unifyConcrete handles the Concrete/Concrete rows (spec §4.4): Path
// requires identical segments then pairwise-unifies args (extra args on
// either side are left untouched rather than failing — a generic
// instantiation that only partially specifies arguments inherits the rest),
// Ptr/Array/Tuple each unify structurally.
func (u *Unifier) unifyConcrete(a, b typeir.ConcreteKind, span diagnostics.Span, visited []pair) *diagnostics.Diagnostic {
	switch av := a.(type) {
	case typeir.CPath:
		bv, ok := b.(typeir.CPath)
		if !ok || !sameSegments(av.Segments, bv.Segments) {
			return diagnostics.New(diagnostics.CodeTypeMismatch, span,
				fmt.Sprintf("type mismatch: %s vs %s", u.renderConcrete(a), u.renderConcrete(b)))
		}
		n := len(av.Args)
		if len(bv.Args) < n {
			n = len(bv.Args)
		}
		for i := 0; i < n; i++ {
			if d := u.unify(av.Args[i], bv.Args[i], span, visited); d != nil {
				return d
			}
		}
		return nil

	case typeir.CPtr:
		bv, ok := b.(typeir.CPtr)
		if !ok {
			return diagnostics.New(diagnostics.CodeTypeMismatch, span, "type mismatch: pointer vs non-pointer")
		}
		return u.unify(av.Elem, bv.Elem, span, visited)

	case typeir.CArray:
		bv, ok := b.(typeir.CArray)
		if !ok {
			return diagnostics.New(diagnostics.CodeTypeMismatch, span, "type mismatch: array vs non-array")
		}
		if av.Len != bv.Len {
			return diagnostics.New(diagnostics.CodeTypeMismatch, span,
				fmt.Sprintf("array length mismatch: %d vs %d", av.Len, bv.Len))
		}
		return u.unify(av.Elem, bv.Elem, span, visited)

	case typeir.CTuple:
		bv, ok := b.(typeir.CTuple)
		if !ok || len(av.Elems) != len(bv.Elems) {
			return diagnostics.New(diagnostics.CodeTypeMismatch, span, "type mismatch: tuple shape")
		}
		for i := range av.Elems {
			if d := u.unify(av.Elems[i], bv.Elems[i], span, visited); d != nil {
				return d
			}
		}
		return nil
	}
	return diagnostics.New(diagnostics.CodeTypeMismatch, span, "type mismatch")
}

func sameSegments(a, b []intern.Word) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// unifyGenericGeneric succeeds iff each restriction of one side is
// satisfied by the other (spec §4.4 row: names need not match).
func (u *Unifier) unifyGenericGeneric(a, b typeir.KGeneric, span diagnostics.Span) *diagnostics.Diagnostic {
	if !u.eachSatisfiedByOther(a.Restrictions, b.Restrictions) || !u.eachSatisfiedByOther(b.Restrictions, a.Restrictions) {
		return diagnostics.New(diagnostics.CodeTypeMismatch, span, "generic parameters carry incompatible restrictions")
	}
	return nil
}

func (u *Unifier) eachSatisfiedByOther(rs []typeir.TraitRestriction, other []typeir.TraitRestriction) bool {
	for _, r := range rs {
		found := false
		for _, o := range other {
			if r.SameTrait(o) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// unifyGenericAgainst checks each of a generic's restrictions against a
// concrete/int/float RHS via the trait resolver (spec §4.4 row: Generic vs
// concrete).
func (u *Unifier) unifyGenericAgainst(genericID typeir.TypeId, a typeir.KGeneric, other typeir.TypeId, span diagnostics.Span) *diagnostics.Diagnostic {
	if u.traits == nil {
		return diagnostics.New(diagnostics.CodeTypeMismatch, span, "no trait resolver configured to check generic restrictions")
	}
	for _, r := range a.Restrictions {
		ok, diag := u.traits.TypeImplementsTrait(u.env, other, r)
		if diag != nil {
			return diag
		}
		if !ok {
			return diagnostics.New(diagnostics.CodeTraitBoundsUnsatisfied, span,
				"this type does not satisfy a restriction required by the generic parameter")
		}
	}
	return nil
}

// resolveThisPath resolves a `This`-rooted path against the active ThisCtx
// (spec §4.4 row: ThisPath). Multi-segment paths (This::AssocType) resolve
// the associated type; a bare `This` resolves to the context's target.
func (u *Unifier) resolveThisPath(p typeir.KThisPath) (typeir.TypeId, bool) {
	ctx := u.env.ThisCtx()
	if len(p.Segments) == 1 {
		return ctx.ResolveThis()
	}
	return ctx.ResolveAssocType(p.Segments[1])
}

func (u *Unifier) mismatch(ta typeir.TypeId, ka typeir.Kind, tb typeir.TypeId, kb typeir.Kind, span diagnostics.Span) *diagnostics.Diagnostic {
	arena := u.env.Arena()
	d := diagnostics.New(diagnostics.CodeTypeMismatch, span,
		fmt.Sprintf("type mismatch: %s vs %s", ka.String(), kb.String()))
	d.WithSecondary(arena.GetSpan(ta), "this type")
	d.WithSecondary(arena.GetSpan(tb), "does not match this type")
	return d
}

func (u *Unifier) renderConcrete(c typeir.ConcreteKind) string {
	if p, ok := c.(typeir.CPath); ok {
		out := ""
		for i, seg := range p.Segments {
			if i > 0 {
				out += "::"
			}
			out += u.words.Resolve(seg)
		}
		return out
	}
	return c.String()
}

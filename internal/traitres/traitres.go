// Package traitres implements the Trait Resolver (spec §4.5, C5): deciding
// whether a type satisfies a trait restriction, specializing ambiguous
// integer/float literals, and verifying where-clauses recursively with
// co-inductive memoization. Grounded on the teacher's instance-matching
// walk (funvibe-funxy internal/analyzer declarations_instances_core.go,
// internal/symbols symbol_table_implementations.go FindMatchingImplementation)
// generalized from functional-dependency matching to the spec's
// snapshot-and-count-candidates algorithm.
package traitres

import (
	"fmt"

	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/intern"
	"github.com/flux-lang/flux-core/internal/tenv"
	"github.com/flux-lang/flux-core/internal/traittab"
	"github.com/flux-lang/flux-core/internal/typeir"
	"github.com/flux-lang/flux-core/internal/unify"
)

// TraitDecls is the subset of the item tree (C6/C7) the resolver needs to
// verify where-clauses: a trait's declared generic arity and the
// restrictions its own parameters carry (spec §4.5 verify_where_clause).
type TraitDecls interface {
	TraitArity(trait typeir.TraitId) (arity int, ok bool)
	TraitParamRestrictions(trait typeir.TraitId, paramIndex int) []typeir.TraitRestriction
	LookupTrait(name string) (typeir.TraitId, bool)
}

// GenericParam is one generic parameter being checked by VerifyWhereClause
// (spec §4.5): the parameter's own TypeId plus the where-clause predicates
// attached to it by the source.
type GenericParam struct {
	ID           typeir.TypeId
	Restrictions []typeir.TraitRestriction
}

// Resolver implements the trait-satisfaction algorithm over a shared arena,
// trait application table, and unifier.
type Resolver struct {
	words *intern.Interner
	table *traittab.Table
	uni   *unify.Unifier
	decls TraitDecls
	memo  map[memoKey]bool
}

type memoKey struct {
	trait typeir.TraitId
	args  string
}

// New builds a Resolver over table (C3), words to intern the canonical
// integer/float path names, and decls to look up trait declarations for
// where-clause verification. The unifier is wired in afterward via
// SetUnifier: a Resolver and its Unifier each need to call into the other
// (the unifier checks Generic restrictions via the resolver; the resolver
// tries candidate unifications via the unifier), so construction is
// necessarily two-step — build the Resolver, build the Unifier passing the
// Resolver as its TraitChecker, then SetUnifier back onto the Resolver
// (this is the driver's job; see internal/driver).
func New(words *intern.Interner, table *traittab.Table, decls TraitDecls) *Resolver {
	return &Resolver{words: words, table: table, decls: decls, memo: make(map[memoKey]bool)}
}

// SetUnifier completes the two-step wiring described on New.
func (r *Resolver) SetUnifier(uni *unify.Unifier) {
	r.uni = uni
}

// TypeImplementsTrait reports whether tid satisfies restriction without
// committing any bindings chosen along the way, except for the one case the
// spec explicitly allows to commit: resolving an ambiguous integer/float
// literal specializes it in place once a unique candidate is found (spec
// §4.5 step 2), since the literal's defaulted type is a real decision, not
// a throwaway probe.
func (r *Resolver) TypeImplementsTrait(env *tenv.TEnv, tid typeir.TypeId, restriction typeir.TraitRestriction) (bool, *diagnostics.Diagnostic) {
	arena := env.Arena()
	terminal := arena.Terminal(tid)
	kind := arena.GetKind(terminal)

	switch k := kind.(type) {
	case typeir.KGeneric:
		for _, rr := range k.Restrictions {
			if rr.SameTrait(restriction) {
				return true, nil
			}
		}
		return false, nil

	case typeir.KInt:
		return r.specializeNumeric(env, terminal, restriction, integerPathNames(env))

	case typeir.KFloat:
		return r.specializeNumeric(env, terminal, restriction, floatPathNames(env))

	default:
		count, _, diag := r.countCandidates(env, terminal, restriction)
		if diag != nil {
			return false, diag
		}
		switch count {
		case 0:
			return false, nil
		case 1:
			return true, nil
		default:
			return false, diagnostics.New(diagnostics.CodeOverlappingApplications, arena.GetSpan(terminal),
				"more than one trait application matches this type")
		}
	}
}

// ResolveTraitRestriction behaves like TypeImplementsTrait but, on a unique
// match against a registered trait application, commits the arena bindings
// that made it match (spec §4.5 resolve_trait_restriction) — so the caller
// ends up with the implementor's argument types unified into tid's
// generic slots, not merely a yes/no answer.
func (r *Resolver) ResolveTraitRestriction(env *tenv.TEnv, tid typeir.TypeId, restriction typeir.TraitRestriction) (bool, *diagnostics.Diagnostic) {
	arena := env.Arena()
	terminal := arena.Terminal(tid)
	kind := arena.GetKind(terminal)

	switch k := kind.(type) {
	case typeir.KGeneric:
		for _, rr := range k.Restrictions {
			if rr.SameTrait(restriction) {
				return true, nil
			}
		}
		return false, nil

	case typeir.KInt:
		return r.specializeNumeric(env, terminal, restriction, integerPathNames(env))

	case typeir.KFloat:
		return r.specializeNumeric(env, terminal, restriction, floatPathNames(env))

	default:
		count, only, diag := r.countCandidates(env, terminal, restriction)
		if diag != nil {
			return false, diag
		}
		switch count {
		case 0:
			return false, nil
		case 1:
			if d := r.uni.Unify(only.ImpltorRoot, terminal, arena.GetSpan(terminal)); d != nil {
				return false, d
			}
			for i := range only.TraitArgs {
				if i >= len(restriction.Args) {
					break
				}
				if d := r.uni.Unify(only.TraitArgs[i], restriction.Args[i], arena.GetSpan(terminal)); d != nil {
					return false, d
				}
			}
			return true, nil
		default:
			return false, diagnostics.New(diagnostics.CodeOverlappingApplications, arena.GetSpan(terminal),
				"more than one trait application matches this type")
		}
	}
}

// countCandidates snapshots the arena around each candidate's trial
// unification so trying one candidate never leaks bindings into the next
// (spec §4.5 step 3). It returns the surviving count and, when exactly one
// survives, that candidate.
func (r *Resolver) countCandidates(env *tenv.TEnv, terminal typeir.TypeId, restriction typeir.TraitRestriction) (int, traittab.Application, *diagnostics.Diagnostic) {
	arena := env.Arena()
	candidates := r.table.CandidatesFor(restriction.TraitID, terminal)

	count := 0
	var match traittab.Application
	for _, c := range candidates {
		snap := arena.Snapshot()
		ok := r.uni.TypesUnify(c.ImpltorRoot, terminal) && pairwiseTypesUnify(r.uni, c.TraitArgs, restriction.Args)
		arena.Restore(snap)
		if ok {
			count++
			match = c
		}
	}
	return count, match, nil
}

func pairwiseTypesUnify(u *unify.Unifier, a, b []typeir.TypeId) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !u.TypesUnify(a[i], b[i]) {
			return false
		}
	}
	return true
}

// specializeNumeric implements spec §4.5 step 2: try every canonical path
// name as a candidate binding for terminal, counting how many satisfy
// restriction. Exactly one commits the binding; zero fails; more than one
// is an AmbiguousIntegerSpecialization diagnostic (the same rule applies
// symmetrically to floats — the code name is shared since the spec only
// names one diagnostic code for both).
func (r *Resolver) specializeNumeric(env *tenv.TEnv, terminal typeir.TypeId, restriction typeir.TraitRestriction, names []string) (bool, *diagnostics.Diagnostic) {
	arena := env.Arena()
	var matches []string
	for _, name := range names {
		snap := arena.Snapshot()
		fresh := arena.Insert(typeir.KConcrete{Concrete: r.namedPath(name)}, arena.GetSpan(terminal))
		arena.BindRef(terminal, fresh)
		ok, _ := r.TypeImplementsTrait(env, terminal, restriction)
		arena.Restore(snap)
		if ok {
			matches = append(matches, name)
		}
	}
	switch len(matches) {
	case 0:
		return false, nil
	case 1:
		fresh := arena.Insert(typeir.KConcrete{Concrete: r.namedPath(matches[0])}, arena.GetSpan(terminal))
		arena.BindRef(terminal, fresh)
		return true, nil
	default:
		return false, diagnostics.New(diagnostics.CodeAmbiguousIntegerSpecialization, arena.GetSpan(terminal),
			fmt.Sprintf("ambiguous specialization: %d candidate types satisfy this restriction", len(matches)))
	}
}

func (r *Resolver) namedPath(name string) typeir.CPath {
	return typeir.CPath{Segments: []intern.Word{r.words.GetOrIntern(name)}}
}

func integerPathNames(env *tenv.TEnv) []string {
	return env.Arena().Session().IntegerPaths
}

func floatPathNames(env *tenv.TEnv) []string {
	return env.Arena().Session().FloatPaths
}

// VerifyWhereClause checks every predicate attached to params (spec §4.5
// verify_where_clause): each bound trait must exist and its declared arity
// must match the number of generic arguments supplied, and each supplied
// argument must itself satisfy its own declared restrictions in the
// bound trait's where-clause, recursively. Recursion terminates because
// each step moves to a strictly smaller trait graph (a trait's own
// parameter restrictions can't refer back to a restriction already on the
// call stack without that being a cyclic trait declaration, which is
// rejected elsewhere); memoization by (trait id, argument terminal ids)
// keeps a diamond-shaped where-clause graph from being re-verified
// exponentially.
func (r *Resolver) VerifyWhereClause(env *tenv.TEnv, params []GenericParam, span diagnostics.Span) []*diagnostics.Diagnostic {
	var diags []*diagnostics.Diagnostic
	for _, p := range params {
		for _, restriction := range p.Restrictions {
			if d := r.verifyRestriction(env, p.ID, restriction, span); d != nil {
				diags = append(diags, d)
			}
		}
	}
	return diags
}

func (r *Resolver) verifyRestriction(env *tenv.TEnv, subject typeir.TypeId, restriction typeir.TraitRestriction, span diagnostics.Span) *diagnostics.Diagnostic {
	key := memoKey{trait: restriction.TraitID, args: argsKey(env, restriction.Args)}
	if ok, seen := r.memo[key]; seen {
		if ok {
			return nil
		}
		return diagnostics.New(diagnostics.CodeTraitBoundsUnsatisfied, span,
			"this type does not satisfy a previously-checked trait restriction")
	}

	arity, ok := r.decls.TraitArity(restriction.TraitID)
	if !ok {
		r.memo[key] = false
		return diagnostics.New(diagnostics.CodeUnresolvedPath, span, "unknown trait referenced in a where-clause")
	}
	if arity != len(restriction.Args) {
		r.memo[key] = false
		return diagnostics.New(diagnostics.CodeIncorrectNumGenericArgsInWherePred, span,
			fmt.Sprintf("trait expects %d generic argument(s), found %d", arity, len(restriction.Args)))
	}

	for i, arg := range restriction.Args {
		for _, ownRestriction := range r.decls.TraitParamRestrictions(restriction.TraitID, i) {
			if d := r.verifyRestriction(env, arg, ownRestriction, span); d != nil {
				r.memo[key] = false
				return d
			}
		}
	}

	satisfied, diag := r.TypeImplementsTrait(env, subject, restriction)
	if diag != nil {
		r.memo[key] = false
		return diag
	}
	r.memo[key] = satisfied
	if !satisfied {
		return diagnostics.New(diagnostics.CodeTraitBoundsUnsatisfied, span,
			"this type does not satisfy a restriction required by its where-clause")
	}
	return nil
}

func argsKey(env *tenv.TEnv, args []typeir.TypeId) string {
	arena := env.Arena()
	key := ""
	for i, a := range args {
		if i > 0 {
			key += ","
		}
		key += fmt.Sprintf("%d", int(arena.Terminal(a)))
	}
	return key
}

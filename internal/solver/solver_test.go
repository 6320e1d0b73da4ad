package solver

import (
	"testing"

	"github.com/flux-lang/flux-core/internal/config"
	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/intern"
	"github.com/flux-lang/flux-core/internal/tenv"
	"github.com/flux-lang/flux-core/internal/traitres"
	"github.com/flux-lang/flux-core/internal/traittab"
	"github.com/flux-lang/flux-core/internal/typeir"
	"github.com/flux-lang/flux-core/internal/unify"
)

type fixedTraitDecls struct{}

func (fixedTraitDecls) TraitArity(typeir.TraitId) (int, bool) { return 0, true }
func (fixedTraitDecls) TraitParamRestrictions(typeir.TraitId, int) []typeir.TraitRestriction {
	return nil
}
func (fixedTraitDecls) LookupTrait(string) (typeir.TraitId, bool) { return 0, false }

func wireUp() (*tenv.TEnv, *intern.Interner, *traitres.Resolver, *unify.Unifier, *traittab.Table) {
	words := intern.New()
	arena := typeir.NewArena(config.Default())
	env := tenv.New(arena)
	table := traittab.New(nil)

	resolver := traitres.New(words, table, fixedTraitDecls{})
	uni := unify.New(env, words, resolver)
	resolver.SetUnifier(uni)
	table.SetProber(uni)
	return env, words, resolver, uni, table
}

func TestSolveEmptyQueue(t *testing.T) {
	env, _, resolver, uni, _ := wireUp()
	s := New(config.Default(), nil)
	diags := s.Solve(env, uni, resolver)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics on an empty queue: %+v", diags)
	}
}

func TestSolveDischargesTypeEq(t *testing.T) {
	env, _, resolver, uni, _ := wireUp()
	arena := env.Arena()
	a := arena.InsertUnknown(diagnostics.Span{})
	b := arena.Insert(typeir.KConcrete{Concrete: typeir.CPath{}}, diagnostics.Span{})
	env.AddEquality(a, b, diagnostics.Span{})

	s := New(config.Default(), nil)
	diags := s.Solve(env, uni, resolver)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
	if arena.Terminal(a) != arena.Terminal(b) {
		t.Fatal("expected the TypeEq obligation to bind a to b")
	}
}

func TestSolveReportsTypeMismatch(t *testing.T) {
	env, words, resolver, uni, _ := wireUp()
	arena := env.Arena()
	a := arena.Insert(typeir.KConcrete{Concrete: typeir.CPath{Segments: []intern.Word{words.GetOrIntern("u32")}}}, diagnostics.Span{})
	b := arena.Insert(typeir.KConcrete{Concrete: typeir.CPath{Segments: []intern.Word{words.GetOrIntern("Widget")}}}, diagnostics.Span{})
	env.AddEquality(a, b, diagnostics.Span{})

	s := New(config.Default(), nil)
	diags := s.Solve(env, uni, resolver)
	if len(diags) != 1 || diags[0].Code != diagnostics.CodeTypeMismatch {
		t.Fatalf("expected a single TypeMismatch diagnostic, got %+v", diags)
	}
}

func TestSolveNoProgressReportsCouldNotInfer(t *testing.T) {
	env, _, resolver, uni, _ := wireUp()
	arena := env.Arena()
	subject := arena.InsertUnknown(diagnostics.Span{})
	env.AddRestriction(subject, typeir.TraitRestriction{TraitID: 1}, diagnostics.Span{})

	s := New(config.Default(), nil)
	diags := s.Solve(env, uni, resolver)
	if len(diags) != 1 || diags[0].Code != diagnostics.CodeCouldNotInfer {
		t.Fatalf("expected a single CouldNotInfer diagnostic, got %+v", diags)
	}
}

func TestSolveImplementsResolvesOnceSubjectIsConcrete(t *testing.T) {
	env, words, resolver, uni, table := wireUp()
	arena := env.Arena()
	const showTrait typeir.TraitId = 7

	lit := arena.InsertInt(diagnostics.Span{})
	u32Root := arena.Insert(typeir.KConcrete{Concrete: typeir.CPath{Segments: []intern.Word{words.GetOrIntern("u32")}}}, diagnostics.Span{})
	table.AddApplication(showTrait, traittab.Application{ImpltorRoot: u32Root})

	env.AddRestriction(lit, typeir.TraitRestriction{TraitID: showTrait}, diagnostics.Span{})

	s := New(config.Default(), nil)
	diags := s.Solve(env, uni, resolver)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
}

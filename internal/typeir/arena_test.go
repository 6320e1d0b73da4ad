package typeir

import (
	"testing"

	"github.com/flux-lang/flux-core/internal/config"
	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/intern"
)

func testArena() *Arena {
	return NewArena(config.Default())
}

func TestInsertAssignsSequentialIds(t *testing.T) {
	a := testArena()
	id0 := a.InsertUnknown(diagnostics.Span{})
	id1 := a.InsertInt(diagnostics.Span{})
	if id0 != 0 || id1 != 1 {
		t.Fatalf("expected sequential ids 0,1; got %d,%d", id0, id1)
	}
	if a.Len() != 2 {
		t.Fatalf("expected arena len 2, got %d", a.Len())
	}
}

func TestSpanIsPreservedAcrossMutation(t *testing.T) {
	a := testArena()
	sp := diagnostics.Span{File: "a.flux", Start: 3, End: 5}
	id := a.Insert(KUnknown{}, sp)
	other := a.Insert(KInt{}, diagnostics.Span{})
	a.BindRef(id, other)
	if got := a.GetSpan(id); got != sp {
		t.Fatalf("span mutated: got %+v, want %+v", got, sp)
	}
}

func TestBindRefFollowedByTerminal(t *testing.T) {
	a := testArena()
	leaf := a.Insert(KConcrete{Concrete: CPath{Segments: []intern.Word{}}}, diagnostics.Span{})
	mid := a.InsertUnknown(diagnostics.Span{})
	root := a.InsertUnknown(diagnostics.Span{})

	a.BindRef(root, mid)
	a.BindRef(mid, leaf)

	if got := a.Terminal(root); got != leaf {
		t.Fatalf("Terminal(root) = %d, want %d", got, leaf)
	}
}

func TestBindRefToSelfPanics(t *testing.T) {
	a := testArena()
	id := a.InsertUnknown(diagnostics.Span{})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on self-referential Ref")
		}
	}()
	a.BindRef(id, id)
}

func TestResolveDefaultsBareInt(t *testing.T) {
	a := testArena()
	words := intern.New()
	id := a.InsertInt(diagnostics.Span{})

	kind, diag := a.Resolve(id, words)
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %+v", diag)
	}
	concrete, ok := kind.(KConcrete)
	if !ok {
		t.Fatalf("expected KConcrete, got %T", kind)
	}
	path, ok := concrete.Concrete.(CPath)
	if !ok || len(path.Segments) != 1 {
		t.Fatalf("expected single-segment CPath, got %+v", concrete.Concrete)
	}
	if got := words.Resolve(path.Segments[0]); got != "u32" {
		t.Fatalf("defaulted to %q, want u32", got)
	}

	// Resolving again should see the committed binding, not re-default.
	kind2, diag2 := a.Resolve(id, words)
	if diag2 != nil {
		t.Fatalf("unexpected diagnostic on second resolve: %+v", diag2)
	}
	if kind2.String() != kind.String() {
		t.Fatalf("second resolve diverged: %v vs %v", kind2, kind)
	}
}

func TestResolveUnknownYieldsCouldNotInfer(t *testing.T) {
	a := testArena()
	words := intern.New()
	sp := diagnostics.Span{File: "a.flux", Start: 1, End: 2}
	id := a.InsertUnknown(sp)

	_, diag := a.Resolve(id, words)
	if diag == nil {
		t.Fatal("expected a CouldNotInfer diagnostic")
	}
	if diag.Code != diagnostics.CodeCouldNotInfer {
		t.Fatalf("got code %s, want CouldNotInfer", diag.Code)
	}
	if diag.Primary.Span != sp {
		t.Fatalf("diagnostic span %+v, want %+v", diag.Primary.Span, sp)
	}
}

func TestNewRefAliasesWithoutMutatingTarget(t *testing.T) {
	a := testArena()
	lhs := a.InsertInt(diagnostics.Span{File: "x", Start: 0, End: 1})
	result := a.NewRef(lhs, diagnostics.Span{File: "x", Start: 2, End: 3})

	if a.Terminal(result) != a.Terminal(lhs) {
		t.Fatal("NewRef should alias the same terminal as its target")
	}
	if a.GetSpan(result) == a.GetSpan(lhs) {
		t.Fatal("NewRef's span should be its own, not the target's")
	}
}

func TestMustGetOutOfBoundsPanics(t *testing.T) {
	a := testArena()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-bounds TypeId")
		}
	}()
	a.Get(TypeId(42))
}

func TestImportCopiesConcretePathAcrossArenas(t *testing.T) {
	src := testArena()
	name := []intern.Word{1, 2}
	arg := src.Insert(KInt{}, diagnostics.Span{})
	foreign := src.Insert(KConcrete{Concrete: CPath{Segments: name, Args: []TypeId{arg}}}, diagnostics.Span{File: "lib"})

	dst := testArena()
	local := dst.Import(src, foreign)

	if local == foreign {
		t.Fatal("Import should mint a fresh id in the destination arena, not reuse the source's")
	}
	c, ok := dst.GetKind(local).(KConcrete)
	if !ok {
		t.Fatalf("expected a KConcrete, got %T", dst.GetKind(local))
	}
	p, ok := c.Concrete.(CPath)
	if !ok || len(p.Args) != 1 {
		t.Fatalf("expected a CPath with one arg, got %+v", c.Concrete)
	}
	if _, ok := dst.GetKind(p.Args[0]).(KInt); !ok {
		t.Fatalf("expected the imported arg to carry over as KInt, got %T", dst.GetKind(p.Args[0]))
	}
	if dst.GetSpan(local) != src.GetSpan(foreign) {
		t.Fatal("Import should preserve the source type's span")
	}
}

func TestImportFollowsRefChain(t *testing.T) {
	src := testArena()
	leaf := src.Insert(KConcrete{Concrete: CPath{Segments: []intern.Word{3}}}, diagnostics.Span{})
	ref := src.Insert(KUnknown{}, diagnostics.Span{})
	src.BindRef(ref, leaf)

	dst := testArena()
	local := dst.Import(src, ref)

	if _, ok := dst.GetKind(local).(KConcrete); !ok {
		t.Fatalf("expected Import to resolve the Ref chain before copying, got %T", dst.GetKind(local))
	}
}

func TestImportIsIdempotentWithinOneCall(t *testing.T) {
	src := testArena()
	shared := src.Insert(KInt{}, diagnostics.Span{})
	pair := src.Insert(KConcrete{Concrete: CTuple{Elems: []TypeId{shared, shared}}}, diagnostics.Span{})

	dst := testArena()
	local := dst.Import(src, pair)

	tup := dst.GetKind(local).(KConcrete).Concrete.(CTuple)
	if tup.Elems[0] != tup.Elems[1] {
		t.Fatal("expected both references to the shared source id to import to the same destination id")
	}
}

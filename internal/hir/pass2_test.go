package hir

import (
	"testing"

	"github.com/flux-lang/flux-core/internal/astshim"
	"github.com/flux-lang/flux-core/internal/config"
	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/intern"
	"github.com/flux-lang/flux-core/internal/moduletree"
	"github.com/flux-lang/flux-core/internal/resolve"
	"github.com/flux-lang/flux-core/internal/tenv"
	"github.com/flux-lang/flux-core/internal/traitres"
	"github.com/flux-lang/flux-core/internal/traittab"
	"github.com/flux-lang/flux-core/internal/typeir"
	"github.com/flux-lang/flux-core/internal/unify"
)

// stubSolver runs no fixed-point loop; it just reports what AddEquality left
// behind by forcing every queued equality through the unifier directly, the
// way a one-pass (non-retrying) solver would. Good enough to exercise Pass
// 2's shape-level diagnostics without standing up C8.
type stubSolver struct{}

func (stubSolver) Solve(env *tenv.TEnv, uni *unify.Unifier, traits *traitres.Resolver) []*diagnostics.Diagnostic {
	var diags []*diagnostics.Diagnostic
	for _, obl := range env.PendingObligations() {
		switch o := obl.(type) {
		case tenv.OblTypeEq:
			if d := uni.Unify(o.Lhs, o.Rhs, o.Span); d != nil {
				diags = append(diags, d)
			}
		case tenv.OblImplements:
			if _, d := traits.ResolveTraitRestriction(env, o.Subject, o.Restriction); d != nil {
				diags = append(diags, d)
			}
		}
	}
	return diags
}

type noDeps struct{}

func (noDeps) PackageRoot(intern.Word) (*moduletree.Tree, bool) { return nil, false }

type harness struct {
	words *intern.Interner
	arena *typeir.Arena
	tree  *moduletree.Tree
	items *ItemTree
	l     *Lowerer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	words := intern.New()
	arena := typeir.NewArena(config.Default())
	tree := moduletree.New(words.GetOrIntern("pkg"), "pkg")
	items := NewItemTree(arena, words)

	env := tenv.New(arena)
	table := traittab.New(nil)
	resolver := traitres.New(words, table, items)
	uni := unify.New(env, words, resolver)
	resolver.SetUnifier(uni)
	table.SetProber(uni)

	res := resolve.New("pkg", tree, noDeps{}, items, map[intern.Word]moduletree.ItemId{})

	lowerer := NewLowerer(words, uni, resolver, items, res, stubSolver{}, "pkg")
	return &harness{words: words, arena: arena, tree: tree, items: items, l: lowerer}
}

func ident(h *harness, name string) intern.Word { return h.words.GetOrIntern(name) }

func TestLowerFunctionBodyIntLiteralReturn(t *testing.T) {
	h := newHarness(t)
	fn := &FunctionItem{
		Name:     ident(h, "answer"),
		ReturnTy: h.arena.InsertInt(diagnostics.Span{}),
		Body:     astshim.IntLiteral{Text: "42"},
	}
	out := h.l.LowerFunctionBody(h.arena, h.tree.RootID, fn)
	if len(out.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", out.Diagnostics)
	}
	if out.Body.Kind != EKIntLit {
		t.Fatalf("expected an int literal body, got %v", out.Body.Kind)
	}
}

func TestLowerIntLiteralOverflow(t *testing.T) {
	h := newHarness(t)
	fn := &FunctionItem{
		Name:     ident(h, "overflow"),
		ReturnTy: h.arena.InsertUnknown(diagnostics.Span{}),
		Body:     astshim.IntLiteral{Text: "999999999999999999999999999999"},
	}
	out := h.l.LowerFunctionBody(h.arena, h.tree.RootID, fn)

	found := false
	for _, d := range out.Diagnostics {
		if d.Code == diagnostics.CodePositiveIntegerOverflow {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a PositiveIntegerOverflow diagnostic, got %+v", out.Diagnostics)
	}
	if out.Body.Kind != EKPoisoned {
		t.Fatalf("expected the overflowing literal to lower as poisoned, got %v", out.Body.Kind)
	}
}

func TestLowerLocalParamReference(t *testing.T) {
	h := newHarness(t)
	xName := ident(h, "x")
	fn := &FunctionItem{
		Name:     ident(h, "identity"),
		Params:   []Field{{Name: xName, Ty: h.arena.InsertUnknown(diagnostics.Span{})}},
		ReturnTy: h.arena.InsertUnknown(diagnostics.Span{}),
		Body:     astshim.PathExpr{Segments: []intern.Word{xName}},
	}
	out := h.l.LowerFunctionBody(h.arena, h.tree.RootID, fn)
	if len(out.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", out.Diagnostics)
	}
	if out.Body.Kind != EKLocal {
		t.Fatalf("expected the path to resolve to the local parameter, got %v", out.Body.Kind)
	}
}

func TestLowerBlockTerminatorMustBeLast(t *testing.T) {
	h := newHarness(t)
	fn := &FunctionItem{
		Name:     ident(h, "bad_block"),
		ReturnTy: h.arena.InsertUnknown(diagnostics.Span{}),
		Body: astshim.BlockExpr{
			Stmts: []astshim.Stmt{
				{Terminator: true, Expr: astshim.IntLiteral{Text: "1"}},
				{Expr: astshim.IntLiteral{Text: "2"}},
			},
		},
	}
	out := h.l.LowerFunctionBody(h.arena, h.tree.RootID, fn)

	found := false
	for _, d := range out.Diagnostics {
		if d.Code == diagnostics.CodeStmtFollowingTerminatorExpr {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a StmtFollowingTerminatorExpr diagnostic, got %+v", out.Diagnostics)
	}
}

func TestLowerStructExprMissingAndUnknownFields(t *testing.T) {
	h := newHarness(t)
	pointName := ident(h, "Point")
	xField := ident(h, "x")
	yField := ident(h, "y")
	zField := ident(h, "z")
	s := &StructItem{
		Name: pointName,
		Fields: []Field{
			{Name: xField, Ty: h.arena.InsertInt(diagnostics.Span{})},
			{Name: yField, Ty: h.arena.InsertInt(diagnostics.Span{})},
		},
	}
	h.items.Structs[1] = s
	h.items.structsByName[pointName] = s

	fn := &FunctionItem{
		Name:     ident(h, "make_point"),
		ReturnTy: h.arena.InsertUnknown(diagnostics.Span{}),
		Body: astshim.StructExpr{
			Path: astshim.PathExpr{Segments: []intern.Word{pointName}},
			Fields: []astshim.FieldInit{
				{Name: xField, Value: astshim.IntLiteral{Text: "1"}},
				{Name: zField, Value: astshim.IntLiteral{Text: "2"}},
			},
		},
	}
	out := h.l.LowerFunctionBody(h.arena, h.tree.RootID, fn)

	var codes []diagnostics.Code
	for _, d := range out.Diagnostics {
		codes = append(codes, d.Code)
	}
	wantMissing, wantUnknown := false, false
	for _, c := range codes {
		if c == diagnostics.CodeUninitializedFieldsInStructExpr {
			wantMissing = true
		}
		if c == diagnostics.CodeUnknownFieldsInStructExpr {
			wantUnknown = true
		}
	}
	if !wantMissing || !wantUnknown {
		t.Fatalf("expected both missing-field and unknown-field diagnostics, got %+v", codes)
	}
}

func TestLowerIfBranchesUnify(t *testing.T) {
	h := newHarness(t)
	fn := &FunctionItem{
		Name:     ident(h, "choose"),
		ReturnTy: h.arena.InsertUnknown(diagnostics.Span{}),
		Body: astshim.IfExpr{
			Cond: astshim.PathExpr{Segments: []intern.Word{ident(h, "flag")}},
			Then: astshim.IntLiteral{Text: "1"},
			Else: astshim.IntLiteral{Text: "2"},
		},
		Params: []Field{{Name: ident(h, "flag"), Ty: h.arena.InsertBool(diagnostics.Span{}, ident(h, "bool"))}},
	}
	out := h.l.LowerFunctionBody(h.arena, h.tree.RootID, fn)
	if len(out.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", out.Diagnostics)
	}
	if out.Body.Kind != EKIf {
		t.Fatalf("expected an if expression, got %v", out.Body.Kind)
	}
}

func TestLowerMemberAccessMissingField(t *testing.T) {
	h := newHarness(t)
	pointName := ident(h, "Point")
	s := &StructItem{Name: pointName, Fields: []Field{{Name: ident(h, "x"), Ty: h.arena.InsertInt(diagnostics.Span{})}}}
	h.items.Structs[1] = s
	h.items.structsByName[pointName] = s

	recvTy := h.arena.Insert(typeir.KConcrete{Concrete: typeir.CPath{Segments: []intern.Word{pointName}}}, diagnostics.Span{})
	fn := &FunctionItem{
		Name:     ident(h, "bad_member"),
		ReturnTy: h.arena.InsertUnknown(diagnostics.Span{}),
		Params:   []Field{{Name: ident(h, "p"), Ty: recvTy}},
		Body: astshim.MemberExpr{
			Left:  astshim.PathExpr{Segments: []intern.Word{ident(h, "p")}},
			Field: ident(h, "missing"),
		},
	}
	out := h.l.LowerFunctionBody(h.arena, h.tree.RootID, fn)

	found := false
	for _, d := range out.Diagnostics {
		if d.Code == diagnostics.CodeCouldNotFindFieldReferenced {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a CouldNotFindFieldReferenced diagnostic, got %+v", out.Diagnostics)
	}
}

func TestLowerApplyMethodBodyInstallsThisCtx(t *testing.T) {
	h := newHarness(t)
	implTy := h.arena.Insert(typeir.KConcrete{Concrete: typeir.CPath{Segments: []intern.Word{ident(h, "Widget")}}}, diagnostics.Span{})
	apply := &ApplyItem{ImplementorTy: implTy}
	method := &MethodSig{
		Name:     ident(h, "size"),
		ReturnTy: h.arena.InsertInt(diagnostics.Span{}),
		Body:     astshim.IntLiteral{Text: "4"},
	}
	out := h.l.LowerApplyMethodBody(h.arena, h.tree.RootID, apply, method)
	if len(out.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", out.Diagnostics)
	}
	if out.Body.Kind != EKIntLit {
		t.Fatalf("expected an int literal body, got %v", out.Body.Kind)
	}
}

func lowerOneFunction(h *harness, t *testing.T, decls []astshim.Node) *LoweredBody {
	t.Helper()
	modules := []ModuleDecls{{Module: h.tree.RootID, Decls: decls}}
	if diags := h.items.LowerPackage(h.tree, modules, "pkg"); len(diags) != 0 {
		t.Fatalf("unexpected Pass 1 diagnostics: %+v", diags)
	}
	var fn *FunctionItem
	for _, f := range h.items.Functions {
		fn = f
	}
	if fn == nil {
		t.Fatal("expected exactly one function item to have been registered")
	}
	return h.l.LowerFunctionBody(h.arena, h.tree.RootID, fn)
}

func hasCode(diags []*diagnostics.Diagnostic, code diagnostics.Code) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestLowerEnumCtorCallMissingArgIsReported(t *testing.T) {
	h := newHarness(t)
	u32 := typeRef(h.words, "u32")
	enumDecl := astshim.EnumDecl{
		Name:     ident(h, "Option"),
		Variants: []astshim.VariantDecl{{Name: ident(h, "Some"), Payload: &u32}},
	}
	fn := astshim.FunctionDecl{
		Name: ident(h, "make"),
		Body: astshim.CallExpr{
			Callee: astshim.PathExpr{Segments: []intern.Word{ident(h, "Option"), ident(h, "Some")}},
		},
	}
	out := lowerOneFunction(h, t, []astshim.Node{enumDecl, fn})
	if !hasCode(out.Diagnostics, diagnostics.CodeEnumVariantMissingArg) {
		t.Fatalf("expected an EnumVariantMissingArg diagnostic, got %+v", out.Diagnostics)
	}
}

func TestLowerEnumCtorCallTooManyArgsIsReported(t *testing.T) {
	h := newHarness(t)
	u32 := typeRef(h.words, "u32")
	enumDecl := astshim.EnumDecl{
		Name:     ident(h, "Option"),
		Variants: []astshim.VariantDecl{{Name: ident(h, "Some"), Payload: &u32}},
	}
	fn := astshim.FunctionDecl{
		Name: ident(h, "make"),
		Body: astshim.CallExpr{
			Callee: astshim.PathExpr{Segments: []intern.Word{ident(h, "Option"), ident(h, "Some")}},
			Args:   []astshim.Node{astshim.IntLiteral{Text: "1"}, astshim.IntLiteral{Text: "2"}},
		},
	}
	out := lowerOneFunction(h, t, []astshim.Node{enumDecl, fn})
	if !hasCode(out.Diagnostics, diagnostics.CodeIncorrectNumArgsInCall) {
		t.Fatalf("expected an IncorrectNumArgsInCall diagnostic, got %+v", out.Diagnostics)
	}
}

func TestLowerPathUnknownLocalIsReported(t *testing.T) {
	h := newHarness(t)
	fn := astshim.FunctionDecl{
		Name: ident(h, "bad"),
		Body: astshim.PathExpr{Segments: []intern.Word{ident(h, "nonexistent")}},
	}
	out := lowerOneFunction(h, t, []astshim.Node{fn})
	if !hasCode(out.Diagnostics, diagnostics.CodeUnknownLocal) {
		t.Fatalf("expected an UnknownLocal diagnostic, got %+v", out.Diagnostics)
	}
}

func TestLowerPathToNonValueItemIsReported(t *testing.T) {
	h := newHarness(t)
	traitDecl := astshim.TraitDecl{Name: ident(h, "Iterable")}
	fn := astshim.FunctionDecl{
		Name: ident(h, "bad"),
		Body: astshim.PathExpr{Segments: []intern.Word{ident(h, "Iterable")}},
	}
	out := lowerOneFunction(h, t, []astshim.Node{traitDecl, fn})
	if !hasCode(out.Diagnostics, diagnostics.CodeExpectedDifferentItem) {
		t.Fatalf("expected an ExpectedDifferentItem diagnostic, got %+v", out.Diagnostics)
	}
}

func TestLowerCallToNonCallableItemIsReported(t *testing.T) {
	h := newHarness(t)
	traitDecl := astshim.TraitDecl{Name: ident(h, "Iterable")}
	fn := astshim.FunctionDecl{
		Name: ident(h, "bad"),
		Body: astshim.CallExpr{
			Callee: astshim.PathExpr{Segments: []intern.Word{ident(h, "Iterable")}},
		},
	}
	out := lowerOneFunction(h, t, []astshim.Node{traitDecl, fn})
	if !hasCode(out.Diagnostics, diagnostics.CodeExpectedDifferentItem) {
		t.Fatalf("expected an ExpectedDifferentItem diagnostic, got %+v", out.Diagnostics)
	}
}

package driver

import (
	"testing"

	"github.com/flux-lang/flux-core/internal/astshim"
	"github.com/flux-lang/flux-core/internal/config"
	"github.com/flux-lang/flux-core/internal/hir"
	"github.com/flux-lang/flux-core/internal/intern"
	"github.com/flux-lang/flux-core/internal/moduletree"
)

func typeRef(words *intern.Interner, name string) astshim.TypeRef {
	return astshim.TypeRef{Segments: []intern.Word{words.GetOrIntern(name)}}
}

func TestCompilePackageLowersAFunctionBody(t *testing.T) {
	s := NewSession(config.Default())
	words := s.Words

	tree := moduletree.New(words.GetOrIntern("mathlib"), "mathlib")
	fn := astshim.FunctionDecl{
		Name:     words.GetOrIntern("answer"),
		ReturnTy: func() *astshim.TypeRef { r := typeRef(words, "u32"); return &r }(),
		Body:     astshim.IntLiteral{Text: "42"},
	}
	modules := []hir.ModuleDecls{{Module: tree.RootID, Decls: []astshim.Node{fn}}}

	pkg, batch := s.CompilePackage("mathlib", tree, modules)
	if batch.HasErrors() {
		t.Fatalf("unexpected errors: %+v", batch.Diagnostics)
	}
	if len(pkg.FunctionBodies) != 1 {
		t.Fatalf("expected one lowered function body, got %d", len(pkg.FunctionBodies))
	}
	for _, body := range pkg.FunctionBodies {
		if len(body.Diagnostics) != 0 {
			t.Fatalf("unexpected body diagnostics: %+v", body.Diagnostics)
		}
	}

	if got, ok := s.Registry.Get("mathlib"); !ok || got != pkg {
		t.Fatal("expected CompilePackage to register the package in the session's registry")
	}
}

func TestCompilePackageResolvesCrossPackageCall(t *testing.T) {
	s := NewSession(config.Default())
	words := s.Words

	libTree := moduletree.New(words.GetOrIntern("mathlib"), "mathlib")
	u32Ty := typeRef(words, "u32")
	double := astshim.FunctionDecl{
		Name:     words.GetOrIntern("double"),
		Params:   []astshim.FieldDecl{{Name: words.GetOrIntern("x"), Ty: u32Ty}},
		ReturnTy: func() *astshim.TypeRef { r := typeRef(words, "u32"); return &r }(),
		Body:     astshim.PathExpr{Segments: []intern.Word{words.GetOrIntern("x")}},
	}
	libModules := []hir.ModuleDecls{{Module: libTree.RootID, Decls: []astshim.Node{double}}}
	if _, batch := s.CompilePackage("mathlib", libTree, libModules); batch.HasErrors() {
		t.Fatalf("unexpected errors compiling mathlib: %+v", batch.Diagnostics)
	}

	appTree := moduletree.New(words.GetOrIntern("app"), "app")
	run := astshim.FunctionDecl{
		Name:     words.GetOrIntern("run"),
		ReturnTy: func() *astshim.TypeRef { r := typeRef(words, "u32"); return &r }(),
		Body: astshim.CallExpr{
			Callee: astshim.PathExpr{Segments: []intern.Word{words.GetOrIntern("mathlib"), words.GetOrIntern("double")}},
			Args:   []astshim.Node{astshim.IntLiteral{Text: "1"}},
		},
	}
	appModules := []hir.ModuleDecls{{Module: appTree.RootID, Decls: []astshim.Node{run}}}

	pkg, batch := s.CompilePackage("app", appTree, appModules)
	if batch.HasErrors() {
		t.Fatalf("unexpected errors compiling app: %+v", batch.Diagnostics)
	}
	for _, body := range pkg.FunctionBodies {
		if body.Body.Kind != hir.EKCall {
			t.Fatalf("expected run's body to lower to a call, got %v (diags=%+v)", body.Body.Kind, body.Diagnostics)
		}
	}
}

func TestCompilePackageResolvesUserDeclaredTraitApplication(t *testing.T) {
	s := NewSession(config.Default())
	words := s.Words

	tree := moduletree.New(words.GetOrIntern("pkg"), "pkg")
	widget := astshim.StructDecl{Name: words.GetOrIntern("Widget")}
	addTrait := astshim.TraitDecl{
		Name: words.GetOrIntern("Add"),
		Methods: []astshim.MethodSigDecl{
			{
				Name:     words.GetOrIntern("add"),
				Params:   []astshim.FieldDecl{{Name: words.GetOrIntern("rhs"), Ty: typeRef(words, "Widget")}},
				ReturnTy: func() *astshim.TypeRef { r := typeRef(words, "Widget"); return &r }(),
			},
		},
	}
	applyAdd := astshim.ApplyDecl{
		TraitPath:     &astshim.TraitBoundRef{Segments: []intern.Word{words.GetOrIntern("Add")}, Args: []astshim.TypeRef{typeRef(words, "Widget")}},
		ImplementorTy: typeRef(words, "Widget"),
		Methods: []astshim.MethodSigDecl{
			{
				Name:     words.GetOrIntern("add"),
				Params:   []astshim.FieldDecl{{Name: words.GetOrIntern("rhs"), Ty: typeRef(words, "Widget")}},
				ReturnTy: func() *astshim.TypeRef { r := typeRef(words, "Widget"); return &r }(),
				Body:     astshim.PathExpr{Segments: []intern.Word{words.GetOrIntern("rhs")}},
			},
		},
	}
	sum := astshim.FunctionDecl{
		Name:     words.GetOrIntern("sum"),
		ReturnTy: func() *astshim.TypeRef { r := typeRef(words, "Widget"); return &r }(),
		Body: astshim.BinaryExpr{
			Op:    "+",
			Left:  astshim.StructExpr{Path: astshim.PathExpr{Segments: []intern.Word{words.GetOrIntern("Widget")}}},
			Right: astshim.StructExpr{Path: astshim.PathExpr{Segments: []intern.Word{words.GetOrIntern("Widget")}}},
		},
	}
	modules := []hir.ModuleDecls{{Module: tree.RootID, Decls: []astshim.Node{widget, addTrait, applyAdd, sum}}}

	_, batch := s.CompilePackage("pkg", tree, modules)
	if batch.HasErrors() {
		t.Fatalf("expected the apply Add for Widget block to satisfy `Widget + Widget`, got: %+v", batch.Diagnostics)
	}
}

func TestCompilePackageResolvesCrossPackageStructExpr(t *testing.T) {
	s := NewSession(config.Default())
	words := s.Words

	libTree := moduletree.New(words.GetOrIntern("shapes"), "shapes")
	widget := astshim.StructDecl{
		Name:   words.GetOrIntern("Widget"),
		Fields: []astshim.FieldDecl{{Name: words.GetOrIntern("x"), Ty: typeRef(words, "u32")}},
	}
	libModules := []hir.ModuleDecls{{Module: libTree.RootID, Decls: []astshim.Node{widget}}}
	if _, batch := s.CompilePackage("shapes", libTree, libModules); batch.HasErrors() {
		t.Fatalf("unexpected errors compiling shapes: %+v", batch.Diagnostics)
	}

	appTree := moduletree.New(words.GetOrIntern("app"), "app")
	makeFn := astshim.FunctionDecl{
		Name:     words.GetOrIntern("make"),
		ReturnTy: func() *astshim.TypeRef { r := typeRef(words, "Widget"); return &r }(),
		Body: astshim.StructExpr{
			Path:   astshim.PathExpr{Segments: []intern.Word{words.GetOrIntern("shapes"), words.GetOrIntern("Widget")}},
			Fields: []astshim.FieldInit{{Name: words.GetOrIntern("x"), Value: astshim.IntLiteral{Text: "1"}}},
		},
	}
	appModules := []hir.ModuleDecls{{Module: appTree.RootID, Decls: []astshim.Node{makeFn}}}

	pkg, batch := s.CompilePackage("app", appTree, appModules)
	if batch.HasErrors() {
		t.Fatalf("expected `shapes::Widget { x: 1 }` to resolve across the package boundary, got: %+v", batch.Diagnostics)
	}
	for _, body := range pkg.FunctionBodies {
		if body.Body.Kind != hir.EKStruct {
			t.Fatalf("expected make's body to lower to a struct expression, got %v (diags=%+v)", body.Body.Kind, body.Diagnostics)
		}
	}
}

func TestCompilePackageReportsTypeMismatch(t *testing.T) {
	s := NewSession(config.Default())
	words := s.Words

	tree := moduletree.New(words.GetOrIntern("pkg"), "pkg")
	widget := astshim.StructDecl{Name: words.GetOrIntern("Widget")}
	fn := astshim.FunctionDecl{
		Name:     words.GetOrIntern("bad"),
		ReturnTy: func() *astshim.TypeRef { r := typeRef(words, "Widget"); return &r }(),
		Body:     astshim.IntLiteral{Text: "1"},
	}
	modules := []hir.ModuleDecls{{Module: tree.RootID, Decls: []astshim.Node{widget, fn}}}

	_, batch := s.CompilePackage("pkg", tree, modules)
	if !batch.HasErrors() {
		t.Fatal("expected a type-mismatch error returning an int literal where a Widget is required")
	}
}

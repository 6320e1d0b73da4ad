package main

import (
	"github.com/flux-lang/flux-core/internal/astshim"
	"github.com/flux-lang/flux-core/internal/driver"
	"github.com/flux-lang/flux-core/internal/hir"
	"github.com/flux-lang/flux-core/internal/intern"
	"github.com/flux-lang/flux-core/internal/moduletree"
)

func typeRef(words *intern.Interner, name string) astshim.TypeRef {
	return astshim.TypeRef{Segments: []intern.Word{words.GetOrIntern(name)}}
}

func namedTypeRef(words *intern.Interner, name string) *astshim.TypeRef {
	r := typeRef(words, name)
	return &r
}

// fixtureUnits builds the small set of packages fluxcheck always compiles:
// a well-typed "mathlib" a dependent "app" calls into, and a "broken"
// package carrying a deliberate type mismatch, so a run against the three
// together exercises both the clean path and the diagnostic path.
func fixtureUnits(s *driver.Session) []driver.Unit {
	words := s.Words

	libTree := moduletree.New(words.GetOrIntern("mathlib"), "mathlib")
	double := astshim.FunctionDecl{
		Name:     words.GetOrIntern("double"),
		Params:   []astshim.FieldDecl{{Name: words.GetOrIntern("x"), Ty: typeRef(words, "u32")}},
		ReturnTy: namedTypeRef(words, "u32"),
		Body:     astshim.PathExpr{Segments: []intern.Word{words.GetOrIntern("x")}},
	}

	appTree := moduletree.New(words.GetOrIntern("app"), "app")
	run := astshim.FunctionDecl{
		Name:     words.GetOrIntern("run"),
		ReturnTy: namedTypeRef(words, "u32"),
		Body: astshim.CallExpr{
			Callee: astshim.PathExpr{Segments: []intern.Word{words.GetOrIntern("mathlib"), words.GetOrIntern("double")}},
			Args:   []astshim.Node{astshim.IntLiteral{Text: "21"}},
		},
	}

	brokenTree := moduletree.New(words.GetOrIntern("broken"), "broken")
	widget := astshim.StructDecl{Name: words.GetOrIntern("Widget")}
	bad := astshim.FunctionDecl{
		Name:     words.GetOrIntern("bad"),
		ReturnTy: namedTypeRef(words, "Widget"),
		Body:     astshim.IntLiteral{Text: "1"},
	}

	return []driver.Unit{
		{
			Name:    "mathlib",
			Tree:    libTree,
			Modules: []hir.ModuleDecls{{Module: libTree.RootID, Decls: []astshim.Node{double}}},
		},
		{
			Name:      "app",
			Tree:      appTree,
			Modules:   []hir.ModuleDecls{{Module: appTree.RootID, Decls: []astshim.Node{run}}},
			DependsOn: []string{"mathlib"},
		},
		{
			Name:    "broken",
			Tree:    brokenTree,
			Modules: []hir.ModuleDecls{{Module: brokenTree.RootID, Decls: []astshim.Node{widget, bad}}},
		},
	}
}

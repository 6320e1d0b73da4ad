package resolve

import (
	"testing"

	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/intern"
	"github.com/flux-lang/flux-core/internal/moduletree"
)

func TestResolvePublicItemInRootModule(t *testing.T) {
	words := intern.New()
	tree := moduletree.New(words.GetOrIntern("app"), "app")
	item := moduletree.ItemId(1)
	name := words.GetOrIntern("Widget")
	tree.Get(tree.RootID).Scope[name] = moduletree.ScopeEntry{Visibility: moduletree.Public, Item: item}

	r := New("app", tree, nil, nil, nil)
	got, diag := r.Resolve([]intern.Word{name}, tree.RootID, tree.RootID)
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %+v", diag)
	}
	if got.Item != item {
		t.Fatalf("expected item %d, got %d", item, got.Item)
	}
}

func TestResolveDropsLeadingPackageSegment(t *testing.T) {
	words := intern.New()
	pkgName := words.GetOrInternStatic("app")
	tree := moduletree.New(pkgName, "app")
	item := moduletree.ItemId(2)
	name := words.GetOrIntern("Widget")
	tree.Get(tree.RootID).Scope[name] = moduletree.ScopeEntry{Visibility: moduletree.Public, Item: item}

	r := New("app", tree, nil, nil, nil)
	got, diag := r.Resolve([]intern.Word{pkgName, name}, tree.RootID, tree.RootID)
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %+v", diag)
	}
	if got.Item != item {
		t.Fatalf("expected item %d, got %d", item, got.Item)
	}
}

func TestResolvePrivateItemFromOutsideFails(t *testing.T) {
	words := intern.New()
	tree := moduletree.New(words.GetOrIntern("app"), "app")
	child := tree.AddChildModule(tree.RootID, words.GetOrIntern("inner"), "inner.flux")
	name := words.GetOrIntern("Secret")
	tree.Get(child).Scope[name] = moduletree.ScopeEntry{Visibility: moduletree.Private, Item: 3}

	r := New("app", tree, nil, nil, nil)
	_, diag := r.Resolve([]intern.Word{words.GetOrIntern("inner"), name}, tree.RootID, tree.RootID)
	if diag == nil {
		t.Fatal("expected a PrivateItem diagnostic")
	}
	if diag.Code != diagnostics.CodePrivateItem {
		t.Fatalf("got code %s", diag.Code)
	}
}

func TestResolvePrivateItemFromDescendantSucceeds(t *testing.T) {
	words := intern.New()
	tree := moduletree.New(words.GetOrIntern("app"), "app")
	child := tree.AddChildModule(tree.RootID, words.GetOrIntern("inner"), "inner.flux")
	name := words.GetOrIntern("Secret")
	tree.Get(child).Scope[name] = moduletree.ScopeEntry{Visibility: moduletree.Private, Item: 3}

	r := New("app", tree, nil, nil, nil)
	got, diag := r.Resolve([]intern.Word{words.GetOrIntern("inner"), name}, child, child)
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %+v", diag)
	}
	if got.Item != 3 {
		t.Fatalf("expected item 3, got %d", got.Item)
	}
}

func TestResolveUnknownPathFallsThroughToBuiltins(t *testing.T) {
	words := intern.New()
	tree := moduletree.New(words.GetOrIntern("app"), "app")
	u32 := words.GetOrInternStatic("u32")
	builtins := map[intern.Word]moduletree.ItemId{u32: 100}

	r := New("app", tree, nil, nil, builtins)
	got, diag := r.Resolve([]intern.Word{u32}, tree.RootID, tree.RootID)
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %+v", diag)
	}
	if got.Kind != moduletree.ItemKindBuiltin {
		t.Fatalf("expected a builtin resolution, got %+v", got)
	}
}

type stubEnums struct {
	enumItem  moduletree.ItemId
	variants  map[intern.Word]moduletree.ItemId
}

func (s stubEnums) IsEnum(pkg string, item moduletree.ItemId) bool { return item == s.enumItem }
func (s stubEnums) Variant(pkg string, item moduletree.ItemId, name intern.Word) (moduletree.ItemId, bool) {
	v, ok := s.variants[name]
	return v, ok
}

func TestResolveEnumVariantSpecialCase(t *testing.T) {
	words := intern.New()
	tree := moduletree.New(words.GetOrIntern("app"), "app")
	enumName := words.GetOrIntern("Color")
	tree.Get(tree.RootID).Scope[enumName] = moduletree.ScopeEntry{Visibility: moduletree.Public, Item: 7}

	variantName := words.GetOrIntern("Red")
	enums := stubEnums{enumItem: 7, variants: map[intern.Word]moduletree.ItemId{variantName: 42}}

	r := New("app", tree, nil, enums, nil)
	got, diag := r.Resolve([]intern.Word{enumName, variantName}, tree.RootID, tree.RootID)
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %+v", diag)
	}
	if got.Item != 42 {
		t.Fatalf("expected variant item 42, got %d", got.Item)
	}
}

func TestResolveUnknownEnumVariant(t *testing.T) {
	words := intern.New()
	tree := moduletree.New(words.GetOrIntern("app"), "app")
	enumName := words.GetOrIntern("Color")
	tree.Get(tree.RootID).Scope[enumName] = moduletree.ScopeEntry{Visibility: moduletree.Public, Item: 7}
	enums := stubEnums{enumItem: 7, variants: map[intern.Word]moduletree.ItemId{}}

	r := New("app", tree, nil, enums, nil)
	_, diag := r.Resolve([]intern.Word{enumName, words.GetOrIntern("Blue")}, tree.RootID, tree.RootID)
	if diag == nil || diag.Code != diagnostics.CodeUnknownEnumVariant {
		t.Fatalf("expected UnknownEnumVariant, got %+v", diag)
	}
}

func TestResolveUseAliasFixedPoint(t *testing.T) {
	words := intern.New()
	tree := moduletree.New(words.GetOrIntern("app"), "app")
	target := words.GetOrIntern("Widget")
	tree.Get(tree.RootID).Scope[target] = moduletree.ScopeEntry{Visibility: moduletree.Public, Item: 9}

	r := New("app", tree, nil, nil, nil)
	alias := words.GetOrIntern("W")
	r.QueueUse(tree.RootID, []intern.Word{target}, alias, diagnostics.Span{})

	diags := r.ResolveUses()
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
	entry, ok := tree.Get(tree.RootID).Scope[alias]
	if !ok || entry.Item != 9 {
		t.Fatalf("expected alias to resolve to item 9, got %+v (ok=%v)", entry, ok)
	}
}

func TestResolveUseNeverResolvesReportsAfterFixedPoint(t *testing.T) {
	words := intern.New()
	tree := moduletree.New(words.GetOrIntern("app"), "app")
	r := New("app", tree, nil, nil, nil)
	span := diagnostics.Span{File: "a.flux", Start: 1, End: 2}
	r.QueueUse(tree.RootID, []intern.Word{words.GetOrIntern("Nope")}, words.GetOrIntern("N"), span)

	diags := r.ResolveUses()
	if len(diags) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(diags))
	}
}

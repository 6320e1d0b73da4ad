package hir

import (
	"github.com/flux-lang/flux-core/internal/astshim"
	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/intern"
	"github.com/flux-lang/flux-core/internal/typeir"
)

// genericScope maps a generic parameter's name to the TypeId materialized
// for it, so a type reference written in terms of that name resolves to the
// same KGeneric rather than a fresh unrelated one.
type genericScope map[intern.Word]typeir.TypeId

// lowerTypeRef turns a TypeRef as written in source into a TypeId (spec
// §4.7 Pass 1 "lower field/variant types"). A single bare segment matching a
// name in generics resolves to that generic; a single bare segment "This"
// becomes a KThisPath; anything else becomes a concrete path verbatim —
// unification compares paths by segment identity (internal/unify
// unifyConcrete), so a path type never needs to be resolved to an item id at
// this layer.
func (it *ItemTree) lowerTypeRef(ref *astshim.TypeRef, generics genericScope) typeir.TypeId {
	if ref == nil {
		return it.arena.InsertUnknown(diagnostics.Span{})
	}
	if ref.Ptr != nil {
		elem := it.lowerTypeRef(ref.Ptr, generics)
		return it.arena.Insert(typeir.KConcrete{Concrete: typeir.CPtr{Elem: elem}}, ref.Span)
	}
	if ref.Array != nil {
		elem := it.lowerTypeRef(ref.Array.Elem, generics)
		return it.arena.Insert(typeir.KConcrete{Concrete: typeir.CArray{Elem: elem, Len: ref.Array.Len}}, ref.Span)
	}
	if ref.Tuple != nil {
		elems := make([]typeir.TypeId, len(ref.Tuple))
		for i := range ref.Tuple {
			elems[i] = it.lowerTypeRef(&ref.Tuple[i], generics)
		}
		return it.arena.Insert(typeir.KConcrete{Concrete: typeir.CTuple{Elems: elems}}, ref.Span)
	}

	if len(ref.Segments) == 1 {
		if it.words.Resolve(ref.Segments[0]) == "This" {
			return it.arena.Insert(typeir.KThisPath{Segments: ref.Segments}, ref.Span)
		}
		if id, ok := generics[ref.Segments[0]]; ok {
			return id
		}
		if alias, ok := it.aliasesByName[ref.Segments[0]]; ok {
			aliased := alias.Aliased
			return it.arena.Insert(typeir.KConcrete{Concrete: typeir.CPath{Segments: ref.Segments, AliasOf: &aliased}}, ref.Span)
		}
	} else if len(ref.Segments) > 1 && it.words.Resolve(ref.Segments[0]) == "This" {
		return it.arena.Insert(typeir.KThisPath{Segments: ref.Segments}, ref.Span)
	}

	args := make([]typeir.TypeId, len(ref.Args))
	for i := range ref.Args {
		args[i] = it.lowerTypeRef(&ref.Args[i], generics)
	}
	return it.arena.Insert(typeir.KConcrete{Concrete: typeir.CPath{Segments: ref.Segments, Args: args}}, ref.Span)
}

// lowerTraitBound turns a TraitBoundRef into a TraitRestriction, resolving
// the trait by its last segment's name against traits already registered by
// registerHeaders (spec §4.7 Pass 1: where-clause lowering). A name that
// isn't a known trait yet gets TraitID 0, the "no such trait" sentinel —
// verify_where_clause (C5) reports it as UnresolvedPath once the restriction
// is actually checked, rather than this layer duplicating that diagnostic.
func (it *ItemTree) lowerTraitBound(b astshim.TraitBoundRef, generics genericScope) typeir.TraitRestriction {
	args := make([]typeir.TypeId, len(b.Args))
	for i := range b.Args {
		args[i] = it.lowerTypeRef(&b.Args[i], generics)
	}
	name := b.Segments[len(b.Segments)-1]
	traitID := it.traitsByName[name] // zero value is the sentinel when absent
	return typeir.TraitRestriction{TraitID: traitID, Args: args, Span: b.Span}
}

// lowerGenericParams materializes a fresh KGeneric per declared parameter
// (spec §3 Type.kind Generic) not already present in parent, checks for
// duplicate names within decls and against parent (spec §4.7
// DuplicateGenericParams, "fallback union" — a name already bound in parent
// — e.g. a trait's own generic, reused on one of its method signatures — is
// not reported here (lowerTrait reports that case itself); only a name
// repeated a second time within the same decls
// list is, and it reuses the existing TypeId rather than creating a
// disconnected duplicate), and returns the populated scope (parent plus any
// newly declared names) alongside the newly-declared parameter list.
func (it *ItemTree) lowerGenericParams(decls []astshim.GenericParamDecl, span diagnostics.Span, parent genericScope) ([]GenericParam, genericScope, []*diagnostics.Diagnostic) {
	scope := make(genericScope, len(decls)+len(parent))
	for k, v := range parent {
		scope[k] = v
	}
	var params []GenericParam
	var diags []*diagnostics.Diagnostic
	declaredHere := make(map[intern.Word]bool, len(decls))

	for _, d := range decls {
		if declaredHere[d.Name] {
			diags = append(diags, diagnostics.New(diagnostics.CodeDuplicateGenericParams, span,
				"duplicate generic parameter name"))
			continue
		}
		declaredHere[d.Name] = true
		if _, inherited := parent[d.Name]; inherited {
			continue
		}
		id := it.arena.Insert(typeir.KGeneric{Name: d.Name}, span)
		scope[d.Name] = id
		restrictions := make([]typeir.TraitRestriction, len(d.Restrictions))
		for i, r := range d.Restrictions {
			restrictions[i] = it.lowerTraitBound(r, scope)
		}
		it.arena.SetWith(id, func(t typeir.Type) typeir.Type {
			t.Kind = typeir.KGeneric{Name: d.Name, Restrictions: restrictions}
			return t
		})
		params = append(params, GenericParam{Name: d.Name, ID: id, Restrictions: restrictions})
	}
	return params, scope, diags
}

// checkUnusedGenerics reports a generic declared but never mentioned in any
// field/variant/where-bound type (spec §4.7 Pass 1 Struct/Enum rule). used
// is populated by walking every lowered field/variant type and every
// restriction argument looking for a reference back to one of params' ids.
func checkUnusedGenerics(params []GenericParam, used map[typeir.TypeId]bool, span diagnostics.Span) []*diagnostics.Diagnostic {
	var diags []*diagnostics.Diagnostic
	for _, p := range params {
		if !used[p.ID] && len(p.Restrictions) == 0 {
			diags = append(diags, diagnostics.New(diagnostics.CodeUnusedGenericParams, span,
				"generic parameter is never used"))
		}
	}
	return diags
}

// markUsedGenerics walks ty's structure (following explicit arg lists, not
// Ref chains — Pass 1 types are freshly built and never yet unified)
// recording every generic TypeId it touches.
func markUsedGenerics(arena *typeir.Arena, ty typeir.TypeId, used map[typeir.TypeId]bool) {
	k := arena.GetKind(ty)
	switch kk := k.(type) {
	case typeir.KGeneric:
		used[ty] = true
	case typeir.KConcrete:
		switch c := kk.Concrete.(type) {
		case typeir.CPath:
			for _, a := range c.Args {
				markUsedGenerics(arena, a, used)
			}
		case typeir.CPtr:
			markUsedGenerics(arena, c.Elem, used)
		case typeir.CArray:
			markUsedGenerics(arena, c.Elem, used)
		case typeir.CTuple:
			for _, e := range c.Elems {
				markUsedGenerics(arena, e, used)
			}
		}
	}
}

package hir

import (
	"github.com/flux-lang/flux-core/internal/astshim"
	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/intern"
	"github.com/flux-lang/flux-core/internal/moduletree"
	"github.com/flux-lang/flux-core/internal/typeir"
)

// ModuleDecls is the astshim input to Pass 1: every top-level declaration
// node found in one module, in source order.
type ModuleDecls struct {
	Module moduletree.ModuleId
	Decls  []astshim.Node
}

// LowerPackage runs both C7 passes' item-tree half (Pass 1) over every
// module's declarations: first a header pass that gives every struct, enum,
// trait, and function a stable ItemId (and every trait a TraitId) and
// installs it into the module's scope — so a type or where-clause in one
// module can reference an item declared later, or in a sibling module —
// then a detail pass that lowers each item's full shape. Function and apply
// method bodies are not lowered here; Pass 2 (LowerFunctionBody /
// LowerApplyMethodBody) does that once
// every item's signature exists.
func (it *ItemTree) LowerPackage(tree *moduletree.Tree, modules []ModuleDecls, pkg string) []*diagnostics.Diagnostic {
	var diags []*diagnostics.Diagnostic

	for _, md := range modules {
		it.registerHeaders(tree, md.Module, md.Decls)
	}
	for _, md := range modules {
		diags = append(diags, it.lowerModuleDetails(tree, md.Module, md.Decls)...)
	}
	diags = append(diags, it.verifyApplies()...)
	return diags
}

// verifyApplies cross-checks every apply block that names a trait against
// that trait's declared method and associated-type set (spec §4.7 Apply
// rule, §8 scenarios 3 and 4), once every module's details — including
// every trait's own method/assoc-type list — have been lowered. Doing this
// as a pass over the finished it.Applies/it.traitsByID, rather than inline
// inside lowerApply, avoids depending on a trait being detailed before the
// applies that reference it: lowerModuleDetails processes declarations in
// source order across possibly several modules, so an apply can easily be
// lowered before its trait is.
func (it *ItemTree) verifyApplies() []*diagnostics.Diagnostic {
	var diags []*diagnostics.Diagnostic
	for _, apply := range it.Applies {
		if apply.TraitRestr == nil {
			continue
		}
		trait, ok := it.traitsByID[apply.TraitRestr.TraitID]
		if !ok {
			continue
		}
		diags = append(diags, verifyApplyMethods(apply, trait)...)
		diags = append(diags, verifyApplyAssocTypes(apply, trait)...)
	}
	return diags
}

func verifyApplyMethods(apply *ApplyItem, trait *TraitItem) []*diagnostics.Diagnostic {
	var diags []*diagnostics.Diagnostic

	traitMethods := make(map[intern.Word]*MethodSig, len(trait.Methods))
	for i := range trait.Methods {
		traitMethods[trait.Methods[i].Name] = &trait.Methods[i]
	}
	applyMethods := make(map[intern.Word]*MethodSig, len(apply.Methods))
	for i := range apply.Methods {
		applyMethods[apply.Methods[i].Name] = &apply.Methods[i]
	}

	for name, m := range applyMethods {
		if _, ok := traitMethods[name]; !ok {
			diags = append(diags, diagnostics.New(diagnostics.CodeMethodsDontBelongInApply, m.Span,
				"this method is not declared by the applied trait"))
		}
	}
	var missing []intern.Word
	for name := range traitMethods {
		if _, ok := applyMethods[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		diags = append(diags, diagnostics.New(diagnostics.CodeUnimplementedTraitMethods, apply.Span,
			"this apply block is missing one or more methods required by the trait"))
	}

	for name, am := range applyMethods {
		tm, ok := traitMethods[name]
		if !ok {
			continue
		}
		if len(am.Generics) != len(tm.Generics) {
			diags = append(diags, diagnostics.New(diagnostics.CodeWherePredicatesDontMatchInApply, am.Span,
				"this method's generic parameters don't match the trait method's"))
			continue
		}
		for i := range am.Generics {
			if len(am.Generics[i].Restrictions) != len(tm.Generics[i].Restrictions) {
				diags = append(diags, diagnostics.New(diagnostics.CodeWherePredicatesDontMatchInApply, am.Span,
					"this method's where predicates don't match the trait method's"))
				break
			}
		}
	}
	return diags
}

func verifyApplyAssocTypes(apply *ApplyItem, trait *TraitItem) []*diagnostics.Diagnostic {
	var diags []*diagnostics.Diagnostic

	traitAssoc := make(map[intern.Word]struct{}, len(trait.AssocTypes))
	for _, a := range trait.AssocTypes {
		traitAssoc[a.Name] = struct{}{}
	}

	for name := range apply.AssocTypeAssigns {
		if _, ok := traitAssoc[name]; !ok {
			diags = append(diags, diagnostics.New(diagnostics.CodeAssocTypeDoesntBelong, apply.Span,
				"this associated type is not declared by the applied trait"))
		}
	}
	var unassigned []intern.Word
	for name := range traitAssoc {
		if _, ok := apply.AssocTypeAssigns[name]; !ok {
			unassigned = append(unassigned, name)
		}
	}
	if len(unassigned) > 0 {
		diags = append(diags, diagnostics.New(diagnostics.CodeUnassignedAssocTypes, apply.Span,
			"this apply block leaves one or more of the trait's associated types unassigned"))
	}
	return diags
}

// registerHeaders assigns ids and scope entries before any detail lowering,
// mirroring the teacher's IsHeadersAnalyzed/IsBodiesAnalyzed module-loading
// split (funvibe-funxy ModuleLoader).
func (it *ItemTree) registerHeaders(tree *moduletree.Tree, mod moduletree.ModuleId, decls []astshim.Node) {
	scope := tree.Get(mod).Scope
	for _, n := range decls {
		switch d := n.(type) {
		case astshim.StructDecl:
			id := it.allocItemID()
			scope[d.Name] = entryFor(d.Private, id)
		case astshim.EnumDecl:
			id := it.allocItemID()
			scope[d.Name] = entryFor(d.Private, id)
		case astshim.TraitDecl:
			id := it.allocItemID()
			traitID := it.nextTraitID
			it.nextTraitID++
			it.traitsByName[d.Name] = traitID
			scope[d.Name] = entryFor(d.Private, id)
		case astshim.FunctionDecl:
			id := it.allocItemID()
			scope[d.Name] = entryFor(d.Private, id)
		case astshim.AliasDecl:
			id := it.allocItemID()
			scope[d.Name] = entryFor(d.Private, id)
		}
	}
}

func entryFor(private bool, id moduletree.ItemId) moduletree.ScopeEntry {
	vis := moduletree.Public
	if private {
		vis = moduletree.Private
	}
	return moduletree.ScopeEntry{Visibility: vis, Kind: moduletree.ItemKindValue, Item: id}
}

// lowerModuleDetails lowers the full shape of every item in decls, now that
// every sibling and cross-module reference has a header to resolve against.
func (it *ItemTree) lowerModuleDetails(tree *moduletree.Tree, mod moduletree.ModuleId, decls []astshim.Node) []*diagnostics.Diagnostic {
	var diags []*diagnostics.Diagnostic
	scope := tree.Get(mod).Scope

	// Aliases are lowered first so a struct/enum/function field referencing
	// one earlier in source order still finds it in aliasesByName.
	for _, n := range decls {
		if d, ok := n.(astshim.AliasDecl); ok {
			id := scope[d.Name].Item
			aliased := it.lowerTypeRef(&d.Aliased, nil)
			a := &AliasItem{ID: id, Name: d.Name, Aliased: aliased}
			it.Aliases[id] = a
			it.aliasesByName[d.Name] = a
		}
	}

	for _, n := range decls {
		switch d := n.(type) {
		case astshim.AliasDecl:
			// handled above
		case astshim.StructDecl:
			id := scope[d.Name].Item
			diags = append(diags, it.lowerStruct(id, d)...)
		case astshim.EnumDecl:
			id := scope[d.Name].Item
			diags = append(diags, it.lowerEnum(id, d)...)
		case astshim.TraitDecl:
			id := scope[d.Name].Item
			diags = append(diags, it.lowerTrait(id, d)...)
		case astshim.FunctionDecl:
			id := scope[d.Name].Item
			it.Functions[id] = it.lowerFunctionSig(id, d)
		case astshim.ApplyDecl:
			id := it.allocItemID()
			apply, applyDiags := it.lowerApply(id, d)
			it.Applies[id] = apply
			diags = append(diags, applyDiags...)
		case astshim.UseDecl, astshim.ModDecl:
			// Scope wiring for these is the moduletree builder's job (spec
			// §1 Out of scope: source-file discovery); nothing further to
			// lower here.
		}
	}
	return diags
}

func (it *ItemTree) lowerStruct(id moduletree.ItemId, d astshim.StructDecl) []*diagnostics.Diagnostic {
	generics, scope, diags := it.lowerGenericParams(d.Generics, d.Span, nil)
	fields := make([]Field, len(d.Fields))
	used := make(map[typeir.TypeId]bool)
	for i, f := range d.Fields {
		ty := it.lowerTypeRef(&f.Ty, scope)
		fields[i] = Field{Name: f.Name, Ty: ty}
		markUsedGenerics(it.arena, ty, used)
	}
	for _, g := range generics {
		for _, r := range g.Restrictions {
			for _, a := range r.Args {
				markUsedGenerics(it.arena, a, used)
			}
		}
	}
	diags = append(diags, checkUnusedGenerics(generics, used, d.Span)...)
	s := &StructItem{ID: id, Name: d.Name, Generics: generics, Fields: fields, Span: d.Span}
	it.Structs[id] = s
	it.structsByName[d.Name] = s
	return diags
}

func (it *ItemTree) lowerEnum(id moduletree.ItemId, d astshim.EnumDecl) []*diagnostics.Diagnostic {
	generics, scope, diags := it.lowerGenericParams(d.Generics, d.Span, nil)
	variants := make([]Variant, len(d.Variants))
	used := make(map[typeir.TypeId]bool)
	for i, v := range d.Variants {
		var payload *typeir.TypeId
		if v.Payload != nil {
			ty := it.lowerTypeRef(v.Payload, scope)
			payload = &ty
			markUsedGenerics(it.arena, ty, used)
		}
		variants[i] = Variant{Name: v.Name, Payload: payload}
	}
	diags = append(diags, checkUnusedGenerics(generics, used, d.Span)...)
	e := &EnumItem{ID: id, Name: d.Name, Generics: generics, Variants: variants, Span: d.Span}
	it.Enums[id] = e
	it.enumsByName[d.Name] = e
	return diags
}

// lowerTrait lowers generics, associated types, and method signatures (spec
// §4.7 Pass 1 Trait rule): each method's generics are unioned with the
// trait's own (lowerGenericParams' fallback union), and each method generic
// that repeats a trait generic's name is reported as DuplicateGenericParams
// while still resolving to the trait's parameter.
func (it *ItemTree) lowerTrait(id moduletree.ItemId, d astshim.TraitDecl) []*diagnostics.Diagnostic {
	traitID := it.traitsByName[d.Name]
	generics, scope, diags := it.lowerGenericParams(d.Generics, d.Span, nil)
	selfID := it.arena.Insert(typeir.KGeneric{Name: it.words.GetOrInternStatic("This")}, d.Span)

	assocTypes := make([]AssocTypeSig, len(d.AssocTypes))
	for i, a := range d.AssocTypes {
		restrictions := make([]typeir.TraitRestriction, len(a.Restrictions))
		for j, r := range a.Restrictions {
			restrictions[j] = it.lowerTraitBound(r, scope)
		}
		assocTypes[i] = AssocTypeSig{Name: a.Name, Restrictions: restrictions}
	}

	methods := make([]MethodSig, len(d.Methods))
	for i, m := range d.Methods {
		methodGenerics, methodScope, mdiags := it.lowerGenericParams(m.Generics, m.Span, scope)
		diags = append(diags, mdiags...)
		for _, g := range m.Generics {
			if _, dup := scope[g.Name]; dup {
				diags = append(diags, diagnostics.New(diagnostics.CodeDuplicateGenericParams, m.Span,
					"method generic parameter repeats one declared by the trait"))
			}
		}
		params := make([]Field, len(m.Params))
		for j, p := range m.Params {
			params[j] = Field{Name: p.Name, Ty: it.lowerTypeRef(&p.Ty, methodScope)}
		}
		methods[i] = MethodSig{
			Name:     m.Name,
			Generics: methodGenerics,
			Params:   params,
			ReturnTy: it.lowerTypeRef(m.ReturnTy, methodScope),
			Body:     nil,
			Span:     m.Span,
		}
	}

	t := &TraitItem{
		ID: id, TraitID: traitID, Name: d.Name, SelfID: selfID,
		Generics: generics, AssocTypes: assocTypes, Methods: methods, Span: d.Span,
	}
	it.Traits[id] = t
	it.traitsByID[traitID] = t
	return diags
}

func (it *ItemTree) lowerFunctionSig(id moduletree.ItemId, d astshim.FunctionDecl) *FunctionItem {
	generics, scope, _ := it.lowerGenericParams(d.Generics, d.Span, nil)
	params := make([]Field, len(d.Params))
	for i, p := range d.Params {
		params[i] = Field{Name: p.Name, Ty: it.lowerTypeRef(&p.Ty, scope)}
	}
	return &FunctionItem{
		ID: id, Name: d.Name, Generics: generics, Params: params,
		ReturnTy: it.lowerTypeRef(d.ReturnTy, scope), Body: d.Body, Span: d.Span,
	}
}

// lowerApply lowers an `apply` block (spec §4.7 Pass 1 Apply rule): its own
// generics, the trait path (if any), the implementor type, associated-type
// assignments, and method signatures with generics unioned with the
// apply's own.
func (it *ItemTree) lowerApply(id moduletree.ItemId, d astshim.ApplyDecl) (*ApplyItem, []*diagnostics.Diagnostic) {
	generics, scope, diags := it.lowerGenericParams(d.Generics, d.Span, nil)
	implTy := it.lowerTypeRef(&d.ImplementorTy, scope)

	var traitRestr *typeir.TraitRestriction
	if d.TraitPath != nil {
		r := it.lowerTraitBound(*d.TraitPath, scope)
		traitRestr = &r
	}

	assigns := make(map[intern.Word]typeir.TypeId, len(d.AssocTypes))
	for _, a := range d.AssocTypes {
		assigns[a.Name] = it.lowerTypeRef(&a.Ty, scope)
	}

	methods := make([]MethodSig, len(d.Methods))
	for i, m := range d.Methods {
		methodGenerics, methodScope, mdiags := it.lowerGenericParams(m.Generics, m.Span, scope)
		diags = append(diags, mdiags...)
		params := make([]Field, len(m.Params))
		for j, p := range m.Params {
			params[j] = Field{Name: p.Name, Ty: it.lowerTypeRef(&p.Ty, methodScope)}
		}
		methods[i] = MethodSig{
			Name:     m.Name,
			Generics: methodGenerics,
			Params:   params,
			ReturnTy: it.lowerTypeRef(m.ReturnTy, methodScope),
			Body:     m.Body,
			Span:     m.Span,
		}
	}

	return &ApplyItem{
		ID: id, Generics: generics, TraitRestr: traitRestr, ImplementorTy: implTy,
		AssocTypeAssigns: assigns, Methods: methods, Span: d.Span,
	}, diags
}

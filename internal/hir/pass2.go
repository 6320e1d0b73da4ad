package hir

import (
	"strconv"

	"github.com/flux-lang/flux-core/internal/astshim"
	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/intern"
	"github.com/flux-lang/flux-core/internal/moduletree"
	"github.com/flux-lang/flux-core/internal/resolve"
	"github.com/flux-lang/flux-core/internal/tenv"
	"github.com/flux-lang/flux-core/internal/traitres"
	"github.com/flux-lang/flux-core/internal/typeir"
	"github.com/flux-lang/flux-core/internal/unify"
)

// Solver is the subset of the obligation solver (C8) body lowering needs:
// drain a TEnv's obligation queue to a fixed point, reporting whatever
// residuals remain unsolved (spec §4.7 Pass 2 step 5). An interface rather
// than a direct import of internal/solver, matching the forward-dependency
// pattern used for traitres.TraitDecls and resolve.Dependencies, since
// nothing about HIR lowering needs the solver's own internals.
type Solver interface {
	Solve(env *tenv.TEnv, uni *unify.Unifier, traits *traitres.Resolver) []*diagnostics.Diagnostic
}

// ItemsLookup resolves a package name to its compiled item tree, for a path
// that resolve.Resolved names as belonging to a dependency rather than this
// Lowerer's own package (spec §4.6 step 2). An interface rather than a
// direct import of internal/driver, matching the forward-dependency
// pattern used for Solver/traitres.TraitDecls/resolve.Dependencies.
type ItemsLookup interface {
	ItemsFor(pkg string) (*ItemTree, bool)

	// Dependencies lists every other package's item tree this lookup knows
	// about, for method-call dispatch (spec §9 Open Question 1): unlike a
	// function/struct/enum path, a method call names no package at all —
	// `recv.method(...)` is resolved by matching recv's type against every
	// apply block's ImplementorTy, so the search has to range over this
	// package's own Applies plus every dependency's.
	Dependencies() []*ItemTree
}

// prelude maps a binary operator spelling to the prelude trait name it
// desugars to (spec §4.7.1 "look up the corresponding trait in the
// prelude-binop map").
var prelude = map[string]string{
	"+": "Add",
	"-": "Sub",
	"*": "Mul",
	"/": "Div",
}

// Lowerer is Pass 2's body-lowering context: the shared arena collaborators
// (unifier, trait resolver, solver) plus the item tree and path resolver
// built by Pass 1 and C6, bundled the way the teacher's Analyzer bundles its
// symbol table, type map, and module loader into one struct threaded
// through every Visit* call.
type Lowerer struct {
	words    *intern.Interner
	uni      *unify.Unifier
	traits   *traitres.Resolver
	items    *ItemTree
	resolver *resolve.Resolver
	solver   Solver
	pkg      string
	boolWord intern.Word

	// itemsOf looks up another package's item tree for a path that
	// resolved.Package names as something other than this Lowerer's own
	// pkg (spec §4.6 step 2 dependency lookup). Left nil by NewLowerer and
	// wired separately via SetItemsLookup — tests that never reference a
	// dependency's items don't need to provide one.
	itemsOf ItemsLookup

	// diags accumulates shape diagnostics raised directly during Pass 2
	// (IncorrectNumArgsInCall and friends, as opposed to TypeMismatch/
	// CouldNotInfer which come back through the solver). Reset at the
	// start of each body — lowering one body at a time is safe because
	// the core is single-threaded cooperative (spec §5).
	diags []*diagnostics.Diagnostic
}

// NewLowerer builds a Lowerer over already-wired collaborators (see
// internal/driver for the construction order).
func NewLowerer(words *intern.Interner, uni *unify.Unifier, traits *traitres.Resolver, items *ItemTree, resolver *resolve.Resolver, solver Solver, pkg string) *Lowerer {
	return &Lowerer{
		words: words, uni: uni, traits: traits, items: items,
		resolver: resolver, solver: solver, pkg: pkg,
		boolWord: words.GetOrInternStatic("bool"),
	}
}

// SetItemsLookup completes the Lowerer's wiring for cross-package item
// references, mirroring traitres.Resolver.SetUnifier/traittab.Table.SetProber's
// construct-then-complete pattern.
func (l *Lowerer) SetItemsLookup(lookup ItemsLookup) { l.itemsOf = lookup }

// itemsFor returns the item tree a resolved path's Package names: this
// Lowerer's own items for its own package (the common case, and the only
// one available when itemsOf is unset), or whatever itemsOf resolves the
// name to, falling back to l.items if the dependency can't be found (the
// caller's own resolved.Item lookup then simply misses, same as today).
func (l *Lowerer) itemsFor(pkg string) *ItemTree {
	if pkg == "" || pkg == l.pkg || l.itemsOf == nil {
		return l.items
	}
	if other, ok := l.itemsOf.ItemsFor(pkg); ok {
		return other
	}
	return l.items
}

// applySources returns every ItemTree whose Applies a method call may
// dispatch into: this Lowerer's own package first, then whatever
// dependencies itemsOf knows about (nil when unset, matching the
// single-package tests that never wire one).
func (l *Lowerer) applySources() []*ItemTree {
	if l.itemsOf == nil {
		return []*ItemTree{l.items}
	}
	return append([]*ItemTree{l.items}, l.itemsOf.Dependencies()...)
}

// importType copies ty into env's own arena when it belongs to a different
// package's item tree than the one currently being lowered — a TypeId is
// only a valid index into the arena that minted it (spec §4.1), and
// internal/driver builds a fresh typeir.Arena per compiled package, so a
// dependency's function signature or apply implementor type always needs
// typeir.Arena.Import before it can be compared or unified against an id
// native to this body's arena. Same-package lookups (items == l.items, the
// common case) are a no-op: foreign and local arena are identical.
func (l *Lowerer) importType(env *tenv.TEnv, items *ItemTree, ty typeir.TypeId) typeir.TypeId {
	foreign := items.Arena()
	local := env.Arena()
	if foreign == local {
		return ty
	}
	return local.Import(foreign, ty)
}

// LoweredBody is Pass 2's output for one function or apply method.
type LoweredBody struct {
	Body        *Expr
	Diagnostics []*diagnostics.Diagnostic
}

// LowerFunctionBody runs Pass 2 over fn (spec §4.7 Pass 2 steps 1-5): a
// fresh TEnv, no active This context, parameters bound to fresh ids, the
// body lowered, a final return-type equality, then the solver drained.
func (l *Lowerer) LowerFunctionBody(arena *typeir.Arena, curModule moduletree.ModuleId, fn *FunctionItem) *LoweredBody {
	env := tenv.New(arena)
	env.SetThisCtx(tenv.NoneThisCtx())
	return l.lowerBodyCommon(env, curModule, fn.Params, fn.ReturnTy, fn.Body, fn.Span)
}

// LowerApplyMethodBody runs Pass 2 over one method of an apply block,
// installing the ThisCtx the spec requires (spec §4.7 Pass 2 step 1: "apply
// -> TypeApplication or TraitApplication").
func (l *Lowerer) LowerApplyMethodBody(arena *typeir.Arena, curModule moduletree.ModuleId, apply *ApplyItem, method *MethodSig) *LoweredBody {
	env := tenv.New(arena)
	var ctx tenv.ThisCtx
	if apply.TraitRestr != nil {
		ctx = tenv.TraitApplicationThisCtx(apply.ImplementorTy, *apply.TraitRestr)
		ctx.SetAssociatedTypes(apply.AssocTypeAssigns)
	} else {
		ctx = tenv.TypeApplicationThisCtx(apply.ImplementorTy)
	}
	env.SetThisCtx(ctx)
	return l.lowerBodyCommon(env, curModule, method.Params, method.ReturnTy, method.Body, method.Span)
}

func (l *Lowerer) lowerBodyCommon(env *tenv.TEnv, curModule moduletree.ModuleId, params []Field, returnTy typeir.TypeId, body astshim.Node, span diagnostics.Span) *LoweredBody {
	l.diags = nil
	l.uni.SetEnv(env)
	for _, p := range params {
		local := env.MakeRef(p.Ty, span)
		env.InsertLocal(p.Name, local)
	}

	lowered := l.lowerExpr(env, curModule, body)
	env.AddEquality(lowered.Type, returnTy, lowered.Span)

	solved := l.solver.Solve(env, l.uni, l.traits)
	all := append(l.diags, solved...)
	return &LoweredBody{Body: lowered, Diagnostics: all}
}

func (l *Lowerer) poisoned(env *tenv.TEnv, span diagnostics.Span) *Expr {
	return &Expr{Kind: EKPoisoned, Type: env.InsertUnknown(span), Span: span}
}

// lowerExpr dispatches on n's concrete shape (spec §4.7.1), mirroring the
// teacher's Visit*-by-type-switch analyzer walk.
func (l *Lowerer) lowerExpr(env *tenv.TEnv, mod moduletree.ModuleId, n astshim.Node) *Expr {
	if n == nil {
		return l.poisoned(env, diagnostics.Span{})
	}
	if n.IsPoisoned() {
		return l.poisoned(env, n.Range())
	}

	switch e := n.(type) {
	case astshim.IntLiteral:
		return l.lowerIntLiteral(env, e)
	case astshim.FloatLiteral:
		return &Expr{Kind: EKFloatLit, Type: env.InsertFloat(e.Span), Span: e.Span}
	case astshim.PathExpr:
		return l.lowerPath(env, mod, e)
	case astshim.BinaryExpr:
		return l.lowerBinary(env, mod, e)
	case astshim.CallExpr:
		return l.lowerCall(env, mod, e)
	case astshim.StructExpr:
		return l.lowerStructExpr(env, mod, e)
	case astshim.BlockExpr:
		return l.lowerBlock(env, mod, e)
	case astshim.IfExpr:
		return l.lowerIf(env, mod, e)
	case astshim.TupleExpr:
		return l.lowerTuple(env, mod, e)
	case astshim.AddrOfExpr:
		inner := l.lowerExpr(env, mod, e.Inner)
		ty := env.Arena().Insert(typeir.KConcrete{Concrete: typeir.CPtr{Elem: inner.Type}}, e.Span)
		return &Expr{Kind: EKAddrOf, Type: ty, Span: e.Span, Inner: inner}
	case astshim.MemberExpr:
		return l.lowerMember(env, mod, e)
	case astshim.IntrinsicExpr:
		return l.lowerIntrinsic(env, mod, e)
	case astshim.MissingChild:
		return l.poisoned(env, e.Range())
	default:
		return l.poisoned(env, n.Range())
	}
}

func (l *Lowerer) lowerIntLiteral(env *tenv.TEnv, e astshim.IntLiteral) *Expr {
	if _, err := strconv.ParseUint(e.Text, 10, 64); err != nil {
		l.diags = append(l.diags, diagnostics.New(diagnostics.CodePositiveIntegerOverflow, e.Span,
			"integer literal does not fit in 64 bits"))
		return &Expr{Kind: EKPoisoned, Type: env.InsertUnknown(e.Span), Span: e.Span, IntText: e.Text}
	}
	return &Expr{Kind: EKIntLit, Type: env.InsertInt(e.Span), Span: e.Span, IntText: e.Text}
}

// lowerPath implements spec §4.7.1's Path rule: a single segment tries a
// local first; otherwise (or on failure) the path is resolved as an item.
func (l *Lowerer) lowerPath(env *tenv.TEnv, mod moduletree.ModuleId, e astshim.PathExpr) *Expr {
	if len(e.Segments) == 1 {
		if id, ok := env.TryGetLocal(e.Segments[0]); ok {
			return &Expr{Kind: EKLocal, Type: id, Span: e.Span, Name: e.Segments[0]}
		}
	}

	resolved, diag := l.resolver.Resolve(e.Segments, mod, mod)
	if diag != nil {
		if len(e.Segments) == 1 {
			// A single bare segment that resolves as neither a local nor an
			// item is a reference to an undeclared name (spec §4.7.1 Path
			// rule) rather than whatever internal/resolve's own module-walk
			// diagnostic says — resolve doesn't know this segment was ever
			// tried as a local.
			l.diags = append(l.diags, diagnostics.New(diagnostics.CodeUnknownLocal, e.Span,
				"no local or item named this was found"))
		} else {
			diag.Primary.Span = e.Span
			l.diags = append(l.diags, diag)
		}
		return &Expr{Kind: EKPoisoned, Type: env.InsertUnknown(e.Span), Span: e.Span}
	}

	items := l.itemsFor(resolved.Package)
	if fn, ok := items.Functions[resolved.Item]; ok {
		return &Expr{Kind: EKItemRef, Type: l.importType(env, items, fn.ReturnTy), Span: e.Span, Name: e.Segments[len(e.Segments)-1]}
	}
	if s, ok := items.StructByName(e.Segments[len(e.Segments)-1]); ok {
		ty := l.instantiate(env, s.Name, len(s.Generics), e.Span)
		return &Expr{Kind: EKItemRef, Type: ty, Span: e.Span, Name: s.Name}
	}
	if enumItem, _, ok := items.VariantOf(resolved.Item); ok {
		enum := items.Enums[enumItem]
		ty := l.instantiate(env, enum.Name, len(enum.Generics), e.Span)
		return &Expr{Kind: EKItemRef, Type: ty, Span: e.Span, Name: enum.Name}
	}
	l.diags = append(l.diags, diagnostics.New(diagnostics.CodeExpectedDifferentItem, e.Span,
		"this path does not resolve to a value"))
	return &Expr{Kind: EKPoisoned, Type: env.InsertUnknown(e.Span), Span: e.Span}
}

// instantiate builds a fresh Concrete(Path) instance of a struct/enum name
// with arity fresh Unknown type arguments — a body-level reference to a
// generic item doesn't know its arguments until unification pins them down.
func (l *Lowerer) instantiate(env *tenv.TEnv, name intern.Word, arity int, span diagnostics.Span) typeir.TypeId {
	args := make([]typeir.TypeId, arity)
	for i := range args {
		args[i] = env.InsertUnknown(span)
	}
	return env.Arena().Insert(typeir.KConcrete{Concrete: typeir.CPath{Segments: []intern.Word{name}, Args: args}}, span)
}

func (l *Lowerer) lowerBinary(env *tenv.TEnv, mod moduletree.ModuleId, e astshim.BinaryExpr) *Expr {
	lhs := l.lowerExpr(env, mod, e.Left)
	rhs := l.lowerExpr(env, mod, e.Right)
	env.AddEquality(lhs.Type, rhs.Type, e.Span)

	if e.Op == "=" {
		return &Expr{Kind: EKBinary, Type: env.InsertUnit(e.Span), Span: e.Span, Op: e.Op, Left: lhs, Right: rhs}
	}

	resultTy := env.MakeRef(lhs.Type, e.Span)
	if traitName, ok := prelude[e.Op]; ok {
		traitID, _ := l.items.LookupTrait(traitName)
		env.AddRestriction(lhs.Type, typeir.TraitRestriction{TraitID: traitID, Args: []typeir.TypeId{rhs.Type}, Span: e.Span}, e.Span)
	}
	return &Expr{Kind: EKBinary, Type: resultTy, Span: e.Span, Op: e.Op, Left: lhs, Right: rhs}
}

func (l *Lowerer) lowerCall(env *tenv.TEnv, mod moduletree.ModuleId, e astshim.CallExpr) *Expr {
	args := make([]*Expr, len(e.Args))
	for i, a := range e.Args {
		args[i] = l.lowerExpr(env, mod, a)
	}

	if member, ok := astshim.Cast[astshim.MemberExpr](e.Callee); ok {
		return l.lowerMethodCall(env, mod, e, member, args)
	}

	if path, ok := astshim.Cast[astshim.PathExpr](e.Callee); ok {
		resolved, diag := l.resolver.Resolve(path.Segments, mod, mod)
		if diag != nil {
			if len(path.Segments) == 1 {
				l.diags = append(l.diags, diagnostics.New(diagnostics.CodeUnknownLocal, e.Span,
					"no local or item named this was found"))
			} else {
				diag.Primary.Span = e.Span
				l.diags = append(l.diags, diag)
			}
			return &Expr{Kind: EKPoisoned, Type: env.InsertUnknown(e.Span), Span: e.Span, Args: args}
		}

		items := l.itemsFor(resolved.Package)
		if fn, ok := items.Functions[resolved.Item]; ok {
			return l.lowerFunctionCall(env, items, e, fn, args)
		}
		if enumItem, idx, ok := items.VariantOf(resolved.Item); ok {
			return l.lowerEnumCtorCall(env, items, e, enumItem, idx, args)
		}
		l.diags = append(l.diags, diagnostics.New(diagnostics.CodeExpectedDifferentItem, e.Span,
			"this path does not resolve to something callable"))
		return &Expr{Kind: EKPoisoned, Type: env.InsertUnknown(e.Span), Span: e.Span, Args: args}
	}

	callee := l.lowerExpr(env, mod, e.Callee)
	return &Expr{Kind: EKPoisoned, Type: env.InsertUnknown(e.Span), Span: e.Span, Callee: callee, Args: args}
}

func (l *Lowerer) lowerFunctionCall(env *tenv.TEnv, items *ItemTree, e astshim.CallExpr, fn *FunctionItem, args []*Expr) *Expr {
	if len(args) != len(fn.Params) {
		l.diags = append(l.diags, diagnostics.New(diagnostics.CodeIncorrectNumArgsInCall, e.Span,
			"incorrect number of arguments in call"))
	}
	n := len(args)
	if len(fn.Params) < n {
		n = len(fn.Params)
	}
	for i := 0; i < n; i++ {
		env.AddEquality(args[i].Type, l.importType(env, items, fn.Params[i].Ty), e.Span)
	}
	return &Expr{Kind: EKCall, Type: l.importType(env, items, fn.ReturnTy), Span: e.Span, Name: fn.Name, Args: args}
}

func (l *Lowerer) lowerEnumCtorCall(env *tenv.TEnv, items *ItemTree, e astshim.CallExpr, enumItem moduletree.ItemId, variantIdx int, args []*Expr) *Expr {
	enum := items.Enums[enumItem]
	variant := enum.Variants[variantIdx]
	ty := l.instantiate(env, enum.Name, len(enum.Generics), e.Span)
	if variant.Payload != nil {
		switch len(args) {
		case 0:
			l.diags = append(l.diags, diagnostics.New(diagnostics.CodeEnumVariantMissingArg, e.Span,
				"this variant carries a payload but no argument was given"))
		case 1:
			env.AddEquality(args[0].Type, l.importType(env, items, *variant.Payload), e.Span)
		default:
			l.diags = append(l.diags, diagnostics.New(diagnostics.CodeIncorrectNumArgsInCall, e.Span,
				"this variant takes exactly one payload argument"))
		}
	} else if len(args) != 0 {
		l.diags = append(l.diags, diagnostics.New(diagnostics.CodeIncorrectNumArgsInCall, e.Span,
			"this variant carries no payload"))
	}
	return &Expr{Kind: EKEnumCtor, Type: ty, Span: e.Span, Name: variant.Name, Args: args}
}

// lowerMethodCall implements spec §4.7.1's member-access call rule: find an
// apply block whose implementor type unifies with the receiver and whose
// methods include the named one.
func (l *Lowerer) lowerMethodCall(env *tenv.TEnv, mod moduletree.ModuleId, e astshim.CallExpr, member astshim.MemberExpr, args []*Expr) *Expr {
	recv := l.lowerExpr(env, mod, member.Left)
	for _, items := range l.applySources() {
		for _, apply := range items.Applies {
			if !l.uni.TypesUnify(l.importType(env, items, apply.ImplementorTy), recv.Type) {
				continue
			}
			for _, m := range apply.Methods {
				if m.Name != member.Field {
					continue
				}
				n := len(args)
				if len(m.Params) < n {
					n = len(m.Params)
				}
				for i := 0; i < n; i++ {
					env.AddEquality(args[i].Type, l.importType(env, items, m.Params[i].Ty), e.Span)
				}
				return &Expr{Kind: EKMethodCall, Type: l.importType(env, items, m.ReturnTy), Span: e.Span, Left: recv, Field: member.Field, Args: args}
			}
		}
	}
	l.diags = append(l.diags, diagnostics.New(diagnostics.CodeCouldNotFindMethodReferenced, e.Span,
		"could not find a method matching this call"))
	return &Expr{Kind: EKPoisoned, Type: env.InsertUnknown(e.Span), Span: e.Span, Left: recv, Field: member.Field, Args: args}
}

func (l *Lowerer) lowerStructExpr(env *tenv.TEnv, mod moduletree.ModuleId, e astshim.StructExpr) *Expr {
	name := e.Path.Segments[len(e.Path.Segments)-1]
	items := l.items
	s, ok := items.StructByName(name)
	if !ok && len(e.Path.Segments) > 1 {
		// A qualified path (`pkg::Widget { ... }`) names a struct this
		// package's own item tree never registered — resolve it the same
		// way lowerPath does before giving up (spec §4.7.1 Path rule
		// applies to a struct expression's head path too).
		if resolved, diag := l.resolver.Resolve(e.Path.Segments, mod, mod); diag == nil {
			items = l.itemsFor(resolved.Package)
			s, ok = items.StructByName(name)
		}
	}
	fields := make([]ExprField, len(e.Fields))
	if !ok {
		for i, f := range e.Fields {
			fields[i] = ExprField{Name: f.Name, Value: l.lowerExpr(env, mod, f.Value)}
		}
		l.diags = append(l.diags, diagnostics.New(diagnostics.CodeExpectedDifferentItem, e.Span,
			"this path does not resolve to a struct"))
		return &Expr{Kind: EKPoisoned, Type: env.InsertUnknown(e.Span), Span: e.Span, Fields: fields}
	}

	declared := make(map[intern.Word]typeir.TypeId, len(s.Fields))
	for _, f := range s.Fields {
		declared[f.Name] = f.Ty
	}
	given := make(map[intern.Word]bool, len(e.Fields))
	for i, f := range e.Fields {
		val := l.lowerExpr(env, mod, f.Value)
		fields[i] = ExprField{Name: f.Name, Value: val}
		given[f.Name] = true
		if ty, ok := declared[f.Name]; ok {
			env.AddEquality(val.Type, l.importType(env, items, ty), e.Span)
		}
	}
	for _, f := range s.Fields {
		if !given[f.Name] {
			l.diags = append(l.diags, diagnostics.New(diagnostics.CodeUninitializedFieldsInStructExpr, e.Span,
				"missing field in struct expression"))
		}
	}
	for name := range given {
		if _, ok := declared[name]; !ok {
			l.diags = append(l.diags, diagnostics.New(diagnostics.CodeUnknownFieldsInStructExpr, e.Span,
				"unknown field in struct expression"))
		}
	}

	ty := l.instantiate(env, s.Name, len(s.Generics), e.Span)
	return &Expr{Kind: EKStruct, Type: ty, Span: e.Span, Fields: fields, Name: s.Name}
}

// lowerBlock implements spec §4.7.1's Block rule: statements lower in
// order within a fresh nested scope, a terminator statement may only be
// last, and the block's type is the terminator's type or unit.
func (l *Lowerer) lowerBlock(env *tenv.TEnv, mod moduletree.ModuleId, e astshim.BlockExpr) *Expr {
	env.PushScope()
	defer env.PopScope()

	stmts := make([]Stmt, len(e.Stmts))
	for i, s := range e.Stmts {
		stmts[i] = l.lowerStmt(env, mod, s)
		if s.Terminator && i != len(e.Stmts)-1 {
			l.diags = append(l.diags, diagnostics.New(diagnostics.CodeStmtFollowingTerminatorExpr, s.Range(),
				"statements may not follow the block's tail expression"))
		}
	}

	ty := env.InsertUnit(e.Span)
	if n := len(stmts); n > 0 && stmts[n-1].Terminator && stmts[n-1].Expr != nil {
		ty = stmts[n-1].Expr.Type
	}
	return &Expr{Kind: EKBlock, Type: ty, Span: e.Span, Stmts: stmts}
}

func (l *Lowerer) lowerStmt(env *tenv.TEnv, mod moduletree.ModuleId, s astshim.Stmt) Stmt {
	if s.Let != nil {
		var declared typeir.TypeId
		if s.Let.DeclaredTy != nil {
			declared = l.items.lowerTypeRef(s.Let.DeclaredTy, nil)
		} else {
			declared = env.InsertUnknown(s.Span)
		}
		init := l.lowerExpr(env, mod, s.Let.Initializer)
		env.AddEquality(declared, init.Type, s.Span)
		env.InsertLocal(s.Let.Name, declared)
		name := s.Let.Name
		return Stmt{Terminator: s.Terminator, LetName: &name, Expr: init}
	}
	e := l.lowerExpr(env, mod, s.Expr)
	return Stmt{Terminator: s.Terminator, Expr: e}
}

func (l *Lowerer) lowerIf(env *tenv.TEnv, mod moduletree.ModuleId, e astshim.IfExpr) *Expr {
	cond := l.lowerExpr(env, mod, e.Cond)
	env.AddEquality(cond.Type, env.InsertBool(e.Span, l.boolWord), e.Span)

	then := l.lowerExpr(env, mod, e.Then)
	var elseExpr *Expr
	elseTy := env.InsertUnit(e.Span)
	if e.Else != nil {
		elseExpr = l.lowerExpr(env, mod, e.Else)
		elseTy = elseExpr.Type
	}
	env.AddEquality(then.Type, elseTy, e.Span)

	return &Expr{Kind: EKIf, Type: then.Type, Span: e.Span, Cond: cond, Then: then, Else: elseExpr}
}

func (l *Lowerer) lowerTuple(env *tenv.TEnv, mod moduletree.ModuleId, e astshim.TupleExpr) *Expr {
	elems := make([]*Expr, len(e.Elems))
	types := make([]typeir.TypeId, len(e.Elems))
	for i, el := range e.Elems {
		elems[i] = l.lowerExpr(env, mod, el)
		types[i] = elems[i].Type
	}
	ty := env.Arena().Insert(typeir.KConcrete{Concrete: typeir.CTuple{Elems: types}}, e.Span)
	return &Expr{Kind: EKTuple, Type: ty, Span: e.Span, Elems: elems}
}

func (l *Lowerer) lowerMember(env *tenv.TEnv, mod moduletree.ModuleId, e astshim.MemberExpr) *Expr {
	lhs := l.lowerExpr(env, mod, e.Left)
	arena := env.Arena()
	if path, ok := arena.GetKind(arena.Terminal(lhs.Type)).(typeir.KConcrete); ok {
		if cpath, ok := path.Concrete.(typeir.CPath); ok && len(cpath.Segments) == 1 {
			if s, ok := l.items.StructByName(cpath.Segments[0]); ok {
				for _, f := range s.Fields {
					if f.Name == e.Field {
						return &Expr{Kind: EKMember, Type: f.Ty, Span: e.Span, Left: lhs, Field: e.Field}
					}
				}
			}
		}
	}
	l.diags = append(l.diags, diagnostics.New(diagnostics.CodeCouldNotFindFieldReferenced, e.Span,
		"could not find a field matching this access"))
	return &Expr{Kind: EKPoisoned, Type: env.InsertUnknown(e.Span), Span: e.Span, Left: lhs, Field: e.Field}
}

// lowerIntrinsic gives each name-dispatched intrinsic a fixed result type
// (spec §4.7.1: "each intrinsic has a fixed signature that produces a
// result type directly"). The two intrinsics here are illustrative — the
// full intrinsic surface lives with whatever embeds this module.
func (l *Lowerer) lowerIntrinsic(env *tenv.TEnv, mod moduletree.ModuleId, e astshim.IntrinsicExpr) *Expr {
	args := make([]*Expr, len(e.Args))
	for i, a := range e.Args {
		args[i] = l.lowerExpr(env, mod, a)
	}
	var ty typeir.TypeId
	switch l.words.Resolve(e.Name) {
	case "trap":
		ty = env.Arena().Insert(typeir.KNever{}, e.Span)
	case "size_of":
		ty = env.InsertInt(e.Span)
	default:
		ty = env.InsertUnknown(e.Span)
	}
	return &Expr{Kind: EKIntrinsic, Type: ty, Span: e.Span, Name: e.Name, Args: args}
}

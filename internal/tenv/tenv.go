// Package tenv implements the Type Environment (spec §4.2, C2): the
// per-function-body scope stack of local bindings, the active This context
// used while lowering trait declarations and apply blocks, and the queue of
// obligations the solver (internal/solver) later drains to a fixed point.
//
// Scope lookup follows the teacher's outer-chain symbol table shape
// (funvibe-funxy internal/symbols: NewEnclosedSymbolTable / outer.Find), but
// a TEnv's scopes are a flat stack rather than a linked chain of tables,
// since every scope here shares the same underlying arena.
package tenv

import (
	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/intern"
	"github.com/flux-lang/flux-core/internal/typeir"
)

// ThisCtxKind tags which shape of declaration is currently being lowered,
// determining how a `This` path resolves (spec §3 ThisCtx, §4.2).
type ThisCtxKind int

const (
	ThisCtxNone ThisCtxKind = iota
	ThisCtxTraitDecl
	ThisCtxTypeApplication
	ThisCtxTraitApplication
)

// ThisCtx is the active resolution target for `This` paths (spec §3).
// Outside a trait declaration or apply block, Kind() is ThisCtxNone and
// This has no valid meaning — resolving it is the caller's error to report.
type ThisCtx struct {
	payload thisCtxPayload
}

// thisCtxPayload is deliberately not a single flat struct exposed directly:
// a TraitDecl context only has a self-generic id, while an apply block
// carries both the concrete target type and (for a trait application) the
// trait restriction being satisfied. Modeling this as one struct of
// always-present-but-sometimes-meaningless fields invites exactly the bug
// spec Invariant 6 warns about (`This` resolving in the wrong context), so
// each kind gets its own constructor below instead.
type thisCtxPayload struct {
	kind ThisCtxKind

	// traitDeclSelf is the generic TypeId standing for This inside a trait
	// declaration's own method signatures.
	traitDeclSelf typeir.TypeId

	// target is the concrete (or generic-parameterized) type an apply block
	// is attached to.
	target typeir.TypeId

	// restriction is set only for a trait application: the TraitRestriction
	// the apply block claims to satisfy, needed to resolve This::AssocType
	// paths against that trait's associated types (spec §4.2
	// set_associated_types).
	restriction *typeir.TraitRestriction

	// assocTypes maps an associated type name to the TypeId it was bound to
	// in this application (spec §4.2 set_associated_types).
	assocTypes map[intern.Word]typeir.TypeId
}

// NoneThisCtx is the context outside any trait or apply construct.
func NoneThisCtx() ThisCtx { return ThisCtx{} }

// TraitDeclThisCtx builds the context used while lowering a trait
// declaration's own method signatures: This stands for the trait's implicit
// self generic.
func TraitDeclThisCtx(self typeir.TypeId) ThisCtx {
	return ThisCtx{payload: thisCtxPayload{kind: ThisCtxTraitDecl, traitDeclSelf: self}}
}

// TypeApplicationThisCtx builds the context used while lowering a bare
// `apply Target { ... }` block (no trait): This stands for target.
func TypeApplicationThisCtx(target typeir.TypeId) ThisCtx {
	return ThisCtx{payload: thisCtxPayload{kind: ThisCtxTypeApplication, target: target}}
}

// TraitApplicationThisCtx builds the context used while lowering
// `apply Trait for Target { ... }`: This stands for target, and
// This::AssocName paths resolve against restriction's trait.
func TraitApplicationThisCtx(target typeir.TypeId, restriction typeir.TraitRestriction) ThisCtx {
	return ThisCtx{payload: thisCtxPayload{
		kind:        ThisCtxTraitApplication,
		target:      target,
		restriction: &restriction,
	}}
}

// Kind reports which shape of This context is active.
func (c ThisCtx) Kind() ThisCtxKind { return c.payload.kind }

// ResolveThis returns the TypeId This stands for in c, or false if c is
// ThisCtxNone.
func (c ThisCtx) ResolveThis() (typeir.TypeId, bool) {
	switch c.payload.kind {
	case ThisCtxTraitDecl:
		return c.payload.traitDeclSelf, true
	case ThisCtxTypeApplication, ThisCtxTraitApplication:
		return c.payload.target, true
	default:
		return 0, false
	}
}

// ResolveAssocType returns the TypeId bound to This::name in c, if any.
func (c ThisCtx) ResolveAssocType(name intern.Word) (typeir.TypeId, bool) {
	if c.payload.assocTypes == nil {
		return 0, false
	}
	id, ok := c.payload.assocTypes[name]
	return id, ok
}

// SetAssociatedTypes records the associated-type bindings for the active
// trait application context (spec §4.2 set_associated_types). It is a no-op
// outside ThisCtxTraitApplication.
func (c *ThisCtx) SetAssociatedTypes(bindings map[intern.Word]typeir.TypeId) {
	if c.payload.kind != ThisCtxTraitApplication {
		return
	}
	c.payload.assocTypes = bindings
}

// Restriction returns the trait restriction a trait-application This
// context claims to satisfy, if any.
func (c ThisCtx) Restriction() *typeir.TraitRestriction {
	return c.payload.restriction
}

// Obligation is a deferred proof requirement recorded during lowering and
// drained by the obligation solver to a fixed point (spec §3 Obligation,
// §4.8).
type Obligation interface {
	isObligation()
}

// OblTypeEq demands that lhs and rhs unify (spec §3).
type OblTypeEq struct {
	Lhs, Rhs typeir.TypeId
	Span     diagnostics.Span
}

func (OblTypeEq) isObligation() {}

// OblImplements demands that subject satisfy restriction (spec §3).
type OblImplements struct {
	Subject     typeir.TypeId
	Restriction typeir.TraitRestriction
	Span        diagnostics.Span
}

func (OblImplements) isObligation() {}

// scope is one frame of local bindings (spec §4.2 Scope), shadowing any
// binding of the same name in an enclosing frame.
type scope struct {
	locals map[intern.Word]typeir.TypeId
}

func newScope() *scope {
	return &scope{locals: make(map[intern.Word]typeir.TypeId)}
}

// TEnv is the per-body lowering environment (spec §4.2, C2): a scope stack
// over the shared arena, the active This context, and the pending
// obligation queue. It does not own the arena — every TEnv in a package
// lowering session shares the same *typeir.Arena so TypeIds stay comparable
// across function bodies.
type TEnv struct {
	arena *typeir.Arena

	scopes  []*scope
	thisCtx ThisCtx

	obligations []Obligation
}

// New starts a TEnv over arena with a single empty scope and no active This
// context (spec §4.2 new).
func New(arena *typeir.Arena) *TEnv {
	return &TEnv{
		arena:  arena,
		scopes: []*scope{newScope()},
	}
}

// Arena exposes the underlying arena so callers (the unifier, trait
// resolver, HIR lowering) can operate on TypeIds directly.
func (e *TEnv) Arena() *typeir.Arena { return e.arena }

// PushScope opens a new nested scope (spec §4.2 push_scope), e.g. entering
// a block expression.
func (e *TEnv) PushScope() {
	e.scopes = append(e.scopes, newScope())
}

// PopScope closes the innermost scope (spec §4.2 pop_scope). Popping the
// outermost scope is an internal-compiler-error: callers must balance every
// PushScope with exactly one PopScope.
func (e *TEnv) PopScope() {
	if len(e.scopes) <= 1 {
		panic("tenv: popped the outermost scope — internal compiler error")
	}
	e.scopes = e.scopes[:len(e.scopes)-1]
}

// InsertLocal binds name to id in the innermost scope, shadowing any
// binding of the same name from an enclosing scope (spec §4.2 insert_local).
func (e *TEnv) InsertLocal(name intern.Word, id typeir.TypeId) {
	e.scopes[len(e.scopes)-1].locals[name] = id
}

// TryGetLocal looks up name starting from the innermost scope outward
// (spec §4.2 try_get_local), matching the teacher's outer-chain Find.
func (e *TEnv) TryGetLocal(name intern.Word) (typeir.TypeId, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if id, ok := e.scopes[i].locals[name]; ok {
			return id, true
		}
	}
	return 0, false
}

// ThisCtx returns the currently active This context.
func (e *TEnv) ThisCtx() ThisCtx { return e.thisCtx }

// SetThisCtx installs ctx as the active This context (spec §4.2
// set_this_ctx), e.g. on entering a trait declaration or apply block body.
// Callers are responsible for restoring the previous context on exit.
func (e *TEnv) SetThisCtx(ctx ThisCtx) {
	e.thisCtx = ctx
}

// SetAssociatedTypes records associated-type bindings on the active This
// context (spec §4.2 set_associated_types).
func (e *TEnv) SetAssociatedTypes(bindings map[intern.Word]typeir.TypeId) {
	e.thisCtx.SetAssociatedTypes(bindings)
}

// AddEquality enqueues a TypeEq obligation (spec §4.2 add_equality).
func (e *TEnv) AddEquality(lhs, rhs typeir.TypeId, span diagnostics.Span) {
	e.obligations = append(e.obligations, OblTypeEq{Lhs: lhs, Rhs: rhs, Span: span})
}

// AddRestriction enqueues an Implements obligation (spec §4.2
// add_restriction).
func (e *TEnv) AddRestriction(subject typeir.TypeId, restriction typeir.TraitRestriction, span diagnostics.Span) {
	e.obligations = append(e.obligations, OblImplements{Subject: subject, Restriction: restriction, Span: span})
}

// Obligations drains and returns every obligation queued so far, leaving
// the queue empty — the shape the obligation solver (internal/solver)
// expects when it takes one pass over a body's worklist.
func (e *TEnv) Obligations() []Obligation {
	pending := e.obligations
	e.obligations = nil
	return pending
}

// PendingObligations peeks at the queue without draining it, for
// diagnostics that want to report on still-unsolved obligations.
func (e *TEnv) PendingObligations() []Obligation {
	return e.obligations
}

// Thin forwarders to the shared arena (spec §4.2): these exist so body
// lowering can read `env.InsertUnknown(span)` without reaching past the
// environment into the arena directly, mirroring the teacher's symbol
// table forwarding pattern (e.g. SymbolTable.DefineType wrapping typesystem
// construction).

func (e *TEnv) InsertUnit(span diagnostics.Span) typeir.TypeId {
	return e.arena.InsertUnit(span)
}

func (e *TEnv) InsertInt(span diagnostics.Span) typeir.TypeId {
	return e.arena.InsertInt(span)
}

func (e *TEnv) InsertFloat(span diagnostics.Span) typeir.TypeId {
	return e.arena.InsertFloat(span)
}

func (e *TEnv) InsertBool(span diagnostics.Span, boolWord intern.Word) typeir.TypeId {
	return e.arena.InsertBool(span, boolWord)
}

func (e *TEnv) InsertUnknown(span diagnostics.Span) typeir.TypeId {
	return e.arena.InsertUnknown(span)
}

func (e *TEnv) MakeRef(target typeir.TypeId, span diagnostics.Span) typeir.TypeId {
	return e.arena.NewRef(target, span)
}

// Package driver is the phase driver: it wires C6 (path resolution), C7
// (HIR lowering), and C8 (the obligation solver) into one per-package
// compilation pass. It is the only package that performs the two-step
// circular wiring (Resolver <-> Unifier, Table <-> Unifier) directly —
// every other package only ever sees those collaborators already wired,
// matching the teacher's own "one struct owns construction order" idiom
// (funvibe-funxy internal/analyzer.New + SetLoader/SetInferenceContext).
package driver

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/flux-lang/flux-core/internal/config"
	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/hir"
	"github.com/flux-lang/flux-core/internal/intern"
	"github.com/flux-lang/flux-core/internal/moduletree"
	"github.com/flux-lang/flux-core/internal/resolve"
	"github.com/flux-lang/flux-core/internal/solver"
	"github.com/flux-lang/flux-core/internal/tenv"
	"github.com/flux-lang/flux-core/internal/traitres"
	"github.com/flux-lang/flux-core/internal/traittab"
	"github.com/flux-lang/flux-core/internal/typeir"
	"github.com/flux-lang/flux-core/internal/unify"
)

// Package is one compiled package: its module/item trees plus every
// function and apply-method body Pass 2 lowered from them, kept around so
// a dependency compiled earlier in the same Session can be resolved into
// by a package compiled later (spec §4.6 step 2, root-module dependency
// lookup).
type Package struct {
	Name  string
	Tree  *moduletree.Tree
	Items *hir.ItemTree

	FunctionBodies map[moduletree.ItemId]*hir.LoweredBody
	ApplyBodies    map[moduletree.ItemId]map[intern.Word]*hir.LoweredBody
}

// Registry resolves a package name to its already-compiled module tree,
// implementing resolve.Dependencies for every package compiled after the
// first within a Session. Guarded by a mutex: parallel.go's wave scheduler
// runs CompilePackage for every package in a wave concurrently, so one
// package's Add can run while another reads its dependencies.
type Registry struct {
	words    *intern.Interner
	mu       sync.RWMutex
	packages map[intern.Word]*Package
}

// NewRegistry starts an empty Registry that interns package names via
// words — the same interner the Session's packages use, so a Word compares
// equal across every package compiled through it.
func NewRegistry(words *intern.Interner) *Registry {
	return &Registry{words: words, packages: make(map[intern.Word]*Package)}
}

// Add registers pkg under its own name, making it visible to PackageRoot
// lookups from packages compiled afterward.
func (r *Registry) Add(pkg *Package) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packages[r.words.GetOrIntern(pkg.Name)] = pkg
}

// Get looks up a previously compiled package by name.
func (r *Registry) Get(name string) (*Package, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pkg, ok := r.packages[r.words.GetOrIntern(name)]
	return pkg, ok
}

// PackageRoot implements resolve.Dependencies.
func (r *Registry) PackageRoot(name intern.Word) (*moduletree.Tree, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pkg, ok := r.packages[name]
	if !ok {
		return nil, false
	}
	return pkg.Tree, true
}

// ItemsFor implements hir.ItemsLookup: a resolved cross-package path's item
// id is only meaningful against the item tree the package it named built.
func (r *Registry) ItemsFor(name string) (*hir.ItemTree, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pkg, ok := r.packages[r.words.GetOrIntern(name)]
	if !ok {
		return nil, false
	}
	return pkg.Items, true
}

// Dependencies implements hir.ItemsLookup: every other package compiled
// through this registry so far, for method-call dispatch to range over
// (a method call names no package, only a receiver type — see
// hir.Lowerer.applySources).
func (r *Registry) Dependencies() []*hir.ItemTree {
	r.mu.RLock()
	defer r.mu.RUnlock()
	trees := make([]*hir.ItemTree, 0, len(r.packages))
	for _, pkg := range r.packages {
		trees = append(trees, pkg.Items)
	}
	return trees
}

// Session bundles the collaborators one compilation run shares: a single
// interner (so every package compiled through it agrees on Word identity),
// a Registry of already-compiled packages, and a *log.Logger tagged with a
// fresh session UUID — mirrors the teacher's own use of google/uuid in its
// ext package for generated identifiers, and lets a consumer correlating
// logs across the parallel multi-package driver (parallel.go) tell
// sessions apart.
type Session struct {
	Config   config.Session
	Words    *intern.Interner
	Registry *Registry
	Logger   *log.Logger
	ID       uuid.UUID
}

// NewSession starts a compilation session under cfg, logging to stderr
// with a prefix carrying a short session id.
func NewSession(cfg config.Session) *Session {
	words := intern.New()
	id := uuid.New()
	logger := log.New(os.Stderr, fmt.Sprintf("[flux %s] ", id.String()[:8]), log.LstdFlags)
	return &Session{
		Config:   cfg,
		Words:    words,
		Registry: NewRegistry(words),
		Logger:   logger,
		ID:       id,
	}
}

// builtinScope builds the pre-registered primitive-type scope every
// package's resolver falls back to (spec §6 Built-in scope): the
// session's canonical integer/float path names, each given a stable
// negative synthetic ItemId. Built-ins are matched by name in
// resolve.Resolver.lookupFirstSegment; their ids never equal an ItemTree
// entry's id, so looking one up in an ItemTree finds no item.
func builtinScope(words *intern.Interner, cfg config.Session) map[intern.Word]moduletree.ItemId {
	scope := make(map[intern.Word]moduletree.ItemId, len(cfg.IntegerPaths)+len(cfg.FloatPaths))
	id := moduletree.ItemId(-1)
	for _, name := range cfg.IntegerPaths {
		scope[words.GetOrIntern(name)] = id
		id--
	}
	for _, name := range cfg.FloatPaths {
		scope[words.GetOrIntern(name)] = id
		id--
	}
	return scope
}

// CompilePackage runs C6, C7, and C8 over one package's module tree and
// declarations, registers the result in s.Registry so a package compiled
// afterward can resolve paths into it, and returns a diagnostics.Batch
// tagged with the session's id.
//
// Every function and apply-method body is lowered against tree.RootID as
// both the declaring and calling module: internal/hir's ItemTree does not
// track which module a given function/apply item came from (spec's
// nested-module walk is exercised directly by internal/resolve's own
// tests), so CompilePackage only supports single-module packages. A
// multi-module package needs a richer ModuleDecls-to-ItemId mapping that
// nothing downstream of Pass 1 currently exposes.
func (s *Session) CompilePackage(name string, tree *moduletree.Tree, modules []hir.ModuleDecls) (*Package, *diagnostics.Batch) {
	batch := diagnostics.NewBatch()
	batch.SessionID = s.ID

	arena := typeir.NewArena(s.Config)
	items := hir.NewItemTree(arena, s.Words)

	for _, d := range items.LowerPackage(tree, modules, name) {
		batch.Add(d)
	}

	table := traittab.New(nil)
	traitsResolver := traitres.New(s.Words, table, items)
	// A placeholder TEnv the Unifier is constructed with; SetEnv retargets
	// it at each body's own TEnv before that body is lowered (see
	// internal/unify.Unifier.SetEnv and internal/hir's lowerBodyCommon).
	uni := unify.New(tenv.New(arena), s.Words, traitsResolver)
	traitsResolver.SetUnifier(uni)
	table.SetProber(uni)

	// Register every `apply Trait for Impltor` block's application before any
	// obligation is solved (spec §4.3/§4.5) — a bare `apply Impltor { ... }`
	// with no trait has nothing to register. This is the one
	// traittab.AddApplication call site the rest of the package's trait
	// resolution depends on; without it the table stays empty and every
	// restriction against a user-declared apply falls through to
	// specializeNumeric (traitres.go) instead of finding it.
	for _, apply := range items.Applies {
		if apply.TraitRestr == nil {
			continue
		}
		if d := table.AddApplication(apply.TraitRestr.TraitID, traittab.Application{
			TraitArgs:   apply.TraitRestr.Args,
			ImpltorRoot: apply.ImplementorTy,
			SourceSpan:  apply.Span,
		}); d != nil {
			batch.Add(d)
		}
	}

	pathResolver := resolve.New(name, tree, s.Registry, items, builtinScope(s.Words, s.Config))
	if diags := pathResolver.ResolveUses(); len(diags) > 0 {
		for _, d := range diags {
			batch.Add(d)
		}
	}

	sv := solver.New(s.Config, s.Logger)
	lowerer := hir.NewLowerer(s.Words, uni, traitsResolver, items, pathResolver, sv, name)
	lowerer.SetItemsLookup(s.Registry)

	pkg := &Package{
		Name:           name,
		Tree:           tree,
		Items:          items,
		FunctionBodies: make(map[moduletree.ItemId]*hir.LoweredBody),
		ApplyBodies:    make(map[moduletree.ItemId]map[intern.Word]*hir.LoweredBody),
	}

	for id, fn := range items.Functions {
		if fn.Body == nil {
			continue
		}
		out := lowerer.LowerFunctionBody(arena, tree.RootID, fn)
		pkg.FunctionBodies[id] = out
		for _, d := range out.Diagnostics {
			batch.Add(d)
		}
	}

	for id, apply := range items.Applies {
		methodBodies := make(map[intern.Word]*hir.LoweredBody, len(apply.Methods))
		for i := range apply.Methods {
			method := &apply.Methods[i]
			if method.Body == nil {
				continue
			}
			out := lowerer.LowerApplyMethodBody(arena, tree.RootID, apply, method)
			methodBodies[method.Name] = out
			for _, d := range out.Diagnostics {
				batch.Add(d)
			}
		}
		pkg.ApplyBodies[id] = methodBodies
	}

	s.Registry.Add(pkg)
	return pkg, batch
}

// Package moduletree defines the module-tree input the resolver and HIR
// lowering consume (spec §3, §6): a forest of modules, each with a scope
// mapping names to visibility-tagged items, built by an external
// source-file-discovery collaborator and handed to this module already
// finished (spec §1 Out of scope).
package moduletree

import "github.com/flux-lang/flux-core/internal/intern"

// ModuleId identifies one module within a package's tree.
type ModuleId int

// ItemId identifies one item (struct, enum, trait, function, apply block,
// or nested module reference) within a package's item tree.
type ItemId int

// ItemKind tags what kind of item an ItemId refers to, so the resolver can
// tell a plain item from a child-module reference without a separate
// lookup (spec §4.6 step 3: "the current item must be a Module").
type ItemKind int

const (
	ItemKindValue      ItemKind = iota // function, struct, enum, trait, etc.
	ItemKindModule                     // a nested module
	ItemKindBuiltin                    // a pre-registered primitive type (spec §6 Built-in scope)
)

// Visibility is a scope entry's exposure (spec §6).
type Visibility int

const (
	Public Visibility = iota
	Private
)

// ScopeEntry is one name binding in a module's scope.
type ScopeEntry struct {
	Visibility Visibility
	Item       ItemId
	Kind       ItemKind
	// Module is set when Kind == ItemKindModule: the child ModuleId the
	// entry refers to (spec §4.6 step 3 descend-to-child-module).
	Module ModuleId
}

// Module is one node of the tree (spec §3 ModuleTree).
type Module struct {
	FileID   string
	Parent   ModuleId
	HasParent bool
	Children map[intern.Word]ModuleId
	Scope    map[intern.Word]ScopeEntry
}

// Tree is a finished module forest for one package, plus the fixed root and
// prelude ids the resolver anchors its lookups on (spec §6).
type Tree struct {
	Modules     map[ModuleId]*Module
	RootID      ModuleId
	PreludeID   ModuleId
	PackageName intern.Word // for comparing against a path's leading segment (spec §4.6 step 1)
	Name        string      // for reporting and as a Dependencies lookup key
}

// NewModule returns an empty Module rooted at parent (or with HasParent
// false for the tree root).
func NewModule(fileID string, parent ModuleId, hasParent bool) *Module {
	return &Module{
		FileID:    fileID,
		Parent:    parent,
		HasParent: hasParent,
		Children:  make(map[intern.Word]ModuleId),
		Scope:     make(map[intern.Word]ScopeEntry),
	}
}

// New builds an empty Tree with just a root module.
func New(packageName intern.Word, name string) *Tree {
	t := &Tree{Modules: make(map[ModuleId]*Module), PackageName: packageName, Name: name}
	t.Modules[0] = NewModule("", 0, false)
	t.RootID = 0
	return t
}

// AddChildModule creates a new child module of parent named name and links
// it into parent's Children map, returning the new module's id.
func (t *Tree) AddChildModule(parent ModuleId, name intern.Word, fileID string) ModuleId {
	id := ModuleId(len(t.Modules))
	t.Modules[id] = NewModule(fileID, parent, true)
	t.Modules[parent].Children[name] = id
	t.Modules[parent].Scope[name] = ScopeEntry{Visibility: Public, Kind: ItemKindModule, Module: id}
	return id
}

// Get returns the module for id, or nil if unknown.
func (t *Tree) Get(id ModuleId) *Module {
	return t.Modules[id]
}

// IsDescendantOf reports whether self is ancestor or nested under it —
// used by the resolver's visibility check (spec §4.6 step 3/4: "the caller
// is not the descending/defining module or a descendant").
func (t *Tree) IsDescendantOf(self, ancestor ModuleId) bool {
	cur := self
	for {
		if cur == ancestor {
			return true
		}
		m := t.Modules[cur]
		if m == nil || !m.HasParent {
			return false
		}
		cur = m.Parent
	}
}

package driver

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/hir"
	"github.com/flux-lang/flux-core/internal/moduletree"
)

// Unit is one package queued for compilation by CompileGraph: its module
// tree and declarations, plus the names of the packages it depends on
// (from its own `use` statements) so the scheduler knows which wave it
// belongs to.
type Unit struct {
	Name      string
	Tree      *moduletree.Tree
	Modules   []hir.ModuleDecls
	DependsOn []string
}

// CompileGraph compiles every unit in units, running each wave of
// mutually-independent packages (every DependsOn already satisfied by an
// earlier wave) concurrently via errgroup — grounded on the same
// errgroup.WithContext fan-out idiom used across the retrieval pack's own
// concurrent build/analysis tools. A unit only ever reads dependency
// packages an earlier, already-`Wait`-ed wave finished compiling and wrote
// into s.Registry, so the only shared mutable state touched concurrently
// within one wave is the Registry itself (mutex-guarded) and the combined
// diagnostics.Batch (merged after each wave, not written concurrently).
//
// Returns an error only for a dependency cycle, an unknown dependency
// name, or ctx being cancelled while waves are still running; a compiled
// package with diagnostics is not an error — check the
// returned Batch. DependsOn names must all be other entries in units —
// CompileGraph schedules one self-contained batch, not a mix of this call's
// units and packages s.Registry already holds from an earlier call.
func (s *Session) CompileGraph(ctx context.Context, units []Unit) (map[string]*Package, *diagnostics.Batch, error) {
	batch := diagnostics.NewBatch()
	batch.SessionID = s.ID

	byName := make(map[string]Unit, len(units))
	for _, u := range units {
		byName[u.Name] = u
	}
	for _, u := range units {
		for _, dep := range u.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, nil, fmt.Errorf("driver: package %q depends on unknown package %q", u.Name, dep)
			}
		}
	}

	compiled := make(map[string]*Package, len(units))
	remaining := make(map[string]Unit, len(units))
	for _, u := range units {
		remaining[u.Name] = u
	}

	for len(remaining) > 0 {
		var wave []Unit
		for name, u := range remaining {
			ready := true
			for _, dep := range u.DependsOn {
				if _, ok := compiled[dep]; !ok {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, remaining[name])
			}
		}
		if len(wave) == 0 {
			return nil, nil, fmt.Errorf("driver: dependency cycle among packages %v", unitNames(remaining))
		}

		g, gctx := errgroup.WithContext(ctx)
		results := make([]*Package, len(wave))
		batches := make([]*diagnostics.Batch, len(wave))
		for i, u := range wave {
			i, u := i, u
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				pkg, b := s.CompilePackage(u.Name, u.Tree, u.Modules)
				results[i] = pkg
				batches[i] = b
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}

		for i, u := range wave {
			compiled[u.Name] = results[i]
			for _, d := range batches[i].Diagnostics {
				d := d
				batch.Add(&d)
			}
			delete(remaining, u.Name)
		}
	}

	return compiled, batch, nil
}

func unitNames(units map[string]Unit) []string {
	names := make([]string, 0, len(units))
	for name := range units {
		names = append(names, name)
	}
	return names
}

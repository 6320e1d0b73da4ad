// Command fluxcheck is a thin demo CLI proving the driver pipeline runs
// end to end: it compiles a handful of built-in fixture packages through
// internal/driver and prints a plain-text diagnostic summary. Rendering a
// real diagnostic report from source text is out of scope here (spec §1,
// §6) — fluxcheck's fixtures are built directly as astshim/moduletree
// values, the same way internal/driver's own tests build theirs, standing
// in for a source file this module does not parse.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/flux-lang/flux-core/internal/config"
	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/driver"
)

func main() {
	color := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	session := driver.NewSession(config.Default())
	units := fixtureUnits(session)

	compiled, batch, err := session.CompileGraph(context.Background(), units)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fluxcheck: %v\n", err)
		os.Exit(2)
	}

	names := make([]string, 0, len(compiled))
	for name := range compiled {
		names = append(names, name)
	}
	fmt.Printf("compiled %d package(s)\n", len(names))

	printBatch(batch, color)

	if batch.HasErrors() {
		os.Exit(1)
	}
}

func printBatch(batch *diagnostics.Batch, color bool) {
	if len(batch.Diagnostics) == 0 {
		fmt.Println(paint(color, "32", "no diagnostics"))
		return
	}
	for _, d := range batch.Diagnostics {
		label := "error"
		code := "31"
		if d.Severity == diagnostics.SeverityWarning {
			label = "warning"
			code = "33"
		}
		loc := "<unknown>"
		if !d.Primary.Span.Zero() {
			loc = fmt.Sprintf("%s:%d-%d", d.Primary.Span.File, d.Primary.Span.Start, d.Primary.Span.End)
		}
		fmt.Printf("%s: %s [%s] %s\n", paint(color, code, label), d.Code, loc, d.Primary.Message)
		for _, s := range d.Secondary {
			fmt.Printf("  note: %s (%s:%d-%d)\n", s.Message, s.Span.File, s.Span.Start, s.Span.End)
		}
		if d.Help != "" {
			fmt.Printf("  help: %s\n", d.Help)
		}
	}
}

func paint(color bool, code, s string) string {
	if !color {
		return s
	}
	return fmt.Sprintf("\x1b[%sm%s\x1b[0m", code, s)
}

// Command gensymtab scans a linker-script template for PROVIDE(name = .)
// symbol declarations and emits a generated Go file exposing each one as a
// typed accessor — the build-time counterpart to the teacher's own
// getLinkerSymbol, which hand-switches over a fixed set of
// //go:linkname'd asm getters (asm.GetStartAddr, asm.GetTextStartAddr,
// ...), one per linker symbol the kernel needs the address of. Rather than
// hand-maintain that switch as the layout grows, this tool regenerates it
// from the linker script itself, the same "scan the build inputs, emit
// the matching Go" idea the teacher's own
// tools/generate-globalize-symbols.go applies to assembly call sites.
//
// Usage: gensymtab -ld <linker_script> -o <output.go> -pkg <package_name>
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"text/template"
)

var provideRe = regexp.MustCompile(`PROVIDE\s*\(\s*([A-Za-z_][A-Za-z0-9_]*)\s*=\s*\.\s*\)`)

func main() {
	var ldPath, outPath, pkg string
	flag.StringVar(&ldPath, "ld", "", "path to the linker script (required)")
	flag.StringVar(&outPath, "o", "", "output Go file path (required)")
	flag.StringVar(&pkg, "pkg", "platform", "package name for the generated file")
	flag.Parse()

	if ldPath == "" || outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: gensymtab -ld <linker_script> -o <output.go> [-pkg name]")
		os.Exit(1)
	}

	symbols, err := scan(ldPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gensymtab: %v\n", err)
		os.Exit(1)
	}
	if len(symbols) == 0 {
		fmt.Fprintln(os.Stderr, "gensymtab: no PROVIDE(name = .) symbols found")
		os.Exit(1)
	}

	if err := render(outPath, pkg, symbols); err != nil {
		fmt.Fprintf(os.Stderr, "gensymtab: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("gensymtab: wrote %d symbol(s) to %s\n", len(symbols), outPath)
}

func scan(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	seen := make(map[string]bool)
	var symbols []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "/*") {
			continue
		}
		if m := provideRe.FindStringSubmatch(line); m != nil && !seen[m[1]] {
			seen[m[1]] = true
			symbols = append(symbols, m[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	sort.Strings(symbols)
	return symbols, nil
}

type symbolData struct {
	Name      string // linker symbol, e.g. "__heap_start"
	GoName    string // exported Go accessor name, e.g. "HeapStart"
	AsmGetter string // //go:linkname target the accessor forwards to
}

func goName(linkerSymbol string) string {
	parts := strings.Split(strings.Trim(linkerSymbol, "_"), "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	return b.String()
}

var tmpl = template.Must(template.New("symtab").Parse(`// Code generated by gensymtab from the linker script; DO NOT EDIT.

package {{.Pkg}}

import _ "unsafe"

{{range .Symbols}}
//go:linkname {{.AsmGetter}} {{.AsmGetter}}
func {{.AsmGetter}}() uintptr

// {{.GoName}} returns the address the linker resolved {{.Name}} to.
func {{.GoName}}() uintptr { return {{.AsmGetter}}() }
{{end}}
`))

func render(outPath, pkg string, symbols []string) error {
	data := struct {
		Pkg     string
		Symbols []symbolData
	}{Pkg: pkg}

	for _, s := range symbols {
		data.Symbols = append(data.Symbols, symbolData{
			Name:      s,
			GoName:    goName(s),
			AsmGetter: "asmLinkerSymbol_" + strings.Trim(s, "_"),
		})
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer f.Close()

	return tmpl.Execute(f, data)
}

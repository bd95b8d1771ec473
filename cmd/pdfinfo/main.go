package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/pdf-runtime/boundary"
	"github.com/wippyai/pdf-runtime/engine"
	"github.com/wippyai/pdf-runtime/resource"
	"github.com/wippyai/pdf-runtime/runtime"
	"github.com/wippyai/pdf-runtime/wasmhost"
)

var (
	fileStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	countStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98"))
	sizeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
	paperStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

func main() {
	os.Exit(execute())
}

func execute() int {
	var (
		engineName  = flag.String("engine", engine.NamePDFCPU, "PDF engine: pdfcpu or poppler")
		policyName  = flag.String("policy", "force", "Context teardown policy: force or reject")
		password    = flag.String("password", "", "Password for encrypted documents")
		verbose     = flag.Bool("v", false, "Log lifecycle events to stderr")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		printWIT    = flag.Bool("wit", false, "Print the call interface in WIT and exit")
		guest       = flag.String("guest", "", "Run a WebAssembly guest against the pdf host module")
	)
	flag.Parse()

	if *printWIT {
		fmt.Print(boundary.WIT())
		return 0
	}

	if flag.NArg() == 0 && !*interactive && *guest == "" {
		fmt.Fprintln(os.Stderr, "Usage: pdfinfo [-engine pdfcpu|poppler] [-password pw] <file.pdf>...")
		fmt.Fprintln(os.Stderr, "       pdfinfo -i [file.pdf]  (interactive mode)")
		fmt.Fprintln(os.Stderr, "       pdfinfo -guest <module.wasm>")
		fmt.Fprintln(os.Stderr, "       pdfinfo -wit")
		return 1
	}

	if *verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			engine.SetLogger(l.Named("engine"))
			runtime.SetLogger(l.Named("runtime"))
			wasmhost.SetLogger(l.Named("wasmhost"))
			defer func() { _ = l.Sync() }()
		}
	}

	rt, err := newRuntime(*engineName, *policyName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	code := 0
	switch {
	case *interactive:
		if err := runInteractive(rt, flag.Args()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			code = 1
		}
	case *guest != "":
		if err := runGuest(rt, *guest); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			code = 1
		}
	default:
		code = run(rt, flag.Args(), *password)
	}

	if err := rt.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		code = 1
	}
	return code
}

func newRuntime(engineName, policyName string) (*runtime.Runtime, error) {
	eng, err := engine.ByName(engineName)
	if err != nil {
		return nil, err
	}
	policy, err := runtime.ParsePolicy(policyName)
	if err != nil {
		return nil, err
	}
	return runtime.New(&runtime.Config{Engine: eng, Policy: policy})
}

// run prints the page count and page sizes of every file. It returns the
// process exit code.
func run(rt *runtime.Runtime, files []string, password string) int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		for _, s := range []*lipgloss.Style{&fileStyle, &countStyle, &sizeStyle, &paperStyle, &errStyle} {
			*s = lipgloss.NewStyle()
		}
	}

	ctx, err := rt.OpenContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = rt.DestroyContext(ctx) }()

	code := 0
	for _, path := range files {
		if err := describe(rt, ctx, path, password); err != nil {
			fmt.Println(errStyle.Render(fmt.Sprintf("%s: %v", path, err)))
			code = 1
		}
	}
	return code
}

func describe(rt *runtime.Runtime, ctx resource.Handle, path, password string) error {
	doc, err := rt.OpenDocumentWithPassword(ctx, path, password)
	if err != nil {
		return err
	}
	defer func() { _ = rt.CloseDocument(doc) }()

	n, err := rt.PageCount(doc)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s\n", fileStyle.Render(path), countStyle.Render(fmt.Sprintf("%d pages", n)))
	if title, err := rt.Title(doc); err == nil && title != "" {
		fmt.Printf("  title %q\n", title)
	}

	for i := 0; i < n; i++ {
		size, err := rt.PageSize(doc, i)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("  %4d  %s", i+1, sizeStyle.Render(fmt.Sprintf("%g x %g pt", size.Width, size.Height)))
		if name := paperName(size.Width, size.Height); name != "" {
			line += "  " + paperStyle.Render(name)
		}
		fmt.Println(line)
	}
	return nil
}

func runGuest(rt *runtime.Runtime, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read guest: %w", err)
	}

	ctx := context.Background()
	e, err := wasmhost.NewEngine(ctx, boundary.New(rt, nil), &wasmhost.Config{CloseOnContextDone: true})
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	_, err = e.Load(ctx, "guest", data)
	return err
}

// paperName names common paper sizes in either orientation.
func paperName(w, h float64) string {
	papers := []struct {
		name string
		w, h float64
	}{
		{"Letter", 612, 792},
		{"Legal", 612, 1008},
		{"Tabloid", 792, 1224},
		{"A3", 842, 1191},
		{"A4", 595, 842},
		{"A5", 420, 595},
	}
	near := func(a, b float64) bool { return math.Abs(a-b) < 1.5 }
	for _, p := range papers {
		if (near(w, p.w) && near(h, p.h)) || (near(w, p.h) && near(h, p.w)) {
			return p.name
		}
	}
	return ""
}

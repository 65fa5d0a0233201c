package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sqkimofficial/ai-research-platform-sub000/backend"
	"github.com/sqkimofficial/ai-research-platform-sub000/config"
	"github.com/sqkimofficial/ai-research-platform-sub000/doctree"
	"github.com/sqkimofficial/ai-research-platform-sub000/parser"
	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

// command is one CLI subcommand. It returns the process exit code.
type command func(args []string, env *cliEnv) int

// cliEnv carries what every subcommand needs.
type cliEnv struct {
	store  backend.Store
	opts   []doctree.Option
	cfg    *config.Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

var commands = map[string]command{
	"summary":  runSummary,
	"markdown": runMarkdown,
	"elements": runElements,
	"insert":   runInsert,
	"import":   runImport,
	"search":   runSearch,
}

// runCommand dispatches a subcommand against an open store.
func runCommand(name string, args []string, store backend.Store, cfg *config.Config, logger *slog.Logger) int {
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "docstruct: unknown command %q\n\n", name)
		usage()
		return 2
	}
	env := &cliEnv{
		store:  store,
		opts:   treeOptions(cfg, logger),
		cfg:    cfg,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	return cmd(args, env)
}

// runSummary prints a document outline.
func runSummary(args []string, env *cliEnv) int {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	depth := fs.Int("depth", env.cfg.Summary.MaxDepth, "Outline depth limit")
	fs.Usage = func() {
		fmt.Fprintf(env.stderr, "Usage: docstruct summary [-depth N] DOC\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc, err := env.store.GetDocument(ctx, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(env.stderr, "docstruct summary: %v\n", err)
		return 1
	}
	fmt.Fprintln(env.stdout, doctree.Summarize(doc.Elements, *depth, env.opts...))
	return 0
}

// runMarkdown prints a document as markdown.
func runMarkdown(args []string, env *cliEnv) int {
	fs := flag.NewFlagSet("markdown", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	embed := fs.Bool("embed-ids", false, "Tag blocks with id comments for round-tripping")
	fs.Usage = func() {
		fmt.Fprintf(env.stderr, "Usage: docstruct markdown [-embed-ids] DOC\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if md, ok := env.store.(backend.MarkdownImporter); ok {
		out, err := md.ExportMarkdown(ctx, fs.Arg(0), *embed)
		if err != nil {
			fmt.Fprintf(env.stderr, "docstruct markdown: %v\n", err)
			return 1
		}
		fmt.Fprintln(env.stdout, out)
		return 0
	}

	doc, err := env.store.GetDocument(ctx, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(env.stderr, "docstruct markdown: %v\n", err)
		return 1
	}
	fmt.Fprintln(env.stdout, doctree.Render(doc.Elements, env.opts...))
	return 0
}

// runElements prints the flat element list as JSON.
func runElements(args []string, env *cliEnv) int {
	if len(args) != 1 {
		fmt.Fprintf(env.stderr, "Usage: docstruct elements DOC\n")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc, err := env.store.GetDocument(ctx, args[0])
	if err != nil {
		fmt.Fprintf(env.stderr, "docstruct elements: %v\n", err)
		return 1
	}
	tree := doctree.Build(doc.Elements, env.opts...)
	enc := json.NewEncoder(env.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tree.Flatten()); err != nil {
		fmt.Fprintf(env.stderr, "docstruct elements: %v\n", err)
		return 1
	}
	return 0
}

// runInsert reads a JSON array of elements from stdin and inserts it.
func runInsert(args []string, env *cliEnv) int {
	fs := flag.NewFlagSet("insert", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	strategy := fs.String("strategy", string(types.InsertAtEnd), "insert_at_end, insert_after, insert_before or insert_into")
	target := fs.String("target", "", "Display id of the target element")
	position := fs.String("position", "", "For insert_into: beginning or end")
	fs.Usage = func() {
		fmt.Fprintf(env.stderr, "Usage: docstruct insert [-strategy S] [-target ID] [-position P] DOC < elements.json\n\n")
		fmt.Fprintf(env.stderr, "Prints the inserted ids with their display ids.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	if env.cfg.ReadOnly {
		fmt.Fprintf(env.stderr, "docstruct insert: %v\n", backend.ErrReadOnly)
		return 1
	}

	var inputs []types.ElementInput
	if err := json.NewDecoder(env.stdin).Decode(&inputs); err != nil {
		fmt.Fprintf(env.stderr, "docstruct insert: decode elements: %v\n", err)
		return 1
	}
	elements := make([]types.Element, len(inputs))
	for i, in := range inputs {
		elements[i] = in.Element()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	docID := fs.Arg(0)
	doc, err := env.store.GetDocument(ctx, docID)
	if err != nil {
		fmt.Fprintf(env.stderr, "docstruct insert: %v\n", err)
		return 1
	}

	directive := types.Directive{
		Strategy: types.Strategy(*strategy),
		TargetID: *target,
		Position: types.Position(*position),
	}
	tree := doctree.Build(doc.Elements, env.opts...)
	res, err := tree.Insert(elements, directive)
	if err != nil {
		fmt.Fprintf(env.stderr, "docstruct insert: %v\n", err)
		return 1
	}

	doc.Elements = tree.Flatten()
	if _, err := env.store.SaveDocument(ctx, doc, doc.Version); err != nil {
		fmt.Fprintf(env.stderr, "docstruct insert: %v\n", err)
		return 1
	}

	for _, w := range res.Warnings {
		fmt.Fprintf(env.stderr, "warning: %s\n", w)
	}
	for _, id := range res.Inserted {
		fmt.Fprintf(env.stdout, "%s\t%s\n", tree.Find(id).DisplayID, id)
	}
	return 0
}

// runImport creates or replaces a document from a markdown file or stdin.
func runImport(args []string, env *cliEnv) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	docID := fs.String("doc", "", "Document id (required)")
	fs.StringVar(docID, "d", "", "Document id (required)")
	fs.Usage = func() {
		fmt.Fprintf(env.stderr, "Usage: docstruct import --doc DOC [FILE.md]\n")
		fmt.Fprintf(env.stderr, "       cat FILE.md | docstruct import -d DOC\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}
	if *docID == "" {
		fmt.Fprintf(env.stderr, "docstruct import: --doc is required\n\n")
		fs.Usage()
		return 2
	}
	if env.cfg.ReadOnly {
		fmt.Fprintf(env.stderr, "docstruct import: %v\n", backend.ErrReadOnly)
		return 1
	}

	var markdown string
	if fs.NArg() > 0 {
		data, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(env.stderr, "docstruct import: %v\n", err)
			return 1
		}
		markdown = string(data)
	} else {
		markdown = readContent(env.stdin)
	}
	if strings.TrimSpace(markdown) == "" {
		fmt.Fprintf(env.stderr, "docstruct import: no markdown provided\n")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	doc, err := importMarkdown(ctx, env.store, *docID, markdown)
	if err != nil {
		fmt.Fprintf(env.stderr, "docstruct import: %v\n", err)
		return 1
	}
	fmt.Fprintf(env.stdout, "%s\tversion %d\t%d elements\n", doc.ID, doc.Version, len(doc.Elements))
	return 0
}

// runSearch performs full-text search and prints results to stdout.
func runSearch(args []string, env *cliEnv) int {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	limit := fs.Int("limit", 10, "Max results")
	fs.Usage = func() {
		fmt.Fprintf(env.stderr, "Usage: docstruct search [-limit N] QUERY\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}

	query := strings.Join(fs.Args(), " ")
	if query == "" {
		fs.Usage()
		return 2
	}

	searcher, ok := env.store.(backend.Searcher)
	if !ok {
		fmt.Fprintf(env.stderr, "docstruct search: backend %s has no search index\n", env.cfg.Backend)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hits, err := searcher.SearchElements(ctx, query, *limit)
	if err != nil {
		fmt.Fprintf(env.stderr, "docstruct search: %v\n", err)
		return 1
	}
	if len(hits) == 0 {
		fmt.Fprintf(env.stderr, "no results for %q\n", query)
		return 1
	}
	for _, h := range hits {
		fmt.Fprintf(env.stdout, "%s | %s | %s\n", h.DocumentID, h.ElementID, parser.Snippet(h.Content, 80))
	}
	return 0
}

// --- Helpers ---

// importMarkdown uses the backend importer when there is one.
func importMarkdown(ctx context.Context, store backend.Store, docID, markdown string) (*types.Document, error) {
	if md, ok := store.(backend.MarkdownImporter); ok {
		return md.ImportMarkdown(ctx, docID, markdown)
	}

	doc, err := store.GetDocument(ctx, docID)
	if errors.Is(err, backend.ErrNotFound) {
		doc, err = store.CreateDocument(ctx, docID, "")
	}
	if err != nil {
		return nil, err
	}
	doc.Elements = parser.MarkdownToElements(markdown, nil)
	return store.SaveDocument(ctx, doc, doc.Version)
}

// readContent reads r when it is piped, not a terminal.
func readContent(r io.Reader) string {
	if f, ok := r.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil {
			return ""
		}
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			return "" // stdin is a terminal, not piped
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sqkimofficial/ai-research-platform-sub000/backend"
	"github.com/sqkimofficial/ai-research-platform-sub000/config"
	"github.com/sqkimofficial/ai-research-platform-sub000/sqlstore"
	"github.com/sqkimofficial/ai-research-platform-sub000/vault"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	readOnly := flag.Bool("read-only", false, "Disable all write operations")
	backendName := flag.String("backend", "", "Storage backend: vault or sqlite (overrides config)")
	path := flag.String("path", "", "Vault directory or SQLite file (overrides config)")
	watch := flag.Bool("watch", false, "Reload vault documents changed on disk")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "docstruct: %v\n", err)
		os.Exit(1)
	}
	if *readOnly {
		cfg.ReadOnly = true
	}
	if *backendName != "" {
		cfg.Backend = *backendName
	}
	if *path != "" {
		cfg.Path = *path
	}
	if *watch {
		cfg.Watch = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "docstruct: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Logger("docstruct")

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "docstruct: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	if args := flag.Args(); len(args) > 0 {
		code := runCommand(args[0], args[1:], store, cfg, logger)
		closeStore()
		os.Exit(code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if v, ok := store.(*vault.Client); ok && cfg.Watch {
		if err := v.Watch(ctx); err != nil {
			logger.Warn("vault watcher disabled", "error", err)
		}
	}

	srv := newServer(store, cfg, logger)
	logger.Info("serving MCP over stdio", "backend", cfg.Backend, "path", cfg.Path, "read_only", cfg.ReadOnly)

	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
		fmt.Fprintf(os.Stderr, "docstruct: %v\n", err)
		closeStore()
		os.Exit(1)
	}
}

// openStore opens the configured backend. The returned func releases it.
func openStore(cfg *config.Config, logger *slog.Logger) (backend.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		opts := []sqlstore.Option{sqlstore.WithLogger(logger)}
		if cfg.ReadOnly {
			opts = append(opts, sqlstore.WithReadOnly())
		}
		s, err := sqlstore.Open(cfg.Path, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		opts := []vault.Option{vault.WithLogger(logger)}
		if cfg.ReadOnly {
			opts = append(opts, vault.WithReadOnly())
		}
		c := vault.New(cfg.Path, opts...)
		if err := c.Load(); err != nil {
			return nil, nil, err
		}
		return c, func() error { return nil }, nil
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: docstruct [flags] [command args...]\n\n")
	fmt.Fprintf(os.Stderr, "With no command, serves the document tools over MCP stdio.\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  summary DOC        print the outline with display ids\n")
	fmt.Fprintf(os.Stderr, "  markdown DOC       print the document as markdown\n")
	fmt.Fprintf(os.Stderr, "  elements DOC       print the flat element list as JSON\n")
	fmt.Fprintf(os.Stderr, "  insert DOC         insert a JSON element array read from stdin\n")
	fmt.Fprintf(os.Stderr, "  import -doc DOC    import markdown from a file or stdin\n")
	fmt.Fprintf(os.Stderr, "  search QUERY       search all documents\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}

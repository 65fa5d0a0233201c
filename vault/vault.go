package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sqkimofficial/ai-research-platform-sub000/backend"
	"github.com/sqkimofficial/ai-research-platform-sub000/logging"
	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

// docExt is the file extension of a stored document.
const docExt = ".json"

// Client implements backend.Store over a directory on disk, one JSON file
// per document. It reads every document on Load and serves reads from memory;
// writes go to disk first and then replace the cached copy.
type Client struct {
	dir      string
	readOnly bool
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.RWMutex
	docs   map[string]*types.Document // id → document
	search *SearchIndex
}

// Option configures a vault Client.
type Option func(*Client)

// WithReadOnly rejects every write with backend.ErrReadOnly.
func WithReadOnly() Option {
	return func(c *Client) { c.readOnly = true }
}

// WithLogger sets the logger used for skipped files and writes.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock overrides the clock used for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a new vault client rooted at dir. Call Load() to read it.
func New(dir string, opts ...Option) *Client {
	c := &Client{
		dir:    dir,
		logger: logging.Discard(),
		now:    time.Now,
		docs:   make(map[string]*types.Document),
		search: NewSearchIndex(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads all .json documents in the directory and builds the search
// index. A missing directory is created unless the client is read-only.
func (c *Client) Load() error {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) && !c.readOnly {
		return os.MkdirAll(c.dir, 0o755)
	}
	if err != nil {
		return fmt.Errorf("read vault: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range entries {
		name := entry.Name()
		// Skip hidden files and directories (.git, editor swap files).
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, docExt) {
			continue
		}

		doc, err := readDocument(filepath.Join(c.dir, name))
		if err != nil {
			c.logger.Warn("skipping unreadable document", "file", name, "error", err)
			continue
		}
		if doc.ID == "" {
			doc.ID = strings.TrimSuffix(name, docExt)
		}
		c.docs[doc.ID] = doc
		c.search.ReindexDocument(doc)
	}
	c.logger.Debug("vault loaded", "dir", c.dir, "documents", len(c.docs))
	return nil
}

// Reload drops every cached document and re-reads the directory. Use it
// after files were changed by another process.
func (c *Client) Reload() error {
	c.mu.Lock()
	c.docs = make(map[string]*types.Document)
	c.search = NewSearchIndex()
	c.mu.Unlock()
	return c.Load()
}

// --- backend.Store implementation ---

func (c *Client) Ping(_ context.Context) error {
	info, err := os.Stat(c.dir)
	if err != nil {
		return fmt.Errorf("vault path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault path is not a directory: %s", c.dir)
	}
	return nil
}

func (c *Client) ListDocuments(_ context.Context) ([]types.DocumentInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]types.DocumentInfo, 0, len(c.docs))
	for _, doc := range c.docs {
		infos = append(infos, backend.Summarize(doc))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

func (c *Client) GetDocument(_ context.Context, id string) (*types.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrNotFound, id)
	}
	return copyDocument(doc), nil
}

func (c *Client) CreateDocument(_ context.Context, id, title string) (*types.Document, error) {
	if c.readOnly {
		return nil, backend.ErrReadOnly
	}
	if err := validID(id); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrExists, id)
	}

	doc := &types.Document{
		ID:        id,
		Title:     title,
		Version:   1,
		UpdatedAt: c.now().UTC(),
		Elements:  []types.Element{},
	}
	if err := c.writeLocked(doc); err != nil {
		return nil, err
	}
	return copyDocument(doc), nil
}

func (c *Client) SaveDocument(_ context.Context, doc *types.Document, expectedVersion int) (*types.Document, error) {
	if c.readOnly {
		return nil, backend.ErrReadOnly
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.docs[doc.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrNotFound, doc.ID)
	}
	if current.Version != expectedVersion {
		return nil, fmt.Errorf("%w: %s is at version %d, expected %d",
			backend.ErrVersionConflict, doc.ID, current.Version, expectedVersion)
	}

	next := copyDocument(doc)
	next.Version = current.Version + 1
	next.UpdatedAt = c.now().UTC()
	if next.Title == "" {
		next.Title = current.Title
	}
	if next.Elements == nil {
		next.Elements = []types.Element{}
	}
	if err := c.writeLocked(next); err != nil {
		return nil, err
	}
	return copyDocument(next), nil
}

func (c *Client) DeleteDocument(_ context.Context, id string) error {
	if c.readOnly {
		return backend.ErrReadOnly
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; !ok {
		return fmt.Errorf("%w: %s", backend.ErrNotFound, id)
	}
	if err := os.Remove(c.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete document: %w", err)
	}
	delete(c.docs, id)
	c.search.RemoveDocument(id)
	c.logger.Info("document deleted", "document_id", id)
	return nil
}

// SearchElements implements backend.Searcher.
func (c *Client) SearchElements(_ context.Context, query string, limit int) ([]backend.SearchHit, error) {
	// Reload swaps the index under c.mu.
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.search.Search(query, limit), nil
}

// --- Internal ---

func (c *Client) path(id string) string {
	return filepath.Join(c.dir, id+docExt)
}

// writeLocked persists doc atomically (temp file + rename) and refreshes the
// cache and index. Caller holds c.mu.
func (c *Client) writeLocked(doc *types.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, "."+doc.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write document: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(doc.ID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write document: %w", err)
	}

	c.docs[doc.ID] = doc
	c.search.ReindexDocument(doc)
	c.logger.Debug("document written", "document_id", doc.ID, "version", doc.Version, "elements", len(doc.Elements))
	return nil
}

func readDocument(path string) (*types.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc types.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if doc.Elements == nil {
		doc.Elements = []types.Element{}
	}
	return &doc, nil
}

// validID rejects ids that cannot be used as a file name inside the vault.
func validID(id string) error {
	if id == "" || id == "." || id == ".." || strings.HasPrefix(id, ".") ||
		strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid document id %q", id)
	}
	return nil
}

// copyDocument returns a deep copy so callers can mutate elements freely.
func copyDocument(doc *types.Document) *types.Document {
	out := *doc
	out.Elements = make([]types.Element, len(doc.Elements))
	for i, e := range doc.Elements {
		out.Elements[i] = e.Clone()
	}
	return &out
}

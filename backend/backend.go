package backend

import (
	"context"
	"errors"
	"sort"

	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

var (
	// ErrNotFound is returned when a document id has no stored document.
	ErrNotFound = errors.New("document not found")

	// ErrExists is returned by CreateDocument when the id is taken.
	ErrExists = errors.New("document already exists")

	// ErrVersionConflict is returned by SaveDocument when the stored version
	// moved on since the caller read it.
	ErrVersionConflict = errors.New("document version conflict")

	// ErrReadOnly is returned for write operations on a read-only store.
	ErrReadOnly = errors.New("document store is read-only")
)

// Store is the contract every document store must implement.
// The filesystem store (vault.Client) and the SQLite store (sqlstore.Store)
// satisfy it. The tree engine never calls a Store: callers load a document,
// run the engine on its flat element list, and save with the version they read.
type Store interface {
	ListDocuments(ctx context.Context) ([]types.DocumentInfo, error)
	GetDocument(ctx context.Context, id string) (*types.Document, error)
	CreateDocument(ctx context.Context, id, title string) (*types.Document, error)

	// SaveDocument replaces the stored element list when the stored version
	// equals expectedVersion. The returned document carries the new version.
	SaveDocument(ctx context.Context, doc *types.Document, expectedVersion int) (*types.Document, error)

	DeleteDocument(ctx context.Context, id string) error

	// Connectivity
	Ping(ctx context.Context) error
}

// Searcher is implemented by stores that maintain a full-text element index.
type Searcher interface {
	SearchElements(ctx context.Context, query string, limit int) ([]SearchHit, error)
}

// MarkdownImporter is implemented by stores that can ingest and emit markdown
// documents directly.
type MarkdownImporter interface {
	ImportMarkdown(ctx context.Context, id, markdown string) (*types.Document, error)
	ExportMarkdown(ctx context.Context, id string, embedIDs bool) (string, error)
}

// SearchHit is an element that matched a search query.
type SearchHit struct {
	DocumentID string            `json:"documentId"`
	ElementID  string            `json:"elementId"`
	Type       types.ElementType `json:"type"`
	Content    string            `json:"content"`
	Score      int               `json:"score"`
}

// SortByRelevance orders hits by score, then by document and element id so
// results are stable across runs.
func SortByRelevance(hits []SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].DocumentID != hits[j].DocumentID {
			return hits[i].DocumentID < hits[j].DocumentID
		}
		return hits[i].ElementID < hits[j].ElementID
	})
}

// Summarize builds the listing entry for doc.
func Summarize(doc *types.Document) types.DocumentInfo {
	return types.DocumentInfo{
		ID:           doc.ID,
		Title:        doc.Title,
		Version:      doc.Version,
		ElementCount: len(doc.Elements),
		UpdatedAt:    doc.UpdatedAt,
	}
}

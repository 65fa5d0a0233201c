package vault

import (
	"strings"
	"sync"

	"github.com/sqkimofficial/ai-research-platform-sub000/backend"
	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

// SearchIndex is a simple inverted index for full-text search.
// Maps lowercase terms to the elements containing them.
type SearchIndex struct {
	mu sync.RWMutex
	// term → list of element references
	index map[string][]elementRef
	// document id → set of terms (for efficient removal on reindex)
	docTerms map[string]map[string]bool
}

// elementRef identifies an element within a document.
type elementRef struct {
	docID   string
	id      string
	typ     types.ElementType
	content string
}

// NewSearchIndex creates an empty search index.
func NewSearchIndex() *SearchIndex {
	return &SearchIndex{
		index:    make(map[string][]elementRef),
		docTerms: make(map[string]map[string]bool),
	}
}

// ReindexDocument removes and re-adds a single document.
func (si *SearchIndex) ReindexDocument(doc *types.Document) {
	si.mu.Lock()
	defer si.mu.Unlock()

	si.removeDocumentLocked(doc.ID)
	si.indexDocumentLocked(doc)
}

// RemoveDocument removes a document from the index.
func (si *SearchIndex) RemoveDocument(id string) {
	si.mu.Lock()
	defer si.mu.Unlock()
	si.removeDocumentLocked(id)
}

// Search finds elements matching all terms in the query (AND semantics),
// ranked by how often the terms occur in each element.
func (si *SearchIndex) Search(query string, limit int) []backend.SearchHit {
	si.mu.RLock()
	defer si.mu.RUnlock()

	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	if limit <= 0 {
		limit = 20
	}

	// Start with the rarest term for efficiency.
	var rarest string
	rarestCount := int(^uint(0) >> 1) // max int
	for _, t := range terms {
		if count := len(si.index[t]); count < rarestCount {
			rarestCount = count
			rarest = t
		}
	}

	candidates := si.index[rarest]
	if len(candidates) == 0 {
		return nil
	}

	// Element keys for each other term.
	otherTermSets := make([]map[string]bool, 0, len(terms)-1)
	for _, t := range terms {
		if t == rarest {
			continue
		}
		set := make(map[string]bool)
		for _, ref := range si.index[t] {
			set[ref.key()] = true
		}
		otherTermSets = append(otherTermSets, set)
	}

	var hits []backend.SearchHit
	for _, ref := range candidates {
		inAll := true
		for _, set := range otherTermSets {
			if !set[ref.key()] {
				inAll = false
				break
			}
		}
		if !inAll {
			continue
		}

		hits = append(hits, backend.SearchHit{
			DocumentID: ref.docID,
			ElementID:  ref.id,
			Type:       ref.typ,
			Content:    ref.content,
			Score:      countTermHits(ref.content, terms),
		})
	}

	backend.SortByRelevance(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// --- Internal ---

func (r elementRef) key() string { return r.docID + "\x00" + r.id }

func (si *SearchIndex) indexDocumentLocked(doc *types.Document) {
	terms := make(map[string]bool)
	for _, e := range doc.Elements {
		ref := elementRef{
			docID:   doc.ID,
			id:      e.ID,
			typ:     e.Type,
			content: e.Content,
		}

		elementTerms := tokenize(e.Content)
		if title := e.Title(); title != "" {
			elementTerms = append(elementTerms, tokenize(title)...)
		}

		seen := make(map[string]bool)
		for _, term := range elementTerms {
			if seen[term] {
				continue
			}
			seen[term] = true
			terms[term] = true
			si.index[term] = append(si.index[term], ref)
		}
	}
	si.docTerms[doc.ID] = terms
}

func (si *SearchIndex) removeDocumentLocked(id string) {
	terms, ok := si.docTerms[id]
	if !ok {
		return
	}

	for term := range terms {
		refs := si.index[term]
		filtered := refs[:0]
		for _, ref := range refs {
			if ref.docID != id {
				filtered = append(filtered, ref)
			}
		}
		if len(filtered) == 0 {
			delete(si.index, term)
		} else {
			si.index[term] = filtered
		}
	}

	delete(si.docTerms, id)
}

// tokenize splits text into lowercase terms for indexing.
// Strips common markdown syntax and splits on whitespace + punctuation.
func tokenize(text string) []string {
	text = strings.NewReplacer(
		"#", " ",
		"**", " ",
		"__", " ",
		"`", " ",
		"|", " ",
		"![", " ",
		"](", " ",
	).Replace(text)

	text = strings.ToLower(text)

	// Split on non-alphanumeric (Unicode-aware).
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !isWordChar(r)
	})

	var terms []string
	for _, w := range words {
		if len(w) >= 2 { // skip single chars
			terms = append(terms, w)
		}
	}

	return terms
}

// isWordChar returns true for letters and digits (Unicode-aware).
func isWordChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r > 127
}

func countTermHits(content string, terms []string) int {
	lower := strings.ToLower(content)
	count := 0
	for _, t := range terms {
		count += strings.Count(lower, t)
	}
	return count
}

package vault

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/sqkimofficial/ai-research-platform-sub000/backend"
	"github.com/sqkimofficial/ai-research-platform-sub000/doctree"
	"github.com/sqkimofficial/ai-research-platform-sub000/parser"
	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

// importNamespace seeds deterministic element ids for imported markdown.
var importNamespace = uuid.MustParse("6f1c7d0e-2b7a-4c35-9a57-3d8f0e6b1c42")

// ImportMarkdown parses a markdown document (optionally with YAML frontmatter)
// into elements and stores it under id, creating the document when needed.
// Elements carrying an embedded id comment keep that id; the rest get ids
// derived from the document id and block position, so importing the same file
// twice yields the same ids.
func (c *Client) ImportMarkdown(ctx context.Context, id, markdown string) (*types.Document, error) {
	if c.readOnly {
		return nil, backend.ErrReadOnly
	}
	if err := validID(id); err != nil {
		return nil, err
	}

	props, body := parseFrontmatter(markdown)

	ordinal := 0
	elements := parser.MarkdownToElements(body, func() string {
		ordinal++
		return deterministicID(id, ordinal)
	})
	elements = applyEmbeddedIDs(elements)

	title := frontmatterTitle(props)
	if title == "" {
		for _, e := range elements {
			if e.Type == types.TypeSection {
				title = e.Title()
				break
			}
		}
	}

	doc, err := c.GetDocument(ctx, id)
	if err != nil {
		doc, err = c.CreateDocument(ctx, id, title)
		if err != nil {
			return nil, err
		}
	}
	if title != "" {
		doc.Title = title
	}
	doc.Elements = elements

	saved, err := c.SaveDocument(ctx, doc, doc.Version)
	if err != nil {
		return nil, err
	}
	c.logger.Info("markdown imported", "document_id", id, "elements", len(elements))
	return saved, nil
}

// ExportMarkdown renders a stored document as markdown with a title
// frontmatter block. With embedIDs, every element is tagged with an id
// comment so a later ImportMarkdown keeps the same immutable ids.
func (c *Client) ExportMarkdown(ctx context.Context, id string, embedIDs bool) (string, error) {
	doc, err := c.GetDocument(ctx, id)
	if err != nil {
		return "", err
	}

	var body string
	if embedIDs {
		tree := doctree.Build(doc.Elements)
		var parts []string
		for _, e := range tree.Flatten() {
			if strings.TrimSpace(e.Content) == "" {
				continue
			}
			parts = append(parts, embedID(strings.TrimRight(e.Content, "\n"), e.ID))
		}
		body = strings.Join(parts, "\n\n")
	} else {
		body = doctree.Render(doc.Elements)
	}

	var props map[string]any
	if doc.Title != "" {
		props = map[string]any{"title": doc.Title}
	}
	out := renderFrontmatter(props) + body
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out, nil
}

// deterministicID generates a stable UUID from a document id and the
// position of the block in the imported file.
func deterministicID(docID string, ordinal int) string {
	return uuid.NewSHA1(importNamespace, []byte(fmt.Sprintf("%s:%d", docID, ordinal))).String()
}

// idCommentPattern matches HTML comments containing ids: <!-- id: UUID -->
var idCommentPattern = regexp.MustCompile(`<!--\s*id:\s*([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})\s*-->`)

// extractID attempts to extract an id from an HTML comment in the content.
// Returns the id and the content with the comment stripped.
// If no id comment is found, returns empty string and original content.
func extractID(content string) (string, string) {
	matches := idCommentPattern.FindStringSubmatch(content)
	if len(matches) < 2 {
		return "", content
	}
	clean := idCommentPattern.ReplaceAllString(content, "")
	return matches[1], strings.TrimSpace(clean)
}

// embedID adds an id comment to the content.
// For headings, it adds at the end of the heading line.
// For other content, it adds as a standalone line at the beginning.
func embedID(content, id string) string {
	comment := fmt.Sprintf("<!-- id: %s -->", id)

	lines := strings.Split(content, "\n")
	if len(lines) > 0 && parser.HeadingLevel(lines[0]) > 0 {
		lines[0] = strings.TrimSpace(lines[0]) + " " + comment
		return strings.Join(lines, "\n")
	}

	return comment + "\n" + content
}

// applyEmbeddedIDs swaps generated ids for the ids named in id comments.
// A comment standing alone is a block of its own in markdown; it tags the
// element that follows it and is dropped.
func applyEmbeddedIDs(elements []types.Element) []types.Element {
	remap := make(map[string]string)
	used := make(map[string]bool)
	out := make([]types.Element, 0, len(elements))

	pending := ""
	for _, e := range elements {
		id, clean := extractID(e.Content)
		if id != "" && clean == "" {
			pending = id
			continue
		}
		if id == "" {
			id = pending
		} else {
			e.Content = clean
		}
		pending = ""

		if id != "" && !used[id] {
			remap[e.ID] = id
			e.ID = id
		}
		used[e.ID] = true
		out = append(out, e)
	}

	for i := range out {
		if to, ok := remap[out[i].ParentID]; ok {
			out[i].ParentID = to
		}
	}
	return out
}

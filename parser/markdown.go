package parser

import (
	"strings"

	"github.com/google/uuid"
	mdast "github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	mdtext "github.com/yuin/goldmark/text"

	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

// MarkdownToElements parses a markdown body (frontmatter already stripped)
// into a flat, parent-before-child element list. Headings open sections:
// a heading with no enclosing heading becomes a section, a deeper one a
// subsection of the nearest shallower heading. Every other top-level block
// becomes a leaf element parented to the innermost open heading.
//
// newID supplies the immutable id for each element; nil means random UUIDs.
func MarkdownToElements(body string, newID func() string) []types.Element {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	if newID == nil {
		newID = uuid.NewString
	}

	src := []byte(body)
	root := md.Parser().Parse(mdtext.NewReader(src))

	type block struct {
		node  mdast.Node
		start int
	}

	var blocks []block
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		start, ok := blockStart(n, src)
		if !ok {
			// No source position (thematic break, empty fence): its text
			// stays attached to the previous block's range.
			continue
		}
		blocks = append(blocks, block{node: n, start: start})
	}

	type stackEntry struct {
		id    string
		level int
	}

	var elements []types.Element
	var stack []stackEntry

	for i, b := range blocks {
		end := len(src)
		if i+1 < len(blocks) {
			end = blocks[i+1].start
		}
		raw := strings.TrimRight(string(src[b.start:end]), " \t\r\n")
		if raw == "" {
			continue
		}

		el := types.Element{ID: newID(), Content: raw}

		if h, ok := b.node.(*mdast.Heading); ok {
			// Pop until the top of the stack is a shallower heading.
			for len(stack) > 0 && stack[len(stack)-1].level >= h.Level {
				stack = stack[:len(stack)-1]
			}
			el.Type = types.TypeSection
			if len(stack) > 0 {
				el.Type = types.TypeSubsection
				el.ParentID = stack[len(stack)-1].id
			}
			el.Metadata = map[string]any{
				"title": extractText(h, src),
				"level": h.Level,
			}
			elements = append(elements, el)
			stack = append(stack, stackEntry{id: el.ID, level: h.Level})
			continue
		}

		if len(stack) > 0 {
			el.ParentID = stack[len(stack)-1].id
		}
		el.Type, el.Metadata = classifyBlock(b.node, src)
		elements = append(elements, el)
	}

	return elements
}

// classifyBlock maps a non-heading block node onto an element type.
func classifyBlock(n mdast.Node, src []byte) (types.ElementType, map[string]any) {
	switch node := n.(type) {
	case *mdast.FencedCodeBlock:
		if lang := string(node.Language(src)); lang != "" {
			return types.TypeCodeBlock, map[string]any{"language": lang}
		}
		return types.TypeCodeBlock, nil
	case *mdast.CodeBlock:
		return types.TypeCodeBlock, nil
	case *east.Table:
		return types.TypeTable, nil
	case *mdast.List:
		return types.TypeList, map[string]any{"ordered": node.IsOrdered()}
	case *mdast.Blockquote:
		return types.TypeBlockquote, nil
	case *mdast.Paragraph:
		if img := soleImage(node); img != nil {
			meta := map[string]any{
				"src": string(img.Destination),
				"alt": extractText(img, src),
			}
			if len(img.Title) > 0 {
				meta["caption"] = string(img.Title)
			}
			return types.TypeImage, meta
		}
	}
	return types.TypeParagraph, nil
}

// soleImage returns the image when a paragraph holds nothing but one image.
func soleImage(p *mdast.Paragraph) *mdast.Image {
	if p.ChildCount() != 1 {
		return nil
	}
	img, _ := p.FirstChild().(*mdast.Image)
	return img
}

// blockStart returns the byte offset of the first source line of a top-level
// block, found from the smallest segment offset among its descendants.
func blockStart(n mdast.Node, src []byte) (int, bool) {
	first := -1
	mdast.Walk(n, func(nn mdast.Node, entering bool) (mdast.WalkStatus, error) {
		if !entering {
			return mdast.WalkContinue, nil
		}
		off := -1
		if nn.Type() == mdast.TypeBlock && nn.Lines().Len() > 0 {
			off = nn.Lines().At(0).Start
		} else if t, ok := nn.(*mdast.Text); ok {
			off = t.Segment.Start
		}
		if off >= 0 && (first < 0 || off < first) {
			first = off
		}
		return mdast.WalkContinue, nil
	})
	if first < 0 {
		return 0, false
	}

	start := lineStart(src, first)
	// Fence lines are not part of a fenced block's segments.
	if _, ok := n.(*mdast.FencedCodeBlock); ok && start > 0 {
		start = lineStart(src, start-1)
	}
	return start, true
}

// lineStart walks back from off to the first byte of its line.
func lineStart(src []byte, off int) int {
	if off > len(src) {
		off = len(src)
	}
	for off > 0 && src[off-1] != '\n' {
		off--
	}
	return off
}

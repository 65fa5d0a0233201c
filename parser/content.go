package parser

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	mdast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	mdtext "github.com/yuin/goldmark/text"
)

var (
	// anything that is not a lowercase letter, digit or hyphen
	slugStripPattern = regexp.MustCompile(`[^a-z0-9-]+`)

	// runs of whitespace collapse to a single hyphen
	slugSpacePattern = regexp.MustCompile(`\s+`)
)

// md is shared by every parse in this package. goldmark parsers are safe for
// concurrent use once constructed.
var md = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Strikethrough),
)

// HeadingLevel returns the heading level (1-6) for a markdown ATX heading line,
// or 0 if the line is not a heading.
func HeadingLevel(line string) int {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return 0
	}

	level := 0
	for _, ch := range trimmed {
		if ch == '#' {
			level++
		} else {
			break
		}
	}

	if level > 6 || level == 0 {
		return 0
	}

	// Must be followed by a space or be just hashes (e.g. "## " or "##").
	rest := trimmed[level:]
	if rest != "" && !strings.HasPrefix(rest, " ") {
		return 0
	}

	return level
}

// HeadingTitle returns the text of the first markdown heading in content,
// or "" if content has no heading.
func HeadingTitle(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	src := []byte(content)
	root := md.Parser().Parse(mdtext.NewReader(src))

	var title string
	mdast.Walk(root, func(n mdast.Node, entering bool) (mdast.WalkStatus, error) {
		if !entering {
			return mdast.WalkContinue, nil
		}
		if h, ok := n.(*mdast.Heading); ok {
			title = extractText(h, src)
			return mdast.WalkStop, nil
		}
		return mdast.WalkContinue, nil
	})
	return title
}

// Slugify lowercases s, turns whitespace into hyphens and strips every other
// character that is not alphanumeric. "Related Work (2024)" → "related-work-2024".
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugSpacePattern.ReplaceAllString(s, "-")
	return slugStripPattern.ReplaceAllString(s, "")
}

// StripHeading removes a leading heading line from content and returns the
// trimmed remainder.
func StripHeading(content string) string {
	content = strings.TrimSpace(content)
	first, rest, _ := strings.Cut(content, "\n")
	if HeadingLevel(first) == 0 {
		return content
	}
	return strings.TrimSpace(rest)
}

// Snippet returns the first line of s, cut to at most n runes with a trailing
// ellipsis when shortened.
func Snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// extractText concatenates the text segments below n.
func extractText(n mdast.Node, src []byte) string {
	var b bytes.Buffer
	mdast.Walk(n, func(nn mdast.Node, entering bool) (mdast.WalkStatus, error) {
		if !entering {
			return mdast.WalkContinue, nil
		}
		switch t := nn.(type) {
		case *mdast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *mdast.String:
			b.Write(t.Value)
		}
		return mdast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

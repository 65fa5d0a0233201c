package vault

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// parseFrontmatter splits a leading YAML block off an imported markdown file.
// Returns the parsed properties and the body that follows. A file without a
// well-formed frontmatter block yields nil properties and the content as is.
func parseFrontmatter(content string) (map[string]any, string) {
	if !strings.HasPrefix(content, "---") {
		return nil, content
	}

	// content[3:] drops the opening "---", leaving "\n<yaml>\n---\n<body>".
	parts := strings.SplitN(content[3:], "\n---", 2)
	if len(parts) < 2 {
		return nil, content
	}

	yamlBlock := strings.TrimPrefix(parts[0], "\r\n")
	yamlBlock = strings.TrimPrefix(yamlBlock, "\n")
	body := strings.TrimPrefix(parts[1], "\r\n")
	body = strings.TrimPrefix(body, "\n")

	var props map[string]any
	if err := yaml.Unmarshal([]byte(yamlBlock), &props); err != nil {
		return nil, content
	}

	return props, body
}

// frontmatterTitle returns the string "title" property, or "".
func frontmatterTitle(props map[string]any) string {
	if s, ok := props["title"].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// renderFrontmatter serializes properties to a "---\nkey: value\n---\n"
// block, or "" when there is nothing to write.
func renderFrontmatter(properties map[string]any) string {
	if len(properties) == 0 {
		return ""
	}

	data, err := yaml.Marshal(properties)
	if err != nil {
		return ""
	}

	return "---\n" + strings.TrimRight(string(data), "\n") + "\n---\n"
}

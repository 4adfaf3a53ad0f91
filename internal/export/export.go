// Package export renders structure trees into the textual forms the CLI
// emits: tree art, path lists, nested JSON, YAML, and Markdown.
package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/eihwaz/internal/structure"
)

// Format names a rendering.
type Format string

// Supported renderings.
const (
	FormatTree     Format = "tree"
	FormatPaths    Format = "paths"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tree":
		return FormatTree, nil
	case "paths", "plain", "list":
		return FormatPaths, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("export: unknown format %q", s)
	}
}

// Render dispatches to the named rendering. rootName is used by formats
// that print a heading for the root; it may be empty.
func Render(root *structure.Node, format Format, rootName string) (string, error) {
	switch format {
	case FormatTree:
		return TreeString(root, rootName), nil
	case FormatPaths:
		return PathList(root), nil
	case FormatJSON:
		return JSON(root)
	case FormatYAML:
		return YAML(root)
	case FormatMarkdown:
		return Markdown(root, rootName), nil
	default:
		return "", fmt.Errorf("export: unknown format %q", format)
	}
}

// sortedNames returns child names, directories first, then case-insensitive
// alphabetical, so renderings are stable regardless of input order.
func sortedNames(n *structure.Node) []string {
	names := n.Names()
	sort.SliceStable(names, func(i, j int) bool {
		a, _ := n.Child(names[i])
		b, _ := n.Child(names[j])
		if a.IsDir() != b.IsDir() {
			return a.IsDir()
		}
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

// TreeString renders ASCII tree art with box-drawing connectors. rootName,
// when non-empty, becomes the first line with a trailing slash.
func TreeString(root *structure.Node, rootName string) string {
	var b strings.Builder
	if rootName != "" {
		b.WriteString(rootName)
		b.WriteString("/\n")
	}
	writeTree(&b, root, "")
	return b.String()
}

func writeTree(b *strings.Builder, n *structure.Node, prefix string) {
	names := sortedNames(n)
	for i, name := range names {
		child, _ := n.Child(name)
		last := i == len(names)-1

		connector := "├── "
		extension := "│   "
		if last {
			connector = "└── "
			extension = "    "
		}

		b.WriteString(prefix)
		b.WriteString(connector)
		b.WriteString(name)
		if child.IsDir() {
			b.WriteString("/")
		}
		b.WriteString("\n")

		if child.IsDir() {
			writeTree(b, child, prefix+extension)
		}
	}
}

// PathList renders one slash-separated path per line, directories marked
// with a trailing slash, in depth-first order.
func PathList(root *structure.Node) string {
	var b strings.Builder
	writePaths(&b, root, "")
	return b.String()
}

func writePaths(b *strings.Builder, n *structure.Node, base string) {
	for _, name := range sortedNames(n) {
		child, _ := n.Child(name)
		p := name
		if base != "" {
			p = base + "/" + name
		}
		b.WriteString(p)
		if child.IsDir() {
			b.WriteString("/")
		}
		b.WriteString("\n")
		if child.IsDir() {
			writePaths(b, child, p)
		}
	}
}

// JSON renders the nested-object notation: directories as objects, files as
// null, indented for reading.
func JSON(root *structure.Node) (string, error) {
	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: encode json: %w", err)
	}
	return string(data) + "\n", nil
}

// YAML renders the same nesting as YAML mappings with file values as null.
// A yaml.Node document is built by hand so key order survives; yaml.Marshal
// on a map would sort.
func YAML(root *structure.Node) (string, error) {
	doc := yamlNode(root)
	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("export: encode yaml: %w", err)
	}
	return string(data), nil
}

func yamlNode(n *structure.Node) *yaml.Node {
	if !n.IsDir() {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
	mapping := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range sortedNames(n) {
		child, _ := n.Child(name)
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}
		mapping.Content = append(mapping.Content, key, yamlNode(child))
	}
	return mapping
}

// Markdown renders a fenced tree block with an optional heading, suitable
// for pasting into a README.
func Markdown(root *structure.Node, rootName string) string {
	var b strings.Builder
	if rootName != "" {
		fmt.Fprintf(&b, "# %s\n\n", rootName)
	}
	b.WriteString("```\n")
	b.WriteString(TreeString(root, rootName))
	b.WriteString("```\n")
	return b.String()
}

package artifact

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/planforge/planforge/internal/errors"
)

// Documents are persisted as a YAML front-matter block between ---
// delimiters followed by a markdown rendering. Only the front matter is
// parsed; the rendering is derived and never authoritative.

const frontMatterDelimiter = "---"

// Encode renders a document to its on-disk form.
func Encode(doc *Document) ([]byte, error) {
	meta, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString(frontMatterDelimiter)
	b.WriteString("\n")
	b.Write(meta)
	b.WriteString(frontMatterDelimiter)
	b.WriteString("\n")
	if doc.Body != "" {
		b.WriteString("\n")
		b.WriteString(doc.Body)
		if !strings.HasSuffix(doc.Body, "\n") {
			b.WriteString("\n")
		}
	}
	return []byte(b.String()), nil
}

// Decode parses a document from its on-disk form. The source path is
// used only for error reporting.
func Decode(data []byte, path string) (*Document, error) {
	content := string(data)

	rest, ok := strings.CutPrefix(content, frontMatterDelimiter+"\n")
	if !ok {
		return nil, errors.NewParseError(path, fmt.Errorf("missing opening %q delimiter", frontMatterDelimiter))
	}

	meta, body, ok := strings.Cut(rest, "\n"+frontMatterDelimiter+"\n")
	if !ok {
		// A document may end right at the closing delimiter.
		if trimmed, closed := strings.CutSuffix(rest, "\n"+frontMatterDelimiter); closed {
			meta, body = trimmed, ""
		} else {
			return nil, errors.NewParseError(path, fmt.Errorf("missing closing %q delimiter", frontMatterDelimiter))
		}
	}

	var doc Document
	if err := yaml.Unmarshal([]byte(meta+"\n"), &doc); err != nil {
		return nil, errors.NewParseError(path, err)
	}
	doc.Body = strings.TrimPrefix(body, "\n")

	if err := doc.Validate(); err != nil {
		return nil, errors.NewParseError(path, err)
	}
	return &doc, nil
}

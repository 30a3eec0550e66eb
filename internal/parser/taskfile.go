// Package parser reads Markdown task files: YAML frontmatter carrying task
// settings plus "## Prompt", "## Fixup", and "## Verify" sections.
package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// TaskFile is everything a Markdown task file can configure. Zero values
// mean "not set"; the caller merges these over config and flags.
type TaskFile struct {
	Description string
	Prompt      string
	Fixup       string
	Verify      string

	Allowlist   string
	Concurrency int
	MaxRetries  *int
	Files       []string

	GitEnabled    *bool
	GitBranch     *bool
	GitCommit     *bool
	CommitMessage string
}

// taskFrontmatter is the YAML frontmatter schema.
type taskFrontmatter struct {
	Description string   `yaml:"description"`
	Allowlist   string   `yaml:"allowlist"`
	Concurrency int      `yaml:"concurrency"`
	MaxRetries  *int     `yaml:"max_retries"`
	Verify      string   `yaml:"verify"`
	Files       []string `yaml:"files"`
	Git         *struct {
		Enabled       *bool  `yaml:"enabled"`
		AutoBranch    *bool  `yaml:"auto_branch"`
		AutoCommit    *bool  `yaml:"auto_commit"`
		CommitMessage string `yaml:"commit_message"`
	} `yaml:"git"`
}

// TaskFileParser parses Markdown task files.
type TaskFileParser struct {
	markdown goldmark.Markdown
}

// NewTaskFileParser creates a parser.
func NewTaskFileParser() *TaskFileParser {
	return &TaskFileParser{
		markdown: goldmark.New(),
	}
}

// ParseFile parses the task file at path.
func (p *TaskFileParser) ParseFile(path string) (*TaskFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open task file: %w", err)
	}
	defer f.Close()

	tf, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tf, nil
}

// Parse reads a Markdown task file. The prompt section is required; fixup
// and verify are optional. An inline "verify" frontmatter key and a
// "## Verify" section are mutually exclusive.
func (p *TaskFileParser) Parse(r io.Reader) (*TaskFile, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	tf := &TaskFile{}
	content, frontmatter := extractFrontmatter(content)
	if frontmatter != nil {
		if err := applyFrontmatter(frontmatter, tf); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
	}

	// The AST walk yields the section headings in document order; body
	// extraction is line-based below, which handles fenced code inside
	// prompt bodies more predictably.
	doc := p.markdown.Parser().Parse(text.NewReader(content))
	var headings []string
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := n.(*ast.Heading); ok && heading.Level == 2 {
			headings = append(headings, extractText(heading, content))
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	sections := extractSections(content)
	for _, name := range headings {
		body, ok := sections[strings.ToLower(name)]
		if !ok {
			continue
		}
		switch strings.ToLower(name) {
		case "prompt":
			tf.Prompt = body
		case "fixup":
			tf.Fixup = body
		case "verify":
			if tf.Verify != "" {
				return nil, fmt.Errorf("verify set in both frontmatter and section")
			}
			tf.Verify = extractCommand(body)
		}
	}

	if tf.Prompt == "" {
		return nil, fmt.Errorf("task file has no ## Prompt section")
	}
	return tf, nil
}

// applyFrontmatter decodes the YAML frontmatter into the task file.
func applyFrontmatter(frontmatter []byte, tf *TaskFile) error {
	var meta taskFrontmatter
	if err := yaml.Unmarshal(frontmatter, &meta); err != nil {
		return err
	}

	tf.Description = meta.Description
	tf.Allowlist = meta.Allowlist
	tf.Concurrency = meta.Concurrency
	tf.MaxRetries = meta.MaxRetries
	tf.Verify = strings.TrimSpace(meta.Verify)
	tf.Files = meta.Files

	if meta.Git != nil {
		tf.GitEnabled = meta.Git.Enabled
		tf.GitBranch = meta.Git.AutoBranch
		tf.GitCommit = meta.Git.AutoCommit
		tf.CommitMessage = meta.Git.CommitMessage
	}
	return nil
}

// extractSections splits the document into level-2 sections by name,
// lowercased. Headings inside fenced code blocks do not start a section.
func extractSections(content []byte) map[string]string {
	sections := make(map[string]string)
	lines := strings.Split(string(content), "\n")

	var current string
	var body strings.Builder
	inCodeBlock := false

	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(body.String())
		}
		body.Reset()
	}

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCodeBlock = !inCodeBlock
			if current != "" {
				body.WriteString(line)
				body.WriteString("\n")
			}
			continue
		}

		if !inCodeBlock && strings.HasPrefix(line, "## ") && !strings.HasPrefix(line, "### ") {
			flush()
			current = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "## ")))
			continue
		}

		if current != "" {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flush()

	return sections
}

// extractCommand returns the command text of a verify section. A fenced code
// block yields its inner lines; plain text is used as-is.
func extractCommand(body string) string {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	var inner []string
	for _, line := range lines[1:] {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			break
		}
		inner = append(inner, line)
	}
	return strings.TrimSpace(strings.Join(inner, "\n"))
}

// extractText extracts plain text from an AST node.
func extractText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
	}
	return buf.String()
}

// extractFrontmatter extracts YAML frontmatter from markdown content.
// Returns the content without frontmatter and the frontmatter bytes.
func extractFrontmatter(content []byte) ([]byte, []byte) {
	lines := bytes.Split(content, []byte("\n"))

	if len(lines) < 3 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("---")) {
		return content, nil
	}

	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			frontmatter := bytes.Join(lines[1:i], []byte("\n"))
			body := bytes.Join(lines[i+1:], []byte("\n"))
			return body, frontmatter
		}
	}

	return content, nil
}

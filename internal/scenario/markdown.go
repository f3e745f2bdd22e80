package scenario

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// MarkdownParser reads suite definitions written as Markdown documents.
//
// Suite metadata lives in YAML frontmatter. A `## Scenario: <name>` heading
// starts a scenario; `### File: <path>` headings pair with the fenced code
// block that follows to define fixture files, and a `### Steps` heading
// introduces a bullet list of steps:
//
//	- build simple_byte/hello.bc
//	- run ./_build/default/simple_byte/hello.bc expect "Hello from dune"
//	- clean
//
// File headings before the first scenario define project files. Optional
// `**Title**:`, `**Pass label**:`, and `**Fail label**:` annotations in a
// scenario's prose override the display labels.
type MarkdownParser struct {
	markdown goldmark.Markdown
}

// NewMarkdownParser creates a MarkdownParser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		markdown: goldmark.New(),
	}
}

// LoadMarkdown parses a suite definition from Markdown, applies defaults,
// and validates it.
func LoadMarkdown(data []byte) (*Suite, error) {
	return NewMarkdownParser().Parse(bytes.NewReader(data))
}

// Parse reads a complete Markdown suite definition.
func (p *MarkdownParser) Parse(r io.Reader) (*Suite, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	suite := &Suite{}
	body, frontmatter := extractFrontmatter(content)
	if frontmatter != nil {
		if err := yaml.Unmarshal(frontmatter, suite); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
	}

	doc := p.markdown.Parser().Parse(text.NewReader(body))
	if err := extractSuiteBody(doc, body, suite); err != nil {
		return nil, err
	}

	suite.Normalize()
	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return suite, nil
}

// extractSuiteBody walks the document and fills scenarios, fixture files,
// and steps into the suite.
func extractSuiteBody(doc ast.Node, source []byte, suite *Suite) error {
	var (
		current     *Scenario
		currentMeta strings.Builder
		pendingFile string
		inSteps     bool
	)

	finishScenario := func() error {
		if current == nil {
			return nil
		}
		if pendingFile != "" {
			return fmt.Errorf("file heading %q has no code block", pendingFile)
		}
		applyScenarioMetadata(current, currentMeta.String())
		suite.Scenarios = append(suite.Scenarios, *current)
		current = nil
		currentMeta.Reset()
		return nil
	}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			if pendingFile != "" {
				return ast.WalkStop, fmt.Errorf("file heading %q has no code block", pendingFile)
			}
			inSteps = false

			headingText := strings.TrimSpace(nodeText(node, source))
			switch {
			case node.Level == 2 && strings.HasPrefix(headingText, "Scenario:"):
				if err := finishScenario(); err != nil {
					return ast.WalkStop, err
				}
				name := strings.TrimSpace(strings.TrimPrefix(headingText, "Scenario:"))
				if name == "" {
					return ast.WalkStop, fmt.Errorf("scenario heading has no name")
				}
				current = &Scenario{Name: name}
			case node.Level == 2:
				// Some other section ends the current scenario
				if err := finishScenario(); err != nil {
					return ast.WalkStop, err
				}
			case node.Level == 3 && strings.HasPrefix(headingText, "File:"):
				path := strings.TrimSpace(strings.TrimPrefix(headingText, "File:"))
				if path == "" {
					return ast.WalkStop, fmt.Errorf("file heading has no path")
				}
				pendingFile = path
			case node.Level == 3 && headingText == "Steps":
				if current == nil {
					return ast.WalkStop, fmt.Errorf("steps section outside a scenario")
				}
				inSteps = true
			}
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock:
			if pendingFile == "" {
				// Prose example, not a fixture
				return ast.WalkSkipChildren, nil
			}
			file := FixtureFile{Path: pendingFile, Content: codeText(node, source)}
			if current != nil {
				current.Files = append(current.Files, file)
			} else {
				suite.ProjectFiles = append(suite.ProjectFiles, file)
			}
			pendingFile = ""
			return ast.WalkSkipChildren, nil

		case *ast.List:
			if !inSteps {
				return ast.WalkContinue, nil
			}
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				step, err := parseStepLine(nodeText(item, source))
				if err != nil {
					return ast.WalkStop, fmt.Errorf("scenario %q: %w", current.Name, err)
				}
				current.Steps = append(current.Steps, step)
			}
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph:
			if current != nil && !inSteps {
				currentMeta.WriteString(rawText(node, source))
				currentMeta.WriteString("\n")
			}
			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return err
	}

	if pendingFile != "" {
		return fmt.Errorf("file heading %q has no code block", pendingFile)
	}
	return finishScenario()
}

var (
	titleRegex     = regexp.MustCompile(`\*\*Title\*\*:\s*(.+)`)
	passLabelRegex = regexp.MustCompile(`\*\*Pass label\*\*:\s*(.+)`)
	failLabelRegex = regexp.MustCompile(`\*\*Fail label\*\*:\s*(.+)`)
)

// applyScenarioMetadata extracts display label annotations from a
// scenario's prose.
func applyScenarioMetadata(s *Scenario, meta string) {
	if m := titleRegex.FindStringSubmatch(meta); len(m) > 1 {
		s.Title = strings.TrimSpace(m[1])
	}
	if m := passLabelRegex.FindStringSubmatch(meta); len(m) > 1 {
		s.PassLabel = strings.TrimSpace(m[1])
	}
	if m := failLabelRegex.FindStringSubmatch(meta); len(m) > 1 {
		s.FailLabel = strings.TrimSpace(m[1])
	}
}

var (
	buildStepRegex = regexp.MustCompile(`^build\s+(\S+)$`)
	runStepRegex   = regexp.MustCompile(`^run\s+(\S+)(?:\s+expect\s+"(.*)")?$`)
)

// parseStepLine parses a single step bullet.
func parseStepLine(line string) (Step, error) {
	line = strings.TrimSpace(line)

	if line == ActionClean {
		return Step{Action: ActionClean}, nil
	}
	if m := buildStepRegex.FindStringSubmatch(line); len(m) == 2 {
		return Step{Action: ActionBuild, Target: m[1]}, nil
	}
	if m := runStepRegex.FindStringSubmatch(line); len(m) == 3 {
		return Step{Action: ActionRun, Target: m[1], Expect: m[2]}, nil
	}
	return Step{}, fmt.Errorf("unrecognized step %q", line)
}

// nodeText extracts the plain text of a node and its descendants.
func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

// rawText returns the raw source lines of a block node, preserving inline
// markers such as ** so annotation regexes can match them.
func rawText(n ast.Node, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return sb.String()
}

// codeText returns the content of a fenced code block.
func codeText(n *ast.FencedCodeBlock, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return sb.String()
}

// extractFrontmatter extracts YAML frontmatter from markdown content.
// Returns the content without frontmatter and the frontmatter bytes.
func extractFrontmatter(content []byte) ([]byte, []byte) {
	lines := bytes.Split(content, []byte("\n"))

	// Check if starts with ---
	if len(lines) < 3 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("---")) {
		return content, nil
	}

	// Find closing ---
	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			frontmatter := bytes.Join(lines[1:i], []byte("\n"))
			body := bytes.Join(lines[i+1:], []byte("\n"))
			return body, frontmatter
		}
	}

	// No closing delimiter found
	return content, nil
}

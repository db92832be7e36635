package oracle

import (
	"fmt"
	"os"
	"strings"

	"issuerank/internal/domain"
	"issuerank/internal/errs"
)

type TemplateKind int

const (
	ComparisonTemplate TemplateKind = iota
	ScoreTemplate
)

func (k TemplateKind) String() string {
	if k == ScoreTemplate {
		return "score"
	}
	return "comparison"
}

func (k TemplateKind) placeholders() []string {
	if k == ScoreTemplate {
		return []string{"{issue}"}
	}
	return []string{"{issue1}", "{issue2}"}
}

// Template is a prompt with {issue1}/{issue2} or {issue} placeholders. Doubled braces render
// as literal braces so templates can carry JSON examples.
type Template struct {
	Kind TemplateKind
	Path string
	text string
}

// LoadTemplate reads a prompt file. A missing file or missing placeholder is a
// configuration error.
func LoadTemplate(path string, kind TemplateKind) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, errs.Configuration(fmt.Sprintf("load %s prompt template %s", kind, path), "pass --prompt-file", err)
	}
	tmpl, err := ParseTemplate(string(data), kind)
	if err != nil {
		return Template{}, err
	}
	tmpl.Path = path
	return tmpl, nil
}

func ParseTemplate(text string, kind TemplateKind) (Template, error) {
	if strings.TrimSpace(text) == "" {
		return Template{}, errs.Configuration(fmt.Sprintf("%s prompt template is empty", kind), "", nil)
	}
	for _, placeholder := range kind.placeholders() {
		if !strings.Contains(text, placeholder) {
			return Template{}, errs.Configuration(
				fmt.Sprintf("%s prompt template has no %s placeholder", kind, placeholder),
				"templates use {issue1}/{issue2} for comparisons and {issue} for scoring", nil)
		}
	}
	return Template{Kind: kind, text: text}, nil
}

func (t Template) RenderComparison(a, b domain.Item) (string, error) {
	if t.Kind != ComparisonTemplate {
		return "", fmt.Errorf("render comparison with a %s template", t.Kind)
	}
	first, err := a.PromptJSON()
	if err != nil {
		return "", err
	}
	second, err := b.PromptJSON()
	if err != nil {
		return "", err
	}
	return t.render("{issue1}", first, "{issue2}", second), nil
}

func (t Template) RenderScore(a domain.Item) (string, error) {
	if t.Kind != ScoreTemplate {
		return "", fmt.Errorf("render score with a %s template", t.Kind)
	}
	issue, err := a.PromptJSON()
	if err != nil {
		return "", err
	}
	return t.render("{issue}", issue), nil
}

func (t Template) render(pairs ...string) string {
	args := append([]string{"{{", "{", "}}", "}"}, pairs...)
	return strings.NewReplacer(args...).Replace(t.text)
}

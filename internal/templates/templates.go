// Package templates loads the prompt and response templates used to render
// context blocks, search tables and bot summaries.
//
// Templates live in a single YAML file. Each template value is parsed with
// text/template at load time, so a malformed template fails at startup rather
// than on the first request. A template that is absent or empty is reported
// as ErrTemplateMissing when it is looked up.
package templates

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// ErrTemplateMissing is returned when a required template or message is not
// configured.
var ErrTemplateMissing = errors.New("template missing")

// Template names.
const (
	SystemPrompt      = "system_prompt"
	Source            = "source_template"
	Quote             = "quote_template"
	SearchKeyword     = "search_keyword_template"
	Response          = "response_template"
	ResponseWithQuote = "response_template_with_quote"
	BotSummary        = "bot_summary_template"
)

// Message keys.
const (
	MessageTooShort              = "too_short"
	MessageContextLengthExceeded = "context_length_exceeded"
	MessageHealthCheckFailed     = "health_check_failed"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Provider gives renderers access to parsed templates and fixed messages.
type Provider interface {
	Template(name string) (*template.Template, error)
	Message(key string) (string, error)
	IntroductionMessages() []string
}

// file mirrors the YAML layout.
type file struct {
	IntroductionMessages []string          `yaml:"introduction_messages"`
	SystemPrompt         string            `yaml:"system_prompt"`
	SourceTemplate       string            `yaml:"source_template"`
	QuoteTemplate        string            `yaml:"quote_template"`
	SearchKeyword        string            `yaml:"search_keyword_template"`
	Response             string            `yaml:"response_template"`
	ResponseWithQuote    string            `yaml:"response_template_with_quote"`
	BotSummary           string            `yaml:"bot_summary_template"`
	Messages             map[string]string `yaml:"messages"`
}

// Store is an immutable, parsed template set. It is safe for concurrent use.
type Store struct {
	templates map[string]*template.Template
	messages  map[string]string
	intros    []string
}

// Load reads and parses the template file at path.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates %q: %w", path, err)
	}
	return Parse(data)
}

// Default returns the template set compiled into the binary.
func Default() (*Store, error) {
	return Parse(defaultPrompts)
}

// Parse builds a Store from YAML bytes.
func Parse(data []byte) (*Store, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	raw := map[string]string{
		SystemPrompt:      f.SystemPrompt,
		Source:            f.SourceTemplate,
		Quote:             f.QuoteTemplate,
		SearchKeyword:     f.SearchKeyword,
		Response:          f.Response,
		ResponseWithQuote: f.ResponseWithQuote,
		BotSummary:        f.BotSummary,
	}

	s := &Store{
		templates: make(map[string]*template.Template, len(raw)),
		messages:  make(map[string]string, len(f.Messages)),
		intros:    f.IntroductionMessages,
	}
	for name, text := range raw {
		if strings.TrimSpace(text) == "" {
			continue
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse template %q: %w", name, err)
		}
		s.templates[name] = tmpl
	}
	for k, v := range f.Messages {
		if v != "" {
			s.messages[k] = v
		}
	}
	return s, nil
}

// Template returns the named template or ErrTemplateMissing.
func (s *Store) Template(name string) (*template.Template, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateMissing, name)
	}
	return tmpl, nil
}

// Message returns the fixed message for key or ErrTemplateMissing.
func (s *Store) Message(key string) (string, error) {
	msg, ok := s.messages[key]
	if !ok {
		return "", fmt.Errorf("%w: messages.%s", ErrTemplateMissing, key)
	}
	return msg, nil
}

// IntroductionMessages returns the configured greetings. May be empty.
func (s *Store) IntroductionMessages() []string {
	return s.intros
}

// Execute looks up name in p and renders it with data.
func Execute(p Provider, name string, data map[string]any) (string, error) {
	tmpl, err := p.Template(name)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("execute template %q: %w", name, err)
	}
	return sb.String(), nil
}

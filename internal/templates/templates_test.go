package templates

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_HasAllTemplates(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	for _, name := range []string{SystemPrompt, Source, Quote, SearchKeyword, Response, ResponseWithQuote, BotSummary} {
		_, err := s.Template(name)
		assert.NoError(t, err, name)
	}
	for _, key := range []string{MessageTooShort, MessageContextLengthExceeded, MessageHealthCheckFailed} {
		msg, err := s.Message(key)
		assert.NoError(t, err, key)
		assert.NotEmpty(t, msg, key)
	}
	assert.NotEmpty(t, s.IntroductionMessages())
}

func TestParse_MissingTemplate(t *testing.T) {
	s, err := Parse([]byte("system_prompt: \"ctx: {{.context}}\"\n"))
	require.NoError(t, err)

	_, err = s.Template(Quote)
	assert.True(t, errors.Is(err, ErrTemplateMissing))

	_, err = s.Message(MessageTooShort)
	assert.True(t, errors.Is(err, ErrTemplateMissing))
}

func TestParse_EmptyTemplateIsMissing(t *testing.T) {
	s, err := Parse([]byte("quote_template: \"   \"\n"))
	require.NoError(t, err)

	_, err = s.Template(Quote)
	assert.ErrorIs(t, err, ErrTemplateMissing)
}

func TestParse_InvalidTemplate(t *testing.T) {
	_, err := Parse([]byte("quote_template: \"{{.quote\"\n"))
	assert.Error(t, err)
}

func TestExecute_MissingKeyFails(t *testing.T) {
	s, err := Parse([]byte("quote_template: \"<q>{{.quote}}</q>\"\n"))
	require.NoError(t, err)

	out, err := Execute(s, Quote, map[string]any{"quote": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "<q>hello</q>", out)

	_, err = Execute(s, Quote, map[string]any{})
	assert.Error(t, err)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("messages:\n  too_short: short\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	msg, err := s.Message(MessageTooShort)
	require.NoError(t, err)
	assert.Equal(t, "short", msg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

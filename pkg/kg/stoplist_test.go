package kg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLexicon(t *testing.T) {
	lex := DefaultLexicon()
	assert.True(t, lex.IsStopConcept("Summary"))
	assert.True(t, lex.IsStopConcept("  glossary "))
	assert.False(t, lex.IsStopConcept("Photosynthesis"))
	assert.NotEmpty(t, lex.PrereqPatterns())
}

func TestLoadLexiconOverrides(t *testing.T) {
	dir := t.TempDir()
	stopPath := filepath.Join(dir, "stop.yaml")
	patternsPath := filepath.Join(dir, "patterns.yaml")

	require.NoError(t, os.WriteFile(stopPath, []byte(
		"stop_concepts:\n  - course outline\n"), 0o644))
	require.NoError(t, os.WriteFile(patternsPath, []byte(
		"prereq_patterns:\n  - 'depends on (.+?)(?:\\.|,|;)'\n"), 0o644))

	lex, err := LoadLexicon(stopPath, patternsPath)
	require.NoError(t, err)

	// Overridden stop concepts extend the defaults.
	assert.True(t, lex.IsStopConcept("Course Outline"))
	assert.True(t, lex.IsStopConcept("summary"))

	// Overridden patterns replace the defaults.
	require.Len(t, lex.PrereqPatterns(), 1)
	assert.True(t, lex.PrereqPatterns()[0].MatchString("This depends on algebra."))
}

func TestLoadLexiconBadPattern(t *testing.T) {
	dir := t.TempDir()
	patternsPath := filepath.Join(dir, "patterns.yaml")
	require.NoError(t, os.WriteFile(patternsPath, []byte(
		"prereq_patterns:\n  - '([unclosed'\n"), 0o644))

	_, err := LoadLexicon("", patternsPath)
	require.Error(t, err)
}

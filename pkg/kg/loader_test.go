package kg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpus(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

func TestLoadCorpusJSONL(t *testing.T) {
	path := writeCorpus(t, `
{"module_id":"m1","module_title":"Cells","section":"Intro","text":"Cells are the unit of life.","key_terms":["Cell"]}
{"module_id":"m1","module_title":"Cells","section":"Membrane","text":"The membrane regulates transport."}
`)

	records, err := LoadCorpusJSONL(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "m1", records[0].ModuleID)
	assert.Equal(t, []string{"Cell"}, records[0].KeyTerms)
}

func TestLoadCorpusRepairsAlmostJSON(t *testing.T) {
	// Single quotes and a trailing comma, as produced by sloppy exporters.
	path := writeCorpus(t,
		`{'module_id': 'm1', 'module_title': 'Cells', 'text': 'Cells are small.',}`+"\n")

	records, err := LoadCorpusJSONL(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Cells are small.", records[0].Text)
}

func TestLoadCorpusSkipsBadRecords(t *testing.T) {
	path := writeCorpus(t, `
{"module_id":"m1","text":"good record"}
{"module_id":"","text":"missing module"}
{"module_id":"m2","text":"   "}
`)

	records, err := LoadCorpusJSONL(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "m1", records[0].ModuleID)
}

func TestLoadCorpusMissingFile(t *testing.T) {
	_, err := LoadCorpusJSONL(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)
}

package kg

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Structural and boilerplate terms that surface as keyword candidates
// in educational HTML but are not concepts.
var defaultStopConcepts = []string{
	"data-type",
	"cnx",
	"cnx-pi",
	"review questions",
	"critical thinking",
	"critical thinking questions",
	"self-check questions",
	"thinking questions",
	"key terms",
	"summary",
	"references",
	"title",
	"class",
	"section",
	"chapter",
	"introduction",
	"conclusion",
	"learning objectives",
	"figure",
	"table",
	"link",
	"image",
	"eoc",
	"eob",
	"data type",
	"os-teacher",
	"os-embed",
	"check-understanding",
	"module",
	"content",
	"term",
	"page",
	"note",
	"exercise",
	"problem",
	"solution",
	"abstract",
	"metadata",
	"glossary",
	"index",
	"appendix",
	"preface",
	"answer key",
	"suggested reading",
	"further reading",
	"review",
	"practice",
	"end-of-chapter",
	"end-of-module",
}

// Lexical patterns signaling a prerequisite or lineage relation. Group 1
// captures the candidate target concept span.
var defaultPrereqPatterns = []string{
	`requires? (?:an? )?understanding of (.+?)(?:\.|,|;)`,
	`builds? (?:on|upon) (.+?)(?:\.|,|;)`,
	`prerequisite.{0,20}(.+?)(?:\.|,|;)`,
	`before (?:studying|learning|understanding) (.+?)(?:\.|,|;)`,
	`assumes? (?:knowledge|familiarity) (?:of|with) (.+?)(?:\.|,|;)`,
	`(?:following|after) .{0,30}(?:chapter|section|module) on (.+?)(?:\.|,|;)`,
	`led to (.+?)(?:\.|,|;)`,
	`resulted in (.+?)(?:\.|,|;)`,
	`paved the way for (.+?)(?:\.|,|;)`,
	`was a precursor to (.+?)(?:\.|,|;)`,
}

// Lexicon holds the stop-concept set and compiled prerequisite
// patterns, with optional YAML overrides layered on the defaults.
type Lexicon struct {
	stopConcepts   map[string]struct{}
	prereqPatterns []*regexp.Regexp
}

// lexiconOverrides is the YAML override file shape.
type lexiconOverrides struct {
	StopConcepts   []string `yaml:"stop_concepts"`
	PrereqPatterns []string `yaml:"prereq_patterns"`
}

// DefaultLexicon returns the built-in stop list and patterns.
func DefaultLexicon() *Lexicon {
	lex, err := newLexicon(defaultStopConcepts, defaultPrereqPatterns)
	if err != nil {
		// The built-in patterns are compile-tested; this cannot happen at
		// runtime with the defaults.
		panic(err)
	}
	return lex
}

// LoadLexicon reads YAML overrides and merges them into the defaults.
// Listed stop concepts extend the built-in set; listed patterns replace
// the built-in patterns entirely when present.
func LoadLexicon(stopListPath, patternsPath string) (*Lexicon, error) {
	stop := append([]string(nil), defaultStopConcepts...)
	patterns := defaultPrereqPatterns

	if stopListPath != "" {
		var overrides lexiconOverrides
		if err := readYAML(stopListPath, &overrides); err != nil {
			return nil, err
		}
		stop = append(stop, overrides.StopConcepts...)
	}

	if patternsPath != "" {
		var overrides lexiconOverrides
		if err := readYAML(patternsPath, &overrides); err != nil {
			return nil, err
		}
		if len(overrides.PrereqPatterns) > 0 {
			patterns = overrides.PrereqPatterns
		}
	}

	return newLexicon(stop, patterns)
}

func newLexicon(stopConcepts, patterns []string) (*Lexicon, error) {
	stopSet := make(map[string]struct{}, len(stopConcepts))
	for _, s := range stopConcepts {
		stopSet[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("invalid prerequisite pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}

	return &Lexicon{
		stopConcepts:   stopSet,
		prereqPatterns: compiled,
	}, nil
}

// IsStopConcept reports whether a name is structural boilerplate.
func (l *Lexicon) IsStopConcept(name string) bool {
	_, ok := l.stopConcepts[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// PrereqPatterns returns the compiled prerequisite patterns.
func (l *Lexicon) PrereqPatterns() []*regexp.Regexp {
	return l.prereqPatterns
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read lexicon file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse lexicon file %q: %w", path, err)
	}
	return nil
}

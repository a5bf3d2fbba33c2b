package detector

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MatchMode selects how lexical patterns are compared with outputs.
type MatchMode string

const (
	MatchSubstring MatchMode = "substring"
	MatchWholeWord MatchMode = "whole_word"
)

// ParseMatchMode accepts the canonical names plus the short "str" and "word"
// spellings. An empty string means substring.
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "substring", "str":
		return MatchSubstring, nil
	case "whole_word", "word":
		return MatchWholeWord, nil
	default:
		return "", configErrorf("match_mode", "don't know how to process match mode %q", s)
	}
}

// LexicalConfig configures a LexicalDetector.
type LexicalConfig struct {
	Patterns      []string
	MatchMode     MatchMode
	CaseSensitive bool
}

// Lexical scores 1.0 when any configured pattern occurs in an output and 0.0
// otherwise. It holds no mutable state and is safe for concurrent use.
type Lexical struct {
	info          Info
	mode          MatchMode
	caseSensitive bool

	patterns []string // lowered when matching is case-insensitive
}

// NewLexical validates cfg and builds the matcher. An empty pattern set or an
// empty pattern is a configuration error.
func NewLexical(info Info, cfg LexicalConfig) (*Lexical, error) {
	mode, err := ParseMatchMode(string(cfg.MatchMode))
	if err != nil {
		return nil, err
	}
	if len(cfg.Patterns) == 0 {
		return nil, configErrorf("patterns", "at least one pattern is required")
	}

	d := &Lexical{
		info:          info.withDefaults("lexical"),
		mode:          mode,
		caseSensitive: cfg.CaseSensitive,
		patterns:      make([]string, 0, len(cfg.Patterns)),
	}
	for i, p := range cfg.Patterns {
		if p == "" {
			return nil, configErrorf("patterns", "pattern %d is empty", i)
		}
		switch mode {
		case MatchSubstring:
			if !d.caseSensitive {
				p = strings.ToLower(p)
			}
			d.patterns = append(d.patterns, p)
		case MatchWholeWord:
			d.patterns = append(d.patterns, p)
		}
	}
	return d, nil
}

func (d *Lexical) Info() Info { return d.info }

func (d *Lexical) Detect(ctx context.Context, input any) (Result, error) {
	batch, err := Normalize(input)
	if err != nil {
		return Result{}, err
	}

	scores := make([]Score, len(batch))
	for i, output := range batch {
		matched, err := d.matches(output)
		if err != nil {
			return Result{}, err
		}
		if matched {
			scores[i] = ScoreHit
		}
	}
	return Scored(scores), nil
}

func (d *Lexical) matches(output string) (bool, error) {
	switch d.mode {
	case MatchSubstring:
		if !d.caseSensitive {
			output = strings.ToLower(output)
		}
		for _, p := range d.patterns {
			if strings.Contains(output, p) {
				return true, nil
			}
		}
		return false, nil
	case MatchWholeWord:
		// Whole-word matching follows the literal case of each pattern.
		for _, p := range d.patterns {
			if containsWord(output, p) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, configErrorf("match_mode", "don't know how to process match mode %q", d.mode)
	}
}

// containsWord reports whether pattern occurs in s with a word boundary at
// both ends. Word characters are Unicode letters, numbers and '_'.
func containsWord(s, pattern string) bool {
	for off := 0; off <= len(s)-len(pattern); {
		i := strings.Index(s[off:], pattern)
		if i < 0 {
			return false
		}
		start := off + i
		if atWordBoundary(s, start) && atWordBoundary(s, start+len(pattern)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		off = start + size
	}
	return false
}

func atWordBoundary(s string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:i])
		before = isWordRune(r)
	}
	if i < len(s) {
		r, _ := utf8.DecodeRuneInString(s[i:])
		after = isWordRune(r)
	}
	return before != after
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

package redact

import (
	"strings"
	"testing"
)

func TestStringRedaction(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		disallow []string
		require  []string
	}{
		{
			name:     "bearer header",
			input:    "Authorization: Bearer sk-secret-123",
			disallow: []string{"sk-secret-123"},
			require:  []string{"[REDACTED]"},
		},
		{
			name:     "hub token",
			input:    "pull failed with hf_abcdefghijklmnop",
			disallow: []string{"hf_abcdefghijklmnop"},
			require:  []string{"hf_[REDACTED]"},
		},
		{
			name:     "sidecar url with query",
			input:    `Post "http://user:pw@classifier.internal:8001/v1/classify?key=abc123": connection refused`,
			disallow: []string{"user:pw", "abc123", "/v1/"},
			require:  []string{"http://classifier.internal:8001/classify", "connection refused"},
		},
		{
			name:     "api key field",
			input:    "api_key=supersecretvalue loaded",
			disallow: []string{"supersecretvalue"},
			require:  []string{"api_key=[REDACTED]"},
		},
		{
			name:     "header key",
			input:    "x-classifier-key: abcdef123",
			disallow: []string{"abcdef123"},
			require:  []string{"[REDACTED]"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := String(tc.input)
			for _, bad := range tc.disallow {
				if bad != "" && strings.Contains(out, bad) {
					t.Fatalf("output still contains %q: %s", bad, out)
				}
			}
			for _, want := range tc.require {
				if !strings.Contains(out, want) {
					t.Fatalf("output missing required substring %q: %s", want, out)
				}
			}
		})
	}
}

func TestStringLeavesPlainTextAlone(t *testing.T) {
	in := "loading detector: mitigation.Bomb"
	if out := String(in); out != in {
		t.Fatalf("expected unchanged text, got %q", out)
	}
}

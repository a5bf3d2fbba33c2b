package main

import (
	"github.com/straja-ai/detectors/internal/cli"
	"github.com/straja-ai/detectors/internal/redact"
)

func main() {
	if err := cli.Execute(); err != nil {
		redact.Fatalf("detect: %v", err)
	}
}

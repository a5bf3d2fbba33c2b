package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// readOutputs loads generator outputs from path ("-" is stdin). A JSON array
// of strings is taken as-is; anything else is one output per line.
func readOutputs(path string, stdin io.Reader) ([]string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return parseOutputs(data)
}

func parseOutputs(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []string{}, nil
	}
	if trimmed[0] == '[' {
		var outputs []string
		if err := json.Unmarshal(trimmed, &outputs); err != nil {
			return nil, fmt.Errorf("input looks like JSON but is not an array of strings: %w", err)
		}
		if outputs == nil {
			outputs = []string{}
		}
		return outputs, nil
	}

	text := strings.TrimSuffix(string(data), "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines, nil
}

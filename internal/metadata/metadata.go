// Package metadata recovers generation settings embedded in images: the flat
// "parameters" text block, the ComfyUI "workflow" node graph, or a bare
// "prompt" chunk. The two parsers feed a merge step in which workflow fields
// win.
package metadata

import (
	"errors"
	"log/slog"
	"strings"
)

var ErrNoMetadata = errors.New("no metadata found")

// Extractor turns raw text chunks into a flat field map. The zero value is
// ready to use; Pick and Logger exist so tests can pin down randomness and
// capture warnings.
type Extractor struct {
	Pick   func(options []string) string
	Logger *slog.Logger
}

func (e *Extractor) pick(options []string) string {
	if e.Pick != nil {
		return e.Pick(options)
	}
	return randomPick(options)
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Extract parses and merges all recognized chunks. It fails only when none
// of the recognized chunk keys is present at all; a malformed workflow
// degrades to whatever the parameter parser produced.
func (e *Extractor) Extract(chunks map[string]string) (map[string]string, error) {
	if !hasRecognizedChunk(chunks) {
		return nil, ErrNoMetadata
	}

	result := parseParameters(chunks)
	workflow := e.parseWorkflow(chunks)

	// Workflow fields take precedence over the parameter block.
	for k, v := range workflow {
		result[k] = v
	}

	// A prompt that still looks like JSON leaked in from a graph-carrying
	// chunk. Drop it unless a PromptGenerator could legitimately have built
	// it.
	if prompt, ok := result["Prompt"]; ok && strings.HasPrefix(strings.TrimSpace(prompt), "{") {
		if wf, present := chunks["workflow"]; present && !strings.Contains(wf, "PromptGenerator") {
			delete(result, "Prompt")
		}
	}

	return result, nil
}

func hasRecognizedChunk(chunks map[string]string) bool {
	for _, key := range []string{"parameters", "prompt", "workflow"} {
		if _, ok := chunks[key]; ok {
			return true
		}
	}
	return false
}

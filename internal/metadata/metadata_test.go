package metadata

import (
	"errors"
	"testing"
)

func TestExtractNoRecognizedChunks(t *testing.T) {
	e := &Extractor{Pick: pickFirst}
	_, err := e.Extract(map[string]string{"Software": "somepaint 2.1"})
	if !errors.Is(err, ErrNoMetadata) {
		t.Fatalf("err = %v, want ErrNoMetadata", err)
	}
}

func TestExtractWorkflowOverridesParameters(t *testing.T) {
	e := &Extractor{Pick: pickFirst}
	chunks := map[string]string{
		"parameters": "a cat\nNegative prompt: blurry\nSteps: 20",
		"workflow":   `{"1": {"class_type": "KSampler", "inputs": {"steps": 40}}}`,
	}
	got, err := e.Extract(chunks)
	if err != nil {
		t.Fatal(err)
	}
	if got["Steps"] != "40" {
		t.Errorf("Steps = %q, want workflow value 40", got["Steps"])
	}
	if got["Prompt"] != "a cat" {
		t.Errorf("Prompt = %q, want parameter value", got["Prompt"])
	}
	if got["Negative prompt"] != "blurry" {
		t.Errorf("Negative prompt = %q", got["Negative prompt"])
	}
}

func TestExtractDropsLeftoverJSONPrompt(t *testing.T) {
	e := &Extractor{Pick: pickFirst}
	chunks := map[string]string{
		"parameters": `{"1": {"class_type": "KSampler"}}` + "\nNegative prompt: blurry",
		"workflow":   `{"1": {"class_type": "KSampler", "inputs": {"steps": 40}}}`,
	}
	got, err := e.Extract(chunks)
	if err != nil {
		t.Fatal(err)
	}
	if prompt, ok := got["Prompt"]; ok {
		t.Errorf("leftover JSON prompt should be dropped, got %q", prompt)
	}
	if got["Negative prompt"] != "blurry" {
		t.Errorf("Negative prompt = %q", got["Negative prompt"])
	}
}

func TestExtractKeepsJSONPromptWhenGeneratorPresent(t *testing.T) {
	e := &Extractor{Pick: pickFirst}
	// A workflow that mentions PromptGenerator disables the JSON cleanup.
	chunks := map[string]string{
		"parameters": `{"custom": "kept"}`,
		"workflow": `{"1": {"class_type": "PromptGenerator", "inputs": {
			"custom": "{\"custom\": \"kept\"}"
		}}}`,
	}
	got, err := e.Extract(chunks)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got["Prompt"]; !ok {
		t.Error("Prompt should survive when the workflow carries a PromptGenerator")
	}
}

func TestExtractInvalidWorkflowFallsBack(t *testing.T) {
	e := &Extractor{Pick: pickFirst}
	chunks := map[string]string{
		"parameters": "a cat\nNegative prompt: blurry\nSteps: 20",
		"workflow":   "not json at all",
	}
	got, err := e.Extract(chunks)
	if err != nil {
		t.Fatal(err)
	}
	if got["Steps"] != "20" {
		t.Errorf("Steps = %q, want parameter fallback 20", got["Steps"])
	}
}

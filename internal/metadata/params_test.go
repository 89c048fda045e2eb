package metadata

import "testing"

func TestParseParametersFullBlock(t *testing.T) {
	chunks := map[string]string{
		"parameters": "a photo of a cat\nNegative prompt: blurry\nSteps: 20, Sampler: Euler",
	}
	got := parseParameters(chunks)

	want := map[string]string{
		"Prompt":          "a photo of a cat",
		"Negative prompt": "blurry",
		"Steps":           "20",
		"Sampler":         "Euler",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestParseParametersMarkerVariants(t *testing.T) {
	for _, marker := range []string{"Negative prompt:", "negative_prompt:", "NEGATIVE PROMPT :"} {
		chunks := map[string]string{
			"parameters": "prompt text\n" + marker + " bad hands",
		}
		got := parseParameters(chunks)
		if got["Prompt"] != "prompt text" {
			t.Errorf("marker %q: Prompt = %q", marker, got["Prompt"])
		}
		if got["Negative prompt"] != "bad hands" {
			t.Errorf("marker %q: Negative prompt = %q", marker, got["Negative prompt"])
		}
	}
}

func TestParseParametersNoMarker(t *testing.T) {
	chunks := map[string]string{
		"parameters": "Steps: 30, CFG scale: 7.5\nSeed: 42",
	}
	got := parseParameters(chunks)

	if _, ok := got["Prompt"]; ok {
		t.Errorf("Prompt should be absent without a marker, got %q", got["Prompt"])
	}
	if got["Steps"] != "30" {
		t.Errorf("Steps = %q, want 30", got["Steps"])
	}
	if got["Guidance scale"] != "7.5" {
		t.Errorf("Guidance scale = %q, want 7.5", got["Guidance scale"])
	}
	if got["Seed"] != "42" {
		t.Errorf("Seed = %q, want 42", got["Seed"])
	}
}

func TestParseParametersPromptChunk(t *testing.T) {
	got := parseParameters(map[string]string{"prompt": "  a scenic vista  "})
	if got["Prompt"] != "a scenic vista" {
		t.Errorf("Prompt = %q", got["Prompt"])
	}

	// JSON-shaped prompt chunks come from graph exports and are not prompts.
	got = parseParameters(map[string]string{"prompt": `{"1": {"class_type": "KSampler"}}`})
	if _, ok := got["Prompt"]; ok {
		t.Errorf("JSON prompt chunk should not populate Prompt, got %q", got["Prompt"])
	}
}

func TestParseParametersPromptChunkWins(t *testing.T) {
	chunks := map[string]string{
		"prompt":     "from prompt chunk",
		"parameters": "from parameters\nNegative prompt: blurry",
	}
	got := parseParameters(chunks)
	if got["Prompt"] != "from prompt chunk" {
		t.Errorf("Prompt = %q, want value from prompt chunk", got["Prompt"])
	}
	if got["Negative prompt"] != "blurry" {
		t.Errorf("Negative prompt = %q", got["Negative prompt"])
	}
}

func TestParseParametersEmpty(t *testing.T) {
	got := parseParameters(map[string]string{})
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

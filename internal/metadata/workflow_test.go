package metadata

import "testing"

// pickFirst pins down random word-list resolution for tests.
func pickFirst(options []string) string { return options[0] }

func TestParseWorkflowSamplerAndLoaders(t *testing.T) {
	e := &Extractor{Pick: pickFirst}
	chunks := map[string]string{
		"workflow": `{
			"3": {"class_type": "KSampler", "inputs": {
				"steps": ["5", 30], "cfg": 7.5, "sampler_name": "euler",
				"scheduler": "normal", "denoise": 1.0
			}},
			"4": {"class_type": "CheckpointLoaderSimpleExtended", "inputs": {
				"ckpt_name": "dreamshaper_8.safetensors", "ckpt_hash": "abc123"
			}},
			"5": {"class_type": "LoraLoader", "inputs": {
				"lora_name": "detail-tweaker.safetensors",
				"strength_model": 0.8, "strength_clip": 0.75
			}}
		}`,
	}
	got := e.parseWorkflow(chunks)

	want := map[string]string{
		"Steps":                 "30",
		"Guidance scale":        "7.5",
		"Sampler":               "euler",
		"Scheduler":             "normal",
		"Denoise":               "1",
		"Model":                 "dreamshaper_8.safetensors",
		"Model hash":            "abc123",
		"LoRA Model":            "detail-tweaker.safetensors",
		"LoRA Strength (model)": "0.8",
		"LoRA Strength (clip)":  "0.75",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestParseWorkflowArrayInputUsesLastElement(t *testing.T) {
	e := &Extractor{Pick: pickFirst}
	chunks := map[string]string{
		"workflow": `{"1": {"class_type": "KSampler", "inputs": {"steps": ["9", 30]}}}`,
	}
	got := e.parseWorkflow(chunks)
	if got["Steps"] != "30" {
		t.Errorf("Steps = %q, want 30", got["Steps"])
	}
}

func TestParseWorkflowInvalidJSON(t *testing.T) {
	e := &Extractor{Pick: pickFirst}
	got := e.parseWorkflow(map[string]string{"workflow": "{not json"})
	if len(got) != 0 {
		t.Errorf("expected empty result for invalid json, got %v", got)
	}
}

func TestParseWorkflowNodeOrderIsDeterministic(t *testing.T) {
	e := &Extractor{Pick: pickFirst}
	// Two samplers; the one with the higher numeric id must win.
	chunks := map[string]string{
		"workflow": `{
			"10": {"class_type": "KSampler", "inputs": {"steps": 50}},
			"2":  {"class_type": "KSampler", "inputs": {"steps": 20}}
		}`,
	}
	for i := 0; i < 20; i++ {
		got := e.parseWorkflow(chunks)
		if got["Steps"] != "50" {
			t.Fatalf("run %d: Steps = %q, want 50", i, got["Steps"])
		}
	}
}

func TestParseWorkflowSaveImageNode(t *testing.T) {
	e := &Extractor{Pick: pickFirst}
	chunks := map[string]string{
		"workflow": `{
			"1": {"class_type": "PromptGenerator", "inputs": {
				"custom": "a castle", "artform": "disabled", "default_tags": "disabled",
				"place": "disabled", "background": "disabled", "pose": "disabled",
				"composition": "disabled", "lighting": "disabled",
				"photography_styles": "disabled", "device": "disabled"
			}},
			"2": {"class_type": "Save Image w/Metadata", "inputs": {"lora_list": "epic-lora"}}
		}`,
	}
	got := e.parseWorkflow(chunks)
	if got["Version"] != "ComfyUI" {
		t.Errorf("Version = %q, want ComfyUI", got["Version"])
	}
	if got["Prompt"] != "a castle, epic-lora" {
		t.Errorf("Prompt = %q", got["Prompt"])
	}
}

func TestAssemblePromptFragmentOrder(t *testing.T) {
	e := &Extractor{Pick: pickFirst}
	inputs := map[string]any{
		"custom":             "masterpiece",
		"artform":            "photography",
		"photo_type":         "random",
		"default_tags":       "1girl",
		"hairstyles":         "random",
		"place":              "outdoor setting",
		"background":         "disabled",
		"pose":               "standing straight",
		"composition":        "close-up shot",
		"lighting":           "disabled",
		"photography_styles": "disabled",
		"device":             "disabled",
	}
	got := e.assemblePrompt(inputs)
	want := "masterpiece, portrait, 1girl with ((long hair)), outdoor setting, " +
		"pine trees, daytime, wooden structure, standing straight, hands together, " +
		"slight smile, close-up shot, selfie angle, on a distant planet's alien landscape"
	if got != want {
		t.Errorf("prompt mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestAssemblePromptDramaticLighting(t *testing.T) {
	e := &Extractor{Pick: pickFirst}
	inputs := map[string]any{
		"custom":   "scene",
		"artform":  "disabled",
		"lighting": "dramatic lighting",
	}
	got := e.assemblePrompt(inputs)
	want := "scene, dramatic lighting, sun rays, surrealism, (top down:1.3)"
	if got != want {
		t.Errorf("prompt = %q, want %q", got, want)
	}
}

func TestLessNodeID(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"2", "10", true},
		{"10", "2", false},
		{"3", "alpha", true},
		{"alpha", "3", false},
		{"alpha", "beta", true},
	}
	for _, tc := range cases {
		if got := lessNodeID(tc.a, tc.b); got != tc.want {
			t.Errorf("lessNodeID(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

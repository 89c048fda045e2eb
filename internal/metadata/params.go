package metadata

import (
	"regexp"
	"strings"
)

// The "parameters" chunk is the flat line-oriented block most generation UIs
// embed: the prompt, then "Negative prompt: ...", then comma-separated
// key: value settings.

var negativeMarker = regexp.MustCompile(`(?i)negative[\s_]?prompt\s*:`)
var keyValuePattern = regexp.MustCompile(`([\w +()\-:/]+?):\s*([^,\n]+)`)

func parseParameters(chunks map[string]string) map[string]string {
	result := make(map[string]string)

	// A "prompt" chunk is used as-is unless it carries JSON (some tools store
	// the whole node graph under that key).
	if prompt, ok := chunks["prompt"]; ok {
		trimmed := strings.TrimSpace(prompt)
		if !strings.HasPrefix(trimmed, "{") {
			result["Prompt"] = trimmed
		}
	}

	parameters := chunks["parameters"]
	if parameters == "" {
		return result
	}

	var tail string
	if loc := negativeMarker.FindStringIndex(parameters); loc != nil {
		if _, ok := result["Prompt"]; !ok {
			result["Prompt"] = strings.TrimSpace(parameters[:loc[0]])
		}
		after := strings.Split(parameters[loc[1]:], "\n")
		result["Negative prompt"] = strings.TrimSpace(after[0])
		tail = strings.Join(after[1:], "\n")
	} else {
		tail = strings.TrimSpace(parameters)
	}

	var lines []string
	for _, line := range strings.Split(tail, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	combined := strings.Join(lines, ", ")

	for _, m := range keyValuePattern.FindAllStringSubmatch(combined, -1) {
		key := strings.ReplaceAll(strings.TrimSpace(m[1]), "CFG scale", "Guidance scale")
		result[key] = strings.TrimSpace(m[2])
	}
	return result
}

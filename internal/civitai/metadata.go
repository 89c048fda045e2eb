package civitai

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MetadataFields flattens an image record into the display map served by the
// metadata-extraction endpoints. Generation parameters come first, then the
// remaining meta keys in sorted order, then model and resource context.
func MetadataFields(img *Image) map[string]string {
	out := make(map[string]string)
	if img == nil {
		return out
	}
	var rest []string
	for key, val := range img.Meta {
		switch key {
		case "prompt":
			out["Prompt"] = formatMetaValue(val)
		case "negativePrompt":
			out["Negative prompt"] = formatMetaValue(val)
		case "cfgScale":
			out["Guidance scale"] = formatMetaValue(val)
		case "steps":
			out["Steps"] = formatMetaValue(val)
		case "sampler":
			out["Sampler"] = formatMetaValue(val)
		case "seed":
			out["Seed"] = formatMetaValue(val)
		case "Model", "model":
			out["Model"] = formatMetaValue(val)
		default:
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		v := formatMetaValue(img.Meta[key])
		if v != "" {
			out[titleizeKey(key)] = v
		}
	}
	if img.Model.Name != "" {
		out["Model"] = img.Model.Name
	}
	if img.Model.Type != "" {
		out["Model type"] = img.Model.Type
	}
	if img.ModelVersion.Name != "" {
		out["Model version"] = img.ModelVersion.Name
	}
	if img.ModelVersion.BaseModel != "" {
		out["Base model"] = img.ModelVersion.BaseModel
	}
	if len(img.Resources) > 0 {
		out["Resources"] = FormatResources(img.Resources)
	}
	if len(img.Tags) > 0 {
		out["Tags"] = strings.Join(img.Tags, ", ")
	}
	return out
}

// FormatResources renders a resource list as "Name (type: weight)" entries
// separated by semicolons. Weightless resources drop the weight part.
func FormatResources(resources []Resource) string {
	parts := make([]string, 0, len(resources))
	for _, r := range resources {
		name := r.Name
		if name == "" {
			continue
		}
		switch {
		case r.Weight != nil:
			parts = append(parts, fmt.Sprintf("%s (%s: %s)", name, r.Type,
				strconv.FormatFloat(*r.Weight, 'g', -1, 64)))
		case r.Type != "":
			parts = append(parts, fmt.Sprintf("%s (%s)", name, r.Type))
		default:
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "; ")
}

func formatMetaValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// titleizeKey turns a camelCase meta key into a spaced, capitalized label,
// e.g. "clipSkip" becomes "Clip skip".
func titleizeKey(key string) string {
	if key == "" {
		return key
	}
	var b strings.Builder
	for i, r := range key {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	label := b.String()
	return strings.ToUpper(label[:1]) + label[1:]
}

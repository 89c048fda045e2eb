package store

import "strings"

// The matching and search logic works on a lowercase corpus joined from an
// asset's text fields. Each call site uses its own field set; the order only
// affects the joined string, not what a substring check can find.

// assignCorpus covers everything descriptive, used when a newly created asset
// is auto-assigned to a subcategory.
func assignCorpus(a *Asset) string {
	return corpus(
		a.Name,
		a.Description,
		a.Tags,
		a.TriggerWords,
		a.PositivePrompt,
		a.NegativePrompt,
		a.UsedResources,
		a.Slug,
		a.Creator,
		a.BaseModel,
	)
}

// filterCorpus is the narrow set backing the category filter predicate.
func filterCorpus(a *Asset) string {
	return corpus(
		a.Tags,
		a.TriggerWords,
		a.PositivePrompt,
		a.NegativePrompt,
		a.UsedResources,
		a.Type,
	)
}

// keywordCorpus backs subcategory keyword matching at create/rename time.
func keywordCorpus(a *Asset) string {
	return corpus(
		a.Tags,
		a.TriggerWords,
		a.UsedResources,
		a.Description,
		a.Name,
	)
}

// searchCorpus backs free-text search and the keyword histogram.
func searchCorpus(a *Asset) string {
	return corpus(
		a.Tags,
		a.TriggerWords,
		a.PositivePrompt,
		a.NegativePrompt,
		a.UsedResources,
		a.Type,
		a.ModelVersion,
		a.BaseModel,
		a.Slug,
	)
}

func corpus(fields ...string) string {
	return strings.ToLower(strings.Join(fields, " "))
}

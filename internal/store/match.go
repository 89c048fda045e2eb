package store

import "strings"

// Category names that bypass text matching in the filter predicate.
func isAllCategory(name string) bool {
	return name == "" || name == "All" || name == "All Assets"
}

func isFavoritesCategory(name string) bool {
	return name == "Favorites" || name == "Favoriten"
}

// autoAssignSubcategory returns the id of the first candidate whose lowercased
// name occurs in the asset's assign corpus, in the order the candidates are
// given. Candidates with empty names are skipped: an empty keyword is a
// substring of everything.
func autoAssignSubcategory(candidates []SubCategory, a *Asset) *int64 {
	text := assignCorpus(a)
	for i := range candidates {
		name := strings.ToLower(strings.TrimSpace(candidates[i].Name))
		if name == "" {
			continue
		}
		if strings.Contains(text, name) {
			id := candidates[i].ID
			return &id
		}
	}
	return nil
}

// matchesKeyword reports whether a subcategory keyword occurs in the asset's
// keyword corpus. Matching is case-insensitive and locale-naive.
func matchesKeyword(keyword string, a *Asset) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return false
	}
	return strings.Contains(keywordCorpus(a), keyword)
}

// categoryPredicate builds the filter used by listing and search endpoints.
// "All"/"All Assets" match everything, "Favorites"/"Favoriten" switch to the
// favorite flag, anything else is a substring test on the narrow corpus.
func categoryPredicate(name string) func(*Asset) bool {
	if isAllCategory(name) {
		return func(*Asset) bool { return true }
	}
	if isFavoritesCategory(name) {
		return func(a *Asset) bool { return a.IsFavorite }
	}
	lower := strings.ToLower(name)
	return func(a *Asset) bool {
		return strings.Contains(filterCorpus(a), lower)
	}
}

// matchesSearch requires every query keyword to occur in the search corpus.
func matchesSearch(keywords []string, a *Asset) bool {
	text := searchCorpus(a)
	for _, kw := range keywords {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	return true
}

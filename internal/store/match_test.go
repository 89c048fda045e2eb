package store

import "testing"

func TestCorpusJoinsAndLowercases(t *testing.T) {
	a := &Asset{
		Tags:         "Fantasy, Sci-Fi",
		TriggerWords: "DRAGON",
		Type:         "LoRA",
	}
	got := filterCorpus(a)
	want := "fantasy, sci-fi dragon    lora"
	if got != want {
		t.Errorf("filterCorpus = %q, want %q", got, want)
	}
}

func TestAutoAssignSubcategoryFirstMatchWins(t *testing.T) {
	subs := []SubCategory{
		{ID: 1, Name: "Portrait"},
		{ID: 2, Name: "Dragon"},
		{ID: 3, Name: "Fantasy"},
	}
	a := &Asset{Tags: "fantasy art", TriggerWords: "dragon scales"}

	got := autoAssignSubcategory(subs, a)
	if got == nil || *got != 2 {
		t.Fatalf("got %v, want id 2 (first matching candidate in order)", got)
	}
}

func TestAutoAssignSubcategorySkipsEmptyNames(t *testing.T) {
	subs := []SubCategory{
		{ID: 1, Name: "  "},
		{ID: 2, Name: "Anime"},
	}
	a := &Asset{Description: "an anime style checkpoint"}
	got := autoAssignSubcategory(subs, a)
	if got == nil || *got != 2 {
		t.Fatalf("got %v, want id 2; blank names must never match", got)
	}

	if got := autoAssignSubcategory(subs, &Asset{Name: "unrelated"}); got != nil {
		t.Errorf("expected no assignment, got %v", *got)
	}
}

func TestMatchesKeyword(t *testing.T) {
	a := &Asset{Tags: "Cyberpunk, neon", Name: "City Nights"}
	if !matchesKeyword("cyberpunk", a) {
		t.Error("case-insensitive tag match expected")
	}
	if !matchesKeyword("city", a) {
		t.Error("name should be part of the keyword corpus")
	}
	if matchesKeyword("", a) {
		t.Error("empty keyword must never match")
	}
	if matchesKeyword("   ", a) {
		t.Error("whitespace keyword must never match")
	}
	if matchesKeyword("watercolor", a) {
		t.Error("unrelated keyword matched")
	}
}

func TestCategoryPredicate(t *testing.T) {
	fav := &Asset{Name: "a", IsFavorite: true}
	plain := &Asset{Name: "b", Tags: "landscape"}

	for _, name := range []string{"", "All", "All Assets"} {
		pred := categoryPredicate(name)
		if !pred(fav) || !pred(plain) {
			t.Errorf("category %q should match everything", name)
		}
	}

	for _, name := range []string{"Favorites", "Favoriten"} {
		pred := categoryPredicate(name)
		if !pred(fav) {
			t.Errorf("category %q should match favorites", name)
		}
		if pred(plain) {
			t.Errorf("category %q should not match non-favorites", name)
		}
	}

	pred := categoryPredicate("Landscape")
	if !pred(plain) {
		t.Error("substring category should match tags")
	}
	if pred(fav) {
		t.Error("substring category matched an unrelated asset")
	}
}

func TestMatchesSearchRequiresAllKeywords(t *testing.T) {
	a := &Asset{Tags: "fantasy, dragon", Type: "LoRA"}
	if !matchesSearch([]string{"fantasy", "lora"}, a) {
		t.Error("all present keywords should match")
	}
	if matchesSearch([]string{"fantasy", "spaceship"}, a) {
		t.Error("one missing keyword must fail the whole query")
	}
	if !matchesSearch(nil, a) {
		t.Error("no keywords means everything matches")
	}
}

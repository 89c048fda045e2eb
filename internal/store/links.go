package store

import "strconv"

// linked_assets arrives from clients in three admissible shapes: null, a list
// of ids (numbers or numeric strings), or a list of asset objects carrying an
// "id" field. Everything else normalizes to an empty list rather than failing
// the request.

// NormalizeLinkedAssets resolves a decoded JSON value to a canonical id list.
// The write-side rule: one unrecognized element rejects the whole list.
func NormalizeLinkedAssets(v any) []int64 {
	items, ok := v.([]any)
	if !ok {
		return []int64{}
	}
	out := make([]int64, 0, len(items))
	for _, item := range items {
		id, ok := linkedID(item)
		if !ok {
			return []int64{}
		}
		out = appendID(out, id)
	}
	return out
}

// RepairLinkedAssets is the read-side variant: stale or malformed entries are
// dropped individually instead of discarding the list.
func RepairLinkedAssets(v any) []int64 {
	items, ok := v.([]any)
	if !ok {
		return []int64{}
	}
	out := make([]int64, 0, len(items))
	for _, item := range items {
		if id, ok := linkedID(item); ok {
			out = appendID(out, id)
		}
	}
	return out
}

func linkedID(item any) (int64, bool) {
	switch v := item.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	case map[string]any:
		id, ok := v["id"]
		if !ok {
			return 0, false
		}
		return linkedID(id)
	default:
		return 0, false
	}
}

func appendID(ids []int64, id int64) []int64 {
	if containsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// withoutSelf drops the asset's own id from its link list and reports whether
// it was present.
func withoutSelf(ids []int64, self int64) ([]int64, bool) {
	if !containsID(ids, self) {
		return ids, false
	}
	return removeID(ids, self), true
}

// diffIDs splits old vs. new into the targets to unlink and the targets to
// link.
func diffIDs(oldIDs, newIDs []int64) (removed, added []int64) {
	for _, id := range oldIDs {
		if !containsID(newIDs, id) {
			removed = append(removed, id)
		}
	}
	for _, id := range newIDs {
		if !containsID(oldIDs, id) {
			added = append(added, id)
		}
	}
	return removed, added
}

package models

// Reference is an id/name pair from a backend reference list (interests, skills)
type Reference struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MergeReferences returns base with incoming merged in by id: known ids get the
// incoming name, unknown ids are appended in incoming order.
func MergeReferences(base, incoming []Reference) []Reference {
	out := append([]Reference(nil), base...)
	index := make(map[int64]int, len(out))
	for i, r := range out {
		index[r.ID] = i
	}
	for _, r := range incoming {
		if i, ok := index[r.ID]; ok {
			out[i].Name = r.Name
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}

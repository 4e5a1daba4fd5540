package umbraco

// Ref references another node by id in creation payloads.
type Ref struct {
	ID string `json:"id"`
}

// Item is the common shape of tree and collection entries returned by the
// management API.
type Item struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Variants []ItemVariant `json:"variants,omitempty"`
}

// ItemVariant carries the per-variant display name of a tree entry.
type ItemVariant struct {
	Name string `json:"name"`
}

// DisplayName returns the entry's name, falling back to the first variant's
// name when the top-level name is empty. Tree endpoints populate one or the
// other depending on node kind.
func (it Item) DisplayName() string {
	if it.Name != "" {
		return it.Name
	}
	if len(it.Variants) > 0 {
		return it.Variants[0].Name
	}
	return ""
}

// ItemCollection is a paginated listing of items.
type ItemCollection struct {
	Total int    `json:"total"`
	Items []Item `json:"items"`
}

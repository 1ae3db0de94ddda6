// Package domain defines the core types shared across the relicflip
// pipeline: tracked items, market orders, pricing strategies, computed
// opportunities, and the store/cache interfaces they flow through.
package domain

import "strings"

// ItemCategory classifies a tracked item.
type ItemCategory string

const (
	CategoryWarframe ItemCategory = "warframe"
	CategoryWeapon   ItemCategory = "weapon"
)

// TrackedItem is one catalog entry: a prime set assembled from component
// parts. Catalog entries are created at configuration load and never mutated
// at runtime.
type TrackedItem struct {
	ID       string       // url-safe base slug, e.g. "mesa_prime"
	Name     string       // display name, e.g. "Mesa Prime"
	Parts    []string     // component part names, e.g. ["Blueprint", "Chassis"]
	Category ItemCategory
	Enabled  bool
}

// PartSlug returns the upstream url slug for one component part,
// e.g. ("mesa_prime", "Neuroptics") -> "mesa_prime_neuroptics".
func (t TrackedItem) PartSlug(part string) string {
	return t.ID + "_" + strings.ReplaceAll(strings.ToLower(part), " ", "_")
}

// SetSlug returns the upstream url slug for the assembled set.
func (t TrackedItem) SetSlug() string {
	return t.ID + "_set"
}

// Slugs returns every upstream slug the item needs per cycle: all parts
// followed by the set.
func (t TrackedItem) Slugs() []string {
	slugs := make([]string, 0, len(t.Parts)+1)
	for _, p := range t.Parts {
		slugs = append(slugs, t.PartSlug(p))
	}
	return append(slugs, t.SetSlug())
}

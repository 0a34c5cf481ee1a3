package catalogs

// Predicate filters catalog definitions.
type Predicate func(ThingDef) bool

// ResourceRock accepts mineable resource rocks that yield a thing, skipping
// the excluded rock ids.
func ResourceRock(excluded ...string) Predicate {
	skip := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		skip[id] = struct{}{}
	}
	return func(d ThingDef) bool {
		if d.Mineable == nil || !d.Mineable.ResourceRock || d.Mineable.Yields == "" {
			return false
		}
		_, excludedRock := skip[d.ID]
		return !excludedRock
	}
}

// TableCandidate accepts items that may be added to the resource table by hand.
func TableCandidate(d ThingDef) bool {
	return d.Category == CategoryItem &&
		d.Scatterable &&
		!d.DestroyOnDrop &&
		!d.MadeFromStuff &&
		!d.Rottable
}

// Filter returns the definitions accepted by p, in palette order.
func (c *Catalog) Filter(p Predicate) []ThingDef {
	var out []ThingDef
	for _, id := range c.Palette {
		if d := c.Defs[id]; p(d) {
			out = append(out, d)
		}
	}
	return out
}

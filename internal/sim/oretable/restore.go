package oretable

import "fmt"

// UnresolvedKindWarning reports a persisted entry dropped on restore: its
// kind no longer exists, or it repeats a kind already restored.
type UnresolvedKindWarning struct {
	Kind      string
	Weight    int
	Duplicate bool
}

func (w UnresolvedKindWarning) Error() string {
	if w.Duplicate {
		return fmt.Sprintf("duplicate kind %q (weight %d) dropped from resource table", w.Kind, w.Weight)
	}
	return fmt.Sprintf("unresolved kind %q (weight %d) dropped from resource table", w.Kind, w.Weight)
}

// Restore rebuilds a table from persisted entries, dropping any entry whose
// kind resolve rejects and any repeat of a kind. The first occurrence of a
// kind wins. Dropped entries are returned
// alongside the table instead of failing the load.
func Restore(entries []Entry, resolve func(kind string) bool) (*Table, []UnresolvedKindWarning) {
	t := &Table{}
	var dropped []UnresolvedKindWarning
	for _, e := range entries {
		if e.Kind == "" || (resolve != nil && !resolve(e.Kind)) {
			dropped = append(dropped, UnresolvedKindWarning{Kind: e.Kind, Weight: e.Weight})
			continue
		}
		if t.indexOf(e.Kind) >= 0 {
			dropped = append(dropped, UnresolvedKindWarning{Kind: e.Kind, Weight: e.Weight, Duplicate: true})
			continue
		}
		t.entries = append(t.entries, Entry{Kind: e.Kind, Weight: clampWeight(e.Weight)})
	}
	return t, dropped
}

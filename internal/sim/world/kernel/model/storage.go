package model

// Storage types.
const (
	// StoragePlatform is attached to a quarry site and takes a direct carry.
	StoragePlatform = "PLATFORM"
	// StorageStockpile is a general zone that takes a direct carry.
	StorageStockpile = "STOCKPILE"
	// StorageShelf runs its own haul job.
	StorageShelf = "SHELF"
)

// Storage is a set of slots, each holding at most one item stack.
type Storage struct {
	StorageID string
	Type      string
	Pos       Vec3i
	// SiteID is set for platforms connected to a quarry site.
	SiteID   string
	Priority int
	// Accepts lists the item kinds allowed; empty means any.
	Accepts []string

	Slots []Slot
}

type Slot struct {
	ItemID     string
	ReservedBy string
}

func (s *Storage) ID() string { return s.StorageID }

// Simple reports whether an agent can carry directly into the storage.
func (s *Storage) Simple() bool { return s.Type != StorageShelf }

func (s *Storage) Allows(kind string) bool {
	if len(s.Accepts) == 0 {
		return true
	}
	for _, k := range s.Accepts {
		if k == kind {
			return true
		}
	}
	return false
}

// FreeSlot returns the first empty unreserved slot.
func (s *Storage) FreeSlot() (int, bool) {
	for i, sl := range s.Slots {
		if sl.ItemID == "" && sl.ReservedBy == "" {
			return i, true
		}
	}
	return -1, false
}

func (s *Storage) Reserve(slot int, by string) bool {
	if slot < 0 || slot >= len(s.Slots) {
		return false
	}
	sl := &s.Slots[slot]
	if sl.ItemID != "" || (sl.ReservedBy != "" && sl.ReservedBy != by) {
		return false
	}
	sl.ReservedBy = by
	return true
}

// Unreserve clears every slot reserved by by.
func (s *Storage) Unreserve(by string) {
	for i := range s.Slots {
		if s.Slots[i].ReservedBy == by {
			s.Slots[i].ReservedBy = ""
		}
	}
}

func (s *Storage) Place(slot int, itemID string) bool {
	if slot < 0 || slot >= len(s.Slots) || s.Slots[slot].ItemID != "" {
		return false
	}
	s.Slots[slot] = Slot{ItemID: itemID}
	return true
}

func (s *Storage) Used() int {
	n := 0
	for _, sl := range s.Slots {
		if sl.ItemID != "" {
			n++
		}
	}
	return n
}

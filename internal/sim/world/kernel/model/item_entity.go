package model

// ItemEntity is an item stack on the ground or in a storage slot. It is part
// of the authoritative sim state and must be snapshotted.
type ItemEntity struct {
	EntityID    string
	Pos         Vec3i
	Item        string
	Count       int
	Condition   float64
	HitPoints   int
	Quality     int
	CreatedTick uint64

	HaulDesignated bool
	// StoredIn is the storage ID once placed in a slot.
	StoredIn string
	// ReservedBy is the work cycle that holds this item.
	ReservedBy string
}

func (e *ItemEntity) ID() string { return e.EntityID }

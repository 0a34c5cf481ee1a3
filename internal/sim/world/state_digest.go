package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
)

// stateDigest hashes the authoritative state in a fixed order. Two worlds
// stepped with the same seed and commands produce the same digest.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	writeU64(h, nowTick)
	writeU64(h, uint64(w.engine.Revision()))
	for _, e := range w.engine.TableEntries() {
		writeStr(h, e.Kind)
		writeU64(h, uint64(e.Weight))
	}
	for _, id := range w.sortedSiteIDs() {
		st := w.sites[id]
		s := st.site.State()
		writeStr(h, id)
		writeU64(h, math.Float64bits(s.Remaining))
		writeU64(h, uint64(s.JobsCompleted))
		writeStr(h, s.MineMode)
		writeBool(h, s.AutoHaul)
		writeBool(h, st.forbidden)
		writeBool(h, st.inaccessible)
	}
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		writeStr(h, id)
		writeI64(h, int64(a.Pos.X))
		writeI64(h, int64(a.Pos.Y))
		writeI64(h, int64(a.Pos.Z))
		writeI64(h, int64(a.HP))
		writeU64(h, uint64(a.CellsMined))
		writeStr(h, a.Carrying)
		if c := a.Cycle; c != nil {
			writeStr(h, c.CycleID)
			writeStr(h, string(c.Phase))
			writeI64(h, int64(c.TicksRemaining))
			writeI64(h, int64(c.TicksToPickHit))
			writeStr(h, c.ItemID)
		}
	}
	for _, id := range w.sortedStorageIDs() {
		st := w.storages[id]
		writeStr(h, id)
		for _, sl := range st.Slots {
			writeStr(h, sl.ItemID)
			writeStr(h, sl.ReservedBy)
		}
	}
	for _, it := range w.Items() {
		writeStr(h, it.EntityID)
		writeStr(h, it.Item)
		writeU64(h, uint64(it.Count))
		writeI64(h, int64(it.HitPoints))
		writeStr(h, it.StoredIn)
		writeStr(h, it.ReservedBy)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeU64(h hash.Hash, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, _ = h.Write(b[:])
}

func writeI64(h hash.Hash, v int64) { writeU64(h, uint64(v)) }

func writeStr(h hash.Hash, s string) {
	writeU64(h, uint64(len(s)))
	_, _ = h.Write([]byte(s))
}

func writeBool(h hash.Hash, v bool) {
	if v {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
}

package world

import (
	"context"
	"errors"
)

var (
	ErrSnapshotDisabled = errors.New("snapshot sink not configured")
	ErrSnapshotBusy     = errors.New("snapshot writer busy")
)

// SnapshotReport summarizes the quarry state captured by an operator
// snapshot.
type SnapshotReport struct {
	Tick          uint64       `json:"tick"`
	TableRevision int          `json:"table_revision"`
	TableEntries  int          `json:"table_entries"`
	Sites         []SiteReport `json:"sites"`
}

type SiteReport struct {
	ID            string  `json:"id"`
	Preset        string  `json:"preset"`
	Percent       float64 `json:"percent"`
	JobsCompleted int     `json:"jobs_completed"`
	Depleted      bool    `json:"depleted"`
	Forbidden     bool    `json:"forbidden,omitempty"`
}

type snapshotRequest struct {
	reply chan snapshotReply
}

type snapshotReply struct {
	report SnapshotReport
	err    error
}

// RequestSnapshot asks the world loop to hand a snapshot of the last
// completed tick to the snapshot sink. The report is filled even when the
// sink refuses the snapshot.
func (w *World) RequestSnapshot(ctx context.Context) (SnapshotReport, error) {
	req := snapshotRequest{reply: make(chan snapshotReply, 1)}
	select {
	case w.snapshotReqs <- req:
	case <-ctx.Done():
		return SnapshotReport{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.report, r.err
	case <-ctx.Done():
		return SnapshotReport{}, ctx.Err()
	}
}

// serveSnapshotRequests answers every request queued during a tick with one
// export.
func (w *World) serveSnapshotRequests(reqs []snapshotRequest) {
	if len(reqs) == 0 {
		return
	}
	tick := w.tick.Load()
	if tick > 0 {
		tick--
	}
	rep := w.snapshotReport(tick)

	var err error
	if w.snapshotSink == nil {
		err = ErrSnapshotDisabled
	} else {
		select {
		case w.snapshotSink <- w.ExportSnapshot(tick):
		default:
			err = ErrSnapshotBusy
		}
	}
	for _, r := range reqs {
		r.reply <- snapshotReply{report: rep, err: err}
	}
}

func (w *World) snapshotReport(tick uint64) SnapshotReport {
	rep := SnapshotReport{
		Tick:          tick,
		TableRevision: w.engine.Revision(),
		TableEntries:  len(w.engine.TableEntries()),
	}
	for _, id := range w.sortedSiteIDs() {
		st := w.sites[id]
		rep.Sites = append(rep.Sites, SiteReport{
			ID:            id,
			Preset:        st.site.PresetName,
			Percent:       st.site.CurrentDepletionPercent(),
			JobsCompleted: st.site.JobsCompleted(),
			Depleted:      st.site.Depleted(),
			Forbidden:     st.forbidden,
		})
	}
	return rep
}

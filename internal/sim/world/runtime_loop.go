package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingCmds []Command
	var pendingSnaps []snapshotRequest

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case req := <-w.snapshotReqs:
			pendingSnaps = append(pendingSnaps, req)
		case cmd := <-w.inbox:
			pendingCmds = append(pendingCmds, cmd)
		case <-ticker.C:
			w.stepInternal(pendingCmds)
			w.serveSnapshotRequests(pendingSnaps)
			pendingCmds = pendingCmds[:0]
			pendingSnaps = pendingSnaps[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering
// semantics as Run. It is intended for tests and offline replays.
func (w *World) StepOnce(cmds []Command) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.stepInternal(cmds)
	return tick, w.stateDigest(tick)
}

func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

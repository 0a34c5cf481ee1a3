package world

// WorldMetrics is published after each step and may be read from any
// goroutine.
type WorldMetrics struct {
	Tick         uint64  `json:"tick"`
	Agents       int     `json:"agents"`
	Sites        int     `json:"sites"`
	ActiveCycles int     `json:"active_cycles"`
	Items        int     `json:"items"`
	Outcomes     uint64  `json:"outcomes"`
	PickHits     uint64  `json:"pick_hits"`
	Inbox        int     `json:"inbox"`
	StepMS       float64 `json:"step_ms"`
}

func (w *World) Metrics() WorldMetrics {
	m, _ := w.metrics.Load().(WorldMetrics)
	return m
}

package domain

import (
	"sort"
	"sync"
	"time"
)

// Pipeline stage names, in execution order.
const (
	StageNormalize   = "normalize"
	StageFabrication = "fabrication"
	StageHardGate    = "hard_gate"
	StageDetect      = "detect"
	StageScore       = "score"
	StageExplosive   = "explosive"
)

// StageTrace holds input/output counts and a rejection-reason histogram
// for one pipeline stage.
type StageTrace struct {
	In         int            `json:"in"`
	Out        int            `json:"out"`
	Rejections map[string]int `json:"rejections,omitempty"`
}

// GateFailure names one symbol the hard gates rejected, carrying the
// complete failed-gate set. The histogram above aggregates by reason;
// this keeps the per-symbol view a consumer needs to answer "why is
// this ticker missing".
type GateFailure struct {
	Symbol  string    `json:"symbol"`
	Action  ActionTag `json:"action"`
	GateIDs []string  `json:"gate_ids"`
}

// RunTrace is the append-only observability record for one run. Workers
// record concurrently; the trace is sealed into the published result at
// assembly time.
type RunTrace struct {
	RunID     string    `json:"run_id"`
	Strategy  string    `json:"strategy"`
	Session   string    `json:"session"`
	StartedAt time.Time `json:"started_at"`

	mu           sync.Mutex
	Stages       map[string]*StageTrace `json:"stages"`
	gateFailures []GateFailure
}

func NewRunTrace(runID, strategy, session string, startedAt time.Time) *RunTrace {
	return &RunTrace{
		RunID:     runID,
		Strategy:  strategy,
		Session:   session,
		StartedAt: startedAt,
		Stages:    make(map[string]*StageTrace),
	}
}

func (t *RunTrace) stage(name string) *StageTrace {
	st, ok := t.Stages[name]
	if !ok {
		st = &StageTrace{Rejections: make(map[string]int)}
		t.Stages[name] = st
	}
	return st
}

// RecordIn increments the input count for a stage.
func (t *RunTrace) RecordIn(stage string, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage(stage).In += n
}

// RecordOut increments the output count for a stage.
func (t *RunTrace) RecordOut(stage string, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage(stage).Out += n
}

// RecordGateFailure appends one hard-gate-rejected symbol with its
// failed-gate list.
func (t *RunTrace) RecordGateFailure(symbol string, gateIDs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gateFailures = append(t.gateFailures, GateFailure{
		Symbol:  symbol,
		Action:  ActionRejected,
		GateIDs: append([]string(nil), gateIDs...),
	})
}

// GateFailures returns the rejected symbols sorted by symbol, so sealed
// traces serialize identically regardless of worker completion order.
func (t *RunTrace) GateFailures() []GateFailure {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := append([]GateFailure(nil), t.gateFailures...)
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// RecordRejection bumps the histogram bucket for one rejection reason.
func (t *RunTrace) RecordRejection(stage, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage(stage).Rejections[reason]++
}

// Snapshot returns a copy safe to serialize after workers have stopped.
func (t *RunTrace) Snapshot() map[string]StageTrace {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]StageTrace, len(t.Stages))
	for name, st := range t.Stages {
		cp := StageTrace{In: st.In, Out: st.Out, Rejections: make(map[string]int, len(st.Rejections))}
		for r, n := range st.Rejections {
			cp.Rejections[r] = n
		}
		out[name] = cp
	}
	return out
}

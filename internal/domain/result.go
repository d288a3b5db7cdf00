package domain

import "time"

// SchemaVersion is the published result contract version.
const SchemaVersion = "4.1"

// SystemHealth summarizes provider adapter health for the run.
type SystemHealth struct {
	Providers map[string]string `json:"providers"` // adapter name -> healthy|degraded|failed
	Degraded  bool              `json:"degraded"`
}

// PipelineStats is the sealed run trace embedded in the result.
type PipelineStats struct {
	RunID        string                `json:"run_id"`
	Universe     int                   `json:"universe"`
	Stages       map[string]StageTrace `json:"stages"`
	GateFailures []GateFailure         `json:"gate_failures,omitempty"`
}

// ScanResult is the versioned contract published once per run. Partial
// results are never published: the result is either complete or a
// well-formed empty/degraded contract.
type ScanResult struct {
	Schema           string               `json:"schema"`
	Regime           string               `json:"regime"` // active session name
	Status           RunStatus            `json:"status"`
	Timestamp        time.Time            `json:"timestamp"`
	ExecutionTimeSec float64              `json:"execution_time_sec"`
	Items            []CompositeCandidate `json:"items"`
	ExplosiveTop     []ExplosiveCandidate `json:"explosive_top"`
	Count            int                  `json:"count"`
	AgeMinutes       float64              `json:"age_minutes,omitempty"` // set when status=stale_data
	Reason           string               `json:"reason,omitempty"`
	FallbackUsed     bool                 `json:"fallback_used,omitempty"`
	SystemHealth     SystemHealth         `json:"system_health"`
	PipelineStats    PipelineStats        `json:"pipeline_stats"`
	Telemetry        map[string]float64   `json:"telemetry,omitempty"`
}

// EmptyResult builds a well-formed zero-candidate contract. Used for
// overnight suspension (closed), stale-data fail-closed runs, and run
// timeouts — never for silently truncated lists.
func EmptyResult(session string, status RunStatus, reason string, ts time.Time) *ScanResult {
	return &ScanResult{
		Schema:       SchemaVersion,
		Regime:       session,
		Status:       status,
		Timestamp:    ts,
		Items:        []CompositeCandidate{},
		ExplosiveTop: []ExplosiveCandidate{},
		Count:        0,
		Reason:       reason,
		SystemHealth: SystemHealth{Providers: map[string]string{}},
	}
}

// Package providers defines the adapter contract the engine consumes
// and a guarded facade that rate-limits and circuit-breaks adapter
// calls. Raw vendor clients stay behind the Adapter interface.
package providers

import (
	"context"
	"time"

	"github.com/ignitelab/ignite/internal/domain"
)

// Kind tags what a response variant carries.
type Kind string

const (
	KindQuote         Kind = "quote"
	KindBars          Kind = "bars"
	KindShortInterest Kind = "short_interest"
	KindShortVolume   Kind = "short_volume"
	KindOptions       Kind = "options"
	KindNews          Kind = "news"
	KindSocial        Kind = "social"
)

// Health is the adapter's self-reported state, consumed for
// circuit-breaking upstream of the scoring core.
type Health string

const (
	Healthy  Health = "healthy"
	Degraded Health = "degraded"
	Failed   Health = "failed"
)

// Response is one tagged provider payload for one symbol. Every field
// value carries the response's provenance; a provider that cannot
// attribute a value must omit it.
type Response struct {
	Provider   string                        `json:"provider"`
	Tier       domain.Tier                   `json:"tier"`
	Kind       Kind                          `json:"kind"`
	Symbol     string                        `json:"symbol"`
	AsOf       time.Time                     `json:"as_of"`
	IngestedAt time.Time                     `json:"ingested_at"`
	Fields     map[domain.FieldName]float64  `json:"fields"`
	// Confidence is the provider's own per-response confidence, 1.0
	// unless the provider reports otherwise.
	Confidence float64           `json:"confidence"`
	Catalysts  []domain.Catalyst `json:"catalysts,omitempty"`
	Closes     []float64         `json:"closes,omitempty"` // bars only
}

// Adapter is one upstream data source. Implementations handle their own
// retries and backoff; the engine treats a returned error as
// terminal-for-this-field.
type Adapter interface {
	Name() string
	Tier() domain.Tier
	Kinds() []Kind
	Fetch(ctx context.Context, symbol string) ([]Response, error)
	Health() Health
}

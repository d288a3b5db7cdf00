package domain

// Reason codes for every rejection path. Nothing in the engine drops a
// symbol, field, or run silently — each path maps to one of these and
// lands in the run trace histogram.
const (
	ReasonNoPriceData     = "no_price_data"
	ReasonStaleData       = "stale_data"
	ReasonFabricatedValue = "fabricated_value"
	ReasonRunTimeout      = "run_timeout"
	ReasonOvernight       = "overnight_suspended"
	ReasonProviderDown    = "provider_unavailable"

	// Hard gate IDs double as rejection reasons.
	GatePriceCap       = "price_cap"
	GateMinDollarVol   = "min_dollar_vol"
	GateSpreadMax      = "spread_max"
	GateValueTradedMin = "value_traded_min"
	GateMinRelVol      = "min_rel_vol"
	GateVWAPReclaim    = "vwap_reclaim"
)

// Run statuses for the published result contract.
type RunStatus string

const (
	StatusLive      RunStatus = "live"
	StatusClosed    RunStatus = "closed"
	StatusStaleData RunStatus = "stale_data"
)

package config

// Pauses captures the per-module pause toggles persisted in the parameter
// store. A paused module rejects every mutating command while reads stay
// available.
type Pauses struct {
	Assets  bool `json:"assets" toml:"Assets"`
	Market  bool `json:"market" toml:"Market"`
	Revenue bool `json:"revenue" toml:"Revenue"`
}

// IsPaused reports the toggle for a named module. Unknown modules are never
// paused.
func (p Pauses) IsPaused(module string) bool {
	switch module {
	case "assets":
		return p.Assets
	case "market":
		return p.Market
	case "revenue":
		return p.Revenue
	default:
		return false
	}
}

// RevenuePolicy carries administrative overrides for the revenue module. The
// minimum deposit interval is an optional gate between deposits into the same
// pool; zero disables it.
type RevenuePolicy struct {
	MinDepositIntervalSeconds int64 `json:"minDepositIntervalSeconds" toml:"MinDepositIntervalSeconds"`
}

// Quota defines per-address rate limits applied to mutating commands.
type Quota struct {
	MaxCommandsPerEpoch uint32 `json:"maxCommandsPerEpoch" toml:"MaxCommandsPerEpoch"`
	MaxFundsPerEpoch    uint64 `json:"maxFundsPerEpoch" toml:"MaxFundsPerEpoch"`
	EpochSeconds        uint32 `json:"epochSeconds" toml:"EpochSeconds"`
}

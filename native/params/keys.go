package params

const (
	// ParamsKeyPauses stores the module pause configuration.
	ParamsKeyPauses = "system/pauses"
	// ParamsKeyRevenue stores the revenue deposit policy overrides.
	ParamsKeyRevenue = "system/revenue"
	// ParamsKeyQuota stores the per-address command quota configuration.
	ParamsKeyQuota = "system/quota"
)

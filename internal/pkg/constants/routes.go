package constants

// Browser routes used as redirect targets
const (
	HomeRoute    = "/"
	PricingRoute = "/pricing"
	AuthRoute    = "/auth"
)

package constants

// Static route constants
const (
	APIPrefix       = "/api/v1"
	HealthRoute     = "/health"
	StatsRoute      = "/stats"
	RenewalJobRoute = "/renewal-job"
)

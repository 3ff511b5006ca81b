package service

// Metrics receives service-level outcomes. A nil Metrics is valid.
type Metrics interface {
	AuthAttempt(operation, outcome string)
	DirectoryUsers(role string, count int)
}

// Outcome labels for Metrics.AuthAttempt.
const (
	OutcomeSuccess            = "success"
	OutcomeDuplicate          = "duplicate"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeMalformed          = "malformed"
	OutcomeForbidden          = "forbidden"
	OutcomeUnavailable        = "unavailable"
	OutcomeError              = "error"
)

type noopMetrics struct{}

func (noopMetrics) AuthAttempt(string, string)  {}
func (noopMetrics) DirectoryUsers(string, int) {}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

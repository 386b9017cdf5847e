package metrics

import "time"

const (
	resultSuccess = "success"
	resultError   = "error"
	resultFailure = "failure"
)

func outcome(success bool, failure string) string {
	if success {
		return resultSuccess
	}
	return failure
}

// RecordTokenIssued records token issuance
func (m *Metrics) RecordTokenIssued(class string, generationTime time.Duration) {
	m.TokensIssuedTotal.WithLabelValues(class).Inc()
	m.TokenGenerationDuration.WithLabelValues(class).Observe(generationTime.Seconds())
}

// RecordTokenVerification records a verification result: valid, invalid or expired
func (m *Metrics) RecordTokenVerification(class, result string) {
	m.TokenVerificationsTotal.WithLabelValues(class, result).Inc()
}

func (m *Metrics) RecordTokenRefresh(success bool) {
	m.TokensRefreshedTotal.WithLabelValues(outcome(success, resultError)).Inc()
}

func (m *Metrics) RecordLogin(method string, success bool) {
	m.AuthLoginTotal.WithLabelValues(method, outcome(success, resultFailure)).Inc()
}

func (m *Metrics) RecordLogout() {
	m.AuthLogoutTotal.Inc()
}

func (m *Metrics) RecordOAuthCallback(provider string, success bool) {
	m.AuthOAuthCallbackTotal.WithLabelValues(provider, outcome(success, resultError)).Inc()
}

// RecordHookDelivery records one delivery attempt on channel ("webhook" or "live")
func (m *Metrics) RecordHookDelivery(channel string, success bool, duration time.Duration) {
	m.HookDeliveriesTotal.WithLabelValues(channel, outcome(success, resultFailure)).Inc()
	m.HookDeliveryDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

func (m *Metrics) SetLiveChannelsConnected(count int) {
	m.LiveChannelsConnected.Set(float64(count))
}

func (m *Metrics) RecordKeyGeneration(success bool) {
	m.KeyGenerationsTotal.WithLabelValues(outcome(success, resultError)).Inc()
}

func (m *Metrics) SetUsersCount(count int64) {
	m.UsersTotal.Set(float64(count))
}

func (m *Metrics) SetServicesCount(count int64) {
	m.ServicesTotal.Set(float64(count))
}

// RecordDatabaseQueryError records a database query error during metric collection
func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}

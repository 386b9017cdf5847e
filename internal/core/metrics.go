package core

import "time"

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Tokens
	RecordTokenIssued(class string, generationTime time.Duration)
	RecordTokenVerification(class, result string)
	RecordTokenRefresh(success bool)

	// Authentication
	RecordLogin(method string, success bool)
	RecordLogout()
	RecordOAuthCallback(provider string, success bool)

	// Notification delivery
	RecordHookDelivery(channel string, success bool, duration time.Duration)
	SetLiveChannelsConnected(count int)

	// Keys
	RecordKeyGeneration(success bool)

	// Gauge setters (periodic updates)
	SetUsersCount(count int64)
	SetServicesCount(count int64)

	// Database
	RecordDatabaseQueryError(operation string)
}

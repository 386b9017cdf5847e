package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordTokenIssued(class string, generationTime time.Duration) {}

func (n *NoopMetrics) RecordTokenVerification(class, result string) {}

func (n *NoopMetrics) RecordTokenRefresh(success bool) {}

func (n *NoopMetrics) RecordLogin(method string, success bool) {}

func (n *NoopMetrics) RecordLogout() {}

func (n *NoopMetrics) RecordOAuthCallback(provider string, success bool) {}

func (n *NoopMetrics) RecordHookDelivery(channel string, success bool, duration time.Duration) {}

func (n *NoopMetrics) SetLiveChannelsConnected(count int) {}

func (n *NoopMetrics) RecordKeyGeneration(success bool) {}

func (n *NoopMetrics) SetUsersCount(count int64) {}

func (n *NoopMetrics) SetServicesCount(count int64) {}

func (n *NoopMetrics) RecordDatabaseQueryError(operation string) {}

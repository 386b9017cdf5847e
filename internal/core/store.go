package core

import "context"

// MetricsStore defines the DB operations needed by the metrics gauge updater.
type MetricsStore interface {
	CountUsers(ctx context.Context) (int64, error)
	CountServices(ctx context.Context) (int64, error)
}

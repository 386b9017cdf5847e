package client

import (
	"fmt"
	"net/http"
	"time"

	httpclient "github.com/appleboy/go-httpclient"
	retry "github.com/appleboy/go-httpretry"
	"go.uber.org/zap"
)

// HTTPOptions configures an outbound client.
type HTTPOptions struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// RetryOptions configures the retry wrapper. MaxRetries 0 means a single attempt.
type RetryOptions struct {
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// Logger receives retry attempts. Nil means the global logger named "webhook".
	Logger *zap.Logger
}

// zapRetryLogger routes the retry client's key/value logging into zap
type zapRetryLogger struct {
	sugar *zap.SugaredLogger
}

func newZapRetryLogger(l *zap.Logger) retry.Logger {
	if l == nil {
		l = zap.L().Named("webhook")
	}
	return zapRetryLogger{sugar: l.Sugar()}
}

func (l zapRetryLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l zapRetryLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l zapRetryLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l zapRetryLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

// CreateHTTPClient creates a plain client on the pooled transport.
func CreateHTTPClient(opts HTTPOptions) (*http.Client, error) {
	client, err := httpclient.NewClient(
		httpclient.WithTimeout(opts.Timeout),
		httpclient.WithTransport(CreateOptimizedTransport(opts.InsecureSkipVerify)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}
	return client, nil
}

// CreateRetryClient wraps an HTTP client with retry support.
// Used for webhook delivery to tenant endpoints.
func CreateRetryClient(httpOpts HTTPOptions, retryOpts RetryOptions) (*retry.Client, error) {
	client, err := CreateHTTPClient(httpOpts)
	if err != nil {
		return nil, err
	}

	retryClient, err := retry.NewRealtimeClient(
		retry.WithHTTPClient(client),
		retry.WithMaxRetries(retryOpts.MaxRetries),
		retry.WithInitialRetryDelay(retryOpts.RetryDelay),
		retry.WithMaxRetryDelay(retryOpts.MaxRetryDelay),
		retry.WithLogger(newZapRetryLogger(retryOpts.Logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}

	return retryClient, nil
}

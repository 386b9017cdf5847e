package client

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// CreateOptimizedTransport returns a transport with a connection pool sized for
// repeated calls to a small set of hosts (OAuth providers, tenant webhooks).
func CreateOptimizedTransport(insecureSkipVerify bool) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: insecureSkipVerify, //nolint:gosec // opt-in for test deployments
		},
	}
}

// pkg/squidex/metrics.go
package squidex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squidex_token_refreshes_total",
		Help: "Client-credentials grants issued, by app and outcome.",
	}, []string{"app", "outcome"})

	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squidex_upstream_requests_total",
		Help: "Content API calls, by app, method and status code.",
	}, []string{"app", "method", "status"})
)

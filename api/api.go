// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api exposes the read-only HTTP surface: feed and report
// reads, claimable amounts and settlement history. Mutations are
// host-mediated capability calls and have no HTTP route.
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/epochtally/tally/api/claims"
	"github.com/epochtally/tally/api/contributions"
	"github.com/epochtally/tally/api/rewards"
	"github.com/epochtally/tally/api/utils"
	"github.com/epochtally/tally/claimdb"
	"github.com/epochtally/tally/contribution"
	"github.com/epochtally/tally/distributor"
	"github.com/epochtally/tally/log"
	"github.com/epochtally/tally/metrics"
	"github.com/epochtally/tally/rewardfeed"
)

var logger = log.WithContext("pkg", "api")

type Options struct {
	AllowedOrigins string
	EnableMetrics  bool
}

// New return api router. rewardFeed and claimDB may be nil when the
// host runs without the equal-split feed or settlement history.
func New(
	feed *contribution.Feed,
	rewardFeed *rewardfeed.Feed,
	dist *distributor.Distributor,
	claimDB *claimdb.ClaimDB,
	opts Options,
) http.HandlerFunc {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	contributions.New(feed).
		Mount(router, "/contributions")
	if rewardFeed != nil {
		rewards.New(rewardFeed).
			Mount(router, "/rewards")
	}
	claims.New(dist, claimDB).
		Mount(router, "/claims")

	router.Path("/health").
		Methods(http.MethodGet).
		Name("health").
		HandlerFunc(utils.WrapHandlerFunc(handleHealth))

	if opts.EnableMetrics {
		router.Use(metricsMiddleware)
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)

	logger.Debug("router assembled", "origins", opts.AllowedOrigins)
	return handler.ServeHTTP
}

func handleHealth(w http.ResponseWriter, _ *http.Request) error {
	return utils.WriteJSON(w, utils.M{"healthy": true})
}

var metricHTTPRequests = metrics.LazyLoadCounterVec("api_request_count", []string{"name", "code", "method"})

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseRecorder) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware counts requests by route name, status and method.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{w, http.StatusOK}
		next.ServeHTTP(rec, r)

		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}
		metricHTTPRequests().AddWithLabel(1, map[string]string{
			"name":   name,
			"code":   strconv.Itoa(rec.statusCode),
			"method": r.Method,
		})
	})
}

// Copyright 2025 The Courier Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package courier

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcomes reported to the metrics recorder. Route labels use the
// path template, never the raw request path, to keep cardinality bounded.
const (
	outcomeMatched   = "matched"
	outcomeUnmatched = "unmatched"
	outcomeInvalid   = "validation_failed"
)

// MetricsRecorder receives one observation per dispatch event. route is the
// matched path template ("" for unmatched requests); elapsed is zero for
// events without a meaningful duration.
type MetricsRecorder interface {
	RecordDispatch(method, route, outcome string, elapsed time.Duration)
}

// PrometheusMetrics is a MetricsRecorder backed by prometheus collectors: a
// dispatch counter partitioned by method/route/outcome and a match-duration
// histogram.
type PrometheusMetrics struct {
	dispatches *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewPrometheusMetrics creates and registers the collectors on reg. Pass
// prometheus.DefaultRegisterer for the process-global registry.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "courier",
			Name:      "dispatches_total",
			Help:      "Dispatch resolutions by method, route template, and outcome.",
		}, []string{"method", "route", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "courier",
			Name:      "dispatch_duration_seconds",
			Help:      "Route matching duration.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"method", "outcome"}),
	}

	for _, c := range []prometheus.Collector{m.dispatches, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering courier metrics: %w", err)
		}
	}
	return m, nil
}

// RecordDispatch implements MetricsRecorder.
func (m *PrometheusMetrics) RecordDispatch(method, route, outcome string, elapsed time.Duration) {
	if route == "" {
		route = "_unmatched"
	}
	m.dispatches.WithLabelValues(method, route, outcome).Inc()
	if elapsed > 0 {
		m.duration.WithLabelValues(method, outcome).Observe(elapsed.Seconds())
	}
}

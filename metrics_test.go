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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_RecordsDispatches(t *testing.T) {
	preg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(preg)
	require.NoError(t, err)

	reg := NewRegistry()
	reg.MustAddRoute(NewRoute("GET", "/health"))
	d := MustNew(reg, WithMetrics(m))

	d.ResolveRequest("GET", "/health")
	d.ResolveRequest("GET", "/health")
	d.ResolveRequest("GET", "/nope")

	matched := testutil.ToFloat64(m.dispatches.WithLabelValues("GET", "/health", outcomeMatched))
	assert.Equal(t, 2.0, matched)

	unmatched := testutil.ToFloat64(m.dispatches.WithLabelValues("GET", "_unmatched", outcomeUnmatched))
	assert.Equal(t, 1.0, unmatched)
}

func TestNewPrometheusMetrics_DuplicateRegistration(t *testing.T) {
	preg := prometheus.NewRegistry()

	_, err := NewPrometheusMetrics(preg)
	require.NoError(t, err)

	_, err = NewPrometheusMetrics(preg)
	assert.Error(t, err)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"sort"
	"sync"
	"time"

	"github.com/bureau-foundation/concert/lib/schema"
)

// statsTable accumulates per-endpoint connection statistics.
type statsTable struct {
	mu        sync.Mutex
	endpoints map[string]*schema.ConnectionStats
}

func newStatsTable() *statsTable {
	return &statsTable{endpoints: make(map[string]*schema.ConnectionStats)}
}

func (s *statsTable) record(endpoint string, at time.Time, latency time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.endpoints[endpoint]
	if !ok {
		entry = &schema.ConnectionStats{Endpoint: endpoint}
		s.endpoints[endpoint] = entry
	}
	entry.Calls++
	entry.LastLatency = latency
	if err != nil {
		entry.Failures++
		entry.LastFailure = at
		entry.LastErrorMsg = err.Error()
		return
	}
	entry.LastSuccess = at
}

func (s *statsTable) forget(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.endpoints, endpoint)
}

func (s *statsTable) snapshot() []schema.ConnectionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]schema.ConnectionStats, 0, len(s.endpoints))
	for _, entry := range s.endpoints {
		result = append(result, *entry)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Endpoint < result[j].Endpoint })
	return result
}

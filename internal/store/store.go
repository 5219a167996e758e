package store

import (
	"sort"
	"strings"
	"sync"

	"mailgatekeeper/internal/model"
)

// AlertStore is the in-process alert ledger, keyed by alert identity.
// Alerts live for the process lifetime; there is no eviction.
//
// A scheduled scan and a manually triggered scan may upsert concurrently.
// Each call observes its own insert result, so two racing cycles can both
// report the same identity as new; notification is best-effort and this
// race is tolerated.
type AlertStore struct {
	mu     sync.RWMutex
	alerts map[string]model.Alert
}

func New() *AlertStore {
	return &AlertStore{alerts: make(map[string]model.Alert)}
}

// Upsert inserts or replaces the alert by id (last write wins) and reports
// whether the id was not present before.
func (s *AlertStore) Upsert(alert model.Alert) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.alerts[alert.ID]
	s.alerts[alert.ID] = alert
	return !existed
}

// Get returns the alert with the given id.
func (s *AlertStore) Get(id string) (model.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[id]
	return alert, ok
}

// Len returns the number of stored alerts.
func (s *AlertStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

// List returns alerts ordered by received time, newest first. When
// deduplicateThreads is set, alerts sharing a normalized subject are
// grouped into a thread and only the newest threadItemLimit of each
// thread are kept, so one long conversation cannot flood the caller.
func (s *AlertStore) List(deduplicateThreads bool, threadItemLimit int) []model.Alert {
	s.mu.RLock()
	alerts := make([]model.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		alerts = append(alerts, a)
	}
	s.mu.RUnlock()

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].ReceivedAt.After(alerts[j].ReceivedAt)
	})

	if !deduplicateThreads {
		return alerts
	}
	return collapseThreads(alerts, threadItemLimit)
}

// collapseThreads keeps at most limit alerts per thread key, preserving the
// incoming (newest-first) order.
func collapseThreads(alerts []model.Alert, limit int) []model.Alert {
	if limit <= 0 {
		limit = 1
	}

	counts := make(map[string]int)
	out := make([]model.Alert, 0, len(alerts))
	for _, a := range alerts {
		key := ThreadKey(a.Subject)
		if counts[key] >= limit {
			continue
		}
		counts[key]++
		out = append(out, a)
	}
	return out
}

// ThreadKey normalizes a subject into a thread grouping key: reply and
// forward markers are stripped iteratively, then the remainder is
// lower-cased.
func ThreadKey(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		lower := strings.ToLower(s)
		stripped := false
		for _, marker := range []string{"re:", "fwd:", "fw:"} {
			if strings.HasPrefix(lower, marker) {
				s = strings.TrimSpace(s[len(marker):])
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return strings.ToLower(s)
}

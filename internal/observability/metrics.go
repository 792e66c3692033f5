package observability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/upb/llm-chat-gateway/services/usage"
)

// Metrics collects application metrics.
type Metrics interface {
	RecordRequest(ctx context.Context, labels RequestLabels)
	RecordLatency(ctx context.Context, duration time.Duration, labels RequestLabels)
	RecordUsage(ctx context.Context, u *usage.Usage, labels RequestLabels)
}

// RequestLabels contains metric dimensions.
type RequestLabels struct {
	Provider string
	Model    string
	Status   string
}

// UsageSnapshot aggregates one provider/model pair.
type UsageSnapshot struct {
	Provider         string        `json:"provider"`
	Model            string        `json:"model"`
	Requests         int64         `json:"requests"`
	Errors           int64         `json:"errors"`
	PromptTokens     int64         `json:"promptTokens"`
	CompletionTokens int64         `json:"completionTokens"`
	TotalTokens      int64         `json:"totalTokens"`
	UnknownUsage     int64         `json:"unknownUsage"`
	TotalLatency     time.Duration `json:"totalLatencyNs"`
}

// UsageMetrics is an in-memory Metrics implementation. Usage fields a
// provider did not report are not counted as zero; calls without any usage
// are tallied in UnknownUsage.
type UsageMetrics struct {
	mu   sync.Mutex
	rows map[[2]string]*UsageSnapshot
}

// NewUsageMetrics returns an empty collector.
func NewUsageMetrics() *UsageMetrics {
	return &UsageMetrics{rows: make(map[[2]string]*UsageSnapshot)}
}

func (m *UsageMetrics) row(labels RequestLabels) *UsageSnapshot {
	key := [2]string{labels.Provider, labels.Model}
	r, ok := m.rows[key]
	if !ok {
		r = &UsageSnapshot{Provider: labels.Provider, Model: labels.Model}
		m.rows[key] = r
	}
	return r
}

func (m *UsageMetrics) RecordRequest(_ context.Context, labels RequestLabels) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.row(labels)
	r.Requests++
	if labels.Status != "" && labels.Status != "ok" {
		r.Errors++
	}
}

func (m *UsageMetrics) RecordLatency(_ context.Context, duration time.Duration, labels RequestLabels) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.row(labels).TotalLatency += duration
}

func (m *UsageMetrics) RecordUsage(_ context.Context, u *usage.Usage, labels RequestLabels) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.row(labels)
	if u == nil {
		r.UnknownUsage++
		return
	}
	if u.PromptTokens != nil {
		r.PromptTokens += int64(*u.PromptTokens)
	}
	if u.CompletionTokens != nil {
		r.CompletionTokens += int64(*u.CompletionTokens)
	}
	if u.TotalTokens != nil {
		r.TotalTokens += int64(*u.TotalTokens)
	}
}

// Snapshot returns all rows ordered by provider then model.
func (m *UsageMetrics) Snapshot() []UsageSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]UsageSnapshot, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Model < out[j].Model
	})
	return out
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordRequest(context.Context, RequestLabels)                {}
func (NopMetrics) RecordLatency(context.Context, time.Duration, RequestLabels) {}
func (NopMetrics) RecordUsage(context.Context, *usage.Usage, RequestLabels)    {}

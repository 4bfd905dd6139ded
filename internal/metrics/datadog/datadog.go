// Package datadog sends layoutsync metrics to a DogStatsD agent.
package datadog

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/DataDog/datadog-go/v5/statsd"

	"layoutsync/internal/metrics"
)

// Config configures the DogStatsD client.
type Config struct {
	Addr       string // host:port or unix:///path
	Namespace  string
	GlobalTags []string
}

// Backend implements metrics.Backend over a statsd client. Metric names are
// rewritten to Datadog's dotted form: layoutsync_step_total is sent as
// layoutsync.step_total.
type Backend struct {
	client statsd.ClientInterface
}

// NewBackend dials cfg.Addr. UDP clients do not need a listener to exist.
func NewBackend(cfg Config) (*Backend, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("datadog: addr is required")
	}
	opts := []statsd.Option{statsd.WithClientSideAggregation()}
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}
	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: %w", err)
	}
	return &Backend{client: c}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Count(metricName(name), int64(math.Round(delta)), tags(labels), 1)
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Histogram(metricName(name), value, tags(labels), 1)
}

// Flush closes the client, sending anything still buffered. Call it once at
// shutdown.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

func metricName(name string) string {
	if rest, ok := strings.CutPrefix(name, "layoutsync_"); ok {
		return "layoutsync." + rest
	}
	return name
}

// tags renders labels as sorted key:value pairs.
func tags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		out = append(out, k+":"+v)
	}
	sort.Strings(out)
	return out
}

// Package telemetry records HTTP and assessment metrics and serves them in
// the Prometheus text exposition format.
package telemetry

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// Provider holds all metric state for the process.
type Provider struct {
	requests    *labeled
	submissions *labeled

	active int64

	mu       sync.RWMutex
	counters map[string]*int64
	gauges   map[string]func() int64
}

func NewProvider() *Provider {
	return &Provider{
		requests:    newLabeled(),
		submissions: newLabeled(),
		counters:    make(map[string]*int64),
		gauges:      make(map[string]func() int64),
	}
}

// Inc bumps the counter identified by name and its rendered labels.
func (p *Provider) Inc(name, labels string) {
	key := series(name, labels)
	p.mu.RLock()
	c, ok := p.counters[key]
	p.mu.RUnlock()
	if !ok {
		p.mu.Lock()
		if c, ok = p.counters[key]; !ok {
			c = new(int64)
			p.counters[key] = c
		}
		p.mu.Unlock()
	}
	atomic.AddInt64(c, 1)
}

// Counter returns the current value of a counter series.
func (p *Provider) Counter(name, labels string) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if c, ok := p.counters[series(name, labels)]; ok {
		return atomic.LoadInt64(c)
	}
	return 0
}

// RegisterGauge exposes a value sampled at scrape time.
func (p *Provider) RegisterGauge(name string, fn func() int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gauges[name] = fn
}

// ObserveSubmission records the outcome and duration of one inference
// submission.
func (p *Provider) ObserveSubmission(emergencyType, status string, d time.Duration) {
	labels := fmt.Sprintf("emergency_type=%q,status=%q", emergencyType, status)
	p.submissions.get(labels).Observe(d.Seconds())
	p.Inc("assessment_submissions_total", labels)
}

// ObserveStart counts a newly opened session.
func (p *Provider) ObserveStart(emergencyType string) {
	p.Inc("assessment_sessions_started_total", fmt.Sprintf("emergency_type=%q", emergencyType))
}

// Middleware records the duration of every request by route pattern.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&p.active, 1)
			start := time.Now()
			err := next(c)
			atomic.AddInt64(&p.active, -1)

			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", c.Request().Method, route, strconv.Itoa(status))
			p.requests.get(labels).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves GET /metrics.
func (p *Provider) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder
		p.requests.write(&b, "http_server_request_duration_seconds", "Duration of HTTP requests in seconds.")
		p.submissions.write(&b, "assessment_submission_duration_seconds", "Duration of inference submissions in seconds.")

		b.WriteString("# HELP http_server_active_requests Number of in-flight HTTP requests.\n")
		b.WriteString("# TYPE http_server_active_requests gauge\n")
		fmt.Fprintf(&b, "http_server_active_requests %d\n\n", atomic.LoadInt64(&p.active))

		p.mu.RLock()
		for _, key := range sortedKeys(p.counters) {
			fmt.Fprintf(&b, "%s %d\n", key, atomic.LoadInt64(p.counters[key]))
		}
		for _, name := range sortedKeys(p.gauges) {
			fmt.Fprintf(&b, "# TYPE %s gauge\n%s %d\n", name, name, p.gauges[name]())
		}
		p.mu.RUnlock()

		return c.Blob(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
	}
}

func series(name, labels string) string {
	if labels == "" {
		return name
	}
	return name + "{" + labels + "}"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"
)

const (
	EventBatchComplete = "batch-complete"

	defaultUserAgent  = "UDL-Webhook/1.0"
	defaultRetries    = 3
	defaultRetryDelay = time.Second
)

// OutboundConfig describes one delivery destination. Static for the manager
// lifetime.
type OutboundConfig struct {
	URL     string
	Method  string // POST (default) or GET; GET still carries a JSON body
	Headers map[string]string
	// Retries is the number of additional attempts after the first failure.
	// nil means the default of 3 (up to 4 total attempts); 0 means a single
	// attempt.
	Retries    *int
	RetryDelay time.Duration // base backoff, scaled linearly by attempt number
	// Condition optionally filters batches per destination. An expr
	// expression over the delivery payload; empty always delivers.
	Condition string
	// TransformPayload replaces the default payload verbatim when set. An
	// empty object is a valid return for ping-style receivers.
	TransformPayload func(*TransformContext) interface{}
}

// TransformContext is handed to a destination's TransformPayload.
type TransformContext struct {
	Batch   Batch
	Payload BatchPayload
}

// BatchPayload is the default wire payload for a completed batch.
type BatchPayload struct {
	Event     string       `json:"event"`
	Timestamp int64        `json:"timestamp"`
	Source    string       `json:"source"`
	Summary   BatchSummary `json:"summary"`
	Items     []BatchItem  `json:"items"`
}

type BatchSummary struct {
	WebhookCount int      `json:"webhookCount"`
	Plugins      []string `json:"plugins"`
}

type BatchItem struct {
	PluginName string            `json:"pluginName"`
	Body       interface{}       `json:"body,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}

// DeliveryResult is the per-destination outcome of one triggered batch.
type DeliveryResult struct {
	URL      string `json:"url"`
	Success  bool   `json:"success"`
	Skipped  bool   `json:"skipped,omitempty"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

type destination struct {
	cfg  OutboundConfig
	once sync.Once
	prog *vm.Program
	err  error
}

// Manager fans a completed batch out to all configured destinations, each
// with its own retry policy. One destination's outcome never blocks or
// fails another's, and TriggerAll never returns an error itself.
type Manager struct {
	destinations []*destination
	client       *http.Client
	source       string
}

func NewManager(source string, configs []OutboundConfig) *Manager {
	if source == "" {
		source = os.Getenv("UDL_INSTANCE_ID")
	}
	if source == "" {
		source = "UDL"
	}

	dests := make([]*destination, len(configs))
	for i, cfg := range configs {
		dests[i] = &destination{cfg: cfg}
	}
	return &Manager{
		destinations: dests,
		client:       &http.Client{Timeout: 10 * time.Second},
		source:       source,
	}
}

// TriggerAll dispatches the batch to every destination concurrently and
// collects one DeliveryResult per destination, in configuration order.
func (m *Manager) TriggerAll(ctx context.Context, batch Batch) []DeliveryResult {
	payload := m.buildPayload(batch)

	results := make([]DeliveryResult, len(m.destinations))
	var wg sync.WaitGroup
	for i, dest := range m.destinations {
		wg.Add(1)
		go func(i int, dest *destination) {
			defer wg.Done()
			results[i] = m.deliver(ctx, dest, batch, payload)
		}(i, dest)
	}
	wg.Wait()

	return results
}

func (m *Manager) buildPayload(batch Batch) BatchPayload {
	seen := make(map[string]bool)
	plugins := make([]string, 0, len(batch.Webhooks))
	items := make([]BatchItem, 0, len(batch.Webhooks))

	for _, wh := range batch.Webhooks {
		if !seen[wh.PluginName] {
			seen[wh.PluginName] = true
			plugins = append(plugins, wh.PluginName)
		}
		items = append(items, BatchItem{
			PluginName: wh.PluginName,
			Body:       wh.Body,
			Headers:    wh.Headers,
			Timestamp:  wh.Timestamp,
		})
	}

	return BatchPayload{
		Event:     EventBatchComplete,
		Timestamp: time.Now().UnixMilli(),
		Source:    m.source,
		Summary:   BatchSummary{WebhookCount: len(batch.Webhooks), Plugins: plugins},
		Items:     items,
	}
}

func (m *Manager) deliver(ctx context.Context, dest *destination, batch Batch, payload BatchPayload) DeliveryResult {
	result := DeliveryResult{URL: dest.cfg.URL}

	if dest.cfg.Condition != "" {
		fire, err := dest.evalCondition(payload)
		if err != nil {
			log.Error().Str("url", dest.cfg.URL).Err(err).Msg("webhook destination condition failed")
			result.Error = err.Error()
			return result
		}
		if !fire {
			result.Skipped = true
			result.Success = true
			return result
		}
	}

	wire := interface{}(payload)
	if dest.cfg.TransformPayload != nil {
		wire = dest.cfg.TransformPayload(&TransformContext{Batch: batch, Payload: payload})
	}
	body, err := json.Marshal(wire)
	if err != nil {
		result.Error = "marshal payload: " + err.Error()
		return result
	}

	retries := defaultRetries
	if dest.cfg.Retries != nil && *dest.cfg.Retries >= 0 {
		retries = *dest.cfg.Retries
	}
	delay := dest.cfg.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	for attempt := 1; attempt <= retries+1; attempt++ {
		result.Attempts = attempt

		err := m.send(ctx, dest.cfg, body)
		if err == nil {
			result.Success = true
			result.Error = ""
			return result
		}
		result.Error = err.Error()

		log.Warn().
			Str("url", dest.cfg.URL).
			Int("attempt", attempt).
			Int("max_attempts", retries+1).
			Err(err).
			Msg("webhook delivery attempt failed")

		if attempt <= retries {
			time.Sleep(delay * time.Duration(attempt))
		}
	}

	return result
}

func (m *Manager) send(ctx context.Context, cfg OutboundConfig, body []byte) error {
	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}

// evalCondition lazily compiles and runs the destination's expr condition
// against the delivery payload.
func (d *destination) evalCondition(payload BatchPayload) (bool, error) {
	d.once.Do(func() {
		d.prog, d.err = expr.Compile(d.cfg.Condition, expr.AsBool())
	})
	if d.err != nil {
		return false, fmt.Errorf("compile condition: %w", d.err)
	}

	env := map[string]interface{}{
		"event":        payload.Event,
		"source":       payload.Source,
		"webhookCount": payload.Summary.WebhookCount,
		"plugins":      payload.Summary.Plugins,
	}
	out, err := expr.Run(d.prog, env)
	if err != nil {
		return false, fmt.Errorf("evaluate condition: %w", err)
	}
	fire, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition did not return bool")
	}
	return fire, nil
}

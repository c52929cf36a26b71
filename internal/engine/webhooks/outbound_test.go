package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func intPtr(n int) *int { return &n }

func fastConfig(url string, retries int) OutboundConfig {
	return OutboundConfig{URL: url, Retries: intPtr(retries), RetryDelay: time.Millisecond}
}

func testBatch(pluginNames ...string) Batch {
	webhooks := make([]QueuedWebhook, 0, len(pluginNames))
	for i, name := range pluginNames {
		webhooks = append(webhooks, QueuedWebhook{
			PluginName: name,
			Body:       map[string]interface{}{"seq": i},
			Timestamp:  int64(i + 1),
		})
	}
	return Batch{Webhooks: webhooks, StartedAt: 1, CompletedAt: 100}
}

func TestManager_DefaultPayload(t *testing.T) {
	var captured BatchPayload
	var userAgent, contentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
	}))
	defer srv.Close()

	manager := NewManager("test-instance", []OutboundConfig{fastConfig(srv.URL, 0)})
	results := manager.TriggerAll(context.Background(), testBatch("a", "b", "a"))

	if len(results) != 1 || !results[0].Success || results[0].Attempts != 1 {
		t.Fatalf("Unexpected results: %+v", results)
	}

	if captured.Event != EventBatchComplete {
		t.Errorf("Expected event %q, got %q", EventBatchComplete, captured.Event)
	}
	if captured.Source != "test-instance" {
		t.Errorf("Expected source test-instance, got %q", captured.Source)
	}
	if captured.Summary.WebhookCount != 3 {
		t.Errorf("Expected webhookCount 3, got %d", captured.Summary.WebhookCount)
	}
	if !reflect.DeepEqual(captured.Summary.Plugins, []string{"a", "b"}) {
		t.Errorf("Expected plugins [a b] deduplicated in first-seen order, got %v", captured.Summary.Plugins)
	}
	if len(captured.Items) != 3 || captured.Items[2].PluginName != "a" {
		t.Errorf("Items not in arrival order: %+v", captured.Items)
	}
	if userAgent != "UDL-Webhook/1.0" {
		t.Errorf("Expected default User-Agent, got %q", userAgent)
	}
	if contentType != "application/json" {
		t.Errorf("Expected JSON content type, got %q", contentType)
	}
}

func TestManager_RetrySucceedsOnThirdAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	manager := NewManager("", []OutboundConfig{fastConfig(srv.URL, 3)})
	results := manager.TriggerAll(context.Background(), testBatch("a"))

	if !results[0].Success {
		t.Fatalf("Expected success, got %+v", results[0])
	}
	if results[0].Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", results[0].Attempts)
	}
	if results[0].Error != "" {
		t.Errorf("Expected error cleared on success, got %q", results[0].Error)
	}
}

func TestManager_ZeroRetriesSingleAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	manager := NewManager("", []OutboundConfig{fastConfig(srv.URL, 0)})
	results := manager.TriggerAll(context.Background(), testBatch("a"))

	if results[0].Success {
		t.Fatal("Expected failure")
	}
	if results[0].Attempts != 1 || atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected exactly one attempt, got attempts=%d calls=%d", results[0].Attempts, calls)
	}
	if results[0].Error != "HTTP 500: Internal Server Error" {
		t.Errorf("Unexpected error message: %q", results[0].Error)
	}
}

func TestManager_ExhaustedRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	manager := NewManager("", []OutboundConfig{fastConfig(srv.URL, 2)})
	results := manager.TriggerAll(context.Background(), testBatch("a"))

	if results[0].Success || results[0].Attempts != 3 {
		t.Errorf("Expected 3 failed attempts, got %+v", results[0])
	}
	if results[0].Error != "HTTP 503: Service Unavailable" {
		t.Errorf("Unexpected error message: %q", results[0].Error)
	}
}

func TestManager_DestinationIsolation(t *testing.T) {
	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer okSrv.Close()
	badSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer badSrv.Close()

	manager := NewManager("", []OutboundConfig{
		fastConfig(badSrv.URL, 0),
		fastConfig(okSrv.URL, 0),
	})
	results := manager.TriggerAll(context.Background(), testBatch("a"))

	if len(results) != 2 {
		t.Fatalf("Expected a result per destination, got %d", len(results))
	}
	if results[0].Success {
		t.Error("Expected first destination to fail")
	}
	if !results[1].Success {
		t.Error("First destination's failure leaked into the second")
	}
}

func TestManager_TransformPayloadVerbatim(t *testing.T) {
	var rawBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	cfg := fastConfig(srv.URL, 0)
	cfg.TransformPayload = func(tc *TransformContext) interface{} {
		if tc.Payload.Summary.WebhookCount != 1 {
			t.Errorf("Transform context missing payload, got %+v", tc.Payload)
		}
		// Ping-style destinations only care about being poked.
		return map[string]interface{}{}
	}

	manager := NewManager("", []OutboundConfig{cfg})
	results := manager.TriggerAll(context.Background(), testBatch("a"))
	if !results[0].Success {
		t.Fatalf("Unexpected failure: %+v", results[0])
	}
	if string(rawBody) != "{}" {
		t.Errorf("Expected verbatim empty object payload, got %q", rawBody)
	}
}

func TestManager_GETCarriesBody(t *testing.T) {
	var method string
	var bodyLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		body, _ := io.ReadAll(r.Body)
		bodyLen = len(body)
	}))
	defer srv.Close()

	cfg := fastConfig(srv.URL, 0)
	cfg.Method = http.MethodGet

	manager := NewManager("", []OutboundConfig{cfg})
	results := manager.TriggerAll(context.Background(), testBatch("a"))
	if !results[0].Success {
		t.Fatalf("Unexpected failure: %+v", results[0])
	}
	if method != http.MethodGet || bodyLen == 0 {
		t.Errorf("Expected GET with JSON body, got method=%s bodyLen=%d", method, bodyLen)
	}
}

func TestManager_ConditionFiltersDestination(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	skipping := fastConfig(srv.URL, 0)
	skipping.Condition = "webhookCount > 5"
	firing := fastConfig(srv.URL, 0)
	firing.Condition = `"a" in plugins`

	manager := NewManager("", []OutboundConfig{skipping, firing})
	results := manager.TriggerAll(context.Background(), testBatch("a", "b"))

	if !results[0].Skipped || !results[0].Success || results[0].Attempts != 0 {
		t.Errorf("Expected first destination skipped, got %+v", results[0])
	}
	if results[1].Skipped || !results[1].Success {
		t.Errorf("Expected second destination delivered, got %+v", results[1])
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected exactly one HTTP call, got %d", calls)
	}
}

func TestManager_BadConditionReportsFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	cfg := fastConfig(srv.URL, 0)
	cfg.Condition = "webhookCount +" // does not compile

	manager := NewManager("", []OutboundConfig{cfg})
	results := manager.TriggerAll(context.Background(), testBatch("a"))

	if results[0].Success || results[0].Error == "" || results[0].Attempts != 0 {
		t.Errorf("Expected condition failure without delivery, got %+v", results[0])
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("Broken condition must not trigger delivery")
	}
}

func TestManager_UnreachableDestination(t *testing.T) {
	manager := NewManager("", []OutboundConfig{fastConfig("http://127.0.0.1:1/none", 1)})
	results := manager.TriggerAll(context.Background(), testBatch("a"))

	if results[0].Success || results[0].Attempts != 2 || results[0].Error == "" {
		t.Errorf("Expected 2 failed attempts with transport error, got %+v", results[0])
	}
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebhookNotifierPayload(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL)
	err := notifier.NotifyBulkRun(context.Background(), BulkRunMessage{
		RunID:        "run-1",
		SchoolYearID: "sy-2026",
		Total:        3,
		Succeeded:    2,
		Failed:       1,
		Completed:    true,
		Failures:     []FailedEnrollment{{EnrollmentID: "enr-2", Student: "Dela Cruz, Juan", Message: "render failed"}},
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	payload := <-payloadCh
	if payload.MsgType != "text" {
		t.Fatalf("expected msgtype text, got %s", payload.MsgType)
	}
	checks := []string{
		"School Year: sy-2026",
		"Generated: 2/3",
		"Failed: 1",
		"- Dela Cruz, Juan: render failed",
	}
	for _, check := range checks {
		if !strings.Contains(payload.Text.Content, check) {
			t.Fatalf("expected content to contain %q, got %q", check, payload.Text.Content)
		}
	}
	if strings.Contains(payload.Text.Content, "interrupted") {
		t.Fatalf("completed run reported as interrupted")
	}
}

func TestWebhookNotifierNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewWebhookNotifier(server.URL).NotifyBulkRun(context.Background(), BulkRunMessage{})
	if err == nil {
		t.Fatalf("expected error on 502")
	}
}

func TestFormatBulkRunMessageTruncatesFailures(t *testing.T) {
	msg := BulkRunMessage{Total: 15, Failed: 15}
	for i := 0; i < 15; i++ {
		msg.Failures = append(msg.Failures, FailedEnrollment{Student: fmt.Sprintf("student-%d", i), Message: "boom"})
	}
	content := formatBulkRunMessage(msg)
	if !strings.Contains(content, "... and 5 more") {
		t.Fatalf("expected truncation line, got %q", content)
	}
	if strings.Contains(content, "student-10") {
		t.Fatalf("expected failures past the limit to be omitted")
	}
	if !strings.Contains(content, "Status: interrupted") {
		t.Fatalf("expected interrupted status")
	}
}

func TestFormatBulkRunMessageCountsCappedFailures(t *testing.T) {
	msg := BulkRunMessage{Total: 120, Succeeded: 20, Failed: 100, Completed: true}
	for i := 0; i < 50; i++ {
		msg.Failures = append(msg.Failures, FailedEnrollment{Student: fmt.Sprintf("student-%d", i), Message: "boom"})
	}
	content := formatBulkRunMessage(msg)
	if !strings.Contains(content, "... and 90 more") {
		t.Fatalf("expected hidden count from Failed, got %q", content)
	}
	if strings.Contains(content, "Status: interrupted") {
		t.Fatalf("completed run reported as interrupted")
	}
}

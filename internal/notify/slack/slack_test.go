package slack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/medtriage/internal/features"
	"github.com/linnemanlabs/medtriage/internal/triage"
	"github.com/linnemanlabs/medtriage/internal/urgency"
)

func emergencyRecord() *triage.Record {
	return &triage.Record{
		ID:           "01JN123",
		CreatedAt:    time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC),
		Source:       triage.SourceModel,
		Vitals:       features.Vitals{Age: 45, PainLevel: 9, HeartRate: 135, SystolicBP: 120, RespiratoryRate: 16, Temperature: 37},
		SymptomsText: "severe chest pain, patient name John",
		Symptoms:     []string{"chest_pain", "difficulty_breathing"},
		Urgency:      urgency.Emergency,
		Confidence:   0.9,
		TriageScore:  10,
		Reasoning:    "Emergency \u2014 immediate intervention required. Factors: chest pain detected.",
		TrainingID:   "01JBZ5T3K3X4GQ9W0M8N6V2C7R",
	}
}

func TestSend_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var (
		got map[string]any
		raw string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		raw = string(body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	if err := n.Send(context.Background(), emergencyRecord()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, reasoning, divider, context = 7 blocks
	if len(blocks) != 7 {
		t.Errorf("blocks count = %d, want 7", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "EMERGENCY") {
		t.Errorf("header text = %q, want to contain EMERGENCY", headerText)
	}
	if !strings.Contains(headerText, "\U0001f534") {
		t.Errorf("header should contain red circle for emergency")
	}

	if strings.Contains(raw, "John") {
		t.Error("payload leaked free-text symptoms")
	}
	if !strings.Contains(raw, "chest_pain") {
		t.Error("payload missing matched symptom categories")
	}
}

func TestSend_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("", log.Nop())
	if err := n.Send(context.Background(), &triage.Record{}); err != nil {
		t.Fatalf("Send with empty URL should be no-op, got: %v", err)
	}
}

func TestSend_TruncatesLongReasoning(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := emergencyRecord()
	rec.Reasoning = strings.Repeat("x", 4000)

	n := New(srv.URL, nil)
	if err := n.Send(context.Background(), rec); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks := got["blocks"].([]any)
	section := blocks[4].(map[string]any)
	text := section["text"].(map[string]any)["text"].(string)

	prefix := "*Reasoning*\n\n"
	if len(text) > maxReasoningLen+len(prefix) {
		t.Errorf("reasoning text length = %d, expected <= %d", len(text), maxReasoningLen+len(prefix))
	}
	if !strings.HasSuffix(text, "...") {
		t.Error("expected truncated reasoning to end with ...")
	}
}

func TestSend_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	err := n.Send(context.Background(), emergencyRecord())
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}

func TestFieldsBlock_RulesHaveNoConfidence(t *testing.T) {
	t.Parallel()

	rec := emergencyRecord()
	rec.Source = triage.SourceRules
	rec.Symptoms = nil

	fields := fieldsBlock(rec)["fields"].([]map[string]any)
	if got := fields[0]["text"]; got != "*Confidence:* n/a" {
		t.Errorf("confidence field = %q", got)
	}
	if got := fields[5]["text"]; got != "*Symptoms:* none matched" {
		t.Errorf("symptoms field = %q", got)
	}
}

func TestUrgencyEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		u    urgency.Level
		want string
	}{
		{urgency.Emergency, "\U0001f534"},
		{urgency.High, "\U0001f7e0"},
		{urgency.Medium, "\U0001f7e1"},
		{urgency.Low, "\U0001f7e2"},
		{"", "\U0001f7e2"},
	}

	for _, tt := range tests {
		t.Run(string(tt.u), func(t *testing.T) {
			t.Parallel()
			if got := urgencyEmoji(tt.u); got != tt.want {
				t.Errorf("urgencyEmoji(%q) = %q, want %q", tt.u, got, tt.want)
			}
		})
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("emergency", "Emergency \u2014 immediate intervention required.", "chest_pain", 45.0)
	f.Add("", "", "", 0.0)
	f.Add("low", "*bold* _italic_ ~strike~ <@U123>", "routine", -1.0)
	f.Add("high\x00", "reason\nline\ttab", "a\x00b", 1e300)
	f.Add("medium", strings.Repeat("x", 10000), strings.Repeat("s", 500), 30.0)

	f.Fuzz(func(t *testing.T, level, reasoning, symptom string, age float64) {
		rec := &triage.Record{
			ID:          "fuzz-id",
			CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Source:      triage.SourceModel,
			Vitals:      features.Vitals{Age: age},
			Symptoms:    []string{symptom},
			Urgency:     urgency.Level(level),
			Confidence:  0.5,
			TriageScore: urgency.Score(urgency.Level(level)),
			Reasoning:   reasoning,
		}

		// Must not panic
		msg := buildMessage(rec)

		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}

		blocks, ok := decoded["blocks"].([]any)
		if !ok {
			t.Fatal("expected blocks array")
		}
		if len(blocks) != 7 {
			t.Fatalf("blocks count = %d, want 7", len(blocks))
		}
	})
}

package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/complyport/realtime-service/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// failTransport fails the test if any request is attempted.
type failTransport struct {
	t *testing.T
}

func (ft *failTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ft.t.Errorf("unexpected network call to %s", r.URL)
	return nil, errors.New("unexpected network call")
}

func allKindsEvents() []domain.Event {
	progress := 55
	return []domain.Event{
		domain.ComplianceCheckUpdate{WorkspaceID: "w1", CheckID: "chk-1", Status: domain.CheckRunning, Progress: &progress},
		domain.DashboardUpdate{WorkspaceID: "w1", OverallScore: 70, TotalIssues: 9, OpenIssues: 2},
		domain.IssueUpdate{WorkspaceID: "w1", IssueID: "iss-1", Status: domain.IssueOpen},
		domain.DocumentProcessingUpdate{WorkspaceID: "w1", DocumentID: "doc-1", Status: domain.DocumentPending},
	}
}

func TestBroadcast_DegradedWithoutDeliveryService(t *testing.T) {
	d := NewDispatcher("", nil, testLogger())
	d.httpClient.Transport = &failTransport{t: t}

	for _, ev := range allKindsEvents() {
		if sent := d.Dispatch(context.Background(), ev); sent != 0 {
			t.Errorf("kind %s: expected 0 in degraded mode, got %d", ev.EventKind(), sent)
		}
	}
}

func TestBroadcast_ReturnsSentCount(t *testing.T) {
	var gotPath string
	var gotBody broadcastRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		var raw struct {
			Channel domain.Channel  `json:"channel"`
			Message json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			t.Errorf("invalid broadcast body: %v", err)
		}
		gotBody.Channel = raw.Channel

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"sent": 7})
	}))
	defer server.Close()

	d := NewDispatcher(server.URL, nil, testLogger())

	event := domain.DashboardUpdate{WorkspaceID: "w1", OverallScore: 88, TotalIssues: 4, OpenIssues: 1}
	sent := d.Broadcast(context.Background(), "w1", domain.ChannelDashboard, event)

	if sent != 7 {
		t.Errorf("expected 7 recipients, got %d", sent)
	}
	if gotPath != "/ws/w1/broadcast" {
		t.Errorf("expected path /ws/w1/broadcast, got %s", gotPath)
	}
	if gotBody.Channel != domain.ChannelDashboard {
		t.Errorf("expected channel dashboard, got %s", gotBody.Channel)
	}
}

func TestBroadcast_EnvelopeCarriesTypeAndWorkspace(t *testing.T) {
	var gotMessage map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw struct {
			Message map[string]any `json:"message"`
		}
		json.NewDecoder(r.Body).Decode(&raw)
		gotMessage = raw.Message
		json.NewEncoder(w).Encode(map[string]int{"sent": 1})
	}))
	defer server.Close()

	d := NewDispatcher(server.URL, nil, testLogger())
	d.BroadcastIssue(context.Background(), domain.IssueUpdate{
		WorkspaceID: "w9",
		IssueID:     "iss-3",
		Status:      domain.IssueDismissed,
	})

	if gotMessage["type"] != string(domain.KindIssueUpdate) {
		t.Errorf("message type: got %v, want %s", gotMessage["type"], domain.KindIssueUpdate)
	}
	if gotMessage["workspaceId"] != "w9" {
		t.Errorf("message workspaceId: got %v, want w9", gotMessage["workspaceId"])
	}
}

func TestTypedHelpers_TargetFixedChannels(t *testing.T) {
	var gotChannel domain.Channel

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw struct {
			Channel domain.Channel `json:"channel"`
		}
		json.NewDecoder(r.Body).Decode(&raw)
		gotChannel = raw.Channel
		json.NewEncoder(w).Encode(map[string]int{"sent": 1})
	}))
	defer server.Close()

	d := NewDispatcher(server.URL, nil, testLogger())
	ctx := context.Background()

	tests := []struct {
		name    string
		send    func()
		channel domain.Channel
	}{
		{
			name: "compliance check",
			send: func() {
				d.BroadcastComplianceCheck(ctx, domain.ComplianceCheckUpdate{WorkspaceID: "w1", CheckID: "c", Status: domain.CheckPending})
			},
			channel: domain.ChannelComplianceChecks,
		},
		{
			name: "dashboard",
			send: func() {
				d.BroadcastDashboard(ctx, domain.DashboardUpdate{WorkspaceID: "w1", OverallScore: 1, TotalIssues: 0, OpenIssues: 0})
			},
			channel: domain.ChannelDashboard,
		},
		{
			name: "issue",
			send: func() {
				d.BroadcastIssue(ctx, domain.IssueUpdate{WorkspaceID: "w1", IssueID: "i", Status: domain.IssueOpen})
			},
			channel: domain.ChannelIssues,
		},
		{
			name: "document",
			send: func() {
				d.BroadcastDocumentProcessing(ctx, domain.DocumentProcessingUpdate{WorkspaceID: "w1", DocumentID: "d", Status: domain.DocumentFailed})
			},
			channel: domain.ChannelDocuments,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.send()
			if gotChannel != tt.channel {
				t.Errorf("got channel %q, want %q", gotChannel, tt.channel)
			}
		})
	}
}

func TestBroadcast_NonSuccessResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workspace not found", http.StatusNotFound)
	}))
	defer server.Close()

	d := NewDispatcher(server.URL, nil, testLogger())
	sent := d.BroadcastDashboard(context.Background(), domain.DashboardUpdate{WorkspaceID: "w1"})

	if sent != 0 {
		t.Errorf("expected 0 on non-2xx response, got %d", sent)
	}
}

func TestBroadcast_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	d := NewDispatcher(server.URL, nil, testLogger())
	sent := d.BroadcastDocumentProcessing(context.Background(), domain.DocumentProcessingUpdate{
		WorkspaceID: "w1", DocumentID: "d1", Status: domain.DocumentFailed,
	})

	if sent != 0 {
		t.Errorf("expected 0 on transport failure, got %d", sent)
	}
}

type memRecorder struct {
	records []Record
	err     error
}

func (m *memRecorder) RecordBroadcast(ctx context.Context, rec Record) error {
	m.records = append(m.records, rec)
	return m.err
}

func TestBroadcast_RecordsAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int{"sent": 3})
	}))
	defer server.Close()

	rec := &memRecorder{}
	d := NewDispatcher(server.URL, rec, testLogger())

	d.BroadcastDashboard(context.Background(), domain.DashboardUpdate{WorkspaceID: "w1", OverallScore: 50})

	if len(rec.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(rec.records))
	}
	r := rec.records[0]
	if r.Status != StatusSent || r.Sent != 3 {
		t.Errorf("unexpected record %+v", r)
	}
	if r.Channel != domain.ChannelDashboard || r.EventKind != domain.KindDashboardUpdate {
		t.Errorf("record routing fields wrong: %+v", r)
	}
}

func TestBroadcast_RecorderFailureDoesNotAffectResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int{"sent": 2})
	}))
	defer server.Close()

	rec := &memRecorder{err: fmt.Errorf("audit store down")}
	d := NewDispatcher(server.URL, rec, testLogger())

	sent := d.BroadcastIssue(context.Background(), domain.IssueUpdate{
		WorkspaceID: "w1", IssueID: "i1", Status: domain.IssueResolved,
	})
	if sent != 2 {
		t.Errorf("recorder failure must not change the delivered count, got %d", sent)
	}
}

func TestBroadcast_DegradedAttemptsAreRecorded(t *testing.T) {
	rec := &memRecorder{}
	d := NewDispatcher("", rec, testLogger())

	d.BroadcastComplianceCheck(context.Background(), domain.ComplianceCheckUpdate{
		WorkspaceID: "w1", CheckID: "c1", Status: domain.CheckCompleted,
	})

	if len(rec.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(rec.records))
	}
	if rec.records[0].Status != StatusDegraded {
		t.Errorf("expected degraded status, got %q", rec.records[0].Status)
	}
}

package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/complyport/realtime-service/internal/domain"
)

// Broadcast outcome recorded in the audit log.
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDegraded = "degraded"
)

// Record is one audited broadcast attempt.
type Record struct {
	WorkspaceID string
	Channel     domain.Channel
	EventKind   domain.Kind
	Status      string
	Sent        int
	Error       string
	DurationMs  int
}

// Recorder persists broadcast attempts. Recording is best-effort; a
// recorder failure never affects the broadcast result.
type Recorder interface {
	RecordBroadcast(ctx context.Context, rec Record) error
}

// Dispatcher delivers typed events to the workspace-scoped channels of the
// external delivery service. It owns no state; every call is a single
// request-scoped attempt with no retries.
//
// A broadcast can never fail its caller: the triggering state change has
// already happened, so every failure mode degrades to a delivered count
// of zero.
type Dispatcher struct {
	httpClient *http.Client
	baseURL    string
	recorder   Recorder
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher targeting the delivery service at
// baseURL. An empty baseURL puts the dispatcher in degraded mode: every
// broadcast is skipped and returns 0. recorder may be nil to disable the
// audit log.
func NewDispatcher(baseURL string, recorder Recorder, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:  baseURL,
		recorder: recorder,
		logger:   logger,
	}
}

type broadcastRequest struct {
	Channel domain.Channel `json:"channel"`
	Message domain.Event   `json:"message"`
}

type broadcastResponse struct {
	Sent int `json:"sent"`
}

// Broadcast delivers event to every client subscribed to the workspace
// channel and returns the number of recipients reached. Callers must
// construct envelopes so that event.Workspace() == workspaceID; the typed
// helpers guarantee this.
func (d *Dispatcher) Broadcast(ctx context.Context, workspaceID string, channel domain.Channel, event domain.Event) int {
	start := time.Now()

	if d.baseURL == "" {
		// Not an error: the delivery service is an optional collaborator.
		d.logger.Info("broadcast skipped, delivery service not configured",
			"workspace_id", workspaceID,
			"channel", channel,
			"event_kind", event.EventKind(),
		)
		d.record(ctx, workspaceID, channel, event, StatusDegraded, 0, "", start)
		return 0
	}

	body, err := json.Marshal(broadcastRequest{Channel: channel, Message: event})
	if err != nil {
		d.fail(ctx, workspaceID, channel, event, "failed to marshal broadcast request: "+err.Error(), start)
		return 0
	}

	endpoint := d.baseURL + "/ws/" + url.PathEscape(workspaceID) + "/broadcast"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		d.fail(ctx, workspaceID, channel, event, "failed to create request: "+err.Error(), start)
		return 0
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.fail(ctx, workspaceID, channel, event, "request failed: "+err.Error(), start)
		return 0
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Limit the body we keep for logging
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		d.fail(ctx, workspaceID, channel, event,
			"delivery service returned "+resp.Status+": "+string(respBody), start)
		return 0
	}

	var result broadcastResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		d.fail(ctx, workspaceID, channel, event, "failed to decode delivery response: "+err.Error(), start)
		return 0
	}

	d.logger.Info("broadcast delivered",
		"workspace_id", workspaceID,
		"channel", channel,
		"event_kind", event.EventKind(),
		"sent", result.Sent,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	d.record(ctx, workspaceID, channel, event, StatusSent, result.Sent, "", start)

	return result.Sent
}

// Dispatch routes an event to the fixed channel for its kind. This is the
// single place where the kind-to-channel mapping is enforced for untyped
// callers such as the event ingest endpoint.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.Event) int {
	channel, ok := domain.ChannelFor(event.EventKind())
	if !ok {
		d.logger.Error("no channel for event kind",
			"workspace_id", event.Workspace(),
			"event_kind", event.EventKind(),
		)
		return 0
	}
	return d.Broadcast(ctx, event.Workspace(), channel, event)
}

// BroadcastComplianceCheck pushes a compliance check progress update to
// the compliance-checks channel of its workspace.
func (d *Dispatcher) BroadcastComplianceCheck(ctx context.Context, event domain.ComplianceCheckUpdate) int {
	return d.Broadcast(ctx, event.WorkspaceID, domain.ChannelComplianceChecks, event)
}

// BroadcastDashboard pushes a refreshed score summary to the dashboard
// channel of its workspace.
func (d *Dispatcher) BroadcastDashboard(ctx context.Context, event domain.DashboardUpdate) int {
	return d.Broadcast(ctx, event.WorkspaceID, domain.ChannelDashboard, event)
}

// BroadcastIssue pushes an issue status change to the issues channel of
// its workspace.
func (d *Dispatcher) BroadcastIssue(ctx context.Context, event domain.IssueUpdate) int {
	return d.Broadcast(ctx, event.WorkspaceID, domain.ChannelIssues, event)
}

// BroadcastDocumentProcessing pushes a document processing update to the
// documents channel of its workspace.
func (d *Dispatcher) BroadcastDocumentProcessing(ctx context.Context, event domain.DocumentProcessingUpdate) int {
	return d.Broadcast(ctx, event.WorkspaceID, domain.ChannelDocuments, event)
}

func (d *Dispatcher) fail(ctx context.Context, workspaceID string, channel domain.Channel, event domain.Event, errMsg string, start time.Time) {
	d.logger.Error("broadcast failed",
		"workspace_id", workspaceID,
		"channel", channel,
		"event_kind", event.EventKind(),
		"error", errMsg,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	d.record(ctx, workspaceID, channel, event, StatusFailed, 0, errMsg, start)
}

func (d *Dispatcher) record(ctx context.Context, workspaceID string, channel domain.Channel, event domain.Event, status string, sent int, errMsg string, start time.Time) {
	if d.recorder == nil {
		return
	}

	err := d.recorder.RecordBroadcast(ctx, Record{
		WorkspaceID: workspaceID,
		Channel:     channel,
		EventKind:   event.EventKind(),
		Status:      status,
		Sent:        sent,
		Error:       errMsg,
		DurationMs:  int(time.Since(start).Milliseconds()),
	})
	if err != nil {
		d.logger.Error("failed to record broadcast",
			"error", err,
			"workspace_id", workspaceID,
			"channel", channel,
		)
	}
}

package domain

import (
	"encoding/json"
	"fmt"
)

// Kind identifies one of the closed set of state-change events the
// backend can push to connected clients.
type Kind string

const (
	KindComplianceCheckUpdate    Kind = "compliance_check_update"
	KindDashboardUpdate          Kind = "dashboard_update"
	KindIssueUpdate              Kind = "issue_update"
	KindDocumentProcessingUpdate Kind = "document_processing_update"
)

// Channel is a workspace-scoped routing key for fan-out. Channels have no
// persistent identity; they exist only at broadcast time.
type Channel string

const (
	ChannelComplianceChecks Channel = "compliance-checks"
	ChannelDashboard        Channel = "dashboard"
	ChannelIssues           Channel = "issues"
	ChannelDocuments        Channel = "documents"
)

// ChannelFor maps an event kind to its fixed channel. Every kind has
// exactly one channel; an unknown kind has none.
func ChannelFor(k Kind) (Channel, bool) {
	switch k {
	case KindComplianceCheckUpdate:
		return ChannelComplianceChecks, true
	case KindDashboardUpdate:
		return ChannelDashboard, true
	case KindIssueUpdate:
		return ChannelIssues, true
	case KindDocumentProcessingUpdate:
		return ChannelDocuments, true
	default:
		return "", false
	}
}

// Event is one typed state-change envelope. The workspace ID is the
// fan-out key; no event crosses workspace boundaries.
type Event interface {
	EventKind() Kind
	Workspace() string
	Validate() error
}

type CheckStatus string

const (
	CheckPending   CheckStatus = "pending"
	CheckRunning   CheckStatus = "running"
	CheckCompleted CheckStatus = "completed"
	CheckFailed    CheckStatus = "failed"
)

func (s CheckStatus) valid() bool {
	switch s {
	case CheckPending, CheckRunning, CheckCompleted, CheckFailed:
		return true
	}
	return false
}

type IssueStatus string

const (
	IssueOpen       IssueStatus = "open"
	IssueInProgress IssueStatus = "in_progress"
	IssueResolved   IssueStatus = "resolved"
	IssueDismissed  IssueStatus = "dismissed"
)

func (s IssueStatus) valid() bool {
	switch s {
	case IssueOpen, IssueInProgress, IssueResolved, IssueDismissed:
		return true
	}
	return false
}

type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentCompleted  DocumentStatus = "completed"
	DocumentFailed     DocumentStatus = "failed"
)

func (s DocumentStatus) valid() bool {
	switch s {
	case DocumentPending, DocumentProcessing, DocumentCompleted, DocumentFailed:
		return true
	}
	return false
}

// ComplianceCheckUpdate reports progress of a running compliance check.
type ComplianceCheckUpdate struct {
	WorkspaceID  string      `json:"workspaceId"`
	CheckID      string      `json:"checkId"`
	Status       CheckStatus `json:"status"`
	Progress     *int        `json:"progress,omitempty"`
	IssuesFound  *int        `json:"issuesFound,omitempty"`
	OverallScore *int        `json:"overallScore,omitempty"`
}

func (e ComplianceCheckUpdate) EventKind() Kind   { return KindComplianceCheckUpdate }
func (e ComplianceCheckUpdate) Workspace() string { return e.WorkspaceID }

func (e ComplianceCheckUpdate) Validate() error {
	if e.WorkspaceID == "" {
		return fmt.Errorf("workspaceId is required")
	}
	if e.CheckID == "" {
		return fmt.Errorf("checkId is required")
	}
	if !e.Status.valid() {
		return fmt.Errorf("invalid check status %q", e.Status)
	}
	if err := checkPercent("progress", e.Progress); err != nil {
		return err
	}
	if err := checkPercent("overallScore", e.OverallScore); err != nil {
		return err
	}
	if e.IssuesFound != nil && *e.IssuesFound < 0 {
		return fmt.Errorf("issuesFound must be >= 0")
	}
	return nil
}

func (e ComplianceCheckUpdate) MarshalJSON() ([]byte, error) {
	type alias ComplianceCheckUpdate
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{Type: e.EventKind(), alias: alias(e)})
}

// DashboardUpdate carries the refreshed workspace-level score summary.
type DashboardUpdate struct {
	WorkspaceID  string `json:"workspaceId"`
	OverallScore int    `json:"overallScore"`
	TotalIssues  int    `json:"totalIssues"`
	OpenIssues   int    `json:"openIssues"`
}

func (e DashboardUpdate) EventKind() Kind   { return KindDashboardUpdate }
func (e DashboardUpdate) Workspace() string { return e.WorkspaceID }

func (e DashboardUpdate) Validate() error {
	if e.WorkspaceID == "" {
		return fmt.Errorf("workspaceId is required")
	}
	if e.OverallScore < 0 || e.OverallScore > 100 {
		return fmt.Errorf("overallScore must be between 0 and 100")
	}
	if e.TotalIssues < 0 {
		return fmt.Errorf("totalIssues must be >= 0")
	}
	if e.OpenIssues < 0 {
		return fmt.Errorf("openIssues must be >= 0")
	}
	return nil
}

func (e DashboardUpdate) MarshalJSON() ([]byte, error) {
	type alias DashboardUpdate
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{Type: e.EventKind(), alias: alias(e)})
}

// IssueUpdate reports a status or assignment change of a single issue.
// AssignedTo is nil when the issue is unassigned.
type IssueUpdate struct {
	WorkspaceID string      `json:"workspaceId"`
	IssueID     string      `json:"issueId"`
	Status      IssueStatus `json:"status"`
	AssignedTo  *string     `json:"assignedTo,omitempty"`
}

func (e IssueUpdate) EventKind() Kind   { return KindIssueUpdate }
func (e IssueUpdate) Workspace() string { return e.WorkspaceID }

func (e IssueUpdate) Validate() error {
	if e.WorkspaceID == "" {
		return fmt.Errorf("workspaceId is required")
	}
	if e.IssueID == "" {
		return fmt.Errorf("issueId is required")
	}
	if !e.Status.valid() {
		return fmt.Errorf("invalid issue status %q", e.Status)
	}
	return nil
}

func (e IssueUpdate) MarshalJSON() ([]byte, error) {
	type alias IssueUpdate
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{Type: e.EventKind(), alias: alias(e)})
}

// DocumentProcessingUpdate reports progress of document ingestion.
type DocumentProcessingUpdate struct {
	WorkspaceID string         `json:"workspaceId"`
	DocumentID  string         `json:"documentId"`
	Status      DocumentStatus `json:"status"`
	Progress    *int           `json:"progress,omitempty"`
}

func (e DocumentProcessingUpdate) EventKind() Kind   { return KindDocumentProcessingUpdate }
func (e DocumentProcessingUpdate) Workspace() string { return e.WorkspaceID }

func (e DocumentProcessingUpdate) Validate() error {
	if e.WorkspaceID == "" {
		return fmt.Errorf("workspaceId is required")
	}
	if e.DocumentID == "" {
		return fmt.Errorf("documentId is required")
	}
	if !e.Status.valid() {
		return fmt.Errorf("invalid document status %q", e.Status)
	}
	return checkPercent("progress", e.Progress)
}

func (e DocumentProcessingUpdate) MarshalJSON() ([]byte, error) {
	type alias DocumentProcessingUpdate
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{Type: e.EventKind(), alias: alias(e)})
}

// DecodeEvent parses a typed event envelope, using the "type" field as the
// discriminant, and validates the payload.
func DecodeEvent(data []byte) (Event, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parsing event envelope: %w", err)
	}

	var event Event
	switch head.Type {
	case KindComplianceCheckUpdate:
		var e ComplianceCheckUpdate
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", head.Type, err)
		}
		event = e
	case KindDashboardUpdate:
		var e DashboardUpdate
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", head.Type, err)
		}
		event = e
	case KindIssueUpdate:
		var e IssueUpdate
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", head.Type, err)
		}
		event = e
	case KindDocumentProcessingUpdate:
		var e DocumentProcessingUpdate
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", head.Type, err)
		}
		event = e
	default:
		return nil, fmt.Errorf("unknown event type %q", head.Type)
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

func checkPercent(field string, v *int) error {
	if v != nil && (*v < 0 || *v > 100) {
		return fmt.Errorf("%s must be between 0 and 100", field)
	}
	return nil
}

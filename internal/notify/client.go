// Package notify is a stateless façade over the external notification
// store, reached through the backend HTTP API. It never surfaces upstream
// failures as errors: notification data is auxiliary to every page that
// requests it, so reads degrade to zero-value shapes and mutations report
// plain success booleans.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/complyport/realtime-service/internal/domain"
)

// Client queries and mutates per-identity notifications. The identity is
// an opaque session token; this layer never inspects it, it only forwards
// it as a bearer credential. An empty identity means unauthenticated.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

type listRequest struct {
	UserID string                    `json:"userId"`
	Filter domain.NotificationFilter `json:"filter"`
}

// List returns the identity's notifications restricted by filter. Any
// upstream failure yields the empty list shape, never an error.
func (c *Client) List(ctx context.Context, identity string, filter domain.NotificationFilter) domain.NotificationList {
	if identity == "" || c.baseURL == "" {
		return domain.EmptyNotificationList()
	}

	body, err := json.Marshal(listRequest{UserID: identity, Filter: filter})
	if err != nil {
		c.logger.Error("failed to marshal notification query", "error", err)
		return domain.EmptyNotificationList()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/notifications", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to create notification request", "error", err)
		return domain.EmptyNotificationList()
	}
	c.authorize(req, identity)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("notification store unreachable", "error", err)
		return domain.EmptyNotificationList()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("notification list failed", "status", resp.Status)
		return domain.EmptyNotificationList()
	}

	var list domain.NotificationList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		c.logger.Error("failed to decode notification list", "error", err)
		return domain.EmptyNotificationList()
	}
	if list.Notifications == nil {
		list.Notifications = []domain.Notification{}
	}

	return list
}

// Count returns the badge-count aggregate for the identity. An
// unauthenticated caller gets the zero aggregate without a network call;
// badge counts must never block page render.
func (c *Client) Count(ctx context.Context, identity string) domain.CountAggregate {
	if identity == "" || c.baseURL == "" {
		return domain.ZeroCountAggregate()
	}

	endpoint := c.baseURL + "/api/notifications/count?userId=" + url.QueryEscape(identity)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Error("failed to create count request", "error", err)
		return domain.ZeroCountAggregate()
	}
	c.authorize(req, identity)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("notification store unreachable", "error", err)
		return domain.ZeroCountAggregate()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("notification count failed", "status", resp.Status)
		return domain.ZeroCountAggregate()
	}

	agg := domain.ZeroCountAggregate()
	if err := json.NewDecoder(resp.Body).Decode(&agg); err != nil {
		c.logger.Error("failed to decode notification count", "error", err)
		return domain.ZeroCountAggregate()
	}
	// The upstream may omit empty breakdowns; clients rely on every key.
	if agg.ByCategory == nil || agg.ByPriority == nil {
		zero := domain.ZeroCountAggregate()
		if agg.ByCategory == nil {
			agg.ByCategory = zero.ByCategory
		}
		if agg.ByPriority == nil {
			agg.ByPriority = zero.ByPriority
		}
	}

	return agg
}

// MarkRead marks one notification read. Marking an already-read
// notification is a no-op success upstream, so the call is idempotent.
func (c *Client) MarkRead(ctx context.Context, identity, notificationID string) bool {
	if identity == "" || c.baseURL == "" || notificationID == "" {
		return false
	}

	endpoint := c.baseURL + "/api/notifications/" + url.PathEscape(notificationID) + "/read"
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, nil)
	if err != nil {
		c.logger.Error("failed to create mark-read request", "error", err)
		return false
	}
	c.authorize(req, identity)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("notification store unreachable", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("mark-read failed", "status", resp.Status, "notification_id", notificationID)
		return false
	}
	return true
}

type markAllRequest struct {
	UserID   string          `json:"userId"`
	Category domain.Category `json:"category,omitempty"`
}

// MarkAllRead marks all of the identity's notifications read. A non-empty
// category restricts the mutation to that category; an empty category
// passes no filter and the store marks everything.
func (c *Client) MarkAllRead(ctx context.Context, identity string, category domain.Category) bool {
	if identity == "" || c.baseURL == "" {
		return false
	}

	body, err := json.Marshal(markAllRequest{UserID: identity, Category: category})
	if err != nil {
		c.logger.Error("failed to marshal mark-all request", "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/notifications/read-all", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to create mark-all request", "error", err)
		return false
	}
	c.authorize(req, identity)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("notification store unreachable", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("mark-all-read failed", "status", resp.Status)
		return false
	}
	return true
}

func (c *Client) authorize(req *http.Request, identity string) {
	req.Header.Set("Authorization", "Bearer "+identity)
}

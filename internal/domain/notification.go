package domain

import "time"

type Category string

const (
	CategoryAI        Category = "ai"
	CategoryWorkspace Category = "workspace"
	CategorySystem    Category = "system"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Notification is a persisted per-user record owned by the external
// notification store. After creation only the read flag ever changes.
type Notification struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Category    Category  `json:"category"`
	Priority    Priority  `json:"priority"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
	WorkspaceID string    `json:"workspaceId,omitempty"`
}

// NotificationFilter restricts a list query. The zero value means no filter.
type NotificationFilter struct {
	Category Category `json:"category,omitempty"`
	Priority Priority `json:"priority,omitempty"`
}

// NotificationList is the result shape of a list query. Its zero value via
// EmptyNotificationList is the degraded result returned on any upstream
// failure, so the UI always has something to render.
type NotificationList struct {
	Notifications []Notification `json:"notifications"`
	Total         int            `json:"total"`
	UnreadCount   int            `json:"unreadCount"`
	HasMore       bool           `json:"hasMore"`
}

func EmptyNotificationList() NotificationList {
	return NotificationList{Notifications: []Notification{}}
}

// CountAggregate is the derived badge-count view for one identity.
type CountAggregate struct {
	Total      int              `json:"total"`
	Unread     int              `json:"unread"`
	ByCategory map[Category]int `json:"by_category"`
	ByPriority map[Priority]int `json:"by_priority"`
}

// ZeroCountAggregate returns a fully-populated all-zeros aggregate. Every
// category and priority key is present so clients never see a partial map.
func ZeroCountAggregate() CountAggregate {
	return CountAggregate{
		ByCategory: map[Category]int{
			CategoryAI:        0,
			CategoryWorkspace: 0,
			CategorySystem:    0,
		},
		ByPriority: map[Priority]int{
			PriorityCritical: 0,
			PriorityHigh:     0,
			PriorityMedium:   0,
			PriorityLow:      0,
		},
	}
}

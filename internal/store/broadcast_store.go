package store

import (
	"context"
	"fmt"
	"time"

	"github.com/complyport/realtime-service/internal/broadcast"
)

// BroadcastLogEntry is one persisted broadcast attempt.
type BroadcastLogEntry struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Channel     string    `json:"channel"`
	EventKind   string    `json:"event_kind"`
	Status      string    `json:"status"`
	Sent        int       `json:"sent"`
	Error       *string   `json:"error,omitempty"`
	DurationMs  int       `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordBroadcast persists one broadcast attempt. Implements
// broadcast.Recorder.
func (s *PostgresStore) RecordBroadcast(ctx context.Context, rec broadcast.Record) error {
	var errMsg *string
	if rec.Error != "" {
		errMsg = &rec.Error
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO broadcast_log (workspace_id, channel, event_kind, status, sent, error, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.WorkspaceID, string(rec.Channel), string(rec.EventKind), rec.Status, rec.Sent, errMsg, rec.DurationMs)
	if err != nil {
		return fmt.Errorf("inserting broadcast log entry: %w", err)
	}
	return nil
}

// ListBroadcasts returns recent broadcast attempts, optionally filtered by
// workspace and status.
func (s *PostgresStore) ListBroadcasts(ctx context.Context, workspaceID, status string, limit int) ([]BroadcastLogEntry, error) {
	query := `SELECT id, workspace_id, channel, event_kind, status, sent, error, duration_ms, created_at FROM broadcast_log`
	args := []interface{}{}
	argIdx := 1
	var conds []string

	if workspaceID != "" {
		conds = append(conds, fmt.Sprintf("workspace_id = $%d", argIdx))
		args = append(args, workspaceID)
		argIdx++
	}
	if status != "" {
		conds = append(conds, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, status)
		argIdx++
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying broadcast log: %w", err)
	}
	defer rows.Close()

	var entries []BroadcastLogEntry
	for rows.Next() {
		var e BroadcastLogEntry
		err := rows.Scan(&e.ID, &e.WorkspaceID, &e.Channel, &e.EventKind, &e.Status, &e.Sent, &e.Error, &e.DurationMs, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning broadcast log entry: %w", err)
		}
		entries = append(entries, e)
	}

	if entries == nil {
		entries = []BroadcastLogEntry{}
	}

	return entries, nil
}

// BroadcastMetrics holds aggregated broadcast statistics.
type BroadcastMetrics struct {
	TotalBroadcasts int            `json:"total_broadcasts"`
	SentCount       int            `json:"sent_count"`
	FailedCount     int            `json:"failed_count"`
	DegradedCount   int            `json:"degraded_count"`
	TotalRecipients int            `json:"total_recipients"`
	AvgDurationMs   float64        `json:"avg_duration_ms"`
	ByChannel       map[string]int `json:"by_channel"`
}

// GetBroadcastMetrics returns aggregated broadcast statistics.
func (s *PostgresStore) GetBroadcastMetrics(ctx context.Context) (*BroadcastMetrics, error) {
	m := BroadcastMetrics{ByChannel: map[string]int{}}

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'sent') AS sent,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			COUNT(*) FILTER (WHERE status = 'degraded') AS degraded,
			COALESCE(SUM(sent), 0) AS recipients,
			COALESCE(AVG(duration_ms) FILTER (WHERE duration_ms > 0), 0) AS avg_duration_ms
		FROM broadcast_log
	`).Scan(&m.TotalBroadcasts, &m.SentCount, &m.FailedCount, &m.DegradedCount, &m.TotalRecipients, &m.AvgDurationMs)
	if err != nil {
		return nil, fmt.Errorf("querying broadcast metrics: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT channel, COUNT(*) FROM broadcast_log GROUP BY channel
	`)
	if err != nil {
		return nil, fmt.Errorf("querying channel breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var channel string
		var count int
		if err := rows.Scan(&channel, &count); err != nil {
			return nil, fmt.Errorf("scanning channel breakdown: %w", err)
		}
		m.ByChannel[channel] = count
	}

	return &m, nil
}

// Package admindb reads dashboard aggregates from PostgreSQL.
package admindb

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lexpilot/lexpilot/internal/admin"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const (
	suspiciousThreshold = 5
	activeSessionWindow = 30 * time.Minute
	bytesPerGB          = 1 << 30
)

// Repository implements admin.Repository on top of pgx.
type Repository struct {
	db dbtx
}

// New creates a repository bound to a pool or transaction.
func New(db dbtx) *Repository {
	return &Repository{db: db}
}

type window struct {
	today, weekAgo, monthAgo time.Time
}

func windowsFor(now time.Time) window {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return window{today: today, weekAgo: today.AddDate(0, 0, -7), monthAgo: today.AddDate(0, 0, -30)}
}

const systemStatsSQL = `SELECT
	(SELECT COUNT(*) FROM users),
	(SELECT COUNT(*) FROM users WHERE is_active),
	(SELECT COUNT(*) FROM users WHERE created_at >= $1),
	(SELECT COUNT(*) FROM users WHERE created_at >= $2),
	(SELECT COUNT(*) FROM users WHERE created_at >= $3),
	(SELECT COUNT(*) FROM documents WHERE processing_status <> 'deleted'),
	(SELECT COUNT(*) FROM documents WHERE created_at >= $1 AND processing_status = 'ready'),
	(SELECT COUNT(*) FROM documents WHERE processing_status IN ('processing', 'embedding', 'ocr_processing')),
	(SELECT COUNT(*) FROM documents WHERE processing_status = 'failed'),
	(SELECT COALESCE(SUM(file_size), 0)::bigint FROM documents WHERE processing_status <> 'deleted'),
	(SELECT COUNT(*) FROM chat_sessions),
	(SELECT COUNT(*) FROM chat_sessions WHERE is_active),
	(SELECT COUNT(*) FROM chat_messages WHERE created_at >= $1),
	(SELECT COUNT(*) FROM chat_messages WHERE created_at >= $2),
	(SELECT COALESCE(SUM(total_tokens_used), 0)::bigint FROM chat_sessions),
	(SELECT COALESCE(SUM(estimated_cost), 0)::float8 FROM chat_sessions WHERE last_message_at >= $1),
	(SELECT COALESCE(SUM(estimated_cost), 0)::float8 FROM chat_sessions),
	(SELECT COUNT(*) FROM audit_logs WHERE action = 'login' AND timestamp >= $1),
	(SELECT COUNT(*) FROM audit_logs WHERE action = 'login' AND status_code = 401 AND timestamp >= $1)`

// SystemStats counts users, documents, chat usage and today's logins.
func (r *Repository) SystemStats(ctx context.Context, now time.Time) (admin.SystemStats, error) {
	w := windowsFor(now)
	var (
		counts    [9]int64
		fileBytes int64
		chat      [4]int64
		tokens    int64
		costToday float64
		costTotal float64
		logins    [2]int64
	)
	err := r.db.QueryRow(ctx, systemStatsSQL, w.today, w.weekAgo, w.monthAgo).Scan(
		&counts[0], &counts[1], &counts[2], &counts[3], &counts[4],
		&counts[5], &counts[6], &counts[7], &counts[8], &fileBytes,
		&chat[0], &chat[1], &chat[2], &chat[3],
		&tokens, &costToday, &costTotal,
		&logins[0], &logins[1],
	)
	if err != nil {
		return admin.SystemStats{}, fmt.Errorf("admindb: system stats: %w", err)
	}
	return admin.SystemStats{
		TotalUsers:              int(counts[0]),
		ActiveUsers:             int(counts[1]),
		NewUsersToday:           int(counts[2]),
		NewUsersThisWeek:        int(counts[3]),
		NewUsersThisMonth:       int(counts[4]),
		TotalDocuments:          int(counts[5]),
		DocumentsProcessedToday: int(counts[6]),
		DocumentsProcessing:     int(counts[7]),
		DocumentsFailed:         int(counts[8]),
		TotalFileSizeGB:         float64(fileBytes) / bytesPerGB,
		TotalChatSessions:       int(chat[0]),
		ActiveChatSessions:      int(chat[1]),
		MessagesToday:           int(chat[2]),
		MessagesThisWeek:        int(chat[3]),
		TotalTokensUsed:         tokens,
		EstimatedCostToday:      costToday,
		EstimatedCostTotal:      costTotal,
		LoginAttemptsToday:      int(logins[0]),
		FailedLoginsToday:       int(logins[1]),
	}, nil
}

const securityCountsSQL = `SELECT
	(SELECT COUNT(*) FROM audit_logs),
	(SELECT COUNT(*) FROM audit_logs WHERE risk_level IN ('high', 'critical')),
	(SELECT COUNT(*) FROM audit_logs WHERE action = 'login' AND status_code = 401 AND timestamp >= $1),
	(SELECT COUNT(*) FROM audit_logs WHERE risk_level IN ('high', 'critical') AND timestamp >= $1),
	(SELECT COUNT(DISTINCT user_id) FROM audit_logs WHERE user_id IS NOT NULL AND timestamp >= $2)`

const suspiciousIPsSQL = `SELECT ip_address FROM audit_logs
WHERE action = 'login' AND status_code = 401 AND timestamp >= $1 AND ip_address IS NOT NULL
GROUP BY ip_address HAVING COUNT(*) >= $2
ORDER BY COUNT(*) DESC, ip_address`

// SecuritySummary counts risky audit activity. Recent admin actions are left
// to the caller.
func (r *Repository) SecuritySummary(ctx context.Context, now time.Time) (admin.SecuritySummary, error) {
	since := now.Add(-24 * time.Hour)
	var counts [5]int64
	err := r.db.QueryRow(ctx, securityCountsSQL, since, now.Add(-activeSessionWindow)).Scan(
		&counts[0], &counts[1], &counts[2], &counts[3], &counts[4],
	)
	if err != nil {
		return admin.SecuritySummary{}, fmt.Errorf("admindb: security counts: %w", err)
	}
	rows, err := r.db.Query(ctx, suspiciousIPsSQL, since, suspiciousThreshold)
	if err != nil {
		return admin.SecuritySummary{}, fmt.Errorf("admindb: suspicious ips: %w", err)
	}
	ips, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return admin.SecuritySummary{}, fmt.Errorf("admindb: suspicious ips: %w", err)
	}
	return admin.SecuritySummary{
		TotalAuditLogs:  int(counts[0]),
		HighRiskEvents:  int(counts[1]),
		FailedLogins24h: int(counts[2]),
		SecurityAlerts:  int(counts[3]),
		ActiveSessions:  int(counts[4]),
		SuspiciousIPs:   ips,
	}, nil
}

const recentActivitiesSQL = `SELECT u.id, u.email, u.last_login,
	(SELECT COUNT(*) FROM audit_logs a WHERE a.user_id = u.id AND a.action = 'login' AND a.timestamp >= $2),
	(SELECT COUNT(*) FROM documents d WHERE d.user_id = u.id AND d.processing_status <> 'deleted'),
	(SELECT COUNT(*) FROM chat_messages m JOIN chat_sessions s ON s.id = m.session_id WHERE s.user_id = u.id),
	(SELECT MAX(a.timestamp) FROM audit_logs a WHERE a.user_id = u.id)
FROM users u
WHERE u.is_active
ORDER BY u.last_login DESC NULLS LAST
LIMIT $1`

// RecentActivities lists the most recently signed-in active users.
func (r *Repository) RecentActivities(ctx context.Context, now time.Time, limit int) ([]admin.UserActivity, error) {
	rows, err := r.db.Query(ctx, recentActivitiesSQL, limit, windowsFor(now).today)
	if err != nil {
		return nil, fmt.Errorf("admindb: recent activities: %w", err)
	}
	defer rows.Close()

	var out []admin.UserActivity
	for rows.Next() {
		var (
			act                   admin.UserActivity
			lastLogin, lastActive pgtype.Timestamptz
			logins, docs, msgs    int64
		)
		if err := rows.Scan(&act.UserID, &act.UserEmail, &lastLogin, &logins, &docs, &msgs, &lastActive); err != nil {
			return nil, fmt.Errorf("admindb: scan activity: %w", err)
		}
		act.LastLogin = timePtr(lastLogin)
		act.LastActivity = timePtr(lastActive)
		act.LoginCountToday = int(logins)
		act.DocumentsUploaded = int(docs)
		act.ChatMessagesSent = int(msgs)
		out = append(out, act)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("admindb: recent activities: %w", err)
	}
	return out, nil
}

// ListUsers pages through accounts, newest first.
func (r *Repository) ListUsers(ctx context.Context, limit, offset int) ([]admin.User, error) {
	rows, err := r.db.Query(ctx, `SELECT id, email, COALESCE(full_name, ''), role, is_active, created_at, last_login
FROM users ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("admindb: list users: %w", err)
	}
	defer rows.Close()

	var out []admin.User
	for rows.Next() {
		var (
			u         admin.User
			lastLogin pgtype.Timestamptz
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt, &lastLogin); err != nil {
			return nil, fmt.Errorf("admindb: scan user: %w", err)
		}
		u.LastLogin = timePtr(lastLogin)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("admindb: list users: %w", err)
	}
	return out, nil
}

const userStatsSQL = `SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE is_active),
	COUNT(*) FILTER (WHERE role = 'admin'),
	COUNT(*) FILTER (WHERE role = 'standard'),
	COUNT(*) FILTER (WHERE created_at >= $1),
	COUNT(*) FILTER (WHERE created_at >= $2),
	COUNT(*) FILTER (WHERE created_at >= $3)
FROM users`

// UserStats counts accounts by state, role and age.
func (r *Repository) UserStats(ctx context.Context, now time.Time) (admin.UserStats, error) {
	w := windowsFor(now)
	var c [7]int64
	if err := r.db.QueryRow(ctx, userStatsSQL, w.today, w.weekAgo, w.monthAgo).Scan(
		&c[0], &c[1], &c[2], &c[3], &c[4], &c[5], &c[6],
	); err != nil {
		return admin.UserStats{}, fmt.Errorf("admindb: user stats: %w", err)
	}
	return admin.UserStats{
		TotalUsers:        int(c[0]),
		ActiveUsers:       int(c[1]),
		AdminUsers:        int(c[2]),
		StandardUsers:     int(c[3]),
		NewUsersToday:     int(c[4]),
		NewUsersThisWeek:  int(c[5]),
		NewUsersThisMonth: int(c[6]),
	}, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

var _ admin.Repository = (*Repository)(nil)

// Package auditdb stores audit entries in PostgreSQL.
package auditdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lexpilot/lexpilot/internal/audit"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const selectColumns = `id, user_id, user_email, user_role, action, resource_type, resource_id, description,
	ip_address, user_agent, request_method, request_path, status_code, response_time_ms, session_id,
	risk_level, is_sensitive, timestamp`

// Repository implements audit.Repository on top of pgx.
type Repository struct {
	db dbtx
}

// New creates a repository bound to a pool or transaction.
func New(db dbtx) *Repository {
	return &Repository{db: db}
}

// Search returns the requested page of entries and the total match count.
func (r *Repository) Search(ctx context.Context, q audit.Query) ([]audit.Entry, int, error) {
	where, args := buildWhere(q)

	var total int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("auditdb: count: %w", err)
	}

	argPos := len(args) + 1
	query := fmt.Sprintf("SELECT %s FROM audit_logs%s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d",
		selectColumns, where, argPos, argPos+1)
	args = append(args, q.PerPage, q.Offset())

	entries, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return entries, int(total), nil
}

// ListRange returns every entry between from and to (either bound optional).
func (r *Repository) ListRange(ctx context.Context, from, to time.Time) ([]audit.Entry, error) {
	where, args := buildWhere(audit.Query{From: from, To: to})
	query := fmt.Sprintf("SELECT %s FROM audit_logs%s ORDER BY timestamp DESC", selectColumns, where)
	return r.list(ctx, query, args...)
}

// Insert stores a new entry and returns its id.
func (r *Repository) Insert(ctx context.Context, e audit.Entry, retainUntil time.Time) (int64, error) {
	var userID pgtype.Int8
	var email, role pgtype.Text
	if e.Actor != nil {
		if e.Actor.UserID != 0 {
			userID = pgtype.Int8{Int64: e.Actor.UserID, Valid: true}
		}
		email = text(e.Actor.Email)
		role = text(e.Actor.Role)
	}
	var retention pgtype.Timestamptz
	if !retainUntil.IsZero() {
		retention = pgtype.Timestamptz{Time: retainUntil, Valid: true}
	}
	const stmt = `INSERT INTO audit_logs (user_id, user_email, user_role, action, resource_type, resource_id,
	description, ip_address, user_agent, request_method, request_path, status_code, response_time_ms,
	session_id, risk_level, is_sensitive, timestamp, retention_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, stmt,
		userID, email, role, string(e.Action), text(e.ResourceType), text(e.ResourceID),
		e.Description, text(e.IPAddress), text(e.UserAgent), text(e.RequestMethod), text(e.RequestPath),
		int4(e.StatusCode), int4(e.ResponseTimeMS), text(e.SessionID), string(e.RiskLevel), e.Sensitive,
		e.Timestamp, retention,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("auditdb: insert: %w", err)
	}
	return id, nil
}

// PurgeExpired deletes entries whose retention date is before now.
func (r *Repository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM audit_logs WHERE retention_date IS NOT NULL AND retention_date < $1", now)
	if err != nil {
		return 0, fmt.Errorf("auditdb: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) list(ctx context.Context, query string, args ...interface{}) ([]audit.Entry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("auditdb: query: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("auditdb: scan: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auditdb: rows: %w", err)
	}
	return entries, nil
}

func buildWhere(q audit.Query) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if q.UserID > 0 {
		add("user_id = $%d", q.UserID)
	}
	if q.Action != "" {
		add("action = $%d", string(q.Action))
	}
	if q.ResourceType != "" {
		add("resource_type = $%d", q.ResourceType)
	}
	if !q.From.IsZero() {
		add("timestamp >= $%d", q.From)
	}
	if !q.To.IsZero() {
		add("timestamp <= $%d", q.To)
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanEntry(row pgx.Row) (audit.Entry, error) {
	var (
		id                                         int64
		userID                                     pgtype.Int8
		email, role, resourceType, resourceID      pgtype.Text
		ip, userAgent, method, path, session, risk pgtype.Text
		action, description                        string
		status, elapsed                            pgtype.Int4
		sensitive                                  bool
		ts                                         pgtype.Timestamptz
	)
	if err := row.Scan(&id, &userID, &email, &role, &action, &resourceType, &resourceID, &description,
		&ip, &userAgent, &method, &path, &status, &elapsed, &session, &risk, &sensitive, &ts); err != nil {
		return audit.Entry{}, err
	}
	e := audit.Entry{
		ID:             id,
		Action:         audit.Action(action),
		ResourceType:   resourceType.String,
		ResourceID:     resourceID.String,
		Description:    description,
		IPAddress:      ip.String,
		UserAgent:      userAgent.String,
		RequestMethod:  method.String,
		RequestPath:    path.String,
		StatusCode:     intPtr(status),
		ResponseTimeMS: intPtr(elapsed),
		SessionID:      session.String,
		RiskLevel:      audit.ParseRiskLevel(risk.String),
		Sensitive:      sensitive,
	}
	if ts.Valid {
		e.Timestamp = ts.Time
	}
	if userID.Valid || email.Valid {
		e.Actor = &audit.Actor{UserID: userID.Int64, Email: email.String, Role: role.String}
	}
	return e, nil
}

func text(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func int4(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}

func intPtr(v pgtype.Int4) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int32)
	return &n
}

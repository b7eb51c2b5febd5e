package auditdb

import (
	"context"
	"regexp"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/lexpilot/lexpilot/internal/audit"
)

var entryColumns = []string{
	"id", "user_id", "user_email", "user_role", "action", "resource_type", "resource_id", "description",
	"ip_address", "user_agent", "request_method", "request_path", "status_code", "response_time_ms", "session_id",
	"risk_level", "is_sensitive", "timestamp",
}

func TestSearchBuildsFilteredQuery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	ts := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_logs WHERE action = $1 AND timestamp >= $2 AND timestamp <= $3")).
		WithArgs("login", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs WHERE action = $1 AND timestamp >= $2 AND timestamp <= $3 ORDER BY timestamp DESC LIMIT $4 OFFSET $5")).
		WithArgs("login", from, to, 2, 2).
		WillReturnRows(pgxmock.NewRows(entryColumns).
			AddRow(int64(11), int64(5), "partner@firm.test", "admin", "login", nil, nil, "login ok",
				"10.0.0.5", "curl/8", "POST", "/auth/login", int64(200), int64(12), "req-1",
				"low", false, ts).
			AddRow(int64(12), nil, nil, nil, "login", nil, nil, "system login probe",
				nil, nil, nil, nil, nil, nil, nil,
				"bogus", true, ts))

	repo := New(mock)
	entries, total, err := repo.Search(context.Background(), audit.Query{
		Page: 2, PerPage: 2, Action: audit.ActionLogin, From: from, To: to,
	})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, entries, 2)

	require.Equal(t, "partner@firm.test", entries[0].Actor.DisplayIdentity())
	require.Equal(t, 200, entries[0].Status())
	require.Equal(t, audit.RiskLow, entries[0].RiskLevel)

	require.Nil(t, entries[1].Actor)
	require.Nil(t, entries[1].StatusCode)
	require.Equal(t, audit.RiskUnknown, entries[1].RiskLevel)
	require.True(t, entries[1].Sensitive)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM audit_logs WHERE retention_date IS NOT NULL AND retention_date < $1")).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := New(mock).PurgeExpired(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

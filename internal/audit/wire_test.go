package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPageJSONToPage(t *testing.T) {
	status := 401
	ts := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	page := NewPage([]Entry{{
		ID: 8, Timestamp: ts, Action: ActionLogin, IPAddress: "10.1.1.1",
		StatusCode: &status, RiskLevel: RiskMedium,
	}}, 120, Query{Page: 2, PerPage: 50})

	raw, err := json.Marshal(page.ToJSON())
	require.NoError(t, err)
	require.Contains(t, string(raw), `"page":2`)

	var wire PageJSON
	require.NoError(t, json.Unmarshal(raw, &wire))
	got := wire.ToPage()
	require.Equal(t, 2, got.Page)
	require.Equal(t, 120, got.Total)
	require.True(t, got.HasNext)
	require.True(t, got.HasPrev)
	require.Len(t, got.Entries, 1)
	require.True(t, got.Entries[0].FailedLogin())
	require.Equal(t, "10.1.1.1", got.Entries[0].IPAddress)
}

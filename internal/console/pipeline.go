package console

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/lexpilot/lexpilot/internal/audit"
)

// RiskFilter restricts entries to one risk level, or none.
type RiskFilter string

const (
	RiskAll      RiskFilter = "all"
	RiskLow      RiskFilter = RiskFilter(audit.RiskLow)
	RiskMedium   RiskFilter = RiskFilter(audit.RiskMedium)
	RiskHigh     RiskFilter = RiskFilter(audit.RiskHigh)
	RiskCritical RiskFilter = RiskFilter(audit.RiskCritical)
)

// ParseRiskFilter accepts all, low, medium, high or critical. Empty means all.
func ParseRiskFilter(raw string) (RiskFilter, error) {
	switch f := RiskFilter(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return RiskAll, nil
	case RiskAll, RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return f, nil
	default:
		return "", fmt.Errorf("console: unknown risk filter %q", raw)
	}
}

// Filter is the client-side search over a loaded page.
type Filter struct {
	Search string
	Risk   RiskFilter
}

// Match reports whether e passes the search term and the risk filter. The
// term is a case-insensitive substring of the actor identity, description,
// network address or resource type.
func (f Filter) Match(e audit.Entry) bool {
	return f.matcher()(e)
}

// matcher binds a fresh case folder; folders are not safe to share between
// goroutines.
func (f Filter) matcher() func(audit.Entry) bool {
	fold := cases.Fold()
	term := fold.String(strings.TrimSpace(f.Search))
	return func(e audit.Entry) bool {
		if f.Risk != "" && f.Risk != RiskAll && audit.RiskLevel(f.Risk) != e.RiskLevel {
			return false
		}
		if term == "" {
			return true
		}
		for _, field := range []string{e.Actor.DisplayIdentity(), e.Description, e.IPAddress, e.ResourceType} {
			if field != "" && strings.Contains(fold.String(field), term) {
				return true
			}
		}
		return false
	}
}

// FilterEntries returns the entries matching f, in input order.
func FilterEntries(entries []audit.Entry, f Filter) []audit.Entry {
	match := f.matcher()
	out := make([]audit.Entry, 0, len(entries))
	for _, e := range entries {
		if match(e) {
			out = append(out, e)
		}
	}
	return out
}

// SecurityMetrics are counters over the loaded page only.
type SecurityMetrics struct {
	TotalLogs        int
	HighRiskEvents   int
	FailedLogins     int
	UniqueIPs        int
	SensitiveActions int
	AdminActions     int
	Last24h          int
	Last7d           int
}

// ComputeMetrics makes a single pass over entries. Time windows end at now
// and include entries stamped after it.
func ComputeMetrics(entries []audit.Entry, now time.Time) SecurityMetrics {
	m := SecurityMetrics{TotalLogs: len(entries)}
	dayAgo := now.Add(-24 * time.Hour)
	weekAgo := now.Add(-7 * 24 * time.Hour)
	ips := make(map[string]struct{})
	for _, e := range entries {
		if e.RiskLevel.Elevated() {
			m.HighRiskEvents++
		}
		if e.FailedLogin() {
			m.FailedLogins++
		}
		if e.IPAddress != "" {
			ips[e.IPAddress] = struct{}{}
		}
		if e.Sensitive {
			m.SensitiveActions++
		}
		if e.Action == audit.ActionAdmin {
			m.AdminActions++
		}
		if !e.Timestamp.Before(dayAgo) {
			m.Last24h++
		}
		if !e.Timestamp.Before(weekAgo) {
			m.Last7d++
		}
	}
	m.UniqueIPs = len(ips)
	return m
}

// Derived is the view-model computed from one loaded page.
type Derived struct {
	Entries []audit.Entry
	Metrics SecurityMetrics
}

// Derive filters the page and computes metrics over the whole page, not the
// filtered subset.
func Derive(page audit.Page, f Filter, now time.Time) Derived {
	return Derived{
		Entries: FilterEntries(page.Entries, f),
		Metrics: ComputeMetrics(page.Entries, now),
	}
}

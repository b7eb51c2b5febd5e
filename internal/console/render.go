package console

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lexpilot/lexpilot/internal/admin"
	"github.com/lexpilot/lexpilot/internal/audit"
)

var (
	styleTitle    = lipgloss.NewStyle().Bold(true)
	styleMuted    = lipgloss.NewStyle().Faint(true)
	styleError    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleCritical = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")).Bold(true)
	styleHigh     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleMedium   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleLow      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Label turns an identifier such as admin_action into "Admin Action".
func Label(raw string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(raw, "_", " "))
}

// RiskBadge renders a risk level. Absent levels show as "unspecified".
func RiskBadge(level audit.RiskLevel) string {
	switch level {
	case audit.RiskCritical:
		return styleCritical.Render("CRITICAL")
	case audit.RiskHigh:
		return styleHigh.Render("HIGH")
	case audit.RiskMedium:
		return styleMedium.Render("MEDIUM")
	case audit.RiskLow:
		return styleLow.Render("LOW")
	case audit.RiskUnspecified:
		return styleMuted.Render("unspecified")
	default:
		return styleMuted.Render("unknown")
	}
}

// HealthBadge renders a health status; unrecognised values show as unknown.
func HealthBadge(status admin.HealthStatus) string {
	switch admin.ParseHealthStatus(string(status)) {
	case admin.StatusHealthy:
		return styleLow.Render("healthy")
	case admin.StatusDegraded:
		return styleMedium.Render("degraded")
	case admin.StatusUnhealthy:
		return styleHigh.Render("unhealthy")
	default:
		return styleMuted.Render("unknown")
	}
}

// Renderer writes view-models as terminal text.
type Renderer struct {
	w io.Writer
}

// NewRenderer builds a renderer writing to w.
func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

// Audit renders the security metrics and the filtered entry table.
func (r *Renderer) Audit(vm AuditViewModel) error {
	if vm.Decision != DecisionAllow {
		_, err := fmt.Fprintf(r.w, "access denied: %s\n", vm.Decision)
		return err
	}
	var b strings.Builder
	b.WriteString(styleTitle.Render("Audit Logs"))
	b.WriteString("  " + statusLine(vm.Status, vm.HasData, vm.UpdatedAt) + "\n")
	if vm.Err != nil {
		b.WriteString(styleError.Render("error: "+vm.Err.Error()) + " (press r to retry)\n")
	}
	if !vm.HasData {
		_, err := io.WriteString(r.w, b.String())
		return err
	}

	m := vm.Derived.Metrics
	fmt.Fprintf(&b, "Total Events %d | High Risk %d | Failed Logins %d | Unique IPs %d | Sensitive %d | Admin %d | 24h %d | 7d %d\n",
		m.TotalLogs, m.HighRiskEvents, m.FailedLogins, m.UniqueIPs, m.SensitiveActions, m.AdminActions, m.Last24h, m.Last7d)
	if vm.Filter.Search != "" || (vm.Filter.Risk != "" && vm.Filter.Risk != RiskAll) {
		fmt.Fprintf(&b, "%s\n", styleMuted.Render(fmt.Sprintf("filter: search=%q risk=%s (%d of %d shown)",
			vm.Filter.Search, vm.Filter.Risk, len(vm.Derived.Entries), len(vm.Page.Entries))))
	}

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tUSER\tACTION\tRESOURCE\tIP\tSTATUS\tRISK\tDESCRIPTION")
	for _, e := range vm.Derived.Entries {
		user := e.Actor.DisplayIdentity()
		if user == "" {
			user = "system"
		}
		status := "-"
		if e.StatusCode != nil {
			status = fmt.Sprint(*e.StatusCode)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), user, Label(string(e.Action)),
			dash(e.ResourceType), dash(e.IPAddress), status, RiskBadge(e.RiskLevel), e.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(&b, "page %d · %d total", vm.Page.Page, vm.Page.Total)
	if vm.Page.HasPrev {
		b.WriteString(" · prev")
	}
	if vm.Page.HasNext {
		b.WriteString(" · next")
	}
	b.WriteString("\n")
	_, err := io.WriteString(r.w, b.String())
	return err
}

// Dashboard renders the snapshot sections.
func (r *Renderer) Dashboard(vm DashboardViewModel) error {
	if vm.Decision != DecisionAllow {
		_, err := fmt.Fprintf(r.w, "access denied: %s\n", vm.Decision)
		return err
	}
	var b strings.Builder
	b.WriteString(styleTitle.Render("Admin Dashboard"))
	b.WriteString("  " + statusLine(vm.Status, vm.HasData, vm.UpdatedAt) + "\n")
	if vm.Err != nil {
		b.WriteString(styleError.Render("error: "+vm.Err.Error()) + " (press r to retry)\n")
	}
	if !vm.HasData {
		_, err := io.WriteString(r.w, b.String())
		return err
	}
	snap := vm.Snapshot
	stats := snap.SystemStats
	fmt.Fprintf(&b, "Users %d (%d active, +%d today) | Documents %d (%d processing, %d failed, %.2f GB) | Chat %d sessions, %d msgs today, %d tokens\n",
		stats.TotalUsers, stats.ActiveUsers, stats.NewUsersToday,
		stats.TotalDocuments, stats.DocumentsProcessing, stats.DocumentsFailed, stats.TotalFileSizeGB,
		stats.TotalChatSessions, stats.MessagesToday, stats.TotalTokensUsed)
	fmt.Fprintf(&b, "Uptime %.1fh | Memory %.1f%% | Logins today %d (%d failed)\n",
		stats.UptimeHours, stats.MemoryPercent, stats.LoginAttemptsToday, stats.FailedLoginsToday)

	fmt.Fprintf(&b, "\n%s %s\n", styleTitle.Render("System Health"), HealthBadge(snap.SystemHealth.Status))
	names := make([]string, 0, len(snap.SystemHealth.Components))
	for name := range snap.SystemHealth.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, name := range names {
		c := snap.SystemHealth.Components[name]
		detail := c.Details
		if c.Error != "" {
			detail = c.Error
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", Label(name), HealthBadge(c.Status), detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	sec := snap.SecuritySummary
	fmt.Fprintf(&b, "\n%s\n", styleTitle.Render("Security"))
	fmt.Fprintf(&b, "Audit logs %d | High risk %d | Failed logins 24h %d | Alerts %d | Active sessions %d\n",
		sec.TotalAuditLogs, sec.HighRiskEvents, sec.FailedLogins24h, sec.SecurityAlerts, sec.ActiveSessions)
	if len(sec.SuspiciousIPs) > 0 {
		fmt.Fprintf(&b, "Suspicious IPs: %s\n", strings.Join(sec.SuspiciousIPs, ", "))
	}

	perf := snap.PerformanceMetrics
	fmt.Fprintf(&b, "\n%s %s\n", styleTitle.Render("Performance"), Label(string(perf.Status)))
	fmt.Fprintf(&b, "Avg response %.0fms | Requests %d | Errors %.2f%% | Cache hits %.1f%%\n",
		perf.AvgResponseTimeMS, perf.TotalRequests, perf.ErrorRatePercent, perf.CacheHitRatePercent)

	if len(snap.RecentActivities) > 0 {
		fmt.Fprintf(&b, "\n%s\n", styleTitle.Render("Recent Activity"))
		tw = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, a := range snap.RecentActivities {
			last := "never"
			if a.LastLogin != nil {
				last = a.LastLogin.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(tw, "  %s\t%s\t%d docs\t%d msgs\n", a.UserEmail, last, a.DocumentsUploaded, a.ChatMessagesSent)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

func statusLine(status Status, hasData bool, updated time.Time) string {
	switch {
	case status == StatusLoading && hasData:
		return styleMuted.Render("refreshing…")
	case status == StatusLoading:
		return styleMuted.Render("loading…")
	case updated.IsZero():
		return styleMuted.Render(status.String())
	default:
		return styleMuted.Render("updated " + updated.Format("15:04:05"))
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

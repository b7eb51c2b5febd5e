// Package admin assembles the dashboard snapshot served to the admin console.
package admin

import (
	"strings"
	"time"

	"github.com/lexpilot/lexpilot/internal/audit"
)

// HealthStatus is the health vocabulary shared by components and the system.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusUnknown   HealthStatus = "unknown"
)

// ParseHealthStatus normalises raw into the known vocabulary; anything else is
// unknown.
func ParseHealthStatus(raw string) HealthStatus {
	switch s := HealthStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusHealthy, StatusDegraded, StatusUnhealthy:
		return s
	default:
		return StatusUnknown
	}
}

// PerformanceStatus grades the request metrics.
type PerformanceStatus string

const (
	PerformanceGood PerformanceStatus = "good"
	PerformanceFair PerformanceStatus = "fair"
	PerformancePoor PerformanceStatus = "poor"
)

// SystemStats are platform-wide counters.
type SystemStats struct {
	TotalUsers              int     `json:"total_users"`
	ActiveUsers             int     `json:"active_users"`
	NewUsersToday           int     `json:"new_users_today"`
	NewUsersThisWeek        int     `json:"new_users_this_week"`
	NewUsersThisMonth       int     `json:"new_users_this_month"`
	TotalDocuments          int     `json:"total_documents"`
	DocumentsProcessedToday int     `json:"documents_processed_today"`
	DocumentsProcessing     int     `json:"documents_processing"`
	DocumentsFailed         int     `json:"documents_failed"`
	TotalFileSizeGB         float64 `json:"total_file_size_gb"`
	TotalChatSessions       int     `json:"total_chat_sessions"`
	ActiveChatSessions      int     `json:"active_chat_sessions"`
	MessagesToday           int     `json:"messages_today"`
	MessagesThisWeek        int     `json:"messages_this_week"`
	TotalTokensUsed         int64   `json:"total_tokens_used"`
	EstimatedCostToday      float64 `json:"estimated_cost_today"`
	EstimatedCostTotal      float64 `json:"estimated_cost_total"`
	UptimeHours             float64 `json:"uptime_hours"`
	LoginAttemptsToday      int     `json:"login_attempts_today"`
	FailedLoginsToday       int     `json:"failed_logins_today"`
	ActiveSessions          int     `json:"active_sessions"`
	SuspiciousActivities    int     `json:"suspicious_activities"`
	MemoryPercent           float64 `json:"memory_percent"`
	Goroutines              int     `json:"goroutines"`
}

// ComponentStatus is the health report of one dependency.
type ComponentStatus struct {
	Status         HealthStatus `json:"status"`
	Details        string       `json:"details,omitempty"`
	Error          string       `json:"error,omitempty"`
	ResponseTimeMS *int64       `json:"response_time_ms,omitempty"`
}

// SystemHealth aggregates the component reports.
type SystemHealth struct {
	Status        HealthStatus               `json:"status"`
	Components    map[string]ComponentStatus `json:"components"`
	Timestamp     time.Time                  `json:"timestamp"`
	UptimeSeconds float64                    `json:"uptime_seconds"`
	Version       string                     `json:"version"`
}

// SecuritySummary condenses recent audit activity.
type SecuritySummary struct {
	TotalAuditLogs     int               `json:"total_audit_logs"`
	HighRiskEvents     int               `json:"high_risk_events"`
	FailedLogins24h    int               `json:"failed_logins_24h"`
	SuspiciousIPs      []string          `json:"suspicious_ips"`
	ActiveSessions     int               `json:"active_sessions"`
	RecentAdminActions []audit.EntryJSON `json:"recent_admin_actions"`
	SecurityAlerts     int               `json:"security_alerts"`
}

// PerformanceMetrics summarises request handling since start-up.
type PerformanceMetrics struct {
	AvgResponseTimeMS   float64           `json:"avg_response_time_ms"`
	TotalRequests       uint64            `json:"total_requests"`
	ErrorRatePercent    float64           `json:"error_rate_percent"`
	CacheHitRatePercent float64           `json:"cache_hit_rate_percent"`
	Status              PerformanceStatus `json:"performance_status"`
}

// UserActivity is a row of the recent activity table.
type UserActivity struct {
	UserID            int64      `json:"user_id"`
	UserEmail         string     `json:"user_email"`
	LastLogin         *time.Time `json:"last_login,omitempty"`
	LoginCountToday   int        `json:"login_count_today"`
	DocumentsUploaded int        `json:"documents_uploaded"`
	ChatMessagesSent  int        `json:"chat_messages_sent"`
	LastActivity      *time.Time `json:"last_activity,omitempty"`
}

// Snapshot is the full dashboard payload, refreshed wholesale.
type Snapshot struct {
	SystemStats        SystemStats        `json:"system_stats"`
	SystemHealth       SystemHealth       `json:"system_health"`
	SecuritySummary    SecuritySummary    `json:"security_summary"`
	PerformanceMetrics PerformanceMetrics `json:"performance_metrics"`
	RecentActivities   []UserActivity     `json:"recent_activities"`
	GeneratedAt        time.Time          `json:"generated_at"`
}

// User is an account as listed to administrators.
type User struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Role      string     `json:"role"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// UserStats counts accounts by state and role.
type UserStats struct {
	TotalUsers        int `json:"total_users"`
	ActiveUsers       int `json:"active_users"`
	AdminUsers        int `json:"admin_users"`
	StandardUsers     int `json:"standard_users"`
	NewUsersToday     int `json:"new_users_today"`
	NewUsersThisWeek  int `json:"new_users_this_week"`
	NewUsersThisMonth int `json:"new_users_this_month"`
}

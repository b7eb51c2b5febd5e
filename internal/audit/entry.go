package audit

import (
	"strconv"
	"strings"
	"time"
)

// Action enumerates the kinds of events recorded in the audit log.
type Action string

const (
	ActionLogin         Action = "login"
	ActionLogout        Action = "logout"
	ActionCreate        Action = "create"
	ActionRead          Action = "read"
	ActionUpdate        Action = "update"
	ActionDelete        Action = "delete"
	ActionUpload        Action = "upload"
	ActionDownload      Action = "download"
	ActionSearch        Action = "search"
	ActionChat          Action = "chat"
	ActionAdmin         Action = "admin_action"
	ActionSecurityEvent Action = "security_event"
)

// Actions lists every known action in display order.
func Actions() []Action {
	return []Action{
		ActionLogin, ActionLogout, ActionCreate, ActionRead, ActionUpdate, ActionDelete,
		ActionUpload, ActionDownload, ActionSearch, ActionChat, ActionAdmin, ActionSecurityEvent,
	}
}

// Valid reports whether a is one of the enumerated actions.
func (a Action) Valid() bool {
	for _, known := range Actions() {
		if a == known {
			return true
		}
	}
	return false
}

// RiskLevel is the severity label attached to an audit event.
type RiskLevel string

const (
	RiskUnspecified RiskLevel = ""
	RiskLow         RiskLevel = "low"
	RiskMedium      RiskLevel = "medium"
	RiskHigh        RiskLevel = "high"
	RiskCritical    RiskLevel = "critical"
	RiskUnknown     RiskLevel = "unknown"
)

// ParseRiskLevel normalises a raw risk label. Empty input stays unspecified,
// anything outside the vocabulary becomes RiskUnknown.
func ParseRiskLevel(raw string) RiskLevel {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(raw))) {
	case RiskUnspecified:
		return RiskUnspecified
	case RiskLow:
		return RiskLow
	case RiskMedium:
		return RiskMedium
	case RiskHigh:
		return RiskHigh
	case RiskCritical:
		return RiskCritical
	default:
		return RiskUnknown
	}
}

// Elevated reports whether the level counts as high risk.
func (r RiskLevel) Elevated() bool {
	return r == RiskHigh || r == RiskCritical
}

// Actor identifies the user behind an event. System events carry no actor.
type Actor struct {
	UserID int64
	Email  string
	Role   string
}

// DisplayIdentity returns the e-mail when known, otherwise the user id.
func (a *Actor) DisplayIdentity() string {
	if a == nil {
		return ""
	}
	if a.Email != "" {
		return a.Email
	}
	if a.UserID != 0 {
		return strconv.FormatInt(a.UserID, 10)
	}
	return ""
}

// Entry is one immutable audit log record.
type Entry struct {
	ID             int64
	Timestamp      time.Time
	Actor          *Actor
	Action         Action
	ResourceType   string
	ResourceID     string
	Description    string
	IPAddress      string
	UserAgent      string
	RequestMethod  string
	RequestPath    string
	StatusCode     *int
	ResponseTimeMS *int
	SessionID      string
	RiskLevel      RiskLevel
	Sensitive      bool
}

// Status returns the response status code or zero when absent.
func (e Entry) Status() int {
	if e.StatusCode == nil {
		return 0
	}
	return *e.StatusCode
}

// FailedLogin reports whether the entry is a rejected login attempt.
func (e Entry) FailedLogin() bool {
	return e.Action == ActionLogin && e.Status() == 401
}

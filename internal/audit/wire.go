package audit

import "time"

// EntryJSON is the wire representation of an Entry.
type EntryJSON struct {
	ID             int64     `json:"id"`
	UserID         *int64    `json:"user_id"`
	UserEmail      *string   `json:"user_email"`
	UserRole       *string   `json:"user_role"`
	Action         string    `json:"action"`
	ResourceType   *string   `json:"resource_type"`
	ResourceID     *string   `json:"resource_id"`
	Description    string    `json:"description"`
	IPAddress      *string   `json:"ip_address"`
	UserAgent      *string   `json:"user_agent"`
	StatusCode     *int      `json:"status_code"`
	ResponseTimeMS *int      `json:"response_time_ms"`
	Timestamp      time.Time `json:"timestamp"`
	SessionID      *string   `json:"session_id"`
	RiskLevel      *string   `json:"risk_level"`
	IsSensitive    bool      `json:"is_sensitive"`
}

// PageJSON is the wire representation of a Page.
type PageJSON struct {
	Logs    []EntryJSON `json:"logs"`
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
	HasNext bool        `json:"has_next"`
	HasPrev bool        `json:"has_prev"`
}

// ToJSON converts an entry for transport.
func (e Entry) ToJSON() EntryJSON {
	out := EntryJSON{
		ID:             e.ID,
		Action:         string(e.Action),
		ResourceType:   optString(e.ResourceType),
		ResourceID:     optString(e.ResourceID),
		Description:    e.Description,
		IPAddress:      optString(e.IPAddress),
		UserAgent:      optString(e.UserAgent),
		StatusCode:     e.StatusCode,
		ResponseTimeMS: e.ResponseTimeMS,
		Timestamp:      e.Timestamp.UTC(),
		SessionID:      optString(e.SessionID),
		RiskLevel:      optString(string(e.RiskLevel)),
		IsSensitive:    e.Sensitive,
	}
	if e.Actor != nil {
		if e.Actor.UserID != 0 {
			id := e.Actor.UserID
			out.UserID = &id
		}
		out.UserEmail = optString(e.Actor.Email)
		out.UserRole = optString(e.Actor.Role)
	}
	return out
}

// Entry converts the wire form back into a domain entry.
func (j EntryJSON) Entry() Entry {
	e := Entry{
		ID:             j.ID,
		Timestamp:      j.Timestamp,
		Action:         Action(j.Action),
		ResourceType:   deref(j.ResourceType),
		ResourceID:     deref(j.ResourceID),
		Description:    j.Description,
		IPAddress:      deref(j.IPAddress),
		UserAgent:      deref(j.UserAgent),
		StatusCode:     j.StatusCode,
		ResponseTimeMS: j.ResponseTimeMS,
		SessionID:      deref(j.SessionID),
		RiskLevel:      ParseRiskLevel(deref(j.RiskLevel)),
		Sensitive:      j.IsSensitive,
	}
	if j.UserID != nil || j.UserEmail != nil {
		actor := &Actor{Email: deref(j.UserEmail), Role: deref(j.UserRole)}
		if j.UserID != nil {
			actor.UserID = *j.UserID
		}
		e.Actor = actor
	}
	return e
}

// ToJSON converts a page for transport.
func (p Page) ToJSON() PageJSON {
	logs := make([]EntryJSON, 0, len(p.Entries))
	for _, e := range p.Entries {
		logs = append(logs, e.ToJSON())
	}
	return PageJSON{
		Logs:    logs,
		Total:   p.Total,
		Page:    p.Page,
		PerPage: p.PerPage,
		HasNext: p.HasNext,
		HasPrev: p.HasPrev,
	}
}

// ToPage converts the wire form back into a domain page.
func (j PageJSON) ToPage() Page {
	entries := make([]Entry, 0, len(j.Logs))
	for _, l := range j.Logs {
		entries = append(entries, l.Entry())
	}
	return Page{
		Entries: entries,
		Total:   j.Total,
		Page:    j.Page,
		PerPage: j.PerPage,
		HasNext: j.HasNext,
		HasPrev: j.HasPrev,
	}
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package audithttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lexpilot/lexpilot/internal/audit"
	"github.com/lexpilot/lexpilot/internal/platform/httpx"
)

// Service defines the business contract for audit data.
type Service interface {
	Search(ctx context.Context, q audit.Query) (audit.Page, error)
	Export(ctx context.Context, filters audit.ExportFilters) ([]audit.Entry, error)
}

// Handler serves audit search and export.
type Handler struct {
	logger   *slog.Logger
	service  Service
	recorder *audit.Recorder
	now      func() time.Time
}

// NewHandler creates a new audit handler. recorder may be nil.
func NewHandler(logger *slog.Logger, service Service, recorder *audit.Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		recorder: recorder,
		now:      time.Now,
	}
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := h.service.Search(r.Context(), q)
	if err != nil {
		h.respondServiceError(w, "search audit logs", err)
		return
	}
	audit.Annotate(r.Context(), func(e *audit.Entry) {
		e.Description = "searched audit logs (page " + strconv.Itoa(page.Page) + ")"
	})
	httpx.JSON(w, http.StatusOK, page.ToJSON())
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	values := r.URL.Query()
	format := strings.ToLower(strings.TrimSpace(values.Get("format")))
	if format == "" {
		format = audit.ExportFormatCSV
	}
	from, err := parseTime(values.Get("date_from"), "date_from")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := parseTime(values.Get("date_to"), "date_to")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), audit.ExportFilters{Format: format, From: from, To: to})
	if err != nil {
		h.respondServiceError(w, "export audit logs", err)
		return
	}
	csvBytes, err := audit.WriteCSV(rows)
	if err != nil {
		h.respondServiceError(w, "encode csv", err)
		return
	}
	audit.Annotate(r.Context(), func(e *audit.Entry) {
		e.Description = "exported " + strconv.Itoa(len(rows)) + " audit log entries"
	})
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+audit.ExportFileName(h.now().UTC())+`"`)
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) respondServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, audit.ErrInvalidQuery), errors.Is(err, audit.ErrUnsupportedFormat):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(message, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseQuery(r *http.Request) (audit.Query, error) {
	values := r.URL.Query()
	q := audit.Query{Page: 1, PerPage: audit.DefaultPerPage}
	var err error
	if q.Page, err = parseInt(values.Get("page"), q.Page, "page"); err != nil {
		return audit.Query{}, err
	}
	if q.PerPage, err = parseInt(values.Get("per_page"), q.PerPage, "per_page"); err != nil {
		return audit.Query{}, err
	}
	if v := strings.TrimSpace(values.Get("user_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return audit.Query{}, validationError("user_id")
		}
		q.UserID = id
	}
	q.Action = audit.Action(strings.TrimSpace(values.Get("action")))
	q.ResourceType = strings.TrimSpace(values.Get("resource_type"))
	if q.From, err = parseTime(values.Get("date_from"), "date_from"); err != nil {
		return audit.Query{}, err
	}
	if q.To, err = parseTime(values.Get("date_to"), "date_to"); err != nil {
		return audit.Query{}, err
	}
	if err := q.Validate(); err != nil {
		return audit.Query{}, errors.Join(httpx.ErrValidation, err)
	}
	return q, nil
}

func parseInt(raw string, fallback int, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validationError(field)
	}
	return n, nil
}

// parseTime accepts RFC 3339 timestamps or plain yyyy-mm-dd dates. A bare
// date used as an upper bound covers the whole day.
func parseTime(raw, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, validationError(field)
	}
	if field == "date_to" {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func validationError(field string) error {
	return errors.Join(httpx.ErrValidation, errors.New("invalid "+field))
}

package audit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/lexpilot/lexpilot/internal/shared"
)

// Writer persists audit entries.
type Writer interface {
	Record(ctx context.Context, e Entry) error
}

// Recorder writes an audit entry for each request passing through its
// middleware.
type Recorder struct {
	writer Writer
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder builds a request recorder.
func NewRecorder(writer Writer, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{writer: writer, logger: logger, now: time.Now}
}

// RecordOptions describes the entry produced for a route.
type RecordOptions struct {
	Action       Action
	ResourceType string
	Sensitive    bool
}

type draftKey struct{}

// Annotate lets a handler enrich the entry recorded for the current request.
// It is a no-op outside a recorded route.
func Annotate(ctx context.Context, fn func(*Entry)) {
	if draft, ok := ctx.Value(draftKey{}).(*Entry); ok && draft != nil {
		fn(draft)
	}
}

// Middleware records the request once the wrapped handler returns.
func (rec *Recorder) Middleware(opts RecordOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rec == nil || rec.writer == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := rec.now()
			draft := &Entry{
				Action:        opts.Action,
				ResourceType:  opts.ResourceType,
				Sensitive:     opts.Sensitive,
				IPAddress:     clientIP(r),
				UserAgent:     r.UserAgent(),
				RequestMethod: r.Method,
				RequestPath:   r.URL.Path,
				SessionID:     middleware.GetReqID(r.Context()),
			}
			if p := shared.PrincipalFromContext(r.Context()); p != nil {
				draft.Actor = &Actor{UserID: p.UserID, Email: p.Email, Role: p.Role}
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), draftKey{}, draft)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := int(rec.now().Sub(start).Milliseconds())
			draft.StatusCode = &status
			draft.ResponseTimeMS = &elapsed
			if draft.Description == "" {
				draft.Description = r.Method + " " + r.URL.Path
			}
			if draft.RiskLevel == RiskUnspecified {
				draft.RiskLevel = riskForStatus(status)
			}
			if err := rec.writer.Record(context.WithoutCancel(r.Context()), *draft); err != nil {
				rec.logger.Warn("record audit entry", slog.String("path", r.URL.Path), slog.Any("error", err))
			}
		})
	}
}

func riskForStatus(status int) RiskLevel {
	switch {
	case status >= 500:
		return RiskHigh
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusTooManyRequests:
		return RiskMedium
	default:
		return RiskLow
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

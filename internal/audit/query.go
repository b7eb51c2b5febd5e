package audit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultPerPage is used when a query does not set a page size.
	DefaultPerPage = 50
	// MaxPerPage bounds the page size accepted by the search endpoint.
	MaxPerPage = 1000
	// MaxPage bounds the page number so Page*PerPage stays well inside int.
	MaxPage = 1_000_000
)

// ErrInvalidQuery is returned when a Query fails validation.
var ErrInvalidQuery = errors.New("audit: invalid query")

// Query describes one audit search request.
type Query struct {
	Page         int    `validate:"gte=1,lte=1000000"`
	PerPage      int    `validate:"gte=1,lte=1000"`
	UserID       int64  `validate:"gte=0"`
	Action       Action `validate:"omitempty,audit_action"`
	ResourceType string `validate:"omitempty,max=100"`
	From         time.Time
	To           time.Time
}

var queryValidator = newQueryValidator()

func newQueryValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("audit_action", func(fl validator.FieldLevel) bool {
		return Action(fl.Field().String()).Valid()
	})
	return v
}

// Validate checks the query invariants: 1 ≤ page ≤ MaxPage, 0 < per_page ≤ MaxPerPage,
// a known action and a non-inverted date range.
func (q Query) Validate() error {
	if err := queryValidator.Struct(q); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("%w: %s", ErrInvalidQuery, strings.ToLower(fieldErrs[0].Field()))
		}
		return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return fmt.Errorf("%w: range", ErrInvalidQuery)
	}
	return nil
}

// WithDefaults fills page and page size when unset.
func (q Query) WithDefaults() Query {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = DefaultPerPage
	}
	return q
}

// Offset returns the row offset of the requested page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.PerPage
}

// Key returns a stable cache key covering every query parameter.
func (q Query) Key() string {
	parts := []string{
		"audit",
		fmt.Sprintf("p=%d", q.Page),
		fmt.Sprintf("n=%d", q.PerPage),
		fmt.Sprintf("u=%d", q.UserID),
		"a=" + string(q.Action),
		"r=" + q.ResourceType,
		"f=" + formatBound(q.From),
		"t=" + formatBound(q.To),
	}
	return strings.Join(parts, "|")
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Page is one page of search results.
type Page struct {
	Entries []Entry
	Total   int
	Page    int
	PerPage int
	HasNext bool
	HasPrev bool
}

// NewPage assembles a page and derives its pagination flags.
func NewPage(entries []Entry, total int, q Query) Page {
	if len(entries) > q.PerPage {
		entries = entries[:q.PerPage]
	}
	return Page{
		Entries: entries,
		Total:   total,
		Page:    q.Page,
		PerPage: q.PerPage,
		HasNext: hasNext(q.Page, q.PerPage, total),
		HasPrev: q.Page > 1,
	}
}

// hasNext reports page*perPage < total without forming the product.
func hasNext(page, perPage, total int) bool {
	if page < 1 || perPage < 1 || total < 1 {
		return false
	}
	return page <= (total-1)/perPage
}

// ExportFilters bounds an export by date.
type ExportFilters struct {
	Format string
	From   time.Time
	To     time.Time
}

// ExportFormatCSV is the only supported export format.
const ExportFormatCSV = "csv"

// ErrUnsupportedFormat is returned for export formats other than csv.
var ErrUnsupportedFormat = errors.New("audit: unsupported export format")

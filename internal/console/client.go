package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lexpilot/lexpilot/internal/admin"
	"github.com/lexpilot/lexpilot/internal/audit"
)

// Error classes returned by Client. Every error wraps one of them.
var (
	ErrTransport    = errors.New("console: transport failure")
	ErrUnauthorized = errors.New("console: not authorized")
	ErrValidation   = errors.New("console: invalid request")
	ErrExport       = errors.New("console: export failed")
)

// StatusError is a non-2xx response from the API.
type StatusError struct {
	Status int
	Detail string
	class  error
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %d %s", e.class, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: %d", e.class, e.Status)
}

func (e *StatusError) Unwrap() error { return e.class }

// ExportRequest describes an audit export.
type ExportRequest struct {
	Format string
	From   time.Time
	To     time.Time
}

// LoginResult is the outcome of a password login.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Role        string `json:"role"`
}

// Client issues single request/response calls to the admin API. It keeps no
// state besides its configuration and never retries.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a client for baseURL. httpClient may be nil.
func NewClient(baseURL, token string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("console: invalid api url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{baseURL: u, token: token, http: httpClient, logger: logger}, nil
}

// WithToken returns a copy of the client authenticating with token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// SearchAuditLogs fetches one page of audit entries.
func (c *Client) SearchAuditLogs(ctx context.Context, q audit.Query) (audit.Page, error) {
	var body audit.PageJSON
	if err := c.getJSON(ctx, "/admin/audit-logs", queryValues(q), &body); err != nil {
		return audit.Page{}, err
	}
	return body.ToPage(), nil
}

// ExportAuditLogs downloads the export blob. Every failure also wraps
// ErrExport.
func (c *Client) ExportAuditLogs(ctx context.Context, req ExportRequest) ([]byte, error) {
	values := url.Values{}
	format := req.Format
	if format == "" {
		format = audit.ExportFormatCSV
	}
	values.Set("format", format)
	setTime(values, "date_from", req.From)
	setTime(values, "date_to", req.To)

	res, err := c.do(ctx, http.MethodGet, "/admin/audit-logs/export", values, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExport, err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrExport, ErrTransport, err)
	}
	return data, nil
}

// Dashboard fetches the full dashboard snapshot.
func (c *Client) Dashboard(ctx context.Context) (admin.Snapshot, error) {
	var snap admin.Snapshot
	if err := c.getJSON(ctx, "/admin/dashboard", nil, &snap); err != nil {
		return admin.Snapshot{}, err
	}
	return snap, nil
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return LoginResult{}, err
	}
	res, err := c.do(ctx, http.MethodPost, "/auth/login", nil, payload)
	if err != nil {
		return LoginResult{}, err
	}
	defer res.Body.Close()
	var out LoginResult
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return LoginResult{}, fmt.Errorf("%w: decode login: %v", ErrTransport, err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, values url.Values, dest interface{}) error {
	res, err := c.do(ctx, http.MethodGet, path, values, nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrTransport, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, values url.Values, body []byte) (*http.Response, error) {
	target := c.baseURL.JoinPath(path)
	if len(values) > 0 {
		target.RawQuery = values.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return res, nil
	}
	defer res.Body.Close()
	statusErr := &StatusError{Status: res.StatusCode, Detail: problemDetail(res.Body), class: classify(res.StatusCode)}
	c.logger.Debug("api error", slog.String("path", path), slog.Int("status", res.StatusCode), slog.String("request_id", requestID))
	return nil, statusErr
}

func classify(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	default:
		return ErrTransport
	}
}

func problemDetail(r io.Reader) string {
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || json.Unmarshal(raw, &problem) != nil {
		return strings.TrimSpace(string(raw))
	}
	if problem.Detail != "" {
		return problem.Detail
	}
	return problem.Title
}

func queryValues(q audit.Query) url.Values {
	values := url.Values{}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		values.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.UserID > 0 {
		values.Set("user_id", strconv.FormatInt(q.UserID, 10))
	}
	if q.Action != "" {
		values.Set("action", string(q.Action))
	}
	if q.ResourceType != "" {
		values.Set("resource_type", q.ResourceType)
	}
	setTime(values, "date_from", q.From)
	setTime(values, "date_to", q.To)
	return values
}

func setTime(values url.Values, key string, t time.Time) {
	if !t.IsZero() {
		values.Set(key, t.UTC().Format(time.RFC3339Nano))
	}
}

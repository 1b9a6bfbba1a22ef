package kimai

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

	"kimai-deck/internal/domain"
	"kimai-deck/internal/ports"
)

// DefaultTimeout bounds every request; a timeout counts as a transport failure.
const DefaultTimeout = 10 * time.Second

// Client implements ports.TimesheetClient and ports.CatalogClient using the Kimai REST API.
type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
	log      *slog.Logger
}

var (
	_ ports.TimesheetClient = (*Client)(nil)
	_ ports.CatalogClient   = (*Client)(nil)
)

func NewClient(baseURL, apiToken string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		http: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// RecentEntries fetches timesheets ordered by begin, newest first.
// Kimai: GET /api/timesheets?size=1&orderBy=begin&order=DESC&full=true
func (c *Client) RecentEntries(ctx context.Context, q ports.EntryQuery) ([]domain.TimeEntry, error) {
	params := url.Values{}
	params.Set("orderBy", "begin")
	params.Set("order", "DESC")
	if q.Size > 0 {
		params.Set("size", strconv.Itoa(q.Size))
	}
	if q.ActiveOnly {
		params.Set("active", "1")
	}
	if q.Full {
		params.Set("full", "true")
	}

	var raw []rawTimesheet
	if err := c.do(ctx, "list timesheets", http.MethodGet, "/api/timesheets", params, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]domain.TimeEntry, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// CreateEntry starts a new timesheet. The begin timestamp is sent verbatim.
func (c *Client) CreateEntry(ctx context.Context, e domain.NewTimeEntry) (domain.TimeEntry, error) {
	body := rawCreate{
		Begin:       e.Begin,
		Project:     e.ProjectID,
		Activity:    e.ActivityID,
		Description: e.Description,
	}
	var raw rawTimesheet
	if err := c.do(ctx, "create timesheet", http.MethodPost, "/api/timesheets", nil, body, &raw); err != nil {
		return domain.TimeEntry{}, err
	}
	if raw.ID <= 0 {
		return domain.TimeEntry{}, &domain.ParseError{What: "create response", Err: errors.New("missing timesheet id")}
	}
	entry := raw.toDomain()
	if entry.Begin == "" {
		entry.Begin = e.Begin
	}
	return entry, nil
}

// StopEntry ends the timesheet with the given id.
// Kimai: PATCH /api/timesheets/{id}/stop
func (c *Client) StopEntry(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/api/timesheets/%d/stop", id)
	return c.do(ctx, "stop timesheet", http.MethodPatch, path, nil, nil, nil)
}

// ListProjects fetches projects visible to the configured token.
func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var raw []rawProject
	if err := c.do(ctx, "list projects", http.MethodGet, "/api/projects", nil, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]domain.Project, 0, len(raw))
	for _, p := range raw {
		out = append(out, domain.Project{
			ID:         p.ID,
			Name:       p.Name,
			CustomerID: p.Customer.ID,
			Customer:   firstNonEmpty(p.Customer.Name, p.ParentTitle),
			Visible:    p.Visible,
		})
	}
	return out, nil
}

// ListActivities fetches activities; a non-zero projectID scopes the list to
// that project plus global activities.
func (c *Client) ListActivities(ctx context.Context, projectID int64) ([]domain.Activity, error) {
	params := url.Values{}
	if projectID > 0 {
		params.Set("project", strconv.FormatInt(projectID, 10))
	}
	var raw []rawActivity
	if err := c.do(ctx, "list activities", http.MethodGet, "/api/activities", params, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]domain.Activity, 0, len(raw))
	for _, a := range raw {
		var project *int64
		if a.Project != nil && a.Project.ID != 0 {
			id := a.Project.ID
			project = &id
		}
		out = append(out, domain.Activity{ID: a.ID, Name: a.Name, ProjectID: project, Visible: a.Visible})
	}
	return out, nil
}

// ListCustomers fetches customers visible to the configured token.
func (c *Client) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	var raw []rawCustomer
	if err := c.do(ctx, "list customers", http.MethodGet, "/api/customers", nil, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]domain.Customer, 0, len(raw))
	for _, cu := range raw {
		out = append(out, domain.Customer{ID: cu.ID, Name: cu.Name, Visible: cu.Visible})
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, in, out any) error {
	if c.baseURL == "" || c.apiToken == "" {
		return &domain.ConfigError{Fields: c.missing()}
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("kimai: invalid base url: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("kimai: encode %s: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("kimai request failed",
			slog.String("op", op),
			slog.String("url", u.String()),
			slog.Any("error", err),
		)
		return &domain.TransportError{Op: "kimai: " + op, Err: err}
	}
	defer resp.Body.Close()
	c.log.Debug("kimai request",
		slog.String("op", op),
		slog.String("method", method),
		slog.String("path", u.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("dur", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Error("kimai returned an error status",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(excerpt)),
		)
		return &domain.ServiceError{Op: "kimai: " + op, Status: resp.StatusCode, Body: string(excerpt)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return &domain.TransportError{Op: "kimai: " + op, Err: err}
		}
		return &domain.ParseError{What: op + " response", Err: err}
	}
	return nil
}

func (c *Client) missing() []string {
	var out []string
	if c.baseURL == "" {
		out = append(out, "service_url")
	}
	if c.apiToken == "" {
		out = append(out, "api_token")
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

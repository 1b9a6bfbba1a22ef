package kimai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kimai-deck/internal/domain"
	"kimai-deck/internal/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecentEntries_FullExpansion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/kimai/api/timesheets", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("size"))
		assert.Equal(t, "begin", q.Get("orderBy"))
		assert.Equal(t, "DESC", q.Get("order"))
		assert.Equal(t, "true", q.Get("full"))
		_, _ = io.WriteString(w, `[{"id":12,"begin":"2025-06-18T07:02:46+0200","end":null,
			"project":{"id":1,"name":"Website","customer":{"id":7,"name":"ACME"}},
			"activity":{"id":3,"name":"Development"},"description":"hacking"}]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/kimai/", "secret", time.Second, discardLogger())
	entries, err := c.RecentEntries(context.Background(), ports.EntryQuery{Size: 1, Full: true})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, int64(12), e.ID)
	assert.True(t, e.Active())
	assert.Equal(t, int64(1), e.ProjectID)
	assert.Equal(t, int64(3), e.ActivityID)
	assert.Equal(t, "Website", e.Project)
	assert.Equal(t, "ACME", e.Customer)
	assert.Equal(t, "Development", e.Activity)
	assert.True(t, e.Matches(1, 3))
}

func TestRecentEntries_CollapsedRelations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("active"))
		_, _ = io.WriteString(w, `[{"id":5,"begin":"2025-06-18T07:02:46","end":"2025-06-18T08:00:00","project":2,"activity":9}]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second, discardLogger())
	entries, err := c.RecentEntries(context.Background(), ports.EntryQuery{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Active())
	assert.Equal(t, int64(2), entries[0].ProjectID)
	assert.Equal(t, int64(9), entries[0].ActivityID)
}

func TestCreateEntry_SendsNaiveBegin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2025-06-18T09:32:46", body["begin"])
		assert.EqualValues(t, 1, body["project"])
		assert.EqualValues(t, 3, body["activity"])
		assert.Equal(t, "standup", body["description"])
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":99,"begin":"2025-06-18T09:32:46+0200","end":null,"project":1,"activity":3}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second, discardLogger())
	got, err := c.CreateEntry(context.Background(), domain.NewTimeEntry{
		Begin: "2025-06-18T09:32:46", ProjectID: 1, ActivityID: 3, Description: "standup",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(99), got.ID)
	assert.Equal(t, "2025-06-18T09:32:46+0200", got.Begin)
}

func TestCreateEntry_MissingIDIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"begin":"2025-06-18T09:32:46"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second, discardLogger())
	_, err := c.CreateEntry(context.Background(), domain.NewTimeEntry{Begin: "x", ProjectID: 1, ActivityID: 1})
	var pe *domain.ParseError
	require.ErrorAs(t, err, &pe)
}

func TestStopEntry_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/timesheets/5/stop", r.URL.Path)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second, discardLogger())
	err := c.StopEntry(context.Background(), 5)
	var se *domain.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Contains(t, se.Body, "boom")
	assert.True(t, domain.Transient(err))
}

func TestTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, "secret", 50*time.Millisecond, discardLogger())
	_, err := c.RecentEntries(context.Background(), ports.EntryQuery{Size: 1})
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
}

func TestMalformedBodyIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"not":"a list"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second, discardLogger())
	_, err := c.RecentEntries(context.Background(), ports.EntryQuery{Size: 1})
	var pe *domain.ParseError
	require.ErrorAs(t, err, &pe)
	assert.False(t, domain.Transient(err))
}

func TestMissingTokenIsConfigurationMissing(t *testing.T) {
	c := NewClient("http://kimai.local", "", time.Second, discardLogger())
	err := c.StopEntry(context.Background(), 1)
	require.True(t, errors.Is(err, domain.ErrConfigurationMissing))
}

func TestCatalogListings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/projects", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":1,"name":"Website","customer":7,"parentTitle":"ACME","visible":true}]`)
	})
	mux.HandleFunc("/api/activities", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("project"))
		_, _ = io.WriteString(w, `[{"id":3,"name":"Development","project":1,"visible":true},{"id":4,"name":"Meeting","project":null,"visible":true}]`)
	})
	mux.HandleFunc("/api/customers", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":7,"name":"ACME","visible":true}]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second, discardLogger())
	ctx := context.Background()

	projects, err := c.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "ACME", projects[0].Customer)
	assert.Equal(t, int64(7), projects[0].CustomerID)

	activities, err := c.ListActivities(ctx, 1)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	require.NotNil(t, activities[0].ProjectID)
	assert.Equal(t, int64(1), *activities[0].ProjectID)
	assert.Nil(t, activities[1].ProjectID)

	customers, err := c.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "ACME", customers[0].Name)
}

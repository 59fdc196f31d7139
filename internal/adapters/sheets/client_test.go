package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/services/propagation/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hit struct {
	method string
	path   string
	query  string
	body   map[string]any
}

type fakeGoogle struct {
	mu     sync.Mutex
	hits   []hit
	status map[string]int
}

func (f *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	f.mu.Lock()
	f.hits = append(f.hits, hit{r.Method, r.URL.Path, r.URL.RawQuery, body})
	code := f.status[r.URL.Path]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if code != 0 {
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": code, "message": "denied"}})
		return
	}
	if r.Method == http.MethodPost && r.URL.Path == "/v4/spreadsheets" {
		_, _ = w.Write([]byte(`{"spreadsheetId":"doc-1"}`))
		return
	}
	_, _ = w.Write([]byte(`{}`))
}

func newFake(t *testing.T) (*Client, *fakeGoogle) {
	t.Helper()
	fg := &fakeGoogle{status: map[string]int{}}
	srv := httptest.NewServer(fg)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), Options{HTTPClient: srv.Client(), Endpoint: srv.URL + "/"})
	require.NoError(t, err)
	return c, fg
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{Email: "svc@example.iam.gserviceaccount.com"})
	require.Error(t, err)
	assert.Equal(t, perr.ErrorCodeConfiguration, perr.CodeOf(err))
}

func TestCreateDocument(t *testing.T) {
	c, fg := newFake(t)
	id, err := c.CreateDocument(context.Background(), "Stocks_x", domain.Grid{Sheet: "stocks_coefs", Rows: 1000, Columns: 8})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)

	require.Len(t, fg.hits, 1)
	props := fg.hits[0].body["sheets"].([]any)[0].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, "stocks_coefs", props["title"])
	grid := props["gridProperties"].(map[string]any)
	assert.EqualValues(t, 1000, grid["rowCount"])
	assert.EqualValues(t, 8, grid["columnCount"])
}

func TestWriteRegion_ClearsThenWritesRaw(t *testing.T) {
	c, fg := newFake(t)
	rows := [][]string{domain.Header, {"2025-01-31", "", "47.5", "", "", "", "Moscow", "2025-01-31 03:00:00"}}
	require.NoError(t, c.WriteRegion(context.Background(), "doc-1", "stocks_coefs", rows))

	require.Len(t, fg.hits, 2)
	assert.Equal(t, http.MethodPost, fg.hits[0].method)
	assert.True(t, strings.HasSuffix(fg.hits[0].path, "/values/stocks_coefs:clear"), fg.hits[0].path)

	up := fg.hits[1]
	assert.Equal(t, http.MethodPut, up.method)
	assert.Contains(t, up.path, "/v4/spreadsheets/doc-1/values/stocks_coefs!A1")
	assert.Contains(t, up.query, "valueInputOption=RAW")
	vals := up.body["values"].([]any)
	require.Len(t, vals, 2)
	assert.Equal(t, "Moscow", vals[1].([]any)[6])
}

func TestWriteRegion_EmptyOnlyClears(t *testing.T) {
	c, fg := newFake(t)
	require.NoError(t, c.WriteRegion(context.Background(), "doc-1", "stocks_coefs", nil))
	assert.Len(t, fg.hits, 1)
}

func TestGrantAccess(t *testing.T) {
	c, fg := newFake(t)
	require.NoError(t, c.GrantAccess(context.Background(), "doc-1", "ops@example.com", domain.RoleWriter))

	require.Len(t, fg.hits, 1)
	assert.Equal(t, "/files/doc-1/permissions", fg.hits[0].path)
	assert.Equal(t, "writer", fg.hits[0].body["role"])
	assert.Equal(t, "user", fg.hits[0].body["type"])
	assert.Equal(t, "ops@example.com", fg.hits[0].body["emailAddress"])
}

func TestGrantAccess_NoEmail(t *testing.T) {
	c, fg := newFake(t)
	err := c.GrantAccess(context.Background(), "doc-1", " ", domain.RoleWriter)
	assert.Equal(t, perr.ErrorCodeConfiguration, perr.CodeOf(err))
	assert.Empty(t, fg.hits)
}

func TestAPIErrorMapping(t *testing.T) {
	c, fg := newFake(t)
	fg.status["/v4/spreadsheets/doc-9/values/stocks_coefs:clear"] = http.StatusForbidden
	err := c.WriteRegion(context.Background(), "doc-9", "stocks_coefs", [][]string{{"x"}})
	require.Error(t, err)
	assert.Equal(t, perr.ErrorCodeConfiguration, perr.CodeOf(err))
	assert.Contains(t, err.Error(), "403")
}

func TestQuoteSheet(t *testing.T) {
	assert.Equal(t, "stocks_coefs", quoteSheet("stocks_coefs"))
	assert.Equal(t, "'my sheet'", quoteSheet("my sheet"))
	assert.Equal(t, "'it''s'", quoteSheet("it's"))
}

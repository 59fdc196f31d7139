package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/store"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rows struct {
	ids []string
	i   int
}

func (r *rows) Next() bool             { r.i++; return r.i <= len(r.ids) }
func (r *rows) Scan(dest ...any) error { *dest[0].(*string) = r.ids[r.i-1]; return nil }
func (r *rows) Err() error             { return nil }
func (r *rows) Close()                 {}
func (r *rows) Columns() []string      { return []string{"spread_sheet_id"} }

type fakeQ struct {
	ids     []string
	err     error
	execSQL string
	args    []any
}

func (f *fakeQ) Exec(_ context.Context, sql string, args ...any) (store.CommandTag, error) {
	f.execSQL, f.args = sql, args
	return nil, f.err
}
func (f *fakeQ) Query(context.Context, string, ...any) (store.Rows, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &rows{ids: f.ids}, nil
}
func (f *fakeQ) QueryRow(context.Context, string, ...any) store.Row { return nil }

func TestPG_TargetsInOrder(t *testing.T) {
	r := NewPG(&fakeQ{ids: []string{"T1", "T2", " ", "T1", "T3"}})
	ids, err := r.Targets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T2", "T3"}, ids)
}

func TestPG_EmptyIsConfigurationError(t *testing.T) {
	_, err := NewPG(&fakeQ{}).Targets(context.Background())
	require.Error(t, err)
	assert.Equal(t, perr.ErrorCodeConfiguration, perr.CodeOf(err))
}

func TestPG_QueryError(t *testing.T) {
	_, err := NewPG(&fakeQ{err: errors.New("down")}).Targets(context.Background())
	assert.Equal(t, perr.ErrorCodeDB, perr.CodeOf(err))
}

func TestPG_UnmigratedIsConfigurationError(t *testing.T) {
	_, err := NewPG(&fakeQ{err: &pgconn.PgError{Code: "42P01", Message: `relation "google_tables" does not exist`}}).Targets(context.Background())
	assert.Equal(t, perr.ErrorCodeConfiguration, perr.CodeOf(err))
	assert.Contains(t, err.Error(), "tariffsync migrate")
}

func TestPG_Register(t *testing.T) {
	q := &fakeQ{}
	require.NoError(t, NewPG(q).Register(context.Background(), " doc-1 "))
	assert.Contains(t, q.execSQL, "ON CONFLICT (spread_sheet_id) DO NOTHING")
	assert.Equal(t, []any{"doc-1"}, q.args)

	err := NewPG(q).Register(context.Background(), "")
	assert.Equal(t, perr.ErrorCodeInvalidArgument, perr.CodeOf(err))
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestFile_Targets(t *testing.T) {
	p := writeFile(t, "targets:\n  - T1\n  - T2\n  - T3\n")
	ids, err := NewFile(p).Targets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T2", "T3"}, ids)
}

func TestFile_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty list": "targets: []\n",
		"blank id":   "targets:\n  - \"\"\n",
		"not yaml":   "targets: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewFile(writeFile(t, body)).Targets(context.Background())
			require.Error(t, err)
			assert.Equal(t, perr.ErrorCodeConfiguration, perr.CodeOf(err))
		})
	}

	_, err := NewFile(filepath.Join(t.TempDir(), "missing.yaml")).Targets(context.Background())
	assert.Equal(t, perr.ErrorCodeConfiguration, perr.CodeOf(err))
}

type countingRegistry struct {
	calls int
	ids   []string
	err   error
}

func (c *countingRegistry) Targets(context.Context) ([]string, error) {
	c.calls++
	return c.ids, c.err
}

func TestCached(t *testing.T) {
	inner := &countingRegistry{err: perr.Configurationf("none yet")}
	c := NewCached(inner)
	ctx := context.Background()

	_, err := c.Targets(ctx)
	require.Error(t, err)

	inner.err, inner.ids = nil, []string{"T1", "T2"}
	ids, err := c.Targets(ctx)
	require.NoError(t, err)
	ids[0] = "mutated"

	again, err := c.Targets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T2"}, again, "cache hands out copies")
	assert.Equal(t, 2, inner.calls, "errors are not cached, successes are")

	c.Invalidate()
	_, _ = c.Targets(ctx)
	assert.Equal(t, 3, inner.calls)
}

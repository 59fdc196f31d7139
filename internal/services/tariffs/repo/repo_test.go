package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/store"
	"tariffsync/internal/services/tariffs/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	sql  string
	args []any
}

type tag int64

func (t tag) String() string      { return "OK" }
func (t tag) RowsAffected() int64 { return int64(t) }

type rows struct {
	n   int
	err error
}

func (r *rows) Next() bool {
	if r.n == 0 {
		return false
	}
	r.n--
	return true
}
func (r *rows) Scan(dest ...any) error {
	*dest[0].(*time.Time) = time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	*dest[1].(*string) = "Moscow"
	v := 47.5
	*dest[3].(**float64) = &v
	return nil
}
func (r *rows) Err() error        { return r.err }
func (r *rows) Close()            {}
func (r *rows) Columns() []string { return nil }

type scalarRow struct{ v int64 }

func (s scalarRow) Scan(dest ...any) error { *dest[0].(*int64) = s.v; return nil }

type fakeQ struct {
	calls   []call
	found   int
	qErr    error
	execErr error
	tag     tag
}

func (f *fakeQ) Exec(_ context.Context, sql string, args ...any) (store.CommandTag, error) {
	f.calls = append(f.calls, call{sql, args})
	return f.tag, f.execErr
}
func (f *fakeQ) Query(_ context.Context, sql string, args ...any) (store.Rows, error) {
	f.calls = append(f.calls, call{sql, args})
	if f.qErr != nil {
		return nil, f.qErr
	}
	return &rows{n: f.found}, nil
}
func (f *fakeQ) QueryRow(_ context.Context, sql string, args ...any) store.Row {
	f.calls = append(f.calls, call{sql, args})
	return scalarRow{v: 3}
}

func key() domain.Key {
	return domain.Key{DtTillMax: time.Date(2025, 1, 31, 15, 0, 0, 0, time.FixedZone("MSK", 3*3600)), WarehouseName: "Moscow"}
}

func TestFindByKey_Absent(t *testing.T) {
	q := &fakeQ{}
	_, ok, err := NewPG().Bind(q).FindByKey(context.Background(), key())
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, q.calls, 1)
	assert.Contains(t, q.calls[0].sql, "FOR UPDATE")
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), q.calls[0].args[0], "date argument is the bare calendar day")
}

func TestFindByKey_Found(t *testing.T) {
	q := &fakeQ{found: 1}
	rec, ok, err := NewPG().Bind(q).FindByKey(context.Background(), key())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Moscow", rec.WarehouseName)
	require.NotNil(t, rec.DeliveryBase)
	assert.InDelta(t, 47.5, *rec.DeliveryBase, 1e-9)
	assert.Nil(t, rec.DeliveryLiter)
}

func TestFindByKey_QueryError(t *testing.T) {
	q := &fakeQ{qErr: errors.New("conn reset")}
	_, _, err := NewPG().Bind(q).FindByKey(context.Background(), key())
	require.Error(t, err)
	assert.Equal(t, perr.ErrorCodeDB, perr.CodeOf(err))
}

func TestInsert_LeavesUpdatedAtAlone(t *testing.T) {
	q := &fakeQ{tag: 1}
	v := 1.5
	err := NewPG().Bind(q).Insert(context.Background(), domain.Record{DtTillMax: key().DtTillMax, WarehouseName: "Moscow", DeliveryBase: &v})
	require.NoError(t, err)
	require.Len(t, q.calls, 1)
	assert.NotContains(t, q.calls[0].sql, "updated_at")
	assert.Len(t, q.calls[0].args, 7)
	assert.Equal(t, &v, q.calls[0].args[3])
}

func TestUpdate_StampsUpdatedAt(t *testing.T) {
	q := &fakeQ{tag: 1}
	require.NoError(t, NewPG().Bind(q).Update(context.Background(), domain.Record{DtTillMax: key().DtTillMax, WarehouseName: "Moscow"}))
	assert.Contains(t, q.calls[0].sql, "updated_at = now()")
	assert.False(t, strings.Contains(q.calls[0].sql, "created_at"), "created_at is immutable")
}

func TestUpdate_NoRowIsAnError(t *testing.T) {
	q := &fakeQ{tag: 0}
	err := NewPG().Bind(q).Update(context.Background(), domain.Record{WarehouseName: "Ghost"})
	require.Error(t, err)
}

func TestCount(t *testing.T) {
	n, err := NewPG().Bind(&fakeQ{}).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestByDate(t *testing.T) {
	q := &fakeQ{found: 2}
	out, err := NewPG().Bind(q).ByDate(context.Background(), key().DtTillMax)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Contains(t, q.calls[0].sql, "ORDER BY warehouse_name")
}

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.vals[0].(int64)
	*dest[1].(*string) = r.vals[1].(string)
	*dest[2].(*string) = r.vals[2].(string)
	if r.vals[3] != nil {
		n := r.vals[3].(int64)
		*dest[3].(**int64) = &n
	}
	return nil
}

// fakeRows embeds pgx.Rows so only the methods List touches need bodies.
type fakeRows struct {
	pgx.Rows
	rows []fakeRow
	pos  int
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos <= len(r.rows)
}
func (r *fakeRows) Scan(dest ...any) error { return r.rows[r.pos-1].Scan(dest...) }
func (r *fakeRows) Err() error             { return nil }
func (r *fakeRows) Close()                 {}

type fakeDB struct {
	row   fakeRow
	rows  []fakeRow
	query string
}

func (f *fakeDB) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	f.query = sql
	return &fakeRows{rows: f.rows}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	f.query = sql
	return f.row
}

func TestGetProduct(t *testing.T) {
	db := &fakeDB{row: fakeRow{vals: []any{int64(1), "Mug", "10.50", int64(5)}}}
	repo := &Repo{DB: db}

	p, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, "Mug", p.Name)
	assert.Equal(t, "10.5", p.Price.String())
	require.NotNil(t, p.Stock)
	assert.Equal(t, int64(5), *p.Stock)
}

func TestGetProductUnlimitedStock(t *testing.T) {
	db := &fakeDB{row: fakeRow{vals: []any{int64(2), "Pen", "7", nil}}}

	p, err := (&Repo{DB: db}).Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, p.Stock)
}

func TestGetProductNotFound(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}

	_, err := (&Repo{DB: db}).Get(context.Background(), 3)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestGetProductScanError(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: errors.New("conn reset")}}

	_, err := (&Repo{DB: db}).Get(context.Background(), 3)
	assert.ErrorContains(t, err, "conn reset")
	assert.NotErrorIs(t, err, ErrProductNotFound)
}

func TestGetProductBadPrice(t *testing.T) {
	db := &fakeDB{row: fakeRow{vals: []any{int64(4), "Odd", "ten", nil}}}

	_, err := (&Repo{DB: db}).Get(context.Background(), 4)
	assert.ErrorContains(t, err, "price")
}

func TestListProducts(t *testing.T) {
	db := &fakeDB{rows: []fakeRow{
		{vals: []any{int64(1), "Mug", "10", int64(5)}},
		{vals: []any{int64(2), "Pen", "7", nil}},
	}}

	ps, err := (&Repo{DB: db}).List(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "Pen", ps[1].Name)
	assert.Contains(t, db.query, "ORDER BY id")
}

package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront-cart/internal/cart"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

// querier is the slice of pgxpool.Pool the repo needs.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo reads product snapshots from Postgres. Stock is nullable: NULL means
// the product is not stock-limited.
type Repo struct{ DB querier }

const productColumns = `id, name, price::text, stock`

func (r *Repo) Get(ctx context.Context, id int64) (cart.Product, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 AND active`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return cart.Product{}, ErrProductNotFound
	}
	if err != nil {
		return cart.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// List returns active products ordered by id so the storefront gets a stable order.
func (r *Repo) List(ctx context.Context) ([]cart.Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := []cart.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (cart.Product, error) {
	var (
		p     cart.Product
		price string
		stock *int64
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &stock); err != nil {
		return cart.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return cart.Product{}, fmt.Errorf("product %d price %q: %w", p.ID, price, err)
	}
	p.Price = d
	p.Stock = stock
	return p, nil
}

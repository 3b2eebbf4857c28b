package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Rows mirror the tables column for column. Amounts and dates stay TEXT so no
// precision is lost on the way through SQLite.
type (
	Transaction struct {
		ID         int64
		Kind       string
		Category   string
		Amount     string
		Date       string
		SourceText string
		CreatedAt  string
	}

	Asset struct {
		ID            int64
		Type          string
		Name          string
		Ticker        string
		Quantity      string
		PurchasePrice string
		PurchaseDate  string
		Notes         string
		CreatedAt     string
	}

	AssetValuation struct {
		ID         int64
		AssetID    int64
		Price      string
		TotalValue string
		AsOfDate   string
		RecordedAt string
	}

	NetWorthHistory struct {
		Date          string
		TotalAssets   string
		TotalExpenses string
		NetWorth      string
		UpdatedAt     string
	}
)

const createTransaction = `
INSERT INTO transactions (kind, category, amount, date, source_text, created_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, kind, category, amount, date, source_text, created_at`

type CreateTransactionParams struct {
	Kind       string
	Category   string
	Amount     string
	Date       string
	SourceText string
	CreatedAt  string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.Kind, arg.Category, arg.Amount, arg.Date, arg.SourceText, arg.CreatedAt)
	var i Transaction
	err := row.Scan(&i.ID, &i.Kind, &i.Category, &i.Amount, &i.Date, &i.SourceText, &i.CreatedAt)
	return i, err
}

// Empty kind or from disables that filter; to is always applied.
const listTransactions = `
SELECT id, kind, category, amount, date, source_text, created_at
FROM transactions
WHERE (?1 = '' OR kind = ?1)
  AND (?2 = '' OR date >= ?2)
  AND date <= ?3
ORDER BY created_at, id`

type ListTransactionsParams struct {
	Kind string
	From string
	To   string
}

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions, arg.Kind, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(&i.ID, &i.Kind, &i.Category, &i.Amount, &i.Date, &i.SourceText, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createAsset = `
INSERT INTO assets (type, name, ticker, quantity, purchase_price, purchase_date, notes, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id, type, name, ticker, quantity, purchase_price, purchase_date, notes, created_at`

type CreateAssetParams struct {
	Type          string
	Name          string
	Ticker        string
	Quantity      string
	PurchasePrice string
	PurchaseDate  string
	Notes         string
	CreatedAt     string
}

func (q *Queries) CreateAsset(ctx context.Context, arg CreateAssetParams) (Asset, error) {
	row := q.db.QueryRowContext(ctx, createAsset,
		arg.Type, arg.Name, arg.Ticker, arg.Quantity, arg.PurchasePrice, arg.PurchaseDate, arg.Notes, arg.CreatedAt)
	var i Asset
	err := scanAsset(row, &i)
	return i, err
}

const getAsset = `
SELECT id, type, name, ticker, quantity, purchase_price, purchase_date, notes, created_at
FROM assets WHERE id = ?`

func (q *Queries) GetAsset(ctx context.Context, id int64) (Asset, error) {
	row := q.db.QueryRowContext(ctx, getAsset, id)
	var i Asset
	err := scanAsset(row, &i)
	return i, err
}

const listAssets = `
SELECT id, type, name, ticker, quantity, purchase_price, purchase_date, notes, created_at
FROM assets ORDER BY id`

func (q *Queries) ListAssets(ctx context.Context) ([]Asset, error) {
	rows, err := q.db.QueryContext(ctx, listAssets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Asset
	for rows.Next() {
		var i Asset
		if err := scanAsset(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createAssetValuation = `
INSERT INTO asset_valuations (asset_id, price, total_value, as_of_date, recorded_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id, asset_id, price, total_value, as_of_date, recorded_at`

type CreateAssetValuationParams struct {
	AssetID    int64
	Price      string
	TotalValue string
	AsOfDate   string
	RecordedAt string
}

func (q *Queries) CreateAssetValuation(ctx context.Context, arg CreateAssetValuationParams) (AssetValuation, error) {
	row := q.db.QueryRowContext(ctx, createAssetValuation,
		arg.AssetID, arg.Price, arg.TotalValue, arg.AsOfDate, arg.RecordedAt)
	var i AssetValuation
	err := row.Scan(&i.ID, &i.AssetID, &i.Price, &i.TotalValue, &i.AsOfDate, &i.RecordedAt)
	return i, err
}

const listAssetValuationsAsOf = `
SELECT id, asset_id, price, total_value, as_of_date, recorded_at
FROM asset_valuations
WHERE as_of_date <= ?
ORDER BY asset_id, recorded_at, id`

func (q *Queries) ListAssetValuationsAsOf(ctx context.Context, asOf string) ([]AssetValuation, error) {
	rows, err := q.db.QueryContext(ctx, listAssetValuationsAsOf, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AssetValuation
	for rows.Next() {
		var i AssetValuation
		if err := rows.Scan(&i.ID, &i.AssetID, &i.Price, &i.TotalValue, &i.AsOfDate, &i.RecordedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertNetWorth = `
INSERT INTO net_worth_history (date, total_assets, total_expenses, net_worth, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (date) DO UPDATE SET
    total_assets   = excluded.total_assets,
    total_expenses = excluded.total_expenses,
    net_worth      = excluded.net_worth,
    updated_at     = excluded.updated_at`

func (q *Queries) UpsertNetWorth(ctx context.Context, arg NetWorthHistory) error {
	_, err := q.db.ExecContext(ctx, upsertNetWorth,
		arg.Date, arg.TotalAssets, arg.TotalExpenses, arg.NetWorth, arg.UpdatedAt)
	return err
}

const getNetWorth = `
SELECT date, total_assets, total_expenses, net_worth, updated_at
FROM net_worth_history WHERE date = ?`

func (q *Queries) GetNetWorth(ctx context.Context, date string) (NetWorthHistory, error) {
	row := q.db.QueryRowContext(ctx, getNetWorth, date)
	var i NetWorthHistory
	err := row.Scan(&i.Date, &i.TotalAssets, &i.TotalExpenses, &i.NetWorth, &i.UpdatedAt)
	return i, err
}

const listNetWorth = `
SELECT date, total_assets, total_expenses, net_worth, updated_at
FROM net_worth_history
WHERE date >= ? AND date <= ?
ORDER BY date`

func (q *Queries) ListNetWorth(ctx context.Context, from, to string) ([]NetWorthHistory, error) {
	rows, err := q.db.QueryContext(ctx, listNetWorth, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []NetWorthHistory
	for rows.Next() {
		var i NetWorthHistory
		if err := rows.Scan(&i.Date, &i.TotalAssets, &i.TotalExpenses, &i.NetWorth, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(row scanner, i *Asset) error {
	return row.Scan(&i.ID, &i.Type, &i.Name, &i.Ticker, &i.Quantity, &i.PurchasePrice, &i.PurchaseDate, &i.Notes, &i.CreatedAt)
}

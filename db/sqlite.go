package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"custseg/retail"
)

const dateLayout = "2006-01-02 15:04:05"

var ErrClosed = errors.New("database not initialized")

const schema = `
    CREATE TABLE IF NOT EXISTS transactions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        invoice_no TEXT NOT NULL,
        stock_code TEXT NOT NULL,
        description TEXT,
        quantity INTEGER NOT NULL,
        invoice_date TEXT NOT NULL,
        unit_price REAL,
        customer_id TEXT,
        country TEXT NOT NULL,
        sales REAL NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_transactions_country ON transactions(country);
    CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(invoice_date, invoice_no);
    CREATE TABLE IF NOT EXISTS customers (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        customer_id TEXT,
        total_transactions REAL NOT NULL,
        total_products REAL NOT NULL,
        total_unique_products REAL NOT NULL,
        total_sales REAL NOT NULL,
        avg_product_value REAL NOT NULL,
        avg_cart_value REAL NOT NULL,
        min_cart_value REAL NOT NULL,
        max_cart_value REAL NOT NULL,
        cluster INTEGER NOT NULL
    );
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY,
        model_name VARCHAR(50),
        accuracy REAL,
        precision REAL,
        recall REAL,
        trained_at TEXT,
        data_points INTEGER
    );
    `

// Store is the sqlite-backed home of the loaded tables.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		// every pooled connection would otherwise get its own empty database
		database.SetMaxOpenConns(1)
	}
	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Reset empties the data tables so a fresh start-up does not double count rows.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM transactions; DELETE FROM customers;`)
	return err
}

// ImportTransactions writes one batch inside a single transaction.
func (s *Store) ImportTransactions(ctx context.Context, rows []retail.Transaction) error {
	if len(rows) == 0 {
		return nil
	}
	return s.withTx(ctx, `
        INSERT INTO transactions (
            invoice_no, stock_code, description, quantity, invoice_date,
            unit_price, customer_id, country, sales
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		func(stmt *sql.Stmt) error {
			for _, t := range rows {
				if _, err := stmt.ExecContext(ctx,
					t.InvoiceNo,
					t.StockCode,
					t.Description,
					t.Quantity,
					t.InvoiceDate.UTC().Format(dateLayout),
					t.UnitPrice,
					nullString(t.CustomerID),
					t.Country,
					t.Sales,
				); err != nil {
					return fmt.Errorf("insert invoice %s: %w", t.InvoiceNo, err)
				}
			}
			return nil
		})
}

func (s *Store) ImportCustomers(ctx context.Context, rows []retail.CustomerAggregate) error {
	if len(rows) == 0 {
		return nil
	}
	return s.withTx(ctx, `
        INSERT INTO customers (
            customer_id, total_transactions, total_products, total_unique_products, total_sales,
            avg_product_value, avg_cart_value, min_cart_value, max_cart_value, cluster
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		func(stmt *sql.Stmt) error {
			for _, c := range rows {
				if _, err := stmt.ExecContext(ctx,
					nullString(c.CustomerID),
					c.TotalTransactions,
					c.TotalProducts,
					c.TotalUniqueProducts,
					c.TotalSales,
					c.AvgProductValue,
					c.AvgCartValue,
					c.MinCartValue,
					c.MaxCartValue,
					c.Cluster,
				); err != nil {
					return fmt.Errorf("insert customer %s: %w", c.CustomerID, err)
				}
			}
			return nil
		})
}

func (s *Store) withTx(ctx context.Context, query string, fn func(*sql.Stmt) error) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Customers returns the aggregate table in load order.
func (s *Store) Customers(ctx context.Context) ([]retail.CustomerAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT customer_id, total_transactions, total_products, total_unique_products, total_sales,
               avg_product_value, avg_cart_value, min_cart_value, max_cart_value, cluster
        FROM customers
        ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []retail.CustomerAggregate
	for rows.Next() {
		var c retail.CustomerAggregate
		var id sql.NullString
		if err := rows.Scan(&id, &c.TotalTransactions, &c.TotalProducts, &c.TotalUniqueProducts, &c.TotalSales,
			&c.AvgProductValue, &c.AvgCartValue, &c.MinCartValue, &c.MaxCartValue, &c.Cluster); err != nil {
			return nil, err
		}
		c.CustomerID = id.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// Countries returns the distinct country names in ascending order.
func (s *Store) Countries(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT country FROM transactions ORDER BY country`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var country string
		if err := rows.Scan(&country); err != nil {
			return nil, err
		}
		out = append(out, country)
	}
	return out, rows.Err()
}

// countryFilter returns the WHERE clause for a country; the empty string selects every row.
func countryFilter(country string) (string, []any) {
	if country == "" {
		return "", nil
	}
	return " WHERE country = ?", []any{country}
}

type Metrics struct {
	UniqueCustomers int     `json:"unique_customers"`
	UniqueInvoices  int     `json:"unique_invoices"`
	UniqueProducts  int     `json:"unique_products"`
	TotalSales      float64 `json:"total_sales"`
	Rows            int     `json:"rows"`
}

// Metrics computes the headline numbers. Unknown customers are not counted.
func (s *Store) Metrics(ctx context.Context, country string) (Metrics, error) {
	where, args := countryFilter(country)
	var m Metrics
	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(DISTINCT CASE WHEN customer_id <> '' THEN customer_id END),
               COUNT(DISTINCT invoice_no),
               COUNT(DISTINCT stock_code),
               COALESCE(SUM(sales), 0),
               COUNT(*)
        FROM transactions`+where, args...).
		Scan(&m.UniqueCustomers, &m.UniqueInvoices, &m.UniqueProducts, &m.TotalSales, &m.Rows)
	return m, err
}

type MonthlySales struct {
	// Month is the first day of the calendar month, UTC.
	Month time.Time `json:"month"`
	Sales float64   `json:"sales"`
}

// MonthlySales sums sales per calendar month with data, in ascending order.
func (s *Store) MonthlySales(ctx context.Context, country string) ([]MonthlySales, error) {
	where, args := countryFilter(country)
	rows, err := s.db.QueryContext(ctx, `
        SELECT substr(invoice_date, 1, 7) AS month, SUM(sales)
        FROM transactions`+where+`
        GROUP BY month
        ORDER BY month`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonthlySales
	for rows.Next() {
		var month string
		var total float64
		if err := rows.Scan(&month, &total); err != nil {
			return nil, err
		}
		t, err := time.Parse("2006-01", month)
		if err != nil {
			return nil, fmt.Errorf("parse month %q: %w", month, err)
		}
		out = append(out, MonthlySales{Month: t, Sales: total})
	}
	return out, rows.Err()
}

type ProductSales struct {
	StockCode   string  `json:"stock_code"`
	Description string  `json:"description"`
	Sales       float64 `json:"sales"`
}

// TopProducts returns the limit best-selling stock codes; ties go to the smaller code.
func (s *Store) TopProducts(ctx context.Context, country string, limit int) ([]ProductSales, error) {
	where, args := countryFilter(country)
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, `
        SELECT stock_code, COALESCE(MIN(NULLIF(description, '')), ''), SUM(sales) AS total
        FROM transactions`+where+`
        GROUP BY stock_code
        ORDER BY total DESC, stock_code ASC
        LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductSales
	for rows.Next() {
		var p ProductSales
		if err := rows.Scan(&p.StockCode, &p.Description, &p.Sales); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type CountrySales struct {
	Country string  `json:"country"`
	Sales   float64 `json:"sales"`
}

func (s *Store) SalesByCountry(ctx context.Context, country string) ([]CountrySales, error) {
	where, args := countryFilter(country)
	rows, err := s.db.QueryContext(ctx, `
        SELECT country, SUM(sales) AS total
        FROM transactions`+where+`
        GROUP BY country
        ORDER BY total DESC, country ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CountrySales
	for rows.Next() {
		var c CountrySales
		if err := rows.Scan(&c.Country, &c.Sales); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Transactions returns one page (1-based) of rows ordered by invoice date and number.
func (s *Store) Transactions(ctx context.Context, country string, page, pageSize int) ([]retail.Transaction, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	where, args := countryFilter(country)
	args = append(args, pageSize, (page-1)*pageSize)
	rows, err := s.db.QueryContext(ctx, `
        SELECT invoice_no, stock_code, description, quantity, invoice_date,
               unit_price, customer_id, country, sales
        FROM transactions`+where+`
        ORDER BY invoice_date, invoice_no, id
        LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []retail.Transaction
	for rows.Next() {
		var t retail.Transaction
		var description, customerID sql.NullString
		var unitPrice sql.NullFloat64
		var date string
		if err := rows.Scan(&t.InvoiceNo, &t.StockCode, &description, &t.Quantity, &date,
			&unitPrice, &customerID, &t.Country, &t.Sales); err != nil {
			return nil, err
		}
		if t.InvoiceDate, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("parse invoice date %q: %w", date, err)
		}
		t.Description = description.String
		t.UnitPrice = unitPrice.Float64
		t.CustomerID = customerID.String
		out = append(out, t)
	}
	return out, rows.Err()
}

type TrainingLog struct {
	ModelName  string    `json:"model_name"`
	Accuracy   float64   `json:"accuracy"`
	Precision  float64   `json:"precision"`
	Recall     float64   `json:"recall"`
	TrainedAt  time.Time `json:"trained_at"`
	DataPoints int       `json:"data_points"`
}

func (s *Store) SaveTrainingLog(ctx context.Context, entry TrainingLog) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO training_log (model_name, accuracy, precision, recall, trained_at, data_points)
        VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ModelName, entry.Accuracy, entry.Precision, entry.Recall,
		entry.TrainedAt.UTC().Format(time.RFC3339Nano), entry.DataPoints)
	return err
}

// LoadTrainingLog returns every recorded fit, newest first.
func (s *Store) LoadTrainingLog(ctx context.Context) ([]TrainingLog, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT model_name, accuracy, precision, recall, trained_at, data_points
        FROM training_log
        ORDER BY trained_at DESC, id DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		var trainedAt string
		if err := rows.Scan(&log.ModelName, &log.Accuracy, &log.Precision, &log.Recall, &trainedAt, &log.DataPoints); err != nil {
			return nil, err
		}
		if log.TrainedAt, err = time.Parse(time.RFC3339Nano, trainedAt); err != nil {
			return nil, fmt.Errorf("parse trained_at %q: %w", trainedAt, err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"custseg/retail"
)

// Supported character sets for the input tables.
const (
	EncodingUTF8        = "utf-8"
	EncodingLatin1      = "latin1"
	EncodingWindows1252 = "windows-1252"
)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006",
}

// NewDecodingReader wraps r so that it yields UTF-8 regardless of the source charset.
// A leading UTF-8 byte order mark is dropped.
func NewDecodingReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// normalizeHeader folds case, spaces and underscores so "Customer ID",
// "customer_id" and "CustomerID" resolve to the same column.
func normalizeHeader(name string) string {
	name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r == ' ' || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type columnIndex map[string]int

func indexHeader(header []string) (columnIndex, error) {
	idx := make(columnIndex, len(header))
	for i, name := range header {
		key := normalizeHeader(name)
		if key == "" {
			continue
		}
		if _, dup := idx[key]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		idx[key] = i
	}
	return idx, nil
}

func (c columnIndex) require(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := c[normalizeHeader(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c columnIndex) has(name string) bool {
	_, ok := c[normalizeHeader(name)]
	return ok
}

func (c columnIndex) get(record []string, name string) string {
	i, ok := c[normalizeHeader(name)]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

type rowError struct {
	line   int
	column string
	err    error
}

func (e *rowError) Error() string {
	return fmt.Sprintf("line %d: column %s: %v", e.line, e.column, e.err)
}

func (e *rowError) Unwrap() error { return e.err }

// rowParser collects the first conversion failure of a record.
type rowParser struct {
	cols   columnIndex
	record []string
	line   int
	err    error
}

func (p *rowParser) fail(column string, err error) {
	if p.err == nil {
		p.err = &rowError{line: p.line, column: column, err: err}
	}
}

func (p *rowParser) text(column string) string {
	return p.cols.get(p.record, column)
}

func (p *rowParser) float(column string) float64 {
	raw := p.text(column)
	if raw == "" {
		p.fail(column, errors.New("empty value"))
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(column, err)
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		p.fail(column, fmt.Errorf("non-finite value %q", raw))
	}
	return v
}

// integer accepts "12" and "12.0".
func (p *rowParser) integer(column string) int64 {
	raw := p.text(column)
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v
	}
	f := p.float(column)
	if f != math.Trunc(f) {
		p.fail(column, fmt.Errorf("%q is not a whole number", raw))
	}
	return int64(f)
}

func (p *rowParser) date(column string) time.Time {
	raw := p.text(column)
	t, err := ParseDate(raw)
	if err != nil {
		p.fail(column, err)
	}
	return t
}

// ParseDate accepts the date layouts seen in retail exports.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

// NormalizeCustomerID turns float-rendered ids such as "17850.0" into "17850".
// Missing markers become the empty string.
func NormalizeCustomerID(raw string) string {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "nan", "null", "none":
		return ""
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == math.Trunc(f) && !strings.ContainsAny(raw, "eE") {
		return strconv.FormatInt(int64(f), 10)
	}
	return raw
}

func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false
	reader.FieldsPerRecord = -1
	return reader
}

// ReadTransactions parses the cleaned transactions table. Sales falls back to
// Quantity*UnitPrice when the column is absent.
func ReadTransactions(r io.Reader) ([]retail.Transaction, error) {
	reader := newCSVReader(r)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("transactions: empty file")
		}
		return nil, fmt.Errorf("transactions: read header: %w", err)
	}
	cols, err := indexHeader(header)
	if err != nil {
		return nil, fmt.Errorf("transactions: %w", err)
	}
	if err := cols.require("InvoiceNo", "StockCode", "Quantity", "InvoiceDate", "CustomerID", "Country"); err != nil {
		return nil, fmt.Errorf("transactions: %w", err)
	}
	hasSales := cols.has("Sales")
	if !hasSales && !cols.has("UnitPrice") {
		return nil, errors.New("transactions: need a Sales or UnitPrice column")
	}

	var out []retail.Transaction
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("transactions: %w", err)
		}
		p := &rowParser{cols: cols, record: record, line: line}
		t := retail.Transaction{
			InvoiceNo:   p.text("InvoiceNo"),
			StockCode:   p.text("StockCode"),
			Description: p.text("Description"),
			Quantity:    p.integer("Quantity"),
			InvoiceDate: p.date("InvoiceDate"),
			CustomerID:  NormalizeCustomerID(p.text("CustomerID")),
			Country:     p.text("Country"),
		}
		if cols.has("UnitPrice") && p.text("UnitPrice") != "" {
			t.UnitPrice = p.float("UnitPrice")
		}
		if hasSales {
			t.Sales = p.float("Sales")
		} else {
			t.Sales = float64(t.Quantity) * t.UnitPrice
		}
		if t.InvoiceNo == "" {
			p.fail("InvoiceNo", errors.New("empty value"))
		}
		if p.err != nil {
			return nil, fmt.Errorf("transactions: %w", p.err)
		}
		out = append(out, t)
	}
	return out, nil
}

// ReadCustomers parses the per-customer aggregate table: the eight features and the cluster label.
func ReadCustomers(r io.Reader) ([]retail.CustomerAggregate, error) {
	reader := newCSVReader(r)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("customers: empty file")
		}
		return nil, fmt.Errorf("customers: read header: %w", err)
	}
	cols, err := indexHeader(header)
	if err != nil {
		return nil, fmt.Errorf("customers: %w", err)
	}
	if err := cols.require(
		"total_transactions", "total_products", "total_unique_products", "total_sales",
		"avg_product_value", "avg_cart_value", "min_cart_value", "max_cart_value", "Cluster",
	); err != nil {
		return nil, fmt.Errorf("customers: %w", err)
	}

	var out []retail.CustomerAggregate
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("customers: %w", err)
		}
		p := &rowParser{cols: cols, record: record, line: line}
		c := retail.CustomerAggregate{
			CustomerID:          NormalizeCustomerID(p.text("CustomerID")),
			TotalTransactions:   p.float("total_transactions"),
			TotalProducts:       p.float("total_products"),
			TotalUniqueProducts: p.float("total_unique_products"),
			TotalSales:          p.float("total_sales"),
			AvgProductValue:     p.float("avg_product_value"),
			AvgCartValue:        p.float("avg_cart_value"),
			MinCartValue:        p.float("min_cart_value"),
			MaxCartValue:        p.float("max_cart_value"),
			Cluster:             int(p.integer("Cluster")),
		}
		if p.err != nil {
			return nil, fmt.Errorf("customers: %w", p.err)
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, errors.New("customers: no rows")
	}
	return out, nil
}

// LoadTransactions opens path and reads it with the given charset.
func LoadTransactions(path, encoding string) ([]retail.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, err := NewDecodingReader(f, encoding)
	if err != nil {
		return nil, err
	}
	return ReadTransactions(r)
}

// LoadCustomers opens path and reads it with the given charset.
func LoadCustomers(path, encoding string) ([]retail.CustomerAggregate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, err := NewDecodingReader(f, encoding)
	if err != nil {
		return nil, err
	}
	return ReadCustomers(r)
}

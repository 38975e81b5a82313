package pipeline

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const transactionsCSV = `InvoiceNo,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID,Country,Sales
536365,85123A,WHITE HANGING HEART,6,2010-12-01 08:26:00,2.55,17850.0,United Kingdom,15.3
536366,22633,HAND WARMER,6,12/1/2010 08:28,1.85,,France,11.1
`

func TestReadTransactions(t *testing.T) {
	rows, err := ReadTransactions(strings.NewReader(transactionsCSV))
	if err != nil {
		t.Fatalf("ReadTransactions failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	first := rows[0]
	if first.InvoiceNo != "536365" || first.StockCode != "85123A" || first.Quantity != 6 {
		t.Errorf("unexpected first row: %+v", first)
	}
	if first.CustomerID != "17850" {
		t.Errorf("CustomerID = %q, want 17850", first.CustomerID)
	}
	if want := time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC); !first.InvoiceDate.Equal(want) {
		t.Errorf("InvoiceDate = %v, want %v", first.InvoiceDate, want)
	}
	if first.Sales != 15.3 {
		t.Errorf("Sales = %v, want 15.3", first.Sales)
	}

	second := rows[1]
	if second.CustomerID != "" {
		t.Errorf("missing CustomerID should be empty, got %q", second.CustomerID)
	}
	if second.Country != "France" {
		t.Errorf("Country = %q", second.Country)
	}
}

func TestReadTransactionsHeaderFolding(t *testing.T) {
	data := "invoice_no,Stock Code,QUANTITY,invoice date,unit_price,Customer ID,country\n" +
		"1,A,3,2011-01-05,2.5,12,Spain\n"
	rows, err := ReadTransactions(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ReadTransactions failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	// Sales is derived when the column is absent.
	if rows[0].Sales != 7.5 {
		t.Errorf("Sales = %v, want 7.5", rows[0].Sales)
	}
}

func TestReadTransactionsErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"empty", "", "empty file"},
		{"missing columns", "InvoiceNo,StockCode\n1,A\n", "missing columns"},
		{"no sales source", "InvoiceNo,StockCode,Quantity,InvoiceDate,CustomerID,Country\n", "Sales or UnitPrice"},
		{"bad quantity", "InvoiceNo,StockCode,Quantity,InvoiceDate,CustomerID,Country,Sales\n1,A,x,2011-01-05,1,UK,1\n", "line 2"},
		{"bad date", "InvoiceNo,StockCode,Quantity,InvoiceDate,CustomerID,Country,Sales\n1,A,1,yesterday,1,UK,1\n", "unrecognised date"},
		{"duplicate column", "InvoiceNo,Invoice No\n", "duplicate column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTransactions(strings.NewReader(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

const customersCSV = `CustomerID,total_transactions,total_products,total_unique_products,total_sales,avg_product_value,avg_cart_value,min_cart_value,max_cart_value,Cluster
12346.0,1,1,1,77183.6,77183.6,77183.6,77183.6,77183.6,2
12347,7,2458,103,4310.0,1.75,615.71,224.82,1294.32,0
`

func TestReadCustomers(t *testing.T) {
	rows, err := ReadCustomers(strings.NewReader(customersCSV))
	if err != nil {
		t.Fatalf("ReadCustomers failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].CustomerID != "12346" || rows[0].Cluster != 2 {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].TotalProducts != 2458 || rows[1].MaxCartValue != 1294.32 {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
}

func TestReadCustomersErrors(t *testing.T) {
	header := "total_transactions,total_products,total_unique_products,total_sales,avg_product_value,avg_cart_value,min_cart_value,max_cart_value,Cluster\n"
	tests := []struct {
		name string
		data string
	}{
		{"header only", header},
		{"missing cluster", strings.TrimSuffix(header, ",Cluster\n") + "\n1,1,1,1,1,1,1,1\n"},
		{"non numeric", header + "1,1,1,abc,1,1,1,1,0\n"},
		{"fractional cluster", header + "1,1,1,1,1,1,1,1,0.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCustomers(strings.NewReader(tt.data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewDecodingReader(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
		input    []byte
		want     string
	}{
		{"utf-8 bom", "utf-8", []byte("\xef\xbb\xbfCaf\xc3\xa9"), "Café"},
		{"default", "", []byte("Caf\xc3\xa9"), "Café"},
		{"latin1", "latin1", []byte("Caf\xe9"), "Café"},
		{"windows-1252", "windows-1252", []byte("\x80 5"), "€ 5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewDecodingReader(bytes.NewReader(tt.input), tt.encoding)
			if err != nil {
				t.Fatalf("NewDecodingReader failed: %v", err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := NewDecodingReader(bytes.NewReader(nil), "ebcdic"); err == nil {
		t.Error("expected error for unsupported encoding")
	}
}

func TestLoadTransactionsLatin1(t *testing.T) {
	data := []byte("InvoiceNo,StockCode,Description,Quantity,InvoiceDate,CustomerID,Country,Sales\n" +
		"1,A,CR\xc8ME BRUL\xc9E,2,2011-03-01 10:00:00,99,France,4.5\n")
	path := filepath.Join(t.TempDir(), "tx.csv")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	rows, err := LoadTransactions(path, EncodingLatin1)
	if err != nil {
		t.Fatalf("LoadTransactions failed: %v", err)
	}
	if rows[0].Description != "CRÈME BRULÉE" {
		t.Errorf("Description = %q", rows[0].Description)
	}
}

func TestNormalizeCustomerID(t *testing.T) {
	tests := map[string]string{
		"17850.0": "17850",
		"17850":   "17850",
		" 12 ":    "12",
		"":        "",
		"NaN":     "",
		"C-001":   "C-001",
	}
	for in, want := range tests {
		if got := NormalizeCustomerID(in); got != want {
			t.Errorf("NormalizeCustomerID(%q) = %q, want %q", in, got, want)
		}
	}
}

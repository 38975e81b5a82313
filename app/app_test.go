package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"custseg/config"
	"custseg/ml"
)

func writeFixtures(t *testing.T, dir string, counts map[int]int) *config.Config {
	t.Helper()

	var customers strings.Builder
	customers.WriteString("CustomerID,total_transactions,total_products,total_unique_products,total_sales,avg_product_value,avg_cart_value,min_cart_value,max_cart_value,Cluster\n")
	id := 10000
	for cluster := 0; cluster < 3; cluster++ {
		scale := float64(cluster*10 + 1)
		for i := 0; i < counts[cluster]; i++ {
			jitter := float64(i%7) * 0.1
			fmt.Fprintf(&customers, "%d.0,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,%d\n",
				id,
				scale+jitter, 20*scale+jitter, 5*scale+jitter, 500*scale+jitter,
				3*scale+jitter, 50*scale+jitter, 10*scale+jitter, 100*scale+jitter,
				cluster)
			id++
		}
	}

	transactions := "InvoiceNo,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID,Country,Sales\n" +
		"536365,85123A,WHITE HANGING HEART,6,2010-12-01 08:26:00,2.55,17850.0,United Kingdom,15.3\n" +
		"536366,22633,HAND WARMER,6,2011-02-01 08:28:00,1.85,17851.0,France,11.1\n"

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(dir, "test.db")
	cfg.Data.TransactionsPath = filepath.Join(dir, "transactions.csv")
	cfg.Data.CustomersPath = filepath.Join(dir, "customers.csv")
	cfg.ML.NEstimators = 10
	if err := os.WriteFile(cfg.Data.TransactionsPath, []byte(transactions), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Data.CustomersPath, []byte(customers.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestBuild(t *testing.T) {
	cfg := writeFixtures(t, t.TempDir(), map[int]int{0: 40, 1: 12, 2: 8})
	ctx := context.Background()

	a, err := Build(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer a.Close()

	if !a.Predictor.Ready() {
		t.Fatal("predictor should be ready after Build")
	}
	if a.Training.CountsAfter[1] != 40 || a.Training.CountsAfter[2] != 40 {
		t.Errorf("classes not balanced: %v", a.Training.CountsAfter)
	}
	if a.Ingestion.Transactions != 2 || a.Ingestion.Customers != 60 {
		t.Errorf("unexpected ingestion stats: %+v", a.Ingestion)
	}

	label, err := a.Predictor.PredictVector(ctx, ml.CustomerFeatureVector{
		TotalTransactions: 21, TotalProducts: 420, TotalUniqueProducts: 105, TotalSales: 10500,
		AvgProductValue: 63, AvgCartValue: 1050, MinCartValue: 210, MaxCartValue: 2100,
	})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if label != 2 {
		t.Errorf("label = %d, want 2", label)
	}

	logs, err := a.Store.LoadTrainingLog(ctx)
	if err != nil {
		t.Fatalf("LoadTrainingLog failed: %v", err)
	}
	if len(logs) != 1 || logs[0].ModelName != ml.ModelRandomForest || logs[0].DataPoints != a.Training.TrainSize {
		t.Errorf("unexpected training log: %+v", logs)
	}

	countries := a.Dashboard.Countries()
	if len(countries) != 3 || countries[0] != "All" {
		t.Errorf("Countries = %v", countries)
	}
}

func TestBuildTwiceDoesNotDuplicateRows(t *testing.T) {
	cfg := writeFixtures(t, t.TempDir(), map[int]int{0: 20, 1: 10, 2: 10})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		a, err := Build(ctx, cfg, nil)
		if err != nil {
			t.Fatalf("Build %d failed: %v", i, err)
		}
		customers, err := a.Store.Customers(ctx)
		a.Close()
		if err != nil {
			t.Fatal(err)
		}
		if len(customers) != 40 {
			t.Fatalf("run %d: got %d customers, want 40", i, len(customers))
		}
	}
}

func TestBuildFailures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		cfg := writeFixtures(t, t.TempDir(), map[int]int{0: 20, 1: 10, 2: 10})
		cfg.Data.CustomersPath += ".missing"
		if _, err := Build(context.Background(), cfg, nil); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("class too small to oversample", func(t *testing.T) {
		cfg := writeFixtures(t, t.TempDir(), map[int]int{0: 20, 1: 10, 2: 3})
		_, err := Build(context.Background(), cfg, nil)
		if err == nil || !strings.Contains(err.Error(), "train predictor") {
			t.Fatalf("expected training error, got %v", err)
		}
	})
}

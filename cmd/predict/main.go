// Command predict trains on the customer table and classifies one customer given on the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"custseg/config"
	"custseg/ml"
	"custseg/pipeline"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	schema := ml.CustomerSchema()
	values := make(map[string]*float64, schema.Len())
	for _, f := range schema.Features() {
		values[f.Name] = flag.Float64(f.Name, 0, fmt.Sprintf("%s (%s)", f.Label, f.Unit))
	}
	flag.Parse()

	// only flags given explicitly become columns, so omissions are reported by the schema
	var frame ml.Frame
	flag.Visit(func(f *flag.Flag) {
		if v, ok := values[f.Name]; ok {
			frame.Add(f.Name, *v)
		}
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	customers, err := pipeline.LoadCustomers(cfg.Data.CustomersPath, cfg.Data.Encoding)
	if err != nil {
		log.Fatalf("failed to load customers: %v", err)
	}

	ctx := context.Background()
	predictor := ml.NewPredictor(schema, cfg.Predictor())
	if _, err := predictor.FitAggregates(ctx, customers); err != nil {
		log.Fatalf("failed to train: %v", err)
	}

	label, err := predictor.Predict(ctx, frame)
	var invalid *ml.ValidationError
	if errors.As(err, &invalid) {
		fmt.Fprintln(os.Stderr, invalid.Error())
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("prediction failed: %v", err)
	}
	fmt.Printf("Predicted cluster: %d\n", label)
}

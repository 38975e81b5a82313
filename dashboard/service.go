// Package dashboard computes the sales overview shown on the main page.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"custseg/db"
	"custseg/retail"
)

// AllCountries is the filter value that selects every row.
const AllCountries = "All"

var ErrUnknownCountry = errors.New("unknown country")

// Source is the query surface the dashboard reads from. *db.Store implements it.
type Source interface {
	Countries(ctx context.Context) ([]string, error)
	Metrics(ctx context.Context, country string) (db.Metrics, error)
	MonthlySales(ctx context.Context, country string) ([]db.MonthlySales, error)
	TopProducts(ctx context.Context, country string, limit int) ([]db.ProductSales, error)
	SalesByCountry(ctx context.Context, country string) ([]db.CountrySales, error)
	Transactions(ctx context.Context, country string, page, pageSize int) ([]retail.Transaction, error)
}

type Config struct {
	CacheSize   int `yaml:"cache_size"`
	PageSize    int `yaml:"page_size"`
	TopProducts int `yaml:"top_products"`
}

func DefaultConfig() Config {
	return Config{CacheSize: 64, PageSize: 50, TopProducts: 10}
}

// MonthPoint is the sales total of one calendar month, labelled by its last day.
type MonthPoint struct {
	MonthEnd time.Time `json:"month_end"`
	Sales    float64   `json:"sales"`
}

type Summary struct {
	Country        string            `json:"country"`
	Metrics        db.Metrics        `json:"metrics"`
	Monthly        []MonthPoint      `json:"monthly"`
	TopProducts    []db.ProductSales `json:"top_products"`
	SalesByCountry []db.CountrySales `json:"sales_by_country"`
	Pages          int               `json:"pages"`
}

type Page struct {
	Number int
	Pages  int
	Rows   []retail.Transaction
}

// Service serves per-country summaries. The underlying tables never change after
// start-up, so cached summaries stay valid for the process lifetime.
type Service struct {
	source    Source
	config    Config
	cache     *lru.Cache[string, *Summary]
	countries []string
	known     map[string]bool
	log       *zap.Logger
}

func NewService(ctx context.Context, source Source, config Config, log *zap.Logger) (*Service, error) {
	defaults := DefaultConfig()
	if config.CacheSize <= 0 {
		config.CacheSize = defaults.CacheSize
	}
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	if config.TopProducts <= 0 {
		config.TopProducts = defaults.TopProducts
	}
	if log == nil {
		log = zap.NewNop()
	}

	cache, err := lru.New[string, *Summary](config.CacheSize)
	if err != nil {
		return nil, err
	}
	countries, err := source.Countries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	sort.Strings(countries)
	known := make(map[string]bool, len(countries))
	for _, c := range countries {
		known[c] = true
	}

	return &Service{
		source:    source,
		config:    config,
		cache:     cache,
		countries: countries,
		known:     known,
		log:       log,
	}, nil
}

// Countries returns the filter options: "All" followed by the sorted distinct countries.
func (s *Service) Countries() []string {
	out := make([]string, 0, len(s.countries)+1)
	out = append(out, AllCountries)
	return append(out, s.countries...)
}

// Resolve maps a filter value to a store filter. "" and "All" select everything.
func (s *Service) Resolve(country string) (string, error) {
	if country == "" || country == AllCountries {
		return "", nil
	}
	if !s.known[country] {
		return "", fmt.Errorf("%w: %q", ErrUnknownCountry, country)
	}
	return country, nil
}

func (s *Service) PageSize() int {
	return s.config.PageSize
}

func (s *Service) Summary(ctx context.Context, country string) (*Summary, error) {
	filter, err := s.Resolve(country)
	if err != nil {
		return nil, err
	}
	if cached, ok := s.cache.Get(filter); ok {
		return cached, nil
	}

	start := time.Now()
	summary, err := s.build(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.cache.Add(filter, summary)
	s.log.Debug("dashboard summary computed",
		zap.String("country", filter),
		zap.Duration("took", time.Since(start)))
	return summary, nil
}

func (s *Service) build(ctx context.Context, country string) (*Summary, error) {
	metrics, err := s.source.Metrics(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	monthly, err := s.source.MonthlySales(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("monthly sales: %w", err)
	}
	products, err := s.source.TopProducts(ctx, country, s.config.TopProducts)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	byCountry, err := s.source.SalesByCountry(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("sales by country: %w", err)
	}

	return &Summary{
		Country:        country,
		Metrics:        metrics,
		Monthly:        FillMonths(monthly),
		TopProducts:    products,
		SalesByCountry: byCountry,
		Pages:          pageCount(metrics.Rows, s.config.PageSize),
	}, nil
}

// Page returns one page of the filtered data table. Out-of-range pages are clamped.
func (s *Service) Page(ctx context.Context, country string, number int) (Page, error) {
	summary, err := s.Summary(ctx, country)
	if err != nil {
		return Page{}, err
	}
	if number < 1 {
		number = 1
	}
	if number > summary.Pages {
		number = summary.Pages
	}
	rows, err := s.source.Transactions(ctx, summary.Country, number, s.config.PageSize)
	if err != nil {
		return Page{}, fmt.Errorf("transactions page %d: %w", number, err)
	}
	return Page{Number: number, Pages: summary.Pages, Rows: rows}, nil
}

func pageCount(rows, size int) int {
	if rows <= 0 {
		return 1
	}
	return (rows + size - 1) / size
}

// FillMonths labels each month by its last day and inserts zero months between
// the first and last month with data.
func FillMonths(months []db.MonthlySales) []MonthPoint {
	if len(months) == 0 {
		return nil
	}
	totals := make(map[time.Time]float64, len(months))
	for _, m := range months {
		totals[firstOfMonth(m.Month)] += m.Sales
	}
	first := firstOfMonth(months[0].Month)
	last := firstOfMonth(months[len(months)-1].Month)

	var out []MonthPoint
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		out = append(out, MonthPoint{MonthEnd: m.AddDate(0, 1, -1), Sales: totals[m]})
	}
	return out
}

func firstOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

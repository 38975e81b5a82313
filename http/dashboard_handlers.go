package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"custseg/dashboard"
	"custseg/ml"
)

const dateDisplayLayout = "2006-01-02 15:04"

type metricCard struct {
	Label string
	Value string
}

type countryOption struct {
	Name     string
	Selected bool
}

type chartLink struct {
	Title string
	URL   string
}

type tableRow struct {
	InvoiceNo   string
	StockCode   string
	Description string
	Quantity    string
	InvoiceDate string
	UnitPrice   string
	CustomerID  string
	Country     string
	Sales       string
}

type formField struct {
	Name  string
	Label string
	Unit  string
	Value string
	Hint  string
}

type notice struct {
	Success bool
	Message string
}

type pageData struct {
	Countries []countryOption
	Country   string
	Metrics   []metricCard
	Charts    []chartLink
	Rows      []tableRow
	Page      int
	Pages     int
	PrevURL   string
	NextURL   string
	Fields    []formField
	Notice    *notice
}

func (h *Handlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))

	data, err := h.buildPage(r.Context(), query.Get("country"), page, nil)
	if errors.Is(err, dashboard.ErrUnknownCountry) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, data)
}

func (h *Handlers) handleChart(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("chart"), ".svg")
	if !ok {
		http.NotFound(w, r)
		return
	}
	kind, err := dashboard.ParseChartKind(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	var buf bytes.Buffer
	err = h.app.Dashboard.RenderChart(r.Context(), &buf, kind, r.URL.Query().Get("country"))
	if errors.Is(err, dashboard.ErrUnknownCountry) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=300")
	buf.WriteTo(w)
}

// buildPage assembles the dashboard for country. values holds previously submitted
// form input to echo back into the prediction form.
func (h *Handlers) buildPage(ctx context.Context, country string, pageNum int, values map[string]string) (*pageData, error) {
	dash := h.app.Dashboard
	summary, err := dash.Summary(ctx, country)
	if err != nil {
		return nil, err
	}
	page, err := dash.Page(ctx, country, pageNum)
	if err != nil {
		return nil, err
	}

	selected := dashboard.AllCountries
	if summary.Country != "" {
		selected = summary.Country
	}

	data := &pageData{
		Country: selected,
		Page:    page.Number,
		Pages:   page.Pages,
		Metrics: []metricCard{
			{Label: "Unique Customers", Value: dashboard.FormatCount(summary.Metrics.UniqueCustomers)},
			{Label: "Unique Invoices", Value: dashboard.FormatCount(summary.Metrics.UniqueInvoices)},
			{Label: "Unique Products", Value: dashboard.FormatCount(summary.Metrics.UniqueProducts)},
			{Label: "Total Sales", Value: dashboard.FormatCurrency(summary.Metrics.TotalSales)},
		},
		Charts: []chartLink{
			{Title: "Sales Over Time", URL: chartURL(dashboard.ChartMonthly, summary.Country)},
			{Title: "Top Products by Sales", URL: chartURL(dashboard.ChartProducts, summary.Country)},
			{Title: "Sales by Country", URL: chartURL(dashboard.ChartCountries, summary.Country)},
		},
		Fields: h.formFields(values),
	}

	for _, c := range dash.Countries() {
		data.Countries = append(data.Countries, countryOption{Name: c, Selected: c == selected})
	}
	if page.Number > 1 {
		data.PrevURL = pageURL(summary.Country, page.Number-1)
	}
	if page.Number < page.Pages {
		data.NextURL = pageURL(summary.Country, page.Number+1)
	}
	for _, t := range page.Rows {
		row := tableRow{
			InvoiceNo:   t.InvoiceNo,
			StockCode:   t.StockCode,
			Description: t.Description,
			Quantity:    strconv.FormatInt(t.Quantity, 10),
			InvoiceDate: t.InvoiceDate.Format(dateDisplayLayout),
			CustomerID:  t.CustomerID,
			Country:     t.Country,
			Sales:       dashboard.FormatCurrency(t.Sales),
		}
		if t.UnitPrice != 0 {
			row.UnitPrice = dashboard.FormatCurrency(t.UnitPrice)
		}
		data.Rows = append(data.Rows, row)
	}
	return data, nil
}

// formFields lists one input per schema feature, hinted with the historical range.
func (h *Handlers) formFields(values map[string]string) []formField {
	stats := make(map[string]ml.FeatureStat)
	for _, s := range h.app.Predictor.FeatureStats() {
		stats[s.Name] = s
	}

	features := h.app.Predictor.Schema().Features()
	fields := make([]formField, 0, len(features))
	for _, f := range features {
		field := formField{Name: f.Name, Label: f.Label, Unit: string(f.Unit), Value: values[f.Name]}
		if s, ok := stats[f.Name]; ok {
			format := func(v float64) string { return fmt.Sprintf("%.1f", v) }
			if f.Unit == ml.UnitCurrency {
				format = dashboard.FormatCurrency
			}
			field.Hint = fmt.Sprintf("min %s, mean %s, max %s", format(s.Min), format(s.Mean), format(s.Max))
		}
		fields = append(fields, field)
	}
	return fields
}

func chartURL(kind dashboard.ChartKind, country string) string {
	u := "/charts/" + string(kind) + ".svg"
	if country != "" {
		u += "?" + url.Values{"country": {country}}.Encode()
	}
	return u
}

func pageURL(country string, page int) string {
	q := url.Values{"page": {strconv.Itoa(page)}}
	if country != "" {
		q.Set("country", country)
	}
	return "/?" + q.Encode()
}

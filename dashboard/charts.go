package dashboard

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"custseg/db"
)

type ChartKind string

const (
	ChartMonthly   ChartKind = "monthly"
	ChartProducts  ChartKind = "products"
	ChartCountries ChartKind = "countries"
)

// maxCountryBars caps the sales-by-country chart.
const maxCountryBars = 15

var (
	accent     = color.RGBA{R: 0xFF, G: 0x69, B: 0xB4, A: 0xFF}
	background = color.RGBA{R: 0x2C, G: 0x33, B: 0x33, A: 0xFF}
	foreground = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	muted      = color.RGBA{R: 0xB0, G: 0xB0, B: 0xB0, A: 0xFF}
)

func ParseChartKind(s string) (ChartKind, error) {
	switch k := ChartKind(s); k {
	case ChartMonthly, ChartProducts, ChartCountries:
		return k, nil
	}
	return "", fmt.Errorf("unknown chart %q", s)
}

// RenderChart writes the requested chart for country as SVG.
func (s *Service) RenderChart(ctx context.Context, w io.Writer, kind ChartKind, country string) error {
	summary, err := s.Summary(ctx, country)
	if err != nil {
		return err
	}

	var p *plot.Plot
	switch kind {
	case ChartMonthly:
		p, err = MonthlyChart(summary.Monthly)
	case ChartProducts:
		p, err = ProductsChart(summary.TopProducts)
	case ChartCountries:
		p, err = CountriesChart(summary.SalesByCountry)
	default:
		return fmt.Errorf("unknown chart %q", kind)
	}
	if err != nil {
		return fmt.Errorf("build %s chart: %w", kind, err)
	}
	return WriteSVG(w, p)
}

func WriteSVG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(9*vg.Inch, 4*vg.Inch, "svg")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.BackgroundColor = background

	p.Title.TextStyle.Color = foreground
	for _, axis := range []*plot.Axis{&p.X, &p.Y} {
		axis.Label.TextStyle.Color = muted
		axis.Tick.Label.Color = muted
		axis.LineStyle.Color = muted
		axis.Tick.LineStyle.Color = muted
	}
	p.Y.Tick.Marker = moneyTicks{}
	return p
}

// MonthlyChart draws sales over time as a line.
func MonthlyChart(points []MonthPoint) (*plot.Plot, error) {
	p := newPlot("Sales Over Time", "Month", "Sales")
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
	if len(points) == 0 {
		return p, nil
	}

	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = float64(pt.MonthEnd.Unix())
		xys[i].Y = pt.Sales
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, err
	}
	line.Color = accent
	line.Width = vg.Points(2)
	p.Add(line, plotter.NewGrid())

	dots, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	dots.GlyphStyle.Color = accent
	p.Add(dots)
	return p, nil
}

// ProductsChart draws one bar per stock code.
func ProductsChart(products []db.ProductSales) (*plot.Plot, error) {
	p := newPlot(fmt.Sprintf("Top %d Products", len(products)), "Stock code", "Sales")
	names := make([]string, len(products))
	values := make(plotter.Values, len(products))
	for i, prod := range products {
		names[i] = prod.StockCode
		values[i] = prod.Sales
	}
	return barChart(p, names, values)
}

// CountriesChart draws the best-selling countries, at most 15 bars.
func CountriesChart(countries []db.CountrySales) (*plot.Plot, error) {
	if len(countries) > maxCountryBars {
		countries = countries[:maxCountryBars]
	}
	p := newPlot("Sales by Country", "", "Sales")
	names := make([]string, len(countries))
	values := make(plotter.Values, len(countries))
	for i, c := range countries {
		names[i] = c.Country
		values[i] = c.Sales
	}
	return barChart(p, names, values)
}

func barChart(p *plot.Plot, names []string, values plotter.Values) (*plot.Plot, error) {
	if len(values) == 0 {
		return p, nil
	}
	bars, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return nil, err
	}
	bars.Color = accent
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(names...)

	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter
	return p, nil
}

// moneyTicks labels the sales axis with grouped currency values.
type moneyTicks struct{}

func (moneyTicks) Ticks(lo, hi float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(lo, hi)
	for i := range ticks {
		if ticks[i].Label != "" {
			ticks[i].Label = FormatCompactCurrency(ticks[i].Value)
		}
	}
	return ticks
}

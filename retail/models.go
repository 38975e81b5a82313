package retail

import "time"

// Transaction is one cleaned invoice line.
type Transaction struct {
	InvoiceNo   string    `json:"invoice_no"`
	StockCode   string    `json:"stock_code"`
	Description string    `json:"description"`
	Quantity    int64     `json:"quantity"`
	InvoiceDate time.Time `json:"invoice_date"`
	UnitPrice   float64   `json:"unit_price"`
	CustomerID  string    `json:"customer_id"`
	Country     string    `json:"country"`
	Sales       float64   `json:"sales"`
}

// CustomerAggregate is a customer's purchase summary with the cluster assigned upstream.
type CustomerAggregate struct {
	CustomerID          string  `json:"customer_id"`
	TotalTransactions   float64 `json:"total_transactions"`
	TotalProducts       float64 `json:"total_products"`
	TotalUniqueProducts float64 `json:"total_unique_products"`
	TotalSales          float64 `json:"total_sales"`
	AvgProductValue     float64 `json:"avg_product_value"`
	AvgCartValue        float64 `json:"avg_cart_value"`
	MinCartValue        float64 `json:"min_cart_value"`
	MaxCartValue        float64 `json:"max_cart_value"`
	Cluster             int     `json:"cluster"`
}

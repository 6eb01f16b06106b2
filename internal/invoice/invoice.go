// Package invoice maps a stored sale and the company settings to a
// structured, printable document model. Rendering to print, PDF or
// HTML is a downstream concern.
package invoice

import (
	"strconv"
	"time"

	"queenpos/backend/internal/domain"
)

type Line struct {
	ProductName string  `json:"product_name"`
	UOMVal      int     `json:"uom_val"`
	Quantity    int     `json:"quantity"`
	Cartons     int     `json:"cartons"`
	Pieces      int     `json:"pieces"`
	PriceCtn    float64 `json:"price_ctn"`
	GrossAmount float64 `json:"gross_amount"`
	VATPercent  float64 `json:"vat_percent"`
	VATAmount   float64 `json:"vat_amount"`
	TotalIncl   float64 `json:"total_incl"`
}

type Totals struct {
	Quantity  int     `json:"quantity"`
	Cartons   int     `json:"cartons"`
	Subtotal  float64 `json:"subtotal"`
	VATAmount float64 `json:"vat_amount"`
	Total     float64 `json:"total"`
}

type Party struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	TRN     string `json:"trn,omitempty"`
}

type Document struct {
	InvoiceNo    string    `json:"invoice_no"`
	Date         time.Time `json:"date"`
	OrderDate    time.Time `json:"order_date"`
	DeliveryDate time.Time `json:"delivery_date"`
	Seller       Party     `json:"seller"`
	Customer     Party     `json:"customer"`
	SalesMan     string    `json:"salesman"`
	PaymentType  string    `json:"payment_type"`
	VehicleNo    string    `json:"vehicle_no"`
	Currency     string    `json:"currency"`
	CustCode     string    `json:"cust_code"`
	SiteCode     string    `json:"site_code"`
	DMID         string    `json:"dm_id"`
	Lines        []Line    `json:"lines"`
	Totals       Totals    `json:"totals"`
	QRPayload    string    `json:"qr_payload"`
	LogoURL      string    `json:"logo_url,omitempty"`
}

// Render is pure: it never mutates the sale and carries no state. Each
// line re-derives the carton/piece split from the line's own UOM; the
// result must agree with the quantityCtn stored on the sale item.
func Render(sale domain.Sale, settings domain.AppSettings) Document {
	lines := make([]Line, 0, len(sale.Items))
	totals := Totals{
		Subtotal:  sale.Subtotal,
		VATAmount: sale.VATAmount,
		Total:     sale.Total,
	}

	for _, item := range sale.Items {
		uomVal := domain.ParseUOM(item.UOM)
		line := Line{
			ProductName: item.ProductName,
			UOMVal:      uomVal,
			Quantity:    item.Quantity,
			Cartons:     item.Quantity / uomVal,
			Pieces:      item.Quantity % uomVal,
			PriceCtn:    item.PriceCtn,
			GrossAmount: item.GrossAmount,
			VATPercent:  item.VATPercent,
			VATAmount:   item.VATAmount,
			TotalIncl:   item.TotalIncl,
		}
		lines = append(lines, line)
		totals.Quantity += line.Quantity
		totals.Cartons += line.Cartons
	}

	return Document{
		InvoiceNo:    sale.InvoiceNo,
		Date:         sale.Date,
		OrderDate:    sale.OrderDate,
		DeliveryDate: sale.DeliveryDate,
		Seller: Party{
			Name:    settings.CompanyName,
			Address: settings.Address,
			Phone:   settings.Phone,
			TRN:     settings.VATNumber,
		},
		Customer: Party{
			Name:    sale.CustomerName,
			Address: sale.CustomerAddress,
			TRN:     sale.CustomerTRN,
		},
		SalesMan:    sale.SalesMan,
		PaymentType: sale.PaymentType,
		VehicleNo:   sale.VehicleNo,
		Currency:    sale.Currency,
		CustCode:    sale.CustCode,
		SiteCode:    sale.SiteCode,
		DMID:        sale.DMID,
		Lines:       lines,
		Totals:      totals,
		QRPayload:   QRPayload(sale, settings),
		LogoURL:     settings.LogoURL,
	}
}

// QRPayload reproduces the scannable identity string byte for byte:
// Seller:<name>|VAT:<vatNumber>|Date:<isoDate>|Total:<fixed2>|VATTotal:<fixed2>
func QRPayload(sale domain.Sale, settings domain.AppSettings) string {
	return "Seller:" + settings.CompanyName +
		"|VAT:" + settings.VATNumber +
		"|Date:" + sale.Date.UTC().Format(time.RFC3339) +
		"|Total:" + fixed2(sale.Total) +
		"|VATTotal:" + fixed2(sale.VATAmount)
}

func fixed2(val float64) string {
	return strconv.FormatFloat(val, 'f', 2, 64)
}

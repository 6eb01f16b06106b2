package invoice

import (
	"testing"
	"time"

	"queenpos/backend/internal/domain"
)

func sampleSettings() domain.AppSettings {
	return domain.AppSettings{
		CompanyName:   "QUEEN FOOD PRODUCT LTD",
		Address:       "Dammam Eastern Province Saudi Arabia",
		Phone:         "0560659793",
		VATNumber:     "35252630700003",
		VATPercent:    15,
		Currency:      "SR",
		InvoicePrefix: "20/2024-",
	}
}

func sampleSale() domain.Sale {
	date := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	return domain.Sale{
		ID:           "sale-1",
		InvoiceNo:    "20/2024-000042",
		CustomerName: "Al Noor Trading",
		CustomerTRN:  "310000000000003",
		Items: []domain.SaleItem{
			{
				ProductID:   "1",
				ProductName: "Drinko Float Pineapple 250ml X 24pcs",
				Quantity:    26,
				QuantityCtn: 1,
				PriceCtn:    672,
				GrossAmount: 28,
				VATPercent:  15,
				VATAmount:   109.2,
				TotalIncl:   837.2,
				UOM:         "24",
			},
			{
				ProductID:   "3",
				ProductName: "Mughal Dry Whole Chili 40gm X 60pcs",
				Quantity:    60,
				QuantityCtn: 1,
				PriceCtn:    4800,
				GrossAmount: 80,
				VATPercent:  15,
				VATAmount:   720,
				TotalIncl:   5520,
				UOM:         "60",
			},
		},
		Subtotal:     5528,
		VATAmount:    829.2,
		Total:        6357.2,
		Date:         date,
		OrderDate:    date,
		DeliveryDate: date,
		SalesMan:     "Admin",
		PaymentType:  domain.DefaultPaymentType,
		VehicleNo:    domain.DefaultVehicleNo,
		Currency:     domain.DefaultCurrency,
		CustCode:     domain.DefaultCustCode,
		SiteCode:     domain.DefaultSiteCode,
		DMID:         domain.DefaultDMID,
	}
}

func TestRenderCartonPieceSplit(t *testing.T) {
	doc := Render(sampleSale(), sampleSettings())

	if len(doc.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(doc.Lines))
	}

	first := doc.Lines[0]
	if first.UOMVal != 24 {
		t.Fatalf("expected uom 24, got %d", first.UOMVal)
	}
	if first.Cartons != 1 || first.Pieces != 2 {
		t.Fatalf("expected 1 carton + 2 pieces for qty 26, got %d/%d", first.Cartons, first.Pieces)
	}

	second := doc.Lines[1]
	if second.Cartons != 1 || second.Pieces != 0 {
		t.Fatalf("expected 1 carton + 0 pieces for qty 60 at uom 60, got %d/%d", second.Cartons, second.Pieces)
	}

	// The re-derived split must agree with the quantityCtn stored at
	// checkout time.
	sale := sampleSale()
	for i, line := range doc.Lines {
		if line.Cartons != sale.Items[i].QuantityCtn {
			t.Fatalf("line %d: carton split %d disagrees with stored %d", i, line.Cartons, sale.Items[i].QuantityCtn)
		}
	}

	if doc.Totals.Quantity != 86 {
		t.Fatalf("expected total quantity 86, got %d", doc.Totals.Quantity)
	}
	if doc.Totals.Cartons != 2 {
		t.Fatalf("expected total cartons 2, got %d", doc.Totals.Cartons)
	}
	if doc.Totals.Total != 6357.2 {
		t.Fatalf("expected total 6357.20, got %.2f", doc.Totals.Total)
	}
}

func TestRenderUnparsableUOMDefaults(t *testing.T) {
	sale := sampleSale()
	sale.Items = sale.Items[:1]
	sale.Items[0].UOM = "dozen"

	doc := Render(sale, sampleSettings())
	if doc.Lines[0].UOMVal != domain.DefaultUOM {
		t.Fatalf("expected default uom %d, got %d", domain.DefaultUOM, doc.Lines[0].UOMVal)
	}
	if doc.Lines[0].Cartons != 1 || doc.Lines[0].Pieces != 2 {
		t.Fatalf("expected 1/2 split at default uom, got %d/%d", doc.Lines[0].Cartons, doc.Lines[0].Pieces)
	}
}

func TestRenderSnapshotsParties(t *testing.T) {
	doc := Render(sampleSale(), sampleSettings())

	if doc.Seller.Name != "QUEEN FOOD PRODUCT LTD" || doc.Seller.TRN != "35252630700003" {
		t.Fatalf("unexpected seller party: %+v", doc.Seller)
	}
	if doc.Customer.Name != "Al Noor Trading" || doc.Customer.TRN != "310000000000003" {
		t.Fatalf("unexpected customer party: %+v", doc.Customer)
	}
	if doc.PaymentType != "Credit" || doc.VehicleNo != "KZA-4177" {
		t.Fatalf("unexpected logistics fields: %+v", doc)
	}
}

func TestQRPayloadExactFormat(t *testing.T) {
	payload := QRPayload(sampleSale(), sampleSettings())

	want := "Seller:QUEEN FOOD PRODUCT LTD" +
		"|VAT:35252630700003" +
		"|Date:2024-06-15T10:30:00Z" +
		"|Total:6357.20" +
		"|VATTotal:829.20"
	if payload != want {
		t.Fatalf("qr payload mismatch:\n got %q\nwant %q", payload, want)
	}
}

func TestRenderIsPure(t *testing.T) {
	sale := sampleSale()
	settings := sampleSettings()

	_ = Render(sale, settings)

	if sale.Items[0].Quantity != 26 || sale.Total != 6357.2 {
		t.Fatalf("render must not mutate the sale: %+v", sale)
	}
}

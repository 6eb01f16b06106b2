package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"queenpos/backend/internal/domain"
	"queenpos/backend/internal/store"
)

func TestDistributeAndCheckoutConserveStock(t *testing.T) {
	databaseURL := os.Getenv("QUEENPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set QUEENPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prd-it-%d", stamp)
	salesmanID := fmt.Sprintf("usr-it-%d", stamp)
	saleID := fmt.Sprintf("sale-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM salesman_stocks WHERE salesman_id = $1`, salesmanID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.CreateProduct(ctx, domain.Product{
		ID:            productID,
		Name:          "Integration Pineapple 250ml X 24pcs",
		SKU:           "IT-58064",
		Category:      "Beverage",
		PurchasePrice: 20,
		SalePrice:     28,
		Stock:         50,
		UOM:           "24",
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	allotment, err := s.DistributeStock(ctx, domain.SalesmanStock{
		SalesmanID:    salesmanID,
		ProductID:     productID,
		Stock:         24,
		AssignedPrice: 30,
	})
	if err != nil {
		t.Fatalf("distribute stock: %v", err)
	}
	if allotment.ProductName == "" || allotment.SKU == "" {
		t.Fatalf("expected denormalized product fields, got %+v", allotment)
	}

	catalog, err := s.GetProductByID(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if catalog.Stock != 26 {
		t.Fatalf("expected catalog stock 26 after distribution, got %d", catalog.Stock)
	}

	// Over-distribution must leave both sides untouched.
	if _, err := s.DistributeStock(ctx, domain.SalesmanStock{
		SalesmanID:    salesmanID,
		ProductID:     productID,
		Stock:         100,
		AssignedPrice: 30,
	}); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	now := time.Now().UTC()
	sale := domain.Sale{
		ID:           saleID,
		InvoiceNo:    fmt.Sprintf("IT-%d", stamp),
		CustomerName: domain.WalkInCustomerName,
		Items: []domain.SaleItem{{
			ProductID:   productID,
			ProductName: "Integration Pineapple 250ml X 24pcs",
			Quantity:    24,
			GrossAmount: 720,
			VATPercent:  15,
			VATAmount:   108,
			TotalIncl:   828,
			UOM:         "24",
		}},
		Subtotal:     720,
		VATAmount:    108,
		Total:        828,
		Date:         now,
		OrderDate:    now,
		DeliveryDate: now,
		SalesMan:     "Integration Tester",
		SalesmanID:   salesmanID,
		PaymentType:  domain.DefaultPaymentType,
		VehicleNo:    domain.DefaultVehicleNo,
		Currency:     domain.DefaultCurrency,
		CustCode:     domain.DefaultCustCode,
		SiteCode:     domain.DefaultSiteCode,
		DMID:         domain.DefaultDMID,
	}
	if _, err := s.CreateSale(ctx, sale, []domain.StockDebit{{
		ProductID:  productID,
		SalesmanID: salesmanID,
		Quantity:   24,
	}}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	allotments, err := s.ListAllotments(ctx, salesmanID)
	if err != nil {
		t.Fatalf("list allotments: %v", err)
	}
	remaining := 0
	for _, a := range allotments {
		remaining += a.Stock
	}
	if remaining != 0 {
		t.Fatalf("expected allotment fully consumed, got %d remaining", remaining)
	}

	catalog, err = s.GetProductByID(ctx, productID)
	if err != nil {
		t.Fatalf("get product after sale: %v", err)
	}
	if catalog.Stock != 26 {
		t.Fatalf("salesman sale must not touch catalog stock, got %d", catalog.Stock)
	}

	fetched, err := s.GetSaleByID(ctx, saleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(fetched.Items) != 1 || fetched.Items[0].Quantity != 24 {
		t.Fatalf("unexpected sale items: %+v", fetched.Items)
	}
}

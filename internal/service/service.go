package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"queenpos/backend/internal/domain"
	"queenpos/backend/internal/invoice"
	"queenpos/backend/internal/store"
	"queenpos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// InsightGenerator produces an advisory business summary. Failures are
// tolerated everywhere it is consulted.
type InsightGenerator interface {
	Summarize(ctx context.Context, revenueTotal float64, saleCount int) (string, error)
}

type Service struct {
	repo     store.Repository
	insights InsightGenerator
}

func New(repo store.Repository, insights InsightGenerator) *Service {
	return &Service{
		repo:     repo,
		insights: insights,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.SKU = strings.TrimSpace(req.SKU)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" || req.SalePrice <= 0 || req.InitialStock < 0 {
		return domain.Product{}, fmt.Errorf("name and a positive sale price are required")
	}
	if strings.TrimSpace(req.UOM) == "" {
		req.UOM = "24"
	}

	product := domain.Product{
		ID:            xid.New("prd"),
		Name:          req.Name,
		SKU:           req.SKU,
		Category:      req.Category,
		PurchasePrice: req.PurchasePrice,
		SalePrice:     req.SalePrice,
		Stock:         req.InitialStock,
		UOM:           req.UOM,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", created.ID, fmt.Sprintf("name=%s,price=%.2f,stock=%d", created.Name, created.SalePrice, created.Stock))
	return *created, nil
}

// SellableCatalog resolves the view a cart is built against. Admins see
// the full catalog; salesmen see only their own allotments, aggregated
// per product and priced at the assigned price of the newest allotment.
func (s *Service) SellableCatalog(ctx context.Context) ([]domain.SellableItem, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("authenticated actor required")
	}

	if actor.Role == domain.RoleAdmin {
		products, err := s.repo.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		items := make([]domain.SellableItem, 0, len(products))
		for _, p := range products {
			items = append(items, domain.SellableItem{
				ProductID: p.ID,
				Name:      p.Name,
				SKU:       p.SKU,
				UOM:       p.UOM,
				Stock:     p.Stock,
				UnitPrice: p.SalePrice,
			})
		}
		return items, nil
	}

	allotments, err := s.repo.ListAllotments(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	byProduct := make(map[string]*domain.SellableItem, len(allotments))
	order := make([]string, 0, len(allotments))
	for _, a := range allotments {
		item, exists := byProduct[a.ProductID]
		if !exists {
			item = &domain.SellableItem{
				ProductID: a.ProductID,
				Name:      a.ProductName,
				SKU:       a.SKU,
				UOM:       a.UOM,
			}
			byProduct[a.ProductID] = item
			order = append(order, a.ProductID)
		}
		item.Stock += a.Stock
		item.UnitPrice = a.AssignedPrice
	}

	items := make([]domain.SellableItem, 0, len(order))
	for _, id := range order {
		items = append(items, *byProduct[id])
	}
	return items, nil
}

// AddCartLine adds one unit of the product to the cart: an existing
// line is incremented, otherwise a new line is appended at the view
// price. Products with no available stock are rejected.
func (s *Service) AddCartLine(ctx context.Context, lines []domain.CartLine, productID string) ([]domain.CartLine, error) {
	view, err := s.SellableCatalog(ctx)
	if err != nil {
		return nil, err
	}

	var item *domain.SellableItem
	for i := range view {
		if view[i].ProductID == productID {
			item = &view[i]
			break
		}
	}
	if item == nil {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
	}
	if item.Stock <= 0 {
		return nil, fmt.Errorf("%w: %s is out of stock", store.ErrInsufficientStock, item.Name)
	}

	updated := make([]domain.CartLine, len(lines))
	copy(updated, lines)
	for i := range updated {
		if updated[i].ProductID == productID {
			updated[i].Quantity++
			return updated, nil
		}
	}

	return append(updated, domain.CartLine{
		ProductID: item.ProductID,
		Name:      item.Name,
		UnitPrice: item.UnitPrice,
		Quantity:  1,
		UOM:       item.UOM,
	}), nil
}

func RemoveCartLine(lines []domain.CartLine, productID string) []domain.CartLine {
	result := make([]domain.CartLine, 0, len(lines))
	for _, line := range lines {
		if line.ProductID != productID {
			result = append(result, line)
		}
	}
	return result
}

// ComputeCartTotals recomputes from scratch on every call; totals are
// never cached across cart or rate changes.
func ComputeCartTotals(lines []domain.CartLine, vatPercent float64) domain.CartTotals {
	subtotal := 0.0
	for _, line := range lines {
		subtotal += line.UnitPrice * float64(line.Quantity)
	}
	vat := subtotal * vatPercent / 100
	return domain.CartTotals{
		Subtotal: round2(subtotal),
		VAT:      round2(vat),
		Total:    round2(subtotal + vat),
	}
}

func (s *Service) CartTotals(ctx context.Context, lines []domain.CartLine) (domain.CartTotals, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.CartTotals{}, err
	}
	return ComputeCartTotals(lines, settings.VATPercent), nil
}

// Checkout builds the sale from the actor's resolved view and persists
// it together with its stock debits. Validation runs to completion
// before anything is written; a cart line that cannot be satisfied
// fails the whole checkout.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.CheckoutResponse{}, fmt.Errorf("authenticated actor required")
	}
	if len(req.Lines) == 0 {
		return domain.CheckoutResponse{}, store.ErrEmptyCart
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	view, err := s.SellableCatalog(ctx)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	viewByProduct := make(map[string]domain.SellableItem, len(view))
	for _, item := range view {
		viewByProduct[item.ProductID] = item
	}

	customerName := domain.WalkInCustomerName
	customerAddress := ""
	customerTRN := ""
	if req.CustomerID != "" {
		customer, err := s.repo.GetCustomerByID(ctx, req.CustomerID)
		if err != nil {
			return domain.CheckoutResponse{}, err
		}
		customerName = customer.Name
		customerAddress = customer.Address
		customerTRN = customer.TRN
	}

	// Duplicate lines for the same product are folded together so the
	// stock check runs against the cart's aggregate demand, not each
	// line in isolation.
	lines := make([]domain.CartLine, 0, len(req.Lines))
	lineIdx := make(map[string]int, len(req.Lines))
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: non-positive quantity for %s", store.ErrInsufficientStock, line.ProductID)
		}
		if i, seen := lineIdx[line.ProductID]; seen {
			lines[i].Quantity += line.Quantity
			continue
		}
		lineIdx[line.ProductID] = len(lines)
		lines = append(lines, line)
	}

	vatPercent := settings.VATPercent
	items := make([]domain.SaleItem, 0, len(lines))
	debits := make([]domain.StockDebit, 0, len(lines))
	subtotal := 0.0

	for _, line := range lines {
		item, exists := viewByProduct[line.ProductID]
		if !exists {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: product %s not sellable for this actor", store.ErrNotFound, line.ProductID)
		}
		if item.Stock < line.Quantity {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: %s has %d, need %d", store.ErrInsufficientStock, item.Name, item.Stock, line.Quantity)
		}

		uomVal := domain.ParseUOM(item.UOM)
		price := item.UnitPrice
		qty := line.Quantity
		gross := price * float64(qty)
		subtotal += gross

		items = append(items, domain.SaleItem{
			ProductID:   item.ProductID,
			ProductName: item.Name,
			Quantity:    qty,
			QuantityCtn: qty / uomVal,
			PriceCtn:    round2(price * float64(uomVal)),
			GrossAmount: price,
			VATPercent:  vatPercent,
			VATAmount:   round2(gross * vatPercent / 100),
			TotalIncl:   round2(gross * (1 + vatPercent/100)),
			UOM:         item.UOM,
		})

		debit := domain.StockDebit{ProductID: item.ProductID, Quantity: qty}
		if actor.Role != domain.RoleAdmin {
			debit.SalesmanID = actor.UserID
		}
		debits = append(debits, debit)
	}

	invoiceNo, err := s.nextInvoiceNo(ctx, settings.InvoicePrefix)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	now := time.Now().UTC()
	sale := domain.Sale{
		ID:              uuid.NewString(),
		InvoiceNo:       invoiceNo,
		CustomerID:      req.CustomerID,
		CustomerName:    customerName,
		CustomerAddress: customerAddress,
		CustomerTRN:     customerTRN,
		Items:           items,
		Subtotal:        round2(subtotal),
		VATAmount:       round2(subtotal * vatPercent / 100),
		Total:           round2(subtotal * (1 + vatPercent/100)),
		Date:            now,
		OrderDate:       now,
		DeliveryDate:    now,
		SalesMan:        actor.Name,
		SalesmanID:      actor.UserID,
		PaymentType:     domain.DefaultPaymentType,
		VehicleNo:       domain.DefaultVehicleNo,
		Currency:        settings.Currency,
		CustCode:        domain.DefaultCustCode,
		SiteCode:        domain.DefaultSiteCode,
		DMID:            domain.DefaultDMID,
	}

	created, err := s.repo.CreateSale(ctx, sale, debits)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	s.logAudit(ctx, "checkout", created.ID, fmt.Sprintf("invoice=%s,total=%.2f,lines=%d", created.InvoiceNo, created.Total, len(created.Items)))
	return domain.CheckoutResponse{Sale: *created}, nil
}

func (s *Service) nextInvoiceNo(ctx context.Context, prefix string) (string, error) {
	seq, err := s.repo.NextInvoiceSequence(ctx)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		prefix = "20/2024-"
	}
	return fmt.Sprintf("%s%06d", prefix, seq), nil
}

// ListSales returns the full log for admins and only the actor's own
// sales for salesmen.
func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}

	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role == domain.RoleAdmin {
		return sales, nil
	}

	own := make([]domain.Sale, 0, len(sales))
	for _, sale := range sales {
		if sale.SalesmanID == actor.UserID {
			own = append(own, sale)
		}
	}
	return own, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) RenderInvoice(ctx context.Context, saleID string) (invoice.Document, error) {
	sale, err := s.repo.GetSaleByID(ctx, saleID)
	if err != nil {
		return invoice.Document{}, err
	}
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return invoice.Document{}, err
	}
	return invoice.Render(*sale, *settings), nil
}

// DistributeStock carves an allotment out of the catalog for one
// salesman. Repeated distributions append new allotment rows.
func (s *Service) DistributeStock(ctx context.Context, req domain.DistributeStockRequest) (domain.SalesmanStock, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.SalesmanStock{}, fmt.Errorf("admin role required")
	}
	if req.SalesmanID == "" || req.ProductID == "" {
		return domain.SalesmanStock{}, fmt.Errorf("salesman and product are required")
	}
	if req.Quantity <= 0 {
		return domain.SalesmanStock{}, fmt.Errorf("%w: quantity must be positive", store.ErrInsufficientStock)
	}
	if req.SellPrice <= 0 {
		return domain.SalesmanStock{}, fmt.Errorf("sell price must be positive")
	}

	created, err := s.repo.DistributeStock(ctx, domain.SalesmanStock{
		SalesmanID:    req.SalesmanID,
		ProductID:     req.ProductID,
		Stock:         req.Quantity,
		AssignedPrice: req.SellPrice,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return domain.SalesmanStock{}, err
	}

	s.logAudit(ctx, "stock_distribute", created.ID, fmt.Sprintf("salesman=%s,product=%s,qty=%d,price=%.2f", created.SalesmanID, created.ProductID, created.Stock, created.AssignedPrice))
	return *created, nil
}

func (s *Service) ListAllotments(ctx context.Context, salesmanID string) ([]domain.SalesmanStock, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("authenticated actor required")
	}
	if actor.Role != domain.RoleAdmin {
		salesmanID = actor.UserID
	}
	if salesmanID == "" {
		return s.repo.ListAllAllotments(ctx)
	}
	return s.repo.ListAllotments(ctx, salesmanID)
}

// ReceiveStock credits the catalog and overwrites the product's pricing
// baseline with the supplied cost and sale price.
func (s *Service) ReceiveStock(ctx context.Context, req domain.ReceiveStockRequest) (domain.Purchase, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Purchase{}, fmt.Errorf("admin role required")
	}
	if req.ProductID == "" || req.Quantity <= 0 {
		return domain.Purchase{}, fmt.Errorf("product and a positive quantity are required")
	}
	if req.Cost < 0 || req.SalePrice <= 0 {
		return domain.Purchase{}, fmt.Errorf("cost and sale price must be valid")
	}

	created, err := s.repo.ReceiveStock(ctx, domain.Purchase{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Cost:      req.Cost,
		Date:      time.Now().UTC(),
	}, req.SalePrice)
	if err != nil {
		return domain.Purchase{}, err
	}

	s.logAudit(ctx, "stock_receive", created.ID, fmt.Sprintf("product=%s,qty=%d,cost=%.2f,total=%.2f", created.ProductID, created.Quantity, created.Cost, created.Total))
	return *created, nil
}

func (s *Service) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	return s.repo.ListPurchases(ctx)
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, fmt.Errorf("customer name is required")
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:      req.Name,
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
		TRN:       strings.TrimSpace(req.TRN),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) ListSalesmen(ctx context.Context) ([]domain.User, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("admin role required")
	}
	return s.repo.ListUsers(ctx, domain.RoleSalesman)
}

func (s *Service) ApproveUser(ctx context.Context, req domain.ApproveUserRequest) (domain.User, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.User{}, fmt.Errorf("admin role required")
	}
	if req.UserID == "" {
		return domain.User{}, fmt.Errorf("user id is required")
	}

	approved, err := s.repo.ApproveUser(ctx, req.UserID)
	if err != nil {
		return domain.User{}, err
	}

	s.logAudit(ctx, "user_approve", approved.ID, fmt.Sprintf("email=%s", approved.Email))
	return *approved, nil
}

func (s *Service) GetSettings(ctx context.Context) (domain.AppSettings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.AppSettings{}, err
	}
	return *settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, settings domain.AppSettings) (domain.AppSettings, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.AppSettings{}, fmt.Errorf("admin role required")
	}

	updated, err := s.repo.UpdateSettings(ctx, settings)
	if err != nil {
		return domain.AppSettings{}, err
	}

	s.logAudit(ctx, "settings_update", "", fmt.Sprintf("vat=%.2f,company=%s", updated.VATPercent, updated.CompanyName))
	return *updated, nil
}

// DashboardSummary aggregates the sales log. The AI insight is
// advisory; a failing generator degrades to an empty insight.
func (s *Service) DashboardSummary(ctx context.Context) (domain.DashboardSummary, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.DashboardSummary{}, fmt.Errorf("admin role required")
	}

	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	revenue := 0.0
	qtyByProduct := make(map[string]*domain.TopSeller)
	for _, sale := range sales {
		revenue += sale.Total
		for _, item := range sale.Items {
			seller, exists := qtyByProduct[item.ProductID]
			if !exists {
				seller = &domain.TopSeller{ProductID: item.ProductID, ProductName: item.ProductName}
				qtyByProduct[item.ProductID] = seller
			}
			seller.Quantity += item.Quantity
		}
	}

	topSellers := make([]domain.TopSeller, 0, len(qtyByProduct))
	for _, seller := range qtyByProduct {
		topSellers = append(topSellers, *seller)
	}
	sort.Slice(topSellers, func(i, j int) bool {
		if topSellers[i].Quantity == topSellers[j].Quantity {
			return topSellers[i].ProductName < topSellers[j].ProductName
		}
		return topSellers[i].Quantity > topSellers[j].Quantity
	})
	if len(topSellers) > 5 {
		topSellers = topSellers[:5]
	}

	lowStock := 0
	for _, p := range products {
		if p.Stock <= 10 {
			lowStock++
		}
	}

	summary := domain.DashboardSummary{
		RevenueTotal:  round2(revenue),
		SaleCount:     len(sales),
		ProductCount:  len(products),
		LowStockCount: lowStock,
		TopSellers:    topSellers,
	}

	if s.insights != nil {
		insight, err := s.insights.Summarize(ctx, summary.RevenueTotal, summary.SaleCount)
		if err != nil {
			log.Printf("[service] WARN: insight generation failed: %v", err)
		} else {
			summary.Insight = insight
		}
	}

	return summary, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("admin role required")
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{UserID: "system", Name: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:        xid.New("audit"),
		ActorID:   actor.UserID,
		ActorName: actor.Name,
		ActorRole: actor.Role,
		Action:    action,
		EntityID:  entityID,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s: %v", action, entityID, err)
	}
}

func round2(val float64) float64 {
	return math.Round(val*100) / 100
}

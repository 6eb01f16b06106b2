package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"queenpos/backend/internal/domain"
	"queenpos/backend/internal/store"
	"queenpos/backend/internal/xid"
)

type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	productOrder []string
	allotments   []domain.SalesmanStock
	customers    map[string]domain.Customer
	usersByEmail map[string]domain.User
	sales        []domain.Sale
	salesByID    map[string]domain.Sale
	purchases    []domain.Purchase
	settings     domain.AppSettings
	invoiceSeq   int64
	auditLogs    []domain.AuditLog
}

// seedAdmin builds the initial admin account for dev/demo mode.
// Credentials come from SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD; if
// unset, hardcoded dev defaults are used with a warning. The memory
// store is never used in production (DATABASE_URL selects PostgreSQL).
func seedAdmin() map[string]domain.User {
	email := envOr("SEED_ADMIN_EMAIL", "admin@queenfood.com")
	password := envOr("SEED_ADMIN_PASSWORD", "admin123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD to override.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed password: %v", err)
	}
	return map[string]domain.User{
		email: {
			ID:           "admin",
			Name:         "Admin",
			Email:        email,
			Role:         domain.RoleAdmin,
			Status:       domain.UserStatusApproved,
			PasswordHash: string(hash),
			CreatedAt:    time.Now().UTC(),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	products := []domain.Product{
		{ID: "1", Name: "Drinko Float Pineapple 250ml X 24pcs", SKU: "58064", Category: "Beverage", PurchasePrice: 20, SalePrice: 28, Stock: 100, UOM: "24"},
		{ID: "2", Name: "Drinko Float Strawberry 250ml X 24pcs", SKU: "58065", Category: "Beverage", PurchasePrice: 20, SalePrice: 28, Stock: 50, UOM: "24"},
		{ID: "3", Name: "Mughal Dry Whole Chili 40gm X 60pcs", SKU: "59701", Category: "Spices", PurchasePrice: 60, SalePrice: 80, Stock: 30, UOM: "60"},
	}

	productMap := make(map[string]domain.Product, len(products))
	order := make([]string, 0, len(products))
	for _, p := range products {
		productMap[p.ID] = p
		order = append(order, p.ID)
	}

	return &Store{
		products:     productMap,
		productOrder: order,
		allotments:   make([]domain.SalesmanStock, 0, 32),
		customers:    make(map[string]domain.Customer),
		usersByEmail: seedAdmin(),
		sales:        make([]domain.Sale, 0, 64),
		salesByID:    make(map[string]domain.Sale),
		purchases:    make([]domain.Purchase, 0, 32),
		settings: domain.AppSettings{
			CompanyName:   "QUEEN FOOD PRODUCT LTD",
			Address:       "Dammam, Eastern Province, Saudi Arabia",
			Phone:         "0560659793",
			VATNumber:     "35252630700003",
			VATPercent:    15,
			Currency:      "SR",
			InvoicePrefix: "20/2024-",
		},
		auditLogs: make([]domain.AuditLog, 0, 128),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productOrder))
	for _, id := range s.productOrder {
		products = append(products, s.products[id])
	}
	return products, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.SalePrice <= 0 || product.Stock < 0 {
		return nil, fmt.Errorf("invalid product")
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if strings.TrimSpace(product.UOM) == "" {
		product.UOM = "24"
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, fmt.Errorf("product id %s already exists", product.ID)
	}

	s.products[product.ID] = product
	s.productOrder = append(s.productOrder, product.ID)
	created := product
	return &created, nil
}

func (s *Store) ListAllotments(_ context.Context, salesmanID string) ([]domain.SalesmanStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.SalesmanStock, 0, 8)
	for _, a := range s.allotments {
		if a.SalesmanID == salesmanID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (s *Store) ListAllAllotments(_ context.Context) ([]domain.SalesmanStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.SalesmanStock, len(s.allotments))
	copy(result, s.allotments)
	return result, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByEmail[normalizeEmail(email)]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(user.Email)
	if email == "" {
		return nil, fmt.Errorf("empty email")
	}
	if _, exists := s.usersByEmail[email]; exists {
		return nil, store.ErrDuplicateUser
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Email = email
	s.usersByEmail[email] = user
	created := user
	return &created, nil
}

func (s *Store) ApproveUser(_ context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for email, user := range s.usersByEmail {
		if user.ID == userID {
			user.Status = domain.UserStatusApproved
			s.usersByEmail[email] = user
			approved := user
			return &approved, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, role string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.usersByEmail))
	for _, u := range s.usersByEmail {
		if role != "" && u.Role != role {
			continue
		}
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		return cmpString(a.Email, b.Email)
	})
	return users, nil
}

// CreateSale validates every debit against its ledger before touching
// anything, then applies the decrements and appends the sale under the
// same lock. A reader can never observe the sale without its stock
// movement or the reverse.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale, debits []domain.StockDebit) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrEmptyCart
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Debits naming the same ledger entry are validated as one sum, so
	// repeated product lines cannot each pass against the starting stock.
	type ledgerKey struct {
		salesmanID string
		productID  string
	}
	required := make(map[ledgerKey]int, len(debits))
	for _, d := range debits {
		if d.Quantity <= 0 {
			return nil, fmt.Errorf("%w: non-positive debit for product %s", store.ErrInsufficientStock, d.ProductID)
		}
		required[ledgerKey{d.SalesmanID, d.ProductID}] += d.Quantity
	}
	for key, qty := range required {
		if key.salesmanID == "" {
			product, exists := s.products[key.productID]
			if !exists {
				return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, key.productID)
			}
			if product.Stock < qty {
				return nil, fmt.Errorf("%w: product %s has %d, need %d", store.ErrInsufficientStock, key.productID, product.Stock, qty)
			}
			continue
		}
		if s.allottedQty(key.salesmanID, key.productID) < qty {
			return nil, fmt.Errorf("%w: salesman %s product %s", store.ErrInsufficientStock, key.salesmanID, key.productID)
		}
	}

	for _, d := range debits {
		if d.SalesmanID == "" {
			product := s.products[d.ProductID]
			product.Stock -= d.Quantity
			s.products[d.ProductID] = product
			continue
		}
		s.debitAllotments(d.SalesmanID, d.ProductID, d.Quantity)
	}

	s.sales = append(s.sales, sale)
	s.salesByID[sale.ID] = sale
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) allottedQty(salesmanID string, productID string) int {
	total := 0
	for _, a := range s.allotments {
		if a.SalesmanID == salesmanID && a.ProductID == productID {
			total += a.Stock
		}
	}
	return total
}

// debitAllotments consumes the salesman's allotments oldest first.
// Callers must hold the write lock and have verified availability.
func (s *Store) debitAllotments(salesmanID string, productID string, qty int) {
	for i := range s.allotments {
		if qty == 0 {
			return
		}
		a := &s.allotments[i]
		if a.SalesmanID != salesmanID || a.ProductID != productID || a.Stock == 0 {
			continue
		}
		take := a.Stock
		if take > qty {
			take = qty
		}
		a.Stock -= take
		qty -= take
	}
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		result = append(result, cloneSale(sale))
	}
	return result, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) NextInvoiceSequence(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invoiceSeq++
	return s.invoiceSeq, nil
}

// DistributeStock moves qty from the catalog into a NEW allotment row.
// All-or-nothing: insufficient catalog stock leaves both ledgers alone.
func (s *Store) DistributeStock(_ context.Context, allotment domain.SalesmanStock) (*domain.SalesmanStock, error) {
	if allotment.Stock <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", store.ErrInsufficientStock)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[allotment.ProductID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.Stock < allotment.Stock {
		return nil, fmt.Errorf("%w: product %s has %d, need %d", store.ErrInsufficientStock, product.ID, product.Stock, allotment.Stock)
	}

	if allotment.ID == "" {
		allotment.ID = xid.New("alt")
	}
	if allotment.CreatedAt.IsZero() {
		allotment.CreatedAt = time.Now().UTC()
	}
	allotment.ProductName = product.Name
	allotment.SKU = product.SKU
	allotment.UOM = product.UOM

	product.Stock -= allotment.Stock
	s.products[product.ID] = product
	s.allotments = append(s.allotments, allotment)

	created := allotment
	return &created, nil
}

// ReceiveStock credits the catalog and resets the pricing baseline.
// Existing allotments keep their frozen assigned prices.
func (s *Store) ReceiveStock(_ context.Context, purchase domain.Purchase, salePrice float64) (*domain.Purchase, error) {
	if purchase.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", store.ErrInsufficientStock)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[purchase.ProductID]
	if !exists {
		return nil, store.ErrNotFound
	}

	product.Stock += purchase.Quantity
	product.PurchasePrice = purchase.Cost
	product.SalePrice = salePrice
	s.products[product.ID] = product

	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.Date.IsZero() {
		purchase.Date = time.Now().UTC()
	}
	purchase.ProductName = product.Name
	purchase.SalePrice = salePrice
	purchase.Total = float64(purchase.Quantity) * purchase.Cost
	s.purchases = append(s.purchases, purchase)

	created := purchase
	return &created, nil
}

func (s *Store) ListPurchases(_ context.Context) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Purchase, len(s.purchases))
	copy(result, s.purchases)
	return result, nil
}

func (s *Store) GetSettings(_ context.Context) (*domain.AppSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings := s.settings
	return &settings, nil
}

func (s *Store) UpdateSettings(_ context.Context, settings domain.AppSettings) (*domain.AppSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.VATPercent < 0 {
		return nil, fmt.Errorf("vat percent must not be negative")
	}
	settings = settings.FilledFrom(s.settings)
	s.settings = settings
	updated := settings
	return &updated, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("aud")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 || limit > len(s.auditLogs) {
		limit = len(s.auditLogs)
	}
	result := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.auditLogs[i])
	}
	return result, nil
}

func cloneSale(sale domain.Sale) domain.Sale {
	cloned := sale
	cloned.Items = make([]domain.SaleItem, len(sale.Items))
	copy(cloned.Items, sale.Items)
	return cloned
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cmpString(a string, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

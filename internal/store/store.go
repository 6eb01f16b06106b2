package store

import (
	"context"
	"errors"

	"queenpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("empty cart")
	ErrDuplicateUser     = errors.New("duplicate user")
	ErrPendingApproval   = errors.New("pending approval")
)

// Repository is the persistence boundary. Implementations must make
// CreateSale, DistributeStock and ReceiveStock atomic: either the record
// and every stock movement land together, or nothing changes.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	ListAllotments(ctx context.Context, salesmanID string) ([]domain.SalesmanStock, error)
	ListAllAllotments(ctx context.Context) ([]domain.SalesmanStock, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)

	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	ApproveUser(ctx context.Context, userID string) (*domain.User, error)
	ListUsers(ctx context.Context, role string) ([]domain.User, error)

	// CreateSale persists the sale and applies its stock debits in one
	// step: catalog rows for admin sales, the named salesman's allotments
	// (oldest first) otherwise. Any shortfall rejects the whole sale.
	CreateSale(ctx context.Context, sale domain.Sale, debits []domain.StockDebit) (*domain.Sale, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	NextInvoiceSequence(ctx context.Context) (int64, error)

	DistributeStock(ctx context.Context, allotment domain.SalesmanStock) (*domain.SalesmanStock, error)
	ReceiveStock(ctx context.Context, purchase domain.Purchase, salePrice float64) (*domain.Purchase, error)
	ListPurchases(ctx context.Context) ([]domain.Purchase, error)

	GetSettings(ctx context.Context) (*domain.AppSettings, error)
	UpdateSettings(ctx context.Context, settings domain.AppSettings) (*domain.AppSettings, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}

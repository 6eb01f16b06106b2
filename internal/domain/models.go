package domain

import (
	"strconv"
	"time"
)

type Product struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	SKU           string  `json:"sku"`
	Category      string  `json:"category"`
	PurchasePrice float64 `json:"purchase_price"`
	SalePrice     float64 `json:"sale_price"`
	Stock         int     `json:"stock"`
	UOM           string  `json:"uom"`
}

// UOMValue parses the units-per-carton string, falling back to 24 when
// the field is absent or unparsable.
func (p Product) UOMValue() int {
	return ParseUOM(p.UOM)
}

func ParseUOM(uom string) int {
	val, err := strconv.Atoi(uom)
	if err != nil || val <= 0 {
		return DefaultUOM
	}
	return val
}

type ProductCreateRequest struct {
	Name          string  `json:"name"`
	SKU           string  `json:"sku"`
	Category      string  `json:"category"`
	PurchasePrice float64 `json:"purchase_price"`
	SalePrice     float64 `json:"sale_price"`
	InitialStock  int     `json:"initial_stock"`
	UOM           string  `json:"uom"`
}

// SalesmanStock is one allotment of catalog stock assigned to a
// salesman. Repeated distributions of the same product append new
// allotments; they are never merged.
type SalesmanStock struct {
	ID            string    `json:"id"`
	SalesmanID    string    `json:"salesman_id"`
	ProductID     string    `json:"product_id"`
	ProductName   string    `json:"product_name"`
	SKU           string    `json:"sku"`
	UOM           string    `json:"uom"`
	Stock         int       `json:"stock"`
	AssignedPrice float64   `json:"assigned_price"`
	CreatedAt     time.Time `json:"created_at"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	TRN       string    `json:"trn,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	TRN     string `json:"trn,omitempty"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	ExpiresAt   string `json:"expires_at"`
}

type ApproveUserRequest struct {
	UserID string `json:"user_id"`
}

// Actor is the authenticated caller attached to a request context.
type Actor struct {
	UserID string
	Name   string
	Role   string
}

// SellableItem is the role-resolved view a cart is built against:
// catalog rows for admins, aggregated allotments for salesmen.
type SellableItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	SKU       string  `json:"sku"`
	UOM       string  `json:"uom"`
	Stock     int     `json:"stock"`
	UnitPrice float64 `json:"unit_price"`
}

type CartLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	UOM       string  `json:"uom"`
}

type CartTotals struct {
	Subtotal float64 `json:"subtotal"`
	VAT      float64 `json:"vat"`
	Total    float64 `json:"total"`
}

type SaleItem struct {
	ProductID       string  `json:"product_id"`
	ProductName     string  `json:"product_name"`
	Quantity        int     `json:"quantity"`
	QuantityCtn     int     `json:"quantity_ctn"`
	PriceCtn        float64 `json:"price_ctn"`
	GrossAmount     float64 `json:"gross_amount"`
	ExciseDuty      float64 `json:"excise_duty"`
	DiscountPercent float64 `json:"discount_percent"`
	DiscountVal     float64 `json:"discount_val"`
	VATPercent      float64 `json:"vat_percent"`
	VATAmount       float64 `json:"vat_amount"`
	TotalIncl       float64 `json:"total_incl"`
	UOM             string  `json:"uom"`
}

type Sale struct {
	ID              string     `json:"id"`
	InvoiceNo       string     `json:"invoice_no"`
	CustomerID      string     `json:"customer_id,omitempty"`
	CustomerName    string     `json:"customer_name"`
	CustomerAddress string     `json:"customer_address,omitempty"`
	CustomerTRN     string     `json:"customer_trn,omitempty"`
	Items           []SaleItem `json:"items"`
	Subtotal        float64    `json:"subtotal"`
	VATAmount       float64    `json:"vat_amount"`
	Total           float64    `json:"total"`
	Date            time.Time  `json:"date"`
	OrderDate       time.Time  `json:"order_date"`
	DeliveryDate    time.Time  `json:"delivery_date"`
	SalesMan        string     `json:"salesman"`
	SalesmanID      string     `json:"salesman_id"`
	PaymentType     string     `json:"payment_type"`
	VehicleNo       string     `json:"vehicle_no"`
	Currency        string     `json:"currency"`
	CustCode        string     `json:"cust_code"`
	SiteCode        string     `json:"site_code"`
	DMID            string     `json:"dm_id"`
}

// StockDebit is one stock movement a sale applies to its ledger.
// SalesmanID is empty for admin sales against the catalog.
type StockDebit struct {
	ProductID  string
	SalesmanID string
	Quantity   int
}

type CheckoutRequest struct {
	CustomerID string     `json:"customer_id,omitempty"`
	Lines      []CartLine `json:"lines"`
}

type CheckoutResponse struct {
	Sale Sale `json:"sale"`
}

type Purchase struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	Cost        float64   `json:"cost"`
	SalePrice   float64   `json:"sale_price"`
	Total       float64   `json:"total"`
	Date        time.Time `json:"date"`
}

type DistributeStockRequest struct {
	SalesmanID string  `json:"salesman_id"`
	ProductID  string  `json:"product_id"`
	Quantity   int     `json:"quantity"`
	SellPrice  float64 `json:"sell_price"`
}

type ReceiveStockRequest struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Cost      float64 `json:"cost"`
	SalePrice float64 `json:"sale_price"`
}

type AppSettings struct {
	CompanyName   string  `json:"company_name"`
	Address       string  `json:"address"`
	Phone         string  `json:"phone"`
	VATNumber     string  `json:"vat_number"`
	VATPercent    float64 `json:"vat_percent"`
	Currency      string  `json:"currency"`
	InvoicePrefix string  `json:"invoice_prefix"`
	LogoURL       string  `json:"logo_url,omitempty"`
}

// FilledFrom backfills empty identity fields from current, so a
// partial update cannot blank the company name or VAT registration.
// VATPercent and LogoURL pass through as submitted; zero and empty
// are meaningful values for those.
func (s AppSettings) FilledFrom(current AppSettings) AppSettings {
	if s.CompanyName == "" {
		s.CompanyName = current.CompanyName
	}
	if s.Address == "" {
		s.Address = current.Address
	}
	if s.Phone == "" {
		s.Phone = current.Phone
	}
	if s.VATNumber == "" {
		s.VATNumber = current.VATNumber
	}
	if s.Currency == "" {
		s.Currency = current.Currency
	}
	if s.InvoicePrefix == "" {
		s.InvoicePrefix = current.InvoicePrefix
	}
	return s
}

type TopSeller struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

type DashboardSummary struct {
	RevenueTotal  float64     `json:"revenue_total"`
	SaleCount     int         `json:"sale_count"`
	ProductCount  int         `json:"product_count"`
	LowStockCount int         `json:"low_stock_count"`
	TopSellers    []TopSeller `json:"top_sellers"`
	Insight       string      `json:"insight,omitempty"`
}

type AuditLog struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name"`
	ActorRole string    `json:"actor_role"`
	Action    string    `json:"action"`
	EntityID  string    `json:"entity_id,omitempty"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	RoleAdmin    = "ADMIN"
	RoleSalesman = "SALESMAN"
)

const (
	UserStatusPending  = "PENDING"
	UserStatusApproved = "APPROVED"
)

const DefaultUOM = 24

// Logistics defaults snapshotted onto every sale.
const (
	DefaultPaymentType = "Credit"
	DefaultVehicleNo   = "KZA-4177"
	DefaultCurrency    = "SR"
	DefaultCustCode    = "12008"
	DefaultSiteCode    = "20400516"
	DefaultDMID        = "DM00589"
)

const WalkInCustomerName = "Walk-in"

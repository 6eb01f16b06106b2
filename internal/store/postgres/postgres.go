package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"queenpos/backend/internal/domain"
	"queenpos/backend/internal/store"
	"queenpos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, sku, category, purchase_price, sale_price, stock, uom
		FROM products
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Category, &p.PurchasePrice, &p.SalePrice, &p.Stock, &p.UOM); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, sku, category, purchase_price, sale_price, stock, uom
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.SKU, &p.Category, &p.PurchasePrice, &p.SalePrice, &p.Stock, &p.UOM)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.SalePrice <= 0 || product.Stock < 0 {
		return nil, fmt.Errorf("invalid product")
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if strings.TrimSpace(product.UOM) == "" {
		product.UOM = "24"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, sku, category, purchase_price, sale_price, stock, uom, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
	`, product.ID, product.Name, product.SKU, product.Category, product.PurchasePrice, product.SalePrice, product.Stock, product.UOM)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("product id %s already exists", product.ID)
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) ListAllotments(ctx context.Context, salesmanID string) ([]domain.SalesmanStock, error) {
	return s.queryAllotments(ctx, `
		SELECT id, salesman_id, product_id, product_name, sku, uom, stock, assigned_price, created_at
		FROM salesman_stocks
		WHERE salesman_id = $1
		ORDER BY created_at, id
	`, salesmanID)
}

func (s *Store) ListAllAllotments(ctx context.Context) ([]domain.SalesmanStock, error) {
	return s.queryAllotments(ctx, `
		SELECT id, salesman_id, product_id, product_name, sku, uom, stock, assigned_price, created_at
		FROM salesman_stocks
		ORDER BY created_at, id
	`)
}

func (s *Store) queryAllotments(ctx context.Context, query string, args ...any) ([]domain.SalesmanStock, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	allotments := make([]domain.SalesmanStock, 0, 32)
	for rows.Next() {
		var a domain.SalesmanStock
		if err := rows.Scan(&a.ID, &a.SalesmanID, &a.ProductID, &a.ProductName, &a.SKU, &a.UOM, &a.Stock, &a.AssignedPrice, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.CreatedAt = a.CreatedAt.UTC()
		allotments = append(allotments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return allotments, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, address, trn, created_at
		FROM customers
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.TRN, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, address, trn, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.TRN, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, address, trn, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, customer.ID, customer.Name, customer.Phone, customer.Address, customer.TRN, customer.CreatedAt)
	if err != nil {
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, status, password_hash, created_at
		FROM users
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Status, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, status, password_hash, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, user.ID, user.Name, user.Email, user.Role, user.Status, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateUser
		}
		return nil, err
	}

	created := user
	return &created, nil
}

func (s *Store) ApproveUser(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET status = $2
		WHERE id = $1
		RETURNING id, name, email, role, status, password_hash, created_at
	`, userID, domain.UserStatusApproved).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Status, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, role string) ([]domain.User, error) {
	query := `
		SELECT id, name, email, role, status, password_hash, created_at
		FROM users
		ORDER BY email
	`
	args := []any{}
	if role != "" {
		query = `
			SELECT id, name, email, role, status, password_hash, created_at
			FROM users
			WHERE role = $1
			ORDER BY email
		`
		args = append(args, role)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 16)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Status, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateSale runs the whole debit pass and the sale insert in one
// serializable transaction. Catalog rows use a conditional decrement;
// allotment rows are locked FOR UPDATE and consumed oldest first.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, debits []domain.StockDebit) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrEmptyCart
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	for _, d := range debits {
		if d.Quantity <= 0 {
			return nil, fmt.Errorf("%w: non-positive debit for product %s", store.ErrInsufficientStock, d.ProductID)
		}
		if d.SalesmanID == "" {
			res, err := pgTx.ExecContext(ctx, `
				UPDATE products
				SET stock = stock - $2
				WHERE id = $1 AND stock >= $2
			`, d.ProductID, d.Quantity)
			if err != nil {
				return nil, err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return nil, err
			}
			if affected == 0 {
				if exists, err := s.productExistsTx(ctx, pgTx, d.ProductID); err != nil {
					return nil, err
				} else if !exists {
					return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, d.ProductID)
				}
				return nil, fmt.Errorf("%w: product %s", store.ErrInsufficientStock, d.ProductID)
			}
			continue
		}
		if err := debitAllotmentsTx(ctx, pgTx, d); err != nil {
			return nil, err
		}
	}

	itemsJSON, err := json.Marshal(sale.Items)
	if err != nil {
		return nil, err
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (
			id, invoice_no, customer_id, customer_name, customer_address, customer_trn,
			items, subtotal, vat_amount, total, date, order_date, delivery_date,
			salesman, salesman_id, payment_type, vehicle_no, currency, cust_code, site_code, dm_id
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`, sale.ID, sale.InvoiceNo, nullable(sale.CustomerID), sale.CustomerName, sale.CustomerAddress, sale.CustomerTRN,
		itemsJSON, sale.Subtotal, sale.VATAmount, sale.Total, sale.Date, sale.OrderDate, sale.DeliveryDate,
		sale.SalesMan, sale.SalesmanID, sale.PaymentType, sale.VehicleNo, sale.Currency, sale.CustCode, sale.SiteCode, sale.DMID)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	created := sale
	return &created, nil
}

func (s *Store) productExistsTx(ctx context.Context, pgTx *sql.Tx, id string) (bool, error) {
	var one int
	err := pgTx.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func debitAllotmentsTx(ctx context.Context, pgTx *sql.Tx, d domain.StockDebit) error {
	rows, err := pgTx.QueryContext(ctx, `
		SELECT id, stock
		FROM salesman_stocks
		WHERE salesman_id = $1 AND product_id = $2 AND stock > 0
		ORDER BY created_at, id
		FOR UPDATE
	`, d.SalesmanID, d.ProductID)
	if err != nil {
		return err
	}

	type allotmentRow struct {
		id    string
		stock int
	}
	available := 0
	lots := make([]allotmentRow, 0, 4)
	for rows.Next() {
		var row allotmentRow
		if err := rows.Scan(&row.id, &row.stock); err != nil {
			_ = rows.Close()
			return err
		}
		available += row.stock
		lots = append(lots, row)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	if available < d.Quantity {
		return fmt.Errorf("%w: salesman %s product %s", store.ErrInsufficientStock, d.SalesmanID, d.ProductID)
	}

	remaining := d.Quantity
	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		take := lot.stock
		if take > remaining {
			take = remaining
		}
		if _, err := pgTx.ExecContext(ctx, `
			UPDATE salesman_stocks SET stock = stock - $2 WHERE id = $1
		`, lot.id, take); err != nil {
			return err
		}
		remaining -= take
	}
	return nil
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_no, customer_id, customer_name, customer_address, customer_trn,
			items, subtotal, vat_amount, total, date, order_date, delivery_date,
			salesman, salesman_id, payment_type, vehicle_no, currency, cust_code, site_code, dm_id
		FROM sales
		ORDER BY date, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, invoice_no, customer_id, customer_name, customer_address, customer_trn,
			items, subtotal, vat_amount, total, date, order_date, delivery_date,
			salesman, salesman_id, payment_type, vehicle_no, currency, cust_code, site_code, dm_id
		FROM sales
		WHERE id = $1
	`, id)

	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sale, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	var customerID sql.NullString
	var itemsJSON []byte
	err := row.Scan(&sale.ID, &sale.InvoiceNo, &customerID, &sale.CustomerName, &sale.CustomerAddress, &sale.CustomerTRN,
		&itemsJSON, &sale.Subtotal, &sale.VATAmount, &sale.Total, &sale.Date, &sale.OrderDate, &sale.DeliveryDate,
		&sale.SalesMan, &sale.SalesmanID, &sale.PaymentType, &sale.VehicleNo, &sale.Currency, &sale.CustCode, &sale.SiteCode, &sale.DMID)
	if err != nil {
		return domain.Sale{}, err
	}
	if customerID.Valid {
		sale.CustomerID = customerID.String
	}
	if err := json.Unmarshal(itemsJSON, &sale.Items); err != nil {
		return domain.Sale{}, err
	}
	sale.Date = sale.Date.UTC()
	sale.OrderDate = sale.OrderDate.UTC()
	sale.DeliveryDate = sale.DeliveryDate.UTC()
	return sale, nil
}

func (s *Store) NextInvoiceSequence(ctx context.Context) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO counters (name, value)
		VALUES ('invoice', 1)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		RETURNING value
	`).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

// DistributeStock decrements the catalog and inserts the allotment in
// one transaction. The conditional decrement makes the insufficient
// case a no-op.
func (s *Store) DistributeStock(ctx context.Context, allotment domain.SalesmanStock) (*domain.SalesmanStock, error) {
	if allotment.Stock <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", store.ErrInsufficientStock)
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var name, sku, uom string
	err = pgTx.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
		RETURNING name, sku, uom
	`, allotment.ProductID, allotment.Stock).Scan(&name, &sku, &uom)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if exists, existsErr := s.productExistsTx(ctx, pgTx, allotment.ProductID); existsErr != nil {
				return nil, existsErr
			} else if !exists {
				return nil, store.ErrNotFound
			}
			return nil, fmt.Errorf("%w: product %s", store.ErrInsufficientStock, allotment.ProductID)
		}
		return nil, err
	}

	if allotment.ID == "" {
		allotment.ID = xid.New("alt")
	}
	if allotment.CreatedAt.IsZero() {
		allotment.CreatedAt = time.Now().UTC()
	}
	allotment.ProductName = name
	allotment.SKU = sku
	allotment.UOM = uom

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO salesman_stocks (id, salesman_id, product_id, product_name, sku, uom, stock, assigned_price, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, allotment.ID, allotment.SalesmanID, allotment.ProductID, allotment.ProductName, allotment.SKU, allotment.UOM, allotment.Stock, allotment.AssignedPrice, allotment.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	created := allotment
	return &created, nil
}

// ReceiveStock credits the catalog, overwrites the pricing baseline
// and appends the purchase record in one transaction.
func (s *Store) ReceiveStock(ctx context.Context, purchase domain.Purchase, salePrice float64) (*domain.Purchase, error) {
	if purchase.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", store.ErrInsufficientStock)
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var name string
	err = pgTx.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2, purchase_price = $3, sale_price = $4
		WHERE id = $1
		RETURNING name
	`, purchase.ProductID, purchase.Quantity, purchase.Cost, salePrice).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.Date.IsZero() {
		purchase.Date = time.Now().UTC()
	}
	purchase.ProductName = name
	purchase.SalePrice = salePrice
	purchase.Total = float64(purchase.Quantity) * purchase.Cost

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO purchases (id, product_id, product_name, quantity, cost, sale_price, total, date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, purchase.ID, purchase.ProductID, purchase.ProductName, purchase.Quantity, purchase.Cost, purchase.SalePrice, purchase.Total, purchase.Date)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	created := purchase
	return &created, nil
}

func (s *Store) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, product_name, quantity, cost, sale_price, total, date
		FROM purchases
		ORDER BY date, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 32)
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.ProductID, &p.ProductName, &p.Quantity, &p.Cost, &p.SalePrice, &p.Total, &p.Date); err != nil {
			return nil, err
		}
		p.Date = p.Date.UTC()
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return purchases, nil
}

func (s *Store) GetSettings(ctx context.Context) (*domain.AppSettings, error) {
	var settings domain.AppSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT company_name, address, phone, vat_number, vat_percent, currency, invoice_prefix, logo_url
		FROM app_settings
		WHERE id = 1
	`).Scan(&settings.CompanyName, &settings.Address, &settings.Phone, &settings.VATNumber, &settings.VATPercent, &settings.Currency, &settings.InvoicePrefix, &settings.LogoURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &settings, nil
}

func (s *Store) UpdateSettings(ctx context.Context, settings domain.AppSettings) (*domain.AppSettings, error) {
	if settings.VATPercent < 0 {
		return nil, fmt.Errorf("vat percent must not be negative")
	}

	// Empty identity fields keep the stored value, matching
	// domain.AppSettings.FilledFrom in the memory store.
	var updated domain.AppSettings
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO app_settings (id, company_name, address, phone, vat_number, vat_percent, currency, invoice_prefix, logo_url)
		VALUES (1,$1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			company_name = COALESCE(NULLIF(EXCLUDED.company_name, ''), app_settings.company_name),
			address = COALESCE(NULLIF(EXCLUDED.address, ''), app_settings.address),
			phone = COALESCE(NULLIF(EXCLUDED.phone, ''), app_settings.phone),
			vat_number = COALESCE(NULLIF(EXCLUDED.vat_number, ''), app_settings.vat_number),
			vat_percent = EXCLUDED.vat_percent,
			currency = COALESCE(NULLIF(EXCLUDED.currency, ''), app_settings.currency),
			invoice_prefix = COALESCE(NULLIF(EXCLUDED.invoice_prefix, ''), app_settings.invoice_prefix),
			logo_url = EXCLUDED.logo_url
		RETURNING company_name, address, phone, vat_number, vat_percent, currency, invoice_prefix, logo_url
	`, settings.CompanyName, settings.Address, settings.Phone, settings.VATNumber, settings.VATPercent, settings.Currency, settings.InvoicePrefix, settings.LogoURL).
		Scan(&updated.CompanyName, &updated.Address, &updated.Phone, &updated.VATNumber, &updated.VATPercent, &updated.Currency, &updated.InvoicePrefix, &updated.LogoURL)
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("aud")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, actor_name, actor_role, action, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorID, entry.ActorName, entry.ActorRole, entry.Action, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_name, actor_role, action, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.ActorName, &entry.ActorRole, &entry.Action, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

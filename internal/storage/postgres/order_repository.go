package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirtli/commerce/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	orderColumns = `
		id, user_id, customer_email, customer_name,
		total_amount, shipping_cost, grand_total,
		address_line1, address_line2, address_city, address_postal_code, address_country,
		payment_method, payment_status, order_status,
		stripe_session_id, stripe_payment_intent_id,
		courier_name, tracking_number, shipped_at,
		created_at, updated_at`
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if order.GrandTotal == 0 {
		order.GrandTotal = order.TotalAmount + order.ShippingCost
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
	`,
		order.ID, order.UserID, order.CustomerEmail, order.CustomerName,
		order.TotalAmount, order.ShippingCost, order.GrandTotal,
		order.ShippingAddress.Line1, order.ShippingAddress.Line2, order.ShippingAddress.City,
		order.ShippingAddress.PostalCode, order.ShippingAddress.Country,
		order.PaymentMethod, string(order.PaymentStatus), string(order.OrderStatus),
		order.StripeSessionID, order.StripePaymentIntentID,
		shippingField(order.ShippingInfo, func(i domain.ShippingInfo) string { return i.CourierName }),
		shippingField(order.ShippingInfo, func(i domain.ShippingInfo) string { return i.TrackingNumber }),
		shippedAt(order.ShippingInfo),
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderExists
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, name, unit_price, qty)
			VALUES ($1,$2,$3,$4,$5,$6)
		`,
			order.ID, i, item.ProductID, item.Name, item.UnitPrice, item.Quantity,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]domain.Order, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var total int64
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders WHERE user_id = $1
	`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count user orders: %w", err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $3", userID, offset, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, userID, offset)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, 0, err
		}
		orders[i].Items = items
	}

	return orders, total, nil
}

// MarkPaid выполняет условный переход pending→completed/processing одним
// UPDATE-ом: ровно один из конкурирующих сигналов об оплате выигрывает.
func (r *orderRepository) MarkPaid(ctx context.Context, id, sessionID, paymentIntentID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $1,
		    order_status = $2,
		    stripe_session_id = $3,
		    stripe_payment_intent_id = $4,
		    updated_at = NOW()
		WHERE id = $5
		  AND payment_status = $6
	`,
		string(domain.PaymentStatusCompleted), string(domain.OrderStatusProcessing),
		sessionID, paymentIntentID, id, string(domain.PaymentStatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	exists, err := r.orderExists(ctx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrOrderNotFound
	}
	return false, nil
}

func (r *orderRepository) SetPaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $1,
		    updated_at = NOW()
		WHERE id = $2
	`, string(status), id)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return requireAffected(res)
}

func (r *orderRepository) SetOrderStatus(ctx context.Context, id string, status domain.OrderStatus, info *domain.ShippingInfo) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		res sql.Result
		err error
	)
	if info != nil {
		res, err = r.db.ExecContext(ctx, `
			UPDATE orders
			SET order_status = $1,
			    courier_name = $2,
			    tracking_number = $3,
			    shipped_at = $4,
			    updated_at = NOW()
			WHERE id = $5
		`, string(status), info.CourierName, info.TrackingNumber, info.ShippedAt, id)
	} else {
		res, err = r.db.ExecContext(ctx, `
			UPDATE orders
			SET order_status = $1,
			    updated_at = NOW()
			WHERE id = $2
		`, string(status), id)
	}
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return requireAffected(res)
}

func (r *orderRepository) CountAll(ctx context.Context) (int64, error) {
	return r.countWhere(ctx, `SELECT COUNT(*) FROM orders`)
}

func (r *orderRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	return r.countWhere(ctx, `SELECT COUNT(*) FROM orders WHERE created_at >= $1`, since)
}

func (r *orderRepository) CountByOrderStatus(ctx context.Context, status domain.OrderStatus) (int64, error) {
	return r.countWhere(ctx, `SELECT COUNT(*) FROM orders WHERE order_status = $1`, string(status))
}

func (r *orderRepository) RevenueSince(ctx context.Context, since time.Time) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var revenue float64
	if err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(grand_total), 0)
		FROM orders
		WHERE created_at >= $1
	`, since).Scan(&revenue); err != nil {
		return 0, fmt.Errorf("sum revenue: %w", err)
	}
	return revenue, nil
}

func (r *orderRepository) ListCreatedSince(ctx context.Context, since time.Time, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE created_at >= $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recent order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent orders: %w", err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

func (r *orderRepository) TopProductsSince(ctx context.Context, since time.Time, limit int) ([]domain.ProductSales, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT i.product_id,
		       MIN(i.name),
		       SUM(i.qty)::BIGINT,
		       SUM(i.unit_price * i.qty)
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE o.created_at >= $1
		GROUP BY i.product_id
		ORDER BY SUM(i.qty) DESC, i.product_id ASC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query top products: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ProductSales, 0, limit)
	for rows.Next() {
		var sales domain.ProductSales
		if err := rows.Scan(&sales.ProductID, &sales.Name, &sales.TotalSold, &sales.TotalRevenue); err != nil {
			return nil, fmt.Errorf("scan product sales: %w", err)
		}
		result = append(result, sales)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product sales: %w", err)
	}

	return result, nil
}

func (r *orderRepository) StatusDistribution(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_status, COUNT(*)
		FROM orders
		GROUP BY order_status
	`)
	if err != nil {
		return nil, fmt.Errorf("query status distribution: %w", err)
	}
	defer rows.Close()

	dist := make(map[string]int64)
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		dist[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status distribution: %w", err)
	}

	return dist, nil
}

func (r *orderRepository) DailyRevenueSince(ctx context.Context, since time.Time) ([]domain.DailyRevenue, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT TO_CHAR(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
		       COALESCE(SUM(grand_total), 0),
		       COUNT(*)::BIGINT
		FROM orders
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query daily revenue: %w", err)
	}
	defer rows.Close()

	result := make([]domain.DailyRevenue, 0)
	for rows.Next() {
		var entry domain.DailyRevenue
		if err := rows.Scan(&entry.Date, &entry.Revenue, &entry.Orders); err != nil {
			return nil, fmt.Errorf("scan daily revenue: %w", err)
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily revenue: %w", err)
	}

	return result, nil
}

func (r *orderRepository) countWhere(ctx context.Context, query string, args ...any) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, name, unit_price, qty
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order          domain.Order
		paymentStatus  string
		orderStatus    string
		courierName    sql.NullString
		trackingNumber sql.NullString
		shipped        sql.NullTime
	)

	if err := row.Scan(
		&order.ID, &order.UserID, &order.CustomerEmail, &order.CustomerName,
		&order.TotalAmount, &order.ShippingCost, &order.GrandTotal,
		&order.ShippingAddress.Line1, &order.ShippingAddress.Line2, &order.ShippingAddress.City,
		&order.ShippingAddress.PostalCode, &order.ShippingAddress.Country,
		&order.PaymentMethod, &paymentStatus, &orderStatus,
		&order.StripeSessionID, &order.StripePaymentIntentID,
		&courierName, &trackingNumber, &shipped,
		&order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}

	order.PaymentStatus = domain.PaymentStatus(paymentStatus)
	order.OrderStatus = domain.OrderStatus(orderStatus)
	if courierName.Valid || trackingNumber.Valid || shipped.Valid {
		order.ShippingInfo = &domain.ShippingInfo{
			CourierName:    courierName.String,
			TrackingNumber: trackingNumber.String,
			ShippedAt:      shipped.Time,
		}
	}

	return order, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func shippingField(info *domain.ShippingInfo, get func(domain.ShippingInfo) string) sql.NullString {
	if info == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: get(*info), Valid: true}
}

func shippedAt(info *domain.ShippingInfo) sql.NullTime {
	if info == nil || info.ShippedAt.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: info.ShippedAt, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)

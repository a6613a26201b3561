package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const orderColumns = `
	id, customer_id, customer_email, customer_name, status,
	subtotal, discount_amount, discount_percentage, total,
	shipping_address, payment_method, version, created_at, updated_at`

// OrderRepository хранит заказы в orders, позиции в order_items.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт репозиторий поверх пула Store.
func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{db: store.DB()}
}

// shippingAddressJSON — формат колонки shipping_address (JSONB).
type shippingAddressJSON struct {
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Create пишет заказ и все позиции одной транзакцией; позиции уходят одним INSERT.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	address, err := json.Marshal(shippingAddressJSON(order.ShippingAddress))
	if err != nil {
		return fmt.Errorf("encode shipping address: %w", err)
	}

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			order.ID, order.CustomerID, order.CustomerEmail, order.CustomerName, string(order.Status),
			order.Subtotal, order.DiscountAmount, order.DiscountPercentage, order.Total,
			address, order.PaymentMethod, order.Version, order.CreatedAt, order.UpdatedAt,
		)
		switch {
		case isUniqueViolation(err):
			return domain.ErrOrderExists
		case err != nil:
			return fmt.Errorf("insert order %s: %w", order.ID, err)
		}

		if len(order.Items) == 0 {
			return nil
		}
		query, args := insertItemsQuery(order.ID, order.Items)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert items of %s: %w", order.ID, err)
		}
		return nil
	})
}

const itemColumnCount = 8

func insertItemsQuery(orderID string, items []domain.OrderItem) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO order_items
		(order_id, position, product_id, name, sku, catalog_code, unit_price, quantity) VALUES `)
	args := make([]any, 0, len(items)*itemColumnCount)
	for i, item := range items {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('(')
		for c := 1; c <= itemColumnCount; c++ {
			if c > 1 {
				sb.WriteByte(',')
			}
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(i*itemColumnCount + c))
		}
		sb.WriteByte(')')
		args = append(args, orderID, i, item.ProductID, item.Name, item.SKU, item.CatalogCode, item.UnitPrice, item.Quantity)
	}
	return sb.String(), args
}

func (r *OrderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.Order{}, domain.ErrOrderNotFound
	case err != nil:
		return domain.Order{}, fmt.Errorf("select order %s: %w", id, err)
	}

	orders := []domain.Order{order}
	if err := r.attachItems(ctx, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

// List читает страницу по индексу (customer_id, created_at DESC, id DESC).
func (r *OrderRepository) List(ctx context.Context, q domain.OrderQuery) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query, args := listOrdersQuery(q)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func listOrdersQuery(q domain.OrderQuery) (string, []any) {
	args := []any{q.CustomerID}
	where := []string{"customer_id = $1"}
	if q.Status != "" {
		args = append(args, string(q.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	if q.After != nil {
		args = append(args, q.After.CreatedAt, q.After.ID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	return query, args
}

// attachItems загружает позиции всех заказов одним запросом.
func (r *OrderRepository) attachItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Items = make([]domain.OrderItem, 0)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, name, sku, catalog_code, unit_price, quantity
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			item    domain.OrderItem
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.SKU, &item.CatalogCode, &item.UnitPrice, &item.Quantity); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order items: %w", err)
	}
	return nil
}

// Save меняет статус одним запросом. CTE existing отличает отсутствующий
// заказ от устаревшей версии без отдельной транзакции.
func (r *OrderRepository) Save(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var existing, bumped sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		WITH existing AS (
			SELECT version FROM orders WHERE id = $3
		), bumped AS (
			UPDATE orders
			SET status = $1, updated_at = $2, version = version + 1
			WHERE id = $3 AND version = $4
			RETURNING version
		)
		SELECT (SELECT version FROM existing), (SELECT version FROM bumped)`,
		string(order.Status), order.UpdatedAt, order.ID, order.Version,
	).Scan(&existing, &bumped)
	if err != nil {
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}

	switch {
	case !existing.Valid:
		return domain.ErrOrderNotFound
	case !bumped.Valid:
		return domain.ErrOrderVersionConflict
	default:
		return nil
	}
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order   domain.Order
		status  string
		address []byte
	)
	if err := row.Scan(
		&order.ID, &order.CustomerID, &order.CustomerEmail, &order.CustomerName, &status,
		&order.Subtotal, &order.DiscountAmount, &order.DiscountPercentage, &order.Total,
		&address, &order.PaymentMethod, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}

	var addr shippingAddressJSON
	if err := json.Unmarshal(address, &addr); err != nil {
		return domain.Order{}, fmt.Errorf("decode shipping address: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	order.ShippingAddress = domain.Address(addr)
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

var _ domain.OrderRepository = (*OrderRepository)(nil)

// Package ledger reads the order snapshot the reconciler joins invoices against.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/utils"
)

// ordersQuery selects non-expired, non-canceled orders of the last six months
// that were not sold with a sale service.
const ordersQuery = `
SELECT
    CAST(sales_order.state AS TEXT) AS status,
    CAST(sales_order.id AS TEXT) AS order_id,
    DATE(sales_order.created AT TIME ZONE 'CET') AS order_creation_date,
    CAST(brenger_brengershipment.tracking_id AS TEXT) AS tracking_id,
    catalog_product.title AS product_name,
    CAST(catalog_product.weight AS DOUBLE PRECISION) AS weight,
    CASE
        WHEN external_shipping_method_id IS NOT NULL THEN 'brenger'
        WHEN outsource_shipping_method IS NOT NULL THEN outsource_shipping_method
        WHEN external_shipping_method_id IS NULL AND sales_order.delivery_method = 'pickup' THEN 'pickup'
        WHEN sales_order.delivery_method = 'delivery' AND sales_order.shipping_method_id = 'aa1bd039-164f-4e96-a8dd-29fde48d2006' THEN 'Whoppah-Courier'
        WHEN sales_order.delivery_method = 'delivery' AND sales_order.shipping_method_id IN
            ('3414d1f9-a8d5-4aa5-8925-31bac05704ad', 'a8af2c5d-9299-4abd-a32c-8c8780815da9', 'e0523a1c-e78c-4574-a6e8-23755398885f')
            THEN 'Postal Delivery'
        WHEN sales_order.delivery_method = 'delivery' AND sales_order.shipping_method_id = '219c6f0f-5ed6-45cc-aeaf-7539a79e8b02' THEN 'Custom'
    END AS courier_provider,
    CASE WHEN category_level_0 = 'furniture' THEN category_level_1 ELSE category_level_0 END AS category_l1,
    CASE WHEN category_level_0 = 'furniture' THEN category_level_2 ELSE category_level_1 END AS category_l2,
    CAST(catalog_product.number_of_items AS BIGINT) AS number_of_items,
    CAST(sales_order.shipping_excl_vat AS DOUBLE PRECISION) AS shipping_excl_vat,
    CAST(sales_order.subtotal_excl_vat AS DOUBLE PRECISION) AS subtotal_excl_vat,
    buyer_info.postal_code AS buyer_postal,
    buyer_info.country AS buyer_country,
    seller_info.postal_code AS seller_postal,
    seller_info.country AS seller_country,
    CAST(height AS DOUBLE PRECISION) AS height,
    CAST(width AS DOUBLE PRECISION) AS width,
    CAST(depth AS DOUBLE PRECISION) AS depth
FROM sales_order
LEFT JOIN catalog_product ON sales_order.product_id = catalog_product.id
LEFT JOIN info_users buyer_info ON buyer_info.id = sales_order.buyer_id
LEFT JOIN info_users seller_info ON seller_info.id = sales_order.merchant_id
LEFT JOIN whoppah_sale_services ON whoppah_sale_services.product_id = sales_order.product_id
LEFT JOIN category_level_and_brand ON category_level_and_brand.product_id = sales_order.product_id
LEFT JOIN brenger_brengerappointment ON brenger_brengerappointment.order_id = sales_order.id
LEFT JOIN brenger_brengershipment ON brenger_brengershipment.brenger_appointment_id = brenger_brengerappointment.id
WHERE sales_order.state NOT IN ('expired', 'canceled')
  AND sales_order.created >= NOW() - INTERVAL '6 months'
  AND whoppah_sale_services.product_id IS NULL
ORDER BY order_creation_date DESC`

// Querier is the subset of *pgxpool.Pool the ledger needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// orderRow mirrors ordersQuery. Every column may be NULL through the LEFT JOINs.
type orderRow struct {
	Status          *string    `db:"status"`
	OrderID         *string    `db:"order_id"`
	CreatedAt       *time.Time `db:"order_creation_date"`
	TrackingID      *string    `db:"tracking_id"`
	ProductName     *string    `db:"product_name"`
	Weight          *float64   `db:"weight"`
	CourierProvider *string    `db:"courier_provider"`
	CategoryL1      *string    `db:"category_l1"`
	CategoryL2      *string    `db:"category_l2"`
	NumberOfItems   *int64     `db:"number_of_items"`
	ShippingExclVAT *float64   `db:"shipping_excl_vat"`
	SubtotalExclVAT *float64   `db:"subtotal_excl_vat"`
	BuyerPostal     *string    `db:"buyer_postal"`
	BuyerCountry    *string    `db:"buyer_country"`
	SellerPostal    *string    `db:"seller_postal"`
	SellerCountry   *string    `db:"seller_country"`
	Height          *float64   `db:"height"`
	Width           *float64   `db:"width"`
	Depth           *float64   `db:"depth"`
}

// PostgresLedger implements the order ledger over the marketplace database.
type PostgresLedger struct {
	db      Querier
	retries int
	delay   time.Duration
	logger  *slog.Logger
}

func NewPostgresLedger(db Querier, cfg common.LedgerConfig, logger *slog.Logger) *PostgresLedger {
	if logger == nil {
		logger = slog.Default()
	}
	retries := cfg.QueryRetries
	if retries < 1 {
		retries = 1
	}
	return &PostgresLedger{db: db, retries: retries, delay: cfg.RetryDelay, logger: logger}
}

// GetOrders returns the current snapshot. The query is the same for every
// partner; partner-specific filtering happens in the join.
func (l *PostgresLedger) GetOrders(ctx context.Context, partner constants.Partner) ([]entity.OrderRecord, error) {
	var rows []orderRow
	err := retry(ctx, l.retries, l.delay, func(attempt int) error {
		r, err := l.query(ctx)
		if err != nil {
			l.logger.Warn("ledger.query.failed", "partner", string(partner), "attempt", attempt, "error", err)
			return err
		}
		rows = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: order snapshot: %v", common.ErrDatabase, err)
	}

	out := make([]entity.OrderRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	l.logger.Info("ledger.query.ok", "partner", string(partner), "orders", len(out))
	return out, nil
}

func (l *PostgresLedger) query(ctx context.Context) ([]orderRow, error) {
	rows, err := l.db.Query(ctx, ordersQuery)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[orderRow])
}

// retry runs fn up to attempts times with delay in between. Errors the
// server reported for the statement itself are not retried.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func(attempt int) error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if attempt == attempts {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}

func (r orderRow) record() entity.OrderRecord {
	o := entity.OrderRecord{
		Status:          str(r.Status),
		OrderID:         strings.ToLower(str(r.OrderID)),
		TrackingID:      str(r.TrackingID),
		ProductName:     str(r.ProductName),
		CourierProvider: str(r.CourierProvider),
		CategoryL1:      str(r.CategoryL1),
		CategoryL2:      str(r.CategoryL2),
		ShippingExclVAT: num(r.ShippingExclVAT),
		Subtotal:        num(r.SubtotalExclVAT),
		BuyerPostal:     str(r.BuyerPostal),
		BuyerCountry:    strings.ToUpper(str(r.BuyerCountry)),
		SellerPostal:    str(r.SellerPostal),
		SellerCountry:   strings.ToUpper(str(r.SellerCountry)),
		Height:          num(r.Height),
		Width:           num(r.Width),
		Depth:           num(r.Depth),
	}
	if r.CreatedAt != nil {
		o.CreatedAt = utils.DateOnly(*r.CreatedAt)
	}
	if r.Weight != nil {
		o.Weight = utils.FormatWeight(decimal.NewFromFloat(*r.Weight))
	}
	if r.NumberOfItems != nil {
		o.NumberOfItems = int(*r.NumberOfItems)
	}
	return o
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// num maps NULL to zero.
func num(f *float64) decimal.Decimal {
	if f == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*f)
}

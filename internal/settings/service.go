package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const cacheKey = "settings:platform"

// Service loads the platform settings snapshot, caching it in redis for a
// short TTL. Writers invalidate the cache on save.
type Service struct {
	pool  *pgxpool.Pool
	cache *redis.Client
	ttl   time.Duration
}

// NewService constructs a Service.
func NewService(pool *pgxpool.Pool, cache *redis.Client, ttl time.Duration) *Service {
	return &Service{pool: pool, cache: cache, ttl: ttl}
}

// Snapshot returns the current platform policy. A missing settings row
// yields the defaults.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var snap Snapshot
			if err := json.Unmarshal(data, &snap); err == nil {
				return snap, nil
			}
		}
	}

	snap, err := s.load(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(snap); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.ttl).Err()
		}
	}
	return snap, nil
}

// Save persists the settings row and drops the cache.
func (s *Service) Save(ctx context.Context, snap Snapshot) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO system_settings
(id, default_tax_rate, enable_discounts, allow_percent_discount, allow_flat_discount,
 max_discount_percent, max_discount_amount, discount_level, invoice_prefix, invoice_starting_number, updated_at)
VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
ON CONFLICT (id) DO UPDATE SET
 default_tax_rate = EXCLUDED.default_tax_rate,
 enable_discounts = EXCLUDED.enable_discounts,
 allow_percent_discount = EXCLUDED.allow_percent_discount,
 allow_flat_discount = EXCLUDED.allow_flat_discount,
 max_discount_percent = EXCLUDED.max_discount_percent,
 max_discount_amount = EXCLUDED.max_discount_amount,
 discount_level = EXCLUDED.discount_level,
 invoice_prefix = EXCLUDED.invoice_prefix,
 invoice_starting_number = EXCLUDED.invoice_starting_number`,
		snap.DefaultTaxRate, snap.EnableDiscounts, snap.AllowPercentDiscount, snap.AllowFlatDiscount,
		snap.MaxDiscountPercent, snap.MaxDiscountAmount, string(snap.DiscountLevel),
		snap.InvoicePrefix, snap.InvoiceStartingNumber)
	if err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, cacheKey).Err()
	}
	return nil
}

func (s *Service) load(ctx context.Context) (Snapshot, error) {
	snap := Defaults()
	var level string
	err := s.pool.QueryRow(ctx, `SELECT default_tax_rate, enable_discounts, allow_percent_discount,
allow_flat_discount, max_discount_percent, max_discount_amount, discount_level,
invoice_prefix, invoice_starting_number
FROM system_settings WHERE id = 1`).Scan(
		&snap.DefaultTaxRate, &snap.EnableDiscounts, &snap.AllowPercentDiscount,
		&snap.AllowFlatDiscount, &snap.MaxDiscountPercent, &snap.MaxDiscountAmount, &level,
		&snap.InvoicePrefix, &snap.InvoiceStartingNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Defaults(), nil
		}
		return Snapshot{}, err
	}
	snap.DiscountLevel = DiscountLevel(level)
	return snap, nil
}

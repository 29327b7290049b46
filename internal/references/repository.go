// Package references resolves contractors, statuses and permitted recipients
// from Postgres with a Redis read-through cache.
package references

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"returns-notifier/internal/common/database"
	"returns-notifier/internal/common/logger"
	"returns-notifier/internal/common/metrics"
	"returns-notifier/internal/models"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("reference not found")

const contractorQuery = `SELECT id, type, name, full_name, email, mobile, seller_id, locale FROM contractors WHERE id = $1`

// Repository implements entity lookups over the contractors table.
type Repository struct {
	db     *database.PostgresClient
	cache  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

// NewRepository creates a Repository. cache may be nil to disable caching.
func NewRepository(db *database.PostgresClient, cache *database.RedisClient, ttl time.Duration, log logger.Logger) *Repository {
	return &Repository{
		db:     db,
		cache:  cache,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "references"}),
	}
}

func (r *Repository) GetSeller(ctx context.Context, id int64) (models.Party, error) {
	c, err := r.contractor(ctx, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repository) GetClient(ctx context.Context, id int64) (models.ClientParty, error) {
	c, err := r.contractor(ctx, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repository) GetEmployee(ctx context.Context, id int64) (models.Party, error) {
	c, err := r.contractor(ctx, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// StatusName resolves a status id from the built-in status table.
func (r *Repository) StatusName(id models.StatusID) string {
	return models.StatusName(id)
}

func contractorKey(id int64) string {
	return fmt.Sprintf("contractor:%d", id)
}

func (r *Repository) contractor(ctx context.Context, id int64) (*models.Contractor, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}

	key := contractorKey(id)
	if r.cache != nil {
		var cached models.Contractor
		switch err := r.cache.GetJSON(ctx, key, &cached); {
		case err == nil:
			metrics.ReferenceCacheLookups.WithLabelValues("contractor", "hit").Inc()
			return &cached, nil
		case errors.Is(err, database.ErrCacheMiss):
			metrics.ReferenceCacheLookups.WithLabelValues("contractor", "miss").Inc()
		default:
			metrics.ReferenceCacheLookups.WithLabelValues("contractor", "error").Inc()
			r.logger.Warn("contractor cache read failed", map[string]interface{}{"key": key, "error": err})
		}
	}

	c, err := r.loadContractor(ctx, id)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.SetJSON(ctx, key, c, r.ttl); err != nil {
			r.logger.Warn("contractor cache write failed", map[string]interface{}{"key": key, "error": err})
		}
	}
	return c, nil
}

func (r *Repository) loadContractor(ctx context.Context, id int64) (*models.Contractor, error) {
	var (
		c                               models.Contractor
		fullName, email, mobile, locale sql.NullString
		sellerID                        sql.NullInt64
	)

	err := r.db.QueryRow(ctx, contractorQuery, id).Scan(
		&c.ContractorID, &c.Kind, &c.Name, &fullName, &email, &mobile, &sellerID, &locale,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query contractor %d: %w", id, err)
	}

	c.FullName = fullName.String
	c.EmailAddress = email.String
	c.MobileNumber = mobile.String
	c.SellerID = sellerID.Int64
	c.Locale = locale.String
	return &c, nil
}

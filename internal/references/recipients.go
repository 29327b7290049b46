package references

import (
	"context"
	"errors"
	"fmt"
	"time"

	"returns-notifier/internal/common/database"
	"returns-notifier/internal/common/logger"
	"returns-notifier/internal/common/metrics"
)

const permittedEmailsQuery = `SELECT DISTINCT c.email FROM employee_permissions p JOIN contractors c ON c.id = p.employee_id WHERE p.reseller_id = $1 AND p.permission = $2 AND c.email <> '' ORDER BY c.email`

// Recipients resolves the employees subscribed to an event for a reseller.
type Recipients struct {
	db     *database.PostgresClient
	cache  *database.RedisClient
	ttl    time.Duration
	sender string
	logger logger.Logger
}

func NewRecipients(db *database.PostgresClient, cache *database.RedisClient, ttl time.Duration, sender string, log logger.Logger) *Recipients {
	return &Recipients{
		db:     db,
		cache:  cache,
		ttl:    ttl,
		sender: sender,
		logger: log.WithFields(map[string]interface{}{"component": "recipients"}),
	}
}

// DefaultSenderAddress returns the configured From address; it may be empty.
func (r *Recipients) DefaultSenderAddress() string {
	return r.sender
}

// EmailsForEvent returns the distinct, sorted employee addresses holding the
// permission for the reseller.
func (r *Recipients) EmailsForEvent(ctx context.Context, resellerID int64, event string) ([]string, error) {
	key := fmt.Sprintf("permit:%d:%s", resellerID, event)

	if r.cache != nil {
		var cached []string
		switch err := r.cache.GetJSON(ctx, key, &cached); {
		case err == nil:
			metrics.ReferenceCacheLookups.WithLabelValues("permit", "hit").Inc()
			return cached, nil
		case errors.Is(err, database.ErrCacheMiss):
			metrics.ReferenceCacheLookups.WithLabelValues("permit", "miss").Inc()
		default:
			metrics.ReferenceCacheLookups.WithLabelValues("permit", "error").Inc()
			r.logger.Warn("permit cache read failed", map[string]interface{}{"key": key, "error": err})
		}
	}

	rows, err := r.db.Query(ctx, permittedEmailsQuery, resellerID, event)
	if err != nil {
		return nil, fmt.Errorf("query permitted emails: %w", err)
	}
	defer rows.Close()

	emails := make([]string, 0)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan permitted email: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permitted emails: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.SetJSON(ctx, key, emails, r.ttl); err != nil {
			r.logger.Warn("permit cache write failed", map[string]interface{}{"key": key, "error": err})
		}
	}
	return emails, nil
}

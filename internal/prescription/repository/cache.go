package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nanba/pharmacy-backend/internal/prescription/domain"
	"github.com/nanba/pharmacy-backend/internal/prescription/license"
	"github.com/nanba/pharmacy-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix   = "pharmacy:prescriber:"
	versionKeyPrefix = "pharmacy:prescriber-version:"
)

// errInvalidated aborts a fill that raced with Invalidate
var errInvalidated = errors.New("prescriber invalidated during lookup")

// NewRedisClient builds a client from a redis:// URL
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// CachedLookup is a read-through Redis cache in front of a registry lookup.
// Only hits are cached so a newly seeded prescriber is visible at once.
// Redis failures fall through to the underlying lookup.
//
// Each license has a version counter that Invalidate bumps. A fill only
// writes if the version is unchanged since before the database read, so an
// invalidation always wins over a lookup that was in flight when it ran.
type CachedLookup struct {
	next   license.Lookup
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewCachedLookup wraps next with a cache
func NewCachedLookup(next license.Lookup, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachedLookup {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedLookup{next: next, client: client, ttl: ttl, logger: log}
}

type cachedPrescriber struct {
	LicenseID  string `json:"license_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	ExpiryDate string `json:"expiry_date"`
}

func cacheKey(licenseID string) string {
	return cacheKeyPrefix + licenseID
}

func versionKey(licenseID string) string {
	return versionKeyPrefix + licenseID
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// version reads the invalidation counter; a license never invalidated is "0"
func version(ctx context.Context, g getter, licenseID string) (string, error) {
	v, err := g.Get(ctx, versionKey(licenseID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return v, err
}

// FindByLicenseID serves from cache when possible
func (c *CachedLookup) FindByLicenseID(ctx context.Context, licenseID string) (*domain.PrescriberRecord, error) {
	raw, err := c.client.Get(ctx, cacheKey(licenseID)).Bytes()
	switch {
	case err == nil:
		if rec, decodeErr := decodePrescriber(raw); decodeErr == nil {
			return rec, nil
		}
		c.logger.Warn().Str("license_id", licenseID).Msg("dropping undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Str("license_id", licenseID).Msg("prescriber cache unavailable")
	}

	seen, verErr := version(ctx, c.client, licenseID)

	rec, err := c.next.FindByLicenseID(ctx, licenseID)
	if err != nil || rec == nil {
		return rec, err
	}

	if verErr == nil {
		c.fill(ctx, rec, seen)
	}
	return rec, nil
}

func (c *CachedLookup) fill(ctx context.Context, rec *domain.PrescriberRecord, seen string) {
	raw, err := encodePrescriber(rec)
	if err != nil {
		return
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := version(ctx, tx, rec.LicenseID)
		if err != nil {
			return err
		}
		if current != seen {
			return errInvalidated
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(rec.LicenseID), raw, c.ttl)
			return nil
		})
		return err
	}, versionKey(rec.LicenseID))

	switch {
	case err == nil:
	case errors.Is(err, errInvalidated), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug().Str("license_id", rec.LicenseID).Msg("skipping cache fill, prescriber changed during lookup")
	default:
		c.logger.Warn().Err(err).Str("license_id", rec.LicenseID).Msg("failed to cache prescriber")
	}
}

// Invalidate drops a cached record and bumps its version so fills that
// started earlier are discarded
func (c *CachedLookup) Invalidate(ctx context.Context, licenseID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(licenseID))
		pipe.Del(ctx, cacheKey(licenseID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate prescriber cache: %w", err)
	}
	return nil
}

func encodePrescriber(rec *domain.PrescriberRecord) ([]byte, error) {
	return json.Marshal(cachedPrescriber{
		LicenseID:  rec.LicenseID,
		Name:       rec.Name,
		Status:     string(rec.Status),
		ExpiryDate: rec.ExpiryDate.Format(domain.DateLayout),
	})
}

func decodePrescriber(raw []byte) (*domain.PrescriberRecord, error) {
	var c cachedPrescriber
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	expiry, err := time.Parse(domain.DateLayout, c.ExpiryDate)
	if err != nil {
		return nil, err
	}
	status := domain.PrescriberStatus(c.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("invalid cached status %q", c.Status)
	}
	return &domain.PrescriberRecord{
		LicenseID:  c.LicenseID,
		Name:       c.Name,
		Status:     status,
		ExpiryDate: expiry,
	}, nil
}

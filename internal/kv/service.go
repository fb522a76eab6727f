// Package kv implements the write-through key-value service that composes the
// shared LRU cache with a worker's store connection.
package kv

import (
	"context"
	"errors"
	"strconv"
	"time"

	"kvstore-api/internal/apperrors"
	"kvstore-api/internal/cache"
	"kvstore-api/internal/connection"
	"kvstore-api/internal/metrics"

	"go.uber.org/zap"
)

// ConnSource hands out the calling worker's store connection.
// *connection.Manager satisfies it.
type ConnSource interface {
	Acquire(ctx context.Context) (connection.Conn, error)
}

// Options configures a Service.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Collector
}

// Service orchestrates create, read and delete over the cache and the store.
// The store is the source of truth: the cache is only updated after the store
// confirms a write or delete.
//
// Operations on the same key are not ordered across workers. Two concurrent
// Creates may commit to the store in one order and land in the cache in the
// other, leaving the cache briefly disagreeing with the store until the entry
// is overwritten or evicted. No lock spans both the store and the cache.
type Service struct {
	cache   cache.Cache[string, string]
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewService returns a service backed by c. The service holds no
// connection; each call receives the calling worker's ConnSource.
func NewService(c cache.Cache[string, string], opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		cache:   c,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
}

// CacheLen returns the number of cached entries.
func (s *Service) CacheLen() int {
	return s.cache.Len()
}

// CacheKey returns the cache key for a canonical store key.
func CacheKey(key int64) string {
	return strconv.FormatInt(key, 10)
}

// Create upserts value under key in the store and, only once the write is
// confirmed, caches it.
func (s *Service) Create(ctx context.Context, src ConnSource, key int64, value string) error {
	conn, err := src.Acquire(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	err = conn.Upsert(ctx, key, value)
	s.metrics.RecordStoreOp(metrics.OpUpsert, start, err)
	if err != nil {
		s.logger.Warn("store upsert failed", zap.Int64("key", key), zap.Error(err))
		return apperrors.Wrap(apperrors.CodeStoreRejected, "upsert", err)
	}

	s.cache.Put(CacheKey(key), value)
	return nil
}

// Read returns the value for key, from the cache when possible. A miss is
// filled from the store and cached. Absent keys return an error matching
// apperrors.ErrNotFound and leave the cache untouched.
func (s *Service) Read(ctx context.Context, src ConnSource, key int64) (string, error) {
	ck := CacheKey(key)
	if v, ok := s.cache.Get(ck); ok {
		s.metrics.RecordCacheLookup(true)
		return v, nil
	}
	s.metrics.RecordCacheLookup(false)

	conn, err := src.Acquire(ctx)
	if err != nil {
		return "", err
	}

	start := time.Now()
	v, err := conn.Get(ctx, key)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.metrics.RecordStoreOp(metrics.OpSelect, start, nil)
		return "", err
	}
	s.metrics.RecordStoreOp(metrics.OpSelect, start, err)
	if err != nil {
		s.logger.Warn("store select failed", zap.Int64("key", key), zap.Error(err))
		return "", apperrors.Wrap(apperrors.CodeStoreRejected, "select", err)
	}

	s.cache.Put(ck, v)
	return v, nil
}

// Delete removes key from the store and, only if a row was actually removed,
// from the cache. When the store removes nothing the call fails with an error
// matching apperrors.ErrNotFound and any cached entry for key is left in
// place.
func (s *Service) Delete(ctx context.Context, src ConnSource, key int64) error {
	conn, err := src.Acquire(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	n, err := conn.Delete(ctx, key)
	s.metrics.RecordStoreOp(metrics.OpDelete, start, err)
	if err != nil {
		s.logger.Warn("store delete failed", zap.Int64("key", key), zap.Error(err))
		return apperrors.Wrap(apperrors.CodeStoreRejected, "delete", err)
	}
	if n == 0 {
		return apperrors.Wrap(apperrors.CodeNotFound, "delete", apperrors.ErrNotFound)
	}

	s.cache.Remove(CacheKey(key))
	return nil
}

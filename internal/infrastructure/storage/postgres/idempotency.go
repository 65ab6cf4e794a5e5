package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"foodcoop/internal/core/apperror"
)

// IdempotencyStatus represents the state of an idempotent operation.
type IdempotencyStatus string

const (
	IdempotencyStatusPending   IdempotencyStatus = "pending"
	IdempotencyStatusCompleted IdempotencyStatus = "completed"
)

// stalePendingAfter is how long a pending key blocks retries of the same request.
const stalePendingAfter = time.Minute

// IdempotencyRecord stores the result of an idempotent operation.
type IdempotencyRecord struct {
	Key         string            `db:"idempotency_key"`
	UserID      string            `db:"user_id"`
	Operation   string            `db:"operation"`
	Status      IdempotencyStatus `db:"status"`
	RequestHash string            `db:"request_hash"` // SHA256 of request body
	Response    []byte            `db:"response"`
	StatusCode  int               `db:"response_status"`
	ContentType string            `db:"response_content_type"`
	CreatedAt   time.Time         `db:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at"`
	ExpiresAt   time.Time         `db:"expires_at"`
}

// IdempotencyReplay is the cached HTTP response for replay.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore manages idempotency keys of mutating API requests.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
	now       func() time.Time
}

// NewIdempotencyStore creates a new idempotency store.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		txManager: txManager,
		ttl:       ttl,
		now:       time.Now,
	}
}

// AcquireKey attempts to acquire an idempotency key. Keys are scoped to userID.
// Returns:
//   - (nil, nil) if the key was acquired and the request should run
//   - (replay, nil) if the request already completed
//   - (nil, error) if the key is held by a running request or reused for another request
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*IdempotencyReplay, error) {
	now := s.now().UTC()
	querier := s.txManager.GetQuerier(ctx)

	// Expired keys and stale pending keys of the same request are taken over.
	var acquired string
	err := querier.QueryRow(ctx, `
		INSERT INTO idempotency_keys (idempotency_key, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, 'pending', $4, $5, $5, $6)
		ON CONFLICT (user_id, idempotency_key) DO UPDATE SET
			operation = EXCLUDED.operation,
			status = 'pending',
			request_hash = EXCLUDED.request_hash,
			response = NULL,
			response_status = 0,
			response_content_type = '',
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_keys.expires_at < EXCLUDED.created_at
		   OR (idempotency_keys.status = 'pending'
		       AND idempotency_keys.updated_at < $7
		       AND idempotency_keys.operation = EXCLUDED.operation
		       AND idempotency_keys.request_hash = EXCLUDED.request_hash)
		RETURNING idempotency_key
	`, key, userID, operation, requestHash, now, now.Add(s.ttl), now.Add(-stalePendingAfter)).Scan(&acquired)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}

	var record IdempotencyRecord
	err = querier.QueryRow(ctx, `
		SELECT operation, status, request_hash, response, response_status, response_content_type
		FROM idempotency_keys WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key).Scan(
		&record.Operation, &record.Status, &record.RequestHash,
		&record.Response, &record.StatusCode, &record.ContentType,
	)
	if err != nil {
		return nil, fmt.Errorf("load idempotency key: %w", err)
	}

	if record.Operation != operation || record.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", record.Operation).
			WithDetail("request_operation", operation)
	}
	if record.Status == IdempotencyStatusPending {
		return nil, apperror.NewIdempotencyConflict(key)
	}

	return &IdempotencyReplay{
		StatusCode:  normalizeReplayStatus(record.StatusCode),
		ContentType: normalizeReplayContentType(record.ContentType),
		Body:        record.Response,
	}, nil
}

// CompleteKey stores the response of a finished request for replay.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, key, userID string, statusCode int, contentType string, body []byte) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE idempotency_keys
		SET status = 'completed',
		    response = $3,
		    response_status = $4,
		    response_content_type = $5,
		    updated_at = $6
		WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key, body, statusCode, contentType, s.now().UTC())
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// ReleaseKey forgets a key so the request may be retried, e.g. after a server error.
func (s *IdempotencyStore) ReleaseKey(ctx context.Context, key, userID string) error {
	if _, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM idempotency_keys WHERE user_id = $1 AND idempotency_key = $2 AND status = 'pending'`, userID, key); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired idempotency records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM idempotency_keys WHERE expires_at < $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return result.RowsAffected(), nil
}

func normalizeReplayStatus(status int) int {
	if status == 0 {
		return 200
	}
	return status
}

func normalizeReplayContentType(ct string) string {
	if ct == "" {
		return "application/json"
	}
	return ct
}

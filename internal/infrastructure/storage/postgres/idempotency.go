package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"ledger/internal/core/apperror"
)

const (
	idempotencyTable = "sys_idempotency"

	// staleAfter is how long a pending key may sit before another request reclaims it.
	staleAfter = time.Minute
)

// IdempotencyStatus is the state of a keyed request.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
	IdempotencyStatusFailed  IdempotencyStatus = "failed"
)

// IdempotencyRecord is a row of sys_idempotency.
type IdempotencyRecord struct {
	Key         string            `db:"idempotency_key"`
	UserID      string            `db:"user_id"`
	Operation   string            `db:"operation"`
	Status      IdempotencyStatus `db:"status"`
	RequestHash string            `db:"request_hash"`
	Response    []byte            `db:"response"`
	StatusCode  *int              `db:"response_status"`
	ContentType *string           `db:"response_content_type"`
	CreatedAt   time.Time         `db:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at"`
	ExpiresAt   time.Time         `db:"expires_at"`
	Inserted    bool              `db:"inserted"`
}

// IdempotencyReplay is a stored response sent again for a repeated request.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore keeps the outcome of mutating requests (posting a move,
// reconciling lines) so that a client retrying with the same key does not
// book twice.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
}

// NewIdempotencyStore creates a store whose keys live for ttl.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager, ttl: ttl}
}

// AcquireKey claims key for a request.
//
//   - (nil, nil): the caller owns the key and must complete or fail it
//   - (replay, nil): the request already finished, send the stored response
//   - (nil, err): the key is held by a running request or was used for another one
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*IdempotencyReplay, error) {
	now := time.Now().UTC()

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, `
		INSERT INTO `+idempotencyTable+` (idempotency_key, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (idempotency_key) DO UPDATE SET
			expires_at = GREATEST(`+idempotencyTable+`.expires_at, EXCLUDED.expires_at)
		RETURNING idempotency_key, user_id, operation, status, request_hash, response,
			response_status, response_content_type, created_at, updated_at, expires_at,
			(xmax = 0) AS inserted
	`, key, userID, operation, IdempotencyStatusPending, requestHash, now, now.Add(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	record, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[IdempotencyRecord])
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}

	if record.Inserted {
		return nil, nil
	}

	if record.UserID != userID || record.Operation != operation || record.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", record.Operation).
			WithDetail("request_operation", operation)
	}

	switch record.Status {
	case IdempotencyStatusSuccess, IdempotencyStatusFailed:
		return record.replay(), nil
	case IdempotencyStatusPending:
		if now.Sub(record.UpdatedAt) <= staleAfter {
			return nil, apperror.NewIdempotencyConflict(key)
		}
		// the previous owner most likely died mid-request
		tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
			UPDATE `+idempotencyTable+`
			SET updated_at = $1
			WHERE idempotency_key = $2 AND status = $3 AND updated_at = $4
		`, now, key, IdempotencyStatusPending, record.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("reclaim stale key: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, apperror.NewIdempotencyConflict(key)
		}
		return nil, nil
	}
	return nil, nil
}

// CompleteKey stores a successful response under key.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	body, err := marshalResponse(response)
	if err != nil {
		return err
	}
	return s.finish(ctx, key, IdempotencyStatusSuccess, statusCode, contentType, body)
}

// FailKey stores an error response under key. Errors are replayed too, so a
// retry of a request rejected for a business reason gets the same answer.
func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	body, err := marshalResponse(response)
	if err != nil {
		body, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	return s.finish(ctx, key, IdempotencyStatusFailed, statusCode, contentType, body)
}

// ReleaseKey drops a pending key so the request may be retried, used when
// the failure was not the client's fault.
func (s *IdempotencyStore) ReleaseKey(ctx context.Context, key string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM `+idempotencyTable+` WHERE idempotency_key = $1 AND status = $2`,
		key, IdempotencyStatusPending)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM `+idempotencyTable+` WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status IdempotencyStatus, statusCode int, contentType string, body []byte) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE `+idempotencyTable+`
		SET status = $1,
		    response = $2,
		    response_status = $3,
		    response_content_type = $4,
		    updated_at = $5
		WHERE idempotency_key = $6
	`, status, body, statusCode, contentType, time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("finish idempotency key: %w", err)
	}
	return nil
}

func (r IdempotencyRecord) replay() *IdempotencyReplay {
	out := &IdempotencyReplay{
		StatusCode:  http.StatusOK,
		ContentType: "application/json",
		Body:        r.Response,
	}
	if r.StatusCode != nil && *r.StatusCode != 0 {
		out.StatusCode = *r.StatusCode
	}
	// 204 replays with no content type
	if r.ContentType != nil {
		out.ContentType = *r.ContentType
	}
	return out
}

func marshalResponse(response any) ([]byte, error) {
	if response == nil {
		return nil, nil
	}
	b, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return b, nil
}

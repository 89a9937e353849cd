package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mdwarren/curlshop/internal/model"
)

var (
	ErrTokenNotFound = errors.New("download token not found")
	ErrTokenExpired  = errors.New("download token expired")
	ErrDownloadLimit = errors.New("download limit reached")
	ErrExtendLimit   = errors.New("extension limit reached")
)

type TokenStore struct {
	db *sql.DB
}

func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

func scanToken(scanner interface{ Scan(...any) error }) (*model.DownloadToken, error) {
	var t model.DownloadToken
	err := scanner.Scan(
		&t.ID, &t.OrderID, &t.Token, &t.DownloadCount, &t.MaxDownloads,
		&t.Extensions, &t.ExpiresAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const tokenCols = `id, order_id, token, download_count, max_downloads, extensions, expires_at, created_at`

// generateToken returns a 128-bit crypto-random hex string.
func generateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Create mints a download token for an order. A collision on the random
// token value is vanishingly unlikely but retried rather than assumed
// away: the unique constraint rejects the insert and a fresh token is
// generated.
func (s *TokenStore) Create(orderID int64, ttl time.Duration, maxDownloads int) (*model.DownloadToken, error) {
	expiresAt := time.Now().UTC().Add(ttl)

	var id int64
	backoff := retry.WithMaxRetries(3, retry.NewConstant(time.Millisecond))
	err := retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		token, err := generateToken()
		if err != nil {
			return err
		}
		result, err := s.db.Exec(
			`INSERT INTO download_tokens (order_id, token, max_downloads, expires_at) VALUES (?, ?, ?, ?)`,
			orderID, token, maxDownloads, expiresAt,
		)
		if isUniqueViolation(err) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return fmt.Errorf("insert download token: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *TokenStore) GetByID(id int64) (*model.DownloadToken, error) {
	row := s.db.QueryRow(`SELECT `+tokenCols+` FROM download_tokens WHERE id = ?`, id)
	t, err := scanToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get download token: %w", err)
	}
	return t, nil
}

func (s *TokenStore) GetByToken(token string) (*model.DownloadToken, error) {
	row := s.db.QueryRow(`SELECT `+tokenCols+` FROM download_tokens WHERE token = ?`, token)
	t, err := scanToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get download token by value: %w", err)
	}
	return t, nil
}

// ActiveByOrder returns the newest token for an order that is unexpired
// and under its download cap, or nil.
func (s *TokenStore) ActiveByOrder(orderID int64) (*model.DownloadToken, error) {
	row := s.db.QueryRow(
		`SELECT `+tokenCols+` FROM download_tokens
		 WHERE order_id = ? AND download_count < max_downloads AND expires_at > ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		orderID, time.Now().UTC(),
	)
	t, err := scanToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active token by order: %w", err)
	}
	return t, nil
}

// GetOrCreateActive returns the order's active token, minting one inside
// a transaction when none exists. The reconciler and the portal both use
// this, so a webhook that fires twice or races the polling path still
// yields a single token.
func (s *TokenStore) GetOrCreateActive(orderID int64, ttl time.Duration, maxDownloads int) (*model.DownloadToken, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(
		`SELECT `+tokenCols+` FROM download_tokens
		 WHERE order_id = ? AND download_count < max_downloads AND expires_at > ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		orderID, time.Now().UTC(),
	)
	t, err := scanToken(row)
	if err == nil {
		return t, tx.Commit()
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("active token by order: %w", err)
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(ttl)
	result, err := tx.Exec(
		`INSERT INTO download_tokens (order_id, token, max_downloads, expires_at) VALUES (?, ?, ?, ?)`,
		orderID, token, maxDownloads, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert download token: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// Redeem spends one download from the token. The check and increment are
// a single conditional UPDATE, so concurrent redemptions of the last
// remaining use cannot both succeed. Failures are classified as
// ErrTokenNotFound, ErrTokenExpired, or ErrDownloadLimit.
func (s *TokenStore) Redeem(token string) (*model.DownloadToken, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`UPDATE download_tokens SET download_count = download_count + 1
		 WHERE token = ? AND download_count < max_downloads AND expires_at > ?`,
		token, now,
	)
	if err != nil {
		return nil, fmt.Errorf("redeem token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return s.GetByToken(token)
	}

	// Nothing updated: classify why.
	t, err := s.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTokenNotFound
	}
	if !now.Before(t.ExpiresAt) {
		return t, ErrTokenExpired
	}
	return t, ErrDownloadLimit
}

// Extend pushes the token's expiry to now + ttl. The download count is
// not reset. Extensions are capped; past the cap the customer needs a
// fresh token (or support).
func (s *TokenStore) Extend(token string, ttl time.Duration, maxExtensions int) (*model.DownloadToken, error) {
	newExpiry := time.Now().UTC().Add(ttl)
	result, err := s.db.Exec(
		`UPDATE download_tokens SET expires_at = ?, extensions = extensions + 1
		 WHERE token = ? AND extensions < ?`,
		newExpiry, token, maxExtensions,
	)
	if err != nil {
		return nil, fmt.Errorf("extend token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return s.GetByToken(token)
	}

	t, err := s.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTokenNotFound
	}
	return t, ErrExtendLimit
}

// RevokeByOrder disables every token for an order by zeroing the
// download cap. Used when an order is refunded.
func (s *TokenStore) RevokeByOrder(orderID int64) error {
	_, err := s.db.Exec(`UPDATE download_tokens SET max_downloads = 0 WHERE order_id = ?`, orderID)
	if err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	return nil
}

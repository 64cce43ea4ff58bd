// Package keystore stores user-supplied provider API keys (BYOK),
// encrypted at rest with AES-256-GCM under a service-owned data key.
package keystore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrInvalidDataKey indicates the data key has the wrong length.
var ErrInvalidDataKey = errors.New("data key must be 32 bytes")

// DB is the database boundary, satisfied by *pgxpool.Pool.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store looks up and decrypts stored keys.
//
// Store is safe for concurrent use.
type Store struct {
	db      DB
	dataKey []byte
	logger  *slog.Logger
}

// New creates a Store. dataKey must be 32 bytes (AES-256).
func New(db DB, dataKey []byte, logger *slog.Logger) (*Store, error) {
	if len(dataKey) != 32 {
		return nil, ErrInvalidDataKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, dataKey: dataKey, logger: logger}, nil
}

// DecryptedKey returns the stored key for (userID, provider), or "" when
// none exists. Query and decryption failures are returned as errors; the
// credential resolver absorbs them.
func (s *Store) DecryptedKey(ctx context.Context, userID, provider string) (string, error) {
	var ciphertext, nonce []byte
	err := s.db.QueryRow(ctx,
		`SELECT key_ciphertext, nonce FROM api_keys WHERE user_id = $1 AND provider = $2`,
		userID, provider,
	).Scan(&ciphertext, &nonce)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query api key: %w", err)
	}

	plaintext, err := decrypt(s.dataKey, ciphertext, nonce)
	if err != nil {
		return "", fmt.Errorf("decrypt api key for user %q: %w", userID, err)
	}

	s.logger.Debug("byok key resolved", "user_id", userID, "provider", provider)
	return string(plaintext), nil
}

// Put encrypts and stores a key, replacing any existing entry for
// (userID, provider).
func (s *Store) Put(ctx context.Context, userID, provider, apiKey string) error {
	ciphertext, nonce, err := encrypt(s.dataKey, []byte(apiKey))
	if err != nil {
		return fmt.Errorf("encrypt api key: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO api_keys (user_id, provider, key_ciphertext, nonce)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, provider)
		 DO UPDATE SET key_ciphertext = EXCLUDED.key_ciphertext, nonce = EXCLUDED.nonce`,
		userID, provider, ciphertext, nonce,
	)
	if err != nil {
		return fmt.Errorf("store api key: %w", err)
	}
	return nil
}

func encrypt(key, plaintext []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

func decrypt(key, ciphertext, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}

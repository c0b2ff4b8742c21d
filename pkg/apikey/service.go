package apikey

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askaq/aaq/internal/auth"
	"github.com/askaq/aaq/internal/db"
)

// Service wraps Store with key-generation logic.
type Service struct {
	store *Store
	pool  *pgxpool.Pool
}

// NewService creates an apikey Service.
func NewService(store *Store, pool *pgxpool.Pool) *Service {
	return &Service{store: store, pool: pool}
}

// Rotate generates a cryptographically random 32-character key, stores
// only its hash, and returns the plaintext exactly once, per spec §4.1.
// The underlying Store.Rotate locks the workspace row for the duration of
// the transaction so concurrent rotations serialize.
func (s *Service) Rotate(ctx context.Context, workspaceID int64) (RotateResponse, error) {
	rawKey, err := generateAPIKey()
	if err != nil {
		return RotateResponse{}, fmt.Errorf("generating key: %w", err)
	}
	hash := auth.HashAPIKey(rawKey)

	var out Row
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		row, txErr := s.store.Rotate(ctx, tx, workspaceID, hash)
		if txErr != nil {
			return txErr
		}
		out = row
		return nil
	})
	if err != nil {
		return RotateResponse{}, fmt.Errorf("rotating key: %w", err)
	}

	return RotateResponse{Response: out.ToResponse(), Key: rawKey}, nil
}

// generateAPIKey returns a cryptographically random 32-character key drawn
// from an unpadded base32 alphabet (uppercase letters and digits 2-7).
func generateAPIKey() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
	return strings.ToUpper(encoded)[:32], nil
}

package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	refCharset   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	refLength    = 16
	digitCharset = "0123456789"

	// maxRefAttempts bounds the retry loop. A collision in the 36^16
	// keyspace is expected at low but nonzero probability; exhausting the
	// bound is anomalous and surfaced as REF_001, never looped forever.
	maxRefAttempts = 10
)

// ExistsFunc reports whether a candidate identifier is already taken.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// ReferenceGenerator produces collision-checked unique identifiers for
// transaction references and wallet numbers. The store's uniqueness
// constraints remain the final arbiter beneath this retry loop.
type ReferenceGenerator struct {
	log zerolog.Logger
}

// NewReferenceGenerator creates a ReferenceGenerator.
func NewReferenceGenerator(log zerolog.Logger) *ReferenceGenerator {
	return &ReferenceGenerator{log: log}
}

// Generate produces a random string from charset of the given length,
// retrying while exists reports a collision, bounded by maxRefAttempts.
func (g *ReferenceGenerator) Generate(ctx context.Context, charset string, length int, exists ExistsFunc) (string, error) {
	for attempt := 1; attempt <= maxRefAttempts; attempt++ {
		candidate, err := randomString(charset, length)
		if err != nil {
			return "", apperror.InternalError(fmt.Errorf("random reference: %w", err))
		}

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", apperror.InternalError(fmt.Errorf("reference existence check: %w", err))
		}
		if !taken {
			return candidate, nil
		}

		g.log.Warn().
			Int("attempt", attempt).
			Int("length", length).
			Msg("reference collision, retrying")
	}

	g.log.Error().Int("max_attempts", maxRefAttempts).Msg("reference keyspace exhausted")
	return "", apperror.ErrReferenceExhausted()
}

// TransactionReference generates a 16-character alphanumeric reference root.
// For transfers both derived legs (<ref>_OUT and <ref>_IN) must be free, so
// exists is consulted for each derivation.
func (g *ReferenceGenerator) TransactionReference(ctx context.Context, exists ExistsFunc) (string, error) {
	return g.Generate(ctx, refCharset, refLength, exists)
}

// TransferReference generates a reference root whose _OUT and _IN
// derivations are both unused.
func (g *ReferenceGenerator) TransferReference(ctx context.Context, exists ExistsFunc) (string, error) {
	bothFree := func(ctx context.Context, root string) (bool, error) {
		if taken, err := exists(ctx, domain.OutgoingRef(root)); err != nil || taken {
			return taken, err
		}
		return exists(ctx, domain.IncomingRef(root))
	}
	return g.Generate(ctx, refCharset, refLength, bothFree)
}

// WalletNumber generates a free 10-digit numeric wallet number.
func (g *ReferenceGenerator) WalletNumber(ctx context.Context, exists ExistsFunc) (string, error) {
	return g.Generate(ctx, digitCharset, domain.WalletNumberLength, exists)
}

// randomString draws length characters from charset using crypto/rand.
func randomString(charset string, length int) (string, error) {
	max := big.NewInt(int64(len(charset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = charset[n.Int64()]
	}
	return string(out), nil
}

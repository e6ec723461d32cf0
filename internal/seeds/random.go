// Package seeds acquires seed material and keeps unrevealed server seeds
// in the OS keyring.
package seeds

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/MJE43/stake-roulette-sim/internal/engine"
)

// The 64 character set used for client seeds. '_' and '-' appear at
// both ends.
const charset = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_-"

const (
	serverSeedBytes = 32
	clientSeedLen   = 10
	maxStartNonce   = 1_000_000
)

// RandomString returns length characters drawn from the client seed charset.
func RandomString(length int) (string, error) {
	b := make([]byte, length)
	max := big.NewInt(int64(len(charset)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("seeds: random string: %w", err)
		}
		b[i] = charset[n.Int64()]
	}
	return string(b), nil
}

// RandomServerSeed returns 32 random bytes as lowercase hex. The hex text
// itself is the HMAC key.
func RandomServerSeed() (string, error) {
	b := make([]byte, serverSeedBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("seeds: server seed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// RandomClientSeed returns a 10 character client seed.
func RandomClientSeed() (string, error) {
	return RandomString(clientSeedLen)
}

// RandomStartNonce returns a starting nonce in [1, 1_000_000].
func RandomStartNonce() (uint64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxStartNonce))
	if err != nil {
		return 0, fmt.Errorf("seeds: start nonce: %w", err)
	}
	return n.Uint64() + 1, nil
}

// Random returns a fresh seed pair and starting nonce.
func Random() (engine.Seeds, uint64, error) {
	server, err := RandomServerSeed()
	if err != nil {
		return engine.Seeds{}, 0, err
	}
	client, err := RandomClientSeed()
	if err != nil {
		return engine.Seeds{}, 0, err
	}
	nonce, err := RandomStartNonce()
	if err != nil {
		return engine.Seeds{}, 0, err
	}
	return engine.Seeds{Server: server, Client: client}, nonce, nil
}

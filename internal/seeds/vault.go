package seeds

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/MJE43/stake-roulette-sim/internal/engine"
)

// DefaultService is the keyring service name used when none is given.
const DefaultService = "stake-roulette-sim"

// ErrSeedMismatch is returned when a stored seed does not hash to the
// commitment it was filed under.
var ErrSeedMismatch = errors.New("server seed does not match its hash")

// ErrSeedNotFound is returned when no seed is stored for a hash.
var ErrSeedNotFound = errors.New("server seed not found")

// Vault keeps server seeds secret until they are revealed. Seeds are filed
// under their SHA-256 commitment, so the public hash is the only handle a
// caller needs. When no OS keyring is available the vault falls back to a
// 0600 JSON file if one is configured.
type Vault struct {
	service      string
	fallbackPath string
	mu           sync.Mutex
}

// NewVault creates a vault for service.
func NewVault(service, fallbackPath string) *Vault {
	if strings.TrimSpace(service) == "" {
		service = DefaultService
	}
	return &Vault{service: service, fallbackPath: fallbackPath}
}

func (v *Vault) key(hash string) string {
	return "server-seed/" + hash
}

// Store files seed and returns its commitment.
func (v *Vault) Store(seed string) (string, error) {
	if seed == "" {
		return "", fmt.Errorf("seeds: server seed is required")
	}
	hash := engine.HashServerSeed(seed)
	err := keyring.Set(v.service, v.key(hash), seed)
	if err == nil {
		return hash, nil
	}
	if !isKeyringUnavailable(err) {
		return "", fmt.Errorf("seeds: keyring set: %w", err)
	}
	if err := v.setFallback(hash, seed); err != nil {
		return "", err
	}
	return hash, nil
}

// Reveal returns the seed filed under hash after checking it still hashes
// to hash.
func (v *Vault) Reveal(hash string) (string, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	seed, err := keyring.Get(v.service, v.key(hash))
	if err != nil {
		if !isKeyringUnavailable(err) && !errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("seeds: keyring get: %w", err)
		}
		fallback, ferr := v.getFallback(hash)
		if ferr != nil {
			return "", ferr
		}
		seed = fallback
	}

	got := engine.HashServerSeed(seed)
	if subtle.ConstantTimeCompare([]byte(got), []byte(hash)) != 1 {
		return "", fmt.Errorf("seeds: reveal %s: %w", hash, ErrSeedMismatch)
	}
	return seed, nil
}

// Forget removes the seed filed under hash from both backends.
func (v *Vault) Forget(hash string) error {
	hash = strings.ToLower(strings.TrimSpace(hash))
	err := keyring.Delete(v.service, v.key(hash))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) && !isKeyringUnavailable(err) {
		return fmt.Errorf("seeds: keyring delete: %w", err)
	}
	return v.deleteFallback(hash)
}

func isKeyringUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "secret service") ||
		strings.Contains(msg, "dbus") ||
		strings.Contains(msg, "no keychain") ||
		strings.Contains(msg, "keyring backend not available")
}

type fallbackSeeds map[string]string

func (v *Vault) setFallback(hash, seed string) error {
	if strings.TrimSpace(v.fallbackPath) == "" {
		return fmt.Errorf("seeds: keyring unavailable and no fallback path configured")
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := v.readFallbackUnlocked()
	if err != nil {
		return err
	}
	data[hash] = seed
	return v.writeFallbackUnlocked(data)
}

func (v *Vault) getFallback(hash string) (string, error) {
	if strings.TrimSpace(v.fallbackPath) == "" {
		return "", fmt.Errorf("seeds: reveal %s: %w", hash, ErrSeedNotFound)
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := v.readFallbackUnlocked()
	if err != nil {
		return "", err
	}
	seed, ok := data[hash]
	if !ok {
		return "", fmt.Errorf("seeds: reveal %s: %w", hash, ErrSeedNotFound)
	}
	return seed, nil
}

func (v *Vault) deleteFallback(hash string) error {
	if strings.TrimSpace(v.fallbackPath) == "" {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := v.readFallbackUnlocked()
	if err != nil {
		return err
	}
	if _, ok := data[hash]; !ok {
		return nil
	}
	delete(data, hash)
	return v.writeFallbackUnlocked(data)
}

func (v *Vault) readFallbackUnlocked() (fallbackSeeds, error) {
	out := fallbackSeeds{}
	raw, err := os.ReadFile(v.fallbackPath)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("seeds: read fallback: %w", err)
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("seeds: decode fallback: %w", err)
	}
	return out, nil
}

func (v *Vault) writeFallbackUnlocked(data fallbackSeeds) error {
	if err := os.MkdirAll(filepath.Dir(v.fallbackPath), 0o700); err != nil {
		return fmt.Errorf("seeds: mkdir fallback dir: %w", err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("seeds: encode fallback: %w", err)
	}
	if err := os.WriteFile(v.fallbackPath, raw, 0o600); err != nil {
		return fmt.Errorf("seeds: write fallback: %w", err)
	}
	return nil
}

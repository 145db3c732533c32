package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultJWKSRefresh is the JWKS cache lifetime when JWKSConfig.Refresh is unset.
const DefaultJWKSRefresh = time.Hour

// JWKSConfig configures the JWKS key provider.
type JWKSConfig struct {
	// URL is the JWKS endpoint.
	URL string

	// Refresh is how long fetched keys are trusted.
	// Default: 1 hour
	Refresh time.Duration

	// Client performs the fetch. Default: 10s timeout.
	Client *http.Client
}

// JWKSKeyProvider serves RSA keys fetched from a JWKS endpoint. Concurrent
// misses share a single fetch; a failed refresh keeps serving the last keys.
type JWKSKeyProvider struct {
	config JWKSConfig
	group  singleflight.Group

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewJWKSKeyProvider creates a JWKS key provider. Keys are fetched lazily.
func NewJWKSKeyProvider(config JWKSConfig) *JWKSKeyProvider {
	if config.Refresh <= 0 {
		config.Refresh = DefaultJWKSRefresh
	}
	if config.Client == nil {
		config.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return &JWKSKeyProvider{config: config}
}

// GetKey returns the key for keyID. An empty keyID matches a single-key set.
func (p *JWKSKeyProvider) GetKey(ctx context.Context, keyID string) (any, error) {
	p.mu.RLock()
	key, fresh := p.lookupLocked(keyID), time.Since(p.fetchedAt) < p.config.Refresh
	p.mu.RUnlock()
	if key != nil && fresh {
		return key, nil
	}

	_, err, _ := p.group.Do("refresh", func() (any, error) {
		return nil, p.refresh(ctx)
	})

	p.mu.RLock()
	key = p.lookupLocked(keyID)
	p.mu.RUnlock()
	if key != nil {
		return key, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, ErrKeyNotFound
}

func (p *JWKSKeyProvider) lookupLocked(keyID string) *rsa.PublicKey {
	if keyID == "" && len(p.keys) == 1 {
		for _, key := range p.keys {
			return key
		}
	}
	return p.keys[keyID]
}

func (p *JWKSKeyProvider) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.URL, nil)
	if err != nil {
		return fmt.Errorf("jwks: %w", err)
	}
	resp, err := p.config.Client.Do(req)
	if err != nil {
		return fmt.Errorf("jwks fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks fetch: unexpected status %d", resp.StatusCode)
	}

	var set struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("jwks decode: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Kty != "RSA" {
			continue
		}
		if key, err := jwk.rsaPublicKey(); err == nil {
			keys[jwk.Kid] = key
		}
	}

	p.mu.Lock()
	p.keys = keys
	p.fetchedAt = time.Now()
	p.mu.Unlock()
	return nil
}

type jsonWebKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k jsonWebKey) rsaPublicKey() (*rsa.PublicKey, error) {
	if k.N == "" || k.E == "" {
		return nil, errors.New("jwks: missing modulus or exponent")
	}
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("jwks: decode n: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("jwks: decode e: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(new(big.Int).SetBytes(e).Int64()),
	}, nil
}

var _ KeyProvider = (*JWKSKeyProvider)(nil)

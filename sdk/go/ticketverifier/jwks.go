package ticketverifier

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
)

// KeySource supplies the verification keys a Verifier accepts.
type KeySource interface {
	// Keys returns the current keys, fetching them first if needed.
	Keys(ctx context.Context) ([]ed25519.PublicKey, error)
	// Refresh reloads the keys. Sources with fixed keys return nil.
	Refresh(ctx context.Context) error
}

type staticKeys []ed25519.PublicKey

// StaticKeys returns a KeySource over raw 32 byte Ed25519 public keys, as
// returned by GetVerificationKeys.
func StaticKeys(keys ...[]byte) (KeySource, error) {
	out := make(staticKeys, 0, len(keys))
	for _, k := range keys {
		if len(k) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: key length %d", ErrInvalidKey, len(k))
		}
		out = append(out, ed25519.PublicKey(append([]byte(nil), k...)))
	}
	if len(out) == 0 {
		return nil, ErrNoKeysFound
	}
	return out, nil
}

func (s staticKeys) Keys(context.Context) ([]ed25519.PublicKey, error) { return s, nil }
func (s staticKeys) Refresh(context.Context) error                      { return nil }

// JWKSRefresher fetches and caches the key set published by the service. It
// revalidates with If-None-Match so an unchanged set costs one 304.
type JWKSRefresher struct {
	jwksURL    string
	httpClient *http.Client

	cacheMutex sync.RWMutex
	keys       map[string]ed25519.PublicKey
	lastETag   string
}

// NewJWKSRefresher creates a refresher for jwksURL. A nil client means a
// client with a 10 second timeout.
func NewJWKSRefresher(jwksURL string, client *http.Client) *JWKSRefresher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &JWKSRefresher{
		jwksURL:    jwksURL,
		httpClient: client,
		keys:       make(map[string]ed25519.PublicKey),
	}
}

// Keys implements KeySource.
func (r *JWKSRefresher) Keys(ctx context.Context) ([]ed25519.PublicKey, error) {
	r.cacheMutex.RLock()
	empty := len(r.keys) == 0
	r.cacheMutex.RUnlock()

	if empty {
		if err := r.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	r.cacheMutex.RLock()
	defer r.cacheMutex.RUnlock()
	out := make([]ed25519.PublicKey, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, k)
	}
	return out, nil
}

// KeyIDs returns the ids of the cached keys.
func (r *JWKSRefresher) KeyIDs() []string {
	r.cacheMutex.RLock()
	defer r.cacheMutex.RUnlock()
	ids := make([]string, 0, len(r.keys))
	for kid := range r.keys {
		ids = append(ids, kid)
	}
	return ids
}

// Refresh implements KeySource by fetching the key set.
func (r *JWKSRefresher) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.jwksURL, nil)
	if err != nil {
		return err
	}

	r.cacheMutex.RLock()
	if r.lastETag != "" && len(r.keys) > 0 {
		req.Header.Set("If-None-Match", r.lastETag)
	}
	r.cacheMutex.RUnlock()

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch JWKS: status code %d", resp.StatusCode)
	}

	var jwks jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return err
	}

	fresh := make(map[string]ed25519.PublicKey)
	for _, key := range jwks.Keys {
		if key.Algorithm != string(jose.EdDSA) {
			continue
		}
		if pub, ok := key.Key.(ed25519.PublicKey); ok {
			fresh[key.KeyID] = pub
		}
	}
	if len(fresh) == 0 {
		return ErrNoKeysFound
	}

	r.cacheMutex.Lock()
	r.keys = fresh
	r.lastETag = resp.Header.Get("ETag")
	r.cacheMutex.Unlock()
	return nil
}

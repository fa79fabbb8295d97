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

	"github.com/sirupsen/logrus"
)

// DefaultKeyTTL bounds how long fetched signing keys are trusted before the
// JWKS endpoint is consulted again. Cognito rotates keys rarely, but a
// bounded TTL keeps rotation from requiring a restart.
const DefaultKeyTTL = 24 * time.Hour

// refreshBackoff limits how often an unknown kid can trigger a re-fetch, so
// a flood of bad tokens cannot hammer the JWKS endpoint.
const refreshBackoff = time.Minute

var (
	ErrUnknownKeyID = errors.New("token signed with unknown key id")
	ErrKeysetFetch  = errors.New("failed to fetch signing keys")
)

// jwk is the subset of an RFC 7517 key we need for RS256 verification.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// KeySet is a lazily-populated, refreshable cache of the identity provider's
// RSA public keys, keyed by kid. Safe for concurrent use.
type KeySet struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewKeySet builds a KeySet over the given JWKS endpoint. A nil client gets
// a default with a sane timeout; ttl <= 0 means DefaultKeyTTL.
func NewKeySet(url string, ttl time.Duration, client *http.Client) *KeySet {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if ttl <= 0 {
		ttl = DefaultKeyTTL
	}
	return &KeySet{
		url:    url,
		ttl:    ttl,
		client: client,
	}
}

// Key returns the public key for kid, fetching or refreshing the set as
// needed. An unknown kid triggers at most one (backoff-limited) re-fetch
// before failing, which covers key rotation without unbounded fetching.
func (ks *KeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	ks.mu.RLock()
	key, ok := ks.keys[kid]
	fresh := time.Since(ks.fetchedAt) < ks.ttl
	ks.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	// Another request may have refreshed while we waited for the lock.
	if key, ok := ks.keys[kid]; ok && time.Since(ks.fetchedAt) < ks.ttl {
		return key, nil
	}

	if time.Since(ks.fetchedAt) >= refreshBackoff || ks.keys == nil {
		if err := ks.refreshLocked(ctx); err != nil {
			// Keep serving cached keys if we have them: a transient JWKS
			// outage should not invalidate tokens signed with known keys.
			if key, ok := ks.keys[kid]; ok {
				logrus.Warnf("jwks refresh failed, using cached key %s: %v", kid, err)
				return key, nil
			}
			return nil, err
		}
	}

	if key, ok := ks.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKeyID, kid)
}

// Invalidate forces the next Key call to re-fetch.
func (ks *KeySet) Invalidate() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.fetchedAt = time.Time{}
}

// refreshLocked fetches and replaces the key map. Caller holds the lock.
func (ks *KeySet) refreshLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeysetFetch, err)
	}

	resp, err := ks.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeysetFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d from %s", ErrKeysetFetch, resp.StatusCode, ks.url)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrKeysetFetch, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := k.publicKey()
		if err != nil {
			logrus.Warnf("skipping malformed jwk %s: %v", k.Kid, err)
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: no usable RSA keys at %s", ErrKeysetFetch, ks.url)
	}

	ks.keys = keys
	ks.fetchedAt = time.Now()
	logrus.Debugf("jwks refreshed: %d signing keys loaded", len(keys))
	return nil
}

// publicKey decodes the base64url modulus and exponent into an rsa.PublicKey.
func (k jwk) publicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("bad modulus: %v", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("bad exponent: %v", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e <= 1 {
		return nil, errors.New("bad exponent value")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}

package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

// jwksDoc renders private keys as an RFC 7517 key set document.
func jwksDoc(keys map[string]*rsa.PrivateKey) map[string]interface{} {
	var out []map[string]string
	for kid, key := range keys {
		out = append(out, map[string]string{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": kid,
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		})
	}
	return map[string]interface{}{"keys": out}
}

// jwksServer serves the current key set and counts fetches.
type jwksServer struct {
	*httptest.Server
	fetches atomic.Int64
	keys    map[string]*rsa.PrivateKey
	fail    atomic.Bool
}

func newJWKSServer(keys map[string]*rsa.PrivateKey) *jwksServer {
	s := &jwksServer{keys: keys}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.fetches.Add(1)
		if s.fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(jwksDoc(s.keys))
	}))
	return s
}

func TestKeySetFetchesOnceForKnownKid(t *testing.T) {
	key := generateKey(t)
	srv := newJWKSServer(map[string]*rsa.PrivateKey{"kid-1": key})
	defer srv.Close()

	ks := NewKeySet(srv.URL, 0, srv.Client())
	ctx := context.Background()

	got, err := ks.Key(ctx, "kid-1")
	require.NoError(t, err)
	assert.Zero(t, got.N.Cmp(key.N))

	_, err = ks.Key(ctx, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), srv.fetches.Load())
}

func TestKeySetUnknownKid(t *testing.T) {
	srv := newJWKSServer(map[string]*rsa.PrivateKey{"kid-1": generateKey(t)})
	defer srv.Close()

	ks := NewKeySet(srv.URL, 0, srv.Client())
	_, err := ks.Key(context.Background(), "kid-missing")
	assert.ErrorIs(t, err, ErrUnknownKeyID)
}

func TestKeySetRotationAfterInvalidate(t *testing.T) {
	oldKey := generateKey(t)
	srv := newJWKSServer(map[string]*rsa.PrivateKey{"kid-old": oldKey})
	defer srv.Close()

	ks := NewKeySet(srv.URL, 0, srv.Client())
	ctx := context.Background()

	_, err := ks.Key(ctx, "kid-old")
	require.NoError(t, err)

	// The provider rotates. Inside the refresh backoff the unknown kid fails
	// without another fetch.
	newKey := generateKey(t)
	srv.keys = map[string]*rsa.PrivateKey{"kid-old": oldKey, "kid-new": newKey}
	_, err = ks.Key(ctx, "kid-new")
	assert.ErrorIs(t, err, ErrUnknownKeyID)
	assert.Equal(t, int64(1), srv.fetches.Load())

	ks.Invalidate()
	got, err := ks.Key(ctx, "kid-new")
	require.NoError(t, err)
	assert.Zero(t, got.N.Cmp(newKey.N))
	assert.Equal(t, int64(2), srv.fetches.Load())
}

func TestKeySetServesStaleOnFetchFailure(t *testing.T) {
	key := generateKey(t)
	srv := newJWKSServer(map[string]*rsa.PrivateKey{"kid-1": key})
	defer srv.Close()

	ks := NewKeySet(srv.URL, 0, srv.Client())
	ctx := context.Background()

	_, err := ks.Key(ctx, "kid-1")
	require.NoError(t, err)

	srv.fail.Store(true)
	ks.Invalidate()

	// Cached key still serves while the endpoint is down.
	got, err := ks.Key(ctx, "kid-1")
	require.NoError(t, err)
	assert.Zero(t, got.N.Cmp(key.N))
}

func TestKeySetFetchErrorWithoutCache(t *testing.T) {
	srv := newJWKSServer(map[string]*rsa.PrivateKey{"kid-1": generateKey(t)})
	defer srv.Close()
	srv.fail.Store(true)

	ks := NewKeySet(srv.URL, 0, srv.Client())
	_, err := ks.Key(context.Background(), "kid-1")
	assert.ErrorIs(t, err, ErrKeysetFetch)
}

func TestKeySetSkipsMalformedKeys(t *testing.T) {
	good := generateKey(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		doc := map[string]interface{}{
			"keys": []map[string]string{
				{"kty": "RSA", "kid": "kid-bad", "n": "!!not-base64!!", "e": "AQAB"},
				{"kty": "EC", "kid": "kid-ec", "n": "", "e": ""},
				{
					"kty": "RSA",
					"kid": "kid-good",
					"n":   base64.RawURLEncoding.EncodeToString(good.N.Bytes()),
					"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(good.E)).Bytes()),
				},
			},
		}
		_ = json.NewEncoder(w).Encode(doc)
	}))
	defer srv.Close()

	ks := NewKeySet(srv.URL, time.Hour, srv.Client())
	ctx := context.Background()

	got, err := ks.Key(ctx, "kid-good")
	require.NoError(t, err)
	assert.Zero(t, got.N.Cmp(good.N))

	_, err = ks.Key(ctx, "kid-bad")
	assert.ErrorIs(t, err, ErrUnknownKeyID)
}

package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// tokenServer is a fake OAuth token endpoint. With fail set it answers
// like Google does for a revoked refresh token.
func tokenServer(t *testing.T, fail bool) (*oauth2.Config, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if fail {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
			return
		}
		w.Write([]byte(`{"access_token":"fresh-access","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)

	return &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  srv.URL + "/auth",
			TokenURL: srv.URL + "/token",
		},
	}, &calls
}

func expiredToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "stale-access",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Hour),
	}
}

func noConsent(t *testing.T) ConsentFunc {
	return func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
		t.Error("consent should not be requested")
		return nil, errors.New("unexpected consent")
	}
}

func TestAcquireCredentialValidToken(t *testing.T) {
	cfg, calls := tokenServer(t, false)
	store := &TokenStore{Path: filepath.Join(t.TempDir(), "token.json")}
	require.NoError(t, store.Save(testToken("access-1")))

	cred, err := AcquireCredential(context.Background(), cfg, store, noConsent(t), time.Second)
	require.NoError(t, err)
	require.NoError(t, cred.Release())

	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
	_, err = os.Stat(store.Path + BackupSuffix)
	assert.True(t, os.IsNotExist(err), "unchanged token should not be rewritten")
}

func TestAcquireCredentialRefreshes(t *testing.T) {
	cfg, calls := tokenServer(t, false)
	store := &TokenStore{Path: filepath.Join(t.TempDir(), "token.json")}
	require.NoError(t, store.Save(expiredToken()))

	cred, err := AcquireCredential(context.Background(), cfg, store, noConsent(t), time.Second)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", saved.AccessToken)
	assert.Equal(t, "refresh-1", saved.RefreshToken, "refresh token must survive a refresh")

	require.NoError(t, cred.Release())
	assert.NotNil(t, cred.Client(context.Background()))
}

func TestAcquireCredentialFallsBackToConsent(t *testing.T) {
	cfg, _ := tokenServer(t, true)
	store := &TokenStore{Path: filepath.Join(t.TempDir(), "token.json")}
	require.NoError(t, store.Save(expiredToken()))

	consented := 0
	consent := func(ctx context.Context, c *oauth2.Config) (*oauth2.Token, error) {
		consented++
		return testToken("consented-access"), nil
	}

	_, err := AcquireCredential(context.Background(), cfg, store, consent, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, consented)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "consented-access", saved.AccessToken)
}

func TestAcquireCredentialNoTokenNoTerminal(t *testing.T) {
	cfg, _ := tokenServer(t, false)
	store := &TokenStore{Path: filepath.Join(t.TempDir(), "token.json")}

	_, err := AcquireCredential(context.Background(), cfg, store, nil, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthentication))
	assert.Contains(t, err.Error(), "authorize")
	assert.False(t, store.Exists())
}

func TestAcquireCredentialConsentDenied(t *testing.T) {
	cfg, _ := tokenServer(t, false)
	store := &TokenStore{Path: filepath.Join(t.TempDir(), "token.json")}
	consent := func(ctx context.Context, c *oauth2.Config) (*oauth2.Token, error) {
		return nil, errors.New("user closed the window")
	}

	_, err := AcquireCredential(context.Background(), cfg, store, consent, time.Second)
	assert.True(t, errors.Is(err, ErrAuthentication))
	assert.Equal(t, ExitAuth, ExitCode(err))
	assert.False(t, store.Exists())
}

func TestAcquireCredentialSealedTokenWithoutPassphrase(t *testing.T) {
	cfg, _ := tokenServer(t, false)
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, (&TokenStore{Path: path, Passphrase: "hunter2"}).Save(testToken("access-1")))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = AcquireCredential(context.Background(), cfg, &TokenStore{Path: path}, noConsent(t), time.Second)
	assert.True(t, errors.Is(err, ErrAuthentication))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "an unreadable token must not be replaced")
}

func TestAcquireCredentialRefreshTimesOut(t *testing.T) {
	unblock := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-unblock
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(unblock) })

	cfg := &oauth2.Config{
		ClientID: "client-id",
		Endpoint: oauth2.Endpoint{TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams},
	}
	store := &TokenStore{Path: filepath.Join(t.TempDir(), "token.json")}
	require.NoError(t, store.Save(expiredToken()))

	done := make(chan error, 1)
	go func() {
		_, err := AcquireCredential(context.Background(), cfg, store, nil, 200*time.Millisecond)
		done <- err
	}()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrAuthentication), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("token refresh is not bounded by the timeout")
	}
}

func TestCredentialReleaseReportsRefreshFailure(t *testing.T) {
	cfg, _ := tokenServer(t, true)
	store := &TokenStore{Path: filepath.Join(t.TempDir(), "token.json")}
	cred := &Credential{store: store, source: cfg.TokenSource(context.Background(), expiredToken())}

	err := cred.Release()
	assert.True(t, errors.Is(err, ErrAuthentication), "got %v", err)
	assert.False(t, store.Exists())
}

func TestLoadOAuthConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"installed":{
		"client_id":"abc.apps.googleusercontent.com",
		"client_secret":"shh",
		"auth_uri":"https://accounts.google.com/o/oauth2/auth",
		"token_uri":"https://oauth2.googleapis.com/token",
		"redirect_uris":["http://localhost"]}}`), 0600))

	cfg, err := LoadOAuthConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "abc.apps.googleusercontent.com", cfg.ClientID)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/calendar.events"}, cfg.Scopes)

	_, err = LoadOAuthConfig(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, ErrAuthentication))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"web":{}}`), 0600))
	_, err = LoadOAuthConfig(bad)
	assert.True(t, errors.Is(err, ErrAuthentication))
}

package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

// ConsentFunc obtains a fresh token from the user
type ConsentFunc func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)

// Credential is the calendar authorisation for one run. It is acquired at
// the start, handed to the calendar client and released on exit, which
// writes back any token refreshed in between.
type Credential struct {
	store  *TokenStore
	source oauth2.TokenSource
	saved  *oauth2.Token
}

// LoadOAuthConfig reads the client secret downloaded from the Google console
func LoadOAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: client secret file: %v", ErrAuthentication, err)
	}
	cfg, err := google.ConfigFromJSON(data, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("%w: client secret file %s: %v", ErrAuthentication, credentialsFile, err)
	}
	return cfg, nil
}

// AcquireCredential reuses or refreshes the saved token and falls back to
// consent when there is none or it was revoked. consent may be nil for
// unattended runs, in which case a missing token is fatal. Every token
// refresh, now or later in the run, is bounded by timeout.
func AcquireCredential(ctx context.Context, cfg *oauth2.Config, store *TokenStore, consent ConsentFunc, timeout time.Duration) (*Credential, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	// The token source keeps this context and refreshes through its client
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})

	saved, err := store.Load()
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		log.Printf("No saved token at %s", store.Path)
	default:
		// Unreadable is not the same as absent: do not overwrite it
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	if saved != nil {
		source := cfg.TokenSource(ctx, saved)
		current, err := source.Token()
		if err == nil {
			c := &Credential{store: store, source: source, saved: saved}
			if err := c.persist(current); err != nil {
				log.Printf("⚠️  Could not save refreshed token: %v", err)
			}
			log.Printf("✅ Using saved calendar authorisation")
			return c, nil
		}
		log.Printf("⚠️  Saved token could not be refreshed: %v", err)
	}

	if consent == nil {
		return nil, fmt.Errorf("%w: no usable token and no terminal for consent; run \"bin-reminder authorize\"", ErrAuthentication)
	}

	log.Printf("Requesting calendar access")
	fresh, err := consent(ctx, cfg)
	if err != nil {
		if errors.Is(err, ErrAuthentication) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	c := &Credential{store: store, source: cfg.TokenSource(ctx, fresh)}
	if err := c.persist(fresh); err != nil {
		return nil, fmt.Errorf("%w: saving token: %v", ErrAuthentication, err)
	}
	log.Printf("✅ Calendar access granted, token saved to %s", store.Path)
	return c, nil
}

// Client returns an HTTP client that authorises and refreshes as needed
func (c *Credential) Client(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, c.source)
}

// Release persists the token if it changed during the run
func (c *Credential) Release() error {
	tok, err := c.source.Token()
	if err != nil {
		return fmt.Errorf("%w: refreshing token: %v", ErrAuthentication, err)
	}
	return c.persist(tok)
}

func (c *Credential) persist(tok *oauth2.Token) error {
	if c.saved != nil && tok.AccessToken == c.saved.AccessToken && tok.RefreshToken == c.saved.RefreshToken {
		return nil
	}
	if err := c.store.Save(tok); err != nil {
		return err
	}
	c.saved = tok
	return nil
}

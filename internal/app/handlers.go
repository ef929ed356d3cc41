package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
)

const (
	CallbackPath          = "/callback"
	DefaultConsentTimeout = 5 * time.Minute
)

// LoopbackConsent runs the installed-app OAuth flow: the user approves
// access in a browser and Google redirects back to a local listener
type LoopbackConsent struct {
	Timeout     time.Duration
	OpenBrowser func(url string) error
	Out         io.Writer
	ListenAddr  string
}

type callbackResult struct {
	code string
	err  error
}

// Obtain performs the flow and exchanges the code (with PKCE) for a token
func (lc *LoopbackConsent) Obtain(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	timeout := lc.Timeout
	if timeout <= 0 {
		timeout = DefaultConsentTimeout
	}
	out := lc.Out
	if out == nil {
		out = os.Stderr
	}
	addr := lc.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: starting callback listener: %v", ErrAuthentication, err)
	}

	conf := *cfg
	conf.RedirectURL = "http://" + ln.Addr().String() + CallbackPath

	state, err := generateState()
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, HandleCallback(state, results))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("Callback server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	authURL := conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.S256ChallengeOption(verifier),
	)
	fmt.Fprintf(out, "Open this URL to allow access to your calendar:\n\n  %s\n\n", authURL)
	if lc.OpenBrowser != nil {
		if err := lc.OpenBrowser(authURL); err != nil {
			log.Printf("⚠️  Could not open a browser: %v", err)
		}
	}

	var res callbackResult
	select {
	case res = <-results:
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: no response within %s", ErrAuthentication, timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, ctx.Err())
	}
	if res.err != nil {
		return nil, res.err
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	tok, err := conf.Exchange(exchangeCtx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: exchanging authorisation code: %v", ErrAuthentication, err)
	}
	return tok, nil
}

// HandleCallback receives the redirect. Requests with a wrong state or no
// code are rejected and the flow keeps waiting; a denial ends it.
func HandleCallback(state string, results chan<- callbackResult) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !RequireMethod(w, r, http.MethodGet) {
			return
		}
		q := r.URL.Query()

		if q.Get("state") != state {
			http.Error(w, "Invalid state", http.StatusBadRequest)
			log.Printf("⚠️  Callback with unexpected state from %s", r.RemoteAddr)
			return
		}

		if reason := q.Get("error"); reason != "" {
			writePage(w, http.StatusForbidden, "Access was not granted ("+reason+"). You can close this window.")
			deliver(results, callbackResult{err: fmt.Errorf("%w: consent denied: %s", ErrAuthentication, reason)})
			return
		}

		code := q.Get("code")
		if code == "" {
			http.Error(w, "Missing code", http.StatusBadRequest)
			return
		}

		writePage(w, http.StatusOK, "Calendar access granted. You can close this window.")
		deliver(results, callbackResult{code: code})
	}
}

// deliver never blocks: only the first callback counts
func deliver(results chan<- callbackResult, res callbackResult) {
	select {
	case results <- res:
	default:
	}
}

func writePage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := fmt.Fprintf(w, "<!DOCTYPE html><html><body><p>%s</p></body></html>", html.EscapeString(message)); err != nil {
		log.Printf("Error writing callback page: %v", err)
	}
}

// generateState creates a random state string for OAuth
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

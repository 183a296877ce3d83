// Package auth obtains an authorized HTTP client for the Google APIs. Tokens
// are cached in a TokenStore; when no usable token exists the user grants
// consent in the browser and the code comes back through a loopback redirect.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested for every Google exporter, so one token serves all of them.
var Scopes = []string{
	"https://www.googleapis.com/auth/calendar.readonly",
	"https://www.googleapis.com/auth/drive.activity.readonly",
	"https://www.googleapis.com/auth/drive.metadata.readonly",
}

// ErrNoCredentials means the OAuth client secrets file is missing.
var ErrNoCredentials = errors.New("google OAuth client credentials not found")

const callbackPath = "/oauth2/callback"

type Authenticator struct {
	CredentialsFile string
	Store           TokenStore
	Timeout         time.Duration
	Log             logrus.FieldLogger

	// OpenBrowser launches the consent page; browser.OpenURL by default.
	OpenBrowser func(url string) error
}

func NewAuthenticator(credentialsFile string, store TokenStore, timeout time.Duration, log logrus.FieldLogger) *Authenticator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Authenticator{
		CredentialsFile: credentialsFile,
		Store:           store,
		Timeout:         timeout,
		Log:             log.WithField("component", "auth"),
		OpenBrowser:     browser.OpenURL,
	}
}

// Config reads the installed-app client secrets.
func (a *Authenticator) Config() (*oauth2.Config, error) {
	data, err := os.ReadFile(a.CredentialsFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s (download an OAuth client ID of type Desktop app)", ErrNoCredentials, a.CredentialsFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	cfg, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return cfg, nil
}

// TokenSource returns a source that refreshes as needed and writes every new
// token back to the store. A token is obtained before returning, so bad or
// revoked credentials fail here rather than mid-export.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}

	tok, err := a.Store.Load()
	switch {
	case errors.Is(err, ErrTokenNotFound):
		tok = nil
	case err != nil:
		a.Log.WithError(err).Warn("ignoring unreadable cached token")
		tok = nil
	}

	if tok == nil || (!tok.Valid() && tok.RefreshToken == "") {
		if tok, err = a.Consent(ctx, cfg); err != nil {
			return nil, err
		}
		if err := a.Store.Save(tok); err != nil {
			return nil, err
		}
	}

	src := &savingSource{
		base:  oauth2.ReuseTokenSource(tok, cfg.TokenSource(ctx, tok)),
		store: a.Store,
		last:  tok.AccessToken,
		log:   a.Log,
	}
	if _, err := src.Token(); err != nil {
		return nil, fmt.Errorf("failed to refresh google token: %w", err)
	}
	return src, nil
}

// Client is an *http.Client that authorizes every request.
func (a *Authenticator) Client(ctx context.Context) (*http.Client, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: a.Timeout})

	src, err := a.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	client := oauth2.NewClient(ctx, src)
	client.Timeout = a.Timeout
	return client, nil
}

// Consent runs the authorization code flow with PKCE against a one-shot
// loopback listener.
func (a *Authenticator) Consent(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}

	conf := *cfg
	conf.RedirectURL = fmt.Sprintf("http://%s%s", ln.Addr().String(), callbackPath)

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	r := chi.NewRouter()
	r.Get(callbackPath, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		res := result{code: q.Get("code")}
		switch {
		case q.Get("state") != state:
			res.err = errors.New("oauth callback state mismatch")
		case q.Get("error") != "":
			res.err = fmt.Errorf("consent denied: %s", q.Get("error"))
		case res.code == "":
			res.err = errors.New("oauth callback without code")
		}

		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "Authorization complete. You can close this window.")
		}

		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	a.Log.WithField("url", authURL).Info("waiting for google consent in the browser")
	if err := a.OpenBrowser(authURL); err != nil {
		a.Log.WithError(err).Warn("could not open browser, visit the url manually")
	}

	var res result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("consent aborted: %w", ctx.Err())
	case res = <-results:
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := conf.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}

// savingSource persists refreshed tokens.
type savingSource struct {
	mu    sync.Mutex
	base  oauth2.TokenSource
	store TokenStore
	last  string
	log   logrus.FieldLogger
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := s.store.Save(tok); err != nil {
			s.log.WithError(err).Warn("failed to cache refreshed token")
		} else {
			s.last = tok.AccessToken
		}
	}
	return tok, nil
}

package devexport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Afrawles/devexport/internal/auth"
	"github.com/Afrawles/devexport/internal/calendar"
	"github.com/Afrawles/devexport/internal/config"
	"github.com/Afrawles/devexport/internal/drive"
	"github.com/Afrawles/devexport/internal/fetch"
	"github.com/Afrawles/devexport/internal/github"
	"github.com/sirupsen/logrus"
)

// TokenStore picks the credential cache configured under google.token_store.
func TokenStore(cfg *config.Config) auth.TokenStore {
	if cfg.Google.TokenStore == config.TokenStoreKeyring {
		return auth.NewKeyringStore()
	}
	return &auth.FileStore{Path: cfg.Google.TokenFile}
}

// GoogleClient authorizes against Google, running the consent flow when no
// usable token is cached.
func GoogleClient(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*http.Client, error) {
	a := auth.NewAuthenticator(cfg.Google.CredentialsFile, TokenStore(cfg), cfg.HTTP.Timeout, log)
	client, err := a.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("google authorization failed: %w", err)
	}
	return client, nil
}

func CalendarSource(ctx context.Context, httpClient *http.Client, log logrus.FieldLogger) (*calendar.Source, error) {
	client, err := calendar.NewClient(ctx, httpClient, "", fetch.NewPacer(log, nil))
	if err != nil {
		return nil, err
	}
	return calendar.NewSource(client, log), nil
}

func DocsSource(ctx context.Context, httpClient *http.Client, cfg *config.Config, log logrus.FieldLogger) (*drive.Source, error) {
	pacer := fetch.NewPacer(log, fetch.Every(cfg.Drive.PageInterval))
	client, err := drive.NewClient(ctx, httpClient, "", cfg.Drive.PageSize, pacer)
	if err != nil {
		return nil, err
	}
	return drive.NewSource(client, log), nil
}

func GitHubSource(cfg *config.Config, log logrus.FieldLogger) (*github.Source, error) {
	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}
	client, err := github.NewClient(cfg.GitHub.Token, cfg.GitHub.APIURL, httpClient, fetch.NewPacer(log, nil))
	if err != nil {
		return nil, err
	}
	return github.NewSource(client, cfg.GitHub.User, log), nil
}

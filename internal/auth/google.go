package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/dripsheet/dripsheet/internal/config"
)

// ErrAuthFailure means no usable Google credentials are available. A run
// cannot proceed without them.
var ErrAuthFailure = errors.New("google authentication failed")

// ErrAuthorizationRequired is returned when installed-app credentials are
// configured but no user token has been saved yet.
var ErrAuthorizationRequired = fmt.Errorf("%w: no saved token, run `dripsheet auth` first", ErrAuthFailure)

const (
	credentialsServiceAccount = "service_account"
	credentialsInstalled      = "installed"
	credentialsWeb            = "web"
)

// NewHTTPClient returns an HTTP client authorized for the configured scopes.
//
// Credentials are tried in this order: client ID/secret with a refresh token,
// then the credentials JSON (inline or file), which may be a service account
// key or an OAuth client for an installed app with a saved token file.
func NewHTTPClient(ctx context.Context, cfg config.GoogleConfig) (*http.Client, error) {
	ts, err := TokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := oauth2.NewClient(ctx, ts)
	client.Timeout = cfg.Timeout
	return client, nil
}

// TokenSource builds the token source behind NewHTTPClient.
func TokenSource(ctx context.Context, cfg config.GoogleConfig) (oauth2.TokenSource, error) {
	if cfg.HasRefreshToken() {
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       cfg.Scopes,
		}
		return oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken}), nil
	}

	data, err := credentialsJSON(cfg)
	if err != nil {
		return nil, err
	}

	kind, err := credentialsType(data)
	if err != nil {
		return nil, err
	}

	switch kind {
	case credentialsServiceAccount:
		jwtCfg, err := google.JWTConfigFromJSON(data, cfg.Scopes...)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid service account key: %v", ErrAuthFailure, err)
		}
		// Domain-wide delegation: act as the sender mailbox
		jwtCfg.Subject = cfg.Subject
		return jwtCfg.TokenSource(ctx), nil

	case credentialsInstalled, credentialsWeb:
		oauthCfg, err := google.ConfigFromJSON(data, cfg.Scopes...)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid OAuth client: %v", ErrAuthFailure, err)
		}
		tok, err := LoadToken(cfg.TokenFile)
		if err != nil {
			return nil, err
		}
		return NewFileTokenSource(cfg.TokenFile, tok, oauthCfg.TokenSource(ctx, tok)), nil
	}

	return nil, fmt.Errorf("%w: unsupported credentials type %q", ErrAuthFailure, kind)
}

// OAuthConfig parses installed-app client credentials for the consent flow.
func OAuthConfig(cfg config.GoogleConfig) (*oauth2.Config, error) {
	data, err := credentialsJSON(cfg)
	if err != nil {
		return nil, err
	}
	oauthCfg, err := google.ConfigFromJSON(data, cfg.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: credentials are not an OAuth client: %v", ErrAuthFailure, err)
	}
	return oauthCfg, nil
}

func credentialsJSON(cfg config.GoogleConfig) ([]byte, error) {
	if cfg.CredentialsJSON != "" {
		return []byte(cfg.CredentialsJSON), nil
	}
	if cfg.CredentialsFile == "" {
		return nil, fmt.Errorf("%w: no credentials configured", ErrAuthFailure)
	}
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrAuthFailure, cfg.CredentialsFile)
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	return data, nil
}

// credentialsType tells service account keys apart from OAuth client files.
func credentialsType(data []byte) (string, error) {
	var probe struct {
		Type      string          `json:"type"`
		Installed json.RawMessage `json:"installed"`
		Web       json.RawMessage `json:"web"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("%w: credentials are not valid JSON: %v", ErrAuthFailure, err)
	}
	switch {
	case probe.Type != "":
		return probe.Type, nil
	case probe.Installed != nil:
		return credentialsInstalled, nil
	case probe.Web != nil:
		return credentialsWeb, nil
	}
	return "", fmt.Errorf("%w: unrecognised credentials file", ErrAuthFailure)
}

// ServiceAccountKey returns the configured credentials when they are a
// service account key, and nil for refresh-token or OAuth client setups.
func ServiceAccountKey(cfg config.GoogleConfig) ([]byte, error) {
	if cfg.HasRefreshToken() {
		return nil, nil
	}
	data, err := credentialsJSON(cfg)
	if err != nil {
		return nil, err
	}
	kind, err := credentialsType(data)
	if err != nil {
		return nil, err
	}
	if kind != credentialsServiceAccount {
		return nil, nil
	}
	return data, nil
}

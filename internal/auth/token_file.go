package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
)

// LoadToken reads a saved user token.
func LoadToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrAuthorizationRequired
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("%w: token file is corrupt: %v", ErrAuthFailure, err)
	}
	if tok.RefreshToken == "" && tok.AccessToken == "" {
		return nil, ErrAuthorizationRequired
	}
	return &tok, nil
}

// SaveToken writes tok to path, readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	b, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// FileTokenSource persists refreshed tokens so the next run can reuse them.
type FileTokenSource struct {
	path string
	base oauth2.TokenSource

	mu   sync.Mutex
	last string
}

// NewFileTokenSource wraps base, writing every new access token to path.
func NewFileTokenSource(path string, initial *oauth2.Token, base oauth2.TokenSource) oauth2.TokenSource {
	fts := &FileTokenSource{path: path, base: base}
	if initial != nil {
		fts.last = initial.AccessToken
	}
	return oauth2.ReuseTokenSource(initial, fts)
}

// Token returns a token from the underlying source and saves it when it changed.
func (s *FileTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: token refresh failed: %v", ErrAuthFailure, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := SaveToken(s.path, tok); err != nil {
			return nil, err
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Authorize runs the installed-app consent flow: it listens on a loopback
// port, prints the consent URL to out, waits for Google to redirect back with
// a code and exchanges it for a token.
func Authorize(ctx context.Context, oauthCfg *oauth2.Config, out io.Writer) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen for the OAuth redirect: %w", err)
	}
	defer ln.Close()

	cfg := *oauthCfg
	cfg.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())

	state, err := randomState()
	if err != nil {
		return nil, err
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           callbackHandler(state, codeCh, errCh),
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	defer srv.Close()

	fmt.Fprintf(out, "Open this URL in your browser to authorize access:\n\n%s\n\n",
		cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	select {
	case code := <-codeCh:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("%w: code exchange failed: %v", ErrAuthFailure, err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func callbackHandler(state string, codeCh chan<- string, errCh chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "authorization denied", http.StatusForbidden)
			select {
			case errCh <- fmt.Errorf("%w: %s", ErrAuthFailure, e):
			default:
			}
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authorization complete. You can close this window.")
		select {
		case codeCh <- code:
		default:
		}
	})
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

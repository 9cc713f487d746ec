package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/pkg/errors"
)

const DefaultTimeout = 10 * time.Second

// Auth decorates an outgoing request (basic auth, api-key header, ...).
type Auth func(req *http.Request)

func BasicAuth(username, password string) Auth {
	return func(req *http.Request) {
		req.SetBasicAuth(username, password)
	}
}

func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// GetJSON performs a GET and decodes a JSON body into out. Every failure is
// classified as models.ErrProviderUnavailable.
func GetJSON(ctx context.Context, httpc *http.Client, rawURL string, auth Auth, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")
	if auth != nil {
		auth(req)
	}

	resp, err := httpc.Do(req)
	if err != nil {
		return errors.Wrap(models.ErrProviderUnavailable, fmt.Sprintf("do request: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return errors.Wrap(models.ErrProviderUnavailable, "rate limited (429)")
	}
	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return errors.Wrap(models.ErrProviderUnavailable, fmt.Sprintf("http %d", resp.StatusCode))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return errors.Wrap(models.ErrProviderUnavailable, fmt.Sprintf("decode: %v", err))
	}
	return nil
}

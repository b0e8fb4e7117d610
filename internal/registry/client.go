package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
)

// Fetcher issues single-organisation lookups. Each extraction worker owns
// its own Fetcher (and therefore its own http.Client), so no request state
// is ever mutated by two workers at once. The TokenManager is the only
// shared collaborator.
type Fetcher struct {
	opts   Options
	tokens *TokenManager
	client *http.Client
}

// NewFetcher creates a Fetcher with a dedicated pooled HTTP client.
func NewFetcher(opts Options, tokens *TokenManager) *Fetcher {
	return &Fetcher{
		opts:   opts,
		tokens: tokens,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

// lookupRequest is the JSON body of an organisation lookup.
type lookupRequest struct {
	Identitetsbeteckning string `json:"identitetsbeteckning"`
}

// Fetch performs exactly one lookup round trip for the given organisation
// number and classifies the result. Per-identifier failures are returned as
// Outcome variants, never as errors; the only error cases are credential
// acquisition failure (fatal for the run) and request construction.
func (f *Fetcher) Fetch(ctx context.Context, orgNumber string) (Outcome, error) {
	token, err := f.tokens.Acquire(ctx)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return Outcome{}, err
		}
		return Outcome{}, eris.Wrap(err, "registry: acquire token")
	}

	payload, err := json.Marshal(lookupRequest{Identitetsbeteckning: orgNumber})
	if err != nil {
		return Outcome{}, eris.Wrap(err, "registry: encode lookup request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.opts.APIURL, bytes.NewReader(payload))
	if err != nil {
		return Outcome{}, eris.Wrap(err, "registry: create lookup request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Outcome{Kind: OutcomeTransportError, Message: truncate(err.Error(), 200)}, nil
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Kind: OutcomeTransportError, Message: truncate(err.Error(), 200)}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return Outcome{
			Kind:       OutcomeHTTPError,
			StatusCode: resp.StatusCode,
			Message:    truncate(string(body), 200),
		}, nil
	}

	return Outcome{Kind: OutcomeSuccess, Body: body}, nil
}

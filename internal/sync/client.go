package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/apperr"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
)

// HTTPRemote talks to the authoritative store over its HTTP API. It does
// no retrying of its own; the engine owns backoff policy.
type HTTPRemote struct {
	base string
	hc   *http.Client
}

func NewHTTPRemote(baseURL string) *HTTPRemote {
	return &HTTPRemote{
		base: baseURL,
		hc:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (r *HTTPRemote) Apply(ctx context.Context, token string, m Mutation) (*Result, error) {
	var results []Result
	if err := r.do(ctx, token, http.MethodPost, "/api/sync/mutations", []Mutation{m}, &results); err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, apperr.Networkf("expected 1 result, got %d", len(results))
	}
	return &results[0], nil
}

func (r *HTTPRemote) Changes(ctx context.Context, token string, since time.Time) ([]models.Ticket, error) {
	path := "/api/sync/changes"
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}
	var out struct {
		Tickets []models.Ticket `json:"tickets"`
	}
	if err := r.do(ctx, token, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Tickets, nil
}

func (r *HTTPRemote) Detail(ctx context.Context, token string, ticketID string) (*models.TicketDetail, error) {
	var d models.TicketDetail
	if err := r.do(ctx, token, http.MethodGet, "/api/tickets/"+url.PathEscape(ticketID), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *HTTPRemote) do(ctx context.Context, token, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.hc.Do(req)
	if err != nil {
		return apperr.Networkf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = fmt.Sprintf("http %d", resp.StatusCode)
		}
		switch resp.StatusCode {
		case http.StatusBadRequest:
			return apperr.Validationf("%s", e.Error)
		case http.StatusForbidden, http.StatusUnauthorized:
			return apperr.Forbiddenf("%s", e.Error)
		case http.StatusNotFound:
			return apperr.NotFoundf("%s", e.Error)
		case http.StatusConflict:
			return apperr.InvalidTransitionf("%s", e.Error)
		default:
			return apperr.Networkf("%s", e.Error)
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Networkf("decode %s: %v", path, err)
	}
	return nil
}

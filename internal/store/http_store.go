package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stashkit/internal/stash"
)

// RecordHeader carries the JSON-encoded record alongside a raw payload
// response from stashd.
const RecordHeader = "X-Stash-Record"

// DeleteResponse is the body of a delete call.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}

// HTTPStore talks to a stashd server. It lets CI runners share a
// self-hosted store without direct backend credentials.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

func NewHTTPStore(baseURL string) (*HTTPStore, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	return &HTTPStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (s *HTTPStore) Upload(ctx context.Context, name string, payload []byte, opts UploadOptions) (stash.Record, error) {
	if s == nil {
		return stash.Record{}, fmt.Errorf("store is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return stash.Record{}, fmt.Errorf("name is required")
	}
	q := url.Values{}
	q.Set("key", opts.Key)
	q.Set("branch", opts.Branch)
	q.Set("overwrite", strconv.FormatBool(opts.Overwrite))
	if !opts.ExpiresAt.IsZero() {
		q.Set("expires_at", opts.ExpiresAt.UTC().Format(time.RFC3339Nano))
	}
	u := s.baseURL + "/api/stashes/" + url.PathEscape(name) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(payload))
	if err != nil {
		return stash.Record{}, err
	}
	req.Header.Set("Content-Type", "application/gzip")

	var rec stash.Record
	if err := s.doJSON(req, &rec); err != nil {
		return stash.Record{}, err
	}
	return rec, nil
}

func (s *HTTPStore) Download(ctx context.Context, name string, id int64) ([]byte, stash.Record, error) {
	if s == nil {
		return nil, stash.Record{}, fmt.Errorf("store is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, stash.Record{}, fmt.Errorf("name is required")
	}
	u := s.baseURL + "/api/stashes/" + url.PathEscape(name) + "/" + strconv.FormatInt(id, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, stash.Record{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, stash.Record{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, stash.Record{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, stash.Record{}, httpError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, stash.Record{}, err
	}
	var rec stash.Record
	if raw := resp.Header.Get(RecordHeader); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, stash.Record{}, fmt.Errorf("decode record header: %w", err)
		}
	}
	return data, rec, nil
}

func (s *HTTPStore) List(ctx context.Context, name string) ([]stash.Record, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	u := s.baseURL + "/api/stashes/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var out []stash.Record
	if err := s.doJSON(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HTTPStore) Delete(ctx context.Context, name string) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("store is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("name is required")
	}
	u := s.baseURL + "/api/stashes/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return 0, err
	}
	var out DeleteResponse
	if err := s.doJSON(req, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

func (s *HTTPStore) Prune(ctx context.Context, now time.Time, keep func(stash.Record) bool) ([]stash.Record, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	// keep is evaluated server-side from the server's manifest; a client
	// callback cannot cross the wire.
	u := s.baseURL + "/api/prune?now=" + url.QueryEscape(now.UTC().Format(time.RFC3339Nano))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, err
	}
	var out []stash.Record
	if err := s.doJSON(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HTTPStore) doJSON(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return httpError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func httpError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("stashd: %s", msg)
}

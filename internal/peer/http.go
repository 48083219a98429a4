package peer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dfs-go/internal/dfs"
)

// HTTPPeer is a client for a peer exposed by Server. Every call is one HTTP
// round-trip bounded by the client timeout; transport failures are returned as
// errors.
type HTTPPeer struct {
	id      string
	baseURL string
	client  *http.Client
}

// NewHTTPPeer creates a client for the peer served at baseURL.
// A zero timeout means 10s.
func NewHTTPPeer(id, baseURL string, timeout time.Duration) *HTTPPeer {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPPeer{
		id:      id,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPPeer) ID() string {
	return p.id
}

func (p *HTTPPeer) fileURL(fileID string) string {
	return p.baseURL + "/files/" + url.PathEscape(fileID)
}

func (p *HTTPPeer) do(method, target string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, target, r)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("peer %s unreachable: %w", p.id, err)
	}
	return resp, nil
}

// IsHealthy reports whether the remote peer answers its health check with 200.
func (p *HTTPPeer) IsHealthy() (bool, error) {
	resp, err := p.do(http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK, nil
}

func (p *HTTPPeer) Store(fileID string, data []byte) error {
	if err := checkStore(fileID, data); err != nil {
		return err
	}

	resp, err := p.do(http.MethodPut, p.fileURL(fileID), data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return statusError("store", fileID, resp)
	}
	return nil
}

func (p *HTTPPeer) Read(fileID string) ([]byte, error) {
	resp, err := p.do(http.MethodGet, p.fileURL(fileID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	default:
		return nil, statusError("read", fileID, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading blob %s from peer %s: %w", fileID, p.id, err)
	}
	return data, nil
}

func (p *HTTPPeer) Delete(fileID string) error {
	resp, err := p.do(http.MethodDelete, p.fileURL(fileID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return statusError("delete", fileID, resp)
	}
	return nil
}

func (p *HTTPPeer) Exists(fileID string) (bool, error) {
	resp, err := p.do(http.MethodHead, p.fileURL(fileID), nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, statusError("exists", fileID, resp)
	}
}

func (p *HTTPPeer) FreeSpace() (int64, error) {
	resp, err := p.do(http.MethodGet, p.baseURL+"/space", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, statusError("free space", "", resp)
	}

	var body spaceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decoding free space from peer %s: %w", p.id, err)
	}
	return body.FreeSpace, nil
}

// statusError builds an error from an unexpected response, including the
// server's error message when it sent one.
func statusError(op, fileID string, resp *http.Response) error {
	var body errorResponse
	msg := resp.Status
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil && body.Error != "" {
		msg = fmt.Sprintf("%s: %s", resp.Status, body.Error)
	}
	if fileID == "" {
		return fmt.Errorf("%s failed: %s", op, msg)
	}
	return fmt.Errorf("%s %s failed: %s", op, fileID, msg)
}

// Compile-time check that HTTPPeer implements dfs.StoragePeer
var _ dfs.StoragePeer = (*HTTPPeer)(nil)

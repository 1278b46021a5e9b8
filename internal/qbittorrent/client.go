// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	basePath          = "/api/v2"
	loginEndpoint     = basePath + "/auth/login"
	transferEndpoint  = basePath + "/transfer/info"
	torrentsEndpoint  = basePath + "/torrents/info"
	torrentPeersPath  = basePath + "/sync/torrentPeers"
	sessionCookieName = "SID"
)

// Config holds the connection settings for a qBittorrent instance
type Config struct {
	URL       string
	Username  string
	Password  string
	BasicUser string
	BasicPass string
	Timeout   time.Duration
}

// session is the opaque authentication token issued by the upstream.
// Expiry is never predicted; invalidation is reactive to a 403.
type session struct {
	sid      string
	issuedAt time.Time
}

// Client is an authenticated client for the qBittorrent Web API.
// It performs exactly one HTTP call per operation and never retries on
// its own, so the caller stays in control of the retry policy.
type Client struct {
	baseURL *url.URL
	cfg     Config
	http    *http.Client

	mu      sync.Mutex
	session *session
}

// NewClient creates a client for the given instance. No connection is made
// until the first operation; authentication happens on Login.
func NewClient(cfg Config) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSuffix(cfg.URL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid qBittorrent URL %q", cfg.URL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.Errorf("invalid qBittorrent URL %q: missing http(s) scheme", cfg.URL)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL: parsed,
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Login performs the authentication handshake and replaces the held session.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", c.cfg.Username)
	form.Set("password", c.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String()+loginEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return newAPIError(KindUnreachable, loginEndpoint, 0, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// qBittorrent rejects logins with a missing Referer when CSRF
	// protection is enabled.
	req.Header.Set("Referer", c.baseURL.String())
	c.setBasicAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return newAPIError(KindUnreachable, loginEndpoint, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return newAPIError(KindUnreachable, loginEndpoint, resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		// 403 here means the IP got banned after repeated failures,
		// credential rejection either way.
		return newAPIError(KindAuth, loginEndpoint, resp.StatusCode, errors.Wrapf(ErrBadCredentials, "status %d", resp.StatusCode))
	}
	if strings.TrimSpace(string(body)) != "Ok." {
		return newAPIError(KindAuth, loginEndpoint, resp.StatusCode, ErrBadCredentials)
	}

	sid := ""
	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookieName {
			sid = cookie.Value
			break
		}
	}
	if sid == "" {
		return newAPIError(KindDecode, loginEndpoint, resp.StatusCode, errors.New("login succeeded but no SID cookie was returned"))
	}

	c.mu.Lock()
	c.session = &session{sid: sid, issuedAt: time.Now()}
	c.mu.Unlock()

	log.Debug().Str("host", c.baseURL.Host).Msg("Authenticated with qBittorrent")
	return nil
}

// GetTransferInfo fetches the global transfer statistics.
func (c *Client) GetTransferInfo(ctx context.Context) (*TransferInfo, error) {
	var info TransferInfo
	if err := c.get(ctx, transferEndpoint, nil, &info); err != nil {
		return nil, err
	}
	if info.ConnectionStatus == "" {
		return nil, newAPIError(KindDecode, transferEndpoint, http.StatusOK, errors.New("missing connection_status field"))
	}
	return &info, nil
}

// GetTorrents fetches the full torrent list.
func (c *Client) GetTorrents(ctx context.Context) ([]Torrent, error) {
	var torrents []Torrent
	if err := c.get(ctx, torrentsEndpoint, nil, &torrents); err != nil {
		return nil, err
	}
	for _, t := range torrents {
		if t.Hash == "" {
			return nil, newAPIError(KindDecode, torrentsEndpoint, http.StatusOK, errors.New("torrent entry without hash"))
		}
	}
	return torrents, nil
}

// GetTorrentPeers fetches the connected peers of a single torrent.
func (c *Client) GetTorrentPeers(ctx context.Context, hash string) (map[string]TorrentPeer, error) {
	var resp torrentPeersResponse
	query := url.Values{"hash": {hash}}
	if err := c.get(ctx, torrentPeersPath, query, &resp); err != nil {
		return nil, err
	}
	return resp.Peers, nil
}

// get performs a single authenticated GET. A 403 response invalidates the
// held session and surfaces as KindSessionExpired; the caller decides
// whether to re-login.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	u := c.baseURL.String() + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return newAPIError(KindUnreachable, endpoint, 0, err)
	}
	c.setBasicAuth(req)

	c.mu.Lock()
	if c.session != nil {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: c.session.sid})
	}
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return newAPIError(KindUnreachable, endpoint, 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		c.mu.Lock()
		c.session = nil
		c.mu.Unlock()
		return newAPIError(KindSessionExpired, endpoint, resp.StatusCode, nil)
	case resp.StatusCode != http.StatusOK:
		return newAPIError(KindDecode, endpoint, resp.StatusCode, errors.Errorf("unexpected status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newAPIError(KindDecode, endpoint, resp.StatusCode, err)
	}
	return nil
}

func (c *Client) setBasicAuth(req *http.Request) {
	if c.cfg.BasicUser != "" {
		req.SetBasicAuth(c.cfg.BasicUser, c.cfg.BasicPass)
	}
}

// SessionIssuedAt returns the issue time of the current session, or the zero
// time when no session is held.
func (c *Client) SessionIssuedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return time.Time{}
	}
	return c.session.issuedAt
}

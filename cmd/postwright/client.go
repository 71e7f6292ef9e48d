// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	pwerr "github.com/postwright/postwright/pkg/errors"
)

// errNotRunning indicates the admin API refused the connection.
var errNotRunning = errors.New("postwright is not running (connection refused)")

// defaultHTTPClient is the package-level HTTP client used by admin commands.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Second,
}

// adminClient provides HTTP access to a running postwright admin API.
type adminClient struct {
	baseURL string
	http    *http.Client
}

// newAdminClient creates a client targeting the given host:port address.
func newAdminClient(addr string) *adminClient {
	return &adminClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
// Returns errNotRunning on connection refused.
func (c *adminClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		if isDialError(err) {
			return errNotRunning
		}
		return pwerr.Errorf(pwerr.CodeCLISetupFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return pwerr.Errorf(pwerr.CodeCLISetupFailure, "admin API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pwerr.Errorf(pwerr.CodeCLISetupFailure, "invalid response: %w", err)
	}
	return nil
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}

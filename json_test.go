// Copyright (C) 2026, the nuclide authors. All rights reserved.
// See the file LICENSE for licensing terms.

package nuclide

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchServerInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req struct {
			Method string          `json:"method"`
			ID     json.RawMessage `json:"id"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		require.Equal(t, "serverInfo", req.Method)

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]any{
				"version":      "1.4.0",
				"port":         9090,
				"capabilities": []string{"fileWatcher", "diagnostics"},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	uri, err := url.Parse(srv.URL)
	require.NoError(t, err)

	info, err := FetchServerInfo(context.Background(), uri, defaultConfig(),
		WithHeader("X-Client", "test"), WithQueryParam("trace", "1"))
	require.NoError(t, err)
	require.Equal(t, "1.4.0", info.Version)
	require.Equal(t, 9090, info.Port)
	require.Equal(t, []string{"fileWatcher", "diagnostics"}, info.Capabilities)
}

func TestHeartbeat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  true,
		})
	}))
	defer srv.Close()

	uri, err := url.Parse(srv.URL)
	require.NoError(t, err)
	require.NoError(t, Heartbeat(context.Background(), uri, defaultConfig()))
}

func TestSendJSONRequestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	uri, err := url.Parse(srv.URL)
	require.NoError(t, err)

	var reply any
	err = SendJSONRequest(context.Background(), uri, "serverInfo", struct{}{}, &reply, defaultConfig())
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestIsRetryableError(t *testing.T) {
	require.False(t, isRetryableError(nil))
	require.True(t, isRetryableError(io.EOF))
	require.False(t, isRetryableError(context.Canceled))
}

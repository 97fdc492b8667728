package api_test

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/lobbynet/internal/api"
	"github.com/mcoot/lobbynet/internal/testutil"
)

func TestServerServesUntilShutdown(t *testing.T) {
	ts := newTestServer(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := api.NewServer(ts.handler, api.DefaultServerConfig(), testutil.NopLogger())
	assert.Equal(t, ":8080", server.Addr())

	done := make(chan error, 1)
	go func() { done <- server.Serve(l) }()

	require.Eventually(t, func() bool {
		return server.Addr() == l.Addr().String()
	}, time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + server.Addr() + "/api/v1/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	require.NoError(t, server.Shutdown(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestServerStartFailsOnBusyPort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	cfg := api.DefaultServerConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = l.Addr().(*net.TCPAddr).Port

	server := api.NewServer(http.NotFoundHandler(), cfg, testutil.NopLogger())
	assert.Error(t, server.Start())
}

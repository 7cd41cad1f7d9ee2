package app

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{
		Endpoint: "https://api.example.com/graphql",
		Storage:  StorageConfig{Type: StorageTypeMemory},
	}
	require.NoError(t, cfg.ApplyDefaults())
	cfg.Gateway.Port = 0 // any free port
	cfg.Shutdown.Timeout = time.Second
	return cfg
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Endpoint = ""

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestApp_StartStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)

	application, err := New(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after cancellation")
	}
}

func TestApp_StartFailsOnBusyPort(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	cfg := testConfig(t)
	cfg.Gateway.Host = "127.0.0.1"
	cfg.Gateway.Port = uint16(listener.Addr().(*net.TCPAddr).Port)

	application, err := New(context.Background(), cfg)
	require.NoError(t, err)

	err = application.Start(context.Background())
	assert.ErrorContains(t, err, "gateway startup failed")
}

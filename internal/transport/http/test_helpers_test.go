package http

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/store"
	"github.com/vovakirdan/wirechat-tcp/internal/store/sqlite"
	"github.com/vovakirdan/wirechat-tcp/internal/transport/tcp"
)

// createTestStore creates an in-memory SQLite journal with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(sqlite.Schema)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

type testEnv struct {
	ts  *httptest.Server
	reg *core.Registry
	srv *tcp.Server
}

func startTestServer(t *testing.T, sessions store.SessionStore) *testEnv {
	t.Helper()

	gin.SetMode(gin.TestMode)
	logger := zerolog.Nop()

	reg := core.NewRegistry(core.RegistryOptions{WriteTimeout: time.Second}, &logger)
	router := core.NewRouter(reg, &logger)
	srv := tcp.NewServer(reg, router, tcp.Options{
		HandshakeTimeout: time.Second,
		Session:          core.SessionOptions{Journal: sessions},
	}, &logger)

	ts := httptest.NewServer(NewRouter(reg, sessions, srv, &logger))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})

	return &testEnv{ts: ts, reg: reg, srv: srv}
}

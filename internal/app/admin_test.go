package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"dfs-go/internal/config"
)

func TestMigrate(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Database = config.DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(cfg.BaseDir, "db")}

	if err := Migrate(cfg); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// Running again is a no-op.
	if err := Migrate(cfg); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	a := newTestApp(t, cfg, "Peers")
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewPeerServer(t *testing.T) {
	t.Run("serves a configured local peer", func(t *testing.T) {
		cfg := newTestConfig(t)
		s, err := NewPeerServer(context.Background(), cfg, "node3", Options{})
		if err != nil {
			t.Fatalf("NewPeerServer() error = %v", err)
		}
		defer s.Close()

		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET /health = %d, want 200", w.Code)
		}
	})

	t.Run("rejects unknown peer", func(t *testing.T) {
		if _, err := NewPeerServer(context.Background(), newTestConfig(t), "node9", Options{}); err == nil {
			t.Fatal("NewPeerServer() expected error for unknown peer")
		}
	})

	t.Run("rejects remote peer", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Peers = append(cfg.Peers, config.PeerConfig{Type: "http", ID: "node4", URL: "http://10.0.0.4:9000"})
		if _, err := NewPeerServer(context.Background(), cfg, "node4", Options{}); err == nil {
			t.Fatal("NewPeerServer() expected error for http peer")
		}
	})
}

package app

import (
	"context"
	"fmt"
	"time"

	"dfs-go/internal/config"
	"dfs-go/internal/database"
	"dfs-go/internal/peer"
)

// Migrate applies pending schema migrations to the configured database.
func Migrate(cfg *config.Config) error {
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// PeerServer serves one configured peer over HTTP, for coordinators that reach
// it through an "http" peer entry.
type PeerServer struct {
	*peer.Server
	closeLog func() error
}

// NewPeerServer creates a server for the configured peer peerID.
// It needs no database. The caller must call Close when done.
func NewPeerServer(ctx context.Context, cfg *config.Config, peerID string, opts Options) (*PeerServer, error) {
	var pc *config.PeerConfig
	for i := range cfg.Peers {
		if cfg.Peers[i].ID == peerID {
			pc = &cfg.Peers[i]
			break
		}
	}
	if pc == nil {
		return nil, fmt.Errorf("peer %q is not configured", peerID)
	}
	if pc.Type == "http" {
		return nil, fmt.Errorf("peer %q is remote and cannot be served from here", peerID)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger.With("peer", peerID)}

	p, err := peer.NewPeerFromConfig(ctx, *pc)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating peer %s: %w", peerID, err)
	}

	return &PeerServer{
		Server:   peer.NewServer(p, logger),
		closeLog: logFile.Close,
	}, nil
}

// Close releases the log file.
func (s *PeerServer) Close() error {
	return s.closeLog()
}

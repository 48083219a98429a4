package peer

import (
	"context"
	"fmt"

	"dfs-go/internal/config"
	"dfs-go/internal/dfs"
)

// NewPeerFromConfig creates a StoragePeer implementation based on the peer config type.
func NewPeerFromConfig(ctx context.Context, cfg config.PeerConfig) (dfs.StoragePeer, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		return NewMemoryPeer(cfg.ID, cfg.Capacity), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem peer %s requires fs_root to be set", cfg.ID)
		}
		p, err := NewFileSystemPeer(cfg.ID, cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "s3":
		client, err := NewS3Client(ctx, cfg.S3Region, cfg.S3Endpoint, cfg.S3AccessKeyID, cfg.S3SecretAccessKey)
		if err != nil {
			return nil, fmt.Errorf("s3 peer %s: %w", cfg.ID, err)
		}
		p, err := NewS3Peer(cfg.ID, S3PeerConfig{
			Client:   client,
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			Capacity: cfg.Capacity,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("http peer %s requires url to be set", cfg.ID)
		}
		return NewHTTPPeer(cfg.ID, cfg.URL, timeout), nil
	default:
		return nil, fmt.Errorf("unknown peer type: %s", cfg.Type)
	}
}

package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - DFS_CONFIG_PATH: config file location (default: ~/.config/dfs.toml)
//   - DFS_HOME: base directory for dfs data (default: ~/.local/share/dfs)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path":  configPath,
		"base_dir":     baseDir,
		"log_dir":      filepath.Join(baseDir, "log"),
		"session_file": filepath.Join(baseDir, "session"),
	}, nil
}

// getConfigPath returns the config file path, checking DFS_CONFIG_PATH env var first,
// then falling back to the default ~/.config/dfs.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("DFS_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "dfs.toml"), nil
}

// getBaseDir returns the base directory for dfs data, checking DFS_HOME env var first,
// then falling back to the XDG default ~/.local/share/dfs.
func getBaseDir() (string, error) {
	if path := os.Getenv("DFS_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "dfs"), nil
}

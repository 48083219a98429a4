package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dfs-go/internal/auth"
	"dfs-go/internal/config"
	"dfs-go/internal/database"
	"dfs-go/internal/dfs"
	"dfs-go/internal/metrics"
	"dfs-go/internal/model"
	"dfs-go/internal/peer"
)

// DFSApp is the application layer between the CLI (or HTTP API) and the Coordinator.
// It constructs all dependencies from config, authenticates session tokens,
// records mutating commands as operations, and manages the DB lifecycle on Close.
type DFSApp struct {
	cfg      *config.Config
	db       *database.SQLiteDatabase
	registry *dfs.PeerRegistry
	coord    *dfs.Coordinator
	auth     *auth.Service
	promReg  *prometheus.Registry
	logger   dfs.Logger
	op       *Operation
	logFile  *os.File
}

// Options tune NewDFSApp.
type Options struct {
	Verbose bool // log debug records
}

// NewDFSApp creates a fully wired DFSApp from the given config.
// operation identifies the command being run (e.g. "Upload", "Serve").
// The caller must call Close when done.
func NewDFSApp(ctx context.Context, cfg *config.Config, operation string, opts Options) (*DFSApp, error) {
	ttl, err := cfg.Session.TTLDuration()
	if err != nil {
		return nil, err
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID, opts.Verbose)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	var m dfs.Metrics = dfs.NopMetrics{}
	var promReg *prometheus.Registry
	if cfg.Server.Metrics {
		promReg = metrics.NewRegistry()
		m = metrics.New(promReg)
	}

	registry := dfs.NewPeerRegistry(logger, dfs.RealClock{}, m)
	for _, pc := range cfg.Peers {
		p, err := peer.NewPeerFromConfig(ctx, pc)
		if err != nil {
			logger.Warn("peer could not be created", "peer", pc.ID, "type", pc.Type, "error", err)
			continue
		}
		registry.Register(pc.ID, p)
	}
	if registry.Len() < dfs.MinReplicas {
		logger.Warn("running degraded, uploads will fail", "healthy_peers", registry.Len(), "required", dfs.MinReplicas)
	}

	return &DFSApp{
		cfg:      cfg,
		db:       db,
		registry: registry,
		coord:    dfs.NewCoordinator(db, registry, cfg.ReplicaCount, logger, m),
		auth:     auth.NewService(db, dfs.RealClock{}, dfs.UUIDGenerator{}, ttl, logger),
		promReg:  promReg,
		logger:   logger,
		op:       NewOperation(operation, ""),
		logFile:  logFile,
	}, nil
}

// Coordinator returns the wired Coordinator.
func (a *DFSApp) Coordinator() *dfs.Coordinator { return a.coord }

// Auth returns the wired auth service.
func (a *DFSApp) Auth() *auth.Service { return a.auth }

// Logger returns the application logger.
func (a *DFSApp) Logger() dfs.Logger { return a.logger }

// MetricsRegistry returns the Prometheus registry, or nil when metrics are disabled.
func (a *DFSApp) MetricsRegistry() *prometheus.Registry { return a.promReg }

// Config returns the loaded configuration.
func (a *DFSApp) Config() *config.Config { return a.cfg }

// persistOperation saves the operation to the database, giving it an auto-increment ID.
// This should only be called for DB-mutating commands.
func (a *DFSApp) persistOperation(parameters ...string) error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	a.op.Parameters = strings.Join(parameters, " ")
	dbOp, err := a.db.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// authenticate resolves a session token to its user.
func (a *DFSApp) authenticate(token string) (*model.User, error) {
	user, err := a.auth.Authenticate(token)
	if err != nil {
		return nil, fmt.Errorf("not logged in: %w", err)
	}
	return user, nil
}

// Register creates a user account.
func (a *DFSApp) Register(username, email, password string) (*model.User, error) {
	if err := a.persistOperation(email); err != nil {
		return nil, err
	}
	user, err := a.auth.Register(username, email, password)
	return user, a.op.Record(err)
}

// Login starts a session and returns its token.
func (a *DFSApp) Login(email, password string) (string, *model.User, error) {
	if err := a.persistOperation(email); err != nil {
		return "", nil, err
	}
	token, user, err := a.auth.Login(email, password)
	return token, user, a.op.Record(err)
}

// Logout ends the session.
func (a *DFSApp) Logout(token string) error {
	return a.auth.Logout(token)
}

// WhoAmI returns the user owning the session.
func (a *DFSApp) WhoAmI(token string) (*model.User, error) {
	return a.authenticate(token)
}

// Mkdir creates directories in the session user's namespace.
func (a *DFSApp) Mkdir(token string, paths []string) error {
	user, err := a.authenticate(token)
	if err != nil {
		return err
	}
	if err := a.persistOperation(paths...); err != nil {
		return err
	}
	return a.op.Record(a.coord.CreateDirectories(paths, user.ID))
}

// Upload stores payloads[i] at paths[i]. Failed items are reported in the
// results; the operation is marked failed if any item failed.
func (a *DFSApp) Upload(token string, paths []string, payloads [][]byte) ([]dfs.UploadResult, error) {
	user, err := a.authenticate(token)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(paths...); err != nil {
		return nil, err
	}

	results, err := a.coord.Upload(paths, payloads, user.ID)
	if err != nil {
		return nil, a.op.Record(err)
	}
	for _, r := range results {
		a.op.Record(r.Err)
	}
	return results, nil
}

// Download fetches the bytes of each path.
func (a *DFSApp) Download(token string, paths []string) ([]dfs.DownloadResult, error) {
	user, err := a.authenticate(token)
	if err != nil {
		return nil, err
	}
	return a.coord.Download(paths, user.ID), nil
}

// Delete removes files and directories.
func (a *DFSApp) Delete(token string, paths []string) error {
	user, err := a.authenticate(token)
	if err != nil {
		return err
	}
	if err := a.persistOperation(paths...); err != nil {
		return err
	}
	return a.op.Record(a.coord.Delete(paths, user.ID))
}

// Move renames oldPaths[i] to newPaths[i].
func (a *DFSApp) Move(token string, oldPaths, newPaths []string) error {
	user, err := a.authenticate(token)
	if err != nil {
		return err
	}
	if err := a.persistOperation(append(append([]string{}, oldPaths...), newPaths...)...); err != nil {
		return err
	}
	return a.op.Record(a.coord.Move(oldPaths, newPaths, user.ID))
}

// Share grants the user registered with email access to paths.
func (a *DFSApp) Share(token string, paths []string, email string, permission model.Permission) error {
	user, err := a.authenticate(token)
	if err != nil {
		return err
	}
	if err := a.persistOperation(append([]string{email, string(permission)}, paths...)...); err != nil {
		return err
	}
	return a.op.Record(a.coord.Share(paths, email, permission, user.ID))
}

// Unshare revokes the grants of the user registered with email on paths.
func (a *DFSApp) Unshare(token string, paths []string, email string) error {
	user, err := a.authenticate(token)
	if err != nil {
		return err
	}
	if err := a.persistOperation(append([]string{email}, paths...)...); err != nil {
		return err
	}
	return a.op.Record(a.coord.RevokeShares(paths, email, user.ID))
}

// List returns the content of a directory. An empty path lists the user's root.
func (a *DFSApp) List(token, p string) (*dfs.Listing, error) {
	user, err := a.authenticate(token)
	if err != nil {
		return nil, err
	}
	if p == "" {
		p = dfs.UserRoot(user.ID)
	}
	return a.coord.List(p, user.ID)
}

// Peers runs a health check against every registered peer.
func (a *DFSApp) Peers() []dfs.PeerStatus {
	return a.registry.Status()
}

// History returns the most recent operations.
func (a *DFSApp) History(limit int) ([]*model.Operation, error) {
	return a.db.ListOperations(limit)
}

// BackupDatabase writes a consistent snapshot of the metadata database to destPath.
func (a *DFSApp) BackupDatabase(destPath string) error {
	if err := a.db.BackupTo(destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	a.logger.Info("database backed up", "dest", destPath)
	return nil
}

// Close finalizes the operation and closes all resources.
func (a *DFSApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

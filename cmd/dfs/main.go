package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dfs-go/internal/api"
	"dfs-go/internal/app"
	"dfs-go/internal/config"
	localfs "dfs-go/internal/fs"
	"dfs-go/internal/model"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var verbose bool

// loadConfig reads the config file named by the defaults.
func loadConfig() (*config.Config, map[string]string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults, nil
}

// newApp reads the config and creates a DFSApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Upload", "Serve").
func newApp(ctx context.Context, operation string) (*app.DFSApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewDFSApp(ctx, cfg, operation, app.Options{Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// sessionToken returns the token saved by "dfs user login".
func sessionToken() (string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return "", fmt.Errorf("getting defaults: %w", err)
	}
	return app.LoadSession(defaults["session_file"])
}

// newSessionApp creates a DFSApp and loads the saved session token.
func newSessionApp(cmd *cobra.Command, operation string) (*app.DFSApp, string, error) {
	token, err := sessionToken()
	if err != nil {
		return nil, "", err
	}
	a, err := newApp(cmd.Context(), operation)
	if err != nil {
		return nil, "", err
	}
	return a, token, nil
}

var rootCmd = &cobra.Command{
	Use:          "dfs",
	Short:        "Replicated hierarchical file store",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Peers:    %d (replica count %d)\n", len(cfg.Peers), cfg.ReplicaCount)
		fmt.Println("Run 'dfs migrate' to create the metadata database.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Replica Count: %d\n", cfg.ReplicaCount)
		fmt.Printf("Database:      %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Listen:        %s (metrics %t)\n", cfg.Server.Listen, cfg.Server.Metrics)
		fmt.Printf("Session TTL:   %s\n", cfg.Session.TTL)
		fmt.Println("Peers:")
		for _, p := range cfg.Peers {
			fmt.Printf("  %-10s %-10s %s\n", p.ID, p.Type, peerLocation(p))
		}
		return nil
	},
}

func peerLocation(p config.PeerConfig) string {
	switch p.Type {
	case "filesystem":
		return p.FSRoot
	case "s3":
		return "s3://" + p.S3Bucket + "/" + p.S3Prefix
	case "http":
		return p.URL
	default:
		return ""
	}
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.Migrate(cfg); err != nil {
			return err
		}
		fmt.Println("Database is up to date.")
		return nil
	},
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts and login sessions",
}

var userRegisterCmd = &cobra.Command{
	Use:   "register USERNAME EMAIL",
	Short: "Create an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptNewPassword(cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "Register")
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.Register(args[0], args[1], password)
		if err != nil {
			return err
		}
		fmt.Printf("Registered %s <%s>, namespace /user%d\n", user.Username, user.Email, user.ID)
		return nil
	},
}

var userLoginCmd = &cobra.Command{
	Use:   "login EMAIL",
	Short: "Log in and save a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		password, err := promptPassword(cmd.ErrOrStderr(), "Password: ")
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "Login")
		if err != nil {
			return err
		}
		defer a.Close()

		token, user, err := a.Login(args[0], password)
		if err != nil {
			return err
		}
		if err := app.SaveSession(defaults["session_file"], token); err != nil {
			return err
		}
		fmt.Printf("Logged in as %s\n", user.Username)
		return nil
	},
}

var userLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		a, token, err := newSessionApp(cmd, "Logout")
		if errors.Is(err, app.ErrNoSession) {
			fmt.Println("Not logged in.")
			return nil
		}
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Logout(token); err != nil {
			return err
		}
		if err := app.ClearSession(defaults["session_file"]); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var userWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, token, err := newSessionApp(cmd, "WhoAmI")
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.WhoAmI(token)
		if err != nil {
			return err
		}
		fmt.Printf("%s <%s>, namespace /user%d\n", user.Username, user.Email, user.ID)
		return nil
	},
}

// mkdir command
var mkdirCmd = &cobra.Command{
	Use:   "mkdir PATH...",
	Short: "Create directories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, token, err := newSessionApp(cmd, "Mkdir")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Mkdir(token, args); err != nil {
			return err
		}
		fmt.Printf("Created %d directory(ies)\n", len(args))
		return nil
	},
}

// upload command
var uploadCmd = &cobra.Command{
	Use:   "upload LOCAL... REMOTE_DIR",
	Short: "Upload local files or directories into a directory",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")
		locals, remoteDir := args[:len(args)-1], args[len(args)-1]

		entries, err := collectUploads(locals, remoteDir, recursive)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Nothing to upload.")
			return nil
		}
		paths, payloads, err := localfs.ReadAll(entries)
		if err != nil {
			return err
		}

		a, token, err := newSessionApp(cmd, "Upload")
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Upload(token, paths, payloads)
		if err != nil {
			return err
		}

		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				fmt.Printf("FAIL %s: %v\n", r.Path, r.Err)
				continue
			}
			fmt.Printf("OK   %s -> %v\n", r.Path, r.PeerIDs)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d upload(s) failed", failed, len(results))
		}
		return nil
	},
}

// collectUploads maps each local file to remoteDir/<name> and each local
// directory to remoteDir/<dirname>/...
func collectUploads(locals []string, remoteDir string, recursive bool) ([]localfs.Entry, error) {
	var entries []localfs.Entry
	for _, local := range locals {
		info, err := os.Stat(local)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", local, err)
		}

		abs, err := filepath.Abs(local)
		if err != nil {
			return nil, fmt.Errorf("resolving path: %w", err)
		}
		target := path.Join(remoteDir, filepath.Base(abs))

		if !info.IsDir() {
			entries = append(entries, localfs.Entry{LocalPath: abs, RemotePath: target, Size: info.Size()})
			continue
		}
		found, err := localfs.Scan(abs, target, recursive)
		if err != nil {
			return nil, err
		}
		entries = append(entries, found...)
	}
	return entries, nil
}

// download command
var downloadCmd = &cobra.Command{
	Use:   "download PATH...",
	Short: "Download files into a local directory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir, _ := cmd.Flags().GetString("output")
		dests, err := downloadTargets(outDir, args)
		if err != nil {
			return err
		}

		a, token, err := newSessionApp(cmd, "Download")
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Download(token, args)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(outDir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}

		failed := 0
		for i, r := range results {
			if r.Err != nil {
				failed++
				fmt.Printf("FAIL %s: %v\n", r.Path, r.Err)
				continue
			}
			dest := dests[i]
			if err := os.WriteFile(dest, r.Data, 0644); err != nil {
				failed++
				fmt.Printf("FAIL %s: %v\n", r.Path, err)
				continue
			}
			fmt.Printf("OK   %s <- %s (%d bytes)\n", dest, r.PeerID, len(r.Data))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d download(s) failed", failed, len(results))
		}
		return nil
	},
}

// downloadTargets maps each remote path to its local destination under outDir.
// Two paths sharing a base name would overwrite each other, so they are rejected.
func downloadTargets(outDir string, paths []string) ([]string, error) {
	dests := make([]string, len(paths))
	seen := make(map[string]string, len(paths))
	for i, p := range paths {
		name := path.Base(p)
		if name == "/" || name == "." || name == ".." {
			return nil, fmt.Errorf("cannot download %q: not a file path", p)
		}
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("%q and %q would both be written to %s", prev, p, filepath.Join(outDir, name))
		}
		seen[name] = p
		dests[i] = filepath.Join(outDir, name)
	}
	return dests, nil
}

// rm command
var rmCmd = &cobra.Command{
	Use:   "rm PATH...",
	Short: "Delete files and directories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, token, err := newSessionApp(cmd, "Delete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Delete(token, args); err != nil {
			return err
		}
		fmt.Printf("Deleted %d path(s)\n", len(args))
		return nil
	},
}

// mv command
var mvCmd = &cobra.Command{
	Use:   "mv OLD NEW [OLD NEW...]",
	Short: "Move or rename files and directories",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 || len(args)%2 != 0 {
			return fmt.Errorf("expected OLD NEW pairs, got %d argument(s)", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var oldPaths, newPaths []string
		for i := 0; i < len(args); i += 2 {
			oldPaths = append(oldPaths, args[i])
			newPaths = append(newPaths, args[i+1])
		}

		a, token, err := newSessionApp(cmd, "Move")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Move(token, oldPaths, newPaths); err != nil {
			return err
		}
		fmt.Printf("Moved %d path(s)\n", len(oldPaths))
		return nil
	},
}

// share command
var shareCmd = &cobra.Command{
	Use:   "share EMAIL PATH...",
	Short: "Share files or directories with another user",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		permission, _ := cmd.Flags().GetString("permission")

		a, token, err := newSessionApp(cmd, "Share")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Share(token, args[1:], args[0], model.Permission(permission)); err != nil {
			return err
		}
		fmt.Printf("Shared %d path(s) with %s (%s)\n", len(args)-1, args[0], permission)
		return nil
	},
}

var unshareCmd = &cobra.Command{
	Use:   "unshare EMAIL PATH...",
	Short: "Revoke shares granted to another user",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, token, err := newSessionApp(cmd, "Unshare")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Unshare(token, args[1:], args[0]); err != nil {
			return err
		}
		fmt.Printf("Revoked %d path(s) from %s\n", len(args)-1, args[0])
		return nil
	},
}

// ls command
var lsCmd = &cobra.Command{
	Use:   "ls [PATH]",
	Short: "List a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, token, err := newSessionApp(cmd, "List")
		if err != nil {
			return err
		}
		defer a.Close()

		p := ""
		if len(args) > 0 {
			p = args[0]
		}
		listing, err := a.List(token, p)
		if err != nil {
			return err
		}

		if len(listing.Directories) == 0 && len(listing.Files) == 0 {
			fmt.Printf("%s is empty.\n", listing.Path)
			return nil
		}
		for _, d := range listing.Directories {
			fmt.Printf("d  %10s  %s  %s/\n", "-", d.CreatedAt.Format("2006-01-02 15:04:05"), path.Base(d.Path))
		}
		for _, f := range listing.Files {
			fmt.Printf("-  %10d  %s  %s\n", f.Size, f.CreatedAt.Format("2006-01-02 15:04:05"), f.Name)
		}
		return nil
	},
}

// peers command
var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "Check the health of the configured storage peers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Peers")
		if err != nil {
			return err
		}
		defer a.Close()

		statuses := a.Peers()
		if len(statuses) == 0 {
			fmt.Println("No peers registered.")
			return nil
		}
		for _, st := range statuses {
			state := "healthy"
			if !st.Healthy {
				state = "DOWN"
			}
			free := "?"
			if st.FreeSpace >= 0 {
				free = fmt.Sprintf("%d", st.FreeSpace)
			}
			line := fmt.Sprintf("%-10s %-8s free:%s", st.ID, state, free)
			if st.Err != nil {
				line += fmt.Sprintf("  (%v)", st.Err)
			}
			fmt.Println(line)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-10s  %s  %-10s  %-8s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Maintain the metadata database",
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Write a consistent copy of the metadata database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		a, err := newApp(cmd.Context(), "BackupDatabase")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.BackupDatabase(dest); err != nil {
			return err
		}
		fmt.Printf("Database written to %s\n", dest)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		listen := a.Config().Server.Listen
		if flag, _ := cmd.Flags().GetString("listen"); flag != "" {
			listen = flag
		}

		srv := api.NewServer(a.Coordinator(), a.Auth(), a.MetricsRegistry(), a.Logger())
		a.Logger().Info("serving api", "listen", listen, "peers", len(a.Peers()))
		return listenAndServe(cmd.Context(), listen, srv.Handler())
	},
}

// peer command
var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Run a storage peer",
}

var peerServeCmd = &cobra.Command{
	Use:   "serve PEER_ID",
	Short: "Serve a configured local peer over HTTP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		s, err := app.NewPeerServer(cmd.Context(), cfg, args[0], app.Options{Verbose: verbose})
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Printf("Serving peer %s on %s\n", args[0], listen)
		return listenAndServe(cmd.Context(), listen, s.Handler())
	},
}

// listenAndServe serves handler until ctx is cancelled or an interrupt arrives,
// then shuts down gracefully.
func listenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug records")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// user subcommands
	userCmd.AddCommand(userRegisterCmd)
	userCmd.AddCommand(userLoginCmd)
	userCmd.AddCommand(userLogoutCmd)
	userCmd.AddCommand(userWhoamiCmd)

	// db subcommands
	dbCmd.AddCommand(dbBackupCmd)

	// peer subcommands
	peerCmd.AddCommand(peerServeCmd)
	peerServeCmd.Flags().StringP("listen", "l", ":9000", "Address to listen on")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().StringP("output", "o", ".", "Directory to write files to")
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(shareCmd)
	shareCmd.Flags().StringP("permission", "p", "read", "Permission to grant (read or write)")
	rootCmd.AddCommand(unshareCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(peersCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Address to listen on (overrides server.listen)")
}

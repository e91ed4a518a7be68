package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/slumberhq/slumber/internal/collection"
	"github.com/slumberhq/slumber/internal/config"
	"github.com/slumberhq/slumber/internal/db"
	"github.com/slumberhq/slumber/internal/editabletemplate"
	"github.com/slumberhq/slumber/internal/httpengine"
	"github.com/slumberhq/slumber/internal/keybind"
	"github.com/slumberhq/slumber/internal/reqstate"
	"github.com/slumberhq/slumber/internal/tui"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "slumber",
		Short: "A terminal HTTP API client",
		RunE:  run,
	}

	f := rootCmd.Flags()
	f.String("collection-file", "slumber.yaml", "path to the collection file to open")
	f.String("data-dir", defaultDataDir(), "directory for the persistence database")
	f.Bool("follow-redirects", true, "follow HTTP redirects")
	f.StringSlice("ignore-certificate-hosts", nil, "hosts to skip TLS certificate verification for")
	f.Int64("large-body-size", 1<<20, "response body size (bytes) above which previews are truncated")
	f.String("request-timeout", "30s", "per-request timeout")
	f.Bool("persist-requests", true, "global switch for exchange history persistence")
	f.String("tick-interval", "250ms", "TUI redraw tick interval")
	f.Int("max-http-requests", tui.MaxHTTPRequests, "maximum concurrent in-flight HTTP requests")
	f.String("keybinding-file", "", "path to a YAML keybinding override file")

	bindFlag := func(viperKey, flagName string) {
		_ = viper.BindPFlag(viperKey, f.Lookup(flagName))
	}
	bindFlag("collection_file", "collection-file")
	bindFlag("data_dir", "data-dir")
	bindFlag("follow_redirects", "follow-redirects")
	bindFlag("ignore_certificate_hosts", "ignore-certificate-hosts")
	bindFlag("large_body_size", "large-body-size")
	bindFlag("request_timeout", "request-timeout")
	bindFlag("persist_requests", "persist-requests")
	bindFlag("tick_interval", "tick-interval")
	bindFlag("max_http_requests", "max-http-requests")
	bindFlag("keybinding_file", "keybinding-file")

	viper.SetEnvPrefix("SLUMBER")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "slumber")
	}
	return ".slumber"
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, "state.sqlite"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close() //nolint:errcheck

	col, err := collection.Load(cfg.CollectionFile)
	if err != nil {
		return fmt.Errorf("load collection %s: %w", cfg.CollectionFile, err)
	}

	dbCollection, err := database.EnsureCollection(col.Path, col.Name)
	if err != nil {
		return fmt.Errorf("ensure collection record: %w", err)
	}

	engine, err := httpengine.NewEngine(httpengine.Config{
		FollowRedirects:        cfg.FollowRedirects,
		IgnoreCertificateHosts: cfg.IgnoreCertificateHosts,
		RequestTimeout:         cfg.RequestTimeout,
		MaxConcurrentRequests:  cfg.MaxHTTPRequests,
	})
	if err != nil {
		return fmt.Errorf("build http engine: %w", err)
	}

	var userBindings *orderedmap.OrderedMap[keybind.Action, []keybind.KeyCombination]
	if cfg.KeybindingFile != "" {
		loaded, err := keybind.LoadUserBindings(cfg.KeybindingFile)
		if err != nil {
			return fmt.Errorf("load keybinding file: %w", err)
		}
		userBindings = loaded
	}
	keys := keybind.New(userBindings)

	states := reqstate.New(database, dbCollection.ID)
	overrides := editabletemplate.NewStore(database, dbCollection.ID)
	buildContext := buildContextFn(col, states, filepath.Dir(col.Path), false)
	buildOptions := buildOptionsFn(overrides)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		cancel()
	}()

	ctrl := tui.New(tui.Options{
		Input:        &stdinInputSource{reader: bufio.NewReader(os.Stdin)},
		Engine:       engine,
		Keys:         keys,
		Editor:       &tui.ExecEditorLauncher{},
		Watcher:      tui.NewWatcher(col.Path),
		BuildContext: buildContext,
		BuildOptions: buildOptions,
		TickInterval: cfg.TickInterval,
	})

	return ctrl.Run(ctx)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"muco/server/internal/httpapi"
)

// rootCmd is the top-level cobra command for the relay binary, grounded on
// dantte-lp-gobfd's gobfdctl root command (flags bound in init, a single
// RunE entry point, SilenceUsage/SilenceErrors so startup errors print once).
var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "muco relay server",
	Long:  "server runs the relay: a TCP listener, shared fact store, broadcast hub, mDNS advertisement, and an ambient ops HTTP surface.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServer,

	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagAddr    string
	flagLogDir  string
	flagLog     bool
	flagOpsAddr string
)

func init() {
	rootCmd.Flags().StringVar(&flagAddr, "addr", defaultAddr, "TCP listen address")
	rootCmd.Flags().StringVar(&flagLogDir, "log-dir", ".", "parent directory for per-session frame logs")
	rootCmd.Flags().BoolVar(&flagLog, "log", false, "enable per-session frame logging")
	rootCmd.Flags().StringVar(&flagOpsAddr, "ops-addr", ":1303", "ops HTTP surface listen address (empty disables it)")
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// runServer wires the relay's components together and blocks until a
// termination signal or a component failure. A positional "log" argument
// wins over --log when both are given, matching spec.md's literal "optional
// first argument" framing.
func runServer(cmd *cobra.Command, args []string) error {
	logging := flagLog
	if len(args) == 1 && args[0] == "log" {
		logging = true
	}

	start := time.Now()
	sessionLogDir := filepath.Join(flagLogDir, fmt.Sprintf("log_%d", start.Unix()))

	hub := NewHub()
	model := NewModel()

	listener := &Listener{
		Addr:    flagAddr,
		LogDir:  sessionLogDir,
		Logging: logging,
		Hub:     hub,
		Model:   model,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return listener.Run(gctx, start)
	})

	g.Go(func() error {
		RunMetrics(gctx, hub, metricsInterval)
		return nil
	})

	_, port, err := splitPort(flagAddr)
	if err != nil {
		slog.Warn("could not determine listen port for mdns advertisement, skipping", "err", err)
	} else {
		shutdown, err := startDiscovery(port)
		if err != nil {
			slog.Warn("mdns advertisement failed to start, continuing without it", "err", err)
		} else {
			g.Go(func() error {
				<-gctx.Done()
				shutdown()
				return nil
			})
		}
	}

	if flagOpsAddr != "" {
		ops := httpapi.New(hub)
		g.Go(func() error {
			return ops.Run(gctx, flagOpsAddr)
		})
	}

	slog.Info("relay starting", "addr", flagAddr, "logging", logging, "ops_addr", flagOpsAddr)
	return g.Wait()
}

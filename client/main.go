package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"muco/client/internal/wire"
	"muco/client/replay"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "client",
		Short:         "muco relay client: interactive connection and replay tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(connectCmd(), replayCmd())
	return root
}

// --- connect ---

func connectCmd() *cobra.Command {
	var serverFlag string
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "drive an interactive connection for manual testing",
		Long: "Reads newline-delimited hex-encoded client->server frames from " +
			"stdin and sends each verbatim; decoded inbound frames are logged " +
			"as they arrive. A thin operator tool, not part of the core relay " +
			"protocol.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(cmd.Context(), serverFlag)
		},
	}
	cmd.Flags().StringVar(&serverFlag, "server", "", "relay address (host:port or muco://host:port); falls back to mDNS discovery")
	return cmd
}

func runConnect(ctx context.Context, serverFlag string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	log := slog.With("run_id", runID)

	cfg := LoadConfig()
	conn := NewConnection(cfg.DeviceId, resolveDiscover(serverFlag), true)

	conn.SetOnConnected(func(sid wire.SessionID) {
		log.Info("connected", "session", sid)
	})
	conn.SetOnDisconnected(func(err error) {
		log.Info("disconnected", "err", err)
	})
	conn.SetOnMessage(func(msg wire.ServerToClient) {
		log.Info("inbound", "message", fmt.Sprintf("%+v", msg))
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		conn.Run(gctx)
		return nil
	})
	g.Go(func() error {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			line := scanner.Text()
			if line == "" {
				continue
			}
			payload, err := hex.DecodeString(line)
			if err != nil {
				log.Warn("skipping invalid hex line", "err", err)
				continue
			}
			conn.SendRaw(payload)
		}
		<-gctx.Done()
		return nil
	})

	g.Wait()
	conn.Close()
	return nil
}

// discoveryResolver lazily starts an mDNS browse on first use and hands
// back whichever relay address was most recently discovered. Before the
// first sighting it returns an error at once rather than blocking;
// Connection.Run then waits reconnectDelay and asks again.
type discoveryResolver struct {
	once sync.Once
	disc *Discovery

	mu  sync.Mutex
	cur string
}

func (r *discoveryResolver) resolve(ctx context.Context) (string, error) {
	r.once.Do(func() {
		r.disc = NewDiscovery()
		go r.disc.Run(ctx)
		events := r.disc.Subscribe()
		go func() {
			for ev := range events {
				if ev.Kind != ServerDiscovered {
					continue
				}
				r.mu.Lock()
				r.cur = ev.Host
				r.mu.Unlock()
			}
		}()
	})

	r.mu.Lock()
	addr := r.cur
	r.mu.Unlock()
	if addr != "" {
		return addr, nil
	}
	return "", fmt.Errorf("no relay discovered yet")
}

func resolveDiscover(serverFlag string) func(ctx context.Context) (string, error) {
	if serverFlag != "" {
		return func(ctx context.Context) (string, error) {
			return normalizeServerAddr(serverFlag)
		}
	}
	resolver := &discoveryResolver{}
	return resolver.resolve
}

// --- replay ---

func replayCmd() *cobra.Command {
	var serverFlag string
	root := &cobra.Command{
		Use:   "replay",
		Short: "display or resend a recorded relay session log",
	}
	root.PersistentFlags().StringVar(&serverFlag, "server", "", "relay address for play/loop (host:port or muco://host:port); falls back to mDNS discovery")

	root.AddCommand(&cobra.Command{
		Use:   "display <path>",
		Short: "decode and summarize a session log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return replay.Display(args[0])
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "play <path>",
		Short: "resend a session log's frames at their recorded cadence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), serverFlag, args[0], replay.Play)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "loop <path>",
		Short: "resend a session log's frames repeatedly until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), serverFlag, args[0], replay.Loop)
		},
	})

	return root
}

func runReplay(ctx context.Context, serverFlag, path string, mode func(context.Context, string, replay.Sender) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := LoadConfig()
	conn := NewConnection(cfg.DeviceId, resolveDiscover(serverFlag), false)

	ready := make(chan wire.SessionID, 1)
	conn.SetOnConnected(func(sid wire.SessionID) {
		select {
		case ready <- sid:
		default:
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		conn.Run(gctx)
		return nil
	})

	var modeErr error
	g.Go(func() error {
		select {
		case <-ready:
		case <-gctx.Done():
			return gctx.Err()
		}
		modeErr = mode(gctx, path, conn)
		conn.Close()
		return nil
	})

	g.Wait()
	return modeErr
}

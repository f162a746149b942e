package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mini-reqres/handler"
	"mini-reqres/manager"
	"mini-reqres/message"
	"mini-reqres/middleware"
	"mini-reqres/registry"
	"mini-reqres/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept client peers and answer their requests.",
	Long: "Listens on REQRES_LISTEN_ADDR, registers in etcd when REQRES_ETCD_ENDPOINTS is set, " +
		"answers echo and time requests, and periodically asks every client for its name.",
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "listen address (overrides REQRES_LISTEN_ADDR)")
	serveCmd.Flags().Float64("rate", 1000, "requests per second accepted from all clients")
	serveCmd.Flags().Int("burst", 100, "rate limiter burst")
	serveCmd.Flags().Duration("ask-interval", 10*time.Second, "how often to ask clients for their name (0 disables)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.ListenAddr = listen
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	var reg registry.Registry
	if len(cfg.EtcdEndpoints) > 0 {
		etcdReg, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints, logger)
		if err != nil {
			return err
		}
		defer etcdReg.Close()
		reg = etcdReg
	}

	srv := transport.NewTCPServer(
		transport.WithLogger(logger),
		transport.WithHeartbeatInterval(cfg.HeartbeatInterval),
		transport.WithServiceName(cfg.ServiceName),
	)
	if err := srv.Listen("tcp", cfg.ListenAddr); err != nil {
		return err
	}

	rateLimit, _ := cmd.Flags().GetFloat64("rate")
	burst, _ := cmd.Flags().GetInt("burst")
	m := manager.New(srv, cfg,
		manager.WithLogger(logger),
		manager.WithMiddleware(
			middleware.LoggingMiddleware(logger),
			middleware.RateLimitMiddleware(rateLimit, burst),
			middleware.TimeoutMiddleware(cfg.ServerRequestTimeout),
		),
	)
	registerProtocol(m, "server")
	m.Start()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Serve(cfg.AdvertiseAddr, reg)
	})
	g.Go(func() error {
		<-ctx.Done()
		m.Close()
		return srv.Shutdown(5 * time.Second)
	})
	if interval, _ := cmd.Flags().GetDuration("ask-interval"); interval > 0 {
		g.Go(func() error {
			askNames(ctx, m, srv, interval, logger)
			return nil
		})
	}
	return g.Wait()
}

// askNames sends a name request to every connected client each interval.
func askNames(ctx context.Context, m *manager.Manager, srv *transport.TCPServer, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, peer := range srv.Peers() {
			peer := peer
			m.SendRequestAsServer(peer, TypeName, message.EmptyMessage{}, nil,
				func(data handler.ResponseData, code message.AckCode, resp any) {
					if code != message.AckSuccess {
						logger.Info("client did not answer", zap.Uint64("peer", uint64(peer)), zap.Stringer("code", code))
						return
					}
					logger.Info("client name", zap.Uint64("peer", uint64(data.Sender)), zap.String("name", resp.(NameResponse).Name))
				})
		}
	}
}

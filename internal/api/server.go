// Package api hosts the corrboard HTTP and gRPC listeners.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"corrboard/internal/config"
)

// Server is the main API server that hosts HTTP and gRPC endpoints.
type Server struct {
	httpAddr string
	grpcAddr string
	http     *http.Server
	grpc     *grpc.Server
	log      *slog.Logger
}

// NewServer creates a Server listening on the configured host and ports.
// handler serves HTTP; ranker backs the gRPC Correlation service.
func NewServer(cfg *config.Config, handler http.Handler, ranker Ranker) *Server {
	gs := grpc.NewServer()
	RegisterCorrelationServer(gs, NewCorrelationService(ranker))

	return &Server{
		httpAddr: net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port)),
		grpcAddr: net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.GRPCPort)),
		http: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		grpc: gs,
		log:  slog.Default().With("component", "api"),
	}
}

// ListenAndServe starts the HTTP and gRPC listeners and blocks until the
// context is cancelled or a listener fails. Cancellation shuts both down
// gracefully and returns nil.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpAddr, err)
	}
	grpcLis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		httpLis.Close()
		return fmt.Errorf("listening on %s: %w", s.grpcAddr, err)
	}
	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve runs both servers on the given listeners.
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("http listening", "addr", httpLis.Addr().String())
		if err := s.http.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.log.Info("grpc listening", "addr", grpcLis.Addr().String())
		if err := s.grpc.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown performs a graceful shutdown of the HTTP and gRPC servers.
func (s *Server) Shutdown(ctx context.Context) error {
	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()
	err := s.http.Shutdown(ctx)
	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpc.Stop()
	}
	s.log.Info("servers stopped")
	return err
}

package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"yumex/internal/httpapi"
	"yumex/internal/transaction"
	"yumex/pkg/types"
)

const defaultListenAddr = "127.0.0.1:8765"

// bridge adapts an open session to the HTTP layer.
type bridge struct {
	daemon Daemon
	coord  *transaction.Coordinator
}

func (b *bridge) Status() types.StatusResponse {
	st := b.daemon.Status()
	st.TransactionState = b.coord.State().String()
	return st
}

func (b *bridge) DrainEvents(max int) []types.EventView {
	events := b.daemon.Events().Drain(max)
	out := make([]types.EventView, 0, len(events))
	for _, e := range events {
		out = append(out, e.View())
	}
	return out
}

func (b *bridge) WaitEvent(ctx context.Context) (types.EventView, error) {
	e, err := b.daemon.Events().Next(ctx)
	if err != nil {
		return types.EventView{}, err
	}
	return e.View(), nil
}

func (b *bridge) Reload(ctx context.Context) error { return b.daemon.Reload(ctx) }

func (b *bridge) Ready() bool { return b.daemon.Status().SessionOpen }

func (a *app) serveCmd() *cobra.Command {
	var addr, origins string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Hold a daemon session open and expose status, events and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.ListenAddr
			}
			if addr == "" {
				addr = defaultListenAddr
			}
			allowed := a.cfg.CORSOrigins
			if origins != "" {
				allowed = splitCSV(origins)
			}
			return a.withEnv(cmd, func(ctx context.Context, e *env) error {
				return a.serve(ctx, addr, allowed, &bridge{daemon: e.daemon, coord: e.coord})
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default config listen_addr or "+defaultListenAddr+")")
	cmd.Flags().StringVar(&origins, "cors-origins", "", "Comma separated allowed CORS origins (enables CORS)")
	return cmd
}

// serve runs the HTTP bridge until ctx is canceled.
func (a *app) serve(ctx context.Context, addr string, origins []string, svc httpapi.Service) error {
	httpapi.SetLogger(a.log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetCORSOptions(len(origins) > 0, origins, nil, nil)
	srv := &http.Server{Addr: addr, Handler: httpapi.NewMux(svc), ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		a.log.Info().Str("event", "serve_start").Str("addr", addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Str("event", "serve_shutdown").Err(err).Msg("graceful shutdown error")
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/desertthunder/songbridge/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	host := cmd.String("host")
	if host == "" {
		host = r.config.Server.Host
	}
	port := cmd.Int("port")
	if port == 0 {
		port = r.config.Server.Port
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}

	engine, err := r.orchestrator(ctx)
	if err != nil {
		return err
	}

	stopSweepers := r.caches.StartSweepers(ctx, r.config.Cache.SweepInterval.Duration, r.logger)
	defer stopSweepers()

	api := server.NewAPIHandler(engine, r.history, r.logger)
	api.OnProvidersChanged = r.persistHealth

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	srv := server.New(addr, server.NewRouter(api, r.logger), r.logger)

	r.writePlain("Listening on http://%s\n", addr)
	return srv.Run(ctx)
}

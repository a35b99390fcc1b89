package cli

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/structsync/structsync/internal/scheduler"
	"github.com/structsync/structsync/internal/server"
	"github.com/structsync/structsync/internal/service"
)

func newServeCmd() *cobra.Command {
	var (
		port    int
		host    string
		noWatch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API over the saved connection profiles. Set auth.jwt_secret
(or STRUCTSYNC_AUTH_JWT_SECRET) to require bearer tokens; mint them with
'structsync token'. Watches defined in the config file run in the background.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			cfg, err := serverConfig(a.cfg)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			authSvc := service.NewAuthService(a.cfg.Auth.JWTSecret)
			if !authSvc.Enabled() && !isLoopback(cfg.Host) {
				a.logger.Warn("API is reachable from the network without authentication; set auth.jwt_secret", "host", cfg.Host)
			}

			if !noWatch && len(a.cfg.Watches) > 0 {
				sched := scheduler.New(a.svc, a.logger, 10*time.Minute)
				for _, w := range watchesFromConfig(a.cfg) {
					if err := sched.Add(w); err != nil {
						return err
					}
				}
				sched.Start()
				defer func() { <-sched.Stop().Done() }()
				a.logger.Info("drift watches scheduled", "count", len(a.cfg.Watches))
			}

			srv := server.New(cfg, a.svc, authSvc, a.logger)

			scheme := "http"
			if cfg.TLSCertFile != "" {
				scheme = "https"
			}
			fmt.Printf("→ structsync %s\n", versionString())
			fmt.Printf("→ Listening on %s://%s\n", scheme, cfg.Addr())
			fmt.Printf("→ OpenAPI:    %s://%s/openapi.json\n", scheme, cfg.Addr())
			fmt.Printf("→ Health:     %s://%s/healthz\n", scheme, cfg.Addr())
			fmt.Println()

			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", server.DefaultConfig().Port, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", server.DefaultConfig().Host, "HTTP listen host")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not run watches from the config file")

	return cmd
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

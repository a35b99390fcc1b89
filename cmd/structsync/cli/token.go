package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/structsync/structsync/internal/service"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API",
		Long: `Mint a JWT signed with auth.jwt_secret. Send it to the API as
"Authorization: Bearer <token>".`,
		Example: `  structsync token --subject ci --ttl 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			auth := service.NewAuthService(cfg.Auth.JWTSecret)
			if !auth.Enabled() {
				return fmt.Errorf("auth.jwt_secret is not set; the API accepts requests without a token")
			}
			if !cmd.Flags().Changed("ttl") {
				if ttl, err = parseDuration(cfg.Auth.JWTExpiry, ttl); err != nil {
					return fmt.Errorf("auth.jwt_expiry: %w", err)
				}
			}
			token, err := auth.IssueJWT(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "cli", "Token subject, logged with each request")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime (default: auth.jwt_expiry)")

	return cmd
}

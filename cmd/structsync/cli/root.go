package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	verbose    bool
	appVersion string
)

// Execute creates the root command tree and runs it. SIGINT and SIGTERM
// cancel the command's context.
func Execute(version, commit, date string) error {
	appVersion = version
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "structsync",
		Short: "Compare database schemas and generate the SQL that syncs them",
		Long: `structsync compares the schema of a source database with a target database
and produces the DDL that makes the target match the source.

Connection profiles are saved locally; passwords live in the OS keyring.
MySQL, MariaDB, PostgreSQL and SQL Server are supported, directly or through
an SSH tunnel. The same operations are available over an HTTP API and as
MCP tools for AI agents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./structsync.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for profiles and keyring (default: ~/.structsync)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newConnCmd())
	cmd.AddCommand(newCompareCmd())
	cmd.AddCommand(newApplyCmd())
	cmd.AddCommand(newSnapshotCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	// A .env file is optional.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("structsync")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.structsync")
	}

	viper.SetEnvPrefix("STRUCTSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/structsync/structsync/internal/model"
)

func newConnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conn",
		Aliases: []string{"connection", "connections"},
		Short:   "Manage saved connection profiles",
		Long:    "Add, remove, test, and inspect saved database connection profiles.",
	}

	cmd.AddCommand(newConnAddCmd())
	cmd.AddCommand(newConnListCmd())
	cmd.AddCommand(newConnShowCmd())
	cmd.AddCommand(newConnRemoveCmd())
	cmd.AddCommand(newConnTestCmd())
	cmd.AddCommand(newConnDatabasesCmd())

	return cmd
}

// ---------- conn add ----------

type connFlags struct {
	dbType   string
	host     string
	port     uint16
	user     string
	password string
	database string

	sshHost     string
	sshPort     uint16
	sshUser     string
	sshKey      string
	sshPassword bool

	sslCA     string
	sslCert   string
	sslKey    string
	sslVerify bool
	ssl       bool

	test bool
}

func newConnAddCmd() *cobra.Command {
	var f connFlags

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Save a connection profile",
		Long: `Save a new connection profile. The password is stored in the OS keyring,
never in the profile database. Omit --password to be prompted.

Supported types: mysql, mariadb, postgresql, mssql`,
		Example: `  structsync conn add dev --type postgresql --host localhost --user app --database shop
  structsync conn add prod --type mysql --host 10.0.0.5 --user root --database shop \
      --ssh-host bastion.example.com --ssh-user deploy --ssh-key ~/.ssh/id_ed25519`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnAdd(cmd.Context(), args[0], f)
		},
	}

	cmd.Flags().StringVarP(&f.dbType, "type", "t", "", "Database type (mysql, mariadb, postgresql, mssql)")
	cmd.Flags().StringVar(&f.host, "host", "localhost", "Database host")
	cmd.Flags().Uint16Var(&f.port, "port", 0, "Database port (default depends on type)")
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "Database user")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "Database password (prompted if omitted)")
	cmd.Flags().StringVarP(&f.database, "database", "d", "", "Default database")

	cmd.Flags().StringVar(&f.sshHost, "ssh-host", "", "SSH jump host; enables tunneling")
	cmd.Flags().Uint16Var(&f.sshPort, "ssh-port", 22, "SSH port")
	cmd.Flags().StringVar(&f.sshUser, "ssh-user", "", "SSH user")
	cmd.Flags().StringVar(&f.sshKey, "ssh-key", "", "SSH private key file; password auth when omitted")
	cmd.Flags().BoolVar(&f.sshPassword, "ssh-ask-pass", false, "Prompt for the SSH password or key passphrase")

	cmd.Flags().BoolVar(&f.ssl, "ssl", false, "Connect with TLS")
	cmd.Flags().StringVar(&f.sslCA, "ssl-ca", "", "CA certificate file")
	cmd.Flags().StringVar(&f.sslCert, "ssl-cert", "", "Client certificate file")
	cmd.Flags().StringVar(&f.sslKey, "ssl-key", "", "Client key file")
	cmd.Flags().BoolVar(&f.sslVerify, "ssl-verify", true, "Verify the server certificate")

	cmd.Flags().BoolVar(&f.test, "test", false, "Test the connection before saving")
	cmd.MarkFlagRequired("type")

	return cmd
}

func runConnAdd(ctx context.Context, name string, f connFlags) error {
	dbType, err := model.ParseDbType(f.dbType)
	if err != nil {
		return err
	}
	in := model.ConnectionInput{
		Name:     name,
		DbType:   dbType,
		Host:     f.host,
		Port:     f.port,
		Username: f.user,
		Password: f.password,
		Database: f.database,
	}
	if in.Password == "" {
		if in.Password, err = promptSecret("Password: "); err != nil {
			return err
		}
	}

	if f.sshHost != "" {
		ssh := &model.SSHConfig{
			Enabled:    true,
			Host:       f.sshHost,
			Port:       f.sshPort,
			Username:   f.sshUser,
			AuthMethod: model.SSHAuthPassword,
		}
		if f.sshKey != "" {
			ssh.AuthMethod = model.SSHAuthPrivateKey
			ssh.PrivateKeyPath = f.sshKey
		}
		if f.sshPassword {
			prompt := "SSH password: "
			if f.sshKey != "" {
				prompt = "Key passphrase: "
			}
			secret, err := promptSecret(prompt)
			if err != nil {
				return err
			}
			if f.sshKey != "" {
				ssh.Passphrase = secret
			} else {
				ssh.Password = secret
			}
		}
		in.SSH = ssh
	}

	if f.ssl || f.sslCA != "" || f.sslCert != "" {
		in.SSL = &model.SSLConfig{
			Enabled:        true,
			CACertPath:     f.sslCA,
			ClientCertPath: f.sslCert,
			ClientKeyPath:  f.sslKey,
			VerifyServer:   f.sslVerify,
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if f.test {
		fmt.Printf("Testing connection %q...\n", name)
		if err := a.svc.TestConnection(ctx, in); err != nil {
			return err
		}
		fmt.Println("Connection successful.")
	}

	c, err := a.svc.SaveConnection(ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("Saved connection %q (%s %s:%d, id=%s)\n", c.Name, c.DbType, c.Host, c.Port, c.ID)
	return nil
}

// promptSecret reads a secret from the terminal without echo. Piped stdin
// yields an empty secret.
func promptSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// ---------- conn list ----------

func newConnListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List saved connection profiles",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnList(cmd.Context(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runConnList(ctx context.Context, jsonOutput bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	conns, err := a.svc.ListConnections(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		for i := range conns {
			conns[i] = redacted(conns[i])
		}
		return printJSON(conns)
	}

	if len(conns) == 0 {
		fmt.Println("No connections saved. Use 'structsync conn add' to add one.")
		return nil
	}

	fmt.Printf("%-20s %-11s %-30s %-20s %-4s\n", "NAME", "TYPE", "ADDRESS", "DATABASE", "SSH")
	fmt.Printf("%-20s %-11s %-30s %-20s %-4s\n", "----", "----", "-------", "--------", "---")
	for _, c := range conns {
		ssh := "no"
		if c.SSH != nil && c.SSH.Enabled {
			ssh = "yes"
		}
		addr := fmt.Sprintf("%s:%d", c.Host, c.Port)
		fmt.Printf("%-20s %-11s %-30s %-20s %-4s\n", c.Name, c.DbType, addr, c.Database, ssh)
	}
	return nil
}

// ---------- conn show ----------

func newConnShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a connection profile as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.svc.GetConnection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(redacted(*c))
		},
	}
}

// ---------- conn remove ----------

func newConnRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove a connection profile and its stored passwords",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.svc.GetConnection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.svc.DeleteConnection(cmd.Context(), c.ID); err != nil {
				return err
			}
			fmt.Printf("Removed connection %q\n", c.Name)
			return nil
		},
	}
}

// ---------- conn test ----------

func newConnTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <name>",
		Short: "Test a saved connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.svc.GetConnection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Testing connection %q (%s)...\n", c.Name, c.DbType)
			if err := a.svc.TestConnection(cmd.Context(), inputFrom(*c)); err != nil {
				return err
			}
			fmt.Println("Connection successful.")
			return nil
		},
	}
}

// ---------- conn databases ----------

func newConnDatabasesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "databases <name>",
		Aliases: []string{"dbs"},
		Short:   "List the databases reachable through a connection",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			dbs, err := a.svc.ListDatabases(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(dbs)
			}
			for _, db := range dbs {
				fmt.Println(db)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// inputFrom turns a saved profile back into input, secrets included.
func inputFrom(c model.Connection) model.ConnectionInput {
	return model.ConnectionInput{
		Name:     c.Name,
		DbType:   c.DbType,
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		Database: c.Database,
		SSH:      c.SSH,
		SSL:      c.SSL,
	}
}

// redacted returns c without SSH secrets. The database password is never
// marshaled.
func redacted(c model.Connection) model.Connection {
	if c.SSH != nil {
		ssh := *c.SSH
		ssh.Password = ""
		ssh.Passphrase = ""
		c.SSH = &ssh
	}
	return c
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

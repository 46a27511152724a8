package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"robotctl/internal/auth"
	"robotctl/internal/config"
	"robotctl/internal/db"
	"robotctl/internal/domain"
	"robotctl/internal/events"
	"robotctl/internal/migrate"
	"robotctl/internal/repo"
	"robotctl/internal/server"
	robotctlsdk "robotctl/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "rc",
	Short: "Robot control service CLI",
	Long: `rc runs and operates the robot command-and-status API.
The API records control commands and serves the last known robot status;
status writes happen only here ('rc status set'), never over HTTP.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ROBOTCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(commandCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				cfg.Server.BasePath = basePath
			}
			secret := cfg.Auth.Secret
			if s := viper.GetString("auth-secret"); s != "" {
				secret = s
			}
			if secret == "" {
				return fmt.Errorf("auth secret is required: set auth.secret in %s or ROBOTCTL_AUTH_SECRET", config.Path(workspace))
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			handler, err := server.New(server.Config{
				Repo:          repo.Repo{DB: conn},
				Verifier:      auth.StaticVerifier{Username: cfg.Auth.Username, Password: cfg.Auth.Password},
				Issuer:        auth.Issuer{Secret: secret, TTL: cfg.Auth.TokenTTL.Std()},
				Authenticator: auth.Authenticator{Secret: secret},
				Events:        events.Writer{DB: conn},
				BasePath:      cfg.Server.BasePath,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving robot control API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", cfg.Server.Addr, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "status", Short: "Inspect or set the robot status snapshot"}
	cmd.AddCommand(statusGetCmd())
	cmd.AddCommand(statusSetCmd())
	return cmd
}

func statusGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show the current status snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				s, err := r.CurrentStatus(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable([]domain.RobotStatus{s})
			})
		},
	}
	return cmd
}

func statusSetCmd() *cobra.Command {
	var status, position, task string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Write the status snapshot (the API itself never writes status)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status == "" {
				return fmt.Errorf("--status required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				s := domain.RobotStatus{Status: status, Position: position, Task: task}
				if s.Position == "" {
					s.Position = "0,0"
				}
				if s.Task == "" {
					s.Task = "None"
				}
				if err := r.SetStatus(ctx, s); err != nil {
					return err
				}
				return printJSONOrTable([]domain.RobotStatus{s})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status text, e.g. Moving")
	cmd.Flags().StringVar(&position, "position", "", "position, e.g. 4,2")
	cmd.Flags().StringVar(&task, "task", "", "current task")
	return cmd
}

func commandCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "command", Short: "Inspect recorded commands"}
	cmd.AddCommand(commandGetCmd())
	return cmd
}

func commandGetCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch a command by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id <= 0 {
				return fmt.Errorf("--id required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				c, err := r.GetCommand(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable([]domain.Command{c})
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "command id")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List all commands in creation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListCommands(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			secret := cfg.Auth.Secret
			if s := viper.GetString("auth-secret"); s != "" {
				secret = s
			}
			if secret == "" {
				return fmt.Errorf("auth secret is required: set auth.secret in %s or ROBOTCTL_AUTH_SECRET", config.Path(workspace))
			}
			if ttl == 0 {
				ttl = cfg.Auth.TokenTTL.Std()
			}
			token, err := auth.Issuer{Secret: secret, TTL: ttl}.Issue(subject)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "user", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from config)")
	return cmd
}

func healthCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Ping a running API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := robotctlsdk.New(url)
			if err := client.Health(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("API is healthy")
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://127.0.0.1:8080", "API base URL")
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Inspect the audit log"}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent audit log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				entries, err := r.LatestLogs(ctx, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(entries)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default robotctl.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	return cmd
}

// --- helpers ---

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(items any) error {
	if viper.GetBool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	switch v := items.(type) {
	case []domain.Command:
		t := newTable()
		t.AppendHeader(table.Row{"ID", "COMMAND", "ROBOT", "USER"})
		for _, c := range v {
			t.AppendRow(table.Row{c.ID, c.CommandText, c.Robot, c.User})
		}
		t.Render()
	case []domain.RobotStatus:
		t := newTable()
		t.AppendHeader(table.Row{"STATUS", "POSITION", "TASK"})
		for _, s := range v {
			t.AppendRow(table.Row{s.Status, s.Position, s.Task})
		}
		t.Render()
	case []domain.LogEntry:
		t := newTable()
		t.AppendHeader(table.Row{"ID", "TS", "REQUEST", "MESSAGE"})
		for _, e := range v {
			t.AppendRow(table.Row{e.ID, e.TS, e.RequestID, e.Message})
		}
		t.Render()
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	return nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	return t
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"techfixer/internal/app"
	"techfixer/internal/config"
	"techfixer/internal/db"
	"techfixer/internal/domain"
	"techfixer/internal/engine"
	"techfixer/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tf",
	Short: "Techfixer CLI",
	Long: `Techfixer tracks support tasks through their lifecycle.
- Tasks: a description, an author, an optional owner and department, and a state
  (Active, InProgress, Paused, Finished, Cancelled). Finished tasks are frozen.
- Processes: an append-only activity log attached to each task.
- Departments and users: users belong to any number of departments.
- Event log: every change is recorded, view it with 'tf log tail'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TECHFIXER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "cli", "actor recorded on events")
	rootCmd.PersistentFlags().String("driver", "", "database driver (sqlite, postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "database DSN")
	rootCmd.PersistentFlags().String("jwt-secret", "", "secret used to sign bearer tokens")
	for _, name := range []string{"workspace", "json", "actor-id", "driver", "dsn", "jwt-secret"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(departmentCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(stateCmd())
	rootCmd.AddCommand(logCmd())
}

// loadConfig reads techfixer.yml when present and applies flag and
// environment overrides on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("driver"); v != "" {
		cfg.Database.Driver = v
	}
	if v := viper.GetString("dsn"); v != "" {
		cfg.Database.DSN = v
	}
	if v := viper.GetString("jwt-secret"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	return cfg, cfg.Validate()
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	e, conn, err := app.Open(ctx, viper.GetString("workspace"), cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e)
}

func actorID() string {
	return viper.GetString("actor-id")
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create techfixer.yml and the database in the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", path)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				depts, err := e.ListDepartments(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Workspace ready with %d departments\n", len(depts))
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("TECHFIXER_JWT_SECRET (or auth.jwt_secret) is required for bearer auth")
			}
			if !cmd.Flags().Changed("addr") && cfg.Server.Addr != "" {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") && cfg.Server.BasePath != "" {
				basePath = cfg.Server.BasePath
			}
			e, conn, err := app.Open(cmd.Context(), viper.GetString("workspace"), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			logger := log.New(os.Stderr, "techfixer ", log.LstdFlags)
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Logger: logger})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(cmd.Context(), e, logger)
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Techfixer API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs, metrics at /metrics)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

func tokenCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.Authenticate(ctx, username, password)
				if err != nil {
					return err
				}
				token, expiresAt, err := e.TokenIssuer().Issue(u)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"token": token, "expires_at": expiresAt})
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func stateCmd() *cobra.Command {
	st := &cobra.Command{Use: "state", Short: "Task states"}
	st.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List task states",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				states, err := e.ListStates(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(states)
				}
				tw := newTable(table.Row{"ID", "Name", "Pending", "Terminal"})
				for _, s := range states {
					tw.AppendRow(table.Row{int64(s.ID), s.Name, s.ID.IsPending(), s.ID.IsTerminal()})
				}
				tw.Render()
				return nil
			})
		},
	})
	return st
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind string
	var entityID int64
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable(table.Row{"ID", "TS", "Type", "Entity", "Actor", "Payload"})
				for _, evt := range events {
					entity := evt.EntityKind
					if evt.EntityID != 0 {
						entity = fmt.Sprintf("%s/%d", evt.EntityKind, evt.EntityID)
					}
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, entity, evt.ActorID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind (task, department, user)")
	cmd.Flags().Int64Var(&entityID, "entity-id", 0, "entity id")
	return cmd
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// int64Flag returns a pointer to the flag value when it was set explicitly.
func int64Flag(cmd *cobra.Command, name string, v int64) *int64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func stringFlag(cmd *cobra.Command, name, v string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

// parseState accepts a state id or a case-insensitive state name.
func parseState(s string) (domain.StateID, error) {
	s = strings.TrimSpace(s)
	for _, row := range domain.StateRows {
		if strings.EqualFold(row.Name, s) || fmt.Sprintf("%d", int64(row.ID)) == s {
			return row.ID, nil
		}
	}
	return 0, fmt.Errorf("unknown state %q", s)
}

// parseTime accepts RFC 3339 timestamps or plain dates.
func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid time %q", s)
}

func refName(ref *domain.Ref) string {
	if ref == nil {
		return ""
	}
	return ref.Name
}

func refNames(refs []domain.Ref) string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}

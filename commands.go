package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shakram02/go-sql-browser/data"
)

// app carries state shared by the commands once configuration is loaded.
type app struct {
	root       *cobra.Command
	configFile string
	cfg        *Config
	logger     *slog.Logger
}

// flagKeys binds persistent flags to configuration keys.
var flagKeys = map[string]string{
	"provider":      keyProvider,
	"dsn":           keyConnectionString,
	"name":          keyName,
	"read-only":     keyReadOnly,
	"max-rows":      keyMaxRows,
	"query-timeout": keyQueryTimeout,
	"log-level":     keyLogLevel,
}

func newRootCmd() *cobra.Command {
	a := &app{}
	a.root = &cobra.Command{
		Use:   "sql-browser",
		Short: "Browse and edit MySQL, PostgreSQL and SQLite databases",
		Long: `sql-browser lists the tables, views and stored procedures of a database,
runs queries, edits rows and serves the database to MCP clients over stdio.

Connection settings come from flags, .sql-browser.yaml, .env files or the
environment, e.g. MCP_PROVIDER=mysql with MCP_MYSQL_HOST, MCP_MYSQL_PORT,
MCP_MYSQL_DB, MCP_MYSQL_USER and MCP_MYSQL_PASSWORD.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := a.root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to config file (default .sql-browser.yaml in . or $HOME)")
	flags.StringP("provider", "p", "mysql", "Database provider: "+strings.Join(data.Providers(), ", "))
	flags.String("dsn", "", "Connection string, overrides the provider settings")
	flags.String("name", "", "Display name of the database")
	flags.Bool("read-only", true, "Refuse statements that modify data")
	flags.Int("max-rows", DefaultMaxRows, "Maximum rows returned by a query (0 for unlimited)")
	flags.String("query-timeout", data.DefaultQueryTimeout.String(), "Timeout of each statement (duration or seconds)")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")

	a.root.AddCommand(
		a.serveCmd(),
		a.tablesCmd(),
		a.proceduresCmd(),
		a.describeCmd(),
		a.queryCmd(),
		a.execCmd(),
		a.browseCmd(),
		providersCmd(),
	)
	return a.root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := loadDotEnv(AppFs); err != nil {
		return err
	}
	v, err := newViper(a.configFile)
	if err != nil {
		return err
	}
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, a.root.PersistentFlags().Lookup(flag)); err != nil {
			return err
		}
	}

	a.cfg, err = LoadConfig(v)
	if err != nil {
		return err
	}
	a.logger, err = newLogger(cmd.ErrOrStderr(), a.cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) open() (*data.Database, error) {
	return a.cfg.Open(data.WithLogger(a.logger))
}

// withDatabase opens the configured database, runs fn and closes it.
func (a *app) withDatabase(fn func(db *data.Database) error) error {
	db, err := a.open()
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the database to MCP clients over stdio",
		Long: `Run an MCP (JSON-RPC 2.0) server on stdin/stdout. Logs go to stderr.

Write tools (execute, insert_row, update_row, delete_row) are only offered
with --read-only=false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open()
			if err != nil {
				return err
			}
			defer db.Close()

			server, err := NewMCPServer(cmd.Context(), db, cmd.InOrStdin(), cmd.OutOrStdout(), a.logger)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}
			defer server.Close()

			a.logger.Info("MCP server started",
				"provider", db.Provider().Name(), "database", db.Name(), "read_only", db.ReadOnly())

			if err := server.Run(); err != nil {
				if errors.Is(err, context.Canceled) {
					a.logger.Info("server shutdown gracefully")
					return nil
				}
				return err
			}
			return nil
		},
	}
}

func (a *app) tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables and views",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDatabase(func(db *data.Database) error {
				tables, err := db.Tables(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, len(tables))
				for i, t := range tables {
					kind := "table"
					if t.IsView {
						kind = "view"
					}
					rows[i] = []string{t.Name, kind}
				}
				return printTable(cmd.OutOrStdout(), []string{"Name", "Type"}, rows)
			})
		},
	}
}

func (a *app) proceduresCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "procedures",
		Aliases: []string{"procs"},
		Short:   "List stored procedures and functions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDatabase(func(db *data.Database) error {
				procs, err := db.StoredProcedures(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, len(procs))
				for i, p := range procs {
					params, err := p.Parameters(cmd.Context())
					if err != nil {
						return err
					}
					sig := make([]string, len(params))
					for j, param := range params {
						sig[j] = strings.TrimSpace(param.Mode + " " + param.Name + " " + param.DataType)
					}
					rows[i] = []string{p.Name, p.Type, strings.Join(sig, ", ")}
				}
				return printTable(cmd.OutOrStdout(), []string{"Name", "Type", "Parameters"}, rows)
			})
		},
	}
}

func (a *app) describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <table>",
		Short: "Show the columns of a table or view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDatabase(func(db *data.Database) error {
				t, err := db.Table(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				cols, err := t.Columns(cmd.Context())
				if err != nil {
					return err
				}
				return printTable(cmd.OutOrStdout(),
					[]string{"Column", "Type", "Nullable", "Default", "Key"}, formatColumns(cols))
			})
		},
	}
}

func (a *app) queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a query and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDatabase(func(db *data.Database) error {
				result, err := db.ExecuteTable(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printDataTable(cmd.OutOrStdout(), result)
			})
		},
	}
}

func (a *app) execCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <sql>",
		Short: "Execute a statement that modifies data or schema",
		Long:  `Execute a statement and print the number of rows affected. Requires --read-only=false.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDatabase(func(db *data.Database) error {
				if err := db.Connect(cmd.Context()); err != nil {
					return err
				}
				defer db.Disconnect()

				n, err := db.ExecuteNonQuery(cmd.Context(), args[0])
				if errors.Is(err, data.ErrReadOnly) {
					return fmt.Errorf("%w: pass --read-only=false to allow writes", err)
				}
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "%d row(s) affected", n)
				return nil
			})
		},
	}
}

func (a *app) browseCmd() *cobra.Command {
	var (
		columns []string
		filters []string
		where   string
		orderBy string
		desc    bool
		limit   int
		offset  int
	)
	cmd := &cobra.Command{
		Use:   "browse <table>",
		Short: "Print rows of a table or view",
		Long: `Print rows of a table or view.

Examples:
  sql-browser browse users --filter status=active --order-by created_at --desc
  sql-browser browse orders --columns id,total --where "total > 100" --limit 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := &data.TableFilter{
				Columns: columns,
				Where:   where,
				Limit:   limit,
				Offset:  offset,
			}
			if orderBy != "" {
				filter.OrderBy = []data.Order{{Column: orderBy, Descending: desc}}
			}
			for _, f := range filters {
				column, value, ok := strings.Cut(f, "=")
				if !ok || column == "" {
					return fmt.Errorf("invalid filter %q: expected column=value", f)
				}
				filter.Conditions = append(filter.Conditions,
					data.Condition{Column: column, Operator: data.OpEqual, Value: value})
			}

			return a.withDatabase(func(db *data.Database) error {
				t, err := db.Table(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				adapter, err := db.CreateAdapter(cmd.Context(), t, filter)
				if err != nil {
					return err
				}
				if db.ReadOnly() {
					if err := db.Provider().ValidateQuery(adapter.SelectText); err != nil {
						return fmt.Errorf("query rejected: %w", err)
					}
				}
				result, err := adapter.Fill(cmd.Context())
				if err != nil {
					return err
				}
				return printDataTable(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Columns to print (default all)")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Equality filter column=value, repeatable")
	cmd.Flags().StringVar(&where, "where", "", "Additional raw WHERE condition")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "Column to order by")
	cmd.Flags().BoolVar(&desc, "desc", false, "Order descending")
	cmd.Flags().IntVar(&limit, "limit", DefaultBrowseLimit, "Maximum rows (0 for unlimited)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the supported database providers",
		Args:  cobra.NoArgs,
		// Needs no connection settings.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows [][]string
			for _, name := range data.Providers() {
				p, err := data.Lookup(name)
				if err != nil {
					return err
				}
				d := p.Dialect()
				procs := "no"
				if p.SupportStoredProcedures() {
					procs = "yes"
				}
				rows = append(rows, []string{
					p.Name(),
					p.DriverName(),
					d.ParameterPrefix,
					d.QuotePrefix + "name" + d.QuoteSuffix,
					procs,
					EnvPrefix + "_" + strings.ToUpper(p.SettingsKey()) + "_*",
				})
			}
			return printTable(cmd.OutOrStdout(),
				[]string{"Provider", "Driver", "Parameter", "Quoting", "Procedures", "Environment"}, rows)
		},
	}
}

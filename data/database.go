package data

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// Connection defaults, overridable through Options.
const (
	DefaultConnectionTimeout = 10 * time.Second
	DefaultQueryTimeout      = 30 * time.Second
	DefaultMaxOpenConns      = 10
	DefaultMaxIdleConns      = 5
)

// Option configures a Database.
type Option func(*Database)

// WithReadOnly makes the database refuse statements that modify data and
// validate every query through the provider.
func WithReadOnly(readOnly bool) Option {
	return func(d *Database) { d.readOnly = readOnly }
}

// WithMaxRows truncates result tables at n rows. Zero means unlimited.
func WithMaxRows(n int) Option {
	return func(d *Database) { d.maxRows = n }
}

// WithQueryTimeout bounds every statement. Zero disables the timeout.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(d *Database) { d.queryTimeout = timeout }
}

// WithConnectionTimeout bounds the initial ping.
func WithConnectionTimeout(timeout time.Duration) Option {
	return func(d *Database) { d.connTimeout = timeout }
}

// WithPool sets the pool limits applied on connect.
func WithPool(maxOpen, maxIdle int) Option {
	return func(d *Database) {
		d.maxOpen = maxOpen
		d.maxIdle = maxIdle
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Database) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDriverName opens connections through a different database/sql
// driver than the provider's, e.g. a registered test double.
func WithDriverName(name string) Option {
	return func(d *Database) { d.driverName = name }
}

// Database is one named database managed by a Provider. Connect and
// Disconnect are reference counted: nested users share one pool, and the
// last Disconnect closes it.
type Database struct {
	name     string
	provider Provider

	readOnly     bool
	maxRows      int
	queryTimeout time.Duration
	connTimeout  time.Duration
	maxOpen      int
	maxIdle      int
	driverName   string
	logger       *slog.Logger

	mu       sync.Mutex
	connStr  string
	db       *sqlx.DB
	refs     int
	dbName   string
	tables   []*Table
	routines []*StoredProcedure
}

// Open creates a Database for the provider registered under providerName.
// No connection is made until Connect.
func Open(providerName, name, connStr string, opts ...Option) (*Database, error) {
	p, err := Lookup(providerName)
	if err != nil {
		return nil, err
	}
	return New(p, name, connStr, opts...), nil
}

// New creates a Database bound to p.
func New(p Provider, name, connStr string, opts ...Option) *Database {
	d := &Database{
		name:         name,
		provider:     p,
		connStr:      connStr,
		queryTimeout: DefaultQueryTimeout,
		connTimeout:  DefaultConnectionTimeout,
		maxOpen:      DefaultMaxOpenConns,
		maxIdle:      DefaultMaxIdleConns,
		driverName:   p.DriverName(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("database", name, "provider", p.Name())
	return d
}

func (d *Database) Name() string                  { return d.name }
func (d *Database) Provider() Provider            { return d.provider }
func (d *Database) Dialect() Dialect              { return d.provider.Dialect() }
func (d *Database) ParameterPrefix() string       { return d.provider.Dialect().ParameterPrefix }
func (d *Database) QuotePrefix() string           { return d.provider.Dialect().QuotePrefix }
func (d *Database) QuoteSuffix() string           { return d.provider.Dialect().QuoteSuffix }
func (d *Database) SupportStoredProcedures() bool { return d.provider.SupportStoredProcedures() }
func (d *Database) ReadOnly() bool                { return d.readOnly }

// ConnectionString returns the connection string as the user gave it.
func (d *Database) ConnectionString() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connStr
}

// ChangeConnectionString replaces the connection string. The database must
// be disconnected. Cached schema is dropped.
func (d *Database) ChangeConnectionString(connStr string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refs > 0 {
		return ErrConnected
	}
	d.connStr = connStr
	d.dbName = ""
	d.tables = nil
	d.routines = nil
	return nil
}

// IsConnected reports whether the pool is open.
func (d *Database) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refs > 0
}

// Connect opens the pool on first use and otherwise just takes another
// reference to it.
func (d *Database) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refs > 0 {
		d.refs++
		return nil
	}

	dsn, err := d.provider.DataSourceName(d.connStr, d.readOnly)
	if err != nil {
		return fmt.Errorf("invalid connection string: %w", err)
	}
	db, err := sqlx.Open(d.driverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxIdleConns(d.maxIdle)
	db.SetMaxOpenConns(d.maxOpen)
	db.SetConnMaxLifetime(time.Hour)
	if pc, ok := d.provider.(poolConfigurer); ok {
		pc.ConfigurePool(db)
	}

	pingCtx, cancel := context.WithTimeout(ctx, d.connTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	d.db = db
	d.refs = 1
	d.logger.Debug("connected", "read_only", d.readOnly)
	return nil
}

// Disconnect releases one reference and closes the pool when it was the
// last. Disconnecting a closed database is a no-op.
func (d *Database) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refs == 0 {
		return nil
	}
	d.refs--
	if d.refs > 0 {
		return nil
	}
	return d.closeLocked()
}

// Close closes the pool regardless of outstanding references.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return nil
	}
	d.refs = 0
	return d.closeLocked()
}

func (d *Database) closeLocked() error {
	db := d.db
	d.db = nil
	if db == nil {
		return nil
	}
	d.logger.Debug("disconnected")
	return db.Close()
}

// conn returns the open pool or ErrNotConnected.
func (d *Database) conn() (*sqlx.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return nil, ErrNotConnected
	}
	return d.db, nil
}

func (d *Database) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.queryTimeout)
}

// ExecuteNonQuery runs a statement on the open connection and returns the
// number of rows affected.
func (d *Database) ExecuteNonQuery(ctx context.Context, commandText string, args ...any) (int64, error) {
	if d.readOnly {
		return 0, ErrReadOnly
	}
	db, err := d.conn()
	if err != nil {
		return 0, err
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	res, err := db.ExecContext(ctx, commandText, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExecuteNonQueryTx runs a statement inside tx, connecting for the duration
// of the call. A nil tx runs the statement directly on the pool.
func (d *Database) ExecuteNonQueryTx(ctx context.Context, tx *sqlx.Tx, commandText string, args ...any) (int64, error) {
	if d.readOnly {
		return 0, ErrReadOnly
	}
	if err := d.Connect(ctx); err != nil {
		return 0, err
	}
	defer d.Disconnect()

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, commandText, args...)
	} else {
		db, cerr := d.conn()
		if cerr != nil {
			return 0, cerr
		}
		res, err = db.ExecContext(ctx, commandText, args...)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExecuteTable runs a query and materializes its result, connecting for
// the duration of the call.
func (d *Database) ExecuteTable(ctx context.Context, commandText string, args ...any) (*DataTable, error) {
	if d.readOnly {
		if err := d.provider.ValidateQuery(commandText); err != nil {
			return nil, fmt.Errorf("query rejected: %w", err)
		}
	}
	return d.fill(ctx, commandText, args...)
}

func (d *Database) fill(ctx context.Context, commandText string, args ...any) (*DataTable, error) {
	if err := d.Connect(ctx); err != nil {
		return nil, err
	}
	defer d.Disconnect()

	db, err := d.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	rows, err := db.QueryxContext(ctx, commandText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return readTable(rows, d.maxRows)
}

// CreateCommand prepares a statement on the open connection.
func (d *Database) CreateCommand(ctx context.Context, commandText string) (*sqlx.Stmt, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}
	return db.PreparexContext(ctx, commandText)
}

// BeginTransaction starts a transaction on the open connection.
func (d *Database) BeginTransaction(ctx context.Context) (*sqlx.Tx, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}
	return db.BeginTxx(ctx, nil)
}

// CreateAdapter builds a data adapter that browses table through filter
// and writes back through generated INSERT/UPDATE/DELETE commands. A
// command the builder cannot produce is left nil.
func (d *Database) CreateAdapter(ctx context.Context, table *Table, filter *TableFilter) (*DataAdapter, error) {
	if table.db == nil {
		table.db = d
	}
	selectText, selectArgs, err := table.BaseSelectCommandText(filter)
	if err != nil {
		return nil, err
	}
	adapter := &DataAdapter{
		db:         d,
		Table:      table,
		SelectText: selectText,
		SelectArgs: selectArgs,
	}

	if d.readOnly {
		return adapter, nil
	}
	cols, err := table.Columns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table.Name, err)
	}
	builder := NewCommandBuilder(table, cols)
	if cmd, err := builder.InsertCommand(); err == nil {
		adapter.InsertCommand = cmd
	}
	if cmd, err := builder.UpdateCommand(); err == nil {
		adapter.UpdateCommand = cmd
	}
	if cmd, err := builder.DeleteCommand(); err == nil {
		adapter.DeleteCommand = cmd
	}
	return adapter, nil
}

// CurrentDatabase returns the name of the database the connection uses.
func (d *Database) CurrentDatabase(ctx context.Context) (string, error) {
	d.mu.Lock()
	if d.dbName != "" {
		name := d.dbName
		d.mu.Unlock()
		return name, nil
	}
	connStr := d.connStr
	d.mu.Unlock()

	name := d.provider.DatabaseName(connStr)
	if name == "" {
		if cd, ok := d.provider.(currentDatabaser); ok {
			if err := d.Connect(ctx); err != nil {
				return "", err
			}
			defer d.Disconnect()
			db, err := d.conn()
			if err != nil {
				return "", err
			}
			var current sql.NullString
			if err := db.QueryRowxContext(ctx, cd.CurrentDatabaseQuery()).Scan(&current); err != nil {
				return "", fmt.Errorf("failed to get database name: %w", err)
			}
			name = current.String
		}
	}

	d.mu.Lock()
	d.dbName = name
	d.mu.Unlock()
	return name, nil
}

// Tables returns base tables followed by views, each sorted by name. The
// list is read once and cached until Refresh.
func (d *Database) Tables(ctx context.Context) ([]*Table, error) {
	d.mu.Lock()
	cached := d.tables
	d.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	var tables []*Table
	err := d.withSchema(ctx, func(ctx context.Context, q sqlx.QueryerContext, database string) error {
		var err error
		tables, err = d.provider.PopulateTables(ctx, q, database)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	sort.SliceStable(tables, func(i, j int) bool {
		if tables[i].IsView != tables[j].IsView {
			return !tables[i].IsView
		}
		return tables[i].Name < tables[j].Name
	})
	for _, t := range tables {
		t.db = d
	}
	if tables == nil {
		tables = []*Table{}
	}

	d.mu.Lock()
	d.tables = tables
	d.mu.Unlock()
	return tables, nil
}

// Table returns the table or view with the given name.
func (d *Database) Table(ctx context.Context, name string) (*Table, error) {
	tables, err := d.Tables(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
}

// StoredProcedures returns the database's stored routines sorted by name,
// cached until Refresh.
func (d *Database) StoredProcedures(ctx context.Context) ([]*StoredProcedure, error) {
	if !d.provider.SupportStoredProcedures() {
		return nil, ErrNotSupported
	}
	d.mu.Lock()
	cached := d.routines
	d.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	var procs []*StoredProcedure
	err := d.withSchema(ctx, func(ctx context.Context, q sqlx.QueryerContext, database string) error {
		var err error
		procs, err = d.provider.PopulateStoredProcedures(ctx, q, database)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list stored procedures: %w", err)
	}

	sort.SliceStable(procs, func(i, j int) bool { return procs[i].Name < procs[j].Name })
	for _, p := range procs {
		p.db = d
	}
	if procs == nil {
		procs = []*StoredProcedure{}
	}

	d.mu.Lock()
	d.routines = procs
	d.mu.Unlock()
	return procs, nil
}

// Refresh drops cached tables, columns and routines.
func (d *Database) Refresh() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables = nil
	d.routines = nil
}

func (d *Database) readColumns(ctx context.Context, t *Table) ([]Column, error) {
	var cols []Column
	err := d.withSchema(ctx, func(ctx context.Context, q sqlx.QueryerContext, database string) error {
		var err error
		cols, err = d.provider.ReadColumns(ctx, q, database, t)
		return err
	})
	return cols, err
}

func (d *Database) readParameters(ctx context.Context, p *StoredProcedure) ([]Parameter, error) {
	var params []Parameter
	err := d.withSchema(ctx, func(ctx context.Context, q sqlx.QueryerContext, database string) error {
		var err error
		params, err = d.provider.ReadParameters(ctx, q, database, p)
		return err
	})
	return params, err
}

// withSchema runs a schema discovery call with the connection held open.
func (d *Database) withSchema(ctx context.Context, fn func(context.Context, sqlx.QueryerContext, string) error) error {
	if err := d.Connect(ctx); err != nil {
		return err
	}
	defer d.Disconnect()

	database, err := d.CurrentDatabase(ctx)
	if err != nil {
		return err
	}
	db, err := d.conn()
	if err != nil {
		return err
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return fn(ctx, db, database)
}

package data

import "errors"

var (
	ErrNotConnected     = errors.New("database is not connected")
	ErrConnected        = errors.New("database must be disconnected in order to change the connection string")
	ErrReadOnly         = errors.New("database is read-only")
	ErrNotSupported     = errors.New("stored procedures are not supported by this provider")
	ErrUnknownProvider  = errors.New("unknown provider")
	ErrTableNotFound    = errors.New("table not found")
	ErrNoPrimaryKey     = errors.New("table has no primary key")
	ErrNoWritableColumn = errors.New("table has no writable columns")
	ErrNoCommand        = errors.New("adapter has no command for this change")
	ErrConcurrency      = errors.New("concurrency violation: row was changed or deleted")
)

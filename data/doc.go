// Package data is the engine-neutral layer of the browser. A Database wraps
// one connection pool and delegates everything engine specific (driver,
// quoting, schema discovery, read-only rules) to a Provider registered by an
// engine package such as data/mysql.
//
// Engine packages register themselves on import:
//
//	import _ "github.com/shakram02/go-sql-browser/data/mysql"
//
//	db, err := data.Open("mysql", "shop", "user:pass@tcp(localhost:3306)/shop")
package data

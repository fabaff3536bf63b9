// Package all wires every built-in storage backend into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories and DDL bootstrappers with the storage package. Binaries
// that only need a subset can blank-import individual backend packages
// instead.
package all

import (
	_ "nyc311/internal/storage/mssql"
	_ "nyc311/internal/storage/mysql"
	_ "nyc311/internal/storage/postgres"
	_ "nyc311/internal/storage/sqlite"
)

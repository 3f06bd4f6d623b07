// Package all registers every warehouse backend. Import it for side effects
// from binaries that select the backend at runtime:
//
//	import _ "retailetl/internal/warehouse/all"
package all

import (
	_ "retailetl/internal/warehouse/mssql"
	_ "retailetl/internal/warehouse/postgres"
	_ "retailetl/internal/warehouse/sqlite"
)

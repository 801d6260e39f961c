package xrayradarsql

import "strings"

var knownDatabaseOperations = map[string]struct{}{
	"SELECT":   {},
	"INSERT":   {},
	"DELETE":   {},
	"UPDATE":   {},
	"COMMIT":   {},
	"ROLLBACK": {},
}

// parseDatabaseOperation returns the leading keyword of query when it is a
// known operation.
func parseDatabaseOperation(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	operation := strings.ToUpper(fields[0])
	if _, ok := knownDatabaseOperations[operation]; !ok {
		return ""
	}
	return operation
}

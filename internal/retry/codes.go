package retry

import "sort"

// Codes reported by SQL Server, the Azure SQL gateway, or the client
// transport. The same number may appear in more than one table; membership
// is what drives classification.
const (
	// Transport and login failures.
	CodeSevereError              int32 = 0
	CodeTimeout                  int32 = -2
	CodeEncryptionNotSupported   int32 = 20
	CodeNetworkNameUnavailable   int32 = 64
	CodeConnectionInitFailed     int32 = 233
	CodeTransportReceiveFailed   int32 = 10053
	CodeConnectionForciblyClosed int32 = 10054
	CodeNetworkInstanceError     int32 = 10060
	CodeHostNotFound             int32 = 11001
	CodeDatabaseUnavailable      int32 = 40613

	// Service pressure and throttling.
	CodeServiceBusy                  int32 = 40501
	CodeResourceLimitReached         int32 = 10928
	CodeResourceMinimumGuarantee     int32 = 10929
	CodeServiceError                 int32 = 40197
	CodeServiceRequestError          int32 = 40540
	CodeServiceProcessingError       int32 = 40143
	CodeElasticPoolResources         int32 = 49918
	CodeElasticPoolTooManyCreates    int32 = 49919
	CodeElasticPoolTooManyOperations int32 = 49920
	CodeDeadlockVictim               int32 = 1205
	CodeReadSecondaryLoginWait       int32 = 4221
	CodeSessionLongTransaction       int32 = 40549
	CodeSessionTooManyLocks          int32 = 40550
	CodeSessionTempDBUsage           int32 = 40551
	CodeSessionLogSpace              int32 = 40552
	CodeSessionMemoryUsage           int32 = 40553

	// Data integrity, syntax and quota failures.
	CodeIncorrectSyntax          int32 = 102
	CodeUnclosedQuotation        int32 = 105
	CodeIncorrectSyntaxKeyword   int32 = 156
	CodeCannotInsertNull         int32 = 515
	CodeConstraintConflict       int32 = 547
	CodeIOError                  int32 = 823
	CodeLogicalConsistency       int32 = 824
	CodeFilegroupFull            int32 = 1105
	CodeElasticPoolStorageLimit  int32 = 1132
	CodeUniqueIndexDuplicate     int32 = 1505
	CodeDuplicateKeyUniqueIndex  int32 = 2601
	CodeDuplicateKeyConstraint   int32 = 2627
	CodeObjectNotFound           int32 = 3701
	CodeDivideByZero             int32 = 8134
	CodeStringTruncation         int32 = 8152
	CodeStatementNotSupported    int32 = 40510
	CodeBuiltinNotSupported      int32 = 40511
	CodeDeprecatedFeature        int32 = 40512
	CodeGlobalTempNotSupported   int32 = 40516
	CodeDBCCNotSupported         int32 = 40518
	CodeDatabaseSizeQuotaReached int32 = 40544

	// Metadata reads racing concurrent DDL.
	CodeNoLockScanDataMovement int32 = 601
)

// CodeTable is a read-only set of error codes, each with a short rationale.
type CodeTable struct {
	name  string
	codes map[int32]string
}

// NewCodeTable copies codes into a new table.
func NewCodeTable(name string, codes map[int32]string) CodeTable {
	c := make(map[int32]string, len(codes))
	for code, why := range codes {
		c[code] = why
	}
	return CodeTable{name: name, codes: c}
}

// Name identifies the table in logs and test failures.
func (t CodeTable) Name() string { return t.name }

// Contains reports whether code is a member of the table.
func (t CodeTable) Contains(code int32) bool {
	_, ok := t.codes[code]
	return ok
}

// Rationale returns the documented reason a code belongs to the table.
func (t CodeTable) Rationale(code int32) (string, bool) {
	why, ok := t.codes[code]
	return why, ok
}

// Codes returns the members in ascending order.
func (t CodeTable) Codes() []int32 {
	out := make([]int32, 0, len(t.codes))
	for code := range t.codes {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of codes in the table.
func (t CodeTable) Len() int { return len(t.codes) }

// Union returns a new table holding the members of t and other.
// Rationales from t win when a code is present in both.
func (t CodeTable) Union(name string, other CodeTable) CodeTable {
	merged := NewCodeTable(name, other.codes)
	for code, why := range t.codes {
		merged.codes[code] = why
	}
	return merged
}

// With returns a copy of t with an extra code. Used to build alternative tables.
func (t CodeTable) With(code int32, rationale string) CodeTable {
	c := NewCodeTable(t.name, t.codes)
	c.codes[code] = rationale
	return c
}

var networkConnectivityCodes = map[int32]string{
	CodeSevereError:              "a severe error occurred on the current command",
	CodeTimeout:                  "timeout expired before the operation completed",
	CodeEncryptionNotSupported:   "the instance does not support encryption",
	CodeNetworkNameUnavailable:   "the specified network name is no longer available during login",
	CodeConnectionInitFailed:     "error during connection initialization before login",
	CodeTransportReceiveFailed:   "transport-level error receiving results, connection aborted",
	CodeConnectionForciblyClosed: "existing connection forcibly closed by the remote host",
	CodeNetworkInstanceError:     "network-related or instance-specific error establishing a connection",
	CodeHostNotFound:             "no such host is known",
	CodeDatabaseUnavailable:      "database is not currently available, retry the connection later",
}

var cloudTransientSeed = map[int32]string{
	CodeServiceBusy:                  "service is busy, request throttled",
	CodeResourceLimitReached:         "resource limit reached for the database",
	CodeResourceMinimumGuarantee:     "resource limit reached, minimum guarantee exceeded",
	CodeServiceError:                 "service encountered an error processing the request",
	CodeServiceRequestError:          "service encountered an error processing the request",
	CodeServiceProcessingError:       "service encountered an error processing the request",
	CodeElasticPoolResources:         "not enough resources in the elastic pool",
	CodeElasticPoolTooManyCreates:    "too many create or update operations in the elastic pool",
	CodeElasticPoolTooManyOperations: "too many operations in progress in the elastic pool",
	CodeDeadlockVictim:               "transaction was chosen as the deadlock victim",
	CodeReadSecondaryLoginWait:       "login to read-secondary failed waiting for version transition",
	CodeSessionLongTransaction:       "session terminated because of a long-running transaction",
	CodeSessionTooManyLocks:          "session terminated because it acquired too many locks",
	CodeSessionTempDBUsage:           "session terminated because of excessive tempdb usage",
	CodeSessionLogSpace:              "session terminated because of excessive transaction log usage",
	CodeSessionMemoryUsage:           "session terminated because of excessive memory usage",
}

var nonRetryableDataTransferCodes = map[int32]string{
	CodeIncorrectSyntax:          "incorrect syntax",
	CodeUnclosedQuotation:        "unclosed quotation mark",
	CodeIncorrectSyntaxKeyword:   "incorrect syntax near keyword",
	CodeCannotInsertNull:         "cannot insert NULL into a non-nullable column",
	CodeConstraintConflict:       "statement conflicted with a constraint",
	CodeIOError:                  "operating system I/O error, possible corruption",
	CodeLogicalConsistency:       "logical consistency I/O error, page corruption",
	CodeFilegroupFull:            "filegroup is full",
	CodeElasticPoolStorageLimit:  "elastic pool storage limit reached",
	CodeUniqueIndexDuplicate:     "CREATE UNIQUE INDEX found a duplicate key",
	CodeDuplicateKeyUniqueIndex:  "duplicate key row in a unique index",
	CodeDuplicateKeyConstraint:   "violation of PRIMARY KEY or UNIQUE constraint",
	CodeObjectNotFound:           "object or index does not exist",
	CodeDivideByZero:             "divide by zero",
	CodeStringTruncation:         "string or binary data would be truncated",
	CodeStatementNotSupported:    "statement not supported in this version of the server",
	CodeBuiltinNotSupported:      "built-in function not supported in this version of the server",
	CodeDeprecatedFeature:        "deprecated feature not supported in this version of the server",
	CodeGlobalTempNotSupported:   "global temporary objects are not supported",
	CodeDBCCNotSupported:         "DBCC command not supported in this version of the server",
	CodeDatabaseSizeQuotaReached: "database has reached its size quota",
}

// Default tables, built once at package initialisation and never mutated.
var (
	NetworkConnectivityTable      = NewCodeTable("network-connectivity", networkConnectivityCodes)
	CloudTransientTable           = NewCodeTable("cloud-transient", cloudTransientSeed).Union("cloud-transient", NetworkConnectivityTable)
	NonRetryableDataTransferTable = NewCodeTable("non-retryable-data-transfer", nonRetryableDataTransferCodes)
)

// Tables groups the three classification tables consulted by a Classifier.
type Tables struct {
	NetworkConnectivity      CodeTable
	CloudTransient           CodeTable
	NonRetryableDataTransfer CodeTable
}

// DefaultTables returns the built-in classification tables.
func DefaultTables() Tables {
	return Tables{
		NetworkConnectivity:      NetworkConnectivityTable,
		CloudTransient:           CloudTransientTable,
		NonRetryableDataTransfer: NonRetryableDataTransferTable,
	}
}

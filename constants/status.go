package constants

// BatchStatus is the canonical status for rows in import_batches.
type BatchStatus string

// Stable values (store these exact strings in DB).
const (
	BatchStatusRunning   BatchStatus = "RUNNING"   // import in progress
	BatchStatusCommitted BatchStatus = "COMMITTED" // rows committed (possibly zero after dedup)
	BatchStatusRejected  BatchStatus = "REJECTED"  // input rejected before any row was processed
	BatchStatusFailed    BatchStatus = "FAILED"    // terminal failure mid-import
)

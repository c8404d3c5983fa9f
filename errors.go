// errors.go provides the error taxonomy: one sentinel error per kind for
// errors.Is(), paired with a richer struct type carrying diagnostic context
// for errors.As(), in the same shape used by a ClockError/ConfigError/
// OverflowError trio.
package snowfall

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per failure kind callers may want to match on.
var (
	// ErrEpochInFuture is returned when a configured epoch start is later
	// than the current time, at Syncer or Generator construction.
	ErrEpochInFuture = errors.New("epoch start is in the future")

	// ErrEpochOverflow is returned by NextID when ms_since_epoch exceeds
	// 2^41 - 1.
	ErrEpochOverflow = errors.New("epoch overflow: ms since epoch exceeds 41 bits")

	// ErrLeaseLost is returned by NextID, and surfaced by the Syncer, when
	// the generator ID lease has been reclaimed by another instance.
	ErrLeaseLost = errors.New("generator ID lease lost")

	// ErrNoFreeGeneratorID is returned when try_claim finds no row whose
	// lease has expired.
	ErrNoFreeGeneratorID = errors.New("no free generator ID available")

	// ErrPersistentClaimContention is returned when try_claim exhausts its
	// retries due to repeated write conflicts, as opposed to finding no
	// free row at all.
	ErrPersistentClaimContention = errors.New("persistent contention claiming a generator ID")

	// ErrSchemaGroupExists is returned by CreateSchemaGroup when either
	// table already exists.
	ErrSchemaGroupExists = errors.New("schema group already exists")

	// ErrSchemaGroupMissing is returned at Syncer construction when the
	// named schema group has not been created.
	ErrSchemaGroupMissing = errors.New("schema group does not exist")

	// ErrStoreTransient marks a store error the caller's retry policy
	// should retry rather than surface immediately.
	ErrStoreTransient = errors.New("transient store error")

	// ErrValidation is returned when constructor arguments fail validation.
	ErrValidation = errors.New("validation error")
)

// EpochInFutureError reports an epoch_start_ms configured later than now.
type EpochInFutureError struct {
	EpochStartMS int64
	NowMS        int64
}

func (e *EpochInFutureError) Error() string {
	return fmt.Sprintf("epoch_start_ms=%d is %dms in the future of now=%d",
		e.EpochStartMS, e.EpochStartMS-e.NowMS, e.NowMS)
}

func (e *EpochInFutureError) Unwrap() error { return ErrEpochInFuture }

// EpochOverflowError reports a ms_since_epoch value exceeding the 41-bit
// field, including the case of a negative value (clock before epoch start).
type EpochOverflowError struct {
	MsSinceEpoch int64
	GeneratorID  int64
}

func (e *EpochOverflowError) Error() string {
	return fmt.Sprintf("ms_since_epoch=%d exceeds %d bits available (generator=%d)",
		e.MsSinceEpoch, BitsForMsSinceEpoch, e.GeneratorID)
}

func (e *EpochOverflowError) Unwrap() error { return ErrEpochOverflow }

// LeaseLostError reports that a Syncer's generator ID lease is no longer
// held by this instance.
type LeaseLostError struct {
	GeneratorID  int64
	LastAliveMS  int64
	NowMS        int64
	ReleaseAfter int64
}

func (e *LeaseLostError) Error() string {
	return fmt.Sprintf("generator id %d lease lost: last_alive_ms=%d now=%d release_after=%dms",
		e.GeneratorID, e.LastAliveMS, e.NowMS, e.ReleaseAfter)
}

func (e *LeaseLostError) Unwrap() error { return ErrLeaseLost }

// NoFreeGeneratorIDError reports claim exhaustion with no stale row found.
type NoFreeGeneratorIDError struct {
	SchemaGroup string
	Retries     int
}

func (e *NoFreeGeneratorIDError) Error() string {
	return fmt.Sprintf("no free generator id in schema group %q after %d attempts", e.SchemaGroup, e.Retries)
}

func (e *NoFreeGeneratorIDError) Unwrap() error { return ErrNoFreeGeneratorID }

// PersistentClaimContentionError reports claim exhaustion due to repeated
// write conflicts rather than an absence of free rows.
type PersistentClaimContentionError struct {
	SchemaGroup string
	Retries     int
	LastErr     error
}

func (e *PersistentClaimContentionError) Error() string {
	return fmt.Sprintf("persistent contention claiming a generator id in schema group %q after %d attempts: %v",
		e.SchemaGroup, e.Retries, e.LastErr)
}

func (e *PersistentClaimContentionError) Unwrap() error { return ErrPersistentClaimContention }

// SchemaGroupExistsError reports that create_schema_group found an
// existing manifest or properties table.
type SchemaGroupExistsError struct {
	SchemaGroup string
	Table       string
}

func (e *SchemaGroupExistsError) Error() string {
	return fmt.Sprintf("schema group %q already exists (table %q present)", e.SchemaGroup, e.Table)
}

func (e *SchemaGroupExistsError) Unwrap() error { return ErrSchemaGroupExists }

// SchemaGroupMissingError reports that a Syncer was constructed against a
// schema group that create_schema_group has not been run for.
type SchemaGroupMissingError struct {
	SchemaGroup string
}

func (e *SchemaGroupMissingError) Error() string {
	return fmt.Sprintf("schema group %q does not exist; call CreateSchemaGroup first", e.SchemaGroup)
}

func (e *SchemaGroupMissingError) Unwrap() error { return ErrSchemaGroupMissing }

// StoreTransientError wraps an underlying store error that a retry policy
// should retry.
type StoreTransientError struct {
	Op  string
	Err error
}

func (e *StoreTransientError) Error() string {
	return fmt.Sprintf("transient store error during %s: %v", e.Op, e.Err)
}

func (e *StoreTransientError) Unwrap() error { return ErrStoreTransient }

// ValidationError reports a field that failed construction-time validation,
// in the same shape as the other validation-failure error types here.
type ValidationError struct {
	Field      string
	Value      string
	Reason     string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s=%s (%s): %s", e.Field, e.Value, e.Reason, e.Constraint)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func newValidationError(field, value, reason, constraint string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason, Constraint: constraint}
}

// IsLeaseLost reports whether err is or wraps a LeaseLostError.
func IsLeaseLost(err error) bool {
	var e *LeaseLostError
	return errors.As(err, &e)
}

// IsEpochOverflow reports whether err is or wraps an EpochOverflowError.
func IsEpochOverflow(err error) bool {
	var e *EpochOverflowError
	return errors.As(err, &e)
}

// IsEpochInFuture reports whether err is or wraps an EpochInFutureError.
func IsEpochInFuture(err error) bool {
	var e *EpochInFutureError
	return errors.As(err, &e)
}

// IsSchemaGroupExists reports whether err is or wraps a SchemaGroupExistsError.
func IsSchemaGroupExists(err error) bool {
	var e *SchemaGroupExistsError
	return errors.As(err, &e)
}

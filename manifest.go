package snowfall

import "fmt"

// BitsForGeneratorID is the width of the generator ID field.
const BitsForGeneratorID = 12

// MaxGeneratorID is the largest valid generator ID: 2^12 - 1 = 4095.
const MaxGeneratorID = (1 << BitsForGeneratorID) - 1

// Enumerated property keys understood by ManifestStore implementations.
const (
	PropLivelinessProbeS         = "liveliness_probe_s"
	PropEpochStartMS             = "epoch_start_ms"
	PropMaxClaimRetries          = "max_claim_retries"
	PropMinMsBetweenClaimRetries = "min_ms_between_claim_retries"
	PropMaxMsBetweenClaimRetries = "max_ms_between_claim_retries"
)

// Properties holds the per-schema-group settings. MaxClaimRetries,
// MinMsBetweenClaimRetries and MaxMsBetweenClaimRetries are meaningful only
// for the relational store variant; the in-memory variant ignores them.
type Properties struct {
	LivelinessProbeS         int64
	EpochStartMS             int64
	MaxClaimRetries          int64
	MinMsBetweenClaimRetries int64
	MaxMsBetweenClaimRetries int64
}

// ManifestTableName returns the deterministic manifest table name for a
// schema group: "snowfall_<name>_manifest".
func ManifestTableName(schemaGroup string) string {
	return fmt.Sprintf("snowfall_%s_manifest", schemaGroup)
}

// PropertiesTableName returns the deterministic properties table name for a
// schema group: "snowfall_<name>_properties".
func PropertiesTableName(schemaGroup string) string {
	return fmt.Sprintf("snowfall_%s_properties", schemaGroup)
}

// ManifestStore is the abstract generator-ID leasing interface, implemented
// by the in-memory (memstore) and relational (sqlstore) variants. Consumed
// exclusively by Syncer; Generator never talks to a ManifestStore directly.
type ManifestStore interface {
	// ReadProperties returns the Properties row set for schemaGroup. It is
	// read-only and total: it never mutates the store.
	ReadProperties(schemaGroup string) (Properties, error)

	// TryClaim atomically finds one row whose last_updated_ms is older than
	// releaseThresholdMS, sets its last_updated_ms to nowMS, and returns its
	// generator_id. Two concurrent successful claims in the same schema
	// group must return distinct IDs (linearizability).
	//
	// Returns ErrNoFreeGeneratorID (wrapped in *NoFreeGeneratorIDError) if no
	// row qualifies, or ErrPersistentClaimContention if retries (relational
	// variant only) are exhausted due to write conflicts.
	TryClaim(schemaGroup string, nowMS, releaseThresholdMS int64) (int64, error)

	// Renew conditionally sets last_updated_ms = newMS for generatorID, but
	// only if the current value equals prevLastAliveMS. Returns true iff the
	// row was updated; false means the lease has been reclaimed by another
	// instance.
	Renew(schemaGroup string, generatorID, prevLastAliveMS, newMS int64) (bool, error)

	// CreateSchemaGroup creates both the manifest and properties tables for
	// schemaGroup, seeding MaxGeneratorID+1 manifest rows with
	// last_updated_ms=0 and inserting props. Fails with
	// *SchemaGroupExistsError if either table already exists.
	CreateSchemaGroup(schemaGroup string, props Properties) error
}

package snowfall

// Defaults applied by Bootstrap when the caller leaves a field at zero.
const (
	DefaultLivelinessProbeS         = 5
	DefaultMaxClaimRetries          = 5
	DefaultMinMsBetweenClaimRetries = 10
	DefaultMaxMsBetweenClaimRetries = 200
)

// BootstrapConfig describes a schema group to create. Clock defaults to
// SystemClock if left nil; tests supply a FixedClock to make the
// epoch-in-future check deterministic.
type BootstrapConfig struct {
	SchemaGroup string
	Properties  Properties
	Clock       Clock
}

// Bootstrap creates a schema group against store, filling in defaults for
// the liveliness-probe and claim-retry Properties fields left at their zero
// value; EpochStartMS is stored as given. It is the administrative,
// one-time counterpart to NewSyncer: run once before any Syncer for this
// schema group is constructed. EpochStartMS must not be after the current
// time: until an epoch in the future arrives, ms_since_epoch would be
// negative, which NextID rejects with an EpochOverflowError.
func Bootstrap(store ManifestStore, cfg BootstrapConfig) error {
	if store == nil {
		return newValidationError("Store", "<nil>", "must not be nil", "a ManifestStore is required")
	}
	if cfg.SchemaGroup == "" {
		return newValidationError("SchemaGroup", "", "must not be empty", "a schema group name is required")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = NewSystemClock()
	}

	props := cfg.Properties
	if props.LivelinessProbeS == 0 {
		props.LivelinessProbeS = DefaultLivelinessProbeS
	}
	if props.MaxClaimRetries == 0 {
		props.MaxClaimRetries = DefaultMaxClaimRetries
	}
	if props.MinMsBetweenClaimRetries == 0 {
		props.MinMsBetweenClaimRetries = DefaultMinMsBetweenClaimRetries
	}
	if props.MaxMsBetweenClaimRetries == 0 {
		props.MaxMsBetweenClaimRetries = DefaultMaxMsBetweenClaimRetries
	}

	now := clock.NowMS()
	if props.EpochStartMS > now {
		return &EpochInFutureError{EpochStartMS: props.EpochStartMS, NowMS: now}
	}

	return store.CreateSchemaGroup(cfg.SchemaGroup, props)
}

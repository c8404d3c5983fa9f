// syncer.go implements the Syncer: it claims one generator ID lease from a
// ManifestStore and keeps it alive with a periodic background renewal,
// following the same "dedicated goroutine on a ticker" shape a Redis lease
// coordinator uses for renewal, generalized from TTL keys to the abstract
// ManifestStore.
package snowfall

import (
	"errors"
	"log"
	"math/rand"
	"sync/atomic"
	"time"
)

// ProbeMissesToRelease is the number of consecutive missed liveliness
// probes after which a lease is considered reclaimable.
const ProbeMissesToRelease = 2

// syncerState models the Syncer's lifecycle: live, expired, or closed.
type syncerState int32

const (
	stateLive syncerState = iota
	stateExpired
	stateClosed
)

// SyncerConfig configures a Syncer. Store and SchemaGroup are required;
// Clock defaults to SystemClock and Logger to log.Default() if left zero.
type SyncerConfig struct {
	Store       ManifestStore
	SchemaGroup string
	Clock       Clock
	Logger      *log.Logger

	// MaxClaimRetries, MinMsBetweenClaimRetries and MaxMsBetweenClaimRetries
	// override the schema group's stored retry properties when non-zero.
	// Left zero, the properties read from the store are used.
	MaxClaimRetries          int64
	MinMsBetweenClaimRetries int64
	MaxMsBetweenClaimRetries int64
}

// Syncer owns exactly one leased generator ID and keeps it current via a
// background renewal goroutine.
type Syncer struct {
	store       ManifestStore
	schemaGroup string
	clock       Clock
	logger      *log.Logger

	generatorID           int64
	epochStartMS          int64
	livelinessProbeS      int64
	msToReleaseGeneratorID int64

	lastAliveMS atomic.Int64
	state       atomic.Int32

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSyncer resolves cfg.SchemaGroup, claims a generator ID and starts the
// background renewal loop: read properties, claim, start ticker, in that
// order.
func NewSyncer(cfg SyncerConfig) (*Syncer, error) {
	if cfg.Store == nil {
		return nil, newValidationError("Store", "<nil>", "must not be nil", "a ManifestStore is required")
	}
	if cfg.SchemaGroup == "" {
		return nil, newValidationError("SchemaGroup", "", "must not be empty", "a schema group name is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = NewSystemClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	props, err := cfg.Store.ReadProperties(cfg.SchemaGroup)
	if err != nil {
		return nil, err
	}

	now := clock.NowMS()
	if props.EpochStartMS > now {
		return nil, &EpochInFutureError{EpochStartMS: props.EpochStartMS, NowMS: now}
	}

	msToRelease := props.LivelinessProbeS * 1000 * ProbeMissesToRelease

	s := &Syncer{
		store:                  cfg.Store,
		schemaGroup:            cfg.SchemaGroup,
		clock:                  clock,
		logger:                 logger,
		epochStartMS:           props.EpochStartMS,
		livelinessProbeS:       props.LivelinessProbeS,
		msToReleaseGeneratorID: msToRelease,
		stopCh:                 make(chan struct{}),
		doneCh:                 make(chan struct{}),
	}

	maxRetries := cfg.MaxClaimRetries
	if maxRetries == 0 {
		maxRetries = props.MaxClaimRetries
	}
	minBackoff := cfg.MinMsBetweenClaimRetries
	if minBackoff == 0 {
		minBackoff = props.MinMsBetweenClaimRetries
	}
	maxBackoff := cfg.MaxMsBetweenClaimRetries
	if maxBackoff == 0 {
		maxBackoff = props.MaxMsBetweenClaimRetries
	}

	generatorID, claimedAt, err := s.claim(maxRetries, minBackoff, maxBackoff)
	if err != nil {
		return nil, err
	}
	s.generatorID = generatorID
	s.lastAliveMS.Store(claimedAt)

	go s.renewLoop()

	return s, nil
}

// claim attempts TryClaim, retrying on transient store errors up to
// maxRetries times with uniform random backoff. The in-memory store never
// returns transient errors so maxRetries is typically 0 there.
func (s *Syncer) claim(maxRetries, minBackoffMS, maxBackoffMS int64) (generatorID, claimedAt int64, err error) {
	var lastErr error
	attempts := int64(0)
	for {
		now := s.clock.NowMS()
		releaseThreshold := now - s.msToReleaseGeneratorID
		id, tryErr := s.store.TryClaim(s.schemaGroup, now, releaseThreshold)
		if tryErr == nil {
			return id, now, nil
		}
		lastErr = tryErr
		attempts++

		var transient *StoreTransientError
		if !errors.As(tryErr, &transient) || attempts > maxRetries {
			break
		}
		time.Sleep(randomBackoff(minBackoffMS, maxBackoffMS))
	}

	var noFree *NoFreeGeneratorIDError
	if errors.As(lastErr, &noFree) {
		return 0, 0, &NoFreeGeneratorIDError{SchemaGroup: s.schemaGroup, Retries: int(attempts)}
	}
	return 0, 0, &PersistentClaimContentionError{SchemaGroup: s.schemaGroup, Retries: int(attempts), LastErr: lastErr}
}

func randomBackoff(minMS, maxMS int64) time.Duration {
	if maxMS <= minMS {
		return time.Duration(minMS) * time.Millisecond
	}
	span := maxMS - minMS
	return time.Duration(minMS+rand.Int63n(span)) * time.Millisecond
}

// renewLoop is the background liveliness probe: it fires every
// LivelinessProbeS seconds and renews the lease conditioned on the last
// value this Syncer itself wrote.
func (s *Syncer) renewLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(time.Duration(s.livelinessProbeS) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.renewOnce() {
				return
			}
		}
	}
}

// renewOnce performs a single renewal tick. It returns false when the loop
// should stop (either the lease was confirmed stolen, or the Syncer has
// been asked to shut down).
func (s *Syncer) renewOnce() bool {
	prev := s.lastAliveMS.Load()
	now := s.clock.NowMS()

	ok, err := s.store.Renew(s.schemaGroup, s.generatorID, prev, now)
	if err != nil {
		var transient *StoreTransientError
		if errors.As(err, &transient) {
			s.logger.Printf("snowfall: transient error renewing generator %d in %q, retrying next tick: %v",
				s.generatorID, s.schemaGroup, err)
			return true
		}
		s.logger.Printf("snowfall: unexpected error renewing generator %d in %q, marking expired: %v",
			s.generatorID, s.schemaGroup, err)
		s.state.Store(int32(stateExpired))
		return false
	}

	if !ok {
		s.logger.Printf("snowfall: lease for generator %d in %q was reclaimed, marking expired",
			s.generatorID, s.schemaGroup)
		s.state.Store(int32(stateExpired))
		return false
	}

	s.lastAliveMS.Store(now)
	return true
}

// IsAlive reports whether the lease is still current as of nowMS: the last
// successful renewal is within msToReleaseGeneratorID, and the Syncer has
// not been marked expired.
func (s *Syncer) IsAlive(nowMS int64) bool {
	if syncerState(s.state.Load()) != stateLive {
		return false
	}
	return nowMS-s.lastAliveMS.Load() <= s.msToReleaseGeneratorID
}

// GeneratorID returns the leased generator ID, fixed for the Syncer's
// lifetime.
func (s *Syncer) GeneratorID() int64 { return s.generatorID }

// EpochStartMS returns the schema group's configured epoch origin.
func (s *Syncer) EpochStartMS() int64 { return s.epochStartMS }

// MsToReleaseGeneratorID returns the computed release threshold.
func (s *Syncer) MsToReleaseGeneratorID() int64 { return s.msToReleaseGeneratorID }

// Shutdown stops the background renewal loop. The manifest row is left
// with its last-written timestamp and becomes reclaimable naturally after
// MsToReleaseGeneratorID() ms; Shutdown does not attempt to release it
// early.
func (s *Syncer) Shutdown() {
	if syncerState(s.state.Load()) == stateClosed {
		return
	}
	s.state.Store(int32(stateClosed))
	close(s.stopCh)
	<-s.doneCh
}

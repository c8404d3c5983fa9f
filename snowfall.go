// Package snowfall generates 64-bit monotonic, collision-free unique
// identifiers ("GUIDs") across many independently running Generator
// instances without a central coordinator on the hot path.
//
// # Overview
//
// Each GUID packs a millisecond timestamp, an intra-millisecond sequence
// counter, and a generator ID that is leased — not permanently assigned —
// from a shared pool coordinated through a ManifestStore.
//
// # GUID layout (64 bits)
//
//	bit 63:             0 (unused, sign bit kept clear)
//	bits 62..22 (41b):  ms_since_epoch
//	bits 21..12 (11b):  looping_counter (0..2047)
//	bits 11..0  (12b):  generator_id    (0..4095)
//
// # Usage
//
//	store := memstore.New()
//	store.CreateSchemaGroup("orders", snowfall.Properties{LivelinessProbeS: 5, EpochStartMS: epochMS})
//	syncer, err := snowfall.NewSyncer(snowfall.SyncerConfig{Store: store, SchemaGroup: "orders"})
//	gen, err := snowfall.New(syncer)
//	id, err := gen.NextID()
package snowfall

import (
	"context"
	"sync"
	"time"
)

// Bit widths and offsets of the GUID layout. These are fixed: runtime
// bit-width reconfiguration is out of scope, so unlike a fully configurable
// bit-layout system, Snowfall has exactly one layout.
const (
	BitsForMsSinceEpoch = 41
	BitsForLoopingCount = 11

	OffsetForLoopingCount = BitsForGeneratorID                        // 12
	OffsetForMsSinceEpoch = OffsetForLoopingCount + BitsForLoopingCount // 23

	MaxMsSinceEpoch  = (1 << BitsForMsSinceEpoch) - 1
	MaxLoopingCount  = (1 << BitsForLoopingCount) - 1
)

// syncerLike is the subset of *Syncer that Generator depends on (Design
// Note: "dynamic dispatch over Syncer variants" → a single narrow
// interface, satisfied here by *Syncer; tests substitute a fake).
type syncerLike interface {
	IsAlive(nowMS int64) bool
	GeneratorID() int64
	EpochStartMS() int64
}

// Generator composes a Syncer and a Clock to produce GUIDs. It has no
// independent persistent state: all leasing state lives in the Syncer.
type Generator struct {
	mu sync.Mutex

	syncer syncerLike
	clock  Clock

	generatorID  int64
	epochStartMS int64

	loopingCounter      int64
	guidLastGeneratedAt int64
}

// New creates a Generator from a live Syncer, using the system clock.
// Construction validates that the Syncer's epoch start is not in the
// future (it cannot be, since the Syncer already validated this at its own
// construction, but Generator re-validates to keep the two constructible
// independently in tests).
func New(syncer *Syncer) (*Generator, error) {
	return NewWithClock(syncer, NewSystemClock())
}

// NewWithClock creates a Generator with an explicit Clock, primarily for
// deterministic tests (FixedClock).
func NewWithClock(syncer syncerLike, clock Clock) (*Generator, error) {
	if syncer == nil {
		return nil, newValidationError("syncer", "<nil>", "must not be nil", "a live Syncer is required")
	}
	if clock == nil {
		clock = NewSystemClock()
	}

	epochStartMS := syncer.EpochStartMS()
	now := clock.NowMS()
	if epochStartMS > now {
		return nil, &EpochInFutureError{EpochStartMS: epochStartMS, NowMS: now}
	}

	return &Generator{
		syncer:              syncer,
		clock:               clock,
		generatorID:         syncer.GeneratorID(),
		epochStartMS:        epochStartMS,
		loopingCounter:      0,
		guidLastGeneratedAt: -1,
	}, nil
}

// NextID produces the next GUID. It is safe for concurrent callers: the
// mutex serializes them so that concurrently observed
// (ms_since_epoch, looping_counter) pairs are strictly increasing.
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nextLocked()
}

// NextIDBatch produces count GUIDs under a single mutex acquisition,
// amortizing the lock overhead across the whole batch instead of paying it
// once per ID. If generation fails partway through (lease lost, epoch
// overflow, context canceled), the IDs produced so far are returned
// alongside the error so callers can still use a partial batch.
func (g *Generator) NextIDBatch(ctx context.Context, count int) ([]int64, error) {
	if count <= 0 {
		return []int64{}, nil
	}

	ids := make([]int64, 0, count)

	g.mu.Lock()
	defer g.mu.Unlock()

	for i := 0; i < count; i++ {
		if i%100 == 0 {
			select {
			case <-ctx.Done():
				return ids, ctx.Err()
			default:
			}
		}

		id, err := g.nextLocked()
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// nextLocked produces the next GUID; callers must hold g.mu.
func (g *Generator) nextLocked() (int64, error) {
	for {
		t := g.clock.NowMS()

		if !g.syncer.IsAlive(t) {
			return 0, &LeaseLostError{GeneratorID: g.generatorID, NowMS: t}
		}

		msSinceEpoch := t - g.epochStartMS
		if msSinceEpoch > MaxMsSinceEpoch || msSinceEpoch < 0 {
			return 0, &EpochOverflowError{MsSinceEpoch: msSinceEpoch, GeneratorID: g.generatorID}
		}

		if msSinceEpoch != g.guidLastGeneratedAt {
			g.loopingCounter = 0
		} else if g.loopingCounter >= MaxLoopingCount {
			// Sequence exhausted within this millisecond: throttle until the
			// millisecond rolls over, then restart from the top so the fresh
			// iteration sees a new ms_since_epoch and resets the counter.
			// The sleep is a coarse yield bounded to a single ms, never a
			// blocking wait on store I/O.
			waitS := float64(msSinceEpoch+1)/1000 - float64(time.Now().UnixNano())/1e9
			if waitS > 0 {
				time.Sleep(time.Duration(waitS * float64(time.Second)))
			}
			continue
		} else {
			g.loopingCounter++
		}

		guid := (msSinceEpoch << OffsetForMsSinceEpoch) |
			(g.loopingCounter << OffsetForLoopingCount) |
			g.generatorID

		g.guidLastGeneratedAt = msSinceEpoch
		return guid, nil
	}
}

// GeneratorID returns the generator ID leased by this Generator's Syncer.
func (g *Generator) GeneratorID() int64 { return g.generatorID }

// EpochStartMS returns the epoch origin this Generator encodes IDs
// relative to.
func (g *Generator) EpochStartMS() int64 { return g.epochStartMS }

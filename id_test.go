package snowfall

import (
	"encoding/json"
	"testing"
	"time"
)

// newTestGenerator builds a Generator over a fakeSyncer so ID tests
// exercise real, structurally valid GUIDs rather than hand-built ints.
func newTestGenerator(t *testing.T, generatorID int64) (*Generator, *FixedClock) {
	t.Helper()
	store := newFakeStore(generatorID)
	clock := NewFixedClock(1_700_000_000_000)
	syncer := &fakeSyncer{store: store, generatorID: generatorID, epochStartMS: 1_600_000_000_000, clock: clock}
	gen, err := NewWithClock(syncer, clock)
	if err != nil {
		t.Fatalf("NewWithClock() error = %v", err)
	}
	return gen, clock
}

// fakeSyncer implements syncerLike directly, bypassing the real Syncer so
// ID-level tests don't depend on ManifestStore wiring.
type fakeSyncer struct {
	store        *fakeStore
	generatorID  int64
	epochStartMS int64
	clock        *FixedClock
	dead         bool
}

func (f *fakeSyncer) IsAlive(nowMS int64) bool    { return !f.dead }
func (f *fakeSyncer) GeneratorID() int64          { return f.generatorID }
func (f *fakeSyncer) EpochStartMS() int64         { return f.epochStartMS }

type fakeStore struct{ generatorID int64 }

func newFakeStore(generatorID int64) *fakeStore { return &fakeStore{generatorID: generatorID} }

func TestIDEncodings(t *testing.T) {
	gen, _ := newTestGenerator(t, 42)

	idRaw, err := gen.NextID()
	if err != nil {
		t.Fatalf("NextID() error = %v", err)
	}
	id := ID(idRaw)

	tests := []struct {
		name   string
		encode func(ID) string
		decode func(string) (ID, error)
	}{
		{"String", ID.String, ParseString},
		{"Base2", ID.Base2, ParseBase2},
		{"Base32", ID.Base32, ParseBase32},
		{"Base36", ID.Base36, ParseBase36},
		{"Base58", ID.Base58, ParseBase58},
		{"Base62", ID.Base62, ParseBase62},
		{"Hex", ID.Hex, ParseHex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := tt.encode(id)
			decoded, err := tt.decode(encoded)
			if err != nil {
				t.Fatalf("%s decode error = %v", tt.name, err)
			}
			if decoded != id {
				t.Errorf("%s: decoded = %d, want %d (encoded: %s)",
					tt.name, decoded, id, encoded)
			}
		})
	}
}

func TestIDBase64(t *testing.T) {
	gen, _ := newTestGenerator(t, 1)
	idRaw, _ := gen.NextID()
	id := ID(idRaw)

	b64 := id.Base64()
	decoded, err := ParseBase64(b64)
	if err != nil {
		t.Fatalf("ParseBase64() error = %v", err)
	}
	if decoded != id {
		t.Errorf("Base64: decoded = %d, want %d", decoded, id)
	}

	b64url := id.Base64URL()
	decoded, err = ParseBase64URL(b64url)
	if err != nil {
		t.Fatalf("ParseBase64URL() error = %v", err)
	}
	if decoded != id {
		t.Errorf("Base64URL: decoded = %d, want %d", decoded, id)
	}
}

func TestIDJSON(t *testing.T) {
	gen, _ := newTestGenerator(t, 1)
	idRaw, _ := gen.NextID()
	id := ID(idRaw)

	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	var decoded ID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if decoded != id {
		t.Errorf("JSON: decoded = %d, want %d", decoded, id)
	}

	type TestStruct struct {
		ID   ID     `json:"id"`
		Name string `json:"name"`
	}

	original := TestStruct{ID: id, Name: "test"}
	data, err = json.Marshal(original)
	if err != nil {
		t.Fatalf("struct marshal error = %v", err)
	}

	var result TestStruct
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("struct unmarshal error = %v", err)
	}
	if result.ID != original.ID {
		t.Errorf("struct ID: got = %d, want %d", result.ID, original.ID)
	}
}

func TestIDBinary(t *testing.T) {
	gen, _ := newTestGenerator(t, 1)
	idRaw, _ := gen.NextID()
	id := ID(idRaw)

	bytes := id.IntBytes()
	decoded := ParseIntBytes(bytes)
	if decoded != id {
		t.Errorf("IntBytes: decoded = %d, want %d", decoded, id)
	}

	binData, err := id.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}

	var decoded2 ID
	if err := decoded2.UnmarshalBinary(binData); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if decoded2 != id {
		t.Errorf("Binary: decoded = %d, want %d", decoded2, id)
	}
}

func TestIDComponents(t *testing.T) {
	gen, clock := newTestGenerator(t, 42)
	idRaw, _ := gen.NextID()
	id := ID(idRaw)

	epochStartMS := gen.EpochStartMS()

	idTime := id.Time(epochStartMS)
	if idTime.After(time.UnixMilli(clock.NowMS())) {
		t.Errorf("ID.Time() is in the future: %v", idTime)
	}
	if idTime.Before(time.UnixMilli(epochStartMS)) {
		t.Errorf("ID.Time() is before epoch: %v", idTime)
	}

	ts := id.Timestamp(epochStartMS)
	if ts < epochStartMS {
		t.Errorf("ID.Timestamp() = %d, should be >= epoch %d", ts, epochStartMS)
	}

	generatorID := id.GeneratorID()
	if generatorID != 42 {
		t.Errorf("ID.GeneratorID() = %d, want 42", generatorID)
	}

	counter := id.LoopingCounter()
	if counter < 0 || counter > MaxLoopingCount {
		t.Errorf("ID.LoopingCounter() = %d, out of range [0, %d]", counter, MaxLoopingCount)
	}

	msSinceEpoch, loopingCounter, genID := id.Components()
	if genID != 42 {
		t.Errorf("Components() generatorID = %d, want 42", genID)
	}
	if msSinceEpoch+epochStartMS != ts {
		t.Errorf("Components() msSinceEpoch = %d, want %d", msSinceEpoch, ts-epochStartMS)
	}
	if loopingCounter != counter {
		t.Errorf("Components() loopingCounter = %d, want %d", loopingCounter, counter)
	}
}

func TestIDValidation(t *testing.T) {
	gen, _ := newTestGenerator(t, 1)
	idRaw, _ := gen.NextID()
	id := ID(idRaw)

	if !id.IsValid() {
		t.Error("Valid ID reported as invalid")
	}

	invalidIDs := []ID{
		-1, // negative
	}
	for _, invalid := range invalidIDs {
		if invalid.IsValid() {
			t.Errorf("Invalid ID %d reported as valid", invalid)
		}
	}
}

func TestIDComparison(t *testing.T) {
	gen, clock := newTestGenerator(t, 1)
	id1Raw, _ := gen.NextID()
	clock.Advance(1)
	id2Raw, _ := gen.NextID()
	id1, id2 := ID(id1Raw), ID(id2Raw)

	if !id1.Before(id2) {
		t.Error("id1 should be before id2")
	}
	if !id2.After(id1) {
		t.Error("id2 should be after id1")
	}
	if !id1.Equal(id1) {
		t.Error("id1 should equal itself")
	}
	if id1.Compare(id2) >= 0 {
		t.Error("id1.Compare(id2) should be negative")
	}
	if id2.Compare(id1) <= 0 {
		t.Error("id2.Compare(id1) should be positive")
	}
	if id1.Compare(id1) != 0 {
		t.Error("id1.Compare(id1) should be zero")
	}
}

func TestIDAge(t *testing.T) {
	gen, _ := newTestGenerator(t, 1)
	idRaw, _ := gen.NextID()
	id := ID(idRaw)

	age := id.Age(gen.EpochStartMS())
	if age < 0 {
		t.Errorf("ID.Age() = %v, should be >= 0", age)
	}
}

func TestIDSharding(t *testing.T) {
	gen, _ := newTestGenerator(t, 42)
	idRaw, _ := gen.NextID()
	id := ID(idRaw)

	numShards := int64(10)
	shard := id.Shard(numShards)
	if shard < 0 || shard >= numShards {
		t.Errorf("ID.Shard(%d) = %d, out of range", numShards, shard)
	}

	shardByGenerator := id.ShardByGenerator(numShards)
	expectedShard := int64(42) % numShards
	if shardByGenerator != expectedShard {
		t.Errorf("ID.ShardByGenerator(%d) = %d, want %d", numShards, shardByGenerator, expectedShard)
	}

	bucketSize := 1 * time.Hour
	shardByTime := id.ShardByTime(gen.EpochStartMS(), bucketSize)
	if shardByTime < 0 {
		t.Errorf("ID.ShardByTime() = %d, should be >= 0", shardByTime)
	}
}

func TestIDFormat(t *testing.T) {
	gen, _ := newTestGenerator(t, 1)
	idRaw, _ := gen.NextID()
	id := ID(idRaw)

	tests := []struct {
		format   string
		expected string
	}{
		{"hex", id.Hex()},
		{"x", id.Hex()},
		{"binary", id.Base2()},
		{"bin", id.Base2()},
		{"b", id.Base2()},
		{"base32", id.Base32()},
		{"b32", id.Base32()},
		{"32", id.Base32()},
		{"base58", id.Base58()},
		{"b58", id.Base58()},
		{"58", id.Base58()},
		{"base62", id.Base62()},
		{"b62", id.Base62()},
		{"62", id.Base62()},
		{"base64", id.Base64()},
		{"b64", id.Base64()},
		{"64", id.Base64()},
		{"decimal", id.String()},
		{"dec", id.String()},
		{"d", id.String()},
		{"", id.String()},
		{"unknown", id.String()},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			result := id.Format(tt.format)
			if result != tt.expected {
				t.Errorf("Format(%q) = %q, want %q", tt.format, result, tt.expected)
			}
		})
	}
}

func TestIDConversions(t *testing.T) {
	gen, _ := newTestGenerator(t, 1)
	idRaw, _ := gen.NextID()
	id := ID(idRaw)

	if ID(id.Int64()) != id {
		t.Errorf("Int64() round-trip failed")
	}
	if ID(id.Uint64()) != id {
		t.Errorf("Uint64() round-trip failed")
	}

	str := id.String()
	parsed, err := ParseString(str)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	if parsed != id {
		t.Errorf("String() round-trip failed")
	}
}

func TestInvalidEncodings(t *testing.T) {
	tests := []struct {
		name   string
		parser func(string) (ID, error)
		input  string
	}{
		{"Base32 invalid char", ParseBase32, "!!!"},
		{"Base58 invalid char", ParseBase58, "0OIl"},
		{"Base62 invalid char", ParseBase62, "!!!"},
		{"Hex invalid char", ParseHex, "zzz"},
		{"Base64 invalid", ParseBase64, "!!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parser(tt.input)
			if err == nil {
				t.Errorf("%s should return error for invalid input", tt.name)
			}
		})
	}
}

func BenchmarkIDEncodings(b *testing.B) {
	store := newFakeStore(1)
	clock := NewFixedClock(1_700_000_000_000)
	syncer := &fakeSyncer{store: store, generatorID: 1, epochStartMS: 1_600_000_000_000, clock: clock}
	gen, _ := NewWithClock(syncer, clock)
	idRaw, _ := gen.NextID()
	id := ID(idRaw)

	b.Run("String", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = id.String()
		}
	})
	b.Run("Base32", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = id.Base32()
		}
	})
	b.Run("Base58", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = id.Base58()
		}
	})
	b.Run("Base62", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = id.Base62()
		}
	})
	b.Run("Hex", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = id.Hex()
		}
	})
}

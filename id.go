// id.go provides the ID type with extensive encoding and utility methods.
//
// ID wraps the int64 produced by Generator.NextID and provides encoding
// formats, database integration, JSON marshaling, component extraction,
// validation, comparison, and sharding, all layered on top of the same
// bit-packed int64.

package snowfall

import (
	"database/sql/driver"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID is a strongly-typed GUID.
//
// # Type Safety
//
// Using a custom type instead of raw int64 provides:
//   - Type safety: prevents mixing GUIDs with unrelated integers
//   - Method chaining: fluent API for encoding and extraction
//   - Interface implementations: works seamlessly with JSON, SQL, etc.
//
// # Encoding Formats
//
// Int64/String, Base32, Base36, Base58, Base62, Base64, Base64URL, Hex and
// Base2, each optimized for a different transport or readability need.
//
// # Interface Implementations
//
//   - json.Marshaler/Unmarshaler: JavaScript-safe JSON encoding (string)
//   - encoding.TextMarshaler/Unmarshaler: for XML, YAML, TOML
//   - encoding.BinaryMarshaler/Unmarshaler: for binary protocols
//   - sql.Scanner/driver.Valuer: for database operations
//   - fmt.Stringer: for string representation
//
// # Component Extraction
//
// A generator's lease determines generator_id; ms_since_epoch and
// looping_counter are read straight out of the bits. Because the epoch
// origin is a per-schema-group property rather than something encoded in
// the ID, converting ms_since_epoch back to an absolute time.Time requires
// the caller to supply the schema group's epoch_start_ms (see Time and
// Timestamp).
type ID int64

// ============================================================================
// Basic Conversions
// ============================================================================

// Int64 returns the ID as an int64.
func (id ID) Int64() int64 {
	return int64(id)
}

// Uint64 returns the ID as a uint64.
func (id ID) Uint64() uint64 {
	return uint64(id)
}

// String returns the decimal string representation of the ID. This
// implements fmt.Stringer.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ============================================================================
// Encoding Methods
// ============================================================================

// Base2 returns a binary string representation, mostly useful for
// inspecting the bit layout while debugging.
func (id ID) Base2() string {
	return strconv.FormatInt(int64(id), 2)
}

// Base32 returns a z-base-32 encoded string (lowercase alphabet without 0,
// l, v and 2).
func (id ID) Base32() string {
	return encodeBase32(int64(id))
}

// Base36 returns a base36 encoded string (0-9, a-z).
func (id ID) Base36() string {
	return strconv.FormatInt(int64(id), 36)
}

// Base58 returns a Bitcoin-style base58 encoded string, excluding visually
// similar characters (0, O, I, l).
func (id ID) Base58() string {
	return encodeBase58(int64(id))
}

// Base62 returns a URL-safe base62 encoded string (0-9, a-z, A-Z).
func (id ID) Base62() string {
	return encodeBase62(int64(id))
}

// Base64 returns a standard base64 encoded string of the big-endian bytes.
func (id ID) Base64() string {
	return base64.StdEncoding.EncodeToString(id.IntBytes8())
}

// Base64URL returns a URL-safe base64 encoded string of the big-endian
// bytes.
func (id ID) Base64URL() string {
	return base64.URLEncoding.EncodeToString(id.IntBytes8())
}

// Hex returns a lowercase hexadecimal string representation.
func (id ID) Hex() string {
	return encodeHex(int64(id))
}

// IntBytes8 returns the big-endian bytes as a slice, for the base64
// encoders above.
func (id ID) IntBytes8() []byte {
	b := id.IntBytes()
	return b[:]
}

// ============================================================================
// Binary Encoding
// ============================================================================

// Bytes returns the ID as a byte slice of the decimal string
// representation. For a compact binary integer representation, use
// IntBytes instead.
func (id ID) Bytes() []byte {
	return []byte(id.String())
}

// IntBytes returns the ID as an 8-byte big-endian integer, the most
// compact representation for network protocols and binary file formats.
func (id ID) IntBytes() [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return b
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (id ID) MarshalBinary() ([]byte, error) {
	b := id.IntBytes()
	return b[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. It requires
// exactly 8 bytes.
func (id *ID) UnmarshalBinary(data []byte) error {
	if len(data) != 8 {
		return fmt.Errorf("invalid binary data length: %d", len(data))
	}
	*id = ID(int64(binary.BigEndian.Uint64(data)))
	return nil
}

// ============================================================================
// JSON Marshaling
// ============================================================================

// MarshalJSON implements json.Marshaler.
//
// Returns the ID as a JSON string (not number) to avoid precision loss in
// JavaScript, whose Number type only safely represents integers up to
// 2^53; Snowfall GUIDs regularly exceed that.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`"%d"`, id)), nil
}

// UnmarshalJSON implements json.Unmarshaler. It accepts both string and
// number JSON values; string is preferred to avoid precision loss.
func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("invalid JSON data: %s", string(data))
	}

	str := string(data)
	if str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}

	i, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}

	*id = ID(i)
	return nil
}

// ============================================================================
// Text Marshaling (for XML, YAML, etc.)
// ============================================================================

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	i, err := strconv.ParseInt(string(text), 10, 64)
	if err != nil {
		return err
	}
	*id = ID(i)
	return nil
}

// ============================================================================
// SQL Database Integration
// ============================================================================

// Scan implements sql.Scanner, handling int64, []byte and string column
// values so the ID type can be used directly with database/sql.
func (id *ID) Scan(value interface{}) error {
	if value == nil {
		*id = 0
		return nil
	}

	switch v := value.(type) {
	case int64:
		*id = ID(v)
	case []byte:
		i, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return err
		}
		*id = ID(i)
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		*id = ID(i)
	default:
		return fmt.Errorf("cannot scan %T into ID", value)
	}

	return nil
}

// Value implements driver.Valuer, storing the ID as int64 (BIGINT).
func (id ID) Value() (driver.Value, error) {
	return int64(id), nil
}

// ============================================================================
// Parsing Functions
// ============================================================================

// ParseString parses a decimal string into an ID.
func ParseString(s string) (ID, error) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(i), nil
}

// ParseInt64 converts an int64 into an ID.
func ParseInt64(i int64) ID {
	return ID(i)
}

// ParseBase2 parses a binary string into an ID.
func ParseBase2(s string) (ID, error) {
	i, err := strconv.ParseInt(s, 2, 64)
	if err != nil {
		return 0, ErrInvalidBase2
	}
	return ID(i), nil
}

// ParseBase32 parses a z-base-32 string into an ID.
func ParseBase32(s string) (ID, error) {
	i, err := decodeBase32(s)
	if err != nil {
		return 0, err
	}
	return ID(i), nil
}

// ParseBase36 parses a base36 string into an ID.
func ParseBase36(s string) (ID, error) {
	i, err := strconv.ParseInt(s, 36, 64)
	if err != nil {
		return 0, ErrInvalidBase36
	}
	return ID(i), nil
}

// ParseBase58 parses a Bitcoin-style base58 string into an ID.
func ParseBase58(s string) (ID, error) {
	i, err := decodeBase58(s)
	if err != nil {
		return 0, err
	}
	return ID(i), nil
}

// ParseBase62 parses a URL-safe base62 string into an ID.
func ParseBase62(s string) (ID, error) {
	i, err := decodeBase62(s)
	if err != nil {
		return 0, err
	}
	return ID(i), nil
}

// ParseBase64 parses a standard base64 string into an ID.
func ParseBase64(s string) (ID, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return 0, ErrInvalidBase64
	}
	return parseIntBytesSlice(b)
}

// ParseBase64URL parses a URL-safe base64 string into an ID.
func ParseBase64URL(s string) (ID, error) {
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return 0, ErrInvalidBase64
	}
	return parseIntBytesSlice(b)
}

// ParseHex parses a hexadecimal string into an ID. Both cases are
// accepted.
func ParseHex(s string) (ID, error) {
	i, err := decodeHex(s)
	if err != nil {
		return 0, err
	}
	return ID(i), nil
}

// ParseBytes parses a byte slice holding a decimal string into an ID.
func ParseBytes(b []byte) (ID, error) {
	return ParseString(string(b))
}

// ParseIntBytes parses an 8-byte big-endian integer into an ID.
func ParseIntBytes(b [8]byte) ID {
	return ID(int64(binary.BigEndian.Uint64(b[:])))
}

func parseIntBytesSlice(b []byte) (ID, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("invalid binary data length: %d", len(b))
	}
	var arr [8]byte
	copy(arr[:], b)
	return ParseIntBytes(arr), nil
}

// ============================================================================
// ID Information Extraction
// ============================================================================

// MsSinceEpoch returns the raw 41-bit ms_since_epoch field, relative to
// whatever epoch_start_ms the generating schema group used. It is not an
// absolute Unix timestamp; use Timestamp or Time with that schema group's
// epoch to get one.
func (id ID) MsSinceEpoch() int64 {
	return int64(id) >> OffsetForMsSinceEpoch
}

// Timestamp returns the absolute Unix timestamp in milliseconds that this
// ID was generated at, given the epoch_start_ms of the schema group it was
// generated in.
func (id ID) Timestamp(epochStartMS int64) int64 {
	return id.MsSinceEpoch() + epochStartMS
}

// Time returns the moment this ID was generated, given the epoch_start_ms
// of the schema group it was generated in.
func (id ID) Time(epochStartMS int64) time.Time {
	ms := id.Timestamp(epochStartMS)
	return time.UnixMilli(ms)
}

// GeneratorID returns the generator ID component (0-4095).
func (id ID) GeneratorID() int64 {
	return int64(id) & MaxGeneratorID
}

// LoopingCounter returns the intra-millisecond sequence component
// (0-2047).
func (id ID) LoopingCounter() int64 {
	return (int64(id) >> OffsetForLoopingCount) & MaxLoopingCount
}

// Components returns all three fields packed into the ID: the raw
// ms_since_epoch, the looping counter, and the generator ID.
func (id ID) Components() (msSinceEpoch, loopingCounter, generatorID int64) {
	msSinceEpoch = id.MsSinceEpoch()
	loopingCounter = id.LoopingCounter()
	generatorID = id.GeneratorID()
	return
}

// ============================================================================
// ID Validation and Comparison
// ============================================================================

// IsValid checks the ID's structure: it must be non-negative and its
// generator_id and looping_counter fields must fall within their field
// widths. It does not check the timestamp field against any epoch; use
// IsValidAt for that.
func (id ID) IsValid() bool {
	if id < 0 {
		return false
	}
	generatorID := id.GeneratorID()
	if generatorID < 0 || generatorID > MaxGeneratorID {
		return false
	}
	counter := id.LoopingCounter()
	if counter < 0 || counter > MaxLoopingCount {
		return false
	}
	return true
}

// IsValidAt additionally checks that the ID's absolute timestamp, computed
// against epochStartMS, is not more than one day ahead of nowMS — a
// generous allowance for clock skew between the generator and the
// validator.
func (id ID) IsValidAt(epochStartMS, nowMS int64) bool {
	if !id.IsValid() {
		return false
	}
	ts := id.Timestamp(epochStartMS)
	if ts < epochStartMS {
		return false
	}
	if ts > nowMS+86400000 {
		return false
	}
	return true
}

// Age returns the duration since the ID was generated, given the epoch the
// generator was configured with.
func (id ID) Age(epochStartMS int64) time.Duration {
	return time.Since(id.Time(epochStartMS))
}

// Before reports whether this ID was generated before other. Because
// Snowfall GUIDs are time-ordered within a schema group, this is a plain
// numeric comparison.
func (id ID) Before(other ID) bool {
	return id < other
}

// After reports whether this ID was generated after other.
func (id ID) After(other ID) bool {
	return id > other
}

// Equal reports whether two IDs are identical.
func (id ID) Equal(other ID) bool {
	return id == other
}

// Compare returns -1, 0 or 1 as id is less than, equal to, or greater than
// other.
func (id ID) Compare(other ID) int {
	if id < other {
		return -1
	}
	if id > other {
		return 1
	}
	return 0
}

// ============================================================================
// Sharding
// ============================================================================

// Shard calculates which shard/partition this ID belongs to by simple
// modulo distribution. Distributes IDs evenly but does not preserve
// generator affinity.
func (id ID) Shard(numShards int64) int64 {
	if numShards <= 0 {
		return 0
	}
	return int64(id) % numShards
}

// ShardByGenerator calculates a shard from the generator ID component,
// ensuring IDs from the same generator always route to the same shard —
// useful when co-locating a generator's writes reduces hot spots.
func (id ID) ShardByGenerator(numShards int64) int64 {
	if numShards <= 0 {
		return 0
	}
	return id.GeneratorID() % numShards
}

// ShardByTime buckets the ID by its absolute timestamp for time-series
// partitioning, e.g. hourly or daily tables.
func (id ID) ShardByTime(epochStartMS int64, bucketSize time.Duration) int64 {
	if bucketSize <= 0 {
		return 0
	}
	return id.Time(epochStartMS).Unix() / int64(bucketSize.Seconds())
}

// ============================================================================
// Formatting
// ============================================================================

// Format returns a custom formatted string based on the format specifier:
// "hex"/"x", "binary"/"bin"/"b", "base32"/"b32"/"32", "base36"/"b36"/"36",
// "base58"/"b58"/"58", "base62"/"b62"/"62", "base64"/"b64"/"64", or
// "decimal"/"dec"/"d"/"" (the default).
func (id ID) Format(format string) string {
	switch format {
	case "hex", "x":
		return id.Hex()
	case "binary", "bin", "b":
		return id.Base2()
	case "base32", "b32", "32":
		return id.Base32()
	case "base36", "b36", "36":
		return id.Base36()
	case "base58", "b58", "58":
		return id.Base58()
	case "base62", "b62", "62":
		return id.Base62()
	case "base64", "b64", "64":
		return id.Base64()
	case "decimal", "dec", "d", "":
		return id.String()
	default:
		return id.String()
	}
}

// IDWithFormat wraps an ID with a custom format for JSON marshaling, so an
// API response can choose a non-default encoding on a per-field basis.
type IDWithFormat struct {
	ID     ID
	Format string
}

// MarshalJSON marshals the wrapped ID using the specified format.
func (idf IDWithFormat) MarshalJSON() ([]byte, error) {
	return json.Marshal(idf.ID.Format(idf.Format))
}

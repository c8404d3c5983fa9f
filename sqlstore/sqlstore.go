// Package sqlstore is a relational ManifestStore backed by database/sql,
// usable by any number of independent processes sharing the same database.
//
// Its table-existence check queries SQLite's sqlite_master catalog, so it
// works only against SQLite databases; other databases are not supported.
// Tests use github.com/mattn/go-sqlite3.
package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sxyafiq/snowfall"
)

// Store is a relational snowfall.ManifestStore. The zero value is not
// usable; construct with New.
type Store struct {
	db *sql.DB
}

// New wraps an open *sql.DB. The caller owns the DB's lifecycle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateSchemaGroup creates the manifest and properties tables for
// schemaGroup and seeds MaxGeneratorID+1 manifest rows with
// last_updated_ms=0, so every generator ID starts out claimable. Fails
// loudly with *snowfall.SchemaGroupExistsError if either table already
// exists, rather than silently reusing it.
func (s *Store) CreateSchemaGroup(schemaGroup string, props snowfall.Properties) error {
	manifestTable := snowfall.ManifestTableName(schemaGroup)
	propsTable := snowfall.PropertiesTableName(schemaGroup)

	if s.tableExists(manifestTable) {
		return &snowfall.SchemaGroupExistsError{SchemaGroup: schemaGroup, Table: manifestTable}
	}
	if s.tableExists(propsTable) {
		return &snowfall.SchemaGroupExistsError{SchemaGroup: schemaGroup, Table: propsTable}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return &snowfall.StoreTransientError{Op: "CreateSchemaGroup", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.Exec(fmt.Sprintf(
		`CREATE TABLE %s (generator_id INTEGER PRIMARY KEY, last_updated_ms INTEGER NOT NULL)`,
		manifestTable,
	)); err != nil {
		return fmt.Errorf("creating manifest table: %w", err)
	}

	insertRow, err := tx.Prepare(fmt.Sprintf(
		`INSERT INTO %s (generator_id, last_updated_ms) VALUES (?, 0)`, manifestTable,
	))
	if err != nil {
		return err
	}
	defer insertRow.Close()

	for gid := int64(0); gid <= snowfall.MaxGeneratorID; gid++ {
		if _, err := insertRow.Exec(gid); err != nil {
			return fmt.Errorf("seeding manifest row %d: %w", gid, err)
		}
	}

	if _, err := tx.Exec(fmt.Sprintf(
		`CREATE TABLE %s (prop_key TEXT PRIMARY KEY, prop_value INTEGER NOT NULL)`,
		propsTable,
	)); err != nil {
		return fmt.Errorf("creating properties table: %w", err)
	}

	insertProp, err := tx.Prepare(fmt.Sprintf(
		`INSERT INTO %s (prop_key, prop_value) VALUES (?, ?)`, propsTable,
	))
	if err != nil {
		return err
	}
	defer insertProp.Close()

	kvs := map[string]int64{
		snowfall.PropLivelinessProbeS:         props.LivelinessProbeS,
		snowfall.PropEpochStartMS:             props.EpochStartMS,
		snowfall.PropMaxClaimRetries:          props.MaxClaimRetries,
		snowfall.PropMinMsBetweenClaimRetries: props.MinMsBetweenClaimRetries,
		snowfall.PropMaxMsBetweenClaimRetries: props.MaxMsBetweenClaimRetries,
	}
	for k, v := range kvs {
		if _, err := insertProp.Exec(k, v); err != nil {
			return fmt.Errorf("seeding property %s: %w", k, err)
		}
	}

	return tx.Commit()
}

func (s *Store) tableExists(table string) bool {
	var name string
	err := s.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
	).Scan(&name)
	return err == nil
}

// ReadProperties reads back the key/value rows CreateSchemaGroup wrote.
func (s *Store) ReadProperties(schemaGroup string) (snowfall.Properties, error) {
	propsTable := snowfall.PropertiesTableName(schemaGroup)
	if !s.tableExists(propsTable) {
		return snowfall.Properties{}, &snowfall.SchemaGroupMissingError{SchemaGroup: schemaGroup}
	}

	rows, err := s.db.Query(fmt.Sprintf(`SELECT prop_key, prop_value FROM %s`, propsTable))
	if err != nil {
		return snowfall.Properties{}, &snowfall.StoreTransientError{Op: "ReadProperties", Err: err}
	}
	defer rows.Close()

	var props snowfall.Properties
	for rows.Next() {
		var key string
		var value int64
		if err := rows.Scan(&key, &value); err != nil {
			return snowfall.Properties{}, err
		}
		switch key {
		case snowfall.PropLivelinessProbeS:
			props.LivelinessProbeS = value
		case snowfall.PropEpochStartMS:
			props.EpochStartMS = value
		case snowfall.PropMaxClaimRetries:
			props.MaxClaimRetries = value
		case snowfall.PropMinMsBetweenClaimRetries:
			props.MinMsBetweenClaimRetries = value
		case snowfall.PropMaxMsBetweenClaimRetries:
			props.MaxMsBetweenClaimRetries = value
		}
	}
	return props, rows.Err()
}

// TryClaim finds one manifest row whose last_updated_ms is at or before
// releaseThresholdMS and updates it to nowMS inside a transaction, retrying
// on write-conflict errors (SQLITE_BUSY and friends) or on finding no free
// row momentarily visible, up to the schema group's configured
// MaxClaimRetries with backoff drawn from
// [MinMsBetweenClaimRetries, MaxMsBetweenClaimRetries]. A transaction that
// commits zero rows changed (another instance claimed first) is treated
// the same as a conflict and retried.
func (s *Store) TryClaim(schemaGroup string, nowMS, releaseThresholdMS int64) (int64, error) {
	manifestTable := snowfall.ManifestTableName(schemaGroup)
	if !s.tableExists(manifestTable) {
		return 0, &snowfall.SchemaGroupMissingError{SchemaGroup: schemaGroup}
	}

	props, err := s.ReadProperties(schemaGroup)
	if err != nil {
		return 0, err
	}

	maxAttempts := int(props.MaxClaimRetries)
	if maxAttempts <= 0 {
		maxAttempts = snowfall.DefaultMaxClaimRetries
	}
	minBackoffMS := props.MinMsBetweenClaimRetries
	if minBackoffMS <= 0 {
		minBackoffMS = snowfall.DefaultMinMsBetweenClaimRetries
	}
	maxBackoffMS := props.MaxMsBetweenClaimRetries
	if maxBackoffMS < minBackoffMS {
		maxBackoffMS = snowfall.DefaultMaxMsBetweenClaimRetries
		if maxBackoffMS < minBackoffMS {
			maxBackoffMS = minBackoffMS
		}
	}

	var lastErr error
	noFreeRowAttempts := 0
	for attempt := 0; attempt <= maxAttempts; attempt++ {
		generatorID, err := s.tryClaimOnce(manifestTable, nowMS, releaseThresholdMS)
		if err == nil {
			return generatorID, nil
		}
		if errors.Is(err, errNoFreeRow) {
			noFreeRowAttempts++
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		backoffMS := minBackoffMS + rand.Int63n(maxBackoffMS-minBackoffMS+1)
		time.Sleep(time.Duration(backoffMS) * time.Millisecond)
	}

	if noFreeRowAttempts > 0 && noFreeRowAttempts == maxAttempts+1 {
		return 0, &snowfall.NoFreeGeneratorIDError{SchemaGroup: schemaGroup, Retries: maxAttempts}
	}
	return 0, &snowfall.PersistentClaimContentionError{SchemaGroup: schemaGroup, Retries: maxAttempts, LastErr: lastErr}
}

var errNoFreeRow = errors.New("no manifest row is stale enough to claim")

func (s *Store) tryClaimOnce(manifestTable string, nowMS, releaseThresholdMS int64) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, &snowfall.StoreTransientError{Op: "TryClaim", Err: err}
	}
	defer tx.Rollback()

	var generatorID int64
	err = tx.QueryRow(fmt.Sprintf(
		`SELECT generator_id FROM %s WHERE last_updated_ms <= ? ORDER BY generator_id LIMIT 1`,
		manifestTable,
	), releaseThresholdMS).Scan(&generatorID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errNoFreeRow
	}
	if err != nil {
		return 0, &snowfall.StoreTransientError{Op: "TryClaim", Err: err}
	}

	res, err := tx.Exec(fmt.Sprintf(
		`UPDATE %s SET last_updated_ms = ? WHERE generator_id = ? AND last_updated_ms <= ?`,
		manifestTable,
	), nowMS, generatorID, releaseThresholdMS)
	if err != nil {
		return 0, &snowfall.StoreTransientError{Op: "TryClaim", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &snowfall.StoreTransientError{Op: "TryClaim", Err: err}
	}
	if n == 0 {
		// Someone else claimed this exact row between our SELECT and our
		// UPDATE; the caller retries rather than treating it as no-free-row.
		return 0, fmt.Errorf("row %d claimed concurrently", generatorID)
	}

	if err := tx.Commit(); err != nil {
		return 0, &snowfall.StoreTransientError{Op: "TryClaim", Err: err}
	}
	return generatorID, nil
}

// Renew conditionally advances a generator's last_updated_ms, matching on
// the caller's last observed value so a concurrent reclaim by another
// instance is visible as a no-op update.
func (s *Store) Renew(schemaGroup string, generatorID, prevLastAliveMS, newMS int64) (bool, error) {
	manifestTable := snowfall.ManifestTableName(schemaGroup)
	if !s.tableExists(manifestTable) {
		return false, &snowfall.SchemaGroupMissingError{SchemaGroup: schemaGroup}
	}

	res, err := s.db.Exec(fmt.Sprintf(
		`UPDATE %s SET last_updated_ms = ? WHERE generator_id = ? AND last_updated_ms = ?`,
		manifestTable,
	), newMS, generatorID, prevLastAliveMS)
	if err != nil {
		return false, &snowfall.StoreTransientError{Op: "Renew", Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, &snowfall.StoreTransientError{Op: "Renew", Err: err}
	}
	return n == 1, nil
}

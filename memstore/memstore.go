// Package memstore is a single-process ManifestStore backed by a plain
// array per schema group, guarded by one mutex. It mirrors the in-process,
// no-external-dependency coordinator used for a single Python process in
// the system this package generalizes, generalized here to the abstract
// snowfall.ManifestStore interface.
//
// It is intended for tests and for single-binary deployments where every
// Generator in the schema group runs inside the same process; it provides
// no cross-process coordination whatsoever.
package memstore

import (
	"sync"

	"github.com/sxyafiq/snowfall"
)

type group struct {
	props    snowfall.Properties
	lastSeen []int64 // lastSeen[generatorID] = last_updated_ms, index 0..MaxGeneratorID
}

// Store is an in-memory snowfall.ManifestStore. The zero value is not
// usable; construct with New.
type Store struct {
	mu     sync.Mutex
	groups map[string]*group
}

// New returns an empty Store.
func New() *Store {
	return &Store{groups: make(map[string]*group)}
}

// CreateSchemaGroup seeds a manifest of MaxGeneratorID+1 rows, all with
// last_updated_ms=0 so every generator ID is immediately claimable.
func (s *Store) CreateSchemaGroup(schemaGroup string, props snowfall.Properties) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[schemaGroup]; exists {
		return &snowfall.SchemaGroupExistsError{SchemaGroup: schemaGroup, Table: "memstore:" + schemaGroup}
	}

	s.groups[schemaGroup] = &group{
		props:    props,
		lastSeen: make([]int64, snowfall.MaxGeneratorID+1),
	}
	return nil
}

// ReadProperties returns the Properties registered for schemaGroup.
func (s *Store) ReadProperties(schemaGroup string) (snowfall.Properties, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[schemaGroup]
	if !ok {
		return snowfall.Properties{}, &snowfall.SchemaGroupMissingError{SchemaGroup: schemaGroup}
	}
	return g.props, nil
}

// TryClaim scans the manifest for the first generator ID whose
// last_updated_ms is at or before releaseThresholdMS and claims it by
// setting it to nowMS. The scan always starts at 0, so low generator IDs
// are preferred when several are free; that bias is harmless since
// generator IDs carry no meaning beyond uniqueness.
func (s *Store) TryClaim(schemaGroup string, nowMS, releaseThresholdMS int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[schemaGroup]
	if !ok {
		return 0, &snowfall.SchemaGroupMissingError{SchemaGroup: schemaGroup}
	}

	for generatorID, lastUpdatedMS := range g.lastSeen {
		if lastUpdatedMS <= releaseThresholdMS {
			g.lastSeen[generatorID] = nowMS
			return int64(generatorID), nil
		}
	}

	return 0, &snowfall.NoFreeGeneratorIDError{SchemaGroup: schemaGroup, Retries: 0}
}

// Renew conditionally advances the generator's last_updated_ms, succeeding
// only if the caller's view of the previous value still matches: this is
// what detects that another instance has since reclaimed the lease.
func (s *Store) Renew(schemaGroup string, generatorID, prevLastAliveMS, newMS int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[schemaGroup]
	if !ok {
		return false, &snowfall.SchemaGroupMissingError{SchemaGroup: schemaGroup}
	}
	if generatorID < 0 || generatorID > snowfall.MaxGeneratorID {
		return false, snowfall.ErrValidation
	}

	if g.lastSeen[generatorID] != prevLastAliveMS {
		return false, nil
	}
	g.lastSeen[generatorID] = newMS
	return true, nil
}

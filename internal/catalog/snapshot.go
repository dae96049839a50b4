// Package catalog holds the reference data that recognized tokens are
// validated against: known raid boss names and the raid CP chart.
//
// A Snapshot is immutable once built. The Store swaps whole snapshots
// atomically, so a scan that grabbed a snapshot keeps reading it to the end
// even if a refresh lands mid-scan.
package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/raidscan-worker/internal/errors"
)

// CPEntry maps a raid CP value to a boss name.
type CPEntry struct {
	CP   string
	Name string
}

// Snapshot is one immutable version of the catalog.
type Snapshot struct {
	id        string
	source    string
	loadedAt  time.Time
	names     []string
	cpKeys    []string
	cpMap     map[string]string
	conflicts []*errors.ProcessingError
}

// NewSnapshot builds a snapshot. Names and CP keys keep their input order,
// which fixes fuzzy tie-breaking. Duplicate names are dropped. When a CP
// value appears twice with different names the first one wins and the clash
// is recorded as a CATALOG_INCONSISTENCY.
func NewSnapshot(source string, names []string, chart []CPEntry) *Snapshot {
	s := &Snapshot{
		id:       uuid.NewString(),
		source:   source,
		loadedAt: time.Now(),
		cpMap:    make(map[string]string, len(chart)),
	}

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		s.names = append(s.names, n)
	}

	for _, e := range chart {
		cp := strings.TrimSpace(e.CP)
		name := strings.TrimSpace(e.Name)
		if cp == "" || name == "" {
			continue
		}
		if kept, ok := s.cpMap[cp]; ok {
			if kept != name {
				s.conflicts = append(s.conflicts, errors.NewCatalogInconsistencyError(cp, kept, name))
			}
			continue
		}
		s.cpMap[cp] = name
		s.cpKeys = append(s.cpKeys, cp)
	}

	return s
}

func (s *Snapshot) ID() string          { return s.id }
func (s *Snapshot) Source() string      { return s.source }
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Names returns the boss names in catalog order.
func (s *Snapshot) Names() []string {
	return append([]string(nil), s.names...)
}

// CPKeys returns the CP chart keys in catalog order.
func (s *Snapshot) CPKeys() []string {
	return append([]string(nil), s.cpKeys...)
}

// Resolve maps a CP key to its boss name.
func (s *Snapshot) Resolve(cp string) (string, bool) {
	name, ok := s.cpMap[cp]
	return name, ok
}

// Conflicts lists the CP keys that were loaded with more than one name.
func (s *Snapshot) Conflicts() []*errors.ProcessingError {
	return append([]*errors.ProcessingError(nil), s.conflicts...)
}

// Summary is a loggable description of the snapshot.
func (s *Snapshot) Summary() map[string]interface{} {
	keys := s.CPKeys()
	sort.Strings(keys)
	return map[string]interface{}{
		"id":        s.id,
		"source":    s.source,
		"names":     len(s.names),
		"cpEntries": len(keys),
		"conflicts": len(s.conflicts),
		"loadedAt":  s.loadedAt.Format(time.RFC3339),
	}
}

package catalog

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/raidscan-worker/internal/errors"
	"github.com/adverant/nexus/raidscan-worker/internal/logging"
)

func TestSnapshotFirstLoadedWinsOnDuplicateCP(t *testing.T) {
	snap := NewSnapshot("test", []string{"a"}, []CPEntry{
		{"100", "First"},
		{"200", "Other"},
		{"100", "Second"},
		{"100", "First"},
	})

	name, ok := snap.Resolve("100")
	require.True(t, ok)
	assert.Equal(t, "First", name)
	assert.Equal(t, []string{"100", "200"}, snap.CPKeys())

	conflicts := snap.Conflicts()
	require.Len(t, conflicts, 1, "an identical repeat is not a conflict")
	assert.Equal(t, errors.ErrorCatalogInconsistency, conflicts[0].Code)
	assert.Equal(t, "Second", conflicts[0].Details["dropped"])
}

func TestBuiltinCatalog(t *testing.T) {
	snap := Builtin()

	name, ok := snap.Resolve("38490")
	require.True(t, ok)
	assert.Equal(t, "Dragonite", name)

	name, _ = snap.Resolve("65675")
	assert.Equal(t, "Tyranitar", name)
	require.Len(t, snap.Conflicts(), 1)

	names := snap.Names()
	assert.Equal(t, "geodude", names[0])
	assert.Contains(t, names, "absol")
}

func TestSnapshotAccessorsReturnCopies(t *testing.T) {
	snap := NewSnapshot("test", []string{"absol"}, []CPEntry{{"1", "Absol"}})
	names := snap.Names()
	names[0] = "mutated"
	assert.Equal(t, []string{"absol"}, snap.Names())
}

func TestRaidCP(t *testing.T) {
	cp, err := RaidCP(246, 120, 4)
	require.NoError(t, err)
	assert.Equal(t, 28769, cp)

	cp, err = RaidCP(263, 198, 4)
	require.NoError(t, err)
	assert.Equal(t, 38490, cp)

	_, err = RaidCP(100, 100, 9)
	assert.Error(t, err)
}

func TestFromRowsComputesMissingCP(t *testing.T) {
	snap, err := FromRows("pg", []BossRow{
		{Name: "Absol", Tier: 4, Attack: 246, Defense: 120},
		{Name: "Mawile", CP: 9008},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"absol", "mawile"}, snap.Names())
	name, ok := snap.Resolve("28769")
	require.True(t, ok)
	assert.Equal(t, "Absol", name)
	name, _ = snap.Resolve("9008")
	assert.Equal(t, "Mawile", name)
}

func TestStoreReplaceIsAtomicForReaders(t *testing.T) {
	store := NewStore(nil)
	_, ok := store.Current()
	assert.False(t, ok)

	a := NewSnapshot("a", []string{"absol"}, nil)
	b := NewSnapshot("b", []string{"mawile"}, nil)
	store.Replace(a)

	held, _ := store.Current()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				store.Replace(b)
				return
			}
			snap, ok := store.Current()
			assert.True(t, ok)
			assert.Len(t, snap.Names(), 1)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []string{"absol"}, held.Names(), "a held snapshot never changes")
	cur, _ := store.Current()
	assert.Equal(t, "b", cur.Source())
}

type fakeSource struct {
	rows []BossRow
	err  error
}

func (f *fakeSource) LoadBossRows(ctx context.Context) ([]BossRow, error) {
	return f.rows, f.err
}

func TestRefresherSwapsOnSuccessAndKeepsOldOnFailure(t *testing.T) {
	store := NewStore(Builtin())
	src := &fakeSource{rows: []BossRow{{Name: "Absol", CP: 28769}}}
	r := NewRefresher(store, src, "postgres", logging.Discard())

	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)
	cur, _ := store.Current()
	assert.Same(t, snap, cur)

	src.err = fmt.Errorf("connection refused")
	_, err = r.Refresh(context.Background())
	assert.Error(t, err)
	cur, _ = store.Current()
	assert.Same(t, snap, cur)

	src.err = nil
	src.rows = nil
	_, err = r.Refresh(context.Background())
	assert.Error(t, err)
}

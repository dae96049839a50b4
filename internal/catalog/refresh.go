package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/raidscan-worker/internal/logging"
)

// BossRow is one boss as stored by the catalog source. CP is optional; when
// it is zero it is computed from the base stats and tier.
type BossRow struct {
	Name    string
	Tier    int
	Attack  int
	Defense int
	CP      int
}

// Source loads the raw boss rows a snapshot is built from.
type Source interface {
	LoadBossRows(ctx context.Context) ([]BossRow, error)
}

// FromRows builds a snapshot from source rows, in row order.
func FromRows(source string, rows []BossRow) (*Snapshot, error) {
	names := make([]string, 0, len(rows))
	chart := make([]CPEntry, 0, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			continue
		}
		names = append(names, strings.ToLower(name))

		cp := row.CP
		if cp <= 0 {
			computed, err := RaidCP(row.Attack, row.Defense, row.Tier)
			if err != nil {
				return nil, fmt.Errorf("boss %q: %w", name, err)
			}
			cp = computed
		}
		chart = append(chart, CPEntry{CP: strconv.Itoa(cp), Name: name})
	}
	return NewSnapshot(source, names, chart), nil
}

// Refresher rebuilds the catalog from a Source and swaps it into a Store.
type Refresher struct {
	store  *Store
	source Source
	name   string
	logger *logging.Logger
	mu     sync.Mutex
}

// NewRefresher creates a refresher. name labels snapshots built from source.
func NewRefresher(store *Store, source Source, name string, logger *logging.Logger) *Refresher {
	if logger == nil {
		logger = logging.NewLogger("catalog")
	}
	return &Refresher{store: store, source: source, name: name, logger: logger}
}

// Refresh loads a new snapshot and installs it. On failure the previous
// snapshot stays active.
func (r *Refresher) Refresh(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.source.LoadBossRows(ctx)
	if err != nil {
		r.logger.Warn("Failed to update boss list", "error", err)
		return nil, fmt.Errorf("failed to load boss rows: %w", err)
	}
	if len(rows) == 0 {
		r.logger.Warn("Failed to update boss list", "error", "source returned no bosses")
		return nil, fmt.Errorf("catalog source %s returned no bosses", r.name)
	}

	snap, err := FromRows(r.name, rows)
	if err != nil {
		r.logger.Warn("Failed to update boss list", "error", err)
		return nil, err
	}
	for _, c := range snap.Conflicts() {
		r.logger.Warn("catalog inconsistency", "code", c.Code, "detail", c.Message)
	}

	r.store.Replace(snap)
	r.logger.Info("Boss list updated", "snapshot", snap.ID(), "names", len(snap.Names()), "cpEntries", len(snap.CPKeys()))
	return snap, nil
}

// Listen refreshes the catalog each time a message arrives on channel.
// It blocks until ctx is cancelled.
func (r *Refresher) Listen(ctx context.Context, client *redis.Client, channel string) error {
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	r.logger.Info("Listening for catalog refresh requests", "channel", channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.logger.Info("Catalog refresh requested", "payload", msg.Payload)
			if _, err := r.Refresh(ctx); err != nil {
				r.logger.Error("Catalog refresh failed", "error", err)
			}
		}
	}
}

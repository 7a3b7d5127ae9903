package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/timelock-vault/interfaces"
)

// MultiStore implements interfaces.RecordStore on top of several stores that
// each hold a full copy of every record. A save must reach every store, and a
// load refuses to serve copies that disagree.
type MultiStore struct {
	stores []interfaces.RecordStore
	log    *slog.Logger
}

// ErrDivergentCopies is returned by Load when the stores disagree on a record.
var ErrDivergentCopies = errors.New("record stores hold different copies")

// NewMultiStore creates a replicated store over stores.
func NewMultiStore(stores []interfaces.RecordStore, logger *slog.Logger) *MultiStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiStore{
		stores: stores,
		log:    logger,
	}
}

// Load reads the record from every available store. ErrRecordNotFound is
// returned only when every reachable store reports it missing; a record some
// stores have and others lack, or with differing content, is ErrDivergentCopies.
func (m *MultiStore) Load(ctx context.Context, addr interfaces.Address) ([]byte, error) {
	start := time.Now()
	var (
		errs   []error
		found  []byte
		source string
		seen   int
	)
	missing := 0

	for _, store := range m.stores {
		if !store.Available(ctx) {
			m.log.Debug("Store unavailable", slog.String("store", store.Name()))
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), interfaces.ErrBackendUnavailable))
			continue
		}

		data, err := store.Load(ctx, addr)
		switch {
		case err == nil:
			if seen > 0 && !bytes.Equal(found, data) {
				return nil, m.divergent(addr, source, store.Name())
			}
			found, source = data, store.Name()
			seen++
		case errors.Is(err, interfaces.ErrRecordNotFound):
			missing++
		default:
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
			m.log.Debug("Failed to load from store", slog.String("store", store.Name()), "err", err)
		}
	}

	if seen > 0 && missing > 0 {
		return nil, m.divergent(addr, source, "missing copy")
	}
	if seen > 0 {
		m.log.Debug("Loaded record",
			slog.String("address", addr.String()),
			slog.Int("copies", seen),
			slog.Duration("duration", time.Since(start)))
		return found, nil
	}
	if missing > 0 && len(errs) == 0 {
		return nil, interfaces.ErrRecordNotFound
	}
	if len(errs) == 0 {
		return nil, interfaces.ErrBackendUnavailable
	}

	m.log.Error("All stores failed to load record",
		slog.String("address", addr.String()),
		slog.Int("failed_stores", len(errs)),
		slog.Duration("duration", time.Since(start)))
	return nil, fmt.Errorf("all stores failed to load %s: %w", addr, errors.Join(errs...))
}

func (m *MultiStore) divergent(addr interfaces.Address, a, b string) error {
	m.log.Error("Record copies diverge",
		slog.String("address", addr.String()),
		slog.String("store", a),
		slog.String("other", b))
	return fmt.Errorf("%w: %w: %s (%s, %s)", interfaces.ErrBackendUnavailable, ErrDivergentCopies, addr, a, b)
}

// Save writes the record to every store. Every store must be available. If a
// write fails, stores already written get their previous copy back, so the
// caller's rollback leaves the stores as they were.
func (m *MultiStore) Save(ctx context.Context, addr interfaces.Address, data []byte) error {
	for _, store := range m.stores {
		if !store.Available(ctx) {
			return fmt.Errorf("%s: %w", store.Name(), interfaces.ErrBackendUnavailable)
		}
	}

	previous := make([][]byte, len(m.stores))
	for i, store := range m.stores {
		prev, err := store.Load(ctx, addr)
		if err != nil && !errors.Is(err, interfaces.ErrRecordNotFound) {
			return fmt.Errorf("%s: %w", store.Name(), err)
		}
		previous[i] = prev
	}

	for i, store := range m.stores {
		if err := store.Save(ctx, addr, data); err != nil {
			m.log.Warn("Failed to save to store", slog.String("store", store.Name()), "err", err)
			m.restore(ctx, addr, previous[:i])
			return fmt.Errorf("%s: failed to save %s: %w", store.Name(), addr, err)
		}
	}
	return nil
}

// restore puts back the previous copies of the first len(previous) stores. A
// store that had no copy keeps the new one; Load reports the divergence.
func (m *MultiStore) restore(ctx context.Context, addr interfaces.Address, previous [][]byte) {
	for i, prev := range previous {
		store := m.stores[i]
		if prev == nil {
			m.log.Error("Cannot remove partially written record",
				slog.String("store", store.Name()),
				slog.String("address", addr.String()))
			continue
		}
		if err := store.Save(ctx, addr, prev); err != nil {
			m.log.Error("Failed to restore record",
				slog.String("store", store.Name()),
				slog.String("address", addr.String()),
				"err", err)
		}
	}
}

// Available checks if any store is available.
func (m *MultiStore) Available(ctx context.Context) bool {
	for _, store := range m.stores {
		if store.Available(ctx) {
			return true
		}
	}
	return false
}

func (m *MultiStore) Name() string {
	return "multi-store"
}

func (m *MultiStore) LocationURI() string {
	locations := make([]string, 0, len(m.stores))
	for _, store := range m.stores {
		locations = append(locations, store.LocationURI())
	}
	return "multi:[" + strings.Join(locations, ",") + "]"
}

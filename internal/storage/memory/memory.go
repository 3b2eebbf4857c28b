// Package memory is an in-process record store used for development and tests.
// It implements every ledger port and gives read-committed isolation by
// holding a single mutex per call.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"
)

type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	nextID   int64
	txs      []core.Transaction
	assets   []core.Asset
	snaps    []core.ValuationSnapshot
	netWorth map[string]core.NetWorthPoint
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp CreatedAt and RecordedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{now: time.Now, netWorth: make(map[string]core.NetWorthPoint)}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ ledger.Store = (*Store)(nil)

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AppendTransaction stores the record and returns it with ID and CreatedAt set.
func (s *Store) AppendTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = s.id()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.now().UTC()
	}
	s.txs = append(s.txs, tx)
	return tx, nil
}

func (s *Store) ListTransactions(_ context.Context, f ledger.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0)
	for _, tx := range s.txs {
		if f.Kind != "" && tx.Kind != f.Kind {
			continue
		}
		if !f.From.IsZero() && tx.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && tx.Date.After(f.To) {
			continue
		}
		out = append(out, tx)
	}
	core.SortTransactions(out)
	return out, nil
}

// CreateAsset stores the asset and its initial snapshot under one lock.
func (s *Store) CreateAsset(_ context.Context, a core.Asset) (core.Asset, error) {
	if err := a.Validate(); err != nil {
		return core.Asset{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	a.ID = s.id()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	snap := a.InitialSnapshot()
	snap.ID = s.id()
	snap.RecordedAt = now
	s.assets = append(s.assets, a)
	s.snaps = append(s.snaps, snap)
	return a, nil
}

func (s *Store) GetAsset(_ context.Context, id int64) (core.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assets {
		if a.ID == id {
			return a, nil
		}
	}
	return core.Asset{}, ledger.ErrAssetNotFound
}

func (s *Store) ListAssets(_ context.Context) ([]core.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Asset(nil), s.assets...), nil
}

func (s *Store) AppendSnapshot(_ context.Context, snap core.ValuationSnapshot) (core.ValuationSnapshot, error) {
	if err := snap.Validate(); err != nil {
		return core.ValuationSnapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, a := range s.assets {
		if a.ID == snap.AssetID {
			found = true
			break
		}
	}
	if !found {
		return core.ValuationSnapshot{}, ledger.ErrAssetNotFound
	}
	snap.ID = s.id()
	if snap.RecordedAt.IsZero() {
		snap.RecordedAt = s.now().UTC()
	}
	s.snaps = append(s.snaps, snap)
	return snap, nil
}

func (s *Store) ListSnapshots(_ context.Context, asOf core.Date) ([]core.ValuationSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ValuationSnapshot, 0, len(s.snaps))
	for _, snap := range s.snaps {
		if !snap.AsOf.After(asOf) {
			out = append(out, snap)
		}
	}
	return out, nil
}

// UpsertNetWorth replaces the point stored for p.Date, if any.
func (s *Store) UpsertNetWorth(_ context.Context, p core.NetWorthPoint) error {
	if err := p.Date.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.netWorth[p.Date.String()] = p
	return nil
}

func (s *Store) GetNetWorth(_ context.Context, date core.Date) (core.NetWorthPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.netWorth[date.String()]
	if !ok {
		return core.NetWorthPoint{}, ledger.ErrNetWorthNotFound
	}
	return p, nil
}

func (s *Store) ListNetWorth(_ context.Context, from, to core.Date) ([]core.NetWorthPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.NetWorthPoint, 0)
	for _, p := range s.netWorth {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Ping always succeeds; it lets the memory store stand in wherever a
// health-checked backend is expected.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

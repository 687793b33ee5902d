package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sifan077/clickhook/internal/app/model"
	"github.com/sifan077/clickhook/internal/app/store"
)

// Ledger maps a keyword to the Unix time of its last notification.
type Ledger map[string]int64

// RateLimiter throttles notifications per keyword using the ledger kept in the option store.
type RateLimiter struct {
	store store.Store
	now   func() time.Time

	// serialises read-modify-write of the ledger within this process
	mu sync.Mutex
}

func NewRateLimiter(s store.Store) *RateLimiter {
	return &RateLimiter{store: s, now: time.Now}
}

// ShouldSuppress reports whether keyword was notified less than windowSeconds ago.
// When it was not, the current time is recorded for keyword before returning false.
func (r *RateLimiter) ShouldSuppress(ctx context.Context, keyword string, windowSeconds int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ledger, err := r.load(ctx)
	if err != nil {
		return false, err
	}

	now := r.now().Unix()
	if last, ok := ledger[keyword]; ok && now-last < int64(windowSeconds) {
		return true, nil
	}

	ledger[keyword] = now
	if err := store.SetJSON(ctx, r.store, model.LedgerKey, ledger); err != nil {
		return false, fmt.Errorf("rate limiter: save ledger: %w", err)
	}
	return false, nil
}

// Sweep drops entries that can no longer suppress anything under windowSeconds and, when
// maxEntries is positive, keeps only the most recent maxEntries. It returns how many were removed.
func (r *RateLimiter) Sweep(ctx context.Context, windowSeconds, maxEntries int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ledger, err := r.load(ctx)
	if err != nil {
		return 0, err
	}
	before := len(ledger)

	now := r.now().Unix()
	for kw, ts := range ledger {
		if now-ts >= int64(windowSeconds) {
			delete(ledger, kw)
		}
	}

	if maxEntries > 0 && len(ledger) > maxEntries {
		keys := make([]string, 0, len(ledger))
		for kw := range ledger {
			keys = append(keys, kw)
		}
		sort.Slice(keys, func(i, j int) bool { return ledger[keys[i]] > ledger[keys[j]] })
		for _, kw := range keys[maxEntries:] {
			delete(ledger, kw)
		}
	}

	removed := before - len(ledger)
	if removed == 0 {
		return 0, nil
	}
	if err := store.SetJSON(ctx, r.store, model.LedgerKey, ledger); err != nil {
		return 0, fmt.Errorf("rate limiter: save ledger: %w", err)
	}
	return removed, nil
}

// Snapshot returns a copy of the persisted ledger.
func (r *RateLimiter) Snapshot(ctx context.Context) (Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

func (r *RateLimiter) load(ctx context.Context) (Ledger, error) {
	ledger := Ledger{}
	if err := store.GetJSON(ctx, r.store, model.LedgerKey, &ledger); err != nil {
		// a corrupt ledger is rebuilt from scratch on the next write
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrCorrupt) {
			return Ledger{}, nil
		}
		return nil, fmt.Errorf("rate limiter: load ledger: %w", err)
	}
	if ledger == nil {
		ledger = Ledger{}
	}
	return ledger, nil
}

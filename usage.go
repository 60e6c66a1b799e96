package dashprefs

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// UsageRanker records item interactions under home.usage and ranks the
// items used most within a trailing window.
type UsageRanker struct {
	store *Store
	cfg   UsageConfig
	now   func() time.Time
}

func newUsageRanker(store *Store, cfg UsageConfig, now func() time.Time) *UsageRanker {
	return &UsageRanker{store: store, cfg: cfg, now: now}
}

// RecordInteraction appends the current time to the record of itemID.
// Timestamps never go backwards within a record even when the clock does.
func (u *UsageRanker) RecordInteraction(itemID string) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return
	}
	stamp := u.now().UnixMilli()
	u.store.update([]string{SectionHome}, func(t *Tree) bool {
		if t.Home.Usage == nil {
			t.Home.Usage = map[string][]int64{}
		}
		stamps := t.Home.Usage[itemID]
		at := stamp
		if n := len(stamps); n > 0 && stamps[n-1] > at {
			at = stamps[n-1]
		}
		t.Home.Usage[itemID] = append(stamps, at)
		return true
	})
}

type usageScore struct {
	id     string
	count  int
	recent int64
}

// Rank returns the items with at least minCount interactions inside
// [now-window, now], most used first. Ties go to the most recent use, then
// to the identifier. Items below the threshold are never included.
func (u *UsageRanker) Rank(minCount int, window time.Duration) []string {
	if minCount < 1 {
		minCount = 1
	}
	now := u.now().UnixMilli()
	cutoff := now - window.Milliseconds()

	u.store.mu.Lock()
	scores := make([]usageScore, 0, len(u.store.tree.Home.Usage))
	for id, stamps := range u.store.tree.Home.Usage {
		score := usageScore{id: id}
		for _, at := range stamps {
			if at < cutoff || at > now {
				continue
			}
			score.count++
			if at > score.recent {
				score.recent = at
			}
		}
		if score.count >= minCount {
			scores = append(scores, score)
		}
	}
	u.store.mu.Unlock()

	sort.Slice(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.count != b.count {
			return a.count > b.count
		}
		if a.recent != b.recent {
			return a.recent > b.recent
		}
		return a.id < b.id
	})
	out := make([]string, len(scores))
	for i, score := range scores {
		out[i] = score.id
	}
	return out
}

// CommonlyUsed ranks with the configured threshold and window, drops items
// excluded from the commonly used view and truncates to limit (the
// configured limit when limit <= 0).
func (u *UsageRanker) CommonlyUsed(limit int) []string {
	if limit <= 0 {
		limit = u.cfg.Limit
	}
	excluded := u.store.ListSet(ListExcludedFromCommonlyUsed)
	ranked := u.Rank(u.cfg.MinCount, u.cfg.Window)
	out := make([]string, 0, min(limit, len(ranked)))
	for _, id := range ranked {
		if excluded.Has(id) {
			continue
		}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Prune drops timestamps older than the retention window (twice the ranking
// window unless configured) and removes empty records. It reports whether
// anything changed; unchanged trees are not persisted. Prune does nothing
// before the store is loaded.
func (u *UsageRanker) Prune() bool {
	if u.store.Status() != StatusLoaded {
		return false
	}
	cutoff := u.now().UnixMilli() - u.cfg.retention().Milliseconds()
	return u.store.update([]string{SectionHome}, func(t *Tree) bool {
		changed := false
		for id, stamps := range t.Home.Usage {
			keep := slices.IndexFunc(stamps, func(at int64) bool { return at >= cutoff })
			switch {
			case keep < 0:
				delete(t.Home.Usage, id)
				changed = true
			case keep > 0:
				t.Home.Usage[id] = slices.Clone(stamps[keep:])
				changed = true
			}
		}
		return changed
	})
}

func (u *UsageRanker) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(u.cfg.PruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if u.Prune() {
				u.store.logger.Debug("pruned usage records", zap.String("op", "prune"))
			}
		}
	}
}

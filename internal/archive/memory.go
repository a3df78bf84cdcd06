package archive

import (
	"context"
	"sort"
	"sync"

	"github.com/park285/Cheese-LiveBoard/internal/domain"
)

// memrepo keeps records in process; used when no ARCHIVE_URL is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID  int64
	byMatch map[string]*domain.MatchRecord
}

func NewMemory() Repository {
	return &memrepo{byMatch: make(map[string]*domain.MatchRecord)}
}

func (m *memrepo) SaveResult(_ context.Context, rec *domain.MatchRecord) error {
	if rec == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	cp.MovesUCI = append([]string(nil), rec.MovesUCI...)
	cp.MovesSAN = append([]string(nil), rec.MovesSAN...)
	if cp.PGN == "" {
		cp.PGN = BuildPGN(&cp)
	}
	if prev, ok := m.byMatch[rec.MatchID]; ok {
		cp.ID = prev.ID
	} else {
		m.nextID++
		cp.ID = m.nextID
	}
	m.byMatch[rec.MatchID] = &cp
	return nil
}

func (m *memrepo) Recent(_ context.Context, limit int) ([]*domain.MatchRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	m.mu.RLock()
	items := make([]*domain.MatchRecord, 0, len(m.byMatch))
	for _, r := range m.byMatch {
		cp := *r
		items = append(items, &cp)
	}
	m.mu.RUnlock()

	// EndedAt desc, then ID desc
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) Close() error { return nil }

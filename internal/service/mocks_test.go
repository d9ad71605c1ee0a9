package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"paylink/internal/domain"
	"paylink/internal/repo"
)

// memoryRepo is an in-memory PaymentLinkRepo that mirrors the Postgres
// behavior the service depends on, including the active-order uniqueness
// rule the partial index enforces.
type memoryRepo struct {
	mu    sync.Mutex
	seq   int64
	links map[int64]*domain.PaymentLink

	// beforeInsert runs inside Insert before the uniqueness check; tests use
	// it to lose a creation race on purpose.
	beforeInsert func()
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{links: make(map[int64]*domain.PaymentLink)}
}

func (m *memoryRepo) Insert(ctx context.Context, link *domain.PaymentLink) error {
	if m.beforeInsert != nil {
		hook := m.beforeInsert
		m.beforeInsert = nil
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.links {
		if l.OrderID == link.OrderID && (l.Status == domain.StatusPending || l.Status == domain.StatusPaid) {
			return domain.ErrDuplicateActive
		}
	}

	m.seq++
	link.ID = m.seq
	cp := *link
	m.links[link.ID] = &cp
	return nil
}

func (m *memoryRepo) FindByToken(ctx context.Context, token string) (*domain.PaymentLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.links {
		if l.Token == token {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryRepo) FindActiveByOrderID(ctx context.Context, orderID string) (*domain.PaymentLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *domain.PaymentLink
	for _, l := range m.links {
		if l.OrderID != orderID || (l.Status != domain.StatusPending && l.Status != domain.StatusPaid) {
			continue
		}
		if best == nil || l.CreatedAt.After(best.CreatedAt) {
			best = l
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (m *memoryRepo) TransitionStatus(ctx context.Context, id int64, to domain.LinkStatus, from ...domain.LinkStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.links[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if l.Status == s {
			l.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) ListFiltered(ctx context.Context, f repo.ListFilter) ([]domain.PaymentLink, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []domain.PaymentLink
	for _, l := range m.links {
		if f.OrderID != "" && !strings.Contains(l.OrderID, f.OrderID) {
			continue
		}
		if f.Email != "" && !strings.Contains(l.Email, f.Email) {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		matched = append(matched, *l)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))

	if f.PerPage > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * f.PerPage
		if start >= len(matched) {
			return nil, total, nil
		}
		end := start + f.PerPage
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (m *memoryRepo) FindStalePending(ctx context.Context, before time.Time, limit int) ([]domain.PaymentLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stale []domain.PaymentLink
	for _, l := range m.links {
		if l.Status == domain.StatusPending && l.CreatedAt.Before(before) {
			stale = append(stale, *l)
			if len(stale) == limit {
				break
			}
		}
	}
	return stale, nil
}

// count returns how many stored records match orderID and status.
func (m *memoryRepo) count(orderID string, status domain.LinkStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, l := range m.links {
		if l.OrderID == orderID && l.Status == status {
			n++
		}
	}
	return n
}

func (m *memoryRepo) statusOf(token string) domain.LinkStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.links {
		if l.Token == token {
			return l.Status
		}
	}
	return ""
}

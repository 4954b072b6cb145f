package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"AlphaDesk/internal/domain/models"
)

// MemoryLog is the in-process PersistentLog used when no database is configured.
// It also answers spend queries from the usage it holds.
type MemoryLog struct {
	mu        sync.RWMutex
	usage     []models.UsageRecord
	fallbacks []models.FallbackEvent
	agentLogs []models.AgentLogEntry
	alphas    []models.AlphaSnapshot
	emergency []models.EmergencyEvent
	prices    []models.PricePoint
	openTrade int
	maxRows   int
}

func NewMemoryLog(maxRows int) *MemoryLog {
	if maxRows <= 0 {
		maxRows = 10000
	}
	return &MemoryLog{maxRows: maxRows}
}

func capped[T any](rows []T, v T, max int) []T {
	rows = append(rows, v)
	if len(rows) > max {
		rows = rows[len(rows)-max:]
	}
	return rows
}

func (m *MemoryLog) AppendUsage(_ context.Context, r *models.UsageRecord) error {
	m.mu.Lock()
	m.usage = capped(m.usage, *r, m.maxRows)
	m.mu.Unlock()
	return nil
}

func (m *MemoryLog) AppendFallback(_ context.Context, e *models.FallbackEvent) error {
	m.mu.Lock()
	m.fallbacks = capped(m.fallbacks, *e, m.maxRows)
	m.mu.Unlock()
	return nil
}

func (m *MemoryLog) AppendAgentLog(_ context.Context, e *models.AgentLogEntry) error {
	m.mu.Lock()
	m.agentLogs = capped(m.agentLogs, *e, m.maxRows)
	m.mu.Unlock()
	return nil
}

func (m *MemoryLog) AppendAlpha(_ context.Context, s *models.AlphaSnapshot) error {
	m.mu.Lock()
	m.alphas = capped(m.alphas, *s, m.maxRows)
	m.mu.Unlock()
	return nil
}

// Emergency events are never evicted.
func (m *MemoryLog) AppendEmergency(_ context.Context, e *models.EmergencyEvent) error {
	m.mu.Lock()
	m.emergency = append(m.emergency, *e)
	m.mu.Unlock()
	return nil
}

func (m *MemoryLog) LatestEmergency(_ context.Context) (*models.EmergencyEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.emergency) == 0 {
		return nil, nil
	}
	e := m.emergency[len(m.emergency)-1]
	return &e, nil
}

func (m *MemoryLog) SpentSince(_ context.Context, userID string, since time.Time) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total float64
	for _, r := range m.usage {
		if r.CreatedAt.Before(since) {
			continue
		}
		if userID != "" && r.UserID != userID {
			continue
		}
		total += r.CostUSD
	}
	return total, nil
}

func (m *MemoryLog) CountOpenTrades(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.openTrade, nil
}

// SetOpenTrades lets an embedding process report its open position count.
func (m *MemoryLog) SetOpenTrades(n int) {
	m.mu.Lock()
	m.openTrade = n
	m.mu.Unlock()
}

// ObservePrice records the latest price for a symbol.
func (m *MemoryLog) ObservePrice(p models.PricePoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.prices {
		if m.prices[i].Symbol == p.Symbol {
			m.prices[i] = p
			return
		}
	}
	m.prices = append(m.prices, p)
}

func (m *MemoryLog) RecentPrices(_ context.Context, limit int) ([]models.PricePoint, error) {
	m.mu.RLock()
	out := make([]models.PricePoint, len(m.prices))
	copy(out, m.prices)
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryLog) Usage() []models.UsageRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.UsageRecord(nil), m.usage...)
}

func (m *MemoryLog) Fallbacks() []models.FallbackEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.FallbackEvent(nil), m.fallbacks...)
}

func (m *MemoryLog) AgentLogs() []models.AgentLogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.AgentLogEntry(nil), m.agentLogs...)
}

func (m *MemoryLog) Alphas() []models.AlphaSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.AlphaSnapshot(nil), m.alphas...)
}

func (m *MemoryLog) Emergencies() []models.EmergencyEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.EmergencyEvent(nil), m.emergency...)
}

func (m *MemoryLog) Close() error { return nil }

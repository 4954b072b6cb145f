package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"AlphaDesk/internal/domain/models"
	pkgch "AlphaDesk/pkg/clickhouse"
	applogger "AlphaDesk/pkg/logger"
)

// Schema is the idempotent DDL for the ClickHouse-backed log.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.ai_usage (
			id String, provider LowCardinality(String), model LowCardinality(String),
			user_id String, agent_name LowCardinality(String),
			tokens_input UInt32, tokens_output UInt32, latency_ms UInt32,
			cost_usd Float64, success UInt8, error_code LowCardinality(String),
			created_at DateTime64(3, 'UTC')
		) ENGINE = MergeTree ORDER BY (created_at, provider)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.ai_fallbacks (
			id String, requested_provider String, requested_model String,
			served_provider String, served_model String,
			agent_name String, user_id String, attempt UInt8,
			created_at DateTime64(3, 'UTC')
		) ENGINE = MergeTree ORDER BY created_at`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.agent_logs (
			id String, agent_name LowCardinality(String), level LowCardinality(String),
			signal String, confidence UInt8, reasoning String,
			provider String, model String, latency_ms UInt32,
			created_at DateTime64(3, 'UTC')
		) ENGINE = MergeTree ORDER BY (agent_name, created_at)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.alpha_metrics (
			id String, confidence UInt8, trend LowCardinality(String),
			regime LowCardinality(String), risk_score UInt8, breakdown String,
			created_at DateTime64(3, 'UTC')
		) ENGINE = MergeTree ORDER BY created_at`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.emergency_events (
			id String, reason String, trades_affected UInt32, metadata String,
			resolved UInt8, created_at DateTime64(3, 'UTC')
		) ENGINE = MergeTree ORDER BY created_at`, database),
	}
}

// ClickHouseLog implements PersistentLog, SpendSource, TradeCounter and PriceFeed.
type ClickHouseLog struct {
	db          *sql.DB
	database    string
	ticksTable  string
	tradesTable string
	l           *applogger.Logger
}

func NewClickHouseLog(ch *pkgch.Client, database, ticksTable, tradesTable string, l *applogger.Logger) *ClickHouseLog {
	return &ClickHouseLog{
		db:          ch.DB(),
		database:    database,
		ticksTable:  ticksTable,
		tradesTable: tradesTable,
		l:           l,
	}
}

func (s *ClickHouseLog) table(name string) string {
	if strings.Contains(name, ".") || s.database == "" {
		return name
	}
	return s.database + "." + name
}

func (s *ClickHouseLog) AppendUsage(ctx context.Context, r *models.UsageRecord) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, provider, model, user_id, agent_name, tokens_input, tokens_output,
		latency_ms, cost_usd, success, error_code, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table("ai_usage"))
	_, err := s.db.ExecContext(ctx, q,
		r.ID, string(r.Provider), r.Model, r.UserID, r.AgentName,
		uint32(r.TokensInput), uint32(r.TokensOutput), uint32(r.LatencyMs),
		r.CostUSD, boolToUInt8(r.Success), r.ErrorCode, r.CreatedAt,
	)
	return err
}

func (s *ClickHouseLog) AppendFallback(ctx context.Context, e *models.FallbackEvent) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, requested_provider, requested_model, served_provider, served_model,
		agent_name, user_id, attempt, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table("ai_fallbacks"))
	_, err := s.db.ExecContext(ctx, q,
		e.ID, string(e.Requested.Provider), e.Requested.Model, string(e.Served.Provider), e.Served.Model,
		e.AgentName, e.UserID, uint8(e.Attempt), e.CreatedAt,
	)
	return err
}

func (s *ClickHouseLog) AppendAgentLog(ctx context.Context, e *models.AgentLogEntry) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, agent_name, level, signal, confidence, reasoning, provider, model,
		latency_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table("agent_logs"))
	_, err := s.db.ExecContext(ctx, q,
		e.ID, e.AgentName, string(e.Level), e.Signal, uint8(e.Confidence), e.Reasoning,
		string(e.Provider), e.Model, uint32(e.LatencyMs), e.CreatedAt,
	)
	return err
}

func (s *ClickHouseLog) AppendAlpha(ctx context.Context, snap *models.AlphaSnapshot) error {
	breakdown, err := json.Marshal(snap.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, confidence, trend, regime, risk_score, breakdown, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, s.table("alpha_metrics"))
	_, err = s.db.ExecContext(ctx, q,
		snap.ID, uint8(snap.Confidence), string(snap.Trend), string(snap.Regime),
		uint8(snap.RiskScore), string(breakdown), snap.CreatedAt,
	)
	return err
}

func (s *ClickHouseLog) AppendEmergency(ctx context.Context, e *models.EmergencyEvent) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, reason, trades_affected, metadata, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, s.table("emergency_events"))
	_, err = s.db.ExecContext(ctx, q,
		e.ID, e.Reason, uint32(e.TradesAffected), string(meta), boolToUInt8(e.Resolved), e.CreatedAt,
	)
	return err
}

// LatestEmergency returns nil when no event was ever recorded.
func (s *ClickHouseLog) LatestEmergency(ctx context.Context) (*models.EmergencyEvent, error) {
	q := fmt.Sprintf(`SELECT id, reason, trades_affected, metadata, resolved, created_at
		FROM %s ORDER BY created_at DESC LIMIT 1`, s.table("emergency_events"))

	var (
		e        models.EmergencyEvent
		trades   uint32
		meta     string
		resolved uint8
	)
	err := s.db.QueryRowContext(ctx, q).Scan(&e.ID, &e.Reason, &trades, &meta, &resolved, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest emergency: %w", err)
	}
	e.TradesAffected = int(trades)
	e.Resolved = resolved == 1
	if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil && s.l != nil {
		s.l.Warn("emergency metadata decode failed", applogger.String("id", e.ID), applogger.Error(err))
	}
	return &e, nil
}

func (s *ClickHouseLog) SpentSince(ctx context.Context, userID string, since time.Time) (float64, error) {
	q := fmt.Sprintf("SELECT sum(cost_usd) FROM %s WHERE created_at >= ?", s.table("ai_usage"))
	args := []interface{}{since}
	if userID != "" {
		q += " AND user_id = ?"
		args = append(args, userID)
	}

	var spent float64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&spent); err != nil {
		return 0, fmt.Errorf("spent since: %w", err)
	}
	return spent, nil
}

func (s *ClickHouseLog) CountOpenTrades(ctx context.Context) (int, error) {
	q := fmt.Sprintf("SELECT count() FROM %s WHERE status = 'open'", s.table(s.tradesTable))
	var n uint64
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count open trades: %w", err)
	}
	return int(n), nil
}

func (s *ClickHouseLog) RecentPrices(ctx context.Context, limit int) ([]models.PricePoint, error) {
	const qtpl = `
        SELECT symbol, argMax(price, ts) AS last, argMin(price, ts) AS first, max(ts) AS at
        FROM %s
        WHERE ts >= now() - INTERVAL 1 DAY
        GROUP BY symbol
        ORDER BY at DESC
        LIMIT ?
    `
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table(s.ticksTable)), limit)
	if err != nil {
		return nil, fmt.Errorf("recent prices: %w", err)
	}
	defer rows.Close()

	out := make([]models.PricePoint, 0, limit)
	for rows.Next() {
		var p models.PricePoint
		var first float64
		if err := rows.Scan(&p.Symbol, &p.Price, &first, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("recent prices scan: %w", err)
		}
		if first > 0 {
			p.Change24h = (p.Price - first) / first * 100
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if s.l != nil {
		s.l.Debug("clickhouse recent prices",
			applogger.Int("rows", len(out)),
			applogger.Duration("latency_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *ClickHouseLog) Close() error {
	return nil // pool owned by pkg/clickhouse
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

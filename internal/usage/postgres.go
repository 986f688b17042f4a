package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"llmgate/internal/migrations"

	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

const pgTimeout = 5 * time.Second

// PostgresLedger is the durable SQL backend, used when a DSN is configured.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger connects, migrates, and returns the ledger.
func NewPostgresLedger(dsn string) (*PostgresLedger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pgTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := migrations.PostgresUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	log.Info("connected to postgres usage ledger")
	return &PostgresLedger{db: db}, nil
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, pgTimeout)
}

// LogUsage implements Ledger. The raw log insert and the bucket upserts
// run in one transaction.
func (p *PostgresLedger) LogUsage(ctx context.Context, rec *Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.TotalTokens = rec.PromptTokens + rec.CompletionTokens

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin usage tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO usage_logs (ts, channel, tool, model, upstream_id, prompt_tokens, completion_tokens, total_tokens, price_usd)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.Timestamp, rec.Channel, rec.Tool, rec.Model, rec.UpstreamID,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.PriceUSD)
	if err != nil {
		return fmt.Errorf("insert usage log: %w", err)
	}

	for gran, bucket := range bucketsFor(rec.Timestamp) {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO usage_buckets (granularity, bucket, requests, tokens, price_usd)
			VALUES ($1, $2, 1, $3, $4)
			ON CONFLICT (granularity, bucket) DO UPDATE SET
				requests = usage_buckets.requests + 1,
				tokens = usage_buckets.tokens + EXCLUDED.tokens,
				price_usd = usage_buckets.price_usd + EXCLUDED.price_usd`,
			gran, bucket, rec.TotalTokens, rec.PriceUSD)
		if err != nil {
			return fmt.Errorf("upsert %s bucket: %w", gran, err)
		}
	}
	return tx.Commit()
}

// bucketsFor formats the daily, weekly (ISO year-week), and monthly bucket
// keys for a timestamp.
func bucketsFor(ts time.Time) map[string]string {
	isoYear, isoWeek := ts.ISOWeek()
	return map[string]string{
		"daily":   ts.Format("2006-01-02"),
		"weekly":  fmt.Sprintf("%d-W%02d", isoYear, isoWeek),
		"monthly": ts.Format("2006-01"),
	}
}

// SummaryForRange implements Ledger.
func (p *PostgresLedger) SummaryForRange(ctx context.Context, rng string) (Summary, error) {
	rng = normalizeRange(rng)
	since := periodStart(rng, time.Now())

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	out := Summary{Range: rng}
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_tokens), 0), COALESCE(SUM(price_usd), 0)
		FROM usage_logs WHERE ts >= $1`, since).
		Scan(&out.Requests, &out.Tokens, &out.PriceUSD)
	if err != nil {
		return out, fmt.Errorf("usage summary: %w", err)
	}
	return out, nil
}

// Series implements Ledger.
func (p *PostgresLedger) Series(ctx context.Context, days int) ([]SeriesPoint, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
		SELECT TO_CHAR(ts, 'YYYY-MM-DD') AS day, COALESCE(SUM(total_tokens), 0), COALESCE(SUM(price_usd), 0)
		FROM usage_logs WHERE ts >= $1
		GROUP BY day ORDER BY day`, since)
	if err != nil {
		return nil, fmt.Errorf("usage series: %w", err)
	}
	defer rows.Close()

	var out []SeriesPoint
	for rows.Next() {
		var pt SeriesPoint
		if err := rows.Scan(&pt.Date, &pt.Tokens, &pt.PriceUSD); err != nil {
			return nil, fmt.Errorf("scan series point: %w", err)
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

// ChannelsBreakdown implements Ledger.
func (p *PostgresLedger) ChannelsBreakdown(ctx context.Context, since time.Time) ([]ChannelStat, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
		SELECT channel, COUNT(*), COALESCE(SUM(total_tokens), 0), COALESCE(SUM(price_usd), 0)
		FROM usage_logs WHERE ts >= $1
		GROUP BY channel ORDER BY COUNT(*) DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("channels breakdown: %w", err)
	}
	defer rows.Close()

	var out []ChannelStat
	for rows.Next() {
		var st ChannelStat
		if err := rows.Scan(&st.Channel, &st.Requests, &st.Tokens, &st.PriceUSD); err != nil {
			return nil, fmt.Errorf("scan channel stat: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ModelsCostSince implements Ledger.
func (p *PostgresLedger) ModelsCostSince(ctx context.Context, since time.Time) ([]ModelCost, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
		SELECT model, COUNT(*), COALESCE(SUM(price_usd), 0)
		FROM usage_logs WHERE ts >= $1
		GROUP BY model ORDER BY SUM(price_usd) DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("models cost: %w", err)
	}
	defer rows.Close()

	var out []ModelCost
	for rows.Next() {
		var mc ModelCost
		if err := rows.Scan(&mc.Model, &mc.Requests, &mc.PriceUSD); err != nil {
			return nil, fmt.Errorf("scan model cost: %w", err)
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

// RecentLogs implements Ledger, newest first.
func (p *PostgresLedger) RecentLogs(ctx context.Context, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
		SELECT ts, channel, tool, model, upstream_id, prompt_tokens, completion_tokens, total_tokens, price_usd
		FROM usage_logs ORDER BY ts DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("recent logs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Timestamp, &rec.Channel, &rec.Tool, &rec.Model, &rec.UpstreamID,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens, &rec.PriceUSD); err != nil {
			return nil, fmt.Errorf("scan usage log: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LogsCount implements Ledger.
func (p *PostgresLedger) LogsCount(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var n int64
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM usage_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("logs count: %w", err)
	}
	return n, nil
}

// SpentForPeriod implements Ledger.
func (p *PostgresLedger) SpentForPeriod(ctx context.Context, period string) (float64, error) {
	s, err := p.SummaryForRange(ctx, period)
	if err != nil {
		return 0, err
	}
	return s.PriceUSD, nil
}

// Close implements Ledger.
func (p *PostgresLedger) Close() error { return p.db.Close() }

package usage

import (
	"context"
	"time"
)

// Record is one logged request in the usage ledger.
type Record struct {
	Timestamp        time.Time `json:"timestamp"`
	Channel          string    `json:"channel"`
	Tool             string    `json:"tool,omitempty"`
	Model            string    `json:"model"`
	UpstreamID       string    `json:"upstream_id,omitempty"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	TotalTokens      int64     `json:"total_tokens"`
	PriceUSD         float64   `json:"price_usd"`
}

// Summary aggregates requests over a range.
type Summary struct {
	Range    string  `json:"range"`
	Requests int64   `json:"requests"`
	Tokens   int64   `json:"tokens"`
	PriceUSD float64 `json:"price_usd"`
}

// SeriesPoint is one day of aggregated usage.
type SeriesPoint struct {
	Date     string  `json:"date"`
	Tokens   int64   `json:"tokens"`
	PriceUSD float64 `json:"price_usd"`
}

// ChannelStat is per-dialect usage.
type ChannelStat struct {
	Channel  string  `json:"channel"`
	Requests int64   `json:"requests"`
	Tokens   int64   `json:"tokens"`
	PriceUSD float64 `json:"price_usd"`
}

// ModelCost is per-model spend since a cutoff.
type ModelCost struct {
	Model    string  `json:"model"`
	Requests int64   `json:"requests"`
	PriceUSD float64 `json:"price_usd"`
}

// Ledger persists usage records and answers the read-side queries.
type Ledger interface {
	LogUsage(ctx context.Context, rec *Record) error
	SummaryForRange(ctx context.Context, rng string) (Summary, error)
	Series(ctx context.Context, days int) ([]SeriesPoint, error)
	ChannelsBreakdown(ctx context.Context, since time.Time) ([]ChannelStat, error)
	ModelsCostSince(ctx context.Context, since time.Time) ([]ModelCost, error)
	RecentLogs(ctx context.Context, limit, offset int) ([]Record, error)
	LogsCount(ctx context.Context) (int64, error)
	SpentForPeriod(ctx context.Context, period string) (float64, error)
	Close() error
}

// periodStart returns the inclusive lower bound of a budget period.
// daily means the current calendar day; weekly and monthly are rolling
// 7- and 30-day windows.
func periodStart(period string, now time.Time) time.Time {
	switch period {
	case "weekly":
		return now.AddDate(0, 0, -7)
	case "monthly":
		return now.AddDate(0, 0, -30)
	default:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}
}

package usage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// FileLedger keeps the ledger as an append-only JSONL file with records
// mirrored in memory for queries. It is the default backend when no
// Postgres DSN is configured.
type FileLedger struct {
	mu      sync.RWMutex
	path    string
	records []Record
	file    *os.File
}

// NewFileLedger opens or creates the ledger file and loads its records.
func NewFileLedger(dataDir string) (*FileLedger, error) {
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dataDir, "usage.jsonl")

	l := &FileLedger{path: path}
	if err := l.load(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	l.file = f
	return l, nil
}

func (l *FileLedger) load() error {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			log.WithError(err).Warn("skipping corrupt usage record")
			continue
		}
		l.records = append(l.records, rec)
	}
	return scanner.Err()
}

// LogUsage implements Ledger.
func (l *FileLedger) LogUsage(ctx context.Context, rec *Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.TotalTokens = rec.PromptTokens + rec.CompletionTokens

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return err
	}
	l.records = append(l.records, *rec)
	return nil
}

// SummaryForRange implements Ledger. Range is daily, weekly, or monthly;
// anything else is treated as daily.
func (l *FileLedger) SummaryForRange(ctx context.Context, rng string) (Summary, error) {
	since := periodStart(normalizeRange(rng), time.Now())

	l.mu.RLock()
	defer l.mu.RUnlock()

	out := Summary{Range: normalizeRange(rng)}
	for i := range l.records {
		if l.records[i].Timestamp.Before(since) {
			continue
		}
		out.Requests++
		out.Tokens += l.records[i].TotalTokens
		out.PriceUSD += l.records[i].PriceUSD
	}
	return out, nil
}

// Series implements Ledger.
func (l *FileLedger) Series(ctx context.Context, days int) ([]SeriesPoint, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days)

	l.mu.RLock()
	defer l.mu.RUnlock()

	byDate := make(map[string]*SeriesPoint)
	for i := range l.records {
		rec := &l.records[i]
		if rec.Timestamp.Before(since) {
			continue
		}
		key := rec.Timestamp.Format("2006-01-02")
		pt, ok := byDate[key]
		if !ok {
			pt = &SeriesPoint{Date: key}
			byDate[key] = pt
		}
		pt.Tokens += rec.TotalTokens
		pt.PriceUSD += rec.PriceUSD
	}

	var out []SeriesPoint
	for d := 0; d <= days; d++ {
		key := since.AddDate(0, 0, d).Format("2006-01-02")
		if pt, ok := byDate[key]; ok {
			out = append(out, *pt)
		}
	}
	return out, nil
}

// ChannelsBreakdown implements Ledger.
func (l *FileLedger) ChannelsBreakdown(ctx context.Context, since time.Time) ([]ChannelStat, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	byChannel := make(map[string]*ChannelStat)
	var order []string
	for i := range l.records {
		rec := &l.records[i]
		if rec.Timestamp.Before(since) {
			continue
		}
		st, ok := byChannel[rec.Channel]
		if !ok {
			st = &ChannelStat{Channel: rec.Channel}
			byChannel[rec.Channel] = st
			order = append(order, rec.Channel)
		}
		st.Requests++
		st.Tokens += rec.TotalTokens
		st.PriceUSD += rec.PriceUSD
	}

	out := make([]ChannelStat, 0, len(order))
	for _, ch := range order {
		out = append(out, *byChannel[ch])
	}
	return out, nil
}

// ModelsCostSince implements Ledger.
func (l *FileLedger) ModelsCostSince(ctx context.Context, since time.Time) ([]ModelCost, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	byModel := make(map[string]*ModelCost)
	var order []string
	for i := range l.records {
		rec := &l.records[i]
		if rec.Timestamp.Before(since) {
			continue
		}
		mc, ok := byModel[rec.Model]
		if !ok {
			mc = &ModelCost{Model: rec.Model}
			byModel[rec.Model] = mc
			order = append(order, rec.Model)
		}
		mc.Requests++
		mc.PriceUSD += rec.PriceUSD
	}

	out := make([]ModelCost, 0, len(order))
	for _, m := range order {
		out = append(out, *byModel[m])
	}
	return out, nil
}

// RecentLogs implements Ledger, newest first.
func (l *FileLedger) RecentLogs(ctx context.Context, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.records)
	start := n - offset - limit
	end := n - offset
	if end <= 0 {
		return nil, nil
	}
	if start < 0 {
		start = 0
	}

	out := make([]Record, 0, end-start)
	for i := end - 1; i >= start; i-- {
		out = append(out, l.records[i])
	}
	return out, nil
}

// LogsCount implements Ledger.
func (l *FileLedger) LogsCount(ctx context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.records)), nil
}

// SpentForPeriod implements Ledger.
func (l *FileLedger) SpentForPeriod(ctx context.Context, period string) (float64, error) {
	s, err := l.SummaryForRange(ctx, period)
	if err != nil {
		return 0, err
	}
	return s.PriceUSD, nil
}

// Close implements Ledger.
func (l *FileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func normalizeRange(rng string) string {
	switch rng {
	case "weekly", "monthly":
		return rng
	default:
		return "daily"
	}
}

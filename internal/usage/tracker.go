package usage

import (
	"context"
	"time"

	"llmgate/internal/events"

	log "github.com/sirupsen/logrus"
)

const trackerQueueSize = 256

// Tracker records usage asynchronously so forwarding never blocks on
// the ledger backend.
type Tracker struct {
	ledger Ledger
	hub    *events.Hub
	queue  chan *Record
	done   chan struct{}
}

func NewTracker(ledger Ledger, hub *events.Hub) *Tracker {
	return &Tracker{
		ledger: ledger,
		hub:    hub,
		queue:  make(chan *Record, trackerQueueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the background writer.
func (t *Tracker) Start() {
	go t.run()
}

// Stop drains the queue and stops the writer.
func (t *Tracker) Stop() {
	close(t.queue)
	<-t.done
}

// Track enqueues a record. When the queue is full the record is
// dropped with a warning instead of blocking the request path.
func (t *Tracker) Track(rec *Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.TotalTokens = rec.PromptTokens + rec.CompletionTokens

	select {
	case t.queue <- rec:
	default:
		log.WithFields(log.Fields{
			"model":   rec.Model,
			"channel": rec.Channel,
		}).Warn("usage queue full, dropping record")
	}
}

func (t *Tracker) run() {
	defer close(t.done)
	for rec := range t.queue {
		ctx, cancel := context.WithTimeout(context.Background(), pgTimeout)
		err := t.ledger.LogUsage(ctx, rec)
		cancel()
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"model":   rec.Model,
				"channel": rec.Channel,
			}).Error("log usage")
			continue
		}
		if t.hub != nil {
			t.hub.Publish(events.TopicUsageLogged, rec)
		}
	}
}

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"AlphaDesk/internal/domain/models"
	"AlphaDesk/pkg/cache"
	"AlphaDesk/pkg/kafka"
	applogger "AlphaDesk/pkg/logger"
)

const whaleTTL = 24 * time.Hour

// WhaleFeed consumes whale alerts from Kafka and keeps the newest window of
// them, newest first, under cache.WhalesKey for the context builder.
type WhaleFeed struct {
	topic  string
	window int
	cache  cache.Service
	l      *applogger.Logger
	now    func() time.Time

	mu sync.Mutex
}

func NewWhaleFeed(topic string, window int, c cache.Service, l *applogger.Logger) *WhaleFeed {
	if window <= 0 {
		window = 50
	}
	return &WhaleFeed{topic: topic, window: window, cache: c, l: l, now: time.Now}
}

func (w *WhaleFeed) Topic() string { return w.topic }

// Handle decodes one alert. Undecodable or invalid payloads are permanent failures.
func (w *WhaleFeed) Handle(ctx context.Context, data []byte) error {
	var alert models.WhaleAlert
	if err := json.Unmarshal(data, &alert); err != nil {
		return kafka.Permanent(fmt.Errorf("decode whale alert: %w", err))
	}
	alert.Symbol = strings.ToUpper(strings.TrimSpace(alert.Symbol))
	if alert.Symbol == "" || alert.AmountUSD <= 0 {
		return kafka.Permanent(errors.New("whale alert needs a symbol and a positive amount"))
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = w.now().UTC()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	current, _, err := cache.GetTyped[[]models.WhaleAlert](ctx, w.cache, cache.WhalesKey)
	if err != nil {
		return fmt.Errorf("load whale window: %w", err)
	}
	next := make([]models.WhaleAlert, 0, w.window)
	next = append(next, alert)
	for _, a := range current {
		if len(next) == w.window {
			break
		}
		next = append(next, a)
	}
	if err := w.cache.Set(ctx, cache.WhalesKey, next, whaleTTL); err != nil {
		return fmt.Errorf("store whale window: %w", err)
	}

	w.l.Debug("whale alert stored",
		applogger.String("symbol", alert.Symbol),
		applogger.Float64("amount_usd", alert.AmountUSD),
		applogger.Int("window", len(next)),
	)
	return nil
}

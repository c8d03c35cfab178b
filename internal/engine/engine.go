package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rememberme/rememberme/internal/apperr"
	"github.com/rememberme/rememberme/internal/config"
	"github.com/rememberme/rememberme/internal/llm"
	"github.com/rememberme/rememberme/internal/metrics"
	"github.com/rememberme/rememberme/internal/store"
)

// RescuePeriod is how often the background timer runs the weekly rescue.
const RescuePeriod = 7 * 24 * time.Hour

var tracer = otel.Tracer("github.com/rememberme/rememberme/internal/engine")

// Engine orchestrates AI summaries, note extraction, duplicate merging and
// the weekly rescue job.
type Engine struct {
	DB      *store.DB
	LLM     llm.Client
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Rescue  config.RescueConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a new Engine. A nil logger is replaced with a no-op one.
func New(db *store.DB, client llm.Client, logger *zap.Logger, rescue config.RescueConfig) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		DB:     db,
		LLM:    client,
		Logger: logger,
		Rescue: rescue,
		now:    func() time.Time { return time.Now().UTC() },
		sleep:  sleepCtx,
		stopCh: make(chan struct{}),
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// complete runs one AI call under a span, counts it, and maps provider
// failures to apperr kinds.
func (e *Engine) complete(ctx context.Context, operation, prompt string) (string, error) {
	if e.LLM == nil {
		return "", apperr.Unavailable("AI is not configured", nil)
	}

	ctx, span := tracer.Start(ctx, "llm."+operation, trace.WithAttributes(
		attribute.Int("prompt.chars", len(prompt)),
	))
	defer span.End()

	resp, err := e.LLM.Complete(ctx, prompt)
	e.Metrics.ObserveAI(operation, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, llm.ErrUnavailable) {
			return "", apperr.Unavailable("AI provider is temporarily unavailable", err)
		}
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return "", apperr.Wrap(err, "AI request failed")
		}
		return "", apperr.Unavailable("AI request failed", err)
	}
	span.SetAttributes(attribute.String("llm.provider", resp.Provider), attribute.Int("llm.tokens", resp.TokensUsed))
	return strings.TrimSpace(resp.Content), nil
}

// StartRescueTimer runs WeeklyRescue every RescuePeriod until Stop.
func (e *Engine) StartRescueTimer() {
	go func() {
		ticker := time.NewTicker(RescuePeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithCancel(context.Background())
				go func() {
					select {
					case <-e.stopCh:
						cancel()
					case <-ctx.Done():
					}
				}()
				report, err := e.WeeklyRescue(ctx)
				cancel()
				if err != nil {
					e.Logger.Error("weekly rescue failed", zap.Error(err))
					continue
				}
				e.Logger.Info("weekly rescue finished", report.fields()...)
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines. Safe to call twice.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

func requireUser(userID string) error {
	if userID == "" {
		return apperr.Unauthorized("missing user")
	}
	return nil
}

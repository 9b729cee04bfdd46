// Package notify delivers engine state-change events.
package notify

import (
	"go.uber.org/zap"

	"github.com/vitos/gridpool/internal/domain"
)

// ZapNotifier logs every event.
type ZapNotifier struct {
	logger *zap.Logger
}

func NewZapNotifier(logger *zap.Logger) *ZapNotifier {
	return &ZapNotifier{logger: logger}
}

func (n *ZapNotifier) Publish(event domain.Event) {
	fields := []zap.Field{
		zap.String("event", string(event.Type)),
		zap.Time("at", event.At),
	}
	if event.Type == domain.EventLevelExecuted {
		fields = append(fields,
			zap.Int("level", event.LevelIndex),
			zap.String("side", string(event.Side)),
			zap.String("amount_in", event.AmountIn.String()),
			zap.String("amount_out", event.AmountOut.String()))
	}
	if event.Detail != "" {
		fields = append(fields, zap.String("detail", event.Detail))
	}
	n.logger.Info("engine event", fields...)
}

// Multi fans an event out to several notifiers.
type Multi []domain.Notifier

func (m Multi) Publish(event domain.Event) {
	for _, n := range m {
		n.Publish(event)
	}
}

package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/casa-azul-api/pkg/events"
)

const dashboardCachePattern = "dash:*"

// ChangeNotifier runs the side effects of a committed ledger change: the
// domain event and dashboard cache invalidation. Failures are logged only.
type ChangeNotifier struct {
	publisher events.Publisher
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewChangeNotifier constructs a notifier. Every dependency may be nil.
func NewChangeNotifier(publisher events.Publisher, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *ChangeNotifier {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChangeNotifier{publisher: publisher, cache: cache, metrics: metrics, logger: logger}
}

// Notify publishes eventType and drops cached dashboards.
func (n *ChangeNotifier) Notify(ctx context.Context, eventType, actorID string, payload interface{}) {
	if n == nil {
		return
	}
	n.cache.Invalidate(ctx, dashboardCachePattern)
	err := n.publisher.Publish(ctx, eventType, actorID, payload)
	n.metrics.RecordEvent(eventType, err)
	if err != nil {
		n.logger.Warn("publish domain event failed", zap.String("type", eventType), zap.Error(err))
	}
}

// Touch drops cached dashboards after a catalog change that has no event.
func (n *ChangeNotifier) Touch(ctx context.Context) {
	if n == nil {
		return
	}
	n.cache.Invalidate(ctx, dashboardCachePattern)
}

package moderation

import (
	"context"
	"time"

	"github.com/yungbote/huddle-backend/internal/observability"
	"github.com/yungbote/huddle-backend/internal/platform/ctxutil"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
	platmod "github.com/yungbote/huddle-backend/internal/platform/moderation"
)

type Filter struct {
	log        *logger.Logger
	classifier platmod.Classifier
	policy     Policy
	timeout    time.Duration
	metrics    *observability.Metrics
}

func NewFilter(log *logger.Logger, classifier platmod.Classifier, policy Policy, timeout time.Duration, metrics *observability.Metrics) *Filter {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Filter{
		log:        log.With("service", "ModerationFilter"),
		classifier: classifier,
		policy:     policy,
		timeout:    timeout,
		metrics:    metrics,
	}
}

// Check never returns an error: a classifier failure is an indeterminate
// outcome and the policy blocks it.
func (f *Filter) Check(ctx context.Context, text string, dir Direction) Verdict {
	outcome, categories := f.classify(ctx, text, dir)
	v := f.policy.Resolve(dir, outcome, categories)

	f.metrics.IncModeration(string(dir), string(v.Outcome), v.Blocked)
	if !v.Safe {
		f.log.Warn("moderation flagged text",
			"request_id", ctxutil.RequestID(ctx),
			"direction", dir,
			"outcome", v.Outcome,
			"categories", v.Categories,
			"blocked", v.Blocked,
		)
	}
	return v
}

func (f *Filter) classify(ctx context.Context, text string, dir Direction) (Outcome, []string) {
	if f.classifier == nil {
		f.log.Error("no moderation classifier configured", "request_id", ctxutil.RequestID(ctx))
		return OutcomeIndeterminate, nil
	}

	role := platmod.RoleUser
	if dir == DirectionOutput {
		role = platmod.RoleAssistant
	}

	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	res, err := f.classifier.Classify(cctx, role, text)
	if err != nil {
		f.log.Error("moderation classifier failed",
			"request_id", ctxutil.RequestID(ctx),
			"direction", dir,
			"error", err,
		)
		return OutcomeIndeterminate, nil
	}
	if res.Safe {
		return OutcomeSafe, res.Categories
	}
	return OutcomeUnsafe, res.Categories
}

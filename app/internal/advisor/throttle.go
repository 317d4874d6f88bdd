package advisor

import (
	"context"
	"fmt"
	"log"
	"time"

	"sysadvisor/app/internal/cache"
	"sysadvisor/app/internal/ratelimit"
)

// ReuseWindow is how long a previous answer may stand in for a throttled
// call.
const ReuseWindow = time.Minute

// Throttled caps calls to an upstream Recommender. When the budget is
// spent the last answer is reused while it is fresh.
type Throttled struct {
	next    Recommender
	key     string
	limiter *ratelimit.Limiter
	last    *cache.Cache[*Advice]
}

// NewThrottled allows perMinute calls through to next. perMinute <= 0
// disables the limit. key separates budgets, typically the model name.
func NewThrottled(next Recommender, perMinute int, key string) *Throttled {
	t := &Throttled{
		next: next,
		key:  key,
		last: cache.New[*Advice](ReuseWindow),
	}
	if perMinute > 0 {
		t.limiter = ratelimit.New(ratelimit.Config{TokensPerMinute: perMinute})
	}
	return t
}

// Recommend implements Recommender.
func (t *Throttled) Recommend(ctx context.Context, reportText string) (*Advice, error) {
	if t.limiter != nil && !t.limiter.Allow(t.key) {
		if entry, ok := t.last.Lookup(t.key); ok {
			log.Printf("Recommendation throttled, reusing answer from %s", entry.StoredAt.Format(time.TimeOnly))
			return entry.Value, nil
		}
		return nil, fmt.Errorf("%w: rate limited", ErrUnavailable)
	}

	advice, err := t.next.Recommend(ctx, reportText)
	if err != nil {
		return nil, err
	}
	t.last.Set(t.key, advice)
	return advice, nil
}

// Close stops background sweepers.
func (t *Throttled) Close() {
	if t.limiter != nil {
		t.limiter.Stop()
	}
	t.last.Stop()
}

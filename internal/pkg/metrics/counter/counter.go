package counter

import (
	"context"
	"strconv"

	"github.com/renewalworks/billingd/internal/pkg/cache"
)

const (
	runsKey     = "renewal:counters:runs"
	rowsKey     = "renewal:counters:rows"
	paymentsKey = "renewal:counters:payments"
)

// RecordRun increments the per-status run counter and accumulates the run's
// row totals. Callers treat a failure here as non-fatal.
func RecordRun(status string, inserted, published int) error {
	ctx := context.Background()
	rdb := cache.GetClient()

	if err := rdb.HIncrBy(ctx, runsKey, status, 1).Err(); err != nil {
		return err
	}
	if inserted > 0 {
		if err := rdb.HIncrBy(ctx, rowsKey, "inserted", int64(inserted)).Err(); err != nil {
			return err
		}
	}
	if published > 0 {
		if err := rdb.HIncrBy(ctx, rowsKey, "published", int64(published)).Err(); err != nil {
			return err
		}
	}
	return nil
}

// RecordPayment increments the per-status payment counter.
func RecordPayment(status string) error {
	return cache.GetClient().HIncrBy(context.Background(), paymentsKey, status, 1).Err()
}

// Snapshot reads all counters as a flat map for the stats endpoint.
func Snapshot() (map[string]int64, error) {
	ctx := context.Background()
	rdb := cache.GetClient()
	out := make(map[string]int64)

	for prefix, key := range map[string]string{
		"runs":     runsKey,
		"rows":     rowsKey,
		"payments": paymentsKey,
	} {
		data, err := rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		for field, raw := range data {
			n, perr := strconv.ParseInt(raw, 10, 64)
			if perr != nil {
				continue
			}
			out[prefix+"."+field] = n
		}
	}
	return out, nil
}

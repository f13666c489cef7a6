package jobs

import (
	"context"
	"errors"
	"time"

	"igharvest/internal/harvest"
	"igharvest/internal/logging"
)

// RunHarvestOnce harvests each activity in turn. An activity that is not
// tracking is skipped. Failures of one activity do not stop the others;
// they are joined into the returned error.
func RunHarvestOnce(ctx context.Context, h harvest.Harvestable, activityIDs []int64) error {
	var errs []error
	for _, id := range activityIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !h.Tracking(ctx, id) {
			logging.Info("harvest_skipped", map[string]any{"activity_id": id, "reason": "not tracking"})
			continue
		}
		res, err := h.Harvest(ctx, id)
		if err != nil {
			logging.Error("harvest_error", map[string]any{"activity_id": id, "error": err})
			errs = append(errs, err)
			continue
		}
		logging.Info("harvest_once", map[string]any{
			"activity_id":  id,
			"run_id":       res.RunID,
			"interactions": res.Interactions,
			"errors":       len(res.Errors),
		})
	}
	return errors.Join(errs...)
}

// DefaultInterval is used by RunHarvestLoop when no positive interval is given.
const DefaultInterval = time.Hour

// RunHarvestLoop runs RunHarvestOnce on a ticker until ctx is cancelled.
func RunHarvestLoop(ctx context.Context, h harvest.Harvestable, activityIDs []int64, interval time.Duration) error {
	if interval <= 0 {
		logging.Warn("harvest_interval_default", map[string]any{"configured": interval.String(), "interval": DefaultInterval.String()})
		interval = DefaultInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	// run immediately
	if err := RunHarvestOnce(ctx, h, activityIDs); err != nil && ctx.Err() == nil {
		logging.Error("harvest_once_error", map[string]any{"error": err})
	}
	for {
		select {
		case <-ctx.Done():
			logging.Info("harvest_loop_stop", nil)
			return ctx.Err()
		case <-t.C:
			if err := RunHarvestOnce(ctx, h, activityIDs); err != nil && ctx.Err() == nil {
				logging.Error("harvest_once_error", map[string]any{"error": err})
			}
		}
	}
}

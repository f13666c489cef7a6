// Package harvest collects interactions of an activity from the platform.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"igharvest/internal/config"
	"igharvest/internal/igclient"
	"igharvest/internal/kpi"
	"igharvest/internal/logging"
	"igharvest/internal/metrics"
	"igharvest/internal/model"
	"igharvest/internal/normalize"
	"igharvest/internal/tagfilter"
)

// Harvestable is the capability a connector exposes to the scheduler.
type Harvestable interface {
	Harvest(ctx context.Context, activityID int64) (*Result, error)
	KPIList() []kpi.Info
	ConnectionToken(ctx context.Context, activityID int64) (*model.AccountToken, error)
	Tracking(ctx context.Context, activityID int64) bool
}

// Result reports one harvest run. Errors is also mirrored in Messages.
type Result struct {
	RunID               string
	Errors              []string
	Messages            []string
	Interactions        int
	StudentInteractions int
	KPIs                kpi.Set
}

func (r *Result) message(msg string) { r.Messages = append(r.Messages, msg) }

func (r *Result) fail(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Messages = append(r.Messages, msg)
	metrics.HarvestErrors.Inc()
}

// Harvester runs harvests sequentially, one account at a time.
// Callers must not run two harvests of the same activity concurrently.
type Harvester struct {
	client igclient.Client
	stores Stores
	cfg    config.HarvestConfig
	now    func() time.Time
}

var _ Harvestable = (*Harvester)(nil)

func New(client igclient.Client, stores Stores, cfg config.HarvestConfig) *Harvester {
	return &Harvester{client: client, stores: stores, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Harvest fetches, normalizes and stores the activity's interactions, then
// recomputes its KPIs. Account level failures are reported in the Result;
// only a missing activity or an unreadable token store is returned as error.
func (h *Harvester) Harvest(ctx context.Context, activityID int64) (*Result, error) {
	start := time.Now()
	metrics.HarvestRuns.Inc()
	defer metrics.ObserveHarvestDuration(start)

	act, err := h.stores.Activities.Activity(ctx, activityID)
	if err != nil {
		metrics.HarvestErrors.Inc()
		return nil, fmt.Errorf("load activity %d: %w", activityID, err)
	}
	r := &run{
		h:     h,
		act:   act,
		expr:  tagfilter.Parse(act.Search),
		norm:  normalize.New(h.cfg.MinWords, h.stores.Users.Resolver(activityID)),
		res:   &Result{RunID: uuid.NewString()},
		batch: newBatch(),
	}
	logging.Info("harvest_start", map[string]any{"run_id": r.res.RunID, "activity_id": act.ID, "mode": string(act.Mode)})

	if act.Mode == model.ModeTag && r.expr.MatchesAll() {
		r.res.fail(r.diagnostic(errors.New("tag search needs at least one tag")))
		return r.res, nil
	}
	tokens, err := h.tokensFor(ctx, act)
	if err != nil {
		metrics.HarvestErrors.Inc()
		return nil, fmt.Errorf("load tokens of activity %d: %w", activityID, err)
	}
	if len(tokens) == 0 {
		r.res.message(r.diagnostic(errors.New("no connected accounts")))
		logging.Warn("harvest_no_tokens", map[string]any{"run_id": r.res.RunID, "activity_id": act.ID})
		return r.res, nil
	}
	for _, tok := range tokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.account(ctx, tok)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.finish(ctx)
	return r.res, nil
}

func (h *Harvester) tokensFor(ctx context.Context, act *model.Activity) ([]model.AccountToken, error) {
	if act.Mode == model.ModeTag {
		t, err := h.stores.Tokens.MasterToken(ctx, act.ID)
		if err != nil || t == nil {
			return nil, err
		}
		return []model.AccountToken{*t}, nil
	}
	return h.stores.Tokens.UserTokens(ctx, act.ID, nil)
}

// KPIList describes the indicators Harvest stores. Names are the same in both
// modes; see kpi.Catalogue for the per-mode scopes.
func (h *Harvester) KPIList() []kpi.Info {
	return kpi.Catalogue(model.ModeUser)
}

func (h *Harvester) ConnectionToken(ctx context.Context, activityID int64) (*model.AccountToken, error) {
	return h.stores.Tokens.MasterToken(ctx, activityID)
}

// Tracking reports whether harvesting the activity can produce anything:
// a search expression is configured, and tag mode also needs at least one
// tag to query and a master token.
func (h *Harvester) Tracking(ctx context.Context, activityID int64) bool {
	act, err := h.stores.Activities.Activity(ctx, activityID)
	if err != nil || act.Search == "" {
		return false
	}
	switch act.Mode {
	case model.ModeTag:
		if tagfilter.Parse(act.Search).MatchesAll() {
			return false
		}
		t, err := h.stores.Tokens.MasterToken(ctx, activityID)
		return err == nil && t != nil
	case model.ModeUser:
		return true
	default:
		return false
	}
}

// DeleteInstance removes everything this connector stored for the activity.
// Every step is attempted; failures are joined.
func (h *Harvester) DeleteInstance(ctx context.Context, activityID int64) error {
	var errs []error
	if err := h.stores.Interactions.DeleteForActivity(ctx, activityID, model.Source); err != nil {
		errs = append(errs, fmt.Errorf("delete interactions: %w", err))
	}
	if err := h.stores.Tokens.DeleteTokens(ctx, activityID); err != nil {
		errs = append(errs, fmt.Errorf("delete tokens: %w", err))
	}
	if err := h.stores.Users.DeleteLinks(ctx, activityID); err != nil {
		errs = append(errs, fmt.Errorf("delete links: %w", err))
	}
	err := errors.Join(errs...)
	logging.Info("delete_instance", map[string]any{"activity_id": activityID, "ok": err == nil})
	return err
}

package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"igharvest/internal/igclient"
	"igharvest/internal/kpi"
	"igharvest/internal/logging"
	"igharvest/internal/metrics"
	"igharvest/internal/model"
	"igharvest/internal/normalize"
	"igharvest/internal/tagfilter"
)

// run is the state of one Harvest call.
type run struct {
	h     *Harvester
	act   *model.Activity
	expr  tagfilter.Expr
	norm  *normalize.Normalizer
	res   *Result
	batch *batch
}

// Account outcomes.
type outcome int

const (
	succeeded outcome = iota
	rateLimited
	failed
)

// account runs the Fetching state of one token and converges it to an outcome.
func (r *run) account(ctx context.Context, tok model.AccountToken) {
	fields := map[string]any{"run_id": r.res.RunID, "activity_id": r.act.ID, "token_id": tok.ID}
	before := r.batch.len()
	err := r.fetch(ctx, tok)
	if ctx.Err() != nil {
		return
	}
	now := r.h.now()
	tok.LastUsed = &now
	tok.ErrorStatus = nil

	var rl *igclient.RateLimitError
	res := succeeded
	switch {
	case err == nil:
		metrics.IncAccount(metrics.OutcomeSuccess)
	case errors.As(err, &rl):
		res = rateLimited
		metrics.IncAccount(metrics.OutcomeRateLimited)
		r.res.message(fmt.Sprintf("rate limit reached for account %q (token %d), remaining pages skipped: %v", tok.Username, tok.ID, rl))
	default:
		res = failed
		metrics.IncAccount(metrics.OutcomeFailed)
		status := r.diagnostic(err)
		tok.ErrorStatus = &status
		r.res.fail(status)
		r.res.message(fmt.Sprintf("updating token %d with %s", tok.ID, status))
	}
	fields["outcome"] = res.String()
	fields["interactions"] = r.batch.len() - before
	if err != nil {
		fields["error"] = err
	}
	logging.Info("harvest_account", fields)

	if err := r.h.stores.Tokens.UpsertToken(ctx, &tok); err != nil {
		r.res.fail(r.diagnostic(fmt.Errorf("update token %d: %w", tok.ID, err)))
	}
}

func (o outcome) String() string {
	switch o {
	case rateLimited:
		return metrics.OutcomeRateLimited
	case failed:
		return metrics.OutcomeFailed
	default:
		return metrics.OutcomeSuccess
	}
}

// fetch pages through the token's media, newest first. In tag mode every
// query tag of the expression is listed in turn; posts found under more than
// one tag collapse in the batch.
func (r *run) fetch(ctx context.Context, tok model.AccountToken) error {
	if r.act.Mode != model.ModeTag {
		return r.pages(ctx, tok, "", true)
	}
	for i, tag := range r.expr.QueryTags() {
		if err := r.pages(ctx, tok, tag, i == 0); err != nil {
			return err
		}
	}
	return nil
}

// pages walks one listing. clear resets the token's error status once its
// first page has been fetched.
func (r *run) pages(ctx context.Context, tok model.AccountToken, tag string, clear bool) error {
	cursor := ""
	for page := 1; ; page++ {
		p, err := r.list(ctx, tok, tag, cursor)
		if err != nil {
			return err
		}
		if page == 1 && clear {
			if err := r.h.stores.Tokens.ClearErrorStatus(ctx, tok.ID); err != nil {
				return fmt.Errorf("clear error status: %w", err)
			}
		}
		if len(p.Media) == 0 {
			return nil
		}
		var oldest time.Time
		for _, m := range p.Media {
			created := m.CreatedTime.Time
			if !created.IsZero() && (oldest.IsZero() || created.Before(oldest)) {
				oldest = created
			}
			if !r.act.InWindow(created) || !r.expr.Admits(m.Tags) {
				continue
			}
			if err := r.post(ctx, tok, m); err != nil {
				return err
			}
		}
		if p.NextCursor == "" || (!r.act.Start.IsZero() && !oldest.IsZero() && oldest.Before(r.act.Start)) {
			return nil
		}
		cursor = p.NextCursor
	}
}

func (r *run) list(ctx context.Context, tok model.AccountToken, tag, cursor string) (igclient.Page, error) {
	if r.act.Mode == model.ModeTag {
		return r.h.client.ListTagMedia(ctx, tok.AccessToken, tag, cursor)
	}
	return r.h.client.ListUserMedia(ctx, tok.AccessToken, cursor)
}

// post normalizes m with its comments, reactions and mentions.
// Only client errors are returned; malformed payloads are skipped.
func (r *run) post(ctx context.Context, tok model.AccountToken, m igclient.Media) error {
	p, err := r.norm.NormalizePost(ctx, m)
	if err != nil {
		r.skip(err)
		return nil
	}
	r.batch.add(p)

	if m.Comments.Count > 0 {
		comments, err := r.h.client.ListComments(ctx, tok.AccessToken, m.ID)
		if err != nil {
			return err
		}
		r.batch.add(r.norm.NormalizeThread(ctx, comments, p)...)
	}
	if m.Likes.Count > 0 && r.h.cfg.FetchReactions {
		users, err := r.h.client.ListReactions(ctx, tok.AccessToken, m.ID)
		if err != nil {
			return err
		}
		for _, u := range users {
			i, err := r.norm.NormalizeReaction(ctx, u, p)
			if err != nil {
				r.skip(err)
				continue
			}
			r.batch.add(i)
		}
	}
	if r.h.cfg.FetchMentions {
		for _, tagged := range m.UsersInPhoto {
			i, err := r.norm.NormalizeMention(ctx, tagged.User, p)
			if err != nil {
				r.skip(err)
				continue
			}
			r.batch.add(i)
		}
	}
	return nil
}

func (r *run) skip(err error) {
	logging.Warn("payload_skipped", map[string]any{"run_id": r.res.RunID, "activity_id": r.act.ID, "error": err})
}

// finish persists the batch, recomputes KPIs and records the harvest time.
func (r *run) finish(ctx context.Context) {
	items := r.batch.items()
	students := 0
	perType := map[model.InteractionType]int{}
	for _, i := range items {
		perType[i.Type]++
		if i.IsStudent() {
			students++
		}
	}
	for t, n := range perType {
		metrics.AddInteractions(string(t), n)
	}
	r.res.Interactions = len(items)
	r.res.StudentInteractions = students

	stored := true
	if err := r.h.stores.Interactions.BulkInsert(ctx, r.act.ID, items); err != nil {
		stored = false
		r.res.fail(r.diagnostic(fmt.Errorf("store interactions: %w", err)))
	}
	if err := r.kpis(ctx); err != nil {
		r.res.fail(r.diagnostic(err))
	}
	if stored {
		if err := r.h.stores.Activities.SetLastHarvest(ctx, r.act.ID, r.h.now()); err != nil {
			r.res.fail(r.diagnostic(fmt.Errorf("record harvest time: %w", err)))
		}
	}
	r.res.message(fmt.Sprintf("%s found %d events, students' events: %d", r.label(), len(items), students))
	logging.Info("harvest_done", map[string]any{
		"run_id":       r.res.RunID,
		"activity_id":  r.act.ID,
		"interactions": len(items),
		"students":     students,
		"errors":       len(r.res.Errors),
	})
}

func (r *run) kpis(ctx context.Context) error {
	cohort, err := r.h.stores.Cohort.Cohort(ctx, r.act.ID)
	if err != nil {
		return fmt.Errorf("load cohort: %w", err)
	}
	end := r.act.End
	if end.IsZero() {
		end = r.h.now()
	}
	stored, err := r.h.stores.Interactions.Query(ctx, r.act.ID, r.act.Start, end)
	if err != nil {
		return fmt.Errorf("query interactions: %w", err)
	}
	r.res.KPIs = kpi.Aggregate(cohort, stored)
	if err := r.h.stores.KPIs.SaveKPIs(ctx, r.act.ID, r.res.KPIs); err != nil {
		return fmt.Errorf("save kpis: %w", err)
	}
	return nil
}

func (r *run) label() string {
	return fmt.Sprintf("activity %q (id=%d) in course (id=%d)", r.act.Name, r.act.ID, r.act.CourseID)
}

// diagnostic is the message recorded for a failure, also stored as token error status.
func (r *run) diagnostic(err error) string {
	return fmt.Sprintf("%s searching term %q: %v", r.label(), r.act.Search, err)
}

// batch collects interactions in arrival order; a later duplicate replaces the earlier one.
type batch struct {
	index map[string]int
	list  []model.Interaction
}

func newBatch() *batch { return &batch{index: map[string]int{}} }

func (b *batch) add(items ...model.Interaction) {
	for _, i := range items {
		if at, ok := b.index[i.Key()]; ok {
			b.list[at] = i
			continue
		}
		b.index[i.Key()] = len(b.list)
		b.list = append(b.list, i)
	}
}

func (b *batch) len() int { return len(b.list) }

func (b *batch) items() []model.Interaction { return b.list }

// Package pipeline runs search cycles: every active (owner, term) pair is
// searched, ranked against the owner's brand embedding and stored.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/newsjacker/internal/brief"
	"github.com/TobiSchelling/newsjacker/internal/database"
	"github.com/TobiSchelling/newsjacker/internal/fetch"
	"github.com/TobiSchelling/newsjacker/internal/logging"
	"github.com/TobiSchelling/newsjacker/internal/metrics"
	"github.com/TobiSchelling/newsjacker/internal/rank"
	"github.com/TobiSchelling/newsjacker/internal/search"
)

// Triggers.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// Outcome kinds of a single (owner, term) search.
const (
	KindOK         = "ok"
	KindSearch     = "search"
	KindEmbedding  = "embedding"
	KindStore      = "store"
	KindTimeout    = "timeout"
	KindCanceled   = "canceled"
	KindUnexpected = "unexpected"
)

// Searcher fetches normalized candidates for a term.
type Searcher interface {
	Search(ctx context.Context, term string, maxResults int) ([]search.Candidate, error)
}

// Ranker scores candidates against a brand embedding.
type Ranker interface {
	Rank(ctx context.Context, owner, term string, candidates []search.Candidate, brandEmbedding []float64) *rank.Result
}

// Enricher replaces thin snippets with full article text.
type Enricher interface {
	Enrich(ctx context.Context, candidates []search.Candidate) ([]search.Candidate, *fetch.Result)
}

// Briefer writes AI briefs for newly created opportunities.
type Briefer interface {
	GenerateBriefs(ctx context.Context, ownerID string, ids []int64, emotion string) ([]brief.Result, error)
}

// Triple is one unit of work: a term of an owner's active set.
type Triple struct {
	OwnerID        string
	Term           database.SearchTerm
	BrandEmbedding []float64
}

// TripleOutcome is the structured result of processing one Triple.
type TripleOutcome struct {
	OwnerID    string
	Term       database.SearchTerm
	Kind       string
	Err        error
	Found      int
	Enriched   int
	EnrichFail int
	Ranked     int
	Dropped    int
	CreatedIDs []int64
	Existing   int
	Duration   time.Duration
}

// OK reports whether the triple completed.
func (o TripleOutcome) OK() bool { return o.Kind == KindOK }

// CycleReport holds the outcome of every triple of one cycle.
type CycleReport struct {
	RunID      string
	Trigger    string
	OwnerID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []TripleOutcome
	Briefs     []brief.Result
}

// Succeeded counts triples that completed.
func (r *CycleReport) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed counts triples that did not complete.
func (r *CycleReport) Failed() int { return len(r.Outcomes) - r.Succeeded() }

// Created counts opportunities inserted by this cycle.
func (r *CycleReport) Created() int {
	n := 0
	for _, o := range r.Outcomes {
		n += len(o.CreatedIDs)
	}
	return n
}

// Summary is a one-line description of the cycle.
func (r *CycleReport) Summary() string {
	existing, dropped := 0, 0
	for _, o := range r.Outcomes {
		existing += o.Existing
		dropped += o.Dropped
	}
	return fmt.Sprintf("%d/%d searches succeeded: %d new opportunities, %d already known, %d dropped",
		r.Succeeded(), len(r.Outcomes), r.Created(), existing, dropped)
}

// Options tunes an Orchestrator. Zero values fall back to the sequential
// defaults.
type Options struct {
	MaxResults    int
	Concurrency   int
	TripleTimeout time.Duration
	BriefOnManual bool
	Enricher      Enricher
	Briefer       Briefer
}

// Orchestrator drives search cycles.
type Orchestrator struct {
	db       *database.DB
	searcher Searcher
	ranker   Ranker
	opts     Options
	now      func() time.Time
	closers  []func() error
}

// New creates an orchestrator.
func New(db *database.DB, searcher Searcher, ranker Ranker, opts Options) *Orchestrator {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 3
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.TripleTimeout <= 0 {
		opts.TripleTimeout = 2 * time.Minute
	}
	return &Orchestrator{db: db, searcher: searcher, ranker: ranker, opts: opts, now: time.Now}
}

// Close releases resources opened by FromConfig.
func (o *Orchestrator) Close() error {
	var errs []error
	for _, c := range o.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// RunCycle processes every active term set of every owner.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleReport, error) {
	return o.run(ctx, TriggerScheduled, "")
}

// RunManual processes the owner's active term set, or every owner's when
// ownerID is empty, then writes briefs for the opportunities it created.
func (o *Orchestrator) RunManual(ctx context.Context, ownerID string) (*CycleReport, error) {
	return o.run(ctx, TriggerManual, ownerID)
}

func (o *Orchestrator) run(ctx context.Context, trigger, ownerID string) (*CycleReport, error) {
	triples, err := o.loadTriples(ownerID)
	if err != nil {
		return nil, err
	}

	report := &CycleReport{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		OwnerID:   ownerID,
		StartedAt: o.now(),
		Outcomes:  make([]TripleOutcome, len(triples)),
	}
	logging.Info("search cycle started", "run_id", report.RunID, "trigger", trigger, "owner", ownerID, "triples", len(triples))

	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for i, t := range triples {
		g.Go(func() error {
			report.Outcomes[i] = o.processTriple(ctx, t)
			return nil
		})
	}
	g.Wait()

	if trigger == TriggerManual && o.opts.BriefOnManual && o.opts.Briefer != nil {
		report.Briefs = o.briefNew(ctx, report)
	}

	report.FinishedAt = o.now()
	o.record(report)
	logging.Info("search cycle finished", "run_id", report.RunID, "summary", report.Summary(),
		"duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	return report, nil
}

func (o *Orchestrator) loadTriples(ownerID string) ([]Triple, error) {
	var sets []database.SearchTermSet
	if ownerID == "" {
		all, err := o.db.GetActiveSearchTermSets()
		if err != nil {
			return nil, fmt.Errorf("loading active term sets: %w", err)
		}
		sets = all
	} else {
		set, err := o.db.GetActiveSearchTermSet(ownerID)
		if err != nil {
			return nil, fmt.Errorf("loading term set for %s: %w", ownerID, err)
		}
		if set != nil {
			sets = append(sets, *set)
		}
	}

	var triples []Triple
	for _, s := range sets {
		for _, term := range s.Terms {
			triples = append(triples, Triple{OwnerID: s.OwnerID, Term: term, BrandEmbedding: s.BrandEmbedding})
		}
	}
	return triples, nil
}

// processTriple runs fetch, rank and store for one term. It never panics and
// never returns an error; every failure is folded into the outcome.
func (o *Orchestrator) processTriple(parent context.Context, t Triple) (out TripleOutcome) {
	start := o.now()
	out = TripleOutcome{OwnerID: t.OwnerID, Term: t.Term}

	ctx, cancel := context.WithTimeout(parent, o.opts.TripleTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			out.Kind = KindUnexpected
			out.Err = fmt.Errorf("panic: %v", r)
			logging.Error("search term panicked", "owner", t.OwnerID, "term", t.Term.Term,
				"panic", r, "stack", string(debug.Stack()))
		}
		out.Duration = o.now().Sub(start)
		if !out.OK() {
			logging.Warn("search term failed", "owner", t.OwnerID, "term", t.Term.Term, "kind", out.Kind, "error", out.Err)
		}
		metrics.ObserveTriple(out.Kind, len(out.CreatedIDs), out.Existing, out.Dropped)
	}()

	if err := parent.Err(); err != nil {
		out.Kind, out.Err = KindCanceled, err
		return out
	}

	candidates, err := o.searcher.Search(ctx, t.Term.Term, o.opts.MaxResults)
	if err != nil {
		out.Kind, out.Err = classify(ctx, parent, KindSearch), err
		return out
	}
	out.Found = len(candidates)

	if o.opts.Enricher != nil && len(candidates) > 0 {
		var res *fetch.Result
		candidates, res = o.opts.Enricher.Enrich(ctx, candidates)
		if res != nil {
			out.Enriched, out.EnrichFail = res.Fetched, res.Failed
		}
	}

	ranked := o.ranker.Rank(ctx, t.OwnerID, t.Term.Term, candidates, t.BrandEmbedding)
	out.Ranked = len(ranked.Drafts)
	out.Dropped = len(ranked.Dropped)
	if out.Ranked == 0 && out.Dropped > 0 {
		err := ranked.Dropped[0].Err
		out.Kind, out.Err = classify(ctx, parent, KindEmbedding), err
		return out
	}

	for _, d := range ranked.Drafts {
		id, created, err := o.db.UpsertOpportunity(d)
		if err != nil {
			out.Kind, out.Err = KindStore, err
			return out
		}
		if created {
			out.CreatedIDs = append(out.CreatedIDs, id)
		} else {
			out.Existing++
		}
	}

	out.Kind = KindOK
	logging.Debug("search term processed", "owner", t.OwnerID, "term", t.Term.Term,
		"found", out.Found, "created", len(out.CreatedIDs), "existing", out.Existing, "dropped", out.Dropped)
	return out
}

// classify reports canceled or timeout when the failure came from the
// context ending, and fallback otherwise.
func classify(ctx, parent context.Context, fallback string) string {
	switch {
	case parent.Err() != nil:
		return KindCanceled
	case ctx.Err() != nil:
		return KindTimeout
	}
	return fallback
}

// briefNew writes briefs for the opportunities created by this run, per
// owner. Failures are logged and never fail the run.
func (o *Orchestrator) briefNew(ctx context.Context, report *CycleReport) []brief.Result {
	byOwner := make(map[string][]int64)
	var owners []string
	for _, out := range report.Outcomes {
		if len(out.CreatedIDs) == 0 {
			continue
		}
		if _, ok := byOwner[out.OwnerID]; !ok {
			owners = append(owners, out.OwnerID)
		}
		byOwner[out.OwnerID] = append(byOwner[out.OwnerID], out.CreatedIDs...)
	}

	var all []brief.Result
	for _, owner := range owners {
		results, err := o.opts.Briefer.GenerateBriefs(ctx, owner, byOwner[owner], "")
		if err != nil {
			logging.Warn("brief generation skipped", "owner", owner, "error", err)
			continue
		}
		for _, r := range results {
			metrics.ObserveBrief(r.Err)
		}
		all = append(all, results...)
	}
	return all
}

func (o *Orchestrator) record(report *CycleReport) {
	metrics.ObserveCycle(report.Trigger, report.FinishedAt.Sub(report.StartedAt))

	run := database.CycleRun{
		ID:         report.RunID,
		Trigger:    report.Trigger,
		OwnerID:    report.OwnerID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Triples:    len(report.Outcomes),
		Succeeded:  report.Succeeded(),
		Failed:     report.Failed(),
	}
	for _, out := range report.Outcomes {
		rec := database.TripleRecord{
			OwnerID:    out.OwnerID,
			Term:       out.Term.Term,
			Category:   out.Term.Category,
			Weight:     out.Term.Weight,
			Kind:       out.Kind,
			Found:      out.Found,
			Enriched:   out.Enriched,
			EnrichFail: out.EnrichFail,
			Ranked:     out.Ranked,
			Dropped:    out.Dropped,
			Created:    len(out.CreatedIDs),
			Existing:   out.Existing,
		}
		if out.Err != nil {
			rec.Error = out.Err.Error()
		}
		run.Created += rec.Created
		run.Existing += rec.Existing
		run.Dropped += rec.Dropped
		run.Outcomes = append(run.Outcomes, rec)
	}

	if err := o.db.InsertCycleRun(run); err != nil {
		logging.Warn("failed to record cycle run", "run_id", report.RunID, "error", err)
	}
}

// Package importer orchestrates the whole pipeline for a batch of
// identifiers: supplier fan-out, normalization, merging, classification,
// catalog matching, planning and execution. Items are isolated from each
// other; one bad identifier never aborts the batch.
package importer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/partsync/partsync/pkg/catalog"
	"github.com/partsync/partsync/pkg/config"
	"github.com/partsync/partsync/pkg/errors"
	"github.com/partsync/partsync/pkg/logging"
	"github.com/partsync/partsync/pkg/match"
	"github.com/partsync/partsync/pkg/merge"
	"github.com/partsync/partsync/pkg/normalize"
	"github.com/partsync/partsync/pkg/parts"
	"github.com/partsync/partsync/pkg/plan"
	"github.com/partsync/partsync/pkg/suppliers"
	"github.com/partsync/partsync/pkg/taxonomy"
)

// Importer runs import batches against one catalog.
type Importer struct {
	cfg        *config.Config
	suppliers  []suppliers.Supplier
	normalizer *normalize.Normalizer
	merger     *merge.Merger
	taxonomy   *taxonomy.Taxonomy
	matcher    *match.Matcher
	planner    *plan.Planner
	executor   *Executor
	dryRun     bool
}

// Option configures an Importer.
type Option func(*Importer)

// WithDryRun plans every item but applies nothing.
func WithDryRun(dry bool) Option {
	return func(i *Importer) { i.dryRun = dry }
}

// WithRates sets the currency rate source. Without one, foreign prices
// stay in their supplier currency and the item is marked partial.
func WithRates(rates normalize.RateSource) Option {
	return func(i *Importer) { i.normalizer = normalize.New(i.cfg, rates) }
}

// WithSuppliers restricts the run to a subset of the registry.
func WithSuppliers(subset []suppliers.Supplier) Option {
	return func(i *Importer) { i.suppliers = subset }
}

// New assembles an Importer from its parts. The supplier priority for
// conflict resolution defaults to the registry order, overridden by
// cfg.SupplierPriority.
func New(cfg *config.Config, registry *suppliers.Registry, tax *taxonomy.Taxonomy, cat catalog.Catalog, opts ...Option) *Importer {
	queryOrder := registry.IDs()
	priority := make([]string, 0, len(queryOrder))
	priority = append(priority, cfg.SupplierPriority...)
	for _, id := range queryOrder {
		if cfg.PriorityOf(id, nil) >= len(cfg.SupplierPriority) {
			priority = append(priority, id)
		}
	}

	imp := &Importer{
		cfg:        cfg,
		suppliers:  registry.All(),
		normalizer: normalize.New(cfg, normalize.NoRates),
		merger:     merge.New(priority),
		taxonomy:   tax,
		matcher:    match.New(cat),
		planner:    plan.New(cat, tax, cfg.ForceOverwrite),
		executor:   NewExecutor(cat),
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Item is one batch row: an identifier plus optional per-row overrides.
// A positive Stock replaces the supplier-reported stock on every link of
// the resulting part.
type Item struct {
	Identifier string
	Stock      int
}

// Run imports a batch of bare identifiers. See RunItems.
func (imp *Importer) Run(ctx context.Context, identifiers []string) ([]parts.ImportOutcome, error) {
	items := make([]Item, len(identifiers))
	for i, id := range identifiers {
		items[i] = Item{Identifier: id}
	}
	return imp.RunItems(ctx, items)
}

// RunItems imports a batch. Outcomes are returned in submission order,
// one per item, regardless of which worker finished first. RunItems
// itself only errors on an empty batch; per-item problems live in the
// outcomes.
func (imp *Importer) RunItems(ctx context.Context, items []Item) ([]parts.ImportOutcome, error) {
	if len(items) == 0 {
		return nil, errors.ErrInvalidInput
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logging.Ctx(ctx).Info().
		Int("items", len(items)).
		Int("workers", imp.cfg.Workers).
		Int("suppliers", len(imp.suppliers)).
		Bool("dry_run", imp.dryRun).
		Msg("starting import run")

	outcomes := make([]parts.ImportOutcome, len(items))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < imp.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					outcomes[idx] = parts.Failed(items[idx].Identifier, errors.ErrCanceled, nil)
					continue
				}
				outcomes[idx] = imp.importOne(ctx, items[idx])
			}
		}()
	}
	for idx := range items {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	logging.Ctx(ctx).Info().Msg("import run finished")
	return outcomes, nil
}

// importOne runs the full pipeline for a single item. Every exit path
// yields an outcome; nothing panics its way out of a worker.
func (imp *Importer) importOne(ctx context.Context, item Item) parts.ImportOutcome {
	identifier := item.Identifier
	ctx = logging.WithIdentifier(ctx, identifier)

	candidates, supplierErrs := imp.fetchAll(ctx, identifier)
	normalized, dropped := imp.normalizeAll(ctx, candidates)

	if len(normalized) == 0 {
		if len(candidates) == 0 && len(supplierErrs) == len(imp.suppliers) && len(supplierErrs) > 0 {
			return parts.Failed(identifier, firstErr(supplierErrs), nil)
		}
		logging.Ctx(ctx).Warn().
			Int("raw", len(candidates)).
			Int("dropped", dropped).
			Msg("no usable supplier data")
		return parts.Skipped(identifier, "no usable supplier data")
	}

	merged, conflicts := imp.merger.Merge(normalized)
	part := selectPart(merged, identifier)

	cls := imp.taxonomy.Classify(part)
	if item.Stock > 0 {
		for i := range cls.Part.Links {
			cls.Part.Links[i].Stock = item.Stock
		}
	}
	if cls.UsedFallback {
		logging.Ctx(ctx).Debug().
			Str("category", cls.Category.PathString()).
			Msg("no category hint matched, using fallback")
	}

	matched, err := imp.matcher.Match(ctx, cls.Part)
	if err != nil {
		if errors.IsAmbiguous(err) {
			logging.Ctx(ctx).Warn().Err(err).Msg("skipping ambiguous match")
			return parts.Skipped(identifier, err.Error())
		}
		return parts.Failed(identifier, err, nil)
	}

	var existing *catalog.Part
	if matched.Part != nil {
		existing = matched.Part
	} else if len(matched.NearMisses) > 0 {
		logging.Ctx(ctx).Info().
			Strs("near_misses", matched.NearMisses).
			Msg("no catalog match, but similar parts exist")
	}

	p, err := imp.planner.Build(ctx, cls, existing)
	if err != nil {
		return parts.Failed(identifier, err, nil)
	}
	for _, note := range p.Notes {
		logging.Ctx(ctx).Warn().Msg(note)
	}

	outcome := imp.applyPlan(ctx, identifier, p, existing)
	outcome.Conflicts = conflictsFor(conflicts, part.Key())

	if outcome.Status.Success() && imp.partialData(normalized, cls, supplierErrs, dropped) {
		outcome.Status = outcome.Status.Combine(parts.StatusPartial)
	}
	return outcome
}

// applyPlan executes (or, in dry-run mode, describes) the plan and
// translates the result into an outcome status.
func (imp *Importer) applyPlan(ctx context.Context, identifier string, p *plan.Plan, existing *catalog.Part) parts.ImportOutcome {
	if p.Empty() {
		outcome := parts.ImportOutcome{Identifier: identifier, Status: parts.StatusUpToDate}
		if existing != nil {
			outcome.PartRef = existing.ID
		}
		return outcome
	}

	status := parts.StatusUpdated
	if p.Creates() {
		status = parts.StatusCreated
	}

	if imp.dryRun {
		executed := make([]parts.ExecutedOp, len(p.Ops))
		for i, op := range p.Ops {
			executed[i] = parts.ExecutedOp{Index: i, Description: op.Description}
		}
		return parts.ImportOutcome{
			Identifier: identifier,
			Status:     status,
			Reason:     "dry run, nothing applied",
			Executed:   executed,
		}
	}

	executed, partID, err := imp.executor.Apply(ctx, p)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("plan execution failed")
		outcome := parts.Failed(identifier, err, executed)
		outcome.PartRef = partID
		return outcome
	}
	logging.Ctx(ctx).Info().
		Str("part", partID).
		Int("operations", len(executed)).
		Str("status", status.String()).
		Msg("plan applied")
	return parts.ImportOutcome{
		Identifier: identifier,
		Status:     status,
		PartRef:    partID,
		Executed:   executed,
	}
}

// fetchAll queries every supplier concurrently and collects whatever
// arrives. A failing supplier contributes an error, not an abort.
func (imp *Importer) fetchAll(ctx context.Context, identifier string) ([]parts.RawCandidate, map[string]error) {
	var (
		mu         sync.Mutex
		candidates []parts.RawCandidate
		errs       = map[string]error{}
		wg         sync.WaitGroup
	)

	for _, s := range imp.suppliers {
		wg.Add(1)
		go func(s suppliers.Supplier) {
			defer wg.Done()
			results, err := imp.fetchWithRetry(ctx, s, identifier)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[s.ID()] = err
				return
			}
			if len(results) > imp.cfg.MaxResults {
				results = results[:imp.cfg.MaxResults]
			}
			for _, r := range results {
				candidates = append(candidates, *r)
			}
		}(s)
	}
	wg.Wait()
	return candidates, errs
}

// fetchWithRetry runs one supplier search, retrying transient failures
// with doubling backoff. Each attempt gets its own timeout.
func (imp *Importer) fetchWithRetry(ctx context.Context, s suppliers.Supplier, identifier string) ([]*parts.RawCandidate, error) {
	ctx = logging.WithSupplier(ctx, s.ID())
	backoff := imp.cfg.RetryBackoff

	var lastErr error
	for attempt := 0; attempt <= imp.cfg.RetryLimit; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, imp.cfg.RequestTimeout)
		results, err := s.Search(attemptCtx, identifier)
		cancel()

		if err == nil {
			return results, nil
		}
		lastErr = err
		if !errors.IsTransient(err) || errors.IsCanceled(err) {
			break
		}

		logging.Ctx(ctx).Debug().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("transient supplier error, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

// normalizeAll converts raw candidates, dropping structurally invalid
// ones and counting the drops.
func (imp *Importer) normalizeAll(ctx context.Context, raw []parts.RawCandidate) ([]*parts.NormalizedCandidate, int) {
	out := make([]*parts.NormalizedCandidate, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		n, err := imp.normalizer.Normalize(r)
		if err != nil {
			dropped++
			logging.Ctx(ctx).Debug().
				Err(err).
				Str("supplier", r.SupplierID).
				Msg("dropping invalid candidate")
			continue
		}
		out = append(out, n)
	}
	return out, dropped
}

// partialData reports whether the item lost information on its way into
// the catalog: a supplier errored, candidates were dropped, prices could
// not be converted, or parameters did not resolve.
func (imp *Importer) partialData(normalized []*parts.NormalizedCandidate, cls *taxonomy.Classification, supplierErrs map[string]error, dropped int) bool {
	if len(supplierErrs) > 0 || dropped > 0 || len(cls.Uncategorized) > 0 {
		return true
	}
	for _, c := range normalized {
		if c.Unconverted {
			return true
		}
	}
	return false
}

// selectPart picks which merged part an identifier refers to when the
// search matched several. An exact MPN or SKU match wins; otherwise the
// first part of the (already deterministic) merge order.
func selectPart(merged []*parts.CanonicalPart, identifier string) *parts.CanonicalPart {
	if len(merged) == 1 {
		return merged[0]
	}
	want := foldIdentifier(identifier)
	for _, p := range merged {
		if foldIdentifier(p.MPN) == want {
			return p
		}
	}
	for _, p := range merged {
		for _, l := range p.Links {
			if foldIdentifier(l.SKU) == want {
				return p
			}
		}
	}
	return merged[0]
}

func foldIdentifier(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

func conflictsFor(all []parts.Conflict, key parts.IdentityKey) []parts.Conflict {
	var out []parts.Conflict
	for _, c := range all {
		if c.Key == key {
			out = append(out, c)
		}
	}
	return out
}

func firstErr(errs map[string]error) error {
	var firstID string
	for id := range errs {
		if firstID == "" || id < firstID {
			firstID = id
		}
	}
	return errs[firstID]
}

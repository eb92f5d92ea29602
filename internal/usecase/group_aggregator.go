package usecase

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pricetracker/backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

// DefaultImagePriority is the retailer order used to pick a group image
var DefaultImagePriority = []string{"techspace", "ultrapc", "nextlevelpc"}

// AggregatorConfig holds configuration for the group aggregator
type AggregatorConfig struct {
	// ImagePriority lists retailers whose images are preferred, best first
	ImagePriority []string
	// Workers bounds parallel title normalization
	Workers int
}

// GroupAggregator ingests scraped batches, resolving every product to its
// product group and keeping group aggregates current.
type GroupAggregator struct {
	store         domain.ProductStore
	registry      *NormalizerRegistry
	imagePriority []string
	workers       int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// aggregateMu serializes aggregate recomputation
	aggregateMu sync.Mutex
}

// NewGroupAggregator creates a new group aggregator
func NewGroupAggregator(store domain.ProductStore, registry *NormalizerRegistry, cfg AggregatorConfig) *GroupAggregator {
	priority := cfg.ImagePriority
	if len(priority) == 0 {
		priority = DefaultImagePriority
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	return &GroupAggregator{
		store:         store,
		registry:      registry,
		imagePriority: priority,
		workers:       workers,
		locks:         make(map[string]*sync.Mutex),
	}
}

// preparedRecord is a validated record with its normalized spec.
// spec is nil when the category has no normalizer.
type preparedRecord struct {
	record     domain.RawRecord
	spec       *domain.ProductSpec
	normalizer Normalizer
	err        error
}

// persistResult reports what storing one record changed
type persistResult struct {
	created      bool
	grouped      bool
	groupCreated bool
	lowConfident bool
}

// Ingest stores a batch of scraped records and groups them. Record failures
// are counted, not returned: a batch always runs to completion, even when
// ctx is cancelled. The returned error is reserved for batch-level failures
// of the sweep or aggregate phases.
func (a *GroupAggregator) Ingest(ctx context.Context, batch []domain.RawRecord) (domain.IngestStats, error) {
	ctx = context.WithoutCancel(ctx)

	stats := domain.IngestStats{
		BatchID: uuid.NewString(),
		Total:   len(batch),
	}

	unlock := a.lockCategories(batchCategories(batch))
	defer unlock()

	log.Printf("[INGEST] Batch %s: %d records", stats.BatchID, stats.Total)

	prepared := a.prepare(batch)

	seen := make(map[string]bool)
	unregistered := make(map[string]bool)
	for _, p := range prepared {
		if p.err != nil {
			stats.Errors++
			log.Printf("[INGEST] Skipping record %q: %v", p.record.Name, p.err)
			continue
		}
		if p.spec == nil && !unregistered[p.record.Category] {
			unregistered[p.record.Category] = true
			log.Printf("[INGEST] No normalizer for category %q, products stored ungrouped", p.record.Category)
		}

		res, err := a.persist(ctx, stats.BatchID, p)
		if err != nil {
			stats.Errors++
			log.Printf("[INGEST] Error processing %q: %v", p.record.Name, err)
			continue
		}

		seen[p.record.Category] = true
		if res.created {
			stats.Created++
		} else {
			stats.Updated++
		}
		if res.grouped {
			stats.Grouped++
		}
		if res.groupCreated {
			stats.GroupsCreated++
		}
		if res.lowConfident {
			stats.LowConfidence++
		}
	}

	// Only categories with at least one stored record are swept, so a batch
	// that failed entirely cannot flip a whole category to unavailable.
	if len(seen) > 0 {
		swept, err := a.store.SweepUnseen(ctx, sortedKeys(seen), stats.BatchID)
		if err != nil {
			return stats, fmt.Errorf("error marking unseen products: %w", err)
		}
		stats.MarkedUnseen = swept
	}

	agg, err := a.RecomputeAggregates(ctx)
	stats.Aggregates = agg
	if err != nil {
		return stats, err
	}

	log.Printf("[INGEST] Batch %s done: created=%d updated=%d grouped=%d new_groups=%d errors=%d low_confidence=%d unavailable=%d",
		stats.BatchID, stats.Created, stats.Updated, stats.Grouped, stats.GroupsCreated,
		stats.Errors, stats.LowConfidence, stats.MarkedUnseen)

	return stats, nil
}

// Regroup re-runs ingestion over the stored products of a category, or of
// every category when category is empty. Needed after a rule change.
func (a *GroupAggregator) Regroup(ctx context.Context, category string) (domain.IngestStats, error) {
	products, err := a.store.ListProducts(ctx, normalizeCategory(category))
	if err != nil {
		return domain.IngestStats{}, fmt.Errorf("error listing products: %w", err)
	}

	batch := make([]domain.RawRecord, 0, len(products))
	for _, p := range products {
		batch = append(batch, p.ToRawRecord())
	}

	log.Printf("[INGEST] Regrouping %d products (category=%q)", len(batch), category)
	return a.Ingest(ctx, batch)
}

// Normalize runs the normalizer of category on a single title
func (a *GroupAggregator) Normalize(category, title string) (domain.ProductSpec, error) {
	n, ok := a.registry.Get(category)
	if !ok {
		return domain.ProductSpec{}, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}
	return n.Normalize(title), nil
}

// Compare normalizes two titles of the same category and decides whether
// they would be grouped
func (a *GroupAggregator) Compare(category, titleA, titleB string) (domain.GroupDecision, error) {
	n, ok := a.registry.Get(category)
	if !ok {
		return domain.GroupDecision{}, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}
	return ShouldGroup(n.Normalize(titleA), n.Normalize(titleB), n.Rules()), nil
}

// prepare validates and normalizes every record in parallel. The work is
// pure, so record order in the result matches the batch.
func (a *GroupAggregator) prepare(batch []domain.RawRecord) []preparedRecord {
	prepared := make([]preparedRecord, len(batch))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, rec := range batch {
		g.Go(func() error {
			prepared[i] = a.prepareRecord(rec)
			return nil
		})
	}
	_ = g.Wait()

	return prepared
}

func (a *GroupAggregator) prepareRecord(rec domain.RawRecord) preparedRecord {
	rec.ID = strings.TrimSpace(rec.ID)
	rec.Name = strings.TrimSpace(rec.Name)
	rec.URL = strings.TrimSpace(rec.URL)
	rec.Website = strings.TrimSpace(rec.Website)
	rec.Category = normalizeCategory(rec.Category)

	if err := validateRecord(rec); err != nil {
		return preparedRecord{record: rec, err: err}
	}

	n, ok := a.registry.Get(rec.Category)
	if !ok {
		return preparedRecord{record: rec}
	}
	spec := n.Normalize(rec.Name)
	return preparedRecord{record: rec, spec: &spec, normalizer: n}
}

func validateRecord(rec domain.RawRecord) error {
	if rec.DecodeError != "" {
		return fmt.Errorf("%w: %s", domain.ErrMalformedRecord, rec.DecodeError)
	}

	var missing []string
	if rec.ID == "" {
		missing = append(missing, "id")
	}
	if rec.Name == "" {
		missing = append(missing, "name")
	}
	if rec.URL == "" {
		missing = append(missing, "url")
	}
	if rec.Website == "" {
		missing = append(missing, "website")
	}
	if rec.Category == "" {
		missing = append(missing, "category")
	}
	if rec.Price == nil {
		missing = append(missing, "price")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrMalformedRecord, strings.Join(missing, ", "))
	}

	if math.IsNaN(*rec.Price) || math.IsInf(*rec.Price, 0) || *rec.Price < 0 {
		return fmt.Errorf("%w: invalid price %v", domain.ErrMalformedRecord, *rec.Price)
	}
	return nil
}

// persist stores one record in a single transaction: website, group, product
func (a *GroupAggregator) persist(ctx context.Context, batchID string, p preparedRecord) (persistResult, error) {
	rec := p.record
	var res persistResult

	err := a.store.WithTx(ctx, func(tx domain.StoreTx) error {
		res = persistResult{}

		site, err := tx.UpsertWebsite(ctx, rec.Website)
		if err != nil {
			return fmt.Errorf("error upserting website %q: %w", rec.Website, err)
		}

		product := domain.Product{
			ID:               rec.ID,
			Name:             rec.Name,
			ShortDescription: rec.ShortDescription,
			URL:              rec.URL,
			ImageURL:         rec.ImageURL,
			Price:            *rec.Price,
			Availability:     rec.Availability,
			Category:         rec.Category,
			WebsiteID:        site.ID,
			WebsiteName:      site.Name,
			LastSeenBatch:    batchID,
		}

		if p.spec != nil {
			group, created, err := tx.GetOrCreateGroup(ctx, domain.ProductGroup{
				CanonicalName:          p.spec.CanonicalModel,
				Category:               rec.Category,
				Brand:                  p.spec.Brand,
				StartingPrice:          *rec.Price,
				Attributes:             domain.AttributesFromSpecs(p.spec.KeySpecs),
				RepresentativeImageURL: rec.ImageURL,
			})
			if err != nil {
				return fmt.Errorf("error resolving group %q: %w", p.spec.CanonicalModel, err)
			}

			groupID := group.ID
			product.GroupID = &groupID
			res.grouped = true
			res.groupCreated = created

			decision := ShouldGroup(*p.spec, group.Spec(), p.normalizer.Rules())
			product.MatchConfidence = decision.Confidence
			if !created && !decision.Grouped() {
				res.lowConfident = true
				log.Printf("[GROUPS] Low confidence match %q -> %q (%.2f): %s",
					rec.Name, group.CanonicalName, decision.Confidence, decision.Reason)
			}
		}

		created, err := tx.UpsertProduct(ctx, product)
		if err != nil {
			return fmt.Errorf("error upserting product %s: %w", rec.ID, err)
		}
		res.created = created
		return nil
	})

	return res, err
}

// lockCategories serializes batches touching the same categories. Locks are
// taken in sorted order so overlapping batches cannot deadlock.
func (a *GroupAggregator) lockCategories(categories []string) func() {
	a.locksMu.Lock()
	held := make([]*sync.Mutex, 0, len(categories))
	for _, category := range categories {
		mu, ok := a.locks[category]
		if !ok {
			mu = &sync.Mutex{}
			a.locks[category] = mu
		}
		held = append(held, mu)
	}
	a.locksMu.Unlock()

	for _, mu := range held {
		mu.Lock()
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// batchCategories returns the distinct non-empty categories of a batch, sorted
func batchCategories(batch []domain.RawRecord) []string {
	set := make(map[string]bool)
	for _, rec := range batch {
		if category := normalizeCategory(rec.Category); category != "" {
			set[category] = true
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

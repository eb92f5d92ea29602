package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/pricetracker/backend/internal/domain"
)

// RecomputeAggregates refreshes the starting price and representative image
// of every group from its available members. A failing group is logged and
// counted; it does not stop the others.
func (a *GroupAggregator) RecomputeAggregates(ctx context.Context) (domain.AggregateStats, error) {
	a.aggregateMu.Lock()
	defer a.aggregateMu.Unlock()

	groups, err := a.store.ListGroups(ctx)
	if err != nil {
		return domain.AggregateStats{}, fmt.Errorf("error listing groups: %w", err)
	}

	stats := domain.AggregateStats{Groups: len(groups)}
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		priceChanged, imageChanged, err := a.recomputeGroup(ctx, group)
		if err != nil {
			stats.Failed++
			log.Printf("[GROUPS] Error updating aggregates of group %d (%s): %v", group.ID, group.CanonicalName, err)
			continue
		}
		if priceChanged {
			stats.PricesUpdated++
		}
		if imageChanged {
			stats.ImagesUpdated++
		}
	}

	log.Printf("[GROUPS] Aggregates: %d groups, %d prices updated, %d images updated, %d failed",
		stats.Groups, stats.PricesUpdated, stats.ImagesUpdated, stats.Failed)

	return stats, nil
}

func (a *GroupAggregator) recomputeGroup(ctx context.Context, group domain.ProductGroup) (bool, bool, error) {
	price := group.StartingPrice
	minPrice, ok, err := a.store.MinAvailablePrice(ctx, group.ID)
	if err != nil {
		return false, false, fmt.Errorf("error reading min price: %w", err)
	}
	if ok {
		price = minPrice
	}

	image, err := a.representativeImage(ctx, group)
	if err != nil {
		return false, false, err
	}

	priceChanged := price != group.StartingPrice
	imageChanged := image != group.RepresentativeImageURL
	if !priceChanged && !imageChanged {
		return false, false, nil
	}

	if err := a.store.UpdateGroupAggregates(ctx, group.ID, price, image); err != nil {
		return false, false, fmt.Errorf("error saving aggregates: %w", err)
	}
	return priceChanged, imageChanged, nil
}

// representativeImage keeps the current image while an available member
// still shows it. Otherwise it takes the first image from the preferred
// retailers, then from any retailer. With no candidate the image is kept.
func (a *GroupAggregator) representativeImage(ctx context.Context, group domain.ProductGroup) (string, error) {
	if group.RepresentativeImageURL != "" {
		ok, err := a.store.HasAvailableImage(ctx, group.ID, group.RepresentativeImageURL)
		if err != nil {
			return "", fmt.Errorf("error checking current image: %w", err)
		}
		if ok {
			return group.RepresentativeImageURL, nil
		}
	}

	// "" matches any retailer
	sources := make([]string, 0, len(a.imagePriority)+1)
	sources = append(sources, a.imagePriority...)
	sources = append(sources, "")

	for _, website := range sources {
		image, ok, err := a.store.FindAvailableImage(ctx, group.ID, website)
		if err != nil {
			return "", fmt.Errorf("error finding image: %w", err)
		}
		if ok {
			return image, nil
		}
	}

	return group.RepresentativeImageURL, nil
}

package domain

import "context"

// StoreTx is the set of writes a single record is ingested with.
// Either all of them become visible or none.
type StoreTx interface {
	UpsertWebsite(ctx context.Context, name string) (Website, error)
	// GetOrCreateGroup returns the group keyed by (CanonicalName, Category),
	// inserting group when absent. It must be atomic across concurrent callers.
	GetOrCreateGroup(ctx context.Context, group ProductGroup) (ProductGroup, bool, error)
	UpsertProduct(ctx context.Context, product Product) (bool, error)
}

// ProductStore is the persistence collaborator of the grouping engine
type ProductStore interface {
	WithTx(ctx context.Context, fn func(tx StoreTx) error) error

	// SweepUnseen marks unavailable every product of the given categories
	// that was not upserted by batchID, returning how many changed.
	SweepUnseen(ctx context.Context, categories []string, batchID string) (int, error)

	ListGroups(ctx context.Context) ([]ProductGroup, error)
	CountGroups(ctx context.Context) (int, error)
	MinAvailablePrice(ctx context.Context, groupID int64) (float64, bool, error)
	HasAvailableImage(ctx context.Context, groupID int64, imageURL string) (bool, error)
	// FindAvailableImage returns the image of the first available member
	// (by product id) sold by website, or by any website when website is "".
	FindAvailableImage(ctx context.Context, groupID int64, website string) (string, bool, error)
	UpdateGroupAggregates(ctx context.Context, groupID int64, startingPrice float64, imageURL string) error

	GetProduct(ctx context.Context, id string) (Product, error)
	// ListProducts returns products ordered by id; category "" means all.
	ListProducts(ctx context.Context, category string) ([]Product, error)
}

// Package memory is a thread-safe in-process implementation of the product
// store, used by tests and by the "memory" store driver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pricetracker/backend/internal/domain"
)

type groupKey struct {
	canonicalName string
	category      string
}

// Store keeps websites, groups and products in maps guarded by one RWMutex.
// A transaction holds the write lock for its whole duration and undoes its
// writes when the callback fails.
type Store struct {
	mutex sync.RWMutex

	websites      map[string]domain.Website
	groups        map[int64]domain.ProductGroup
	groupsByKey   map[groupKey]int64
	products      map[string]domain.Product
	nextWebsiteID int64
	nextGroupID   int64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		websites:      make(map[string]domain.Website),
		groups:        make(map[int64]domain.ProductGroup),
		groupsByKey:   make(map[groupKey]int64),
		products:      make(map[string]domain.Product),
		nextWebsiteID: 1,
		nextGroupID:   1,
	}
}

// tx is the transactional view handed to WithTx callbacks.
// The store's write lock is held while it is in use.
type tx struct {
	s    *Store
	undo []func()
}

// WithTx runs fn atomically
func (s *Store) WithTx(ctx context.Context, fn func(tx domain.StoreTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	t := &tx{s: s}
	if err := fn(t); err != nil {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		return err
	}
	return nil
}

func (t *tx) UpsertWebsite(ctx context.Context, name string) (domain.Website, error) {
	s := t.s
	if site, ok := s.websites[name]; ok {
		return site, nil
	}

	site := domain.Website{ID: s.nextWebsiteID, Name: name}
	s.nextWebsiteID++
	s.websites[name] = site

	t.undo = append(t.undo, func() {
		delete(s.websites, name)
		s.nextWebsiteID--
	})
	return site, nil
}

func (t *tx) GetOrCreateGroup(ctx context.Context, group domain.ProductGroup) (domain.ProductGroup, bool, error) {
	s := t.s
	key := groupKey{canonicalName: group.CanonicalName, category: group.Category}
	if id, ok := s.groupsByKey[key]; ok {
		return s.groups[id], false, nil
	}

	group.ID = s.nextGroupID
	s.nextGroupID++
	s.groups[group.ID] = group
	s.groupsByKey[key] = group.ID

	id := group.ID
	t.undo = append(t.undo, func() {
		delete(s.groups, id)
		delete(s.groupsByKey, key)
		s.nextGroupID--
	})
	return group, true, nil
}

func (t *tx) UpsertProduct(ctx context.Context, product domain.Product) (bool, error) {
	s := t.s
	if product.GroupID != nil {
		if _, ok := s.groups[*product.GroupID]; !ok {
			return false, fmt.Errorf("%w: group %d", domain.ErrNotFound, *product.GroupID)
		}
	}

	previous, existed := s.products[product.ID]
	s.products[product.ID] = cloneProduct(product)

	t.undo = append(t.undo, func() {
		if existed {
			s.products[product.ID] = previous
		} else {
			delete(s.products, product.ID)
		}
	})
	return !existed, nil
}

// SweepUnseen marks unavailable the products of categories not seen by batchID
func (s *Store) SweepUnseen(ctx context.Context, categories []string, batchID string) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	wanted := make(map[string]bool, len(categories))
	for _, c := range categories {
		wanted[c] = true
	}

	marked := 0
	for id, p := range s.products {
		if !wanted[p.Category] || p.SeenIn(batchID) || !p.Availability {
			continue
		}
		p.Availability = false
		s.products[id] = p
		marked++
	}
	return marked, nil
}

// ListGroups returns all groups ordered by id
func (s *Store) ListGroups(ctx context.Context) ([]domain.ProductGroup, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	groups := make([]domain.ProductGroup, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

// CountGroups returns the number of groups
func (s *Store) CountGroups(ctx context.Context) (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.groups), nil
}

// MinAvailablePrice returns the lowest price among available members
func (s *Store) MinAvailablePrice(ctx context.Context, groupID int64) (float64, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var minPrice float64
	found := false
	for _, p := range s.products {
		if !isAvailableMember(p, groupID) {
			continue
		}
		if !found || p.Price < minPrice {
			minPrice = p.Price
			found = true
		}
	}
	return minPrice, found, nil
}

// HasAvailableImage reports whether an available member shows imageURL
func (s *Store) HasAvailableImage(ctx context.Context, groupID int64, imageURL string) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, p := range s.products {
		if isAvailableMember(p, groupID) && p.ImageURL == imageURL {
			return true, nil
		}
	}
	return false, nil
}

// FindAvailableImage returns the image of the first available member, by
// product id, sold by website ("" for any website)
func (s *Store) FindAvailableImage(ctx context.Context, groupID int64, website string) (string, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, p := range s.sortedProducts("") {
		if !isAvailableMember(p, groupID) || p.ImageURL == "" {
			continue
		}
		if website != "" && !strings.EqualFold(p.WebsiteName, website) {
			continue
		}
		return p.ImageURL, true, nil
	}
	return "", false, nil
}

// UpdateGroupAggregates stores a new starting price and image for a group
func (s *Store) UpdateGroupAggregates(ctx context.Context, groupID int64, startingPrice float64, imageURL string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("%w: group %d", domain.ErrNotFound, groupID)
	}
	g.StartingPrice = startingPrice
	g.RepresentativeImageURL = imageURL
	s.groups[groupID] = g
	return nil
}

// GetProduct returns a product by id
func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	return cloneProduct(p), nil
}

// ListProducts returns the products of a category ("" for all), ordered by id
func (s *Store) ListProducts(ctx context.Context, category string) ([]domain.Product, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.sortedProducts(category), nil
}

// sortedProducts must be called with the lock held
func (s *Store) sortedProducts(category string) []domain.Product {
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if category == "" || p.Category == category {
			products = append(products, cloneProduct(p))
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products
}

func isAvailableMember(p domain.Product, groupID int64) bool {
	return p.Availability && p.GroupID != nil && *p.GroupID == groupID
}

// cloneProduct detaches the group pointer from the caller's copy
func cloneProduct(p domain.Product) domain.Product {
	if p.GroupID != nil {
		id := *p.GroupID
		p.GroupID = &id
	}
	return p
}

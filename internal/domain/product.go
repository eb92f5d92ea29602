package domain

// RawRecord is one scraped listing as handed over by the scraping layer.
// ID must be derived from retailer+URL so re-scrapes update instead of duplicate.
type RawRecord struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	URL              string   `json:"url"`
	ImageURL         string   `json:"image_url,omitempty"`
	Price            *float64 `json:"price"`
	Availability     bool     `json:"availability"`
	Category         string   `json:"category"`
	Website          string   `json:"website"`
	ShortDescription string   `json:"short_description,omitempty"`

	// DecodeError is set by feed readers when the record could not be read;
	// ingestion counts such a record as malformed.
	DecodeError string `json:"-"`
}

// Website is a retailer, created on the first product sighting from it
type Website struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Product is the persisted row for one retailer listing.
// It is never deleted by ingestion; a product missing from a batch of its
// category is flipped to Availability=false instead.
type Product struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	ShortDescription string  `json:"short_description,omitempty"`
	URL              string  `json:"url"`
	ImageURL         string  `json:"image_url,omitempty"`
	Price            float64 `json:"price"`
	Availability     bool    `json:"availability"`
	Category         string  `json:"category"`
	WebsiteID        int64   `json:"website_id"`
	WebsiteName      string  `json:"website,omitempty"`
	GroupID          *int64  `json:"canonical_group,omitempty"`
	MatchConfidence  float64 `json:"match_confidence"`
	LastSeenBatch    string  `json:"last_seen_batch"`
}

// SeenIn reports whether the product was upserted by the given batch.
func (p Product) SeenIn(batchID string) bool {
	return p.LastSeenBatch != "" && p.LastSeenBatch == batchID
}

// ToRawRecord rebuilds the record a product was ingested from, used to
// re-run grouping after a rule change.
func (p Product) ToRawRecord() RawRecord {
	price := p.Price
	return RawRecord{
		ID:               p.ID,
		Name:             p.Name,
		URL:              p.URL,
		ImageURL:         p.ImageURL,
		Price:            &price,
		Availability:     p.Availability,
		Category:         p.Category,
		Website:          p.WebsiteName,
		ShortDescription: p.ShortDescription,
	}
}

// ProductGroup is the commercial product several listings resolve to.
// (CanonicalName, Category) is unique.
type ProductGroup struct {
	ID                     int64           `json:"id"`
	CanonicalName          string          `json:"canonical_name"`
	Category               string          `json:"category"`
	Brand                  string          `json:"brand"`
	StartingPrice          float64         `json:"starting_price"`
	Attributes             GroupAttributes `json:"attributes"`
	RepresentativeImageURL string          `json:"representative_image_url,omitempty"`
}

// GroupAttributes is the snapshot of the key specs that created a group.
type GroupAttributes struct {
	Chipset      string `json:"chipset"`
	ModelNumber  string `json:"model_number"`
	ModelVariant string `json:"model_variant,omitempty"`
	VRAM         int    `json:"vram"`
	BoardPartner string `json:"board_partner"`
	SubBrandText string `json:"sub_brand_text,omitempty"`
}

// Spec rebuilds the product spec the group was founded with.
func (g ProductGroup) Spec() ProductSpec {
	keys := KeySpecs{
		Chipset:      g.Attributes.Chipset,
		ModelNumber:  g.Attributes.ModelNumber,
		ModelVariant: g.Attributes.ModelVariant,
		VRAM:         g.Attributes.VRAM,
		BoardPartner: g.Attributes.BoardPartner,
		SubBrandText: g.Attributes.SubBrandText,
	}
	return ProductSpec{
		Category:       g.Category,
		Brand:          g.Brand,
		CanonicalModel: g.CanonicalName,
		KeySpecs:       keys,
	}
}

// AttributesFromSpecs snapshots key specs into group attributes
func AttributesFromSpecs(k KeySpecs) GroupAttributes {
	return GroupAttributes{
		Chipset:      k.Chipset,
		ModelNumber:  k.ModelNumber,
		ModelVariant: k.ModelVariant,
		VRAM:         k.VRAM,
		BoardPartner: k.BoardPartner,
		SubBrandText: k.SubBrandText,
	}
}

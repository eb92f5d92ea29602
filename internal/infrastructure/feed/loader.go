// Package feed reads the JSON record files produced by the scrapers.
package feed

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/pricetracker/backend/internal/domain"
)

// Options controls how records are decoded
type Options struct {
	// DeriveIDs fills missing ids from website and URL
	DeriveIDs bool
}

// feedRecord mirrors domain.RawRecord, except that price may be a JSON
// number or a retailer string
type feedRecord struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	URL              string          `json:"url"`
	ImageURL         string          `json:"image_url"`
	Price            json.RawMessage `json:"price"`
	Availability     *bool           `json:"availability"`
	Category         string          `json:"category"`
	Website          string          `json:"website"`
	ShortDescription string          `json:"short_description"`
}

// LoadFile decodes the records of a feed file
func LoadFile(path string, opts Options) ([]domain.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening feed %s: %w", path, err)
	}
	defer f.Close()

	records, err := Decode(f, opts)
	if err != nil {
		return nil, fmt.Errorf("error decoding feed %s: %w", path, err)
	}
	log.Printf("[FEED] Loaded %d records from %s", len(records), path)
	return records, nil
}

// Decode reads a JSON array of records. Elements are decoded one by one: an
// element that cannot be read still yields a record carrying DecodeError, and
// a record with an unreadable price keeps a nil price, so ingestion counts
// both as malformed instead of rejecting the batch.
func Decode(r io.Reader, opts Options) ([]domain.RawRecord, error) {
	var elems []json.RawMessage
	if err := json.NewDecoder(r).Decode(&elems); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	records := make([]domain.RawRecord, 0, len(elems))
	for i, elem := range elems {
		var fr feedRecord
		if err := json.Unmarshal(elem, &fr); err != nil {
			log.Printf("[FEED] Unreadable record %d (%q): %v", i, fr.Name, err)
			records = append(records, domain.RawRecord{
				ID:          fr.ID,
				Name:        fr.Name,
				Category:    fr.Category,
				Website:     fr.Website,
				DecodeError: fmt.Sprintf("record %d: %v", i, err),
			})
			continue
		}

		rec := domain.RawRecord{
			ID:               fr.ID,
			Name:             fr.Name,
			URL:              fr.URL,
			ImageURL:         fr.ImageURL,
			Availability:     true,
			Category:         fr.Category,
			Website:          fr.Website,
			ShortDescription: fr.ShortDescription,
		}
		if fr.Availability != nil {
			rec.Availability = *fr.Availability
		}

		if p, ok := decodePrice(fr.Price); ok {
			rec.Price = &p
		} else if len(fr.Price) > 0 && string(fr.Price) != "null" {
			log.Printf("[FEED] Unreadable price %s for %q", fr.Price, fr.Name)
		}

		if rec.ID == "" && opts.DeriveIDs && rec.URL != "" && rec.Website != "" {
			rec.ID = ProductID(rec.Website, rec.URL)
		}

		records = append(records, rec)
	}
	return records, nil
}

func decodePrice(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number, true
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, false
	}
	return ParsePrice(text)
}

// ProductID derives a stable product id from the retailer and the listing
// URL, so re-scraping the same listing updates instead of duplicating.
func ProductID(website, url string) string {
	key := strings.ToLower(strings.TrimSpace(website)) + "|" +
		strings.ToLower(strings.TrimRight(strings.TrimSpace(url), "/"))
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

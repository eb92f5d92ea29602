package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pricetracker/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"1 299,00 DH", 1299, true},
		{"1\u00a0299,00\u00a0DH", 1299, true},
		{"1.299,00", 1299, true},
		{"1,299.00", 1299, true},
		{"4990", 4990, true},
		{"4 990 MAD", 4990, true},
		{"1.299", 1299, true},
		{"12,5", 12.5, true},
		{"Prix: 349,90 DH TTC", 349.9, true},
		{"DH", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParsePrice(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestProductID(t *testing.T) {
	id := ProductID("UltraPC", "https://ultrapc.ma/rtx-4090/")

	assert.Len(t, id, 64)
	assert.Equal(t, id, ProductID("ultrapc", "https://ultrapc.ma/rtx-4090"), "case and trailing slash are ignored")
	assert.NotEqual(t, id, ProductID("techspace", "https://ultrapc.ma/rtx-4090"))
}

func TestDecode(t *testing.T) {
	body := `[
		{"id": "p1", "name": "MSI RTX 4060", "url": "https://ultrapc.ma/p1", "price": 3100.5,
		 "availability": false, "category": "gpu", "website": "ultrapc"},
		{"name": "ASUS RTX 4070", "url": "https://techspace.ma/p2", "price": "6 499,00 DH",
		 "category": "gpu", "website": "techspace", "image_url": "https://techspace.ma/p2.jpg"},
		{"id": "p3", "name": "Zotac RTX 3050", "url": "https://ultrapc.ma/p3", "price": "sur devis",
		 "category": "gpu", "website": "ultrapc"},
		{"id": "p4", "name": "Palit RTX 3060", "url": "https://ultrapc.ma/p4", "price": null,
		 "category": "gpu", "website": "ultrapc"}
	]`

	t.Run("without derived ids", func(t *testing.T) {
		records, err := Decode(strings.NewReader(body), Options{})
		require.NoError(t, err)
		require.Len(t, records, 4)

		require.NotNil(t, records[0].Price)
		assert.Equal(t, 3100.5, *records[0].Price)
		assert.False(t, records[0].Availability)

		assert.Empty(t, records[1].ID)
		require.NotNil(t, records[1].Price)
		assert.Equal(t, 6499.0, *records[1].Price)
		assert.True(t, records[1].Availability, "availability defaults to true")
		assert.Equal(t, "https://techspace.ma/p2.jpg", records[1].ImageURL)

		assert.Nil(t, records[2].Price)
		assert.Nil(t, records[3].Price)
	})

	t.Run("with derived ids", func(t *testing.T) {
		records, err := Decode(strings.NewReader(body), Options{DeriveIDs: true})
		require.NoError(t, err)
		assert.Equal(t, "p1", records[0].ID)
		assert.Equal(t, ProductID("techspace", "https://techspace.ma/p2"), records[1].ID)
	})

	t.Run("mistyped element does not reject the batch", func(t *testing.T) {
		mixed := `[
			{"id": "p1", "name": "MSI RTX 4060", "url": "https://ultrapc.ma/p1", "price": 3100,
			 "category": "gpu", "website": "ultrapc"},
			{"id": 123, "name": "ASUS RTX 4070", "url": "https://ultrapc.ma/p2", "price": 6499,
			 "category": "gpu", "website": "ultrapc"},
			{"id": "p3", "name": "Zotac RTX 3050", "url": "https://ultrapc.ma/p3", "price": 2500,
			 "availability": "yes", "category": "gpu", "website": "ultrapc"},
			"not a record"
		]`

		records, err := Decode(strings.NewReader(mixed), Options{DeriveIDs: true})
		require.NoError(t, err)
		require.Len(t, records, 4)

		assert.Empty(t, records[0].DecodeError)
		require.NotNil(t, records[0].Price)

		for _, rec := range records[1:] {
			assert.NotEmpty(t, rec.DecodeError, "record %q", rec.Name)
		}
		assert.Equal(t, "ASUS RTX 4070", records[1].Name)
		assert.Contains(t, records[1].DecodeError, "record 1")
		assert.Equal(t, "p3", records[2].ID)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := Decode(strings.NewReader(`{"id": 1`), Options{})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": "p1", "name": "MSI RTX 4060", "price": 1}]`), 0o644))

	records, err := LoadFile(path, Options{})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"), Options{})
	assert.Error(t, err)
}

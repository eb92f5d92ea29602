package display_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/pricetracker/backend/internal/display"
	"github.com/pricetracker/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSpec(title, partner string) domain.ProductSpec {
	keys := domain.KeySpecs{
		Chipset: "RTX", ModelNumber: "4070", ModelVariant: "SUPER", VRAM: 12,
		BoardPartner: partner, SubBrandText: "ventus 2x",
	}
	return domain.ProductSpec{
		Category:       "gpu",
		Brand:          "NVIDIA",
		CanonicalModel: keys.CanonicalName(),
		KeySpecs:       keys,
		RawTitle:       title,
	}
}

func TestPrintIngestStats(t *testing.T) {
	var buf bytes.Buffer
	display.PrintIngestStats(&buf, "Ingest", domain.IngestStats{
		BatchID: "b-1", Total: 5, Created: 3, Updated: 1, Errors: 1, LowConfidence: 2,
		Aggregates: domain.AggregateStats{Groups: 4, PricesUpdated: 2},
	})
	output := buf.String()

	assert.Contains(t, output, "Ingest")
	assert.Contains(t, output, "batch b-1")
	assert.Contains(t, output, "records")
	assert.Contains(t, output, "low confidence")
	assert.Contains(t, output, "prices updated")
}

func TestPrintSpec(t *testing.T) {
	var buf bytes.Buffer
	display.PrintSpec(&buf, sampleSpec("MSI RTX 4070 Super Ventus 2X 12G", "MSI"))
	output := buf.String()

	assert.Contains(t, output, "MSI RTX 4070 Super Ventus 2X 12G")
	assert.Contains(t, output, "RTX 4070 SUPER 12 GB - MSI")
	assert.Contains(t, output, "12 GB")
	assert.Contains(t, output, "ventus 2x")
}

func TestPrintDecision(t *testing.T) {
	a := sampleSpec("MSI RTX 4070 Super 12G", "MSI")
	b := sampleSpec("ASUS RTX 4070 Super 12G", "ASUS")

	var buf bytes.Buffer
	display.PrintDecision(&buf, a, b, domain.GroupDecision{
		Decision: domain.DecisionSeparate, Confidence: 0, Reason: "core specs differ: board partner",
	})
	assert.Contains(t, buf.String(), "SEPARATE")
	assert.Contains(t, buf.String(), "board partner")

	buf.Reset()
	display.PrintDecision(&buf, a, a, domain.GroupDecision{Decision: domain.DecisionGroup, Confidence: 1})
	assert.Contains(t, buf.String(), "GROUP")
	assert.Contains(t, buf.String(), "confidence 1.00")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, display.PrintJSON(&buf, domain.AggregateStats{Groups: 2, Failed: 1}))

	var got map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 2, got["groups"])
	assert.Equal(t, 1, got["failed"])
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	display.PrintError(&buf, errors.New("store unavailable"))
	assert.Contains(t, buf.String(), "store unavailable")
}

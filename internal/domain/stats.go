package domain

// IngestStats summarizes one ingestion batch
type IngestStats struct {
	BatchID       string         `json:"batch_id"`
	Total         int            `json:"total"`
	Created       int            `json:"created"`
	Updated       int            `json:"updated"`
	GroupsCreated int            `json:"groups_created"`
	Grouped       int            `json:"grouped"`
	Errors        int            `json:"errors"`
	LowConfidence int            `json:"low_confidence"`
	MarkedUnseen  int            `json:"marked_unavailable"`
	Aggregates    AggregateStats `json:"aggregates"`
}

// AggregateStats summarizes one group aggregate recomputation
type AggregateStats struct {
	Groups        int `json:"groups"`
	PricesUpdated int `json:"prices_updated"`
	ImagesUpdated int `json:"images_updated"`
	Failed        int `json:"failed"`
}

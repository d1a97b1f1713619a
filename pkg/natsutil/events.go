package natsutil

import "time"

// Subjects for index maintenance traffic between the API server and the
// indexer worker.
const (
	// SubjectStale carries record IDs whose vector points reference
	// records that no longer exist in the store.
	SubjectStale = "inspectra.index.stale"

	// SubjectReindex requests re-embedding of specific records, or of
	// the whole corpus when All is set.
	SubjectReindex = "inspectra.index.reindex"
)

// StaleEvent reports vector index entries observed pointing at missing
// records. The indexer deletes the named points.
type StaleEvent struct {
	RecordIDs  []string  `json:"record_ids"`
	ObservedAt time.Time `json:"observed_at"`
}

// ReindexEvent asks the indexer to rebuild vectors. Either RecordIDs
// names the records to re-embed, or All requests a full rebuild.
type ReindexEvent struct {
	RecordIDs []string `json:"record_ids,omitempty"`
	All       bool     `json:"all,omitempty"`
}

package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/rbdsim/internal/dynamo"
)

// Export is the JSON form of a whole run.
type Export struct {
	RunMetadata
	Samples []dynamo.Sample `json:"samples"`
}

// ExportJSON writes a stored run, metadata and samples, as one JSON document.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, samples, err := s.LoadSamples(runID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Export{RunMetadata: *meta, Samples: samples})
}

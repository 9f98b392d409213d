package storage

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/martinsuchenak/ipusage/pkg/model"
)

// SaveSnapshot writes a snapshot as indented JSON
func SaveSnapshot(w io.Writer, snap *model.Snapshot) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(snap)
}

// LoadSnapshot reads a JSON snapshot
func LoadSnapshot(r io.Reader) (*model.Snapshot, error) {
	var snap model.Snapshot
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if err := validateSnapshot(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

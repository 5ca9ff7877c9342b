// Package archive encodes and decodes the portable state artifact used for
// export, import, and scheduled backups.
package archive

import (
	"encoding/json"
	"fmt"
	"time"

	"commune/internal/core"
)

// Version is the artifact format version written on export.
const Version = "1.0"

// Document is the full portable state artifact.
type Document struct {
	Version   string         `json:"version"`
	Timestamp time.Time      `json:"timestamp"`
	Resources core.Resources `json:"resources"`
	Settings  *core.Settings `json:"settings,omitempty"`
	History   core.History   `json:"resourceHistory"`
}

// Export builds a versioned document from the live state.
func Export(resources core.Resources, settings core.Settings, history core.History, now time.Time) Document {
	s := settings
	return Document{
		Version:   Version,
		Timestamp: now.UTC(),
		Resources: resources,
		Settings:  &s,
		History:   append(core.History(nil), history...),
	}
}

// Encode renders the document as indented JSON, the on-disk backup shape.
func (d Document) Encode() ([]byte, error) {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode archive: %w", err)
	}
	return out, nil
}

// Parse validates an import payload. Resources and a well-formed snapshot
// history are required; settings are optional and left untouched when
// absent. A rejected payload never partially applies.
func Parse(data []byte) (Document, error) {
	var raw struct {
		Version   string          `json:"version"`
		Timestamp time.Time       `json:"timestamp"`
		Resources *core.Resources `json:"resources"`
		Settings  *core.Settings  `json:"settings"`
		History   *core.History   `json:"resourceHistory"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("decode archive: %w", core.ErrInvalidFormat)
	}
	if raw.Resources == nil || raw.History == nil {
		return Document{}, fmt.Errorf("archive missing resources or resourceHistory: %w", core.ErrInvalidFormat)
	}
	if raw.Resources.Cash < 0 || raw.Resources.Reserves < 0 || raw.Resources.Debt < 0 {
		return Document{}, fmt.Errorf("archive resources negative: %w", core.ErrInvalidFormat)
	}
	if err := core.ValidateHistory(*raw.History); err != nil {
		return Document{}, fmt.Errorf("archive history: %w", err)
	}
	return Document{
		Version:   raw.Version,
		Timestamp: raw.Timestamp,
		Resources: *raw.Resources,
		Settings:  raw.Settings,
		History:   *raw.History,
	}, nil
}

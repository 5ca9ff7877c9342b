package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"commune/internal/core"
)

// StateCommitted announces one committed state change to the audit worker.
type StateCommitted struct {
	OccurredAt time.Time      `json:"occurredAt"`
	Kind       string         `json:"kind"`
	Resources  core.Resources `json:"resources"`
	Oversight  string         `json:"oversight"`
}

// NewStateCommitted builds a commit message stamped with the given time.
func NewStateCommitted(kind string, resources core.Resources, oversight string, now time.Time) StateCommitted {
	return StateCommitted{
		OccurredAt: now.UTC(),
		Kind:       kind,
		Resources:  resources,
		Oversight:  oversight,
	}
}

// ToJSON serializes the message for publishing.
func (m StateCommitted) ToJSON() ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal state committed message: %w", err)
	}
	return body, nil
}

// StateCommittedFromJSON deserializes a consumed delivery body.
func StateCommittedFromJSON(body []byte) (*StateCommitted, error) {
	var m StateCommitted
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("unmarshal state committed message: %w", err)
	}
	return &m, nil
}

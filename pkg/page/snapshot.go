package page

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Snapshot is the serialized result of a page's Fetch, embedded in the
// prerendered document and replayed on the client.
type Snapshot struct {
	// Target is the route pattern the data was fetched for.
	Target string          `json:"target"`
	Data   json.RawMessage `json:"data"`
	Meta   MetaData        `json:"meta"`
}

// Encode returns the snapshot as base64 (standard alphabet) over JSON.
func (s Snapshot) Encode() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeSnapshot parses the output of Snapshot.Encode.
func DecodeSnapshot(encoded string) (Snapshot, error) {
	var s Snapshot
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return s, fmt.Errorf("page: snapshot is not base64: %w", err)
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("page: malformed snapshot: %w", err)
	}
	return s, nil
}

package state

import (
	"encoding/json"
	"time"
)

// decodeDoc rebuilds a document from its stored row. Undecodable data reads
// as an empty document rather than failing the whole query.
func decodeDoc(id, data, createdAt, updatedAt string) Doc {
	d := Doc{ID: id}
	if err := json.Unmarshal([]byte(data), &d.Data); err != nil || d.Data == nil {
		d.Data = map[string]any{}
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return d
}

// nullable stores empty analytics columns as NULL.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

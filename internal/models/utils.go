package models

import (
	"database/sql/driver"
	"encoding/json"
)

// JSONMap is a jsonb-backed object column, used for per-backend id
// mappings on labels.
type JSONMap map[string]interface{}

func (j JSONMap) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONMap)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// StringValue returns the string stored under key, or "" when absent
// or of another type.
func (j JSONMap) StringValue(key string) string {
	if v, ok := j[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

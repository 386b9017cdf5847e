package models

import (
	"encoding/json"
	"fmt"
)

// scanJSON decodes a JSON column into dst. It reports false for SQL NULL,
// leaving dst untouched.
func scanJSON(column string, value, dst any) (bool, error) {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return false, nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return false, fmt.Errorf("%s: unsupported column type %T", column, value)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("%s: %w", column, err)
	}
	return true, nil
}

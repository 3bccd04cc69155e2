package identity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Attributes is the raw provider profile stored alongside a link.
type Attributes map[string]any

// Value implements driver.Valuer. A string is used so the same value binds
// to postgres jsonb and sqlite json columns.
func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(map[string]any(a))
	if err != nil {
		return nil, fmt.Errorf("marshal attributes: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (a *Attributes) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Attributes{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan attributes: unsupported type %T", src)
	}
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("unmarshal attributes: %w", err)
		}
	}
	*a = out
	return nil
}

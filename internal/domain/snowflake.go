package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Snowflake is a platform identifier (guild, channel, role, user). The empty
// value means "not configured" and is persisted as JSON null.
type Snowflake string

func (s Snowflake) String() string {
	return string(s)
}

// IsSet reports whether the identifier has a value
func (s Snowflake) IsSet() bool {
	return s != ""
}

func (s Snowflake) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON accepts null, a quoted id, or a bare JSON number. Older
// configuration files wrote channel and role ids as numbers.
func (s *Snowflake) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if raw == "null" {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Snowflake(str)
		return nil
	}
	if _, err := strconv.ParseUint(raw, 10, 64); err != nil {
		return fmt.Errorf("invalid snowflake %s: %w", raw, err)
	}
	*s = Snowflake(raw)
	return nil
}

// ParseSnowflake validates that value is a non-empty unsigned integer id
func ParseSnowflake(value string) (Snowflake, error) {
	if value == "" {
		return "", fmt.Errorf("empty id")
	}
	if _, err := strconv.ParseUint(value, 10, 64); err != nil {
		return "", fmt.Errorf("invalid id %q: %w", value, err)
	}
	return Snowflake(value), nil
}

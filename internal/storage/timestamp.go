package storage

import (
	"fmt"
	"time"
)

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// sqlTime scans DATETIME columns whether the driver hands back a time.Time
// or the stored text (RETURNING clauses carry no declared column type).
type sqlTime struct {
	dst *time.Time
}

func (t sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*t.dst = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case int64:
		*t.dst = time.Unix(v, 0).UTC()
		return nil
	case nil:
		*t.dst = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t sqlTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t.dst = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

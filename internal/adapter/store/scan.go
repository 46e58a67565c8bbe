package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// textTimeLayout is fixed-width so stored timestamps sort lexically.
const textTimeLayout = "2006-01-02T15:04:05.000000Z"

var parseLayouts = []string{
	textTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// timeScanner scans TIMESTAMPTZ/DATE values and their TEXT encodings into a time.Time.
type timeScanner struct{ t *time.Time }

func (s timeScanner) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s.t = time.Time{}
		return nil
	case time.Time:
		*s.t = v.UTC()
		return nil
	case []byte:
		return s.parse(string(v))
	case string:
		return s.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}
}

func (s timeScanner) parse(v string) error {
	v = strings.TrimSpace(v)
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			*s.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %s", strconv.Quote(v))
}

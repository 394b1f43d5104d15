package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Time decodes the timestamps the backend emits: ISO-8601 with fractional
// seconds, ISO-8601 without them, or integer unix seconds.
type Time struct {
	time.Time
}

var isoLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z07:00",
}

func (t *Time) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if len(b) > 0 && b[0] != '"' {
		n, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("timestamp %s: %w", b, err)
		}
		sec := int64(n)
		t.Time = time.Unix(sec, int64((n-float64(sec))*1e9)).UTC()
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range isoLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp %q is not ISO-8601", s)
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

package config

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

var durationPattern = regexp.MustCompile(`^([0-9.]+)(ms|s|m)$`)

// ParseError reports a malformed duration string.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid duration %q: %s", e.Input, e.Reason)
}

// ParseMillis converts a duration string such as "500ms", "10s" or "1.5m"
// to whole milliseconds.
//
// The literal may be an integer or a decimal and must be immediately
// followed by one of the case-sensitive units "ms", "s" or "m". Fractional
// results are rounded to the nearest millisecond.
func ParseMillis(s string) (int64, error) {
	if s == "" {
		return 0, &ParseError{Input: s, Reason: "empty string"}
	}

	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, &ParseError{Input: s, Reason: "expected <number><ms|s|m>"}
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, &ParseError{Input: s, Reason: "not a number"}
	}

	switch m[2] {
	case "s":
		v *= 1000
	case "m":
		v *= 60000
	}

	if v > float64(math.MaxInt64/int64(time.Millisecond)) {
		return 0, &ParseError{Input: s, Reason: "out of range"}
	}

	return int64(math.Round(v)), nil
}

// FormatMillis is the inverse of ParseMillis. It picks the largest unit
// that represents ms exactly.
func FormatMillis(ms int64) string {
	switch {
	case ms != 0 && ms%60000 == 0:
		return strconv.FormatInt(ms/60000, 10) + "m"
	case ms != 0 && ms%1000 == 0:
		return strconv.FormatInt(ms/1000, 10) + "s"
	default:
		return strconv.FormatInt(ms, 10) + "ms"
	}
}

// ParseDuration is ParseMillis returning a time.Duration.
func ParseDuration(s string) (time.Duration, error) {
	ms, err := ParseMillis(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Duration is a time.Duration that unmarshals from "<num><ms|s|m>" strings.
type Duration time.Duration

// Millis returns the duration in whole milliseconds.
func (d Duration) Millis() int64 {
	return time.Duration(d).Milliseconds()
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return &ParseError{Input: string(b), Reason: "duration must be a string"}
	}

	dur, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) String() string {
	return FormatMillis(d.Millis())
}

package toolkit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var errNotADate = errors.New("expected YYYY-MM-DD, RFC3339, today or tomorrow")

// decodeArgs parses a tool call's argument string. An empty string is an
// empty object; anything other than a JSON object is rejected.
func decodeArgs(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errors.New("arguments must be a JSON object")
	}
	return m, nil
}

// normalize coerces numeric strings and relative or partial dates in place so
// that equal requests hash equally and the schema sees canonical values.
func normalize(def *Definition, args map[string]any, loc *time.Location, now time.Time) error {
	for key, rng := range def.Numbers {
		v, ok := args[key]
		if !ok || v == nil {
			continue
		}
		f, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || f < rng.Min || f > rng.Max {
			return fmt.Errorf("%s must be between %g and %g", key, rng.Min, rng.Max)
		}
		if rng.Integer {
			if f != math.Trunc(f) {
				return fmt.Errorf("%s must be a whole number", key)
			}
		}
		args[key] = f
	}
	for key, kind := range def.Dates {
		v, ok := args[key]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s: %w", key, errNotADate)
		}
		if strings.TrimSpace(s) == "" {
			delete(args, key)
			continue
		}
		t, err := ParseDate(s, kind, loc, now)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if kind == DateOnly {
			args[key] = t.Format("2006-01-02")
		} else {
			args[key] = t.UTC().Format(time.RFC3339)
		}
	}
	for key, v := range args {
		if n, ok := v.(json.Number); ok {
			f, err := n.Float64()
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			args[key] = f
		}
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case json.Number:
		return x.Float64()
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, ",", ""))
		s = strings.TrimPrefix(s, "$")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number, got %q", x)
		}
		return f, nil
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

// ParseDate accepts RFC3339, YYYY-MM-DD, YYYY-MM-DD HH:MM and the words
// today and tomorrow, which resolve against now in loc. Date-times given
// only as a day start at 09:00 local.
func ParseDate(s string, kind DateKind, loc *time.Location, now time.Time) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	var t time.Time
	dayOnly := false
	switch strings.ToLower(s) {
	case "today":
		t, dayOnly = day, true
	case "tomorrow":
		t, dayOnly = day.AddDate(0, 0, 1), true
	default:
		var err error
		if t, err = time.Parse(time.RFC3339, s); err == nil {
			t = t.In(loc)
			break
		}
		if t, err = time.ParseInLocation("2006-01-02", s, loc); err == nil {
			dayOnly = true
			break
		}
		for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02T15:04:05"} {
			if t, err = time.ParseInLocation(layout, s, loc); err == nil {
				break
			}
		}
		if err != nil {
			return time.Time{}, errNotADate
		}
	}
	if kind == DateTime && dayOnly {
		t = t.Add(9 * time.Hour)
	}
	return t, nil
}

// IdempotencyHash is sha256 over workspace, room, tool and the canonical
// JSON of the normalized arguments. encoding/json sorts map keys, so the
// encoding is stable.
func IdempotencyHash(workspaceID, roomID uuid.UUID, tool string, args map[string]any, salt string) (string, error) {
	canon, err := canonicalJSON(args)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(workspaceID.String()))
	h.Write([]byte{'|'})
	h.Write([]byte(roomID.String()))
	h.Write([]byte{'|'})
	h.Write([]byte(tool))
	h.Write([]byte{'|'})
	h.Write(canon)
	if salt != "" {
		h.Write([]byte{'|'})
		h.Write([]byte(salt))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func canonicalJSON(v map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func str(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func optUUID(args map[string]any, key string) (*uuid.UUID, error) {
	s := str(args, key)
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%s is not a valid id", key)
	}
	return &id, nil
}

func optDate(args map[string]any, key string, layout string) *time.Time {
	s := str(args, key)
	if s == "" {
		return nil
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

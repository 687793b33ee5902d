package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Pair is one member of a structured EventValue. Array elements use their index as Key.
type Pair struct {
	Key   string
	Value string
}

// EventValue is either a plain scalar or an ordered structure of string-coerced members.
type EventValue struct {
	structured bool
	array      bool
	scalar     string
	pairs      []Pair
}

// Scalar wraps a plain string.
func Scalar(s string) EventValue {
	return EventValue{scalar: s}
}

// Structured builds an object-shaped value; member order is preserved.
func Structured(pairs ...Pair) EventValue {
	return EventValue{structured: true, pairs: append([]Pair(nil), pairs...)}
}

// List builds an array-shaped value.
func List(values ...string) EventValue {
	v := EventValue{structured: true, array: true}
	for i, s := range values {
		v.pairs = append(v.pairs, Pair{Key: strconv.Itoa(i), Value: s})
	}
	return v
}

func (v EventValue) IsStructured() bool { return v.structured }

// Lookup returns the member stored under key.
func (v EventValue) Lookup(key string) (string, bool) {
	for _, p := range v.pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// First returns the first member in document order.
func (v EventValue) First() (string, bool) {
	if len(v.pairs) == 0 {
		return "", false
	}
	return v.pairs[0].Value, true
}

func (v EventValue) Pairs() []Pair {
	return append([]Pair(nil), v.pairs...)
}

// String is the scalar form. Structured values render as JSON.
func (v EventValue) String() string {
	if !v.structured {
		return v.scalar
	}
	b, err := v.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}

// NormalizeKeyword resolves the keyword a click refers to. For structured input the order is
// an explicit keyword member, then the last path segment of a shorturl member, then the first member.
func NormalizeKeyword(v EventValue) string {
	if !v.structured {
		return v.scalar
	}
	if kw, ok := v.Lookup("keyword"); ok {
		return kw
	}
	if short, ok := v.Lookup("shorturl"); ok {
		return lastPathSegment(short)
	}
	first, _ := v.First()
	return first
}

// NormalizeURL resolves the long URL of a click: a url member, else the first member.
func NormalizeURL(v EventValue) string {
	if !v.structured {
		return v.scalar
	}
	if u, ok := v.Lookup("url"); ok {
		return u
	}
	first, _ := v.First()
	return first
}

func lastPathSegment(s string) string {
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// MarshalJSON keeps the shape the value was built or decoded with.
func (v EventValue) MarshalJSON() ([]byte, error) {
	if !v.structured {
		return json.Marshal(v.scalar)
	}

	var buf bytes.Buffer
	if v.array {
		buf.WriteByte('[')
		for i, p := range v.pairs {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := json.Marshal(p.Value)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	}

	buf.WriteByte('{')
	for i, p := range v.pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts any JSON value. Numbers and booleans become scalars in their text form,
// null becomes the empty scalar, and nested members are coerced to strings. Null object members
// are dropped so that a present key always carries a value.
func (v *EventValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("event value: %w", err)
	}

	switch t := tok.(type) {
	case json.Delim:
		out := EventValue{structured: true, array: t == '['}
		for i := 0; dec.More(); i++ {
			key := strconv.Itoa(i)
			if !out.array {
				keyTok, err := dec.Token()
				if err != nil {
					return fmt.Errorf("event value: %w", err)
				}
				key, _ = keyTok.(string)
			}
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("event value: %w", err)
			}
			val, isNull := coerceRaw(raw)
			if isNull && !out.array {
				continue
			}
			out.pairs = append(out.pairs, Pair{Key: key, Value: val})
		}
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("event value: %w", err)
		}
		*v = out
	default:
		s, _ := scalarText(tok)
		*v = Scalar(s)
	}
	return nil
}

func coerceRaw(raw json.RawMessage) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return string(raw), false
	}
	if s, ok := scalarText(x); ok {
		return s, x == nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw), false
	}
	return buf.String(), false
}

func scalarText(x any) (string, bool) {
	switch t := x.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

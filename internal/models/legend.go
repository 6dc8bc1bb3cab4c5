package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LegendEntry maps one semantic token name to its integer code.
type LegendEntry struct {
	Name string `json:"name" yaml:"name"`
	Code int    `json:"code" yaml:"code"`
}

// Legend is a name→code mapping in declared order, as written by one source.
// In JSON it is an object ({"WILDS": 1, ...}); key order is preserved.
type Legend []LegendEntry

// DefaultLegend returns the four token kinds written by the simulator.
func DefaultLegend() Legend {
	return Legend{
		{Name: "WILDS", Code: 1},
		{Name: "WASTES", Code: 2},
		{Name: "DEVA", Code: 3},
		{Name: "DEVB", Code: 4},
	}
}

// UnmarshalJSON decodes a JSON object, keeping key order.
func (l *Legend) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("legend must be an object")
	}

	var out Legend
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		code, ok := CoerceInt(raw)
		if !ok {
			return fmt.Errorf("legend code for %q is not an integer: %s", name, raw)
		}
		out = append(out, LegendEntry{Name: name, Code: int(code)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*l = out
	return nil
}

// MarshalJSON encodes the legend as a JSON object in declared order.
func (l Legend) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(e.Code))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// CoerceInt converts a raw JSON scalar to an integer.
// Integers, integral floats (2.0) and numeric strings ("2") coerce;
// null, booleans, fractional numbers, objects and arrays do not.
func CoerceInt(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}

	switch raw[0] {
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
		return ParseInt(text)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return ParseInt(string(raw))
	default:
		return 0, false
	}
}

// ParseInt converts text such as "3", " 3 " or "3.0" to an integer.
// Fractional and non-numeric text does not convert.
func ParseInt(text string) (int64, bool) {
	text = strings.TrimSpace(text)
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

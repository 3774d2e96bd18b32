package frame

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Frames serialize column by column. Each non-null value is written as text
// and parsed back according to its column's kind, so a round trip keeps
// storage kinds intact. Mixed columns carry one kind per value.

type jsonColumn struct {
	Name   string    `json:"name"`
	Kind   Kind      `json:"kind"`
	Values []*string `json:"values"`
	Kinds  []Kind    `json:"kinds,omitempty"`
}

type jsonFrame struct {
	Rows    int          `json:"rows"`
	Columns []jsonColumn `json:"columns"`
}

func (f *Frame) MarshalJSON() ([]byte, error) {
	out := jsonFrame{Rows: f.rows, Columns: make([]jsonColumn, 0, len(f.names))}
	for _, name := range f.names {
		col := f.cols[name]
		jc := jsonColumn{Name: name, Kind: col.Kind, Values: make([]*string, len(col.Values))}
		if col.Kind == KindMixed {
			jc.Kinds = make([]Kind, len(col.Values))
		}
		for i, v := range col.Values {
			if v == nil {
				continue
			}
			s := encodeValue(v)
			jc.Values[i] = &s
			if jc.Kinds != nil {
				jc.Kinds[i] = kindOf(v)
			}
		}
		out.Columns = append(out.Columns, jc)
	}
	return json.Marshal(out)
}

func (f *Frame) UnmarshalJSON(b []byte) error {
	var in jsonFrame
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	decoded := New()
	decoded.rows = in.Rows
	for _, jc := range in.Columns {
		if len(jc.Values) != in.Rows {
			return fmt.Errorf("column %q has %d values, frame has %d rows", jc.Name, len(jc.Values), in.Rows)
		}
		values := make([]any, len(jc.Values))
		for i, s := range jc.Values {
			if s == nil {
				continue
			}
			kind := jc.Kind
			if kind == KindMixed && i < len(jc.Kinds) {
				kind = jc.Kinds[i]
			}
			v, err := decodeValue(kind, *s)
			if err != nil {
				return fmt.Errorf("column %q row %d: %w", jc.Name, i, err)
			}
			values[i] = v
		}
		decoded.names = append(decoded.names, jc.Name)
		decoded.cols[jc.Name] = &Column{Name: jc.Name, Kind: jc.Kind, Values: values}
	}
	*f = *decoded
	return nil
}

func encodeValue(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339Nano)
	}
	return AsString(v)
}

func decodeValue(kind Kind, s string) (any, error) {
	switch kind {
	case KindInteger:
		return strconv.ParseInt(s, 10, 64)
	case KindDecimal:
		return decimal.NewFromString(s)
	case KindTimestamp:
		return time.Parse(time.RFC3339Nano, s)
	case KindBool:
		return strconv.ParseBool(s)
	default:
		return s, nil
	}
}

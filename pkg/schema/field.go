package schema

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// FieldType is the declared scalar type of a schema field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldLongText FieldType = "longtext"
	FieldURL      FieldType = "url"
	FieldNumber   FieldType = "number"
	FieldInteger  FieldType = "integer"
	FieldBool     FieldType = "bool"
	FieldDateTime FieldType = "datetime"
	FieldMedia    FieldType = "media"
)

// DateTimeLocal is the layout produced by HTML datetime-local inputs.
const DateTimeLocal = "2006-01-02T15:04"

var timeLayouts = []string{
	time.RFC3339Nano,
	DateTimeLocal,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// FieldSpec describes one field of an entity kind.
type FieldSpec struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Default  any       `json:"default,omitempty"`
}

// Schema is the declarative configuration of one entity kind.
type Schema struct {
	Kind          string      `json:"kind"`
	Label         string      `json:"label"`
	Collection    string      `json:"collection"`
	Fields        []FieldSpec `json:"fields"`
	TitleField    string      `json:"titleField"`
	MediaField    string      `json:"mediaField,omitempty"`
	MediaRequired bool        `json:"mediaRequired"`
	OrderField    string      `json:"orderField,omitempty"`
	ActiveField   string      `json:"activeField,omitempty"`
	LegacyPath    string      `json:"-"`
}

// Field returns the spec for name.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// HasMedia reports whether records of this kind carry a media reference.
func (s *Schema) HasMedia() bool {
	return s.MediaField != ""
}

// Exclusive reports whether records of this kind form an active group.
func (s *Schema) Exclusive() bool {
	return s.ActiveField != ""
}

// Defaults returns the initial draft values: every non-media field mapped to
// its default, or nil when it has none.
func (s *Schema) Defaults() map[string]any {
	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		if f.Type == FieldMedia {
			continue
		}
		switch {
		case f.Default != nil:
			out[f.Name] = f.Default
		case f.Type == FieldBool:
			out[f.Name] = false
		default:
			out[f.Name] = nil
		}
	}
	return out
}

// Coerce converts a raw input value for field name into its declared Go
// type: string for text-like and media fields, float64 for numbers, int for
// integers, bool, and time.Time for datetimes. Empty strings become nil for
// every non-text type.
func (s *Schema) Coerce(name string, v any) (any, error) {
	f, ok := s.Field(name)
	if !ok {
		return nil, fmt.Errorf("%s: unknown field %q", s.Kind, name)
	}
	out, err := coerce(f.Type, v)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", s.Kind, name, err)
	}
	return out, nil
}

// finite rejects values JSON cannot encode.
func finite(f float64) (any, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("%v is not a finite number", f)
	}
	return f, nil
}

func coerce(t FieldType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, isString := v.(string)
	if isString {
		raw = strings.TrimSpace(raw)
	}

	switch t {
	case FieldText, FieldLongText, FieldURL, FieldMedia:
		if isString {
			return raw, nil
		}
		return cast.ToStringE(v)

	case FieldNumber:
		if isString {
			if raw == "" {
				return nil, nil
			}
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, err
			}
			return finite(f)
		}
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, err
		}
		return finite(f)

	case FieldInteger:
		if isString {
			if raw == "" {
				return nil, nil
			}
			return strconv.Atoi(raw)
		}
		return cast.ToIntE(v)

	case FieldBool:
		if isString {
			switch strings.ToLower(raw) {
			case "", "off":
				return false, nil
			case "on":
				return true, nil
			}
		}
		return cast.ToBoolE(v)

	case FieldDateTime:
		if tm, ok := v.(time.Time); ok {
			return tm, nil
		}
		if isString {
			if raw == "" {
				return nil, nil
			}
			for _, layout := range timeLayouts {
				if tm, err := time.Parse(layout, raw); err == nil {
					return tm, nil
				}
			}
		}
		return cast.ToTimeE(v)
	}
	return nil, fmt.Errorf("unsupported field type %q", t)
}

// ToRecord maps a stored entry onto the view record shape. Values that fail
// coercion are kept as stored; fields unknown to the schema are kept raw.
func (s *Schema) ToRecord(e Entry) Record {
	rec := Record{ID: e.ID, Fields: make(map[string]any, len(e.Fields))}
	for k, v := range e.Fields {
		if _, known := s.Field(k); known {
			if cv, err := s.Coerce(k, v); err == nil {
				v = cv
			}
		}
		rec.Fields[k] = v
	}

	if title, ok := rec.Fields[s.TitleField].(string); ok {
		rec.Title = title
	}
	if s.HasMedia() {
		if ref, ok := rec.Fields[s.MediaField].(string); ok {
			rec.MediaRef = ref
		}
	}
	if s.OrderField != "" {
		if n, ok := rec.Fields[s.OrderField].(int); ok {
			rec.Order = &n
		}
	}
	if s.Exclusive() {
		if b, ok := rec.Fields[s.ActiveField].(bool); ok {
			rec.Active = &b
		}
	}
	return rec
}

// SortRecords orders records by the schema's order field, keeping the
// incoming order for ties and for records without an ordering key.
func (s *Schema) SortRecords(records []Record) {
	if s.OrderField == "" {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		oi, oj := records[i].Order, records[j].Order
		switch {
		case oi == nil:
			return false
		case oj == nil:
			return true
		default:
			return *oi < *oj
		}
	})
}

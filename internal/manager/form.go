package manager

import (
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/aalan294/campus-life-admin/internal/media"
	"github.com/aalan294/campus-life-admin/pkg/schema"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Form holds the local, unsaved values of one entity: either a creation
// draft or an edit form copied from a persisted record. It never performs
// I/O and is safe for concurrent use.
type Form struct {
	mu       sync.Mutex
	schema   *schema.Schema
	id       string
	state    State
	values   map[string]any
	original map[string]any
	file     *media.File
	errs     FieldErrors
}

// NewForm returns an empty creation draft for s.
func NewForm(s *schema.Schema) *Form {
	f := &Form{schema: s}
	f.Reset()
	return f
}

// newEditForm copies rec into a detached edit form.
func newEditForm(s *schema.Schema, rec schema.Record) *Form {
	values := s.Defaults()
	for _, fs := range s.Fields {
		if v, ok := rec.Fields[fs.Name]; ok {
			values[fs.Name] = v
		}
	}
	return &Form{
		schema:   s,
		id:       rec.ID,
		state:    StateEditing,
		values:   values,
		original: copyValues(values),
	}
}

// ID returns the record ID of an edit form, or "" for a draft.
func (f *Form) ID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id
}

// State returns StateDraft, StateEditing or StateSubmitting.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Form) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// SetField replaces one value, converted to the field's declared type, and
// clears that field's error. Unknown fields are rejected.
func (f *Form) SetField(name string, v any) error {
	fs, ok := f.schema.Field(name)
	if !ok {
		return &ValidationError{Kind: f.schema.Kind, Fields: FieldErrors{name: "unknown field"}}
	}
	cv, err := f.schema.Coerce(name, v)
	if err != nil {
		f.mu.Lock()
		f.setErr(name, fs.Label+" has an invalid value")
		f.mu.Unlock()
		return &ValidationError{Kind: f.schema.Kind, Fields: FieldErrors{name: fs.Label + " has an invalid value"}}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = cv
	delete(f.errs, name)
	return nil
}

// SetFile attaches a pending media file and clears the media error.
func (f *Form) SetFile(file media.File) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.file = &file
	delete(f.errs, f.schema.MediaField)
}

// File returns the pending media file, if any.
func (f *Form) File() *media.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	cp := *f.file
	return &cp
}

// Value returns the current value of one field.
func (f *Form) Value(name string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[name]
}

// Values returns a copy of every field value.
func (f *Form) Values() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyValues(f.values)
}

// Errors returns the messages recorded by the last Validate and SetField
// calls.
func (f *Form) Errors() FieldErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(FieldErrors, len(f.errs))
	for k, v := range f.errs {
		out[k] = v
	}
	return out
}

// Validate checks every field and returns the failures, or nil. It records
// the messages on the form but never changes a value.
func (f *Form) Validate() FieldErrors {
	f.mu.Lock()
	defer f.mu.Unlock()

	fe := validateValues(f.schema, f.withMedia(), nil)
	f.errs = fe
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// Reset drops the pending file and errors and restores the starting values:
// schema defaults for a draft, the loaded record for an edit form.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.id == "" {
		f.values = f.schema.Defaults()
		f.original = nil
		f.state = StateDraft
	} else {
		f.values = copyValues(f.original)
		f.state = StateEditing
	}
	f.file = nil
	f.errs = nil
}

// Document returns the values to store on create. Unset fields are left
// out.
func (f *Form) Document() schema.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := make(schema.Document, len(f.values))
	for k, v := range f.values {
		if v != nil {
			doc[k] = v
		}
	}
	return doc
}

// Changes returns only the fields that differ from the loaded record.
func (f *Form) Changes() schema.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := schema.Document{}
	for k, v := range f.values {
		if !sameValue(v, f.original[k]) {
			doc[k] = v
		}
	}
	return doc
}

// committed marks the current values as persisted.
func (f *Form) committed(mediaRef string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if mediaRef != "" && f.schema.HasMedia() {
		f.values[f.schema.MediaField] = mediaRef
	}
	f.original = copyValues(f.values)
	f.file = nil
	f.state = StateEditing
}

// withMedia returns the values with the media field standing in for the
// pending file. It MUST be called while holding f.mu.
func (f *Form) withMedia() map[string]any {
	vals := copyValues(f.values)
	if f.schema.HasMedia() && f.file != nil {
		vals[f.schema.MediaField] = f.file.Name
		if f.file.Name == "" {
			vals[f.schema.MediaField] = "upload"
		}
	}
	return vals
}

// setErr MUST be called while holding f.mu.
func (f *Form) setErr(name, msg string) {
	if f.errs == nil {
		f.errs = FieldErrors{}
	}
	f.errs[name] = msg
}

// validateValues runs the schema rules over vals. When only is non-nil,
// fields outside it are skipped.
func validateValues(s *schema.Schema, vals map[string]any, only map[string]bool) FieldErrors {
	keys := make([]*validation.KeyRules, 0, len(s.Fields))
	for _, fs := range s.Fields {
		if only != nil && !only[fs.Name] {
			continue
		}
		if _, ok := vals[fs.Name]; !ok {
			vals[fs.Name] = nil
		}
		keys = append(keys, validation.Key(fs.Name, fieldRules(s, fs)...))
	}

	err := validation.Validate(vals, validation.Map(keys...).AllowExtraKeys())
	if err == nil {
		return nil
	}

	fe := FieldErrors{}
	var errs validation.Errors
	if errors.As(err, &errs) {
		for name, e := range errs {
			fe[name] = e.Error()
		}
		return fe
	}
	fe["_"] = err.Error()
	return fe
}

func fieldRules(s *schema.Schema, fs schema.FieldSpec) []validation.Rule {
	required := fs.Required || (fs.Type == schema.FieldMedia && s.MediaRequired)
	var rules []validation.Rule

	switch fs.Type {
	case schema.FieldNumber:
		if required {
			rules = append(rules, validation.NotNil.Error(fs.Label+" is required"))
		}
		rules = append(rules, validation.Min(0.0).Error(fs.Label+" must be zero or more"))
	case schema.FieldInteger:
		if required {
			rules = append(rules, validation.NotNil.Error(fs.Label+" is required"))
		}
		rules = append(rules, validation.Min(0).Error(fs.Label+" must be zero or more"))
	case schema.FieldBool:
		// a checkbox is always answered
	case schema.FieldURL:
		if required {
			rules = append(rules, validation.Required.Error(fs.Label+" is required"))
		}
		rules = append(rules, is.URL.Error(fs.Label+" must be a valid URL"))
	default:
		if required {
			rules = append(rules, validation.Required.Error(fs.Label+" is required"))
		}
	}
	return rules
}

func copyValues(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sameValue(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

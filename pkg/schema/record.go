// Package schema defines the entity kinds managed by the campus-life dashboard
// and the record shapes shared by every store backend.
package schema

// Document is a flat mapping of named scalar fields as it is stored remotely.
type Document map[string]any

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge writes every field of partial into d, returning d.
func (d Document) Merge(partial Document) Document {
	if d == nil {
		d = make(Document, len(partial))
	}
	for k, v := range partial {
		d[k] = v
	}
	return d
}

// Entry is a stored document together with its store-assigned ID.
type Entry struct {
	ID     string   `json:"id"`
	Fields Document `json:"fields"`
}

// Record is the local view of one persisted entity. Fields carries every
// stored field coerced to its declared type; the well-known fields are
// lifted out for convenience.
type Record struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	MediaRef string         `json:"mediaRef,omitempty"`
	ViewURL  string         `json:"viewUrl,omitempty"`
	Order    *int           `json:"order,omitempty"`
	Active   *bool          `json:"active,omitempty"`
	Fields   map[string]any `json:"fields"`
}

// IsActive reports whether the record carries an active flag set to true.
func (r Record) IsActive() bool {
	return r.Active != nil && *r.Active
}

package sencillo

import (
	"encoding/json"
	"strconv"
)

// Document is a user record plus the engine-assigned _id. The zero value
// is not usable; construct documents with user fields and let Create
// assign _id.
type Document map[string]interface{}

// idField is the reserved key holding the engine-assigned identifier.
const idField = "_id"

// ID returns the document's _id and whether one is present.
func (d Document) ID() (int64, bool) {
	return docID(d)
}

// clone returns a shallow copy of d. Callers must not mutate documents
// returned by the engine in place; every accessor returns a clone so the
// resident store's own copy stays authoritative.
func (d Document) clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// withID returns a clone of d with _id overwritten.
func (d Document) withID(id int64) Document {
	out := d.clone()
	out[idField] = id
	return out
}

// withoutID returns a clone of d with _id removed, used when recording a
// normalized AOF instruction (the id is recomputed deterministically on
// replay from Stats.Inserted, not carried in the log).
func (d Document) withoutID() Document {
	out := d.clone()
	delete(out, idField)
	return out
}

func docID(d Document) (int64, bool) {
	v, ok := d[idField]
	if !ok {
		return 0, false
	}
	return toInt64(v)
}

func toInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case json.Number:
		i, err := t.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// stringify renders a field value the way the secondary index and the
// matcher's equality fallback key documents by: strings pass through
// unchanged, scalars use their canonical textual form, everything else
// falls back to its JSON encoding.
func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case json.Number:
		return t.String()
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		bs, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(bs)
	}
}

// Package query compiles filter objects into document predicates.
//
// A filter is a mapping from field name to either a literal value or an
// operator-object (e.g. {"$gt": 8}). Compile turns that mapping into a
// callable predicate and, alongside it, an inspectable operator tree
// (Node) so callers can explain what got compiled without re-parsing the
// filter. Exposing both forms side by side follows the "callback in
// collection" re-architecture note: model the query either as a tree or
// as a boxed predicate capability, and expose both.
package query

import (
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Document is the shape a predicate matches against. It mirrors the
// engine's Document type structurally so this package has no dependency
// on the root module.
type Document = map[string]interface{}

// Predicate reports whether a document satisfies a compiled filter.
type Predicate func(Document) bool

// NodeKind enumerates the operator tree's node variants.
type NodeKind int

const (
	NodeEq NodeKind = iota
	NodeNe
	NodeGt
	NodeGte
	NodeLt
	NodeLte
	NodeIn
	NodeNin
	NodeRegex
	NodeAnd
	NodeFallback
)

// Node is one compiled clause (or the root conjunction of every clause in
// the filter). Leaf nodes carry Field/Target; NodeAnd carries Children.
type Node struct {
	Kind     NodeKind
	Field    string
	Target   interface{}
	Children []Node
}

var knownOperators = map[string]NodeKind{
	"$eq":    NodeEq,
	"$ne":    NodeNe,
	"$gt":    NodeGt,
	"$gte":   NodeGte,
	"$lt":    NodeLt,
	"$lte":   NodeLte,
	"$in":    NodeIn,
	"$nin":   NodeNin,
	"$regex": NodeRegex,
}

// Compile turns a filter plus an optional user predicate into a single
// Predicate and the Node tree it was built from. extra may be nil.
func Compile(filter map[string]interface{}, extra Predicate) (Predicate, Node, error) {
	fields := make([]string, 0, len(filter))
	for f := range filter {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	root := Node{Kind: NodeAnd}
	preds := make([]Predicate, 0, len(fields))

	for _, field := range fields {
		clause := filter[field]
		node, pred, err := compileClause(field, clause)
		if err != nil {
			return nil, Node{}, err
		}
		root.Children = append(root.Children, node)
		preds = append(preds, pred)
	}

	compiled := func(doc Document) bool {
		for _, p := range preds {
			if !p(doc) {
				return false
			}
		}
		if extra != nil && !extra(doc) {
			return false
		}
		return true
	}

	return compiled, root, nil
}

func compileClause(field string, clause interface{}) (Node, Predicate, error) {
	obj, isObject := clause.(map[string]interface{})
	if !isObject {
		target := clause
		node := Node{Kind: NodeEq, Field: field, Target: target}
		return node, func(doc Document) bool {
			return deepEqual(doc[field], target)
		}, nil
	}

	if !allKnownOperators(obj) {
		node := Node{Kind: NodeFallback, Field: field, Target: obj}
		return node, func(doc Document) bool {
			return deepEqual(doc[field], obj)
		}, nil
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	and := Node{Kind: NodeAnd, Field: field}
	preds := make([]Predicate, 0, len(keys))

	for _, op := range keys {
		target := obj[op]
		kind := knownOperators[op]
		leaf := Node{Kind: kind, Field: field, Target: target}
		and.Children = append(and.Children, leaf)

		switch kind {
		case NodeEq:
			preds = append(preds, func(doc Document) bool { return deepEqual(doc[field], target) })
		case NodeNe:
			preds = append(preds, func(doc Document) bool { return !deepEqual(doc[field], target) })
		case NodeGt:
			preds = append(preds, func(doc Document) bool { return compareOk(doc[field], target, func(c int) bool { return c > 0 }) })
		case NodeGte:
			preds = append(preds, func(doc Document) bool { return compareOk(doc[field], target, func(c int) bool { return c >= 0 }) })
		case NodeLt:
			preds = append(preds, func(doc Document) bool { return compareOk(doc[field], target, func(c int) bool { return c < 0 }) })
		case NodeLte:
			preds = append(preds, func(doc Document) bool { return compareOk(doc[field], target, func(c int) bool { return c <= 0 }) })
		case NodeIn:
			preds = append(preds, func(doc Document) bool { return sequenceContains(target, doc[field]) })
		case NodeNin:
			preds = append(preds, func(doc Document) bool { return !sequenceContains(target, doc[field]) })
		case NodeRegex:
			pattern, _ := target.(string)
			re, err := regexp.Compile(pattern)
			if err != nil {
				return Node{}, nil, err
			}
			preds = append(preds, func(doc Document) bool {
				s, ok := doc[field].(string)
				return ok && re.MatchString(s)
			})
		}
	}

	return and, func(doc Document) bool {
		for _, p := range preds {
			if !p(doc) {
				return false
			}
		}
		return true
	}, nil
}

func allKnownOperators(obj map[string]interface{}) bool {
	for k := range obj {
		if _, ok := knownOperators[k]; !ok {
			return false
		}
	}
	return true
}

// SimpleEqClauses returns, for every field in filter whose clause is a bare
// literal or an operator-object containing only "$eq", the target value the
// secondary-index optimizer can use for a point lookup.
func SimpleEqClauses(filter map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for field, clause := range filter {
		if obj, ok := clause.(map[string]interface{}); ok {
			if len(obj) == 1 {
				if target, ok := obj["$eq"]; ok {
					out[field] = target
				}
			}
			continue
		}
		out[field] = clause
	}
	return out
}

func sequenceContains(seq interface{}, value interface{}) bool {
	slice, ok := toSlice(seq)
	if !ok {
		return false
	}
	for _, item := range slice {
		if deepEqual(item, value) {
			return true
		}
	}
	return false
}

func toSlice(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case []interface{}:
		return t, true
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, false
		}
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
}

func compareOk(value, target interface{}, ok func(int) bool) bool {
	c, comparable := compare(value, target)
	return comparable && ok(c)
}

// compare returns -1/0/1 for value relative to target when both are
// numbers or both are strings; otherwise it reports not comparable.
func compare(value, target interface{}) (int, bool) {
	if vs, ok := value.(string); ok {
		if ts, ok := target.(string); ok {
			return strings.Compare(vs, ts), true
		}
		return 0, false
	}
	vn, ok1 := toFloat(value)
	tn, ok2 := toFloat(target)
	if !ok1 || !ok2 {
		return 0, false
	}
	switch {
	case vn < tn:
		return -1, true
	case vn > tn:
		return 1, true
	default:
		return 0, true
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case interface{ String() string }:
		f, err := strconv.ParseFloat(t.String(), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// deepEqual implements the matcher's "strict equality" / "deep structural
// equality" requirement with numeric normalization so 1 and 1.0 (which
// both decode from JSON as float64 anyway, but may arrive as json.Number
// from the codec) compare equal.
func deepEqual(a, b interface{}) bool {
	na, nb := normalize(a), normalize(b)
	return reflect.DeepEqual(na, nb)
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case interface{ Float64() (float64, error) }:
		f, err := t.Float64()
		if err == nil {
			return f
		}
		return v
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		if f, ok := toFloat(v); ok {
			return f
		}
		return v
	}
}

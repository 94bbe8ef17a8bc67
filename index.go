package sencillo

// Index selects the partition a document belongs to for create,
// createMany, update, and rewriteCollection — the source's overloaded
// "index" input, which can be a fixed name or a function deriving one
// per document.
type Index interface {
	partitionFor(doc Document) string
}

type namedIndex string

func (n namedIndex) partitionFor(Document) string { return string(n) }

type derivedIndex func(Document) string

func (f derivedIndex) partitionFor(d Document) string { return f(d) }

// StaticIndex pins every document it selects to the same named
// partition.
func StaticIndex(name string) Index { return namedIndex(name) }

// DynamicIndex derives each document's partition from its own fields,
// e.g. DynamicIndex(func(d Document) string { return fmt.Sprint(d["age"]) }),
// spreading a single createMany call across however many distinct
// partitions the documents resolve to.
func DynamicIndex(fn func(Document) string) Index { return derivedIndex(fn) }

// moveIndex is update's object-form index: {current, new}. current names
// the partition the caller already believes the document lives in;
// only new is consulted to compute the destination, matching the rule
// that the object form's new overrides whatever current partition the
// IdMap names.
type moveIndex struct {
	current string
	new     Index
}

func (m moveIndex) partitionFor(d Document) string { return m.new.partitionFor(d) }

// MoveTo builds update's object-form index input: current is accepted
// for parity with the source's {current, new} shape but is not itself
// consulted, since update always resolves the document's actual current
// partition from the IdMap regardless of what the caller believes it is.
func MoveTo(current string, new Index) Index {
	return moveIndex{current: current, new: new}
}

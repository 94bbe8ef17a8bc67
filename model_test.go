package sencillo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFieldIndexAddRemoveIDs(t *testing.T) {
	fi := fieldIndex{}
	fi.add("a@example.com", 1)
	fi.add("a@example.com", 2)
	fi.add("b@example.com", 3)

	require.Equal(t, []int64{1, 2}, fi.ids("a@example.com"))
	require.Equal(t, []int64{3}, fi.ids("b@example.com"))

	fi.remove("a@example.com", 1)
	require.Equal(t, []int64{2}, fi.ids("a@example.com"))

	fi.remove("a@example.com", 2)
	require.Nil(t, fi.ids("a@example.com"), "emptied value should be removed from the index entirely")
}

func TestSecondaryIndexesUpdateDocMovesEntry(t *testing.T) {
	si := SecondaryIndexes{"email": fieldIndex{}}
	old := Document{"_id": int64(1), "email": "old@example.com"}
	si.addDoc(old, 1)
	require.Equal(t, []int64{1}, si["email"].ids("old@example.com"))

	updated := Document{"_id": int64(1), "email": "new@example.com"}
	si.updateDoc(old, updated, 1)
	require.Nil(t, si["email"].ids("old@example.com"))
	require.Equal(t, []int64{1}, si["email"].ids("new@example.com"))
}

func TestPartitionIndexOfAndRemoveAt(t *testing.T) {
	p := &Partition{Name: "default", Docs: []Document{
		{"_id": int64(1), "name": "Ada"},
		{"_id": int64(2), "name": "Grace"},
	}}
	require.Equal(t, 1, p.indexOf(2))
	require.Equal(t, -1, p.indexOf(99))

	removed := p.removeAt(0)
	require.Equal(t, "Ada", removed["name"])
	require.Len(t, p.Docs, 1)
	require.Equal(t, "Grace", p.Docs[0]["name"])
}

func TestDoCreateAssignsSequentialIDs(t *testing.T) {
	c := newCollection()
	p := &Partition{Name: "default"}
	c.Partitions["default"] = p

	first := doCreate(c, p, "default", Document{"name": "Ada"})
	second := doCreate(c, p, "default", Document{"name": "Grace"})

	id1, _ := first.ID()
	id2, _ := second.ID()
	require.EqualValues(t, 1, id1)
	require.EqualValues(t, 2, id2)
	require.EqualValues(t, 2, c.Stats.Total)
	require.EqualValues(t, 2, c.Stats.Inserted)
}

func TestDoUpdateReplacesBody(t *testing.T) {
	c := newCollection()
	p := &Partition{Name: "default"}
	c.Partitions["default"] = p
	created := doCreate(c, p, "default", Document{"name": "Ada", "age": 30})
	id, _ := created.ID()

	old, updated, ok := doUpdate(c, p, id, Document{"age": 31})
	require.True(t, ok)
	require.Equal(t, "Ada", old["name"])
	require.Nil(t, updated["name"], "data replaces the body entirely, not just the fields it names")
	require.EqualValues(t, 31, updated["age"])
	require.EqualValues(t, id, updated["_id"], "_id survives the replace regardless of what data contains")

	_, _, ok = doUpdate(c, p, 999, Document{"age": 1})
	require.False(t, ok)
}

func TestDoDestroyUnindexesDocument(t *testing.T) {
	c := newCollection()
	c.Indexes["email"] = fieldIndex{}
	p := &Partition{Name: "default"}
	c.Partitions["default"] = p
	created := doCreate(c, p, "default", Document{"email": "a@example.com"})
	id, _ := created.ID()
	require.Equal(t, []int64{id}, c.Indexes["email"].ids("a@example.com"))

	doc, ok := doDestroy(c, p, id)
	require.True(t, ok)
	require.Equal(t, "a@example.com", doc["email"])
	require.Nil(t, c.Indexes["email"].ids("a@example.com"))
	require.EqualValues(t, 0, c.Stats.Total)

	_, ok = doDestroy(c, p, id)
	require.False(t, ok)
}

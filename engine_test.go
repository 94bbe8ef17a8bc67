package sencillo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "store.json")
}

func TestCreateFindUpdateDestroy(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, Options{File: tempFile(t)})
	require.NoError(t, err)
	assert := assert.New(t)

	var created Document
	err = eng.Transaction(ctx, func(tx *Tx) error {
		created, err = tx.Create("users", StaticIndex("default"), Document{"name": "Ada"})
		return err
	})
	require.NoError(t, err)
	id, ok := created.ID()
	require.True(t, ok)
	assert.Equal("Ada", created["name"])

	var found Document
	err = eng.Transaction(ctx, func(tx *Tx) error {
		found, err = tx.GetByID("users", id)
		return err
	})
	require.NoError(t, err)
	assert.Equal("Ada", found["name"])

	// Update fully replaces the body: "name" is gone unless it's in data.
	var updated Document
	err = eng.Transaction(ctx, func(tx *Tx) error {
		updated, err = tx.Update("users", id, Document{"age": 30}, nil)
		return err
	})
	require.NoError(t, err)
	assert.Nil(updated["name"])
	assert.EqualValues(30, updated["age"])
	assert.EqualValues(id, updated["_id"])

	var destroyed Document
	err = eng.Transaction(ctx, func(tx *Tx) error {
		destroyed, err = tx.Destroy("users", id)
		return err
	})
	require.NoError(t, err)
	assert.EqualValues(30, destroyed["age"])

	err = eng.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.GetByID("users", id)
		return err
	})
	assert.True(IsDocumentNotFound(err))
}

func TestUpdateOnMissingCollectionReturnsCollectionNotFound(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, Options{File: tempFile(t)})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.Update("ghost", 1, Document{"a": 1}, nil)
		return err
	})
	require.True(t, IsCollectionNotFound(err))

	err = eng.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.Destroy("ghost", 1)
		return err
	})
	require.True(t, IsCollectionNotFound(err))

	err = eng.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.Find("ghost", Document{}, FindOptions{})
		return err
	})
	require.True(t, IsCollectionNotFound(err))

	err = eng.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.FindMany("ghost", Document{}, FindOptions{})
		return err
	})
	require.True(t, IsCollectionNotFound(err))

	err = eng.Transaction(ctx, func(tx *Tx) error {
		return tx.DropIndex("ghost", "default")
	})
	require.True(t, IsCollectionNotFound(err))

	err = eng.Transaction(ctx, func(tx *Tx) error {
		return tx.RewriteCollection("ghost", StaticIndex("default"))
	})
	require.True(t, IsCollectionNotFound(err))
}

func TestUpdateRepartitionsOnIndexChange(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, Options{File: tempFile(t)})
	require.NoError(t, err)
	assert := assert.New(t)

	var id int64
	err = eng.Transaction(ctx, func(tx *Tx) error {
		created, err := tx.Create("events", StaticIndex("2026-08-01"), Document{"kind": "click"})
		if err != nil {
			return err
		}
		id, _ = created.ID()
		return nil
	})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.Update("events", id, Document{"kind": "click"}, StaticIndex("2026-08-02"))
		return err
	})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		names, err := tx.PartitionNames("events")
		if err != nil {
			return err
		}
		assert.Equal([]string{"2026-08-02"}, names)

		docs, err := tx.FindInPartition("events", "2026-08-02", Document{})
		if err != nil {
			return err
		}
		require.Len(t, docs, 1)
		gotID, _ := docs[0].ID()
		assert.Equal(id, gotID)
		return nil
	})
	require.NoError(t, err)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, Options{File: tempFile(t)})
	require.NoError(t, err)

	sentinel := validationError("boom")
	err = eng.Transaction(ctx, func(tx *Tx) error {
		if _, err := tx.Create("users", StaticIndex("default"), Document{"name": "Grace"}); err != nil {
			return err
		}
		return sentinel
	})
	require.Equal(t, sentinel, err)

	// The rolled-back Create was the collection's first write, so after the
	// rollback the collection itself does not exist.
	err = eng.Transaction(ctx, func(tx *Tx) error {
		docs, err := tx.FindMany("users", Document{}, FindOptions{})
		require.True(t, IsCollectionNotFound(err))
		require.Len(t, docs, 0)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "idle", eng.State())
}

func TestDynamicPartitionCreation(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, Options{File: tempFile(t)})
	require.NoError(t, err)
	assert := assert.New(t)

	byAge := DynamicIndex(func(d Document) string {
		age, _ := d["age"].(int)
		if age < 18 {
			return "minor"
		}
		return "adult"
	})

	err = eng.Transaction(ctx, func(tx *Tx) error {
		if _, err := tx.Create("people", byAge, Document{"name": "Ada", "age": 36}); err != nil {
			return err
		}
		_, err := tx.Create("people", byAge, Document{"name": "Robin", "age": 12})
		return err
	})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		names, err := tx.PartitionNames("people")
		if err != nil {
			return err
		}
		assert.ElementsMatch([]string{"adult", "minor"}, names)

		adults, err := tx.FindInPartition("people", "adult", Document{})
		if err != nil {
			return err
		}
		require.Len(t, adults, 1)
		assert.Equal("Ada", adults[0]["name"])
		return nil
	})
	require.NoError(t, err)
}

func TestCreateManySpreadsAcrossDynamicPartitions(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, Options{File: tempFile(t)})
	require.NoError(t, err)
	assert := assert.New(t)

	byKind := DynamicIndex(func(d Document) string {
		kind, _ := d["kind"].(string)
		return kind
	})

	err = eng.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.CreateMany("events", byKind, []Document{
			{"kind": "click"},
			{"kind": "view"},
			{"kind": "click"},
		})
		return err
	})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		names, err := tx.PartitionNames("events")
		if err != nil {
			return err
		}
		assert.ElementsMatch([]string{"click", "view"}, names)

		clicks, err := tx.FindInPartition("events", "click", Document{})
		if err != nil {
			return err
		}
		assert.Len(clicks, 2)
		return nil
	})
	require.NoError(t, err)
}

func TestFindManyOperators(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, Options{File: tempFile(t)})
	require.NoError(t, err)
	assert := assert.New(t)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.CreateMany("products", StaticIndex("default"), []Document{
			{"name": "widget", "price": 9},
			{"name": "gadget", "price": 19},
			{"name": "gizmo", "price": 29},
		})
		return err
	})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		docs, err := tx.FindMany("products", Document{"price": Document{"$gte": 19}}, FindOptions{})
		if err != nil {
			return err
		}
		assert.Len(docs, 2)

		docs, err = tx.FindMany("products", Document{"name": Document{"$in": []interface{}{"widget", "gizmo"}}}, FindOptions{})
		if err != nil {
			return err
		}
		assert.Len(docs, 2)

		docs, err = tx.FindMany("products", Document{"name": Document{"$regex": "^g"}}, FindOptions{})
		if err != nil {
			return err
		}
		assert.Len(docs, 2)
		return nil
	})
	require.NoError(t, err)
}

func TestFindManyCallbackAndSort(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, Options{File: tempFile(t)})
	require.NoError(t, err)
	assert := assert.New(t)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.CreateMany("products", StaticIndex("default"), []Document{
			{"name": "widget", "price": 9},
			{"name": "gadget", "price": 19},
			{"name": "gizmo", "price": 29},
		})
		return err
	})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		docs, err := tx.FindMany("products", Document{}, FindOptions{
			Callback: func(d Document) bool {
				price, _ := d["price"].(int)
				return price >= 19
			},
			Sort: func(a, b Document) bool {
				return stringify(a["name"]) < stringify(b["name"])
			},
		})
		if err != nil {
			return err
		}
		require.Len(t, docs, 2)
		assert.Equal("gadget", docs[0]["name"])
		assert.Equal("gizmo", docs[1]["name"])
		return nil
	})
	require.NoError(t, err)
}

func TestFindReturnsFirstMatchOrNil(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, Options{File: tempFile(t)})
	require.NoError(t, err)
	assert := assert.New(t)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.CreateMany("products", StaticIndex("default"), []Document{
			{"name": "widget", "price": 9},
			{"name": "gadget", "price": 19},
		})
		return err
	})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		found, err := tx.Find("products", Document{"price": Document{"$gte": 10}}, FindOptions{})
		if err != nil {
			return err
		}
		require.NotNil(t, found)
		assert.Equal("gadget", found["name"])

		none, err := tx.Find("products", Document{"price": Document{"$gte": 1000}}, FindOptions{})
		if err != nil {
			return err
		}
		assert.Nil(none)
		return nil
	})
	require.NoError(t, err)
}

func TestSecondaryIndexPointLookup(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, Options{File: tempFile(t)})
	require.NoError(t, err)
	assert := assert.New(t)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		if err := tx.EnsureIndex("users", "email"); err != nil {
			return err
		}
		_, err := tx.CreateMany("users", StaticIndex("default"), []Document{
			{"name": "Ada", "email": "ada@example.com"},
			{"name": "Grace", "email": "grace@example.com"},
		})
		return err
	})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		assert.True(ExplainIndexUsable(Document{"email": "grace@example.com"}, "email"))
		docs, err := tx.FindMany("users", Document{"email": "grace@example.com"}, FindOptions{})
		if err != nil {
			return err
		}
		require.Len(t, docs, 1)
		assert.Equal("Grace", docs[0]["name"])
		return nil
	})
	require.NoError(t, err)
}

func TestDropIndexLeavesCollectionShell(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, Options{File: tempFile(t)})
	require.NoError(t, err)
	assert := assert.New(t)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.Create("logs", StaticIndex("2026-08-01"), Document{"level": "info"})
		return err
	})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		return tx.DropIndex("logs", "2026-08-01")
	})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		names, err := tx.PartitionNames("logs")
		if err != nil {
			return err
		}
		assert.Empty(names)
		stats, err := tx.Stats("logs")
		if err != nil {
			return err
		}
		assert.EqualValues(0, stats.Total)
		return nil
	})
	require.NoError(t, err)
}

func TestDropIndexOnMissingPartitionReturnsIndexNotFound(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, Options{File: tempFile(t)})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.Create("logs", StaticIndex("2026-08-01"), Document{"level": "info"})
		return err
	})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		return tx.DropIndex("logs", "2026-08-02")
	})
	require.True(t, IsIndexNotFound(err))
}

func TestRewriteCollectionReassignsIDsAndPartitions(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, Options{File: tempFile(t)})
	require.NoError(t, err)
	assert := assert.New(t)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.CreateMany("users", StaticIndex("default"), []Document{
			{"name": "Ada", "region": "east"},
			{"name": "Grace", "region": "west"},
			{"name": "Margaret", "region": "east"},
		})
		return err
	})
	require.NoError(t, err)

	byRegion := DynamicIndex(func(d Document) string {
		region, _ := d["region"].(string)
		return region
	})

	err = eng.Transaction(ctx, func(tx *Tx) error {
		return tx.RewriteCollection("users", byRegion)
	})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		names, err := tx.PartitionNames("users")
		if err != nil {
			return err
		}
		assert.ElementsMatch([]string{"east", "west"}, names)

		east, err := tx.FindInPartition("users", "east", Document{})
		if err != nil {
			return err
		}
		assert.Len(east, 2)

		docs, err := tx.FindMany("users", Document{}, FindOptions{})
		if err != nil {
			return err
		}
		assert.Len(docs, 3)
		seen := map[int64]bool{}
		for _, d := range docs {
			id, ok := d.ID()
			assert.True(ok)
			seen[id] = true
		}
		assert.Len(seen, 3)
		return nil
	})
	require.NoError(t, err)
}

func TestPopulateJoin(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, Options{File: tempFile(t)})
	require.NoError(t, err)
	assert := assert.New(t)

	var authorID int64
	err = eng.Transaction(ctx, func(tx *Tx) error {
		author, err := tx.Create("authors", StaticIndex("default"), Document{"name": "Ada"})
		if err != nil {
			return err
		}
		authorID, _ = author.ID()
		_, err = tx.CreateMany("books", StaticIndex("default"), []Document{
			{"title": "Notes", "authorId": authorID},
			{"title": "Letters", "authorId": authorID},
		})
		return err
	})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		books, err := tx.FindMany("books", Document{}, FindOptions{})
		if err != nil {
			return err
		}
		populated, err := tx.Populate(books, PopulateOptions{
			LocalField:        "authorId",
			ForeignCollection: "authors",
			ForeignField:      "_id",
			As:                "author",
		})
		if err != nil {
			return err
		}
		require.Len(t, populated, 2)
		for _, b := range populated {
			author, ok := b["author"].(Document)
			require.True(t, ok)
			assert.Equal("Ada", author["name"])
		}
		return nil
	})
	require.NoError(t, err)
}

func TestAOFReplaySingleFile(t *testing.T) {
	ctx := context.Background()
	path := tempFile(t)

	eng, err := New(ctx, Options{File: path, AOF: true})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.Create("users", StaticIndex("default"), Document{"name": "Ada"})
		return err
	})
	require.NoError(t, err)

	// Nothing has been flushed to the base document yet: AOF replay is the
	// only way the next Engine recovers this write.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	eng2, err := New(ctx, Options{File: path, AOF: true})
	require.NoError(t, err)

	err = eng2.Transaction(ctx, func(tx *Tx) error {
		docs, err := tx.FindMany("users", Document{}, FindOptions{})
		if err != nil {
			return err
		}
		require.Len(t, docs, 1)
		require.Equal(t, "Ada", docs[0]["name"])
		return nil
	})
	require.NoError(t, err)
}

func TestAOFReplayUpdateRepartition(t *testing.T) {
	ctx := context.Background()
	path := tempFile(t)

	eng, err := New(ctx, Options{File: path, AOF: true})
	require.NoError(t, err)

	var id int64
	err = eng.Transaction(ctx, func(tx *Tx) error {
		created, err := tx.Create("events", StaticIndex("2026-08-01"), Document{"kind": "click"})
		if err != nil {
			return err
		}
		id, _ = created.ID()
		return nil
	})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.Update("events", id, Document{"kind": "click"}, StaticIndex("2026-08-02"))
		return err
	})
	require.NoError(t, err)

	eng2, err := New(ctx, Options{File: path, AOF: true})
	require.NoError(t, err)

	err = eng2.Transaction(ctx, func(tx *Tx) error {
		names, err := tx.PartitionNames("events")
		if err != nil {
			return err
		}
		// Replay leaves the emptied source partition in place, as Update does.
		require.Equal(t, []string{"2026-08-01", "2026-08-02"}, names)
		return nil
	})
	require.NoError(t, err)
}

func TestCompactFlushesAndTruncatesAOF(t *testing.T) {
	ctx := context.Background()
	path := tempFile(t)
	eng, err := New(ctx, Options{File: path, AOF: true})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.Create("users", StaticIndex("default"), Document{"name": "Ada"})
		return err
	})
	require.NoError(t, err)

	require.NoError(t, eng.Compact(ctx))
	// Compacting with nothing dirty is a no-op.
	require.NoError(t, eng.Compact(ctx))

	bs, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(bs), "Ada")
}

func TestMetricsSnapshot(t *testing.T) {
	ctx := context.Background()
	eng, err := New(ctx, Options{File: tempFile(t)})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.Create("users", StaticIndex("default"), Document{"name": "Ada"})
		return err
	})
	require.NoError(t, err)

	err = eng.Transaction(ctx, func(tx *Tx) error {
		return validationError("forced rollback")
	})
	require.Error(t, err)

	snap := eng.Snapshot()
	require.EqualValues(t, 1, snap.Commits)
	require.EqualValues(t, 1, snap.Rollbacks)
	require.EqualValues(t, 1, snap.ResidentDocs)
}

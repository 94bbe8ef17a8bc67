// Package sencillo is an embedded, document-oriented object store.
//
// An Engine holds any number of named collections. Documents within a
// collection are grouped into partitions by a caller-chosen key; every
// document gets a sequential _id, unique within its collection, assigned
// on Create and never reused. Secondary indexes give point-lookup access
// to documents by any other field's value.
//
// Every read and write happens inside a Transaction, which buffers its
// effects and commits or rolls them back atomically. The Engine can be
// configured to persist as a single JSON document, as one file per
// collection, or as one file per partition, with optional gzip
// compression and an optional append-only log for fast, rewrite-free
// commits.
//
//	eng, err := sencillo.New(ctx, sencillo.Options{File: "./data/store.json"})
//	err = eng.Transaction(ctx, func(tx *sencillo.Tx) error {
//		_, err := tx.Create("users", sencillo.StaticIndex("default"), sencillo.Document{"name": "Ada"})
//		return err
//	})
package sencillo

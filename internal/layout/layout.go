// Package layout maps (mode, collection, partition) tuples to filesystem
// paths, and provides the atomic swap-on-write primitive every persistence
// backend uses. It is grounded on storage/disk/paths.go's pathMapper (a
// small struct of precomputed prefixes with methods that build concrete
// keys) adapted from badger key prefixes to filesystem paths, and on
// storage/disk/disk.go's read-validate-write cycle for metadata, adapted
// into the atomic rename-over-destination pattern the spec requires.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Mode is the persistence layout the engine is configured for.
type Mode int

const (
	// SingleFile stores the whole database as one document.
	SingleFile Mode = iota
	// Folder stores one file per collection inside a root directory.
	Folder
	// Sharded stores one file per partition, plus a meta file, inside a
	// per-collection directory under the root. Requires Folder semantics
	// for the root (it is a refinement of Folder, never standalone).
	Sharded
)

const shardPrefix = "shard_"
const shardSuffix = ".json"
const metaFileName = "meta.json"
const logFileName = "log.aof"

// Layout resolves storage paths for a configured mode and root.
type Layout struct {
	Mode     Mode
	Root     string
	Compress bool
}

// New returns a Layout for the given mode, root path, and compression
// setting.
func New(mode Mode, root string, compress bool) *Layout {
	return &Layout{Mode: mode, Root: root, Compress: compress}
}

func (l *Layout) suffix() string {
	if l.Compress {
		return ".gz"
	}
	return ""
}

// SingleFilePath returns the path to the single-file database document.
func (l *Layout) SingleFilePath() string {
	return l.Root + l.suffix()
}

// SingleFileAOFPath returns the AOF path for single-file mode.
func (l *Layout) SingleFileAOFPath() string {
	return l.Root + ".aof" + l.suffix()
}

// CollectionFilePath returns the path to a collection's JSON document in
// folder mode.
func (l *Layout) CollectionFilePath(collection string) string {
	return filepath.Join(l.Root, collection+".json"+l.suffix())
}

// FolderAOFPath returns the AOF path for folder/sharded mode.
func (l *Layout) FolderAOFPath() string {
	return filepath.Join(l.Root, logFileName+l.suffix())
}

// CollectionDirPath returns a sharded collection's directory.
func (l *Layout) CollectionDirPath(collection string) string {
	return filepath.Join(l.Root, collection)
}

// MetaFilePath returns a sharded collection's metadata file path.
func (l *Layout) MetaFilePath(collection string) string {
	return filepath.Join(l.CollectionDirPath(collection), metaFileName+l.suffix())
}

// ShardFilePath returns a sharded collection's partition file path.
func (l *Layout) ShardFilePath(collection, partition string) string {
	name := shardPrefix + partition + shardSuffix + l.suffix()
	return filepath.Join(l.CollectionDirPath(collection), name)
}

// ListShards returns the partition names discovered on disk for a sharded
// collection by listing its directory. Missing directories report no
// shards rather than an error.
func (l *Layout) ListShards(collection string) ([]string, error) {
	dir := l.CollectionDirPath(collection)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		name = strings.TrimSuffix(name, ".gz")
		if !strings.HasPrefix(name, shardPrefix) || !strings.HasSuffix(name, shardSuffix) {
			continue
		}
		partition := strings.TrimSuffix(strings.TrimPrefix(name, shardPrefix), shardSuffix)
		names = append(names, partition)
	}
	sort.Strings(names)
	return names, nil
}

// ListCollections returns collection names discovered on disk in folder
// mode (unsharded) by listing the root directory for "<name>.json[.gz]"
// files.
func (l *Layout) ListCollections() ([]string, error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".gz")
		if !strings.HasSuffix(name, ".json") || name == logFileName {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether path exists on disk.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// AtomicWrite writes the bytes produced by write to a sibling temp file
// and renames it over path, so a reader never observes a partially
// written file. The temp file is named with a uuid suffix so a write to
// one path can never collide with a concurrent write to a different path
// that happens to share a directory (e.g. two shards of the same
// collection being flushed back to back during LRU eviction).
func AtomicWrite(path string, bs []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%s", path, uuid.NewString())
	if err := os.WriteFile(tmp, bs, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// DeleteCollectionFile removes a folder-mode collection file. A missing
// file is not an error.
func DeleteCollectionFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// DeleteCollectionDir recursively removes a sharded collection's
// directory. A missing directory is not an error.
func DeleteCollectionDir(dir string) error {
	return os.RemoveAll(dir)
}

// DeleteShardFile removes a single sharded-mode partition file. A missing
// file is not an error.
func DeleteShardFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

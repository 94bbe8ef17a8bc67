// Package aof implements the append-only log: one line per mutating
// operation, replayed in order on load. It generalizes the commit-hook
// pattern in storage/inmem (a registered callback fired with the commit's
// effects) into "append a durable record of the effect instead of firing
// a callback," and borrows storage/disk's metadata read/validate/write
// discipline for the file-level read path.
//
// Lines are JSON objects of the documented shape
// {"op":"<name>","instructions":{...}}, with one additive field beyond
// what the spec's wire format names: "checksum", an xxhash of the
// instructions payload. A missing checksum (e.g. a hand-edited line) is
// tolerated — it just skips the integrity check — so the documented shape
// remains a valid AOF line on its own.
package aof

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Record is one AOF line: an operation name and its normalized
// instructions (already resolved to concrete values — no functions — so
// replay can reproduce the effect without the caller's original closures).
type Record struct {
	Op           string                 `json:"op"`
	Instructions map[string]interface{} `json:"instructions"`
}

type wireRecord struct {
	Op           string                 `json:"op"`
	Instructions map[string]interface{} `json:"instructions"`
	Checksum     string                 `json:"checksum,omitempty"`
}

// Log is the append-only log file at path, optionally gzip-compressed.
// Compression works by concatenating one independent gzip member per
// appended line; Go's gzip.Reader reads concatenated members back to back
// by default (multistream mode), so the decompressed byte stream is
// exactly the same newline-delimited text as the uncompressed case.
type Log struct {
	Path     string
	Compress bool
}

// Open returns a handle to the AOF file at path. It does not touch the
// filesystem; the file is created lazily on first Append.
func Open(path string, compress bool) *Log {
	return &Log{Path: path, Compress: compress}
}

// Exists reports whether the AOF file is present on disk.
func (l *Log) Exists() bool {
	_, err := os.Stat(l.Path)
	return err == nil
}

// Delete removes the AOF file. A missing file is not an error.
func (l *Log) Delete() error {
	err := os.Remove(l.Path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Append writes a single record as one line.
func (l *Log) Append(rec Record) error {
	return l.AppendBatch([]Record{rec})
}

// AppendBatch writes each record as its own line, opening the file once
// for the whole batch.
func (l *Log) AppendBatch(recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, rec := range recs {
		if err := l.appendOne(f, rec); err != nil {
			return err
		}
	}
	return nil
}

func (l *Log) appendOne(f *os.File, rec Record) error {
	payload, err := json.Marshal(rec.Instructions)
	if err != nil {
		return err
	}
	sum := xxhash.Sum64(payload)

	wire := wireRecord{
		Op:           rec.Op,
		Instructions: rec.Instructions,
		Checksum:     hex.EncodeToString(encodeUint64(sum)),
	}
	line, err := json.Marshal(wire)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	if !l.Compress {
		_, err := f.Write(line)
		return err
	}

	gw := gzip.NewWriter(f)
	if _, err := gw.Write(line); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

func encodeUint64(v uint64) []byte {
	bs := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		bs[i] = byte(v)
		v >>= 8
	}
	return bs
}

// Replay reads every line of the log in order and invokes apply for each
// one. A line that fails checksum verification, fails to decode, or
// returns an error from apply is logged through warn and skipped — it
// does not abort the replay.
func (l *Log) Replay(apply func(Record) error, warn func(lineNo int, reason string)) error {
	f, err := os.Open(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if l.Compress {
		gr, err := gzip.NewReader(f)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		defer gr.Close()
		r = gr
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var wire wireRecord
		if err := json.Unmarshal(line, &wire); err != nil {
			if warn != nil {
				warn(lineNo, "malformed line: "+err.Error())
			}
			continue
		}

		if wire.Checksum != "" {
			payload, err := json.Marshal(wire.Instructions)
			if err == nil {
				want, decodeErr := hex.DecodeString(wire.Checksum)
				if decodeErr == nil && len(want) == 8 {
					got := encodeUint64(xxhash.Sum64(payload))
					if !bytes.Equal(got, want) {
						if warn != nil {
							warn(lineNo, "checksum mismatch")
						}
						continue
					}
				}
			}
		}

		rec := Record{Op: wire.Op, Instructions: wire.Instructions}
		if err := apply(rec); err != nil {
			if warn != nil {
				warn(lineNo, err.Error())
			}
			continue
		}
	}
	return scanner.Err()
}

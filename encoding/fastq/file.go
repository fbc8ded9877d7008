// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fastq

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// CompressedSuffix is the file name suffix that selects gzip encoding.
const CompressedSuffix = ".gz"

// ErrInvalidPath is the cause of the error returned by Open when a file to be
// read does not exist or is not a regular file.
var ErrInvalidPath = errors.New("is not a valid file path")

// Mode selects whether a File is read or written.
type Mode int

const (
	// ReadMode opens an existing file for reading records.
	ReadMode Mode = iota
	// WriteMode creates or truncates a file for writing records.
	WriteMode
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ReadMode:
		return "read"
	case WriteMode:
		return "write"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// IsCompressed reports whether path names a gzip-compressed FASTQ file. The
// decision is made from the name alone: path must end in ".gz" (case
// sensitive).
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, CompressedSuffix)
}

// File is a FASTQ file opened for reading or writing whole records. Paths
// ending in ".gz" are transparently decompressed on read and compressed (as
// BGZF) on write.
//
// Offsets reported by Offset and accepted by Seek are logical: they index the
// uncompressed text regardless of how the file is stored. Seeking a plain or
// BGZF file is cheap; seeking backwards in any other gzip file restarts
// decompression from the beginning.
//
// A File is not safe for concurrent use. Open one File per goroutine to read
// the same path in parallel.
type File struct {
	ctx        context.Context
	path       string
	mode       Mode
	compressed bool

	f      file.File
	stream lineStream

	recordOffset int64
	closed       bool
}

// Open opens path in the given mode. In ReadMode the path must name an
// existing regular file, otherwise the returned error satisfies
// IsConfigurationError. In WriteMode the file is created or truncated.
//
// The caller must Close the file, typically with a defer right after Open
// succeeds.
func Open(ctx context.Context, path string, mode Mode) (*File, error) {
	f := &File{
		ctx:          ctx,
		path:         path,
		mode:         mode,
		compressed:   IsCompressed(path),
		recordOffset: -1,
	}
	var err error
	switch mode {
	case ReadMode:
		if err = checkReadable(ctx, path); err != nil {
			return nil, err
		}
		if f.f, err = file.Open(ctx, path); err != nil {
			return nil, errors.E(err, "fastq: open", path)
		}
		f.stream, err = newReadStream(f.f.Reader(ctx), f.compressed)
	case WriteMode:
		if f.f, err = file.Create(ctx, path); err != nil {
			return nil, errors.E(err, "fastq: create", path)
		}
		f.stream, err = newWriteStream(f.f.Writer(ctx), f.compressed)
	default:
		return nil, errors.E(errors.Invalid, "fastq: open", path, fmt.Sprintf("unknown mode %v", mode))
	}
	if err != nil {
		_ = f.f.Close(ctx)
		return nil, errors.E(err, "fastq: open", path)
	}
	return f, nil
}

// checkReadable verifies that path names an existing regular file. Remote
// paths can only be checked for existence.
func checkReadable(ctx context.Context, path string) error {
	scheme, _, err := file.ParsePath(path)
	if err != nil {
		return errors.E(errors.Invalid, path, ErrInvalidPath)
	}
	if scheme == "" {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return errors.E(errors.NotExist, path, ErrInvalidPath)
		}
		if err != nil {
			return errors.E(err, "fastq: stat", path)
		}
		if !info.Mode().IsRegular() {
			return errors.E(errors.Invalid, path, ErrInvalidPath)
		}
		return nil
	}
	if _, err := file.Stat(ctx, path); err != nil {
		if errors.Is(errors.NotExist, err) {
			return errors.E(errors.NotExist, path, ErrInvalidPath)
		}
		return errors.E(err, "fastq: stat", path)
	}
	return nil
}

// Path returns the path the file was opened with.
func (f *File) Path() string { return f.path }

// Mode returns the mode the file was opened with.
func (f *File) Mode() Mode { return f.mode }

// Compressed reports whether the file is gzip encoded, i.e. IsCompressed(f.Path()).
func (f *File) Compressed() bool { return f.compressed }

// Offset returns the logical offset at which the record most recently
// returned by GetRecord (or written by WriteRecord) began. It returns -1 if
// no record has been read or written yet. A GetRecord call that returns an
// error, io.EOF included, leaves it unchanged.
func (f *File) Offset() int64 { return f.recordOffset }

// GetRecord reads the next record. It returns io.EOF, unwrapped, once the
// input is exhausted. If the input ends after the first line of a record but
// before its fourth, GetRecord returns an error that satisfies IsTruncated;
// partial records are never returned.
func (f *File) GetRecord() (Record, error) {
	if err := f.check(ReadMode, "GetRecord"); err != nil {
		return Record{}, err
	}
	start := f.stream.offset()
	var rec Record
	for i := range rec {
		line, err := f.stream.readLine()
		if err == io.EOF {
			if i == 0 {
				return Record{}, io.EOF
			}
			return Record{}, errors.E(errors.Integrity, "fastq: read", f.path,
				fmt.Sprintf("record at offset %d has %d of %d lines", start, i, LinesPerRecord), ErrShort)
		}
		if err != nil {
			return Record{}, errors.E(err, "fastq: read", f.path, fmt.Sprintf("offset %d", f.stream.offset()))
		}
		rec[i] = line
	}
	f.recordOffset = start
	return rec, nil
}

// WriteRecord writes the four lines of rec verbatim. Lines must already carry
// their terminators. Output is buffered, so a failure may only surface from a
// later WriteRecord or from Close.
func (f *File) WriteRecord(rec Record) error {
	if err := f.check(WriteMode, "WriteRecord"); err != nil {
		return err
	}
	f.recordOffset = f.stream.offset()
	if err := f.stream.writeLines(rec[:]); err != nil {
		return errors.E(err, "fastq: write", f.path, fmt.Sprintf("offset %d", f.recordOffset))
	}
	return nil
}

// Write writes a parsed read, terminating each line with "\n".
func (f *File) Write(r *Read) error {
	return f.WriteRecord(NewRecord(r))
}

// SeekRecord moves the read cursor to the logical offset off, usually a
// value obtained from Offset earlier. The next GetRecord starts reading
// there. Offsets past the end of the file fail with errors.Invalid; the end
// itself is a valid target.
func (f *File) SeekRecord(off int64) error {
	if err := f.check(ReadMode, "SeekRecord"); err != nil {
		return err
	}
	if off < 0 {
		return errors.E(errors.Invalid, "fastq: seek", f.path, fmt.Sprintf("negative offset %d", off))
	}
	if err := f.stream.seek(off); err != nil {
		return errors.E(err, "fastq: seek", f.path, fmt.Sprintf("offset %d", off))
	}
	return nil
}

// Close flushes pending output and releases the underlying stream and file.
// Calls after the first return nil. If pending output cannot be flushed, the
// partially written file is removed.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	var once errors.Once
	streamErr := f.stream.close()
	once.Set(streamErr)
	once.Set(f.f.Close(f.ctx))
	if streamErr != nil && f.mode == WriteMode {
		once.Set(file.Remove(f.ctx, f.path))
	}
	if err := once.Err(); err != nil {
		return errors.E(err, "fastq: close", f.path)
	}
	return nil
}

func (f *File) check(mode Mode, op string) error {
	if f.closed {
		return errors.E(errors.Invalid, "fastq:", op, f.path, "file is closed")
	}
	if f.mode != mode {
		return errors.E(errors.NotSupported, "fastq:", op, f.path, fmt.Sprintf("file is open for %v", f.mode))
	}
	return nil
}

// IsConfigurationError reports whether err was returned by Open because the
// path to be read is missing or is not a regular file.
func IsConfigurationError(err error) bool {
	return hasCause(err, ErrInvalidPath)
}

// IsTruncated reports whether err was returned by GetRecord for a record cut
// short by the end of the input. It also holds for errors from Downsample and
// DownsampleToCount that wrap such an error.
func IsTruncated(err error) bool {
	return hasCause(err, ErrShort)
}

// causer is implemented by github.com/pkg/errors wrappers.
type causer interface {
	Cause() error
}

func hasCause(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		switch e := err.(type) {
		case *errors.Error:
			err = e.Err
		case causer:
			err = e.Cause()
		default:
			return false
		}
	}
	return false
}

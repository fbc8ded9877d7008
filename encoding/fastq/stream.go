// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fastq

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/bgzf"
	"github.com/klauspost/compress/gzip"
	"v.io/x/lib/vlog"
)

const (
	readBufferSize  = 64 << 10
	writeBufferSize = 64 << 10
)

// bgzfExtraPrefix is the start of the gzip Extra field of every BGZF block:
// subfield ids 66, 67 ("BC") with a 2-byte payload. The field begins at byte
// 12 of the member header.
var bgzfExtraPrefix = [...]byte{66, 67, 2, 0}

// lineStream is the byte stream underneath a File. Offsets are logical: they
// count bytes of the plain or decompressed text, never compressed bytes.
//
// Read streams reject writeLines and write streams reject readLine and seek;
// File checks its mode first, so those paths are only reached by misuse
// inside this package.
type lineStream interface {
	// readLine returns the next line including its terminator. The final
	// line of the input may lack a terminator. At end of input it returns
	// "", io.EOF.
	readLine() (string, error)
	// writeLines writes each line verbatim.
	writeLines(lines []string) error
	// offset is the logical position of the next byte to be read or written.
	offset() int64
	// seek moves the read cursor to an absolute logical offset.
	seek(off int64) error
	// close flushes encoders and releases decoders. It does not close the
	// file handle that the stream was built on.
	close() error
}

// newReadStream picks a decoder for the input rs. compressed is decided by
// the caller from the file name; the content is only inspected to tell BGZF
// apart from other gzip files.
func newReadStream(rs io.ReadSeeker, compressed bool) (lineStream, error) {
	if !compressed {
		s, err := newPlainStream(rs)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	isBGZF, err := sniffBGZF(rs)
	if err != nil {
		return nil, err
	}
	if isBGZF {
		vlog.VI(1).Infof("fastq: reading BGZF input")
		return newBGZFStream(rs)
	}
	vlog.VI(1).Infof("fastq: reading gzip input; backward seeks will re-decompress")
	return newGzipStream(rs)
}

// newWriteStream picks an encoder for the output w. Compressed output is
// always BGZF, which any gzip reader accepts and which newReadStream can seek
// through.
func newWriteStream(w io.Writer, compressed bool) (lineStream, error) {
	if !compressed {
		bw := bufio.NewWriterSize(w, writeBufferSize)
		return &writeStream{w: bw, finish: bw.Flush}, nil
	}
	bw, err := bgzf.NewWriterLevel(w, gzip.DefaultCompression, runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	return &writeStream{w: bw, finish: bw.Close}, nil
}

func sniffBGZF(rs io.ReadSeeker) (bool, error) {
	var hdr [16]byte
	n, err := io.ReadFull(rs, hdr[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return false, err
	}
	return isBGZFHeader(hdr[:n]), nil
}

// isBGZFHeader reports whether b starts with a gzip member header carrying
// the BGZF extra subfield.
func isBGZFHeader(b []byte) bool {
	const flagExtra = 1 << 2
	if len(b) < 16 || b[0] != 0x1f || b[1] != 0x8b || b[2] != 8 || b[3]&flagExtra == 0 {
		return false
	}
	return binary.LittleEndian.Uint16(b[10:12]) >= 6 && bytes.Equal(b[12:16], bgzfExtraPrefix[:])
}

// lineReader is the buffered, position-tracking reader shared by the read
// streams.
type lineReader struct {
	br  *bufio.Reader
	pos int64
}

func (r *lineReader) readLine() (string, error) {
	line, err := r.br.ReadString('\n')
	r.pos += int64(len(line))
	if err == io.EOF && len(line) > 0 {
		err = nil
	}
	return line, err
}

func (r *lineReader) offset() int64 { return r.pos }

func errPastEnd(off, size int64) error {
	return errors.E(errors.Invalid, fmt.Sprintf("offset %d is past the end of the stream (%d)", off, size))
}

// discard skips n bytes. Running out of input is reported as errors.Invalid,
// since the target offset lies past the end of the stream.
func (r *lineReader) discard(n int64) error {
	target := r.pos + n
	for n > 0 {
		chunk := n
		if chunk > math.MaxInt32 {
			chunk = math.MaxInt32
		}
		d, err := r.br.Discard(int(chunk))
		r.pos += int64(d)
		n -= int64(d)
		if err == io.EOF {
			return errPastEnd(target, r.pos)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

type readOnly struct{}

func (readOnly) writeLines([]string) error {
	return errors.E(errors.NotSupported, "stream is open for reading")
}

// plainStream reads uncompressed text. Seeks go straight to the file.
type plainStream struct {
	readOnly
	lineReader
	rs   io.ReadSeeker
	size int64
}

// newPlainStream reads rs from its start. It seeks to the end once to learn
// the size of the input.
func newPlainStream(rs io.ReadSeeker) (*plainStream, error) {
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return &plainStream{
		lineReader: lineReader{br: bufio.NewReaderSize(rs, readBufferSize)},
		rs:         rs,
		size:       size,
	}, nil
}

func (s *plainStream) seek(off int64) error {
	if off > s.size {
		return errPastEnd(off, s.size)
	}
	if _, err := s.rs.Seek(off, io.SeekStart); err != nil {
		return err
	}
	s.br.Reset(s.rs)
	s.pos = off
	return nil
}

func (s *plainStream) close() error { return nil }

// gzipStream reads a gzip file that carries no block structure. Forward seeks
// skip decompressed bytes; backward seeks restart decompression from the
// beginning of the file.
type gzipStream struct {
	readOnly
	lineReader
	rs io.ReadSeeker
	gz *gzip.Reader
}

func newGzipStream(rs io.ReadSeeker) (lineStream, error) {
	gz, err := gzip.NewReader(rs)
	if err == io.EOF {
		// Empty input: there is no gzip header to parse and nothing to read.
		s, err := newPlainStream(rs)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	return &gzipStream{
		lineReader: lineReader{br: bufio.NewReaderSize(gz, readBufferSize)},
		rs:         rs,
		gz:         gz,
	}, nil
}

func (s *gzipStream) seek(off int64) error {
	if off < s.pos {
		vlog.VI(1).Infof("fastq: rewinding gzip stream from %d to %d", s.pos, off)
		if _, err := s.rs.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if err := s.gz.Reset(s.rs); err != nil {
			return err
		}
		s.br.Reset(s.gz)
		s.pos = 0
	}
	return s.discard(off - s.pos)
}

func (s *gzipStream) close() error { return s.gz.Close() }

// checkpoint pairs a logical offset with the BGZF virtual offset of the same
// byte.
type checkpoint struct {
	pos  int64
	voff bgzf.Offset
}

// checkpointReader records a checkpoint for each new stretch of the
// decompressed stream handed to the line buffer. The checkpoints are sorted
// by pos and only cover what has already been read.
type checkpointReader struct {
	bg  *bgzf.Reader
	pos int64
	cps []checkpoint
}

func (c *checkpointReader) Read(p []byte) (int, error) {
	n, err := c.bg.Read(p)
	if n > 0 {
		if c.pos > c.cps[len(c.cps)-1].pos {
			c.cps = append(c.cps, checkpoint{pos: c.pos, voff: c.bg.LastChunk().Begin})
		}
		c.pos += int64(n)
	}
	return n, err
}

// find returns the last checkpoint at or before pos. pos must be >= 0.
func (c *checkpointReader) find(pos int64) checkpoint {
	i := sort.Search(len(c.cps), func(i int) bool { return c.cps[i].pos > pos })
	return c.cps[i-1]
}

// bgzfStream reads BGZF input. Seeks jump to the nearest checkpoint at or
// before the target and skip forward from there.
type bgzfStream struct {
	readOnly
	lineReader
	cr *checkpointReader
}

func newBGZFStream(rs io.ReadSeeker) (*bgzfStream, error) {
	bg, err := bgzf.NewReader(rs, 1)
	if err != nil {
		return nil, err
	}
	cr := &checkpointReader{bg: bg, cps: []checkpoint{{}}}
	return &bgzfStream{
		lineReader: lineReader{br: bufio.NewReaderSize(cr, readBufferSize)},
		cr:         cr,
	}, nil
}

func (s *bgzfStream) seek(off int64) error {
	cp := s.cr.find(off)
	if off >= s.pos && s.pos >= cp.pos {
		return s.discard(off - s.pos)
	}
	if err := s.cr.bg.Seek(cp.voff); err != nil {
		return err
	}
	s.cr.pos = cp.pos
	s.br.Reset(s.cr)
	s.pos = cp.pos
	return s.discard(off - cp.pos)
}

func (s *bgzfStream) close() error { return s.cr.bg.Close() }

// writeStream encodes output. finish flushes the encoder without closing w.
type writeStream struct {
	w      io.Writer
	finish func() error
	pos    int64
}

func (s *writeStream) readLine() (string, error) {
	return "", errors.E(errors.NotSupported, "stream is open for writing")
}

func (s *writeStream) seek(int64) error {
	return errors.E(errors.NotSupported, "stream is open for writing")
}

func (s *writeStream) offset() int64 { return s.pos }

func (s *writeStream) writeLines(lines []string) error {
	for _, line := range lines {
		n, err := io.WriteString(s.w, line)
		s.pos += int64(n)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *writeStream) close() error { return s.finish() }

// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fastq

import (
	"io"
	"strings"
)

// LinesPerRecord is the number of text lines in one FASTQ record.
const LinesPerRecord = 4

// Record is one raw FASTQ record: header, sequence, separator and quality
// lines, in that order. Each line retains its line terminator exactly as it
// appeared in the input (the last line of a file may lack one).
type Record [LinesPerRecord]string

// NewRecord converts a parsed read into a Record, terminating each line with
// "\n".
func NewRecord(r *Read) Record {
	return Record{r.ID + "\n", r.Seq + "\n", r.Unk + "\n", r.Qual + "\n"}
}

// Read returns the record as a Read with the line terminators removed.
func (r Record) Read() Read {
	return Read{
		ID:   trimEOL(r[0]),
		Seq:  trimEOL(r[1]),
		Unk:  trimEOL(r[2]),
		Qual: trimEOL(r[3]),
	}
}

// Name returns the read name: the header line without the leading '@', up to
// the first whitespace.
func (r Record) Name() string {
	id := strings.TrimPrefix(trimEOL(r[0]), "@")
	if i := strings.IndexAny(id, " \t"); i >= 0 {
		id = id[:i]
	}
	return id
}

// Len returns the number of bytes the record occupies on disk.
func (r Record) Len() int {
	return len(r[0]) + len(r[1]) + len(r[2]) + len(r[3])
}

// Validate checks that the header line begins with '@' and the separator
// line begins with '+'. It returns ErrInvalid otherwise. Sequence and
// quality contents are not inspected.
func (r Record) Validate() error {
	if !validID(r[0]) || !validUnk(r[2]) {
		return ErrInvalid
	}
	return nil
}

// WriteTo writes the four lines verbatim to w. It implements io.WriterTo.
func (r Record) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, line := range r {
		n, err := io.WriteString(w, line)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Terminated returns r with a "\n" appended to any line that lacks a
// terminator. Only the last record of an input can need this.
func (r Record) Terminated() Record {
	for i, line := range r {
		if !strings.HasSuffix(line, "\n") {
			r[i] = line + "\n"
		}
	}
	return r
}

func validID(line string) bool  { return len(line) > 0 && line[0] == '@' }
func validUnk(line string) bool { return len(line) > 0 && line[0] == '+' }

func trimEOL(line string) string {
	return strings.TrimRight(line, "\r\n")
}

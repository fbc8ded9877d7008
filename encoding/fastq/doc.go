// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package fastq reads and writes four-line FASTQ files.
//
// File gives position-addressable access to a FASTQ file stored either as
// plain text or gzip-compressed (selected by a ".gz" name suffix). Each call
// to GetRecord returns one Record and remembers the logical offset at which
// it began; SeekRecord returns to any such offset later:
//
//   f, err := fastq.Open(ctx, "reads.fastq.gz", fastq.ReadMode)
//   if err != nil {
//     return err
//   }
//   defer f.Close()
//   var offsets []int64
//   for {
//     rec, err := f.GetRecord()
//     if err == io.EOF {
//       break
//     } else if err != nil {
//       return err
//     }
//     offsets = append(offsets, f.Offset())
//     ...
//   }
//   if err := f.SeekRecord(offsets[0]); err != nil { ... }
//
// Scanner and Writer are streaming, non-seekable alternatives that work on
// any io.Reader or io.Writer.
package fastq

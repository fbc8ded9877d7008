package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/fqutils/encoding/fastq"
)

type dedupKey string

const (
	seqKey    dedupKey = "seq"
	nameKey   dedupKey = "name"
	recordKey dedupKey = "record"
)

func parseDedupKey(s string) (dedupKey, error) {
	switch k := dedupKey(s); k {
	case seqKey, nameKey, recordKey:
		return k, nil
	}
	return "", fmt.Errorf("unknown dedup key %q, must be one of seq, name, record", s)
}

type fingerprint struct{ hi, lo uint64 }

// fingerprintOf hashes the part of rec selected by key. Line terminators are
// excluded, so CRLF and LF inputs dedup alike.
func fingerprintOf(rec fastq.Record, key dedupKey) fingerprint {
	var s string
	switch key {
	case seqKey:
		s = rec.Read().Seq
	case nameKey:
		s = rec.Name()
	default:
		r := rec.Read()
		s = strings.Join([]string{r.ID, r.Seq, r.Unk, r.Qual}, "\n")
	}
	hi, lo := farm.Fingerprint128([]byte(s))
	return fingerprint{hi, lo}
}

// dedup copies the records of in to out, dropping each record whose key
// fingerprint matches an earlier record. Input order is kept.
func dedup(ctx context.Context, in, out string, key dedupKey) (kept, dropped int64, err error) {
	r, err := fastq.Open(ctx, in, fastq.ReadMode)
	if err != nil {
		return 0, 0, err
	}
	w, err := fastq.Open(ctx, out, fastq.WriteMode)
	if err != nil {
		_ = r.Close()
		return 0, 0, err
	}
	var once errors.Once
	defer func() {
		once.Set(r.Close())
		once.Set(w.Close())
		err = once.Err()
	}()
	seen := make(map[fingerprint]struct{})
	for {
		rec, err := r.GetRecord()
		if err == io.EOF {
			return kept, dropped, nil
		}
		if err != nil {
			once.Set(err)
			return kept, dropped, err
		}
		fp := fingerprintOf(rec, key)
		if _, ok := seen[fp]; ok {
			log.Debug.Printf("%s: duplicate %s at offset %d", in, rec.Name(), r.Offset())
			dropped++
			continue
		}
		seen[fp] = struct{}{}
		// The input's last record may be unterminated even though it is not last here.
		if err := w.WriteRecord(rec.Terminated()); err != nil {
			once.Set(err)
			return kept, dropped, err
		}
		kept++
	}
}

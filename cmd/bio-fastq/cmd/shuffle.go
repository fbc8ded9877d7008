package cmd

import (
	"context"
	"io"
	"math/rand"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/fqutils/encoding/fastq"
)

// recordOffsets returns the offset of every record in f, leaving f at EOF.
func recordOffsets(f *fastq.File) ([]int64, error) {
	var offs []int64
	for {
		_, err := f.GetRecord()
		if err == io.EOF {
			return offs, nil
		}
		if err != nil {
			return nil, err
		}
		offs = append(offs, f.Offset())
	}
}

// shuffle writes the records of in to out in an order chosen by seed. It
// collects record offsets in one pass, then seeks to each record in permuted
// order. It returns the number of records.
func shuffle(ctx context.Context, in, out string, seed int64) (n int, err error) {
	r, err := fastq.Open(ctx, in, fastq.ReadMode)
	if err != nil {
		return 0, err
	}
	defer r.Close() // nolint: errcheck
	offs, err := recordOffsets(r)
	if err != nil {
		return 0, err
	}
	log.Debug.Printf("%s: shuffling %d records", in, len(offs))
	rnd := rand.New(rand.NewSource(seed))
	rnd.Shuffle(len(offs), func(i, j int) { offs[i], offs[j] = offs[j], offs[i] })

	w, err := fastq.Open(ctx, out, fastq.WriteMode)
	if err != nil {
		return 0, err
	}
	var once errors.Once
	for _, off := range offs {
		if err := r.SeekRecord(off); err != nil {
			once.Set(err)
			break
		}
		rec, err := r.GetRecord()
		if err != nil {
			once.Set(err)
			break
		}
		// The input's last record may be unterminated; here it may not be last.
		if err := w.WriteRecord(rec.Terminated()); err != nil {
			once.Set(err)
			break
		}
	}
	once.Set(w.Close())
	once.Set(r.Close())
	return len(offs), once.Err()
}

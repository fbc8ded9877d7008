package cmd

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/fqutils/encoding/fastq"
)

type subsetFlags struct {
	rate  float64
	count int64
}

// subset writes a random subset of the read pairs in r1In and r2In to r1Out
// and r2Out. Exactly one of flags.rate and flags.count must be non-negative.
func subset(ctx context.Context, flags subsetFlags, r1In, r2In, r1Out, r2Out string) error {
	if (flags.rate < 0) == (flags.count < 0) {
		return errors.E(errors.Invalid, "subset: exactly one of -rate and -count must be set")
	}
	out1, err := fastq.Open(ctx, r1Out, fastq.WriteMode)
	if err != nil {
		return err
	}
	out2, err := fastq.Open(ctx, r2Out, fastq.WriteMode)
	if err != nil {
		_ = out1.Close()
		return err
	}
	var once errors.Once
	if flags.rate >= 0 {
		log.Debug.Printf("subset: keeping pairs of %s, %s at rate %v", r1In, r2In, flags.rate)
		once.Set(fastq.Downsample(ctx, flags.rate, r1In, r2In, out1, out2))
	} else {
		log.Debug.Printf("subset: keeping %d pairs of %s, %s", flags.count, r1In, r2In)
		once.Set(fastq.DownsampleToCount(ctx, flags.count, r1In, r2In, out1, out2))
	}
	once.Set(out1.Close())
	once.Set(out2.Close())
	return once.Err()
}

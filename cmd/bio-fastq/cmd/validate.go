package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/fqutils/encoding/fastq"
)

// validate reads every record of path and checks its marker lines. It returns
// the number of valid records read before the first problem.
func validate(ctx context.Context, path string) (n int64, err error) {
	f, err := fastq.Open(ctx, path, fastq.ReadMode)
	if err != nil {
		return 0, err
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}()
	for {
		rec, err := f.GetRecord()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			if fastq.IsTruncated(err) {
				log.Error.Printf("%s: input ends inside record %d", path, n)
			}
			return n, err
		}
		if err := rec.Validate(); err != nil {
			return n, errors.E(errors.Invalid, path,
				fmt.Sprintf("record %d at offset %d: %q", n, f.Offset(), rec[0]), err)
		}
		n++
	}
}

package cmd

import (
	"context"
	"io"

	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/fqutils/encoding/fastq"
)

// countRecords returns the number of records in each of paths. The files are
// read in parallel.
func countRecords(ctx context.Context, paths []string) ([]int64, error) {
	counts := make([]int64, len(paths))
	err := traverse.Each(len(paths), func(i int) error {
		f, err := fastq.Open(ctx, paths[i], fastq.ReadMode)
		if err != nil {
			return err
		}
		defer f.Close() // nolint: errcheck
		for {
			_, err := f.GetRecord()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			counts[i]++
		}
		return f.Close()
	})
	return counts, err
}

func count(ctx context.Context, paths []string, out io.Writer) error {
	counts, err := countRecords(ctx, paths)
	if err != nil {
		return err
	}
	w := tsv.NewWriter(out)
	for i, path := range paths {
		w.WriteString(path)
		w.WriteInt64(counts[i])
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}

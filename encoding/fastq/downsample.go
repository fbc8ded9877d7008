package fastq

import (
	"context"
	"io"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// pairReader reads R1 and R2 records in lockstep.
type pairReader struct {
	r1, r2 *File
}

func openPair(ctx context.Context, r1Path, r2Path string) (*pairReader, error) {
	r1, err := Open(ctx, r1Path, ReadMode)
	if err != nil {
		return nil, errors.Wrap(err, "error opening R1 input")
	}
	r2, err := Open(ctx, r2Path, ReadMode)
	if err != nil {
		_ = r1.Close()
		return nil, errors.Wrap(err, "error opening R2 input")
	}
	return &pairReader{r1: r1, r2: r2}, nil
}

// next returns the next pair. It returns io.EOF when both inputs end after
// the same number of records.
func (p *pairReader) next() (rec1, rec2 Record, err error) {
	rec1, r1Err := p.r1.GetRecord()
	if r1Err != nil && r1Err != io.EOF {
		return rec1, rec2, errors.Wrap(r1Err, "error reading R1 input")
	}
	rec2, r2Err := p.r2.GetRecord()
	if r2Err != nil && r2Err != io.EOF {
		return rec1, rec2, errors.Wrap(r2Err, "error reading R2 input")
	}
	if r1Err == io.EOF && r2Err == io.EOF {
		// Both readers ended after the same number of reads, as expected.
		return rec1, rec2, io.EOF
	} else if r1Err == io.EOF {
		return rec1, rec2, errors.New("more reads in R2 input than in R1 input")
	} else if r2Err == io.EOF {
		return rec1, rec2, errors.New("more reads in R1 input than in R2 input")
	}
	return rec1, rec2, nil
}

// replay seeks both inputs to the given offsets and reads the pair there.
func (p *pairReader) replay(off pairOffset) (rec1, rec2 Record, err error) {
	if err = p.r1.SeekRecord(off.r1); err != nil {
		return
	}
	if err = p.r2.SeekRecord(off.r2); err != nil {
		return
	}
	return p.next()
}

func (p *pairReader) close() error {
	err1 := p.r1.Close()
	if err2 := p.r2.Close(); err2 != nil && err1 == nil {
		err1 = err2
	}
	return err1
}

func writePair(r1Out, r2Out RecordWriter, rec1, rec2 Record) error {
	if err := r1Out.WriteRecord(rec1); err != nil {
		return errors.Wrap(err, "error writing R1 output")
	}
	if err := r2Out.WriteRecord(rec2); err != nil {
		return errors.Wrap(err, "error writing R2 output")
	}
	return nil
}

// Downsample writes read pairs from the FASTQ files r1Path and r2Path to r1Out
// and r2Out. Read pairs will be randomly selected for inclusion in the output
// at the given sampling rate. Rates above 1 keep every pair.
func Downsample(ctx context.Context, rate float64, r1Path, r2Path string, r1Out, r2Out RecordWriter) (err error) {
	if rate < 0.0 {
		return errors.Errorf("rate must be non-negative, got %v", rate)
	}
	p, err := openPair(ctx, r1Path, r2Path)
	if err != nil {
		return err
	}
	defer func() {
		if e := p.close(); e != nil && err == nil {
			err = e
		}
	}()
	random := rand.New(rand.NewSource(0))
	for {
		rec1, rec2, err := p.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if random.Float64() < rate {
			if err := writePair(r1Out, r2Out, rec1, rec2); err != nil {
				return err
			}
		}
	}
}

type pairOffset struct {
	r1, r2 int64
}

// DownsampleToCount writes up to count read pairs from r1Path and r2Path to
// r1Out and r2Out. The pairs are chosen uniformly at random (reservoir
// sampling over record offsets) and written in input order. If the inputs hold
// count pairs or fewer, all of them are written.
func DownsampleToCount(ctx context.Context, count int64, r1Path, r2Path string, r1Out, r2Out RecordWriter) (err error) {
	if count < 0 {
		return errors.Errorf("count must be non-negative, got %d", count)
	}
	p, err := openPair(ctx, r1Path, r2Path)
	if err != nil {
		return err
	}
	defer func() {
		if e := p.close(); e != nil && err == nil {
			err = e
		}
	}()
	var (
		random    = rand.New(rand.NewSource(0))
		reservoir []pairOffset
		n         int64
	)
	for {
		_, _, err := p.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		off := pairOffset{p.r1.Offset(), p.r2.Offset()}
		if n < count {
			reservoir = append(reservoir, off)
		} else if j := random.Int63n(n + 1); j < count {
			reservoir[j] = off
		}
		n++
	}
	sort.Slice(reservoir, func(i, j int) bool { return reservoir[i].r1 < reservoir[j].r1 })
	for _, off := range reservoir {
		rec1, rec2, err := p.replay(off)
		if err != nil {
			return err
		}
		if err := writePair(r1Out, r2Out, rec1, rec2); err != nil {
			return err
		}
	}
	return nil
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"strings"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/fqutils/encoding/fastq"
	"github.com/minio/highwayhash"
)

var zeroKey [32]byte

// fileChecksum is the checksum of the records in one FASTQ file. Every
// field is combined with a commutative operation, so the checksum does not
// depend on record order.
type fileChecksum struct {
	// NRecs is the # of records.
	NRecs int64
	// SumName is the sum of read name hashes.
	SumName uint64
	// SumSeq is the sum of sequence hashes.
	SumSeq uint64
	// SumQual is the sum of quality string hashes.
	SumQual uint64
	// XORRecord is the XOR of the highwayhash of each whole record.
	XORRecord uint64
}

func hashField(h hash.Hash64, value string) uint64 {
	h.Reset()
	io.WriteString(h, value) // nolint: errcheck
	return h.Sum64()
}

// add folds rec into the checksum. Line terminators are excluded, so LF and
// CRLF files with the same records checksum alike.
func (c *fileChecksum) add(rec fastq.Record, h hash.Hash64) {
	r := rec.Read()
	c.NRecs++
	c.SumName += hashField(h, rec.Name())
	c.SumSeq += hashField(h, r.Seq)
	c.SumQual += hashField(h, r.Qual)
	c.XORRecord ^= highwayhash.Sum64([]byte(strings.Join([]string{r.ID, r.Seq, r.Unk, r.Qual}, "\n")), zeroKey[:])
}

func checksumFile(ctx context.Context, path string) (c fileChecksum, err error) {
	f, err := fastq.Open(ctx, path, fastq.ReadMode)
	if err != nil {
		return c, err
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}()
	h := seahash.New()
	for {
		rec, err := f.GetRecord()
		if err == io.EOF {
			return c, nil
		}
		if err != nil {
			return c, err
		}
		c.add(rec, h)
	}
}

func checksum(ctx context.Context, path string, out io.Writer) error {
	c, err := checksumFile(ctx, path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n", data)
	return err
}

package fastq_test

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/fqutils/encoding/fastq"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func writeLines(t *testing.T, path string, data []string) {
	text := ""
	for _, line := range data {
		text += line + "\n"
	}
	if fastq.IsCompressed(path) {
		writeGzip(t, path, text)
		return
	}
	assert.NoError(t, ioutil.WriteFile(path, []byte(text), 0600))
}

var (
	r1Lines = []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	r2Lines = []string{"i", "j", "k", "l", "m", "n", "o", "p"}
)

func TestDownsample(t *testing.T) {
	tests := []struct {
		rate       float64
		r1InLines  []string
		r2InLines  []string
		r1OutLines []string
		r2OutLines []string
		err        string
	}{
		{1.0, r1Lines, r2Lines, r1Lines, r2Lines, ""},
		{1.2, r1Lines, r2Lines, r1Lines, r2Lines, ""},
		{0.0, r1Lines, r2Lines, []string{}, []string{}, ""},
		{-0.1, r1Lines, r2Lines, nil, nil, "rate must be non-negative"},
		{1.0, r1Lines, []string{"i", "j", "k", "l"}, nil, nil, "more reads in R1 input than in R2 input"},
		{1.0, []string{"a", "b", "c", "d"}, r2Lines, nil, nil, "more reads in R2 input than in R1 input"},
		{1.0, []string{"a", "b", "c", "d", "e"}, r2Lines, nil, nil, "error reading R1 input"},
		{1.0, r1Lines, []string{"i", "j", "k", "l", "m", "n"}, nil, nil, "error reading R2 input"},
	}

	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	for idx, test := range tests {
		t.Run(fmt.Sprint(idx), func(t *testing.T) {
			r1Path := fmt.Sprintf("%s/%dr1.fastq.gz", tempDir, idx)
			r2Path := fmt.Sprintf("%s/%dr2.fastq", tempDir, idx)
			writeLines(t, r1Path, test.r1InLines)
			writeLines(t, r2Path, test.r2InLines)
			var r1Out, r2Out bytes.Buffer
			err := fastq.Downsample(ctx, test.rate, r1Path, r2Path, fastq.NewWriter(&r1Out), fastq.NewWriter(&r2Out))
			if test.err != "" {
				assert.NotNil(t, err)
				expect.HasSubstr(t, err.Error(), test.err)
				return
			}
			assert.NoError(t, err)
			checkDownsampleOutput(t, test.r1OutLines, &r1Out)
			checkDownsampleOutput(t, test.r2OutLines, &r2Out)
		})
	}
}

func TestDownsampleToCount(t *testing.T) {
	tests := []struct {
		count      int64
		r1OutLines []string
		r2OutLines []string
	}{
		{2, r1Lines, r2Lines},
		{4, r1Lines, r2Lines},
		{0, []string{}, []string{}},
	}
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	for idx, test := range tests {
		t.Run(fmt.Sprint(idx), func(t *testing.T) {
			r1Path := fmt.Sprintf("%s/%dr1.fastq", tempDir, idx)
			r2Path := fmt.Sprintf("%s/%dr2.fastq.gz", tempDir, idx)
			writeLines(t, r1Path, r1Lines)
			writeLines(t, r2Path, r2Lines)
			var r1Out, r2Out bytes.Buffer
			assert.NoError(t, fastq.DownsampleToCount(ctx, test.count, r1Path, r2Path, fastq.NewWriter(&r1Out), fastq.NewWriter(&r2Out)))
			checkDownsampleOutput(t, test.r1OutLines, &r1Out)
			checkDownsampleOutput(t, test.r2OutLines, &r2Out)
		})
	}
}

func checkDownsampleOutput(t *testing.T, expected []string, actual *bytes.Buffer) {
	actualLines := strings.Split(strings.Trim(actual.String(), "\n"), "\n")
	if actual.String() == "" {
		// We need this special case due to the behavior of strings.Split().
		actualLines = []string{}
	}
	expect.EQ(t, actualLines, expected)
}

// writePairs writes n read pairs whose R1 and R2 names match.
func writePairs(t *testing.T, dir string, n int) (r1Path, r2Path string) {
	r1Path = filepath.Join(dir, "large_1.fastq.gz")
	r2Path = filepath.Join(dir, "large_2.fastq.gz")
	ctx := context.Background()
	r1, err := fastq.Open(ctx, r1Path, fastq.WriteMode)
	assert.NoError(t, err)
	r2, err := fastq.Open(ctx, r2Path, fastq.WriteMode)
	assert.NoError(t, err)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("@pair%d", i)
		assert.NoError(t, r1.Write(&fastq.Read{ID: name + " 1", Seq: "ACGTACGT", Unk: "+", Qual: "IIIIIIII"}))
		assert.NoError(t, r2.Write(&fastq.Read{ID: name + " 2", Seq: "TTGGCCAA", Unk: "+", Qual: "JJJJJJJJ"}))
	}
	assert.NoError(t, r1.Close())
	assert.NoError(t, r2.Close())
	return
}

// checkPairs verifies that the outputs are concordant, in input order, and
// returns the number of pairs.
func checkPairs(t *testing.T, r1Out, r2Out *bytes.Buffer) int {
	var (
		s       = fastq.NewPairScanner(r1Out, r2Out, fastq.ID)
		r1, r2  fastq.Read
		n, last = 0, -1
	)
	for s.Scan(&r1, &r2) {
		var i1, i2 int
		_, err := fmt.Sscanf(r1.ID, "@pair%d 1", &i1)
		assert.NoError(t, err)
		_, err = fmt.Sscanf(r2.ID, "@pair%d 2", &i2)
		assert.NoError(t, err)
		expect.EQ(t, i1, i2)
		expect.True(t, i1 > last)
		last = i1
		n++
	}
	assert.NoError(t, s.Err())
	return n
}

func TestDownsampleLarge(t *testing.T) {
	const nRead = 20000
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	r1Path, r2Path := writePairs(t, tempDir, nRead)
	for _, count := range []int64{1, 100, 1000, 10000} {
		t.Run("count-"+fmt.Sprint(count), func(t *testing.T) {
			var r1Out, r2Out bytes.Buffer
			assert.NoError(t, fastq.DownsampleToCount(context.Background(), count, r1Path, r2Path, fastq.NewWriter(&r1Out), fastq.NewWriter(&r2Out)))
			expect.EQ(t, checkPairs(t, &r1Out, &r2Out), int(count))
		})
	}

	for _, rate := range []float64{0.01, 0.1, 0.5} {
		t.Run("rate-"+fmt.Sprint(rate), func(t *testing.T) {
			var r1Out, r2Out bytes.Buffer
			assert.NoError(t, fastq.Downsample(context.Background(), rate, r1Path, r2Path, fastq.NewWriter(&r1Out), fastq.NewWriter(&r2Out)))
			n := checkPairs(t, &r1Out, &r2Out)
			expect.GE(t, n, int(nRead*rate*0.75))
			expect.LE(t, n, int(nRead*rate*1.25))
		})
	}
}

func TestDownsampleTruncatedInput(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	r1Path := filepath.Join(tempDir, "short_1.fastq")
	r2Path := filepath.Join(tempDir, "short_2.fastq.gz")
	writeLines(t, r1Path, []string{"@a", "AC", "+", "II", "@b", "GT"})
	writeLines(t, r2Path, []string{"@a", "TT", "+", "JJ", "@b", "CA", "+", "JJ"})

	var r1Out, r2Out bytes.Buffer
	err := fastq.Downsample(ctx, 1, r1Path, r2Path, fastq.NewWriter(&r1Out), fastq.NewWriter(&r2Out))
	assert.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), "error reading R1 input")
	expect.True(t, fastq.IsTruncated(err), err)

	err = fastq.DownsampleToCount(ctx, 1, r1Path, r2Path, fastq.NewWriter(&r1Out), fastq.NewWriter(&r2Out))
	assert.NotNil(t, err)
	expect.True(t, fastq.IsTruncated(err), err)
	expect.False(t, fastq.IsConfigurationError(err))
}

// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fastq

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/require"
)

var errFlush = errors.New("flush failed")

// failingCloseStream reports a flush error after closing the stream it wraps.
type failingCloseStream struct {
	lineStream
}

func (s failingCloseStream) close() error {
	_ = s.lineStream.close()
	return errFlush
}

func TestCloseRemovesPartialOutput(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	for _, name := range []string{"partial.fastq", "partial.fastq.gz"} {
		path := filepath.Join(tempDir, name)
		f, err := Open(ctx, path, WriteMode)
		require.NoError(t, err)
		require.NoError(t, f.Write(&Read{ID: "@r1", Seq: "ACGT", Unk: "+", Qual: "IIII"}))
		f.stream = failingCloseStream{f.stream}

		err = f.Close()
		require.Error(t, err)
		require.True(t, hasCause(err, errFlush), "err: %v", err)
		_, err = os.Stat(path)
		require.True(t, os.IsNotExist(err), "%s: stat err: %v", name, err)
		require.NoError(t, f.Close())
	}

	// A successful close keeps the output.
	path := filepath.Join(tempDir, "complete.fastq.gz")
	f, err := Open(ctx, path, WriteMode)
	require.NoError(t, err)
	require.NoError(t, f.Write(&Read{ID: "@r1", Seq: "ACGT", Unk: "+", Qual: "IIII"}))
	require.NoError(t, f.Close())
	_, err = os.Stat(path)
	require.NoError(t, err)
}

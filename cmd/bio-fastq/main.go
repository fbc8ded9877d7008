// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// bio-fastq counts, validates, subsets, shuffles, deduplicates and checksums
// FASTQ files, plain or gzip-compressed. Run "bio-fastq help" for the list of
// subcommands.
package main

import "github.com/grailbio/fqutils/cmd/bio-fastq/cmd"

func main() {
	cmd.Run()
}

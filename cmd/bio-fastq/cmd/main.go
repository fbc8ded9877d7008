package cmd

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/cmdline"
)

func newCmdCount() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "count",
		Short:    "Count the records in FASTQ files",
		Long:     "Prints one line per file: the path and its number of records, tab separated.",
		ArgsName: "path...",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("count takes one or more paths, but got none")
		}
		return count(vcontext.Background(), argv, env.Stdout)
	})
	return cmd
}

func newCmdValidate() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "validate",
		Short:    "Check that every record has '@' and '+' marker lines",
		ArgsName: "path",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("validate takes one path, but got %v", argv)
		}
		n, err := validate(vcontext.Background(), argv[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(env.Stdout, "%s: %d records OK\n", argv[0], n)
		return nil
	})
	return cmd
}

func newCmdSubset() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "subset",
		Short:    "Randomly subsample paired FASTQ files",
		ArgsName: "r1in r2in r1out r2out",
	}
	flags := subsetFlags{}
	cmd.Flags.Float64Var(&flags.rate, "rate", -1, "Keep each read pair with this probability. Exactly one of -rate and -count must be set.")
	cmd.Flags.Int64Var(&flags.count, "count", -1, `Keep this many read pairs, chosen uniformly at random.
Exactly one of -rate and -count must be set.`)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 4 {
			return fmt.Errorf("subset takes r1in r2in r1out r2out, but got %v", argv)
		}
		return subset(vcontext.Background(), flags, argv[0], argv[1], argv[2], argv[3])
	})
	return cmd
}

func newCmdShuffle() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "shuffle",
		Short:    "Write the records of a FASTQ file in random order",
		ArgsName: "in out",
	}
	seed := cmd.Flags.Int64("seed", 0, "Seed of the random permutation")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("shuffle takes in out, but got %v", argv)
		}
		n, err := shuffle(vcontext.Background(), argv[0], argv[1], *seed)
		if err == nil {
			log.Printf("%s: shuffled %d records into %s", argv[0], n, argv[1])
		}
		return err
	})
	return cmd
}

func newCmdDedup() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "dedup",
		Short:    "Drop records whose key was already seen",
		ArgsName: "in out",
	}
	key := cmd.Flags.String("key", string(seqKey), `Field that identifies duplicates. One of:
  seq    - the sequence line
  name   - the read name (header up to the first whitespace)
  record - all four lines`)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("dedup takes in out, but got %v", argv)
		}
		k, err := parseDedupKey(*key)
		if err != nil {
			return err
		}
		kept, dropped, err := dedup(vcontext.Background(), argv[0], argv[1], k)
		if err == nil {
			log.Printf("%s: kept %d records, dropped %d duplicates", argv[0], kept, dropped)
		}
		return err
	})
	return cmd
}

func newCmdChecksum() *cmdline.Command {
	cmd := &cmdline.Command{
		Name: "checksum",
		Short: `Compute an order-independent checksum of a FASTQ file.
The checksum is a JSON string with the record count and two digests of the records`,
		ArgsName: "path",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("checksum takes a path, but got %v", argv)
		}
		return checksum(vcontext.Background(), argv[0], env.Stdout)
	})
	return cmd
}

// Run is the entry point of bio-fastq.
func Run() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-fastq",
			Short:    "Tools for working with plain and gzipped FASTQ files",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdCount(),
				newCmdValidate(),
				newCmdSubset(),
				newCmdShuffle(),
				newCmdDedup(),
				newCmdChecksum(),
			},
		})
}

// Command gvz is the CLI front end over the gvz package: a thin
// Cobra wrapper that opens files, wires up internal/recordio as the
// record.Source/record.Sink collaborator, and calls gvz.Compress or
// gvz.Decompress.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gvzproj/gvz"
	"github.com/gvzproj/gvz/codec"
	"github.com/gvzproj/gvz/internal/blockcoder"
	"github.com/gvzproj/gvz/internal/logging"
	"github.com/gvzproj/gvz/internal/recordio"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gvz:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gvz",
		Short:         "gvz compresses and decompresses tabular genomic variant records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(compressCmd(), decompressCmd())
	return root
}

func compressCmd() *cobra.Command {
	var (
		neglectLimit int
		threads      int
		blockLevel   int
		verbose      bool
	)
	cmd := &cobra.Command{
		Use:   "compress <input> <archive>",
		Short: "Compress a recordio input file into a gvz archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer out.Close()

			source := recordio.NewReader(in)
			params := gvz.DefaultParams
			params.Codec.NeglectLimit = neglectLimit
			params.Codec.BlockParams.Level = blockcoder.Level(blockLevel)
			params.Threads = threads
			if verbose {
				params.LogLevel = logging.LevelInfo
			}

			if err := gvz.Compress(source, out, params); err != nil {
				return err
			}
			return out.Sync()
		},
	}
	cmd.Flags().IntVarP(&neglectLimit, "neglect-limit", "n", codec.DefaultParams.NeglectLimit, "PBWT neglect limit for the genotype column")
	cmd.Flags().IntVarP(&threads, "threads", "t", 0, "worker pool size (0 picks runtime.NumCPU()-1)")
	cmd.Flags().IntVarP(&blockLevel, "block-level", "b", int(blockcoder.LevelDefault), "BlockCoder level: 1 (fast), 2 (default), 3 (best)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable info-level logging")
	return cmd
}

func decompressCmd() *cobra.Command {
	var (
		threads  int
		level    int
		bitExact bool
		verbose  bool
	)
	cmd := &cobra.Command{
		Use:   "decompress <archive> <output>",
		Short: "Decompress a gvz archive into a recordio output file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			fi, err := in.Stat()
			if err != nil {
				return err
			}

			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer out.Close()

			sink := recordio.NewWriter(out)
			params := gvz.DefaultParams
			params.Threads = threads
			if verbose {
				params.LogLevel = logging.LevelInfo
			}

			if err := gvz.Decompress(in, fi.Size(), sink, params); err != nil {
				return err
			}
			return out.Sync()
		},
	}
	cmd.Flags().IntVarP(&threads, "threads", "t", 0, "worker pool size (0 picks runtime.NumCPU()-1)")
	cmd.Flags().IntVarP(&level, "level", "c", 0, "accepted for CLI-surface parity; decompression is always bit-exact")
	cmd.Flags().BoolVar(&bitExact, "bitexact", true, "accepted for CLI-surface parity; decompression is always bit-exact")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable info-level logging")
	return cmd
}

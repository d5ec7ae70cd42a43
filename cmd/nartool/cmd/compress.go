package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aweris/narcache"
)

var compressCmd = &cobra.Command{
	Use:   "compress",
	Short: "(Re)compress NAR files",
	Long:  "Rewrite the compression of the given store hashes. Original NAR files are not deleted.",
	Args:  cobra.NoArgs,
	RunE:  runCompress,
}

func init() {
	compressCmd.Flags().StringP("compression", "c", "xz", "target compression (xz, zstd, none)")
	compressCmd.Flags().StringP("input", "i", "-", "file with store hashes, one per line (- for stdin)")
	compressCmd.Flags().Bool("drop-signatures", false, "strip Sig fields from rewritten narinfo records")
	rootCmd.AddCommand(compressCmd)
}

func runCompress(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, err := openCache()
	if err != nil {
		return err
	}

	codecName, _ := cmd.Flags().GetString("compression")
	target, err := narcache.ParseCompression(codecName)
	if err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	hashes, err := readHashes(input, cmd.InOrStdin())
	if err != nil {
		return err
	}

	opts := []narcache.Option{narcache.WithConcurrency(getConcurrency())}
	if drop, _ := cmd.Flags().GetBool("drop-signatures"); drop {
		opts = append(opts, narcache.WithDropSignatures())
	}

	report := narcache.NewRecompressor(c, opts...).RecompressAll(ctx, hashes, target)
	for _, item := range report.Failed {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s: %v\n", item.Name, item.Err)
	}
	return report.Err()
}

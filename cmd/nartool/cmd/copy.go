package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aweris/narcache"
)

var copyCmd = &cobra.Command{
	Use:   "copy <store-path>",
	Short: "Sparse-copy a closure into the cache",
	Long:  "Copy the closure of a local store path into the cache, transferring only the paths the cache is missing.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCopy,
}

func init() {
	copyCmd.Flags().StringP("compression", "c", "xz", "target compression (xz, zstd, none)")
	copyCmd.Flags().String("nix-store-bin", "", "nix-store binary to query the local store (default: from PATH)")
	rootCmd.AddCommand(copyCmd)
}

func runCopy(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, err := openCache()
	if err != nil {
		return err
	}

	codecName, _ := cmd.Flags().GetString("compression")
	codec, err := narcache.ParseCompression(codecName)
	if err != nil {
		return err
	}

	bin, _ := cmd.Flags().GetString("nix-store-bin")
	store, err := narcache.NewNixStore(bin)
	if err != nil {
		return err
	}

	copier := narcache.NewCopier(store, c,
		narcache.WithCompression(codec),
		narcache.WithConcurrency(getConcurrency()))

	report, err := copier.Copy(ctx, args[0])
	if err != nil {
		return err
	}
	for _, item := range report.Failed {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s: %v\n", item.Name, item.Err)
	}
	return report.Err()
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aweris/narcache"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the structure of the cache",
	Long:  "Check for narinfo records without NAR files and for references whose metadata is missing.",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("hash", "", "only check the closure of this store hash")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, err := openCache()
	if err != nil {
		return err
	}

	infos, nars, malformed := narcache.ScanCache(ctx, c)
	for _, item := range malformed {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %v\n", item.Name, item.Err)
	}

	if hash, _ := cmd.Flags().GetString("hash"); hash != "" {
		closure, err := narcache.CacheClosure(ctx, c, hash)
		if err != nil {
			return err
		}
		for _, item := range closure.Malformed {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %v\n", item.Name, item.Err)
		}
		limited := make(map[string]*narcache.NarInfo, len(closure.Infos))
		for h := range closure.Infos {
			if info, ok := infos[h]; ok {
				limited[h] = info
			}
		}
		infos = limited
	}

	for name, cl := range narcache.Classify(infos, nars) {
		switch {
		case cl.OrphanedNarInfo && cl.MissingReference:
			fmt.Printf("%s\tmissing nar, missing reference\n", name)
		case cl.OrphanedNarInfo:
			fmt.Printf("%s\tmissing nar\n", name)
		case cl.MissingReference:
			fmt.Printf("%s\tmissing reference\n", name)
		}
	}

	return nil
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aweris/narcache"
)

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Find orphaned NAR files",
	Long:  "List NAR files that no narinfo record references.",
	Args:  cobra.NoArgs,
	RunE:  runOrphans,
}

func init() {
	rootCmd.AddCommand(orphansCmd)
}

func runOrphans(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, err := openCache()
	if err != nil {
		return err
	}

	infos, nars, malformed := narcache.ScanCache(ctx, c)
	for _, item := range malformed {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %v\n", item.Name, item.Err)
	}

	for name, cl := range narcache.Classify(infos, nars) {
		if cl.OrphanedNar {
			fmt.Println(name)
		}
	}

	return nil
}

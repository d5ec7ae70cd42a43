package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aweris/narcache"
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "List the files belonging to a closure",
	Long:  "List all narinfo and NAR files of the cache, or of one hash's closure.",
	Args:  cobra.NoArgs,
	RunE:  runGet,
}

func init() {
	getCmd.Flags().String("hash", "", "only list files for this store hash's closure")
	getCmd.Flags().BoolP("listhashes", "l", false, "list store hashes instead of file names")
	getCmd.Flags().BoolP("relative", "r", false, "print paths relative to the cache directory")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, err := openCache()
	if err != nil {
		return err
	}

	var order []string
	infos := make(map[string]*narcache.NarInfo)

	if hash, _ := cmd.Flags().GetString("hash"); hash != "" {
		closure, err := narcache.CacheClosure(ctx, c, hash)
		if err != nil {
			return err
		}
		order, infos = closure.Order, closure.Infos
		for _, missing := range closure.Missing {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s not found in cache\n", missing)
		}
		for _, item := range closure.Malformed {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %v\n", item.Name, item.Err)
		}
	} else {
		scanned, _, malformed := narcache.ScanCache(ctx, c)
		for _, item := range malformed {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %v\n", item.Name, item.Err)
		}
		for h, info := range scanned {
			order = append(order, h)
			infos[h] = info
		}
	}

	listHashes, _ := cmd.Flags().GetBool("listhashes")
	relative, _ := cmd.Flags().GetBool("relative")
	storeDir := viper.GetString("store")

	for _, h := range order {
		if listHashes {
			fmt.Println(h)
			continue
		}
		narinfoFile := h + ".narinfo"
		narFile := filepath.FromSlash(infos[h].URL)
		if !relative {
			narinfoFile = filepath.Join(storeDir, narinfoFile)
			narFile = filepath.Join(storeDir, narFile)
		}
		fmt.Println(narinfoFile)
		fmt.Println(narFile)
	}

	return nil
}

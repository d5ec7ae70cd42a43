package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aweris/narcache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Check peer caches for availability",
	Long:  "Probe peer caches for the store paths of this cache (or one closure) and print the hashes at least one peer holds.",
	Args:  cobra.NoArgs,
	RunE:  runCacheCheck,
}

func init() {
	cacheCmd.Flags().StringSliceP("caches", "c", []string{"https://cache.nixos.org"}, "peer cache URLs")
	cacheCmd.Flags().String("hash", "", "only check the closure of this store hash")
	cacheCmd.Flags().BoolP("checkrefs", "r", false, "check the closure's missing references instead of its members")
	cacheCmd.Flags().Duration("timeout", 10*time.Second, "per-probe timeout")
	rootCmd.AddCommand(cacheCmd)
}

func runCacheCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, err := openCache()
	if err != nil {
		return err
	}

	peers, _ := cmd.Flags().GetStringSlice("caches")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	checkRefs, _ := cmd.Flags().GetBool("checkrefs")
	hash, _ := cmd.Flags().GetString("hash")

	var hashes []string
	switch {
	case hash != "":
		closure, err := narcache.CacheClosure(ctx, c, hash)
		if err != nil {
			return err
		}
		if checkRefs {
			hashes = closure.Missing
		} else {
			hashes = closure.Order
		}
	case checkRefs:
		infos, _, _ := narcache.ScanCache(ctx, c)
		seen := make(map[string]struct{})
		for _, info := range infos {
			for _, ref := range info.References {
				refHash, err := narcache.HashFromName(ref)
				if err != nil {
					continue
				}
				if _, ok := infos[refHash]; ok {
					continue
				}
				if _, ok := seen[refHash]; ok {
					continue
				}
				seen[refHash] = struct{}{}
				hashes = append(hashes, refHash)
			}
		}
	default:
		infos, _, _ := narcache.ScanCache(ctx, c)
		for h := range infos {
			hashes = append(hashes, h)
		}
	}

	checker, err := narcache.NewChecker(peers,
		narcache.WithTimeout(timeout),
		narcache.WithPeerConcurrency(getConcurrency()))
	if err != nil {
		return err
	}

	for h, byPeer := range checker.Check(ctx, hashes) {
		if narcache.AnyPresent(byPeer) {
			fmt.Println(h)
		}
		for peer, res := range byPeer {
			if res.Status == narcache.Unknown {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: probe %s at %s: %v\n", h, peer, res.Err)
			}
		}
	}

	return nil
}

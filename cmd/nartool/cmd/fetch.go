package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aweris/narcache"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch NARs by hash",
	Long:  "Fetch narinfo+NAR pairs for the given store hashes from peer caches into this cache.",
	Args:  cobra.NoArgs,
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringSliceP("caches", "c", []string{"https://cache.nixos.org"}, "source cache URLs")
	fetchCmd.Flags().StringP("input", "i", "-", "file with store hashes, one per line (- for stdin)")
	fetchCmd.Flags().Int("retries", narcache.DefaultRetries, "retry count for failed transfers")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c, err := openCache()
	if err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	hashes, err := readHashes(input, cmd.InOrStdin())
	if err != nil {
		return err
	}

	caches, _ := cmd.Flags().GetStringSlice("caches")
	retries, _ := cmd.Flags().GetInt("retries")

	fetcher, err := narcache.NewFetcher(c, caches,
		narcache.WithConcurrency(getConcurrency()),
		narcache.WithRetries(retries))
	if err != nil {
		return err
	}

	report := fetcher.FetchAll(ctx, hashes)
	for _, item := range report.Failed {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s: %v\n", item.Name, item.Err)
	}
	return report.Err()
}

func readHashes(input string, stdin io.Reader) ([]string, error) {
	r := stdin
	if input != "-" && input != "" {
		f, err := os.Open(input)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var hashes []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		hash, err := narcache.HashFromName(line)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	return hashes, scanner.Err()
}

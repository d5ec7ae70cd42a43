package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aweris/narcache"
)

var rootCmd = &cobra.Command{
	Use:   "nartool",
	Short: "Maintain Nix NAR binary caches",
	Long:  "Tool to maintain Nix NAR caches: consistency checks, peer availability, fetching, recompression and sparse copies.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("store", "", "path to the NAR cache directory")
	rootCmd.PersistentFlags().Int("concurrency", narcache.DefaultConcurrency, "parallel workers for network operations")

	viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))
	viper.BindPFlag("concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))
}

func initConfig() {
	viper.SetEnvPrefix("NARTOOL")
	viper.AutomaticEnv()
}

func openCache() (*narcache.LocalCache, error) {
	store := viper.GetString("store")
	if store == "" {
		return nil, errors.New("no cache directory given (--store or NARTOOL_STORE)")
	}
	return narcache.OpenLocalCache(store)
}

func getConcurrency() int {
	return viper.GetInt("concurrency")
}

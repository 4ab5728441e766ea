package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/qKV/cmd/kv"
	"github.com/ValentinKolb/qKV/cmd/serve"
	"github.com/ValentinKolb/qKV/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "qkv",
		Short: "write-coalescing key-value store",
		Long: fmt.Sprintf(`qKV (v%s)

A key-value store written in Go that batches writes in a queue
and delivers them to a pluggable storage backend (memory, pebble, lru).`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of qKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("qKV v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer for rpc messages (json, gob)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package kv

import (
	"github.com/ValentinKolb/qKV/cmd/util"
	"github.com/ValentinKolb/qKV/lib/storage"
	"github.com/ValentinKolb/qKV/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcDriver  *client.RPCDriver
	rpcStorage *storage.Storage

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value operations on a qKV server",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(keysCmd)
	KeyValueCommands.AddCommand(clearCmd)
	KeyValueCommands.AddCommand(metaCmd)
	KeyValueCommands.AddCommand(flushCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient connects the RPC driver
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the KV client
	rpcDriver, err = client.NewRPCDriver(*util.GetClientConfig(), t, s)
	if err != nil {
		return err
	}
	rpcStorage = storage.New(rpcDriver, nil)
	return nil
}

// closeKVClient closes the connection of the RPC driver
func closeKVClient(_ *cobra.Command, _ []string) error {
	if rpcDriver == nil {
		return nil
	}
	return rpcDriver.Dispose()
}

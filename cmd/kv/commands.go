package kv

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/qKV/lib/driver"
	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts driver.Options
			if ttl, _ := cmd.Flags().GetInt("ttl"); ttl > 0 {
				opts = driver.Options{driver.OptTTL: ttl}
			}
			if err := rpcStorage.SetItemRaw(args[0], []byte(args[1]), opts); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			resp, ok, err := rpcStorage.GetItemRaw(key, nil)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStorage.RemoveItem(args[0], nil); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			ok, err := rpcStorage.HasItem(key, nil)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v\n", key, ok)
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys [base]",
		Short: "Lists the keys below base (all keys if omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts driver.Options
			if depth, _ := cmd.Flags().GetInt("max-depth"); depth > 0 {
				opts = driver.Options{driver.OptMaxDepth: depth}
			}
			keys, err := rpcStorage.GetKeys(strings.Join(args, ""), opts)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear [base]",
		Short: "Deletes all keys below base (all keys if omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStorage.Clear(strings.Join(args, ""), nil); err != nil {
				return err
			}
			fmt.Println("clear successfully")
			return nil
		},
	}
	metaCmd = &cobra.Command{
		Use:   "meta [key]",
		Short: "Prints the metadata of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			meta, ok, err := rpcStorage.GetMeta(key, nil)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("key=%s, found=false\n", key)
				return nil
			}
			fmt.Printf("key=%s, found=true, size=%d, mtime=%s, ttl=%s\n", key, meta.Size, meta.MTime.Format("2006-01-02 15:04:05"), meta.TTL)
			return nil
		},
	}
	flushCmd = &cobra.Command{
		Use:   "flush",
		Short: "Delivers all writes queued on the server to its backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcDriver.Flush(); err != nil {
				return err
			}
			fmt.Println("flush successfully")
			return nil
		},
	}
)

func init() {
	setCmd.Flags().Int("ttl", 0, "Seconds until the key expires (0 = never, only honoured by backends with ttl support)")
	keysCmd.Flags().Int("max-depth", 0, "Maximum number of ':' separated segments below base (0 = unlimited)")
}

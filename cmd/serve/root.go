package serve

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/qKV/cmd/util"
	"github.com/ValentinKolb/qKV/lib/storage"
	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/ValentinKolb/qKV/rpc/server"
	"github.com/ValentinKolb/qKV/rpc/transport"
	"github.com/ValentinKolb/qKV/rpc/transport/http"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("serve")

// storageVersion is the version of the data layout written by this server
const storageVersion = 1

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the qKV server",
		Long:    `Start the qKV server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is QKV_<flag> (e.g. QKV_QUEUE_BATCH_SIZE=500)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "driver"
	ServeCmd.PersistentFlags().String(key, "memory", cmdUtil.WrapString("Storage backend (memory, pebble, lru)"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("(pebble) Directory of the database"))

	key = "lru-size"
	ServeCmd.PersistentFlags().Int(key, 100_000, cmdUtil.WrapString("(lru) Maximum number of keys, the least recently used key is evicted beyond that"))

	key = "snapshot"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(memory) Snapshot file. It is loaded on start and written on shutdown. Empty disables snapshots"))

	key = "queue"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Buffer writes in a queue and deliver them to the backend in batches"))

	key = "queue-batch-size"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("Number of pending keys that triggers an immediate flush"))

	key = "queue-flush-interval"
	ServeCmd.PersistentFlags().Int(key, 1000, cmdUtil.WrapString("Delay in milliseconds between the first pending write and the flush"))

	key = "queue-max-size"
	ServeCmd.PersistentFlags().Int(key, 1000, cmdUtil.WrapString("Hard cap on pending keys, reaching it always forces a flush"))

	key = "queue-merge-updates"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("A newer write replaces the pending write of the same key. If false the first pending write wins until it is flushed"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for reading request headers and for the graceful shutdown"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Backend = common.BackendType(viper.GetString("driver"))
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.LRUSize = viper.GetInt("lru-size")
	serveCmdConfig.SnapshotFile = viper.GetString("snapshot")
	serveCmdConfig.Queue = common.QueueConfig{
		Enabled:         viper.GetBool("queue"),
		BatchSize:       viper.GetInt("queue-batch-size"),
		FlushIntervalMs: viper.GetInt("queue-flush-interval"),
		MaxQueueSize:    viper.GetInt("queue-max-size"),
		MergeUpdates:    viper.GetBool("queue-merge-updates"),
	}
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return validateConfig(serveCmdConfig)
}

// validateConfig checks the values a server cannot start with
func validateConfig(c *common.ServerConfig) error {
	switch c.Backend {
	case common.BackendMemory, common.BackendPebble, common.BackendLRU:
	default:
		return fmt.Errorf("invalid driver: %s (expected one of: memory, pebble, lru)", c.Backend)
	}
	if c.Backend == common.BackendLRU && c.LRUSize <= 0 {
		return fmt.Errorf("lru-size must be positive, got %d", c.LRUSize)
	}
	if c.Queue.Enabled && c.Queue.MaxQueueSize < c.Queue.BatchSize {
		return fmt.Errorf("queue-max-size (%d) must not be smaller than queue-batch-size (%d)", c.Queue.MaxQueueSize, c.Queue.BatchSize)
	}
	if _, err := common.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// run starts the qKV server and blocks until it receives SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	// Init logger
	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	// parse the serializer
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "http":
		t = http.NewHttpServerTransport()
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	// Create the driver stack
	b, err := openBackend(serveCmdConfig)
	if err != nil {
		return err
	}

	st := storage.New(b.driver, &storage.Options{Version: storageVersion})
	if err := st.Migrate(); err != nil {
		return firstError(err, b.close())
	}

	serv := server.NewRPCServer(*serveCmdConfig, t, s, st)

	// Serve until a signal arrives
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errC := make(chan error, 1)
	go func() { errC <- serv.Serve() }()

	select {
	case err = <-errC:
		Logger.Errorf("server stopped: %v", err)
	case <-ctx.Done():
		Logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(serveCmdConfig.TimeoutSecond)*time.Second)
		defer cancel()
		err = serv.Shutdown(shutdownCtx)
	}

	return firstError(err, b.close())
}

// firstError logs closeErr and returns err if set, closeErr otherwise
func firstError(err, closeErr error) error {
	if closeErr != nil {
		Logger.Errorf("failed to close backend: %v", closeErr)
	}
	if err != nil {
		return err
	}
	return closeErr
}

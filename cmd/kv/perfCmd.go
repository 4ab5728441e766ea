package kv

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/qKV/cmd/util"
	"github.com/ValentinKolb/qKV/lib/driver"
	"github.com/ValentinKolb/qKV/lib/driver/queue"
	"github.com/ValentinKolb/qKV/rpc/client"
	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/google/uuid"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for qKV servers",
		Long:    "Runs a set of benchmarks against a qKV server. Every run uses its own key prefix, the keys are removed afterwards.",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__perf"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")
	perfKeyPrefix = "__perf:" + uuid.NewString()

	return nil
}

// --------------------------------------------------------------------------
// Scenarios
// --------------------------------------------------------------------------

// perfScenario is a single benchmark. op is called with the index of the
// current iteration of a thread.
type perfScenario struct {
	name    string
	prefill bool // set all keys before the benchmark
	op      func(d driver.Driver, key string, i int) error
}

// perfResult is the outcome of a scenario
type perfResult struct {
	bench   testing.BenchmarkResult
	latency gometrics.Timer
	errors  gometrics.Counter
}

func perfScenarios() []perfScenario {
	value := []byte("test")
	largeValue := make([]byte, perfLargeValueSizeKB*1024)

	return []perfScenario{
		{name: "set", op: func(d driver.Driver, key string, _ int) error {
			return d.Set(key, value, nil)
		}},
		{name: "set-large", op: func(d driver.Driver, key string, _ int) error {
			return d.Set(key, largeValue, nil)
		}},
		{name: "get", prefill: true, op: func(d driver.Driver, key string, _ int) error {
			_, _, err := d.Get(key, nil)
			return err
		}},
		{name: "delete", prefill: true, op: func(d driver.Driver, key string, _ int) error {
			return d.Remove(key, nil)
		}},
		{name: "has", prefill: true, op: func(d driver.Driver, key string, _ int) error {
			_, err := d.Has(key, nil)
			return err
		}},
		{name: "has-not", op: func(d driver.Driver, key string, _ int) error {
			_, err := d.Has(key+":missing", nil)
			return err
		}},
		{name: "mixed", prefill: true, op: func(d driver.Driver, key string, i int) error {
			var err error
			switch i % 4 {
			case 0: // set
				err = d.Set(key, value, nil)
			case 1: // get
				_, _, err = d.Get(key, nil)
			case 2: // delete
				err = d.Remove(key, nil)
			case 3: // has
				_, err = d.Has(key, nil)
			}
			return err
		}},
	}
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for qKV servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Remote driver: %s\n", rpcDriver.Name())
	fmt.Println()

	fmt.Println("staring tests...")

	registry := gometrics.NewRegistry()
	results := make(map[string]perfResult)

	for _, scenario := range perfScenarios() {
		if shouldSkip(scenario.name) {
			printSkipped(scenario.name)
			continue
		}
		results[scenario.name] = runScenario(registry, rpcDriver, scenario)
		printResult(scenario.name, results[scenario.name])
	}

	// writes through a local queue in front of the server
	if !shouldSkip("queued-set") {
		result, err := runQueuedSet(registry)
		if err != nil {
			return err
		}
		results["queued-set"] = result
		printResult("queued-set", result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runScenario benchmarks scenario against d and removes its keys afterwards
func runScenario(registry gometrics.Registry, d driver.Driver, scenario perfScenario) perfResult {
	result := perfResult{
		latency: gometrics.GetOrRegisterTimer(scenario.name+".latency", registry),
		errors:  gometrics.GetOrRegisterCounter(scenario.name+".errors", registry),
	}

	// prepare keys
	getKey, iter := getKeys(scenario.name)
	if scenario.prefill {
		iter(func(k string) {
			if err := d.Set(k, []byte("test"), nil); err != nil {
				result.errors.Inc(1)
			}
		})
	}

	var threadIDs atomic.Int64
	result.bench = testing.Benchmark(func(b *testing.B) {
		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			// every thread starts at another key
			counter := int(threadIDs.Add(1)) * perfKeySpread / perfNumThreads
			for pb.Next() {
				start := time.Now()
				if err := scenario.op(d, getKey(counter), counter); err != nil {
					result.errors.Inc(1)
				}
				result.latency.UpdateSince(start)
				counter++
			}
		})
	})

	// cleanup
	iter(func(k string) {
		_ = d.Remove(k, nil)
	})
	return result
}

// runQueuedSet benchmarks sets through a local queue with its own connection.
// The time of the final flush is part of the result.
func runQueuedSet(registry gometrics.Registry) (perfResult, error) {
	s, err := util.GetSerializer()
	if err != nil {
		return perfResult{}, err
	}
	t, err := util.GetTransport()
	if err != nil {
		return perfResult{}, err
	}
	remote, err := client.NewRPCDriver(*util.GetClientConfig(), t, s)
	if err != nil {
		return perfResult{}, err
	}

	q := queue.New(remote, nil)
	defer q.Dispose()

	result := runScenario(registry, q, perfScenario{
		name: "queued-set",
		op: func(d driver.Driver, key string, _ int) error {
			return d.Set(key, []byte("test"), nil)
		},
	})
	if err := q.Flush(); err != nil {
		result.errors.Inc(1)
	}
	return result, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s:%s:%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

func printSkipped(test string) {
	fmt.Printf("%-20sskipped\n", test)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.bench.N == 0 {
		printSkipped(test)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	latency := result.latency.Snapshot()
	ps := latency.Percentiles([]float64{0.5, 0.99})

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p99=%s\terrors=%d\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]), result.errors.Count())
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P99", "Errors",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Sort tests for a stable output
	tests := make([]string, 0, len(results))
	for test := range results {
		tests = append(tests, test)
	}
	sort.Strings(tests)

	// Write test results
	for _, test := range tests {
		result := results[test]
		nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1)
		opsPerSec := 1.0 / (nsPerOp / 1e9)
		ps := result.latency.Snapshot().Percentiles([]float64{0.5, 0.99})

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			time.Duration(ps[0]).String(),
			time.Duration(ps[1]).String(),
			strconv.FormatInt(result.errors.Count(), 10),
			strings.Join(config.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			strconv.Itoa(config.ConnectionsPerEndpoint),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}

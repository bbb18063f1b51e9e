package main

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/skshohagmiah/fawldb/internal/db"
	"github.com/skshohagmiah/fawldb/pkg/client"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Load a running server with inserts and queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		workers, _ := cmd.Flags().GetInt("workers")
		duration, _ := cmd.Flags().GetDuration("duration")
		collection, _ := cmd.Flags().GetString("collection")

		c, err := client.New(addr)
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer c.Close()

		return runBench(cmd.OutOrStdout(), c, collection, workers, duration)
	},
}

func init() {
	benchCmd.Flags().String("addr", "localhost:6390", "server address")
	benchCmd.Flags().Int("workers", 32, "concurrent clients")
	benchCmd.Flags().Duration("duration", 10*time.Second, "length of each phase")
	benchCmd.Flags().String("collection", "bench", "collection to write into")
	rootCmd.AddCommand(benchCmd)
}

func runBench(out io.Writer, c *client.Client, collection string, workers int, duration time.Duration) error {
	fmt.Fprintf(out, "Insert (%d workers, %v)...\n", workers, duration)
	writes := measure(workers, duration, func(worker, i int) error {
		_, err := c.Insert(collection, client.Document{
			"worker": worker,
			"seq":    i,
			"name":   fmt.Sprintf("user-%d-%d", worker, i),
		})
		return err
	})
	report(out, writes, duration)

	fmt.Fprintf(out, "Find (%d workers, %v)...\n", workers, duration)
	reads := measure(workers, duration, func(worker, i int) error {
		_, err := c.Find(collection, db.FindOptions{
			Filters: []db.Query{{Field: "worker", Operator: "=", Value: worker}},
			Sort:    &db.SortOption{Field: "seq", Direction: "desc"},
			Limit:   10,
		})
		return err
	})
	report(out, reads, duration)
	return nil
}

// measure runs op from each worker until duration elapses and returns the
// number of calls that succeeded.
func measure(workers int, duration time.Duration, op func(worker, i int) error) int64 {
	var total int64
	var wg sync.WaitGroup
	end := time.Now().Add(duration)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			local := 0
			for i := 0; time.Now().Before(end); i++ {
				if err := op(worker, i); err == nil {
					local++
				}
			}
			atomic.AddInt64(&total, int64(local))
		}(w)
	}

	wg.Wait()
	return total
}

func report(out io.Writer, ops int64, duration time.Duration) {
	fmt.Fprintf(out, "  ops: %s\n", formatNumber(ops))
	fmt.Fprintf(out, "  throughput: %s ops/sec\n", formatNumber(int64(float64(ops)/duration.Seconds())))
}

func formatNumber(n int64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.2fM", float64(n)/1000000)
	} else if n >= 1000 {
		return fmt.Sprintf("%.2fK", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

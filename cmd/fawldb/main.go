package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/skshohagmiah/fawldb/internal/config"
	"github.com/skshohagmiah/fawldb/internal/db"
	"github.com/skshohagmiah/fawldb/internal/logger"
	"github.com/skshohagmiah/fawldb/internal/server"
	"github.com/skshohagmiah/fawldb/internal/storage"
)

var version = "dev"

var (
	configPath string
	v          = config.New()
)

var rootCmd = &cobra.Command{
	Use:           "fawldb",
	Short:         "Embedded JSON document store",
	Long:          `fawldb stores JSON documents on disk and answers filter, sort, fuzzy search and pagination queries.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the binary protocol and the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logger.Component("main")

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		metrics := server.NewMetrics(prometheus.DefaultRegisterer)

		srv, err := server.NewServer(store, cfg.Server.Addr, cfg.Server.Workers, metrics)
		if err != nil {
			return err
		}
		httpServer := server.NewHTTPServer(store, cfg.Server.HTTPAddr, metrics, nil)

		errCh := make(chan error, 2)
		go func() { errCh <- srv.Start() }()
		go func() { errCh <- httpServer.Start() }()

		log.Info("fawldb started",
			"version", version,
			"data_dir", cfg.DataDir,
			"backend", cfg.Backend,
			"addr", cfg.Server.Addr,
			"http_addr", cfg.Server.HTTPAddr,
		)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigChan:
			log.Info("shutting down", "signal", sig.String())
		case err := <-errCh:
			if err != nil {
				log.Error("server error", "error", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Warn("http shutdown", "error", err)
		}
		return srv.Stop()
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert <collection> <json>",
	Short: "Insert a document and print its id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var doc db.Document
		if err := json.Unmarshal([]byte(args[1]), &doc); err != nil {
			return fmt.Errorf("invalid document JSON: %w", err)
		}

		return withCollection(args[0], func(c *db.Collection) error {
			id, err := c.Insert(doc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <collection> <id>",
	Short: "Print one document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", args[1])
		}

		return withCollection(args[0], func(c *db.Collection) error {
			doc, err := c.Get(id)
			if err != nil {
				return err
			}
			return printJSON(cmd, doc)
		})
	},
}

var findCmd = &cobra.Command{
	Use:   "find <collection>",
	Short: "Query a collection",
	Example: `  fawldb find users --where age,>,28 --order age:desc --limit 10
  fawldb find users --search Alise --in name`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := findOptionsFromFlags(cmd)
		if err != nil {
			return err
		}

		return withCollection(args[0], func(c *db.Collection) error {
			results, err := c.Find(opts)
			if err != nil {
				return err
			}
			return printJSON(cmd, results)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <collection> <id>",
	Short: "Delete one document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", args[1])
		}

		return withCollection(args[0], func(c *db.Collection) error {
			return c.Delete(id)
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (yaml, json or toml)")
	flags.String("data", "", "data directory (default ./store)")
	flags.String("backend", "", "storage backend: disk or badger")
	_ = v.BindPFlag("data_dir", flags.Lookup("data"))
	_ = v.BindPFlag("backend", flags.Lookup("backend"))

	findCmd.Flags().StringArray("where", nil, "filter as field,operator,value (repeatable)")
	findCmd.Flags().String("order", "", "sort as field:asc or field:desc")
	findCmd.Flags().String("search", "", "fuzzy search keyword")
	findCmd.Flags().StringSlice("in", nil, "fields searched by --search")
	findCmd.Flags().Int("skip", 0, "documents to skip")
	findCmd.Flags().Int("limit", 0, "maximum documents to return (0 = all)")

	rootCmd.AddCommand(serveCmd, insertCmd, getCmd, findCmd, deleteCmd, versionCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return cfg, nil
}

func openStore(cfg *config.Config) (*db.DocStore, error) {
	return db.New(storage.Options{
		Backend:   cfg.Backend,
		Path:      cfg.DataDir,
		CacheSize: cfg.CacheSize,
	})
}

// withCollection opens the configured store for a single command
func withCollection(name string, fn func(*db.Collection) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	c, err := store.Collection(name)
	if err != nil {
		return err
	}
	return fn(c)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

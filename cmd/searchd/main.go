package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/forumkit/searchd/internal/client"
	"github.com/forumkit/searchd/internal/config"
	"github.com/forumkit/searchd/internal/log"
	"github.com/forumkit/searchd/internal/search"
	"github.com/forumkit/searchd/internal/server"
	"github.com/forumkit/searchd/internal/store"
	"github.com/forumkit/searchd/internal/watcher"
	"github.com/spf13/cobra"
)

var (
	Version   string = "dev"
	buildTime string = "unknown"
	commit    string = "unknown"

	configFile string
	debug      bool

	listenAddr string
	storePath  string
	indexDir   string
	noWatch    bool

	searchType string
	searchJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "searchd",
	Short: "Community platform search service",
	Long:  "Keeps per-type Bleve indices synchronized with the primary entity store and serves relevance-ranked search with primary-store fallback",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the search service",
	RunE:  runServe,
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search a running service",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Trigger a full reindex (async)",
	RunE:  runReindex,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE:  runStats,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		log.Infof("searchd version %s", Version)
		log.Infof("  Build time: %s", buildTime)
		log.Infof("  Commit: %s", commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: ~/.config/searchd/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address")
	serveCmd.Flags().StringVar(&storePath, "store", "", "primary store database path")
	serveCmd.Flags().StringVar(&indexDir, "index-dir", "", "search index directory")
	serveCmd.Flags().BoolVar(&noWatch, "no-watch", false, "disable config hot reload")

	searchCmd.Flags().StringVarP(&searchType, "type", "t", "", "search one entity type (users, posts, post-titles, post-contents, comments, categories, tags)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results in JSON format")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

func buildConfig() (*config.Config, string) {
	cfgPath := configFile
	if cfgPath == "" {
		cfgPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if storePath != "" {
		cfg.StorePath = storePath
	}
	if indexDir != "" {
		cfg.Search.IndexDir = indexDir
	}
	if debug {
		cfg.Debug = true
	}

	if cfg.Debug {
		log.SetDebug(true)
	}

	return cfg, cfgPath
}

// statsProvider joins the two count sources behind the stats endpoint.
type statsProvider struct {
	backend *search.Backend
	store   *store.Store
}

func (s statsProvider) DocCounts() map[string]uint64 { return s.backend.DocCounts() }
func (s statsProvider) Counts() (map[string]int, error) { return s.store.Counts() }

func runServe(cmd *cobra.Command, args []string) error {
	cfg, cfgPath := buildConfig()

	db, err := store.New(cfg.StorePath)
	if err != nil {
		return err
	}
	defer db.Close()

	backend := search.NewBackend(cfg.Search)
	backend.Open()
	defer backend.Close()

	settings := search.NewSettings(cfg.Search)
	publisher := search.NewPublisher(backend, settings, db)
	db.SetListener(publisher)

	service := search.NewService(backend, settings, db)
	reindexer := search.NewReindexer(backend, db, cfg.Search.ReindexBatchSize)

	if cfg.Search.Enabled && cfg.Search.ReindexOnStartup {
		go func() {
			log.Infof("building index from primary store...")
			if err := reindexer.ReindexAll(); err != nil {
				log.Errorf("startup reindex failed: %v", err)
			}
		}()
	}

	var w *watcher.Watcher
	if !noWatch {
		w, err = watcher.New(cfgPath, func() {
			fresh, err := config.Load(cfgPath)
			if err != nil {
				log.Errorf("config reload failed: %v", err)
				return
			}
			settings.Apply(fresh.Search)
			log.Infof("config reloaded: enabled=%v max_results=%d snippet_length=%d",
				fresh.Search.Enabled, fresh.Search.MaxResults, fresh.Search.SnippetLength)
		})
		if err != nil {
			log.Errorf("failed to create config watcher: %v", err)
			log.Infof("continuing without config hot reload")
		} else if err := w.Start(); err != nil {
			log.Errorf("failed to start config watcher: %v", err)
			log.Infof("continuing without config hot reload")
		}
	}

	httpServer := server.NewHTTP(server.Options{
		Addr:      cfg.ListenAddr,
		Search:    service,
		Reindexer: reindexer,
		Stats:     statsProvider{backend: backend, store: db},
		Username:  cfg.AuthUsername,
		Password:  cfg.AuthPassword,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		log.Infof("received shutdown signal")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if w != nil && w.IsRunning() {
			w.Stop()
		}
		return httpServer.Shutdown(ctx)
	}
}

var (
	typeStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	subTextStyle = lipgloss.NewStyle().Faint(true)
	modeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, _ := buildConfig()
	c := client.New(cfg.Client)

	if searchType != "" {
		resp, err := c.SearchTyped(searchType, args[0])
		if err != nil {
			return err
		}
		if searchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		printMode(resp.Mode)
		for _, u := range resp.Users {
			fmt.Printf("%s %s\n", typeStyle.Render("[user]"), u.Username)
		}
		for _, p := range resp.Posts {
			fmt.Printf("%s %s %s\n", typeStyle.Render("[post]"), p.Title, subTextStyle.Render(p.Category))
		}
		for _, cm := range resp.Comments {
			fmt.Printf("%s %s %s\n", typeStyle.Render("[comment]"), cm.Content, subTextStyle.Render(cm.Author))
		}
		for _, cat := range resp.Categories {
			fmt.Printf("%s %s\n", typeStyle.Render("[category]"), cat.Name)
		}
		for _, t := range resp.Tags {
			fmt.Printf("%s %s\n", typeStyle.Render("[tag]"), t.Name)
		}
		return nil
	}

	resp, err := c.GlobalSearch(args[0])
	if err != nil {
		return err
	}
	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	printMode(resp.Mode)
	for i, r := range resp.Results {
		line := fmt.Sprintf("%d. %s %s", i+1, typeStyle.Render("["+r.Type+"]"), r.Text)
		if r.SubText != "" {
			line += " " + subTextStyle.Render(r.SubText)
		}
		fmt.Println(line)
		if r.Extra != "" {
			fmt.Printf("   %s\n", subTextStyle.Render(r.Extra))
		}
	}
	return nil
}

func printMode(mode search.Mode) {
	if mode.Fallback {
		fmt.Println(modeStyle.Render("(fallback: " + mode.Reason + ")"))
	}
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg, _ := buildConfig()
	status, err := client.New(cfg.Client).Reindex()
	if err != nil {
		return err
	}
	log.Infof("%s", status)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, _ := buildConfig()
	stats, err := client.New(cfg.Client).Stats()
	if err != nil {
		return err
	}

	log.Infof("Index Statistics:")
	for _, name := range []string{"users", "posts", "comments", "categories", "tags"} {
		log.Infof("  %-10s indexed=%-6d stored=%d", name, stats.Indexed[name], stats.Stored[name])
	}
	if stats.Reindexing {
		log.Infof("  reindex in progress")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

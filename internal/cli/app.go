package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/refreshd/pkg/cache"
	"github.com/matzehuels/refreshd/pkg/config"
	"github.com/matzehuels/refreshd/pkg/extract"
	"github.com/matzehuels/refreshd/pkg/integrations/github"
	"github.com/matzehuels/refreshd/pkg/refresh"
	mongostore "github.com/matzehuels/refreshd/pkg/store/mongo"
	sqlitestore "github.com/matzehuels/refreshd/pkg/store/sqlite"
)

const disconnectTimeout = 5 * time.Second

// bookmarkStore is what the engine needs from a store backend.
type bookmarkStore interface {
	refresh.Store
	refresh.Catalog
	io.Closer
}

// mongoStore adapts the context-taking Close of the mongo store.
type mongoStore struct {
	*mongostore.Store
}

func (s mongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return s.Store.Close(ctx)
}

// loadConfig reads --config, falling back to ./refreshd.toml and then to
// the built-in defaults.
func (c *CLI) loadConfig() (config.Config, error) {
	path := c.configPath
	if path == "" {
		path = defaultConfigFile
	}
	return config.Load(path)
}

func openStore(ctx context.Context, cfg config.Config, logger *log.Logger) (bookmarkStore, error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		s, err := mongostore.Open(ctx, cfg.Store.DSN, cfg.Store.MongoDatabase, logger)
		if err != nil {
			return nil, err
		}
		return mongoStore{s}, nil
	default:
		s, err := sqlitestore.Open(ctx, cfg.Store.DSN, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// openCache builds the response cache. The file backend defaults to the
// XDG cache directory.
func openCache(ctx context.Context, cfg config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir := cfg.Cache.Dir
	if dir == "" && cfg.Cache.Backend == cache.BackendFile {
		d, err := cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		dir = d
	}
	return cache.Open(ctx, cfg.Cache.Backend, dir, cfg.Cache.RedisURL)
}

// newGitHub builds the enrichment client. Cache keys are namespaced so a
// shared Redis can hold other applications' data.
func newGitHub(cfg config.Config, c cache.Cache) *github.Client {
	opts := cfg.GitHubOptions()
	opts.Cache = cache.NewScoped(c, appName+":")
	return github.NewClient(opts)
}

// runtime is the wired refresh stack for one command invocation.
type runtime struct {
	store     bookmarkStore
	cache     cache.Cache
	scheduler *refresh.Scheduler
}

func (r *runtime) Close() error {
	cerr := r.cache.Close()
	if err := r.store.Close(); err != nil {
		return err
	}
	return cerr
}

func newRuntime(ctx context.Context, cfg config.Config, logger *log.Logger, noCache bool) (*runtime, error) {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	rc, err := openCache(ctx, cfg, noCache)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open %s cache: %w", cfg.Cache.Backend, err)
	}

	policy := cfg.Policy()
	engine := refresh.NewEngine(
		extract.New(cfg.ExtractOptions(), logger),
		newGitHub(cfg, rc),
		st, policy, logger,
		refresh.WithCatalog(st),
	)
	sched := refresh.NewScheduler(refresh.NewSelector(st, policy), engine, policy, cfg.SchedulerOptions(), logger)
	return &runtime{store: st, cache: rc, scheduler: sched}, nil
}

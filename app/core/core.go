package core

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/corra-ai/corra-ai/app/core/srv"
	"github.com/corra-ai/corra-ai/app/store"
	"github.com/corra-ai/corra-ai/app/store/sqlstore"
	"github.com/corra-ai/corra-ai/pkg/cache"
	"github.com/corra-ai/corra-ai/pkg/scope"
	"github.com/corra-ai/corra-ai/pkg/types"
)

type Core struct {
	cfg CoreConfig
	srv *srv.Srv

	stores     func() *sqlstore.Provider
	httpClient *http.Client

	blockCache *cache.BlockListService
	resolver   *scope.Resolver
	metrics    *Metrics
}

func MustSetupCore(cfg CoreConfig) *Core {
	{
		var writer io.Writer = os.Stdout
		if cfg.Log.Path != "" {
			writer = &lumberjack.Logger{
				Filename:   cfg.Log.Path,
				MaxSize:    500, // megabytes
				MaxBackups: 3,
				MaxAge:     28,   //days
				Compress:   true, // disabled by default
			}
		}
		l := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level: cfg.Log.SlogLevel(),
		}))
		slog.SetDefault(l)
	}

	// 向量维度以 knowledge 配置为准，需与建表的 vector(D) 一致
	if cfg.AI.Dimension <= 0 {
		cfg.AI.Dimension = cfg.Knowledge.EmbeddingDimension
	}

	core := &Core{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Second * 3},
		metrics:    NewMetrics("corra", "core"),
		resolver:   scope.NewResolver(cfg.Knowledge.EquivalentOwners),
	}

	// setup store
	setupSqlStore(core)

	core.blockCache = cache.NewBlockListService(
		setupCache(cfg.Redis),
		time.Duration(cfg.Knowledge.CacheTTLSeconds)*time.Second,
	)

	core.srv = srv.SetupSrvs(srv.ApplyAI(cfg.AI))

	return core
}

func setupSqlStore(core *Core) {
	core.stores = sqlstore.MustSetup(core.cfg.Postgres)
	slog.Info("setupSqlStore done")
}

// InstallStore 建表与扩展初始化，install 子命令调用
func (s *Core) InstallStore() error {
	return s.stores().Install()
}

// setupCache redis 未配置时退化为进程内缓存
func setupCache(cfg RedisConfig) types.Cache {
	if cfg.Addr == "" {
		return cache.NewMemoryCache()
	}
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return cache.NewRedisCache(cli)
}

func (s *Core) Cfg() CoreConfig {
	return s.cfg
}

func (s *Core) Srv() *srv.Srv {
	return s.srv
}

func (s *Core) Store() store.Store {
	return s.stores()
}

func (s *Core) BlockCache() *cache.BlockListService {
	return s.blockCache
}

func (s *Core) ScopeResolver() *scope.Resolver {
	return s.resolver
}

func (s *Core) Metrics() *Metrics {
	return s.metrics
}

func (s *Core) HttpClient() *http.Client {
	return s.httpClient
}

package core

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/corra-ai/corra-ai/app/core/srv"
)

func MustLoadBaseConfig(path string) CoreConfig {
	if path == "" {
		return LoadBaseConfigFromENV()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	conf := &CoreConfig{}
	if err = toml.Unmarshal(raw, conf); err != nil {
		panic(err)
	}
	conf.Knowledge.ApplyDefaults()

	return *conf
}

func LoadBaseConfigFromENV() CoreConfig {
	var c CoreConfig
	c.FromENV()
	c.Knowledge.ApplyDefaults()
	return c
}

type CoreConfig struct {
	Addr     string      `toml:"addr"`
	Log      Log         `toml:"log"`
	Postgres PGConfig    `toml:"postgres"`
	Redis    RedisConfig `toml:"redis"`

	AI        srv.AIConfig    `toml:"ai"`
	Knowledge KnowledgeConfig `toml:"knowledge"`
}

// KnowledgeConfig 摄取与检索的行为参数
type KnowledgeConfig struct {
	ChunkSize          int     `toml:"chunk_size"`           // 文本切片目标长度，默认 1000
	ChunkOverlap       int     `toml:"chunk_overlap"`        // 切片重叠，默认 200
	RowsPerRange       int     `toml:"rows_per_range"`       // 行区间兜底块行数，默认 50
	MaxContentLength   int     `toml:"max_content_length"`   // 归一化内容上限，默认 100000 字符
	SimilarityThresh   float64 `toml:"similarity_threshold"` // 相似度阈值 τ，默认 0.2
	MaxResults         int     `toml:"max_results"`          // 单次检索返回上限 K，默认 10
	TokenBudget        int     `toml:"token_budget"`         // 上下文拼装默认预算，默认 4000
	EmbeddingDimension int     `toml:"embedding_dimension"`  // 向量维度，默认 384，需与建表一致
	ProcessConcurrency int     `toml:"process_concurrency"`  // 后台摄取 worker 数，默认 4
	CacheTTLSeconds    int     `toml:"cache_ttl_seconds"`    // 作用域块缓存 TTL，默认 300

	// EquivalentOwners 互相可见的 owner id 等价组
	EquivalentOwners [][]string `toml:"equivalent_owners"`
}

func (k *KnowledgeConfig) ApplyDefaults() {
	if k.ChunkSize <= 0 {
		k.ChunkSize = 1000
	}
	if k.ChunkOverlap <= 0 {
		k.ChunkOverlap = 200
	}
	if k.RowsPerRange <= 0 {
		k.RowsPerRange = 50
	}
	if k.MaxContentLength <= 0 {
		k.MaxContentLength = 100000
	}
	if k.SimilarityThresh <= 0 {
		k.SimilarityThresh = 0.2
	}
	if k.MaxResults <= 0 {
		k.MaxResults = 10
	}
	if k.TokenBudget <= 0 {
		k.TokenBudget = 4000
	}
	if k.EmbeddingDimension <= 0 {
		k.EmbeddingDimension = 384
	}
	if k.ProcessConcurrency <= 0 {
		k.ProcessConcurrency = 4
	}
	if k.CacheTTLSeconds <= 0 {
		k.CacheTTLSeconds = 300
	}
}

func (c *CoreConfig) FromENV() {
	c.Addr = os.Getenv("CORRA_API_SERVICE_ADDRESS")
	c.Log.FromENV()
	c.Postgres.FromENV()
	c.Redis.FromENV()
	c.AI.FromENV()
}

type PGConfig struct {
	DSN string `toml:"dsn"`
}

func (m *PGConfig) FromENV() {
	m.DSN = os.Getenv("CORRA_API_POSTGRESQL_DSN")
}

func (c PGConfig) FormatDSN() string {
	return c.DSN
}

type RedisConfig struct {
	Addr     string `toml:"addr"`     // Redis地址，格式: host:port
	Password string `toml:"password"` // Redis密码
	DB       int    `toml:"db"`       // Redis数据库索引 (0-15)
}

func (r *RedisConfig) FromENV() {
	r.Addr = os.Getenv("CORRA_REDIS_ADDR")
	r.Password = os.Getenv("CORRA_REDIS_PASSWORD")
	if dbStr := os.Getenv("CORRA_REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			r.DB = db
		}
	}
}

type Log struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

func (l *Log) FromENV() {
	l.Level = os.Getenv("CORRA_API_LOG_LEVEL")
	l.Path = os.Getenv("CORRA_API_LOG_PATH")
}

func (l *Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

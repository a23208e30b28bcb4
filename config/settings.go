package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/rushteam/recengine/cache"
	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/hybrid"
	"github.com/rushteam/recengine/recall"
)

// EnvPrefix 是环境变量前缀：RECENGINE_HYBRID_ALPHA → hybrid_alpha，
// 嵌套字段用双下划线：RECENGINE_REDIS__ADDR → redis.addr。
const EnvPrefix = "RECENGINE_"

// ConfigPathEnvVar 可覆盖配置文件路径。
const ConfigPathEnvVar = "RECENGINE_CONFIG"

// DefaultConfigPaths 按顺序查找，使用第一个存在的文件。
var DefaultConfigPaths = []string{
	"recengine.yaml",
	"recengine.yml",
	"/etc/recengine/recengine.yaml",
}

// Settings 是进程级静态配置，启动时加载一次。
type Settings struct {
	CollaborativeKNeighbors int     `koanf:"collaborative_k_neighbors"`
	CollaborativeMetric     string  `koanf:"collaborative_metric"`
	CFMode                  string  `koanf:"cf_mode"`
	ContentTopN             int     `koanf:"content_top_n"`
	HybridAlpha             float64 `koanf:"hybrid_alpha"`
	HybridPolicy            string  `koanf:"hybrid_policy"`
	MinInteractions         int     `koanf:"min_interactions"`
	DiversityMaxPerCategory int     `koanf:"diversity_max_per_category"`

	FeatureCacheTTL  time.Duration `koanf:"feature_cache_ttl"`
	CacheTTL         time.Duration `koanf:"cache_ttl"`
	FeatureDecayDays float64       `koanf:"feature_decay_days"`

	// InteractionWeights 覆盖各交互类型的默认权重（view/click/rating/purchase）
	InteractionWeights map[string]float64 `koanf:"interaction_weights"`

	Cache    CacheSettings    `koanf:"cache"`
	Redis    RedisSettings    `koanf:"redis"`
	Database DatabaseSettings `koanf:"database"`
	Rules    RulesSettings    `koanf:"rules"`
	Log      LogSettings      `koanf:"log"`
}

type CacheSettings struct {
	// Backend: memory / redis
	Backend      string `koanf:"backend"`
	ItemPolicy   string `koanf:"item_policy"`
	SingleFlight bool   `koanf:"single_flight"`
}

type RedisSettings struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	// Breaker 为 true 时用熔断器包装 Redis 后端
	Breaker bool `koanf:"breaker"`
}

type DatabaseSettings struct {
	// Path 是 SQLite 实体库路径
	Path string `koanf:"path"`
}

type RulesSettings struct {
	// File 非空时从 YAML/JSON 文件加载规则集，否则使用内置规则
	File string `koanf:"file"`
}

type LogSettings struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // console / json
}

// DefaultSettings 返回默认配置。
func DefaultSettings() *Settings {
	w := core.DefaultInteractionWeights()
	weights := make(map[string]float64, len(w))
	for t, v := range w {
		weights[string(t)] = v
	}
	return &Settings{
		CollaborativeKNeighbors: 20,
		CollaborativeMetric:     string(recall.Cosine),
		CFMode:                  string(recall.CFModeUser),
		ContentTopN:             10,
		HybridAlpha:             0.6,
		HybridPolicy:            string(hybrid.Weighted),
		MinInteractions:         5,
		DiversityMaxPerCategory: 3,
		FeatureCacheTTL:         time.Hour,
		CacheTTL:                time.Hour,
		FeatureDecayDays:        30,
		InteractionWeights:      weights,
		Cache: CacheSettings{
			Backend:    "memory",
			ItemPolicy: string(cache.ItemPolicyAll),
		},
		Redis:    RedisSettings{Addr: "127.0.0.1:6379"},
		Database: DatabaseSettings{Path: "recengine.db"},
		Log:      LogSettings{Level: "info", Format: "console"},
	}
}

// Load 按 默认值 → 配置文件 → 环境变量 的顺序分层加载配置。
// path 为空时依次查找 RECENGINE_CONFIG 与 DefaultConfigPaths，找不到文件不报错。
func Load(path string) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultSettings(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeConfiguration, err, "config: load file %s", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	s := &Settings{}
	if err := k.Unmarshal("", s); err != nil {
		return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeConfiguration, err, "config: unmarshal")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc 把环境变量名转换为 koanf 路径；RECENGINE_CONFIG 不参与映射。
func envTransformFunc(key string) string {
	if key == ConfigPathEnvVar {
		return ""
	}
	key = strings.TrimPrefix(key, EnvPrefix)
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, "__", ".")
}

// Validate 校验配置，非法值返回配置错误。
func (s *Settings) Validate() error {
	bad := func(format string, args ...any) error {
		return core.NewConfigurationError(core.ModuleConfig, "config: "+format, args...)
	}
	switch {
	case s.CollaborativeKNeighbors <= 0:
		return bad("collaborative_k_neighbors must be positive, got %d", s.CollaborativeKNeighbors)
	case s.ContentTopN <= 0:
		return bad("content_top_n must be positive, got %d", s.ContentTopN)
	case s.HybridAlpha < 0 || s.HybridAlpha > 1:
		return bad("hybrid_alpha %v out of [0,1]", s.HybridAlpha)
	case s.MinInteractions <= 0:
		return bad("min_interactions must be positive, got %d", s.MinInteractions)
	case s.DiversityMaxPerCategory <= 0:
		return bad("diversity_max_per_category must be positive, got %d", s.DiversityMaxPerCategory)
	case s.FeatureCacheTTL < 0 || s.CacheTTL < 0:
		return bad("ttl must not be negative")
	case s.FeatureDecayDays <= 0:
		return bad("feature_decay_days must be positive, got %v", s.FeatureDecayDays)
	}
	if _, err := recall.ParseSimilarityMetric(s.CollaborativeMetric); err != nil {
		return err
	}
	if _, err := recall.ParseCFMode(s.CFMode); err != nil {
		return err
	}
	if _, err := hybrid.ParsePolicy(s.HybridPolicy); err != nil {
		return err
	}
	if _, err := cache.ParseItemPolicy(s.Cache.ItemPolicy); err != nil {
		return err
	}
	if _, err := s.Weights(); err != nil {
		return err
	}
	switch s.Cache.Backend {
	case "memory":
	case "redis":
		if s.Redis.Addr == "" {
			return bad("redis.addr is required for the redis cache backend")
		}
	default:
		return bad("unknown cache backend %q", s.Cache.Backend)
	}
	if _, err := zerolog.ParseLevel(s.Log.Level); err != nil {
		return bad("invalid log level %q", s.Log.Level)
	}
	return nil
}

// Weights 返回合并默认值后的交互权重，未知类型或非正权重返回配置错误。
func (s *Settings) Weights() (core.InteractionWeights, error) {
	w := core.DefaultInteractionWeights()
	for name, v := range s.InteractionWeights {
		t, err := core.ParseInteractionType(name)
		if err != nil {
			return nil, core.NewConfigurationError(core.ModuleConfig, "config: interaction_weights: unknown type %q", name)
		}
		if v <= 0 {
			return nil, core.NewConfigurationError(core.ModuleConfig, "config: interaction_weights.%s must be positive", name)
		}
		w[t] = v
	}
	return w, nil
}

// Logger 按配置构建 zerolog 日志：console 为人类可读格式，json 为结构化输出。
func (s *Settings) Logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(s.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var l zerolog.Logger
	if s.Log.Format == "json" {
		l = zerolog.New(os.Stderr)
	} else {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return l.Level(level).With().Timestamp().Logger()
}

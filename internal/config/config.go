// config предоставляет структуру конфигурации ingest-service
// и функции загрузки из YAML/ENV с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/models"
)

// Драйверы хранилища записей.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverSQLite   = "sqlite"
)

// Config — корневая конфигурация сервиса.
// Приоритет источников:
//  1. явный путь, переданный в MustLoad/Load;
//  2. переменная окружения CONFIG_PATH;
//  3. файл ./local.yaml из рабочей директории;
//  4. переменные окружения.
type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	DB       DBConfig       `yaml:"db"`
	Cache    CacheConfig    `yaml:"cache"`
	S3       S3Config       `yaml:"s3"`
	Media    MediaConfig    `yaml:"media"`
	LLM      LLMConfig      `yaml:"llm"`
	Auth     AuthConfig     `yaml:"auth"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	// Sources — источники лент в порядке обработки.
	Sources  []models.SourceConfig `yaml:"sources"`
	Timeouts TimeoutConfig         `yaml:"timeouts"`
	Limits   LimitsConfig          `yaml:"limits"`
}

// HTTPConfig — сетевые настройки HTTP-сервера (admin API, метрики, пробы).
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"50083"`
}

// GRPCConfig — сетевые настройки gRPC health-сервера.
type GRPCConfig struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"50055"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// Addr возвращает адрес в формате host:port.
func (g GRPCConfig) Addr() string {
	return net.JoinHostPort(g.Host, g.Port)
}

// DBConfig — настройки хранилища записей.
type DBConfig struct {
	// Driver — postgres | mongo | sqlite.
	Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	// URL — DSN postgres, URI mongodb или путь к файлу sqlite.
	URL string `yaml:"url" env:"DATABASE_URL"`
}

// CacheConfig — Redis-кэш уже виденных ссылок перед проверкой в БД.
// Пустой RedisURL отключает кэш.
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url" env:"REDIS_URL"`
	Prefix   string        `yaml:"prefix" env:"CACHE_PREFIX" env-default:"ingest:seen:"`
	TTL      time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"720h"`
}

// S3Config — параметры MinIO/S3 для медиа. Пустой Endpoint отключает загрузку.
type S3Config struct {
	Endpoint      string        `yaml:"endpoint" env:"S3_ENDPOINT"`
	RootUser      string        `yaml:"root_user" env:"S3_ROOT_USER"`
	RootPassword  string        `yaml:"root_password" env:"S3_ROOT_PASSWORD"`
	Bucket        string        `yaml:"bucket" env:"S3_BUCKET" env-default:"media"`
	PresignTTL    time.Duration `yaml:"presign_ttl" env:"S3_PRESIGN_TTL" env-default:"15m"`
	PublicBaseURL string        `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
}

// MediaConfig — ограничения на загружаемые иллюстрации.
type MediaConfig struct {
	MaxSizeBytes        int64    `yaml:"max_size_bytes" env:"MEDIA_MAX_SIZE_BYTES" env-default:"5242880"`
	AllowedContentTypes []string `yaml:"allowed_content_types" env:"MEDIA_ALLOWED_CONTENT_TYPES" env-separator:"," env-default:"image/jpeg,image/png,image/webp"`
}

// LLMConfig — сервис генерации текста (OpenAI-совместимый API).
// Пустые BaseURL и APIKey означают «генерации нет, всегда fallback».
type LLMConfig struct {
	BaseURL string `yaml:"base_url" env:"LLM_BASE_URL"`
	APIKey  string `yaml:"api_key" env:"LLM_API_KEY"`
	Model   string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	// MaxConcurrent — сколько вызовов генерации допускается одновременно.
	MaxConcurrent int64 `yaml:"max_concurrent" env:"LLM_MAX_CONCURRENT" env-default:"2"`
	// Delay — минимальный интервал между стартами вызовов генерации.
	Delay time.Duration `yaml:"delay" env:"LLM_DELAY" env-default:"1s"`
}

// Enabled сообщает, сконфигурирован ли сервис генерации.
func (c LLMConfig) Enabled() bool {
	return c.BaseURL != "" || c.APIKey != ""
}

// AuthConfig — проверка JWT модераторов. Пустой секрет отключает проверку.
type AuthConfig struct {
	JWTSecret string   `yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer    string   `yaml:"issuer" env:"JWT_ISSUER" env-default:"auth-service"`
	Audience  []string `yaml:"audience" env:"JWT_AUDIENCE" env-separator:"," env-default:"ingest-admin"`
}

// PipelineConfig — параметры прогона оркестратора.
type PipelineConfig struct {
	// Interval — период повторных прогонов в режиме serve.
	Interval time.Duration `yaml:"interval" env:"PIPELINE_INTERVAL" env-default:"1h"`
	// Window — окно свежести: элементы старше now-window отбрасываются.
	Window time.Duration `yaml:"window" env:"PIPELINE_WINDOW" env-default:"1440h"`
	// TargetNew — сколько новых записей создать за прогон, после чего остановиться.
	TargetNew int `yaml:"target_new" env:"PIPELINE_TARGET_NEW" env-default:"10"`
	// FetchDelay — пауза между загрузками источников.
	FetchDelay time.Duration `yaml:"fetch_delay" env:"PIPELINE_FETCH_DELAY" env-default:"2s"`
	// SourceWorkers — сколько источников обрабатывается параллельно.
	SourceWorkers int `yaml:"source_workers" env:"PIPELINE_SOURCE_WORKERS" env-default:"1"`
	// GeoKeywords — глобальный allow-list для источников без собственного.
	GeoKeywords []string `yaml:"geo_keywords" env:"PIPELINE_GEO_KEYWORDS" env-separator:","`
	// SourceURLs — источники из ENV (FEED_SOURCES), дописываются к sources.
	SourceURLs []string `yaml:"source_urls" env:"FEED_SOURCES" env-separator:","`
	// RulesPath — YAML с таблицами классификатора; пусто — встроенные таблицы.
	RulesPath     string `yaml:"rules_path" env:"PIPELINE_RULES_PATH"`
	MaxFeedBytes  int64  `yaml:"max_feed_bytes" env:"PIPELINE_MAX_FEED_BYTES" env-default:"10485760"`
	UserAgent     string `yaml:"user_agent" env:"PIPELINE_USER_AGENT" env-default:"ingest-service/1.0"`
	RespectRobots bool   `yaml:"respect_robots" env:"PIPELINE_RESPECT_ROBOTS" env-default:"true"`
}

// TimeoutConfig — таймауты внешних вызовов.
type TimeoutConfig struct {
	// Service — общий дедлайн HTTP/gRPC-запроса.
	Service    time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"10s"`
	Fetch      time.Duration `yaml:"fetch" env:"FETCH_TIMEOUT" env-default:"15s"`
	Generation time.Duration `yaml:"generation" env:"GENERATION_TIMEOUT" env-default:"30s"`
	Store      time.Duration `yaml:"store" env:"STORE_TIMEOUT" env-default:"5s"`
}

// LimitsConfig — серверные лимиты на выдачу списков.
type LimitsConfig struct {
	// Применяется при запросе с limit=0.
	Default int32 `yaml:"default" env:"DEFAULT_LIMIT" env-default:"20"`
	// Верхняя граница для limit.
	Max int32 `yaml:"max" env:"MAX_LIMIT" env-default:"200"`
}

// AllSources возвращает sources, дополненные источниками из pipeline.source_urls.
// Имя ENV-источника — host его URL.
func (c *Config) AllSources() []models.SourceConfig {
	out := make([]models.SourceConfig, 0, len(c.Sources)+len(c.Pipeline.SourceURLs))
	out = append(out, c.Sources...)

	for _, raw := range c.Pipeline.SourceURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		name := raw
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			name = u.Host
		}

		out = append(out, models.SourceConfig{Name: name, URL: raw})
	}

	return out
}

// GeoKeywordsFor возвращает allow-list источника: собственный или глобальный.
func (c *Config) GeoKeywordsFor(src models.SourceConfig) []string {
	if hasNonEmpty(src.GeoKeywords) {
		return src.GeoKeywords
	}

	return c.Pipeline.GeoKeywords
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", p)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		return &cfg, nil
	}

	var (
		c   *Config
		err error
	)

	switch envPath := os.Getenv("CONFIG_PATH"); {
	case path != "":
		c, err = tryRead(path)
	case envPath != "":
		c, err = tryRead(envPath)
	default:
		if _, statErr := os.Stat("local.yaml"); statErr == nil {
			if err := cleanenv.ReadConfig("local.yaml", &cfg); err != nil {
				return nil, fmt.Errorf("failed to read local.yaml: %w", err)
			}
			c = &cfg
			break
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
		}
		c = &cfg
	}

	if err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// validate — базовая валидация значений.
// Пустой географический allow-list является ошибкой именно здесь,
// на этапе конфигурации, а не во время прогона.
func (c *Config) validate() error {
	switch c.DB.Driver {
	case DriverPostgres, DriverMongo, DriverSQLite:
	default:
		return fmt.Errorf("db.driver must be one of postgres, mongo, sqlite, got %q", c.DB.Driver)
	}
	if c.DB.URL == "" {
		return fmt.Errorf("db.url is required")
	}

	sources := c.AllSources()
	if len(sources) == 0 {
		return fmt.Errorf("sources must contain at least one feed")
	}

	seen := make(map[string]struct{}, len(sources))
	for i, src := range sources {
		if strings.TrimSpace(src.URL) == "" {
			return fmt.Errorf("sources[%d].url is required", i)
		}
		if strings.TrimSpace(src.Name) == "" {
			return fmt.Errorf("sources[%d].name is required", i)
		}
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("sources[%d].name %q is duplicated", i, src.Name)
		}
		seen[src.Name] = struct{}{}

		if !hasNonEmpty(c.GeoKeywordsFor(src)) {
			return fmt.Errorf("source %q has an empty geo allow-list (set sources[].geo_keywords or pipeline.geo_keywords)", src.Name)
		}
	}

	if c.Pipeline.Window <= 0 {
		return fmt.Errorf("pipeline.window must be > 0")
	}
	if c.Pipeline.TargetNew <= 0 {
		return fmt.Errorf("pipeline.target_new must be > 0")
	}
	if c.Pipeline.Interval < time.Minute {
		return fmt.Errorf("pipeline.interval must be at least 1m")
	}
	if c.Pipeline.SourceWorkers <= 0 {
		return fmt.Errorf("pipeline.source_workers must be > 0")
	}
	if c.Pipeline.FetchDelay < 0 || c.LLM.Delay < 0 {
		return fmt.Errorf("delays must be >= 0")
	}
	if c.LLM.MaxConcurrent <= 0 {
		return fmt.Errorf("llm.max_concurrent must be > 0")
	}

	if c.Timeouts.Fetch <= 0 || c.Timeouts.Generation <= 0 || c.Timeouts.Store <= 0 || c.Timeouts.Service <= 0 {
		return fmt.Errorf("timeouts must be > 0")
	}

	if c.Limits.Default <= 0 {
		return fmt.Errorf("limits.default must be > 0")
	}
	if c.Limits.Max <= 0 {
		return fmt.Errorf("limits.max must be > 0")
	}
	if c.Limits.Default > c.Limits.Max {
		return fmt.Errorf("limits.default must be <= limits.max")
	}

	if c.S3.Endpoint != "" && c.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when s3.endpoint is set")
	}
	if c.Media.MaxSizeBytes <= 0 {
		return fmt.Errorf("media.max_size_bytes must be > 0")
	}

	return nil
}

func hasNonEmpty(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}

	return false
}

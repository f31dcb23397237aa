package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServerPort    string `env:"SERVER_PORT" envDefault:"8888"`
	ServerHost    string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName   string `env:"SERVICE_NAME" envDefault:"safewalk"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8888"` // 公开追踪链接的前缀

	// 存储后端：postgres 生产使用，memory 仅用于本地调试
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`
	// 实时变更通道：redis 跨实例广播，local 单进程
	FeedBackend string `env:"FEED_BACKEND" envDefault:"redis"`

	// PostgreSQL 配置
	PostgreSQLHost     string   `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string   `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string   `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string   `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string   `env:"POSTGRESQL_DATABASE" envDefault:"safewalk"`
	PostgreSQLSchema   string   `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string   `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int      `env:"POSTGRESQL_MAX_IDLE" envDefault:"30"`
	PostgreSQLMaxOpen  int      `env:"POSTGRESQL_MAX_OPEN" envDefault:"200"`
	DBReplicaHosts     []string `env:"DB_REPLICA_HOSTS" envSeparator:","` // 只读副本，公开追踪页面走副本

	// Redis 配置
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"safewalk"`

	// RabbitMQ 配置
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`

	// JWT 配置，令牌由账号服务签发，这里只做校验
	JWTSecret        string `env:"JWT_SECRET"`
	JWTExpireMinutes int    `env:"JWT_EXPIRE_MINUTES" envDefault:"30"`

	// 路线与地理编码
	RouteProvider        string        `env:"ROUTE_PROVIDER" envDefault:"osrm"` // osrm, google
	OSRMBaseURL          string        `env:"OSRM_BASE_URL" envDefault:"https://router.project-osrm.org"`
	NominatimBaseURL     string        `env:"NOMINATIM_BASE_URL" envDefault:"https://nominatim.openstreetmap.org"`
	NominatimRatePerSec  float64       `env:"NOMINATIM_RATE_PER_SEC" envDefault:"1"`
	NominatimUserAgent   string        `env:"NOMINATIM_USER_AGENT" envDefault:"safewalk/1.0"`
	GoogleMapsAPIKey     string        `env:"GOOGLE_MAPS_API_KEY"`
	RouteTimeout         time.Duration `env:"ROUTE_TIMEOUT" envDefault:"8s"`
	RouteBreakerFailures int           `env:"ROUTE_BREAKER_FAILURES" envDefault:"5"`
	RouteBreakerCooldown time.Duration `env:"ROUTE_BREAKER_COOLDOWN" envDefault:"30s"`

	// 平安确认
	CheckInIntervalMinutes int           `env:"CHECKIN_INTERVAL_MINUTES" envDefault:"5"`
	CheckInResponseWindow  time.Duration `env:"CHECKIN_RESPONSE_WINDOW" envDefault:"2m"`
	CheckInDeadlineBackend string        `env:"CHECKIN_DEADLINE_BACKEND" envDefault:"mq"` // mq, local
	AlertHaltsMonitoring   bool          `env:"ALERT_HALTS_MONITORING" envDefault:"false"`
	OverdueGrace           time.Duration `env:"OVERDUE_GRACE" envDefault:"15m"`

	// 定位采样
	SamplerHighAccuracy bool          `env:"SAMPLER_HIGH_ACCURACY" envDefault:"true"`
	SamplerMaxAge       time.Duration `env:"SAMPLER_MAX_AGE" envDefault:"10s"`
	SamplerTimeout      time.Duration `env:"SAMPLER_TIMEOUT" envDefault:"5s"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 链路追踪配置
	OTelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"0.1"`

	// 跨域白名单，为空时回显任意 Origin
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// 速率限制配置, 配置在中间件内
	RateLimitEnabled  bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS      int  `env:"RATE_LIMIT_RPS" envDefault:"100"`      // 每秒请求数
	LocationRateLimit int  `env:"LOCATION_RATE_LIMIT" envDefault:"30"` // 每个行程每分钟上报次数
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}
}

// Validate 在进程入口处调用，缺少必填项时直接退出
func Validate() {
	if err := Cfg.check(); err != nil {
		log.Fatal(err)
	}

	if Cfg.RouteProvider == "google" && Cfg.GoogleMapsAPIKey == "" {
		log.Printf("WARN: ROUTE_PROVIDER=google but GOOGLE_MAPS_API_KEY is not set, estimates will fall back to straight line")
	}
}

func (c *Config) check() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.StoreBackend {
	case "postgres", "memory":
	default:
		return errors.New("STORE_BACKEND must be postgres or memory")
	}
	switch c.FeedBackend {
	case "redis", "local":
	default:
		return errors.New("FEED_BACKEND must be redis or local")
	}
	switch c.CheckInDeadlineBackend {
	case "mq", "local":
	default:
		return errors.New("CHECKIN_DEADLINE_BACKEND must be mq or local")
	}
	if c.CheckInIntervalMinutes <= 0 {
		return errors.New("CHECKIN_INTERVAL_MINUTES must be positive")
	}
	if c.CheckInResponseWindow <= 0 || c.CheckInResponseWindow >= time.Duration(c.CheckInIntervalMinutes)*time.Minute {
		return errors.New("CHECKIN_RESPONSE_WINDOW must be positive and shorter than CHECKIN_INTERVAL_MINUTES")
	}
	return nil
}

func (c *Config) GetDSN() string {
	return c.dsnFor(c.PostgreSQLHost)
}

// GetReplicaDSNs 返回只读副本的连接串
func (c *Config) GetReplicaDSNs() []string {
	dsns := make([]string, 0, len(c.DBReplicaHosts))
	for _, host := range c.DBReplicaHosts {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		dsns = append(dsns, c.dsnFor(host))
	}
	return dsns
}

func (c *Config) dsnFor(host string) string {
	return "host=" + host +
		" port=" + c.PostgreSQLPort +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

// TrackingURL 拼出行程的公开追踪链接
func (c *Config) TrackingURL(journeyID string) string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/track/" + journeyID
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

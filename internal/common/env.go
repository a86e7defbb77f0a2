package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用配置，全部来自环境变量（支持 .env 文件）
type Config struct {
	AppEnv   string // 环境（如production）
	HTTPAddr string

	DBDriver   string // mysql | postgres | sqlite
	DBDSN      string // 优先于下面的分项配置
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	RedisAddr     string // host:port 或 redis:// URL，为空时使用进程内实现
	RedisPassword string

	LogPath  string // 为空时输出到 stdout
	KeyPath  string
	CertPath string

	JWTKey    string
	JWTExpire time.Duration

	WebhookSecret string // 为空时不开放 webhook 触发

	SchedulerBackend string // cron | asynq
	ScheduleInterval time.Duration
	RunConcurrency   int
	LeaseTTL         time.Duration

	AgentRPCAddr     string
	AgentCallTimeout time.Duration

	PriceFeedURL     string
	PriceFeedSymbols []string

	DiscordWebhookURL string
	KafkaBrokers      []string
	KafkaTopic        string

	PlanTTL time.Duration
}

func InitConf() Config {
	// .env 不存在时忽略
	_ = godotenv.Load()

	return Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DBDriver:   getEnv("DB_DRIVER", "mysql"),
		DBDSN:      getEnv("DB_DSN", ""),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 3306),
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "tradepilot"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		LogPath:  getEnv("LOG_PATH", ""),
		KeyPath:  getEnv("KEY_PATH", ""),
		CertPath: getEnv("CERT_PATH", ""),

		JWTKey:    getEnv("JWT_KEY", "tradepilot-dev-key"),
		JWTExpire: getEnvDuration("JWT_EXPIRE", 24*time.Hour),

		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),

		SchedulerBackend: getEnv("SCHEDULER_BACKEND", "cron"),
		ScheduleInterval: getEnvDuration("SCHEDULE_INTERVAL", 5*time.Minute),
		RunConcurrency:   getEnvInt("RUN_CONCURRENCY", 4),
		LeaseTTL:         getEnvDuration("LEASE_TTL", 10*time.Minute),

		AgentRPCAddr:     getEnv("AGENT_RPC_ADDR", "localhost:9090"),
		AgentCallTimeout: getEnvDuration("AGENT_CALL_TIMEOUT", 30*time.Second),

		PriceFeedURL:     getEnv("PRICE_FEED_URL", "wss://stream.binance.com:9443/ws"),
		PriceFeedSymbols: getEnvList("PRICE_FEED_SYMBOLS", []string{"ETHUSDT", "BTCUSDT", "SOLUSDT"}),

		DiscordWebhookURL: getEnv("DISCORD_WEBHOOK_URL", ""),
		KafkaBrokers:      getEnvList("KAFKA_BROKERS", nil),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "pipeline-events"),

		PlanTTL: getEnvDuration("PLAN_TTL", 24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

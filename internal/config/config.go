package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config agrupa toda la configuración de un servicio, leída de variables de entorno.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"pujalab"`
	InstanceID  string `env:"INSTANCE_ID"  envDefault:"instance-1"`
	HTTPPort    string `env:"HTTP_PORT"    envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`

	Store      StoreConfig      `envPrefix:"STORE_"`
	Transport  TransportConfig  `envPrefix:"TRANSPORT_"`
	Outbox     OutboxConfig     `envPrefix:"OUTBOX_"`
	Delivery   DeliveryConfig   `envPrefix:"DELIVERY_"`
	Finalizer  FinalizerConfig  `envPrefix:"FINALIZER_"`
	CatchUp    CatchUpConfig    `envPrefix:"CATCHUP_"`
	Lookup     LookupConfig     `envPrefix:"LOOKUP_"`
	Redis      RedisConfig      `envPrefix:"REDIS_"`
	Mongo      MongoConfig      `envPrefix:"MONGO_"`
	ClickHouse ClickHouseConfig `envPrefix:"CLICKHOUSE_"`
}

// StoreConfig selecciona el motor SQL del servicio dueño de los datos.
type StoreConfig struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"` // sqlite | postgres | mysql
	DSN    string `env:"DSN"    envDefault:"file:pujalab.db?_pragma=busy_timeout(5000)"`
}

type TransportConfig struct {
	Kind         string        `env:"KIND"          envDefault:"memory"` // memory | kafka | redis-streams
	KafkaBrokers []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	RedisAddr    string        `env:"REDIS_ADDR"    envDefault:"localhost:6379"`
	BlockTimeout time.Duration `env:"BLOCK_TIMEOUT" envDefault:"1s"`
}

type OutboxConfig struct {
	DrainInterval time.Duration `env:"DRAIN_INTERVAL" envDefault:"10s"`
	BatchSize     int           `env:"BATCH_SIZE"     envDefault:"100"`
	Retention     time.Duration `env:"RETENTION"      envDefault:"24h"`
	MaxAge        time.Duration `env:"MAX_AGE"        envDefault:"72h"`
	PurgeSchedule string        `env:"PURGE_SCHEDULE" envDefault:"@every 1h"`
}

// DeliveryConfig es la política de reintentos del lado consumidor.
type DeliveryConfig struct {
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	Interval    time.Duration `env:"INTERVAL"     envDefault:"5s"`
}

type FinalizerConfig struct {
	Interval  time.Duration `env:"INTERVAL"   envDefault:"5s"`
	BatchSize int           `env:"BATCH_SIZE" envDefault:"50"`
	LeaderTTL time.Duration `env:"LEADER_TTL" envDefault:"30s"`
	UseLeader bool          `env:"USE_LEADER" envDefault:"false"`
}

type CatchUpConfig struct {
	AuctionServiceURL string        `env:"AUCTION_SERVICE_URL" envDefault:"http://localhost:7001"`
	RetryInterval     time.Duration `env:"RETRY_INTERVAL"      envDefault:"3s"`
	Interval          time.Duration `env:"INTERVAL"            envDefault:"0s"` // 0 = solo al arrancar
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT"     envDefault:"10s"`
}

type LookupConfig struct {
	AuctionServiceURL string        `env:"AUCTION_SERVICE_URL" envDefault:"http://localhost:7001"`
	Timeout           time.Duration `env:"TIMEOUT"             envDefault:"5s"`
}

type RedisConfig struct {
	Addr     string        `env:"ADDR"      envDefault:"localhost:6379"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`
}

type MongoConfig struct {
	URI      string `env:"URI"      envDefault:""` // vacío = proyección en memoria
	Database string `env:"DATABASE" envDefault:"search"`
}

type ClickHouseConfig struct {
	Addr     string `env:"ADDR"     envDefault:""` // vacío = sin archivo
	Database string `env:"DATABASE" envDefault:"pujalab"`
}

// LoadConfig parsea las variables de entorno en Config.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Transport.Kind {
	case "memory", "kafka", "redis-streams":
	default:
		return fmt.Errorf("unsupported TRANSPORT_KIND %q", c.Transport.Kind)
	}
	if c.Delivery.MaxAttempts < 1 {
		return fmt.Errorf("DELIVERY_MAX_ATTEMPTS must be >= 1, got %d", c.Delivery.MaxAttempts)
	}
	return nil
}

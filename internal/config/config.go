package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ModeStream = "stream"
	ModeBatch  = "batch"

	DedupBackendMemory = "memory"
	DedupBackendRedis  = "redis"

	// DefaultConfigPath 未指定 --config 时尝试读取，文件不存在则只用默认值
	DefaultConfigPath = "config/config.yaml"
)

// Config 全局配置结构
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Input    InputConfig    `mapstructure:"input"`
	Output   OutputConfig   `mapstructure:"output"`
	Log      LogConfig      `mapstructure:"log"`
	Dedup    DedupConfig    `mapstructure:"dedup"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Server   ServerConfig   `mapstructure:"server"`
	Business BusinessConfig `mapstructure:"business"`
}

type EngineConfig struct {
	Mode      string `mapstructure:"mode"`    // stream | batch
	Workers   int    `mapstructure:"workers"` // 1 为单线程
	QueueSize int    `mapstructure:"queue_size"`
}

type InputConfig struct {
	HasHeader bool `mapstructure:"has_header"`
}

type OutputConfig struct {
	Path string `mapstructure:"path"` // 为空时写 stdout
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DedupConfig struct {
	Backend   string        `mapstructure:"backend"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	Events string `mapstructure:"events"`
}

type MySQLConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type BusinessConfig struct {
	MaxRetryCount int `mapstructure:"max_retry_count"`
}

// flagKeys 命令行参数名 -> 配置项
var flagKeys = map[string]string{
	"mode":      "engine.mode",
	"workers":   "engine.workers",
	"output":    "output.path",
	"log-level": "log.level",
	"serve":     "server.enabled",
}

// RegisterFlags 注册可覆盖配置的命令行参数
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "配置文件路径 (yaml)，默认读取 "+DefaultConfigPath)
	flags.String("mode", ModeStream, "执行模式: stream | batch")
	flags.Int("workers", 1, "分片 worker 数量，1 为单线程")
	flags.String("output", "", "账户快照输出文件，默认 stdout")
	flags.String("log-level", "info", "日志级别")
	flags.Bool("serve", false, "处理完成后启动只读查询服务")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.mode", ModeStream)
	v.SetDefault("engine.workers", 1)
	v.SetDefault("engine.queue_size", 1024)
	v.SetDefault("input.has_header", true)
	v.SetDefault("output.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("dedup.backend", DedupBackendMemory)
	v.SetDefault("dedup.key_prefix", "payengine:tx")
	v.SetDefault("dedup.ttl", time.Hour)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.events", "payengine.events")
	v.SetDefault("mysql.enabled", false)
	v.SetDefault("mysql.host", "127.0.0.1")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.user", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "payengine")
	v.SetDefault("mysql.max_open_conns", 10)
	v.SetDefault("mysql.max_idle_conns", 5)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("business.max_retry_count", 3)
}

// Load 加载配置，优先级：命令行参数 > 环境变量 (PAYENGINE_*) > 配置文件 > 默认值
//
// configPath 为空时读取 DefaultConfigPath，该文件不存在只使用默认值；
// 显式指定的文件不存在返回错误。flags 可以为 nil。
//
// 环境变量只对已有默认值的配置项生效，新增配置项时必须在 setDefaults 中登记。
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PAYENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	optional := configPath == ""
	if optional {
		configPath = DefaultConfigPath
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if !optional || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("绑定命令行参数失败: %w", err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Engine.Mode {
	case ModeStream, ModeBatch:
	default:
		return fmt.Errorf("engine.mode 无效: %q", c.Engine.Mode)
	}
	if c.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers 必须大于0: %d", c.Engine.Workers)
	}
	switch c.Dedup.Backend {
	case DedupBackendMemory, DedupBackendRedis:
	default:
		return fmt.Errorf("dedup.backend 无效: %q", c.Dedup.Backend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.enabled 时 kafka.brokers 不能为空")
	}
	if c.Business.MaxRetryCount < 1 {
		return fmt.Errorf("business.max_retry_count 必须大于0: %d", c.Business.MaxRetryCount)
	}
	return nil
}

// DSN 组装 gorm mysql 驱动使用的 DSN
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

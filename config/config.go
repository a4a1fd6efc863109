package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wfunc/marketgame/models"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Game     GameConfig     `mapstructure:"game"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

// DatabaseConfig 选择房间存储后端: memory, redis, postgres (lib/pq) 或 gorm
type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// NATSConfig 为空 URL 时不启用跨实例广播
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type GameConfig struct {
	StartingCash        int           `mapstructure:"starting_cash"`
	InitialInterestRate int           `mapstructure:"initial_interest_rate"`
	RoundSeconds        int           `mapstructure:"round_seconds"`
	TurnSeconds         int           `mapstructure:"turn_seconds"`
	MaxPlayers          int           `mapstructure:"max_players"`
	MaxUpdateAttempts   int           `mapstructure:"max_update_attempts"`
	RetryBaseDelay      time.Duration `mapstructure:"retry_base_delay"`
	TickInterval        time.Duration `mapstructure:"tick_interval"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	defaults := models.DefaultSettings()

	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.metrics_address", ":9090")

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.key_prefix", "room")

	v.SetDefault("nats.subject_prefix", "marketgame")

	v.SetDefault("game.starting_cash", defaults.StartingCash)
	v.SetDefault("game.initial_interest_rate", defaults.InitialInterestRate)
	v.SetDefault("game.round_seconds", defaults.RoundSeconds)
	v.SetDefault("game.turn_seconds", defaults.TurnSeconds)
	v.SetDefault("game.max_players", defaults.MaxPlayers)
	v.SetDefault("game.max_update_attempts", 10)
	v.SetDefault("game.retry_base_delay", 2*time.Millisecond)
	v.SetDefault("game.tick_interval", time.Second)

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yaml from path. A missing file is not an error:
// defaults and MARKETGAME_* environment variables still apply.
func LoadConfig(path string) (config *Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("marketgame")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	return
}

// GameSettings 转换为领域层使用的对局参数
func (c *Config) GameSettings() models.Settings {
	return models.Settings{
		StartingCash:        c.Game.StartingCash,
		InitialInterestRate: c.Game.InitialInterestRate,
		RoundSeconds:        c.Game.RoundSeconds,
		TurnSeconds:         c.Game.TurnSeconds,
		MaxPlayers:          c.Game.MaxPlayers,
	}
}

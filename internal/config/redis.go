package config

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, required"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
	Stream   string `env:"REDIS_STREAM, default=recurring_runs"`
}

func NewRedisConfigFromEnv() (*RedisConfig, error) {
	return process(&RedisConfig{})
}

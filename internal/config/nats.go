package config

type NATSConfig struct {
	URL           string `env:"NATS_URL, default=nats://127.0.0.1:4222"`
	SubjectPrefix string `env:"NATS_SUBJECT_PREFIX, default=recurring.runs"`
	Name          string `env:"NATS_CLIENT_NAME, default=recurring-worker"`
	NKeySeed      string `env:"NATS_NKEY_SEED"`
}

func NewNATSConfigFromEnv() (*NATSConfig, error) {
	return process(&NATSConfig{})
}

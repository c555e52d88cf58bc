package config

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// LoadEnv loads variables from a .env file in the working directory without
// overriding variables that are already set. The error satisfies
// os.IsNotExist when there is no such file.
func LoadEnv(filenames ...string) error {
	return godotenv.Load(filenames...)
}

func process[T any](cfg *T) (*T, error) {
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

package config

import "github.com/ilyakaznacheev/cleanenv"

func parseEnv(config *Config) {
	if err := cleanenv.ReadEnv(config); err != nil {
		panic(err)
	}
}

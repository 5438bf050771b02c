package config

import "github.com/ilyakaznacheev/cleanenv"

// parseEnv overlays cfg with the environment variables named in the env
// tags. Unset variables leave fields untouched.
func parseEnv(cfg *Config) {
	if err := cleanenv.ReadEnv(cfg); err != nil {
		panic(err)
	}
}

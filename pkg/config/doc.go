// Package config loads configuration structs from environment variables.
//
// Structs declare their settings with `env` tags (see caarlos0/env); a .env
// file in the working directory is loaded once before the first parse so
// local development does not need exported variables.
package config

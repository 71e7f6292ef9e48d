// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package store

// Config controls which backend Open uses.
type Config struct {
	Backend string // "sqlite" (default), "mysql" or "redis"
	// DSN is the mysql data source name, or a sqlite file path overriding
	// <data_dir>/postwright.db.
	DSN   string
	Redis RedisConfig
}

// RedisConfig holds connection settings for the redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

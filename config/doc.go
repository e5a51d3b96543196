// Package config loads predindex settings from a YAML file and the
// environment.
//
// Values are layered: built-in defaults, then the file, then environment
// variables (PREDINDEX_*, MILVUS_*), then whatever the CLI flags set.
// LoadEnvFiles reads a .env file into the environment first when present.
package config

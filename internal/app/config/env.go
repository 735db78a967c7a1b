package config

import (
	"os"
	"strconv"

	"github.com/zkemail/paytox/pkg/logger"
)

// MustEnv returns the value of an environment variable or stops the process
// if it is not defined.
func MustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		logger.OrDefault(nil).Fatalf(nil, "missing env %s", k)
	}
	return v
}

// GetenvDefault returns the environment variable value if set,
// otherwise the provided default.
func GetenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func GetenvUint(k string, def uint64) uint64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

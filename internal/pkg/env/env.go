package env

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the given .env files into the process environment. Variables that are already
// set win over the files and missing files are skipped.
func Load(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func RequireString(key string) string {
	val, ok := os.LookupEnv(key)
	if !ok {
		panic(fmt.Sprintf("environment variable %q is required", key))
	}
	if strings.TrimSpace(val) == "" {
		panic(fmt.Sprintf("environment variable %q must not be empty", key))
	}

	return val
}

func String(key, def string) string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	return val
}

// OneOf returns the value of key, or def when it is unset. A value outside allowed panics.
func OneOf(key, def string, allowed ...string) string {
	val := String(key, def)
	if !slices.Contains(allowed, val) {
		panic(fmt.Sprintf("environment variable %q must be one of %v, got %q", key, allowed, val))
	}

	return val
}

func Int(key string, def int) int {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return def
	}

	return val
}

func Int64(key string, def int64) int64 {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	val, err := strconv.ParseInt(valStr, 10, 64)
	if err != nil {
		return def
	}

	return val
}

func Bool(key string, def bool) bool {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return def
	}

	return val
}

func Float64(key string, def float64) float64 {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		return def
	}

	return val
}

func Duration(key string, def time.Duration) time.Duration {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	val, err := time.ParseDuration(valStr)
	if err != nil {
		return def
	}

	return val
}

// Url parses key as an absolute URL; anything else yields def.
func Url(key string, def *url.URL) *url.URL {
	val, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	parsed, err := url.Parse(val)
	if err != nil || !parsed.IsAbs() {
		return def
	}

	return parsed
}

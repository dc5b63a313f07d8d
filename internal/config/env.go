package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// The env* helpers read optional variables.  An unset, empty or
// unparsable value yields the default d.

func envStr(key, d string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return d
}

func envBool(key string, d bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(key string, d int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return d
	}
	return n
}

func envDur(key string, d time.Duration) time.Duration {
	dur, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return d
	}
	return dur
}

// splitList splits a comma separated env value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

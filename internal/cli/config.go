package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

const envPrefix = "PALETTRON_"

// envBinding ties a flag to the environment variable that supplies its value
// when the flag is not given on the command line.
type envBinding struct {
	flag string
	env  string
}

var envBindings = []envBinding{
	{flag: "colours", env: envPrefix + "MAX_COLOURS"},
	{flag: "addr", env: envPrefix + "ADDR"},
	{flag: "redis-addr", env: envPrefix + "REDIS_ADDR"},
	{flag: "session-ttl", env: envPrefix + "SESSION_TTL"},
	{flag: "max-concurrent", env: envPrefix + "MAX_CONCURRENT"},
	{flag: "max-upload", env: envPrefix + "MAX_UPLOAD"},
}

// applyEnv fills every bound flag of fs that was not set explicitly from its
// environment variable. Flags always win over the environment.
func applyEnv(fs *pflag.FlagSet) error {
	for _, b := range envBindings {
		f := fs.Lookup(b.flag)
		if f == nil || f.Changed {
			continue
		}
		v, ok := os.LookupEnv(b.env)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := fs.Set(b.flag, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("invalid %s: %w", b.env, err)
		}
	}
	return nil
}

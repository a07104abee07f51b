package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes a starter config to path.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(serverTemplate), 0o600)
}

const serverTemplate = `name = "easeld"
addr = ":3055"
cors_origins = ["http://localhost:3000"]
default_channel = "default"
command_timeout_ms = 30000

# Shared token required from HTTP callers and plugin runtimes.
# Leave empty to disable authentication.
auth_token = ""

[retry]
retries = 3
initial_delay_ms = 1000
multiplier = 1.5
max_delay_ms = 0

[batch]
chunk_size = 20
concurrency = 5
`

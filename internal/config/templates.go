package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes a commented starter config. An existing file is
// never clobbered unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const template = `# luxbridge daemon configuration. Every key is optional; the values below
# are the defaults.

listen_port = 23042
max_leds = 1000

# Maximum keep-alive silence before service is declared stale.
liveness_interval = "30s"

# Pause before an automatic recovery attempt after an error.
recovery_delay = "5s"

# Interface the link monitor watches; empty picks the first non-loopback.
link_interface = ""

# Coalesce chunked updates into one transmission; "0s" flushes per write.
debounce_window = "0s"

[driver]
kind = "mock" # mock | serial
device = ""   # e.g. "/dev/ttyUSB0" for the serial shaper
baud_rate = 3000000

[discovery]
enabled = true
instance = "luxbridge"

[ops]
listen_addr = "" # e.g. ":9100"; empty disables the ops server
cors_origins = []
auth_token = "" # empty leaves the ops surface open
`

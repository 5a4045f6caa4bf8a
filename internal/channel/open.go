package channel

import (
	"fmt"
	"os"

	"github.com/smazurov/rworker/internal/logging"
)

// Open opens the worker side of channel id using the transport the parent
// selected through the environment.
func Open(id string, logger logging.Logger) (Channel, error) {
	switch transport := os.Getenv(EnvTransport); transport {
	case "nats":
		url := os.Getenv(EnvNATSURL)
		if url == "" {
			return nil, fmt.Errorf("%s is not set", EnvNATSURL)
		}
		return OpenNATS(id, url, logger)
	case "", "pipe":
		r := os.NewFile(pipeReadFD, "rworker-channel-in")
		w := os.NewFile(pipeWriteFD, "rworker-channel-out")
		if _, err := r.Stat(); err != nil {
			return nil, fmt.Errorf("channel descriptor %d: %w", pipeReadFD, err)
		}
		if _, err := w.Stat(); err != nil {
			return nil, fmt.Errorf("channel descriptor %d: %w", pipeWriteFD, err)
		}
		return OpenPipe(id, r, w, logger), nil
	default:
		return nil, fmt.Errorf("unknown channel transport %q", transport)
	}
}

package transport

import (
	"fmt"

	"github.com/bnema/waygui/internal/config"
)

// FromConfig lists the transports to try, in order, for the configured
// backend.transport. Auto tries the portal, then an exported EIS socket,
// then uinput when /dev/uinput is writable. The no-op fallback is not
// included.
func FromConfig(cfg config.BackendConfig) ([]Transport, error) {
	switch cfg.Transport {
	case config.TransportSocket:
		return []Transport{NewSocket(cfg.SocketPath, cfg.AppName)}, nil
	case config.TransportPortal:
		return []Transport{NewPortal(cfg.AppName)}, nil
	case config.TransportUinput:
		return []Transport{NewUinput(cfg.UinputPath, cfg.AppName)}, nil
	case config.TransportNoop:
		return []Transport{Noop{}}, nil
	case config.TransportAuto, "":
		list := []Transport{
			NewPortal(cfg.AppName),
			NewSocket(cfg.SocketPath, cfg.AppName),
		}
		if u := NewUinput(cfg.UinputPath, cfg.AppName); u.Available() {
			list = append(list, u)
		}
		return list, nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
}

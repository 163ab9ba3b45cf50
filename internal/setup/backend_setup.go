// Package setup walks the user through choosing an input-emulation
// transport and a screen-size provider.
package setup

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bnema/waygui/internal/config"
	"github.com/bnema/waygui/internal/logger"
	"github.com/bnema/waygui/internal/transport"
	"github.com/charmbracelet/huh"
)

// Answers holds the form fields before they are applied to the config
type Answers struct {
	Transport      string
	SocketPath     string
	FallbackNoop   bool
	Strict         bool
	ConnectTimeout string
	Provider       string
	Width          string
	Height         string
}

// AnswersFrom prefills the form from the current config
func AnswersFrom(cfg *config.Config) *Answers {
	return &Answers{
		Transport:      cfg.Backend.Transport,
		SocketPath:     cfg.Backend.SocketPath,
		FallbackNoop:   cfg.Backend.FallbackNoop,
		Strict:         cfg.Backend.Strict,
		ConnectTimeout: cfg.Backend.ConnectTimeout.String(),
		Provider:       cfg.Display.Provider,
		Width:          strconv.Itoa(cfg.Display.DefaultWidth),
		Height:         strconv.Itoa(cfg.Display.DefaultHeight),
	}
}

// Apply copies the answers into cfg and validates the result
func (a *Answers) Apply(cfg *config.Config) error {
	timeout, err := time.ParseDuration(a.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("invalid connect timeout %q: %w", a.ConnectTimeout, err)
	}
	width, err := strconv.Atoi(a.Width)
	if err != nil {
		return fmt.Errorf("invalid width %q", a.Width)
	}
	height, err := strconv.Atoi(a.Height)
	if err != nil {
		return fmt.Errorf("invalid height %q", a.Height)
	}

	next := *cfg
	next.Backend.Transport = a.Transport
	next.Backend.SocketPath = a.SocketPath
	next.Backend.FallbackNoop = a.FallbackNoop
	next.Backend.Strict = a.Strict
	next.Backend.ConnectTimeout = timeout
	next.Display.Provider = a.Provider
	next.Display.DefaultWidth = width
	next.Display.DefaultHeight = height
	if err := next.Validate(); err != nil {
		return err
	}

	*cfg = next
	return nil
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return errors.New("must be a positive number")
	}
	return nil
}

// NewForm builds the interactive form bound to a
func NewForm(a *Answers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Input transport").
				Description("auto tries the portal, then the EIS socket, then uinput").
				Options(
					huh.NewOption("auto", config.TransportAuto),
					huh.NewOption("RemoteDesktop portal (libei)", config.TransportPortal),
					huh.NewOption("EIS socket (libei)", config.TransportSocket),
					huh.NewOption("uinput (kernel virtual devices)", config.TransportUinput),
					huh.NewOption("noop (drop everything)", config.TransportNoop),
				).
				Value(&a.Transport),
			huh.NewInput().
				Title("EIS socket path").
				Description("Empty uses $LIBEI_SOCKET or $XDG_RUNTIME_DIR/ei-socket").
				Value(&a.SocketPath),
			huh.NewInput().
				Title("Connect timeout").
				Description("Includes time spent on the portal consent dialog").
				Value(&a.ConnectTimeout).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
			huh.NewConfirm().
				Title("Fall back to no-op when no transport works?").
				Value(&a.FallbackNoop),
			huh.NewConfirm().
				Title("Fail commands when an event cannot be emitted?").
				Value(&a.Strict),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Screen size provider").
				Options(
					huh.NewOption("auto", config.ProviderAuto),
					huh.NewOption("wlr-randr", config.ProviderWlrRandr),
					huh.NewOption("hyprctl", config.ProviderHyprctl),
					huh.NewOption("xrandr", config.ProviderXrandr),
					huh.NewOption("static", config.ProviderStatic),
				).
				Value(&a.Provider),
			huh.NewInput().
				Title("Fallback width").
				Value(&a.Width).
				Validate(positiveInt),
			huh.NewInput().
				Title("Fallback height").
				Value(&a.Height).
				Validate(positiveInt),
		),
	)
}

// RunInteractiveSetup asks for backend and display settings and saves them
func RunInteractiveSetup() error {
	cfg := config.Get()
	answers := AnswersFrom(cfg)

	if err := NewForm(answers).Run(); err != nil {
		return err
	}
	if err := answers.Apply(cfg); err != nil {
		return err
	}

	if err := config.UpdateBackend(cfg.Backend); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	if err := config.UpdateDisplay(cfg.Display); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	logger.Infof("Configuration saved to %s", config.GetConfigPath())
	return nil
}

// Check is one line of the environment report
type Check struct {
	Name string
	OK   bool
	Info string
}

// CheckEnvironment reports which transports look usable. Nothing is
// opened except /dev/uinput, so no portal dialog appears.
func CheckEnvironment(cfg config.BackendConfig) []Check {
	var checks []Check

	if path, err := transport.ResolveSocketPath(cfg.SocketPath); err != nil {
		checks = append(checks, Check{Name: "EIS socket", Info: err.Error()})
	} else {
		checks = append(checks, Check{Name: "EIS socket", OK: true, Info: path})
	}

	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
		checks = append(checks, Check{Name: "Session bus", Info: "DBUS_SESSION_BUS_ADDRESS is not set, the portal is unreachable"})
	} else {
		checks = append(checks, Check{Name: "Session bus", OK: true, Info: "portal reachable"})
	}

	u := transport.NewUinput(cfg.UinputPath, "")
	if u.Available() {
		checks = append(checks, Check{Name: "uinput", OK: true, Info: u.Path})
	} else {
		checks = append(checks, Check{Name: "uinput", Info: u.Path + " is not writable (add yourself to the input group)"})
	}

	return checks
}

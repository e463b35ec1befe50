package node

import (
	"fmt"
	"net"
	"strings"
	"time"

	"nodeagent/internal/auth"
	"nodeagent/internal/identity"
)

// RelayKind selects how peers that cannot be dialed directly are reached.
type RelayKind int

const (
	RelayDefault RelayKind = iota
	RelayDisabled
	RelayCustom
)

// RelayMode is passed through to the node untouched by the supervisor.
type RelayMode struct {
	Kind RelayKind
	URLs []string
}

// ParseRelayMode builds a RelayMode from its config representation.
func ParseRelayMode(mode string, urls []string) (RelayMode, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "default":
		return RelayMode{Kind: RelayDefault}, nil
	case "disabled":
		return RelayMode{Kind: RelayDisabled}, nil
	case "custom":
		if len(urls) == 0 {
			return RelayMode{}, fmt.Errorf("custom relay mode needs at least one URL")
		}
		return RelayMode{Kind: RelayCustom, URLs: urls}, nil
	default:
		return RelayMode{}, fmt.Errorf("unknown relay mode %q", mode)
	}
}

func (r RelayMode) String() string {
	switch r.Kind {
	case RelayDefault:
		return "default"
	case RelayDisabled:
		return "disabled"
	case RelayCustom:
		return "custom(" + strings.Join(r.URLs, ",") + ")"
	default:
		return fmt.Sprintf("RelayKind(%d)", int(r.Kind))
	}
}

// Options are the construction inputs of a node.
type Options struct {
	// BindAddr is the data-plane listen address.
	BindAddr string
	Relay    RelayMode
	// Token gates data-plane requests; nil disables the check.
	Token auth.Token
	// PeersPath is the JSON file peers are loaded from and saved to.
	PeersPath string
	// Control is the already bound control listener. The node owns it from here on.
	Control  net.Listener
	Identity *identity.Identity
	// ShutdownTimeout bounds graceful stop of both planes. Zero means 10s.
	ShutdownTimeout time.Duration
}

func (o *Options) validate() error {
	if o.Control == nil {
		return fmt.Errorf("control listener is required")
	}
	if o.Identity == nil {
		return fmt.Errorf("identity is required")
	}
	if o.BindAddr == "" {
		return fmt.Errorf("bind address is required")
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 10 * time.Second
	}
	return nil
}

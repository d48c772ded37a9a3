// Package identity resolves the stable name a device reports itself under.
// Resolution uses only local host information; it never touches the network.
package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// Provider returns the device identity.
type Provider interface {
	DeviceID(ctx context.Context) (string, error)
}

// Static is a fixed identity, typically from configuration.
type Static string

// DeviceID returns the configured identity.
func (s Static) DeviceID(context.Context) (string, error) {
	id := strings.TrimSpace(string(s))
	if id == "" {
		return "", errors.New("static device id is empty")
	}
	return id, nil
}

// Host derives the identity from the host name, falling back to the
// platform host ID when no name is set.
type Host struct {
	info     func(ctx context.Context) (*host.InfoStat, error)
	hostname func() (string, error)
}

// NewHost creates a provider backed by gopsutil and os.Hostname.
func NewHost() *Host {
	return &Host{
		info:     host.InfoWithContext,
		hostname: os.Hostname,
	}
}

// DeviceID returns the first non-empty of: gopsutil host name, os.Hostname,
// gopsutil host ID.
func (h *Host) DeviceID(ctx context.Context) (string, error) {
	info, infoErr := h.info(ctx)
	if infoErr == nil && info != nil && strings.TrimSpace(info.Hostname) != "" {
		return strings.TrimSpace(info.Hostname), nil
	}
	if name, err := h.hostname(); err == nil && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name), nil
	}
	if infoErr == nil && info != nil && info.HostID != "" {
		return info.HostID, nil
	}
	if infoErr != nil {
		return "", fmt.Errorf("resolve host identity: %w", infoErr)
	}
	return "", errors.New("resolve host identity: no host name or host id")
}

// Chain tries providers in order and returns the first identity found.
type Chain []Provider

// DeviceID returns the first successful provider result.
func (c Chain) DeviceID(ctx context.Context) (string, error) {
	var errs []error
	for _, p := range c {
		id, err := p.DeviceID(ctx)
		if err == nil {
			return id, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", errors.New("no identity providers configured")
	}
	return "", errors.Join(errs...)
}

// Resolve builds the provider chain for a configured id (which may be empty)
// and returns the resolved identity.
func Resolve(ctx context.Context, configured string) (string, error) {
	var chain Chain
	if strings.TrimSpace(configured) != "" {
		chain = append(chain, Static(configured))
	}
	chain = append(chain, NewHost())
	return chain.DeviceID(ctx)
}

// Package relay announces and discovers the optional single-relay
// collaborator mentioned in spec.md §1 ("No routing across intermediate
// nodes beyond an optional single relay"), using mDNS/DNS-SD so a
// controller can find a relay node on the local network without a
// configured address.
//
// Grounded directly on the teacher's src/dns_sd.go, which does the same
// thing for its KISS-over-TCP service using github.com/brutella/dnssd;
// this package keeps that responder/service shape and swaps the
// service type and port for Ruby's relay protocol.
package relay

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"

	"github.com/rubyfpv/radio-link/internal/rlog"
)

// ServiceType is the DNS-SD service type relay nodes announce under.
const ServiceType = "_ruby-relay._tcp"

// Announcer advertises this node as a relay for other controllers to
// discover.
type Announcer struct {
	log      *rlog.Logger
	responder dnssd.Responder
}

// Announce registers name/port under ServiceType and starts responding
// to mDNS queries in the background until ctx is canceled.
func Announce(ctx context.Context, log *rlog.Logger, name string, port int) (*Announcer, error) {
	cfg := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
	}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("relay: creating service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("relay: creating responder: %w", err)
	}

	if _, err := responder.Add(svc); err != nil {
		return nil, fmt.Errorf("relay: adding service: %w", err)
	}

	a := &Announcer{log: log, responder: responder}

	go func() {
		if err := responder.Respond(ctx); err != nil && ctx.Err() == nil {
			log.Errorf("relay: responder stopped: %v", err)
		}
	}()

	log.Infof("relay: announcing %q on port %d as %s", name, port, ServiceType)
	return a, nil
}

// Discovered is one relay instance found on the network.
type Discovered struct {
	Name string
	Host string
	Port int
}

// Browse watches for relay announcements until ctx is canceled,
// delivering each sighting to onFound.
func Browse(ctx context.Context, log *rlog.Logger, onFound func(Discovered)) error {
	addFn := func(e dnssd.BrowseEntry) {
		host := ""
		if len(e.IPs) > 0 {
			host = e.IPs[0].String()
		}
		onFound(Discovered{Name: e.Name, Host: host, Port: e.Port})
	}
	removeFn := func(e dnssd.BrowseEntry) {
		log.Infof("relay: %q no longer advertised", e.Name)
	}

	if err := dnssd.LookupType(ctx, ServiceType, addFn, removeFn); err != nil {
		return fmt.Errorf("relay: browse failed: %w", err)
	}
	return nil
}

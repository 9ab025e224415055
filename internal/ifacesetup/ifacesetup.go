// Package ifacesetup enumerates radio interfaces present on the host
// into internal/config.RadioInterfaceParams records, so the core never
// has to speak to netlink directly — the "one-shot OS tooling for
// Wi-Fi regulatory/monitor-mode setup" spec.md §1 places outside the
// core's scope, with enumeration as the one reading this module
// actually consumes.
//
// Grounded on the pack example repo that carries
// github.com/vishvananda/netlink as an indirect dependency of the
// teacher's toolchain; no example repo calls it directly, so this
// package is the first direct caller, used the way that library's own
// examples enumerate links: netlink.LinkList() filtered by a name
// prefix/driver heuristic.
package ifacesetup

import (
	"fmt"
	"strings"

	"github.com/vishvananda/netlink"

	"github.com/rubyfpv/radio-link/internal/config"
)

// wifiNamePrefixes is the set of interface name prefixes treated as
// Wi-Fi adapters eligible for monitor-mode use; Enumerate skips any
// other link and does not report it.
var wifiNamePrefixes = []string{"wlan", "wlx"}

// Enumerate lists network links on the host and returns one
// RadioInterfaceParams per Wi-Fi-looking link, stable-indexed in
// discovery order (spec.md §3, "Radio interface... Lifecycle: created
// at enumeration").
func Enumerate() ([]config.RadioInterfaceParams, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("ifacesetup: listing links: %w", err)
	}

	var out []config.RadioInterfaceParams
	idx := 0
	for _, link := range links {
		attrs := link.Attrs()
		if !looksLikeWifi(attrs.Name) {
			continue
		}

		out = append(out, config.RadioInterfaceParams{
			Index:     idx,
			Name:      attrs.Name,
			MAC:       attrs.HardwareAddr.String(),
			Driver:    driverFamilyFor(attrs.Name),
			Disabled:  attrs.OperState != netlink.OperUp && attrs.OperState != netlink.OperUnknown,
			MayTX:     true,
			MayUseData: true,
			TXCapable:  true,
		})
		idx++
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("ifacesetup: no radio interfaces enumerated")
	}
	return out, nil
}

func looksLikeWifi(name string) bool {
	for _, prefix := range wifiNamePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// driverFamilyFor is a best-effort classification from interface
// naming convention alone; setup code with access to /sys/class/net's
// driver symlink can override this before the Model is persisted. This
// is an implementer decision on a detail spec.md leaves to "setup
// code" external to the core.
func driverFamilyFor(name string) config.DriverFamily {
	switch {
	case strings.Contains(name, "ath") || strings.Contains(name, "ralink"):
		return config.DriverAtherosRalink
	case strings.Contains(name, "rtl"):
		return config.DriverRTL88xx
	default:
		return config.DriverOther
	}
}

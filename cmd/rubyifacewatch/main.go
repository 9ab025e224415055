// Command rubyifacewatch is an illustrative, non-core collaborator: it
// watches udev for Wi-Fi adapter plug/unplug events and re-runs
// interface enumeration, the external setup tool spec.md §1 says the
// core only ever reads the output of.
//
// Grounded on the teacher's cmd/direwolf pflag-based CLI shape; udev
// watching uses github.com/jochenvg/go-udev, carried over from the
// retrieval pack's hotplug precedent since the teacher itself never
// watches for hardware hotplug (its audio devices are configured once
// at startup).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jochenvg/go-udev"
	"github.com/spf13/pflag"

	"github.com/rubyfpv/radio-link/internal/ifacesetup"
)

func main() {
	help := pflag.BoolP("help", "h", false, "Display help text.")
	pflag.Parse()
	if *help {
		fmt.Fprintln(os.Stderr, "rubyifacewatch - re-enumerates radio interfaces on udev hotplug events.")
		pflag.PrintDefaults()
		os.Exit(1)
	}

	printEnumeration()

	u := udev.Udev{}
	monitor := u.NewMonitorFromNetlink("udev")
	if err := monitor.FilterAddMatchSubsystem("net"); err != nil {
		fmt.Fprintf(os.Stderr, "rubyifacewatch: filtering udev monitor: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deviceCh, errCh, err := monitor.DeviceChan(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rubyifacewatch: starting udev monitor: %v\n", err)
		os.Exit(1)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case dev := <-deviceCh:
			if dev == nil {
				continue
			}
			fmt.Fprintf(os.Stderr, "rubyifacewatch: udev %s event on %s\n", dev.Action(), dev.Syspath())
			printEnumeration()
		case err := <-errCh:
			if err != nil {
				fmt.Fprintf(os.Stderr, "rubyifacewatch: udev monitor error: %v\n", err)
			}
		}
	}
}

func printEnumeration() {
	interfaces, err := ifacesetup.Enumerate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "rubyifacewatch: enumerating interfaces: %v\n", err)
		return
	}
	for _, iface := range interfaces {
		fmt.Printf("%d\t%s\t%s\tdriver=%d\tdisabled=%v\n", iface.Index, iface.Name, iface.MAC, iface.Driver, iface.Disabled)
	}
}

//go:build linux

package connectivity

import (
	"encoding/binary"
	"testing"

	"github.com/pilebones/go-udev/netlink"
	"golang.org/x/sys/unix"
)

func routeMessage(typ uint16, payload int) []byte {
	length := unix.NLMSG_HDRLEN + payload
	msg := make([]byte, nlmAlign(length))
	binary.NativeEndian.PutUint32(msg[0:4], uint32(length))
	binary.NativeEndian.PutUint16(msg[4:6], typ)
	return msg
}

func TestParseRouteMessages(t *testing.T) {
	var datagram []byte
	datagram = append(datagram, routeMessage(unix.RTM_NEWADDR, 9)...)
	datagram = append(datagram, routeMessage(unix.RTM_NEWLINK, 16)...)

	types := parseRouteMessages(datagram)
	if len(types) != 2 || types[0] != unix.RTM_NEWADDR || types[1] != unix.RTM_NEWLINK {
		t.Fatalf("unexpected message types %v", types)
	}
	if got := routeReason(types); got != "rtnetlink link" {
		t.Fatalf("routeReason = %q", got)
	}
}

func TestParseRouteMessagesStopsOnTruncatedHeader(t *testing.T) {
	msg := routeMessage(unix.RTM_DELLINK, 0)
	binary.NativeEndian.PutUint32(msg[0:4], 4096)
	if types := parseRouteMessages(msg); len(types) != 0 {
		t.Fatalf("expected truncated message to be ignored, got %v", types)
	}
	if types := parseRouteMessages(msg[:8]); len(types) != 0 {
		t.Fatalf("expected short buffer to be ignored, got %v", types)
	}
}

func TestRouteReasonIgnoresUnrelatedTypes(t *testing.T) {
	if got := routeReason([]uint16{unix.RTM_NEWROUTE, unix.NLMSG_DONE}); got != "" {
		t.Fatalf("expected no reason, got %q", got)
	}
	if got := routeReason([]uint16{unix.RTM_DELADDR}); got != "rtnetlink addr" {
		t.Fatalf("routeReason = %q", got)
	}
}

func TestNetMatcher(t *testing.T) {
	matcher := netMatcher()
	if err := matcher.Compile(); err != nil {
		t.Fatalf("compile matcher: %v", err)
	}
	netEvent := netlink.UEvent{
		Action: netlink.ADD,
		KObj:   "/devices/virtual/net/wlan0",
		Env:    map[string]string{"SUBSYSTEM": "net", "INTERFACE": "wlan0"},
	}
	if !matcher.Evaluate(netEvent) {
		t.Fatal("expected net add event to match")
	}
	blockEvent := netlink.UEvent{
		Action: netlink.CHANGE,
		KObj:   "/devices/pci/block/sr0",
		Env:    map[string]string{"SUBSYSTEM": "block"},
	}
	if matcher.Evaluate(blockEvent) {
		t.Fatal("expected block event to be ignored")
	}
}

//go:build linux

package connectivity

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"
	"golang.org/x/sys/unix"

	"rtsync/internal/logging"
)

const routeReadTimeout = 500 * time.Millisecond

// startPushSources subscribes to kernel link notifications. The bool result
// reports whether rtnetlink is active; udev alone does not see address
// changes, so polling stays on without it.
func startPushSources(ctx context.Context, logger *slog.Logger, nudge func(string)) (func(), bool) {
	var wg sync.WaitGroup
	routeOK := false

	fd, err := openRouteSocket()
	if err != nil {
		logging.WarnWithContext(logger, "rtnetlink unavailable; falling back to polling", "rtnetlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set connectivity.mode = \"poll\" to silence this warning"),
			logging.String(logging.FieldImpact, "transitions detected on the poll interval"),
		)
	} else {
		routeOK = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			readRouteEvents(ctx, fd, logger, nudge)
		}()
	}

	udev := new(netlink.UEventConn)
	if err := udev.Connect(netlink.UdevEvent); err != nil {
		logger.Debug("udev netlink unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "udev_connect_failed"),
		)
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			readUdevEvents(ctx, udev, logger, nudge)
		}()
	}

	return wg.Wait, routeOK
}

func openRouteSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_ROUTE)
	if err != nil {
		return -1, err
	}
	addr := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: unix.RTMGRP_LINK | unix.RTMGRP_IPV4_IFADDR | unix.RTMGRP_IPV6_IFADDR,
	}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	tv := unix.NsecToTimeval(routeReadTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// readRouteEvents owns fd and closes it on return. The receive timeout bounds
// how long cancellation takes to notice.
func readRouteEvents(ctx context.Context, fd int, logger *slog.Logger, nudge func(string)) {
	defer unix.Close(fd)
	buf := make([]byte, 1<<16)
	for ctx.Err() == nil {
		n, _, err := unix.Recvfrom(fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
				continue
			}
			if errors.Is(err, unix.ENOBUFS) {
				// Overrun: notifications were dropped, so re-read state.
				nudge("rtnetlink overrun")
				continue
			}
			logging.WarnWithContext(logger, "rtnetlink read failed", "rtnetlink_read_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "link changes only seen by polling or udev"),
			)
			return
		}
		if reason := routeReason(parseRouteMessages(buf[:n])); reason != "" {
			nudge(reason)
		}
	}
}

// parseRouteMessages returns the message types in a netlink datagram.
func parseRouteMessages(b []byte) []uint16 {
	var types []uint16
	for len(b) >= unix.NLMSG_HDRLEN {
		length := int(binary.NativeEndian.Uint32(b[0:4]))
		if length < unix.NLMSG_HDRLEN || length > len(b) {
			break
		}
		types = append(types, binary.NativeEndian.Uint16(b[4:6]))
		next := nlmAlign(length)
		if next >= len(b) {
			break
		}
		b = b[next:]
	}
	return types
}

func nlmAlign(n int) int {
	return (n + unix.NLMSG_ALIGNTO - 1) &^ (unix.NLMSG_ALIGNTO - 1)
}

func routeReason(types []uint16) string {
	reason := ""
	for _, typ := range types {
		switch typ {
		case unix.RTM_NEWLINK, unix.RTM_DELLINK:
			return "rtnetlink link"
		case unix.RTM_NEWADDR, unix.RTM_DELADDR:
			reason = "rtnetlink addr"
		}
	}
	return reason
}

func readUdevEvents(ctx context.Context, conn *netlink.UEventConn, logger *slog.Logger, nudge func(string)) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	quit := conn.Monitor(queue, errs, netMatcher())
	defer func() {
		close(quit)
		_ = conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-queue:
			logger.Debug("udev net event",
				logging.String("action", string(ev.Action)),
				logging.String("interface", ev.Env["INTERFACE"]),
			)
			nudge("udev " + string(ev.Action))
		case err := <-errs:
			logger.Debug("udev monitor error", logging.Error(err))
		}
	}
}

// netMatcher matches uevents for network interfaces.
func netMatcher() netlink.Matcher {
	action := "add|remove|move|change|online|offline"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}

package connectivity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Link is the sysfs view of one network interface.
type Link struct {
	Name      string
	OperState string
	Carrier   bool
	Physical  bool
}

// Up reports whether the link can carry traffic.
func (l Link) Up() bool {
	switch l.OperState {
	case "up":
		return true
	case "unknown":
		return l.Carrier
	default:
		return false
	}
}

// ReadLinks lists interfaces under root (normally /sys/class/net). When names
// is empty every non-loopback interface is returned; otherwise only the named
// ones are.
func ReadLinks(root string, names []string) ([]Link, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}
	want := make(map[string]struct{}, len(names))
	for _, name := range names {
		want[name] = struct{}{}
	}

	links := make([]Link, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if name == "lo" || strings.HasPrefix(name, ".") {
			continue
		}
		if len(want) > 0 {
			if _, ok := want[name]; !ok {
				continue
			}
		}
		dir := filepath.Join(root, name)
		link := Link{
			Name:      name,
			OperState: readAttr(dir, "operstate"),
			Carrier:   readAttr(dir, "carrier") == "1",
		}
		if _, err := os.Stat(filepath.Join(dir, "device")); err == nil {
			link.Physical = true
		}
		links = append(links, link)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].Name < links[j].Name })
	return links, nil
}

// readAttr returns the trimmed attribute or "" when unreadable. Reading
// carrier on a downed interface fails with EINVAL, which means no carrier.
func readAttr(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// hostOnlyPrefixes name virtual interfaces that bridge local guests and never
// carry an uplink by themselves.
var hostOnlyPrefixes = []string{"docker", "br-", "veth", "virbr", "ifb", "dummy"}

// HostOnly reports whether the link is a local bridge or pair endpoint.
// Physical devices never count as host-only.
func (l Link) HostOnly() bool {
	if l.Physical {
		return false
	}
	for _, prefix := range hostOnlyPrefixes {
		if strings.HasPrefix(l.Name, prefix) {
			return true
		}
	}
	return false
}

// linkVerdict decides online state from links. Host-only interfaces only
// count when they were named explicitly.
func linkVerdict(links []Link, explicit bool) (bool, string) {
	var up []string
	for _, link := range links {
		if !explicit && link.HostOnly() {
			continue
		}
		if link.Up() {
			up = append(up, link.Name)
		}
	}
	if len(up) == 0 {
		return false, "no interface up"
	}
	return true, "up: " + strings.Join(up, ",")
}

func isMissingSysfs(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

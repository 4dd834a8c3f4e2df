// Package connectivity reports whether the device can currently reach the
// network and announces online/offline transitions.
//
// Monitor derives link state from sysfs (operstate and carrier of physical
// interfaces) and re-evaluates whenever the kernel announces a link or
// address change over rtnetlink, when udev reports a network device being
// added or removed, or when the coarse poll ticker fires. An optional HTTP
// probe narrows "link up" to "server reachable". Events are edge-triggered:
// subscribers hear about transitions, never about repeated identical states.
//
// Manual is a stand-in for hosts without sysfs and for tests.
package connectivity

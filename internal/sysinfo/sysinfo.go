// Package sysinfo probes the host identity the /machine document
// reports. Everything is behind the Provider interface so handlers
// can be tested without touching /etc or /proc.
package sysinfo

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Provider supplies host identity facts.
type Provider interface {
	// MachineID is the installed system image's 128-bit id as 32
	// lowercase hex digits.
	MachineID() (string, error)
	// BootID is the current kernel boot's id, same rendering.
	BootID() (string, error)
	// Hostname is the cleaned host name.
	Hostname() (string, error)
	// OSPrettyName is the os-release PRETTY_NAME, or "Linux".
	OSPrettyName() string
	// Virtualization names the detected hypervisor or container
	// runtime, or "bare".
	Virtualization() string
}

// Host reads the real machine.
type Host struct{}

func (Host) MachineID() (string, error) {
	return readID("/etc/machine-id")
}

func (Host) BootID() (string, error) {
	return readID("/proc/sys/kernel/random/boot_id")
}

func (Host) Hostname() (string, error) {
	h, err := os.Hostname()
	if err != nil {
		return "", err
	}
	return CleanHostname(h), nil
}

func (Host) OSPrettyName() string {
	f, err := os.Open("/etc/os-release")
	if err != nil {
		return "Linux"
	}
	defer f.Close()

	if name := parseOSRelease(f, "PRETTY_NAME"); name != "" {
		return name
	}
	return "Linux"
}

func (Host) Virtualization() string {
	if v := readTrimmed("/run/systemd/container"); v != "" {
		return v
	}
	if v := readTrimmed("/sys/hypervisor/type"); v != "" {
		return v
	}
	vendor := strings.ToLower(readTrimmed("/sys/class/dmi/id/sys_vendor") + " " +
		readTrimmed("/sys/class/dmi/id/product_name"))
	for _, probe := range []struct{ marker, name string }{
		{"qemu", "qemu"},
		{"kvm", "kvm"},
		{"vmware", "vmware"},
		{"virtualbox", "oracle"},
		{"microsoft", "microsoft"},
		{"xen", "xen"},
	} {
		if strings.Contains(vendor, probe.marker) {
			return probe.name
		}
	}
	return "bare"
}

// readID reads a 128-bit id file, tolerating the dashed UUID form the
// kernel uses for the boot id.
func readID(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	id := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(string(b)), "-", ""))
	if len(id) != 32 {
		return "", fmt.Errorf("%s: malformed id %q", path, id)
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%s: malformed id %q", path, id)
		}
	}
	return id, nil
}

func readTrimmed(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// parseOSRelease extracts one key from an os-release stream. Values
// may be bare or quoted.
func parseOSRelease(r io.Reader, key string) string {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok || k != key {
			continue
		}
		v = strings.TrimSpace(v)
		if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
			v = v[1 : len(v)-1]
		}
		return v
	}
	return ""
}

// CleanHostname strips characters that have no business in a
// hostname and cuts trailing dots.
func CleanHostname(h string) string {
	var b strings.Builder
	for _, c := range h {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '-' || c == '_' || c == '.':
			b.WriteRune(c)
		}
	}
	return strings.TrimRight(b.String(), ".")
}

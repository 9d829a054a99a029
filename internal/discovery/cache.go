// Package discovery locates a New Nintendo 3DS's microSD Management applet
// on the local network: a cached address, WS-Discovery multicast, or an
// interactive fallback prompt.
package discovery

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

const cacheFileName = ".n3ds_smb_cache"

// cachePath returns the per-user discovery cache file path.
func cachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("discovery: resolve home directory: %w", err)
	}
	return filepath.Join(home, cacheFileName), nil
}

// loadCache returns the cached (ip, name), or zero values if the cache is
// missing, unreadable, or does not parse as "<ipv4> <name>".
func loadCache() (ip, name string) {
	path, err := cachePath()
	if err != nil {
		return "", ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", ""
	}
	fields := strings.Fields(strings.TrimSpace(string(data)))
	if len(fields) == 0 {
		return "", ""
	}
	if net.ParseIP(fields[0]) == nil {
		return "", ""
	}
	ip = fields[0]
	if len(fields) > 1 {
		name = fields[1]
	}
	return ip, name
}

// saveCache best-effort persists (ip, name) for next time.
func saveCache(ip, name string) {
	path, err := cachePath()
	if err != nil {
		return
	}
	_ = os.WriteFile(path, []byte(ip+" "+name), 0o644)
}

package discovery

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/JohnDeved/n3ds-smb/internal/logger"
	"github.com/JohnDeved/n3ds-smb/internal/netbios"
)

// ErrNotFound is returned when no discovery strategy locates a console and
// no interactive fallback is available.
var ErrNotFound = errors.New("discovery: 3DS not found on the network")

const (
	cacheProbeTimeout = 150 * time.Millisecond
	wsdProbeTimeout   = 3 * time.Second
	portProbeTimeout  = 150 * time.Millisecond
)

// Result is a located console's address and NetBIOS name.
type Result struct {
	IP     string
	Name   string
	Method string // "cached", "ws-discovery", or "manual"
}

// Discover runs the three-strategy discovery pipeline: cache validation,
// WS-Discovery multicast, then an interactive prompt. It refreshes the
// cache on success. Pass a nil prompt to disable the interactive fallback
// (discovery then fails with ErrNotFound once the first two strategies are
// exhausted), which is how headless deployments should call this.
func Discover(prompt func(ip string) (string, error)) (Result, error) {
	start := time.Now()

	if ip, name := loadCache(); ip != "" && name != "" && probeNetBIOS(ip, name, cacheProbeTimeout) {
		logger.Info("discovery succeeded", "method", "cached", "ip", ip, "name", name, "elapsed", time.Since(start))
		saveCache(ip, name)
		return Result{IP: ip, Name: name, Method: "cached"}, nil
	}

	if ip, name := wsDiscover(wsdProbeTimeout); ip != "" && name != "" {
		logger.Info("discovery succeeded", "method", "ws-discovery", "ip", ip, "name", name, "elapsed", time.Since(start))
		saveCache(ip, name)
		return Result{IP: ip, Name: name, Method: "ws-discovery"}, nil
	}

	cachedIP, _ := loadCache()
	var ip string
	if cachedIP != "" && portOpen(cachedIP, 139, portProbeTimeout) {
		ip = cachedIP
	}
	if ip == "" {
		return Result{}, fmt.Errorf("%w: ensure microSD Management is running and the device is on the same network", ErrNotFound)
	}
	if prompt == nil {
		return Result{}, fmt.Errorf("%w: found %s but could not auto-detect name", ErrNotFound, ip)
	}

	name, err := askName(ip, prompt)
	if err != nil {
		return Result{}, err
	}
	logger.Info("discovery succeeded", "method", "manual", "ip", ip, "name", name, "elapsed", time.Since(start))
	saveCache(ip, name)
	return Result{IP: ip, Name: name, Method: "manual"}, nil
}

// askName loops prompt until it returns a name this IP accepts over NetBIOS.
func askName(ip string, prompt func(ip string) (string, error)) (string, error) {
	for {
		name, err := prompt(ip)
		if err != nil {
			return "", fmt.Errorf("discovery: prompt for name: %w", err)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return "", fmt.Errorf("discovery: no name provided")
		}
		if probeNetBIOS(ip, name, 2*time.Second) {
			return name, nil
		}
		logger.Warn("discovery: name rejected by console", "ip", ip, "name", name)
	}
}

// probeNetBIOS reports whether ip accepts a NetBIOS session request for name.
func probeNetBIOS(ip, name string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(ip, "139"), timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	err = netbios.RequestSession(conn, name, "P")
	return err == nil
}

// portOpen reports whether a TCP connection to ip:port succeeds.
func portOpen(ip string, port int, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(ip, fmt.Sprintf("%d", port)), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

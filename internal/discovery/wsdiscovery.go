package discovery

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/ipv4"

	"github.com/JohnDeved/n3ds-smb/internal/logger"
)

const (
	wsdMulticastAddr = "239.255.255.250:3702"
	wsdMulticastTTL  = 2
	dpwsDefaultPort  = 5357
)

const probeXML = `<?xml version="1.0" encoding="utf-8"?><soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope" xmlns:wsa="http://schemas.xmlsoap.org/ws/2004/08/addressing" xmlns:wsd="http://schemas.xmlsoap.org/ws/2005/04/discovery" xmlns:wsdp="http://schemas.xmlsoap.org/ws/2006/02/devprof" xmlns:pub="http://schemas.microsoft.com/windows/pub/2005/07"><soap:Header><wsa:To>urn:schemas-xmlsoap-org:ws:2005:04:discovery</wsa:To><wsa:Action>http://schemas.xmlsoap.org/ws/2005/04/discovery/Probe</wsa:Action><wsa:MessageID>urn:uuid:%s</wsa:MessageID></soap:Header><soap:Body><wsd:Probe><wsd:Types>wsdp:Device pub:Computer</wsd:Types></wsd:Probe></soap:Body></soap:Envelope>`

const getXML = `<?xml version="1.0" encoding="utf-8"?><soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope" xmlns:wsa="http://schemas.xmlsoap.org/ws/2004/08/addressing"><soap:Header><wsa:To>%s</wsa:To><wsa:Action>http://schemas.xmlsoap.org/ws/2004/09/transfer/Get</wsa:Action><wsa:MessageID>urn:uuid:%s</wsa:MessageID><wsa:ReplyTo><wsa:Address>http://schemas.xmlsoap.org/ws/2004/08/addressing/role/anonymous</wsa:Address></wsa:ReplyTo></soap:Header><soap:Body/></soap:Envelope>`

// probeEnvelope and its nested types extract just enough of a WS-Discovery
// ProbeMatches response to identify responders; unrecognized elements and
// namespaces are ignored by encoding/xml's default matching.
type probeEnvelope struct {
	Header struct {
		Action string `xml:"Action"`
	} `xml:"Header"`
	Body struct {
		ProbeMatches struct {
			ProbeMatch []probeMatch `xml:"ProbeMatch"`
		} `xml:"ProbeMatches"`
	} `xml:"Body"`
}

type probeMatch struct {
	EndpointReference struct {
		Address string `xml:"Address"`
	} `xml:"EndpointReference"`
	XAddrs string `xml:"XAddrs"`
}

type probeResult struct {
	ip       string
	endpoint string
	xaddrs   string
}

// probeWSDiscovery sends one multicast Probe and collects ProbeMatches until
// timeout, yielding at most one result per responder IP.
func probeWSDiscovery(timeout time.Duration) ([]probeResult, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("discovery: open probe socket: %w", err)
	}
	defer conn.Close()

	if udp, ok := conn.(*net.UDPConn); ok {
		p := ipv4.NewPacketConn(udp)
		if err := p.SetMulticastTTL(wsdMulticastTTL); err != nil {
			logger.Debug("discovery: set multicast TTL failed", "error", err)
		}
	}

	dst, err := net.ResolveUDPAddr("udp4", wsdMulticastAddr)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolve multicast address: %w", err)
	}

	probe := fmt.Sprintf(probeXML, uuid.NewString())
	if _, err := conn.WriteTo([]byte(probe), dst); err != nil {
		return nil, fmt.Errorf("discovery: send probe: %w", err)
	}

	deadline := time.Now().Add(timeout)
	seen := make(map[string]bool)
	var results []probeResult

	buf := make([]byte, 65535)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		_ = conn.SetReadDeadline(deadline)
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			break
		}
		host, _, _ := net.SplitHostPort(addr.String())
		if seen[host] {
			continue
		}

		var env probeEnvelope
		if err := xml.Unmarshal(buf[:n], &env); err != nil {
			continue
		}
		if !strings.Contains(env.Header.Action, "ProbeMatches") {
			continue
		}
		for _, pm := range env.Body.ProbeMatches.ProbeMatch {
			if pm.EndpointReference.Address == "" || strings.TrimSpace(pm.XAddrs) == "" {
				continue
			}
			seen[host] = true
			results = append(results, probeResult{
				ip:       host,
				endpoint: pm.EndpointReference.Address,
				xaddrs:   strings.TrimSpace(pm.XAddrs),
			})
			break
		}
	}
	return results, nil
}

var xaddrsPattern = regexp.MustCompile(`^https?://([^:/]+):?(\d+)?(/.*)?$`)

// scanMetadataFields walks every element in a WS-Discovery Get response by
// local name (ignoring namespace prefixes, which vary across device
// implementations) and collects the text of the elements this client cares
// about, wherever they are nested under the Metadata/MetadataSection tree.
func scanMetadataFields(data []byte) (manufacturer, friendlyName, computer string) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var current string
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			current = t.Name.Local
		case xml.CharData:
			switch current {
			case "Manufacturer":
				manufacturer += string(t)
			case "FriendlyName":
				friendlyName += string(t)
			case "Computer":
				computer += string(t)
			}
		case xml.EndElement:
			current = ""
		}
	}
	return manufacturer, friendlyName, computer
}

// fetchMetadata issues a SOAP Transfer/Get HTTP POST against xaddrs and
// extracts the NetBIOS computer name plus whether the device identifies
// itself as a Nintendo 3DS.
func fetchMetadata(ip, endpoint, xaddrs string, timeout time.Duration) (name string, is3DS bool) {
	m := xaddrsPattern.FindStringSubmatch(xaddrs)
	if m == nil {
		return "", false
	}
	host := m[1]
	port := dpwsDefaultPort
	if m[2] != "" {
		if p, err := strconv.Atoi(m[2]); err == nil {
			port = p
		}
	}
	path := m[3]
	if path == "" {
		path = "/"
	}

	body := fmt.Sprintf(getXML, endpoint, uuid.NewString())
	req := fmt.Sprintf(
		"POST %s HTTP/1.1\r\nHost: %s:%d\r\nContent-Type: application/soap+xml; charset=utf-8\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		path, host, port, len(body), body,
	)

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(ip, strconv.Itoa(port)), timeout)
	if err != nil {
		return "", false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	if _, err := conn.Write([]byte(req)); err != nil {
		return "", false
	}
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	var raw bytes.Buffer
	if _, err := raw.ReadFrom(resp.Body); err != nil {
		return "", false
	}

	xmlStart := bytes.Index(raw.Bytes(), []byte("<?xml"))
	if xmlStart < 0 {
		return "", false
	}

	manufacturer, friendlyName, computer := scanMetadataFields(raw.Bytes()[xmlStart:])
	if strings.Contains(manufacturer, "Nintendo") {
		is3DS = true
	}
	if strings.Contains(friendlyName, "3DS") {
		is3DS = true
	}
	if computer != "" {
		name = strings.SplitN(computer, "/", 2)[0]
	}
	return name, is3DS
}

// wsDiscover runs the full WS-Discovery strategy: multicast probe, then
// metadata fetch per responder, stopping at the first confirmed 3DS.
func wsDiscover(timeout time.Duration) (ip, name string) {
	results, err := probeWSDiscovery(timeout)
	if err != nil {
		logger.Debug("discovery: WS-Discovery probe failed", "error", err)
		return "", ""
	}
	for _, r := range results {
		n, is3DS := fetchMetadata(r.ip, r.endpoint, r.xaddrs, 2*time.Second)
		if n != "" && is3DS {
			return r.ip, n
		}
	}
	return "", ""
}

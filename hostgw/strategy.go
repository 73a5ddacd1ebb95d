package hostgw

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Route flag bits from <linux/route.h>.
const (
	rtfUp      = 0x0001
	rtfGateway = 0x0002
)

// defaultRouteDest is the destination column value marking the default route.
const defaultRouteDest = "00000000"

// Strategy is a single host resolution tactic. Probe returns the resolved
// address or an error; the Resolver walks its strategies in order and uses
// the first success.
type Strategy struct {
	// Name identifies the strategy in logs.
	Name string

	// Probe attempts the resolution. It must not block beyond ctx.
	Probe func(ctx context.Context) (string, error)
}

// RouteTable returns a strategy that reads the default gateway from a Linux
// kernel routing table (normally /proc/net/route). The gateway column holds
// the address as little-endian hex, so the bytes are reversed before
// rendering the dotted quad.
func RouteTable(path string) Strategy {
	return Strategy{
		Name: "route-table",
		Probe: func(_ context.Context) (string, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("read route table: %w", err)
			}

			lines := strings.Split(string(data), "\n")

			// First line is the column header.
			for _, line := range lines[1:] {
				fields := strings.Fields(line)
				if len(fields) < 4 {
					continue
				}

				flags, err := strconv.ParseUint(fields[3], 16, 32)
				if err != nil {
					continue
				}

				// The default route has destination 00000000 and must be up
				// and point at a gateway (RTF_UP|RTF_GATEWAY).
				if fields[1] != defaultRouteDest || flags&(rtfUp|rtfGateway) != rtfUp|rtfGateway {
					continue
				}

				gw, err := strconv.ParseUint(fields[2], 16, 32)
				if err != nil {
					continue
				}

				ip := net.IPv4(byte(gw), byte(gw>>8), byte(gw>>16), byte(gw>>24))

				return ip.String(), nil
			}

			return "", errors.New("no default gateway route")
		},
	}
}

// DNSLookup returns a strategy that resolves host via DNS, preferring the
// first IPv4 address.
func DNSLookup(host string) Strategy {
	return Strategy{
		Name: "dns-lookup",
		Probe: func(ctx context.Context) (string, error) {
			addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return "", fmt.Errorf("lookup %s: %w", host, err)
			}

			if len(addrs) == 0 {
				return "", fmt.Errorf("lookup %s: no addresses", host)
			}

			for _, addr := range addrs {
				if ip4 := addr.IP.To4(); ip4 != nil {
					return ip4.String(), nil
				}
			}

			return addrs[0].IP.String(), nil
		},
	}
}

// UDPProbe returns a strategy that opens a UDP socket towards target and
// reads back the locally bound source address. Connecting a UDP socket only
// fixes the route; no packets are sent.
func UDPProbe(target string) Strategy {
	return Strategy{
		Name: "udp-probe",
		Probe: func(ctx context.Context) (string, error) {
			var d net.Dialer

			conn, err := d.DialContext(ctx, "udp4", target)
			if err != nil {
				return "", fmt.Errorf("udp probe %s: %w", target, err)
			}
			defer conn.Close()

			local, ok := conn.LocalAddr().(*net.UDPAddr)
			if !ok {
				return "", fmt.Errorf("udp probe %s: unexpected local address %T", target, conn.LocalAddr())
			}

			return local.IP.String(), nil
		},
	}
}

// Static returns a strategy that always yields addr. Useful as the terminal
// entry of a custom chain.
func Static(addr string) Strategy {
	return Strategy{
		Name:  "static",
		Probe: func(context.Context) (string, error) { return addr, nil },
	}
}

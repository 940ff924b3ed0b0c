package probe

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DNSClass is the coarse reason a host does or does not resolve.
type DNSClass string

const (
	DNSResolves    DNSClass = "RESOLVES"
	DNSNoAddress   DNSClass = "NO_A_RECORD" // zone exists, no A/AAAA
	DNSNXDomain    DNSClass = "NXDOMAIN"
	DNSServfail    DNSClass = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName DNSClass = "INVALID_NAME"
)

const defaultDNSTimeout = 3 * time.Second

// Resolver is the part of *net.Resolver the diagnosis uses.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

type DNSStatus struct {
	Domain        string
	Class         DNSClass
	IPs           []net.IP
	CNAME         string
	Nameservers   []string
	ResolverError string
}

// Fields renders the status for a structured log line.
func (s DNSStatus) Fields() []zap.Field {
	return []zap.Field{
		zap.String("domain", s.Domain),
		zap.String("class", string(s.Class)),
		zap.Int("addresses", len(s.IPs)),
		zap.Strings("nameservers", s.Nameservers),
		zap.String("cname", s.CNAME),
		zap.String("resolver_error", s.ResolverError),
	}
}

// CheckDNS classifies why a host may be unreachable using the OS resolver.
// It is a diagnostic only and never influences probe results.
func CheckDNS(ctx context.Context, domain string) DNSStatus {
	return diagnoseDNS(ctx, net.DefaultResolver, domain, defaultDNSTimeout)
}

func diagnoseDNS(parent context.Context, r Resolver, domain string, timeout time.Duration) DNSStatus {
	s := DNSStatus{Domain: strings.TrimSpace(domain)}
	if s.Domain == "" || strings.Contains(s.Domain, "://") || strings.ContainsAny(s.Domain, " /") {
		s.Class = DNSInvalidName
		return s
	}

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ips, ipErr := r.LookupIP(ctx, "ip", s.Domain)
	s.IPs = ips
	if ipErr != nil {
		s.ResolverError = ipErr.Error()
	}
	if cname, err := r.LookupCNAME(ctx, s.Domain); err == nil && !strings.EqualFold(cname, s.Domain+".") {
		s.CNAME = strings.TrimSuffix(cname, ".")
	}
	if ns, err := r.LookupNS(ctx, s.Domain); err == nil {
		for _, n := range ns {
			s.Nameservers = append(s.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
	}

	s.Class = classify(len(ips) > 0, len(s.Nameservers) > 0, ipErr)
	return s
}

func classify(hasAddr, hasNS bool, ipErr error) DNSClass {
	if hasAddr {
		return DNSResolves
	}
	if hasNS {
		return DNSNoAddress
	}
	var de *net.DNSError
	switch {
	case ipErr == nil:
		return DNSNXDomain
	case errors.As(ipErr, &de) && de.IsNotFound:
		return DNSNXDomain
	default:
		return DNSServfail
	}
}

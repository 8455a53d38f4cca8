package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"
)

// LookupFunc resolves a hostname to its addresses. Production code uses the
// default resolver; tests inject fixed answers.
type LookupFunc func(ctx context.Context, host string) ([]net.IP, error)

// Outcome is the result of a successful validation: the first resolved address
// that passed every check, plus the original hostname for the Host header.
type Outcome struct {
	IP       net.IP
	Hostname string
}

// URLValidator is the decision interface the Fetcher depends on.
type URLValidator interface {
	Validate(ctx context.Context, rawURL string) (*Outcome, error)
}

// Hostname literals rejected without touching DNS.
var blockedLiterals = map[string]string{
	"localhost": "loopback address",
	"127.0.0.1": "loopback address",
	"::1":       "loopback address",
	"0.0.0.0":   "unspecified address",
	"127.0.1.1": "loopback address",
}

// Textual prefixes rejected before resolution. Resolved addresses are still
// classified range by range; this is only a fast path.
var blockedPrefixes = []string{"127.", "192.168.", "10."}

// Ranges the standard library has no predicate for. 169.254.0.0/16 and the
// RFC 1918 blocks are covered by net.IP methods.
var reservedNets = mustParseCIDRs(
	"0.0.0.0/8",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"240.0.0.0/4",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("bad reserved range %q: %v", c, err))
		}
		nets = append(nets, n)
	}
	return nets
}

// Validator rejects URLs whose target is not a publicly routable host.
type Validator struct {
	lookup     LookupFunc
	dnsTimeout time.Duration
	logger     *slog.Logger
}

// ValidatorOption customizes a Validator.
type ValidatorOption func(*Validator)

// WithLookup replaces the DNS resolution function.
func WithLookup(fn LookupFunc) ValidatorOption {
	return func(v *Validator) {
		v.lookup = fn
	}
}

// NewValidator creates a Validator with the given DNS resolution budget.
func NewValidator(dnsTimeout time.Duration, logger *slog.Logger, opts ...ValidatorOption) *Validator {
	if dnsTimeout <= 0 {
		dnsTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	v := &Validator{
		lookup: func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip", host)
		},
		dnsTimeout: dnsTimeout,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks a candidate URL. On success it returns the first resolved
// address in resolver order; the hostname is only accepted when every resolved
// address is safe, so a DNS answer mixing public and private addresses is
// rejected outright.
func (v *Validator) Validate(ctx context.Context, rawURL string) (*Outcome, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("malformed URL: %v", err)}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, &ValidationError{Reason: fmt.Sprintf("scheme %q is not allowed, only http and https", u.Scheme)}
	}

	hostname := u.Hostname()
	if hostname == "" {
		return nil, &ValidationError{Reason: "URL has no hostname"}
	}

	lower := strings.ToLower(hostname)
	if reason, blocked := blockedLiterals[lower]; blocked {
		return nil, &ValidationError{Reason: fmt.Sprintf("hostname %q is a %s", hostname, reason)}
	}
	for _, prefix := range blockedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return nil, &ValidationError{Reason: fmt.Sprintf("hostname %q is in a private address range", hostname)}
		}
	}

	resolveCtx, cancel := context.WithTimeout(ctx, v.dnsTimeout)
	defer cancel()

	ips, err := v.lookup(resolveCtx, hostname)
	if err != nil {
		if resolveCtx.Err() == context.DeadlineExceeded {
			return nil, &ValidationError{Reason: fmt.Sprintf("DNS resolution for %q timed out after %s", hostname, v.dnsTimeout)}
		}
		return nil, &ValidationError{Reason: fmt.Sprintf("DNS resolution for %q failed: %v", hostname, err)}
	}
	if len(ips) == 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf("hostname %q resolved to no addresses", hostname)}
	}

	for _, ip := range ips {
		if reason := classifyUnsafe(ip); reason != "" {
			v.logger.Warn("rejected URL with unsafe resolved address",
				"hostname", hostname, "ip", ip.String(), "reason", reason)
			return nil, &ValidationError{Reason: fmt.Sprintf("hostname %q resolves to %s (%s)", hostname, ip, reason)}
		}
	}

	return &Outcome{IP: ips[0], Hostname: hostname}, nil
}

// classifyUnsafe returns a non-empty reason when the address must not be
// fetched from. Link-local is checked before the private-range check since
// 169.254.0.0/16 is not part of RFC 1918.
func classifyUnsafe(ip net.IP) string {
	switch {
	case ip.IsUnspecified():
		return "unspecified address"
	case ip.IsLoopback():
		return "loopback address"
	case ip.IsLinkLocalUnicast():
		return "link-local address"
	case ip.IsMulticast(), ip.IsLinkLocalMulticast(), ip.IsInterfaceLocalMulticast():
		return "multicast address"
	case ip.IsPrivate():
		return "private address"
	}
	for _, n := range reservedNets {
		if n.Contains(ip) {
			return "reserved address"
		}
	}
	return ""
}

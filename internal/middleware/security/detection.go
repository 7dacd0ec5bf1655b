package security

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
)

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousRequests int64
	AllowedCrawlers    int64
}

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"base64", "0x", "etc/passwd", "cmd.exe",
	}

	suspiciousAgents = []string{
		"sqlmap", "nmap", "nikto", "gobuster", "dirb",
		"curl", "wget", "python-requests", "scanner",
		"bot", "crawler", "spider", "scraper",
	}

	// Search engines and Go HTTP clients pass the agent check even though
	// their user agents contain "bot".
	allowedAgents = []string{
		"googlebot", "bingbot", "duckduckbot", "go-http-client",
	}

	unusualMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}
)

const maxURLLength = 2048

// Detector handles suspicious request detection and client identification
// behind trusted proxies.
type Detector struct {
	suspicious     atomic.Int64
	allowed        atomic.Int64
	trustedProxies []*net.IPNet
}

// NewDetector creates a detector trusting loopback and private networks.
func NewDetector() *Detector {
	return &Detector{
		trustedProxies: []*net.IPNet{
			parseCIDR("127.0.0.0/8"),
			parseCIDR("::1/128"),
			parseCIDR("10.0.0.0/8"),
			parseCIDR("172.16.0.0/12"),
			parseCIDR("192.168.0.0/16"),
		},
	}
}

func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// DetectSuspiciousRequest reports whether r matches an attack pattern or a
// scanner user agent.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	suspicious := containsAny(strings.ToLower(r.URL.Path), suspiciousPatterns) ||
		containsAny(strings.ToLower(unescapedQuery(r.URL.RawQuery)), suspiciousPatterns) ||
		d.suspiciousAgent(r.Header.Get("User-Agent")) ||
		len(r.URL.String()) > maxURLLength

	for _, method := range unusualMethods {
		if r.Method == method {
			suspicious = true
		}
	}

	// More than five proxy hops suggests header manipulation.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" && r.Header.Get("X-Real-IP") != "" {
		if strings.Count(xff, ",") > 5 {
			suspicious = true
		}
	}

	if suspicious {
		d.suspicious.Add(1)
	}
	return suspicious
}

func (d *Detector) suspiciousAgent(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	if containsAny(ua, allowedAgents) {
		d.allowed.Add(1)
		return false
	}
	return containsAny(ua, suspiciousAgents)
}

func unescapedQuery(raw string) string {
	if q, err := url.QueryUnescape(raw); err == nil {
		return q
	}
	return raw
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Middleware rejects suspicious requests with 403 before they reach a handler.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Request blocked",
				"component", "security",
				"client_ip", d.ExtractClientIP(r),
				"method", r.Method,
				"path", r.URL.Path,
				"user_agent", r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Request blocked"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP extracts the real client IP, honouring forwarded headers
// only when the direct peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsedDirectIP := net.ParseIP(directIP)
	if parsedDirectIP == nil || !d.isTrustedProxy(parsedDirectIP) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		clientIP := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(clientIP) != nil {
			return clientIP
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

// FromTrustedProxy reports whether the direct peer may assert forwarded
// headers such as identity or client address.
func (d *Detector) FromTrustedProxy(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && d.isTrustedProxy(ip)
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: d.suspicious.Load(),
		AllowedCrawlers:    d.allowed.Load(),
	}
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort  string
	LogLevel string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int

	JWTSecret string

	// PublicBaseURL is the origin approval links point at.
	PublicBaseURL     string
	RequiredApprovals int

	MailAPIURL            string
	MailServiceID         string
	MailPublicKey         string
	MailTemplateApproval  string
	MailTemplateInvite    string
	MailTemplateCode      string
	MailTemplateCompleted string
	MailTimeout           time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	ApprovalMaxAttempts int
	ApprovalWindow      time.Duration
	ApprovalLockout     time.Duration

	// TrustedProxies lists the CIDRs allowed to set X-Forwarded-For.
	// Empty means the peer address is the client address.
	TrustedProxies []string
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getsecs(k string, d int) time.Duration {
	return time.Duration(getint(k, d)) * time.Second
}

// Load reads the process environment, after merging an optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		AppPort:   getenv("APP_PORT", "8080"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "vaults"),
		MySQLUser: getenv("MYSQL_USER", "vaults"),
		MySQLPass: getenv("MYSQL_PASS", "vaults"),

		RedisAddr:    getenv("REDIS_ADDR", "redis:6379"),
		RedisDB:      getint("REDIS_DB", 0),
		IdempTTLSecs: getint("IDEMPOTENCY_TTL_SECONDS", 300),

		JWTSecret: os.Getenv("JWT_SECRET"),

		PublicBaseURL:     strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		RequiredApprovals: getint("REQUIRED_APPROVALS", 2),

		MailAPIURL:            getenv("MAIL_API_URL", "https://api.emailjs.com/api/v1.0/email/send"),
		MailServiceID:         os.Getenv("MAIL_SERVICE_ID"),
		MailPublicKey:         os.Getenv("MAIL_PUBLIC_KEY"),
		MailTemplateApproval:  getenv("MAIL_TEMPLATE_APPROVAL", "withdrawal_approval"),
		MailTemplateInvite:    getenv("MAIL_TEMPLATE_INVITE", "trusted_party_invite"),
		MailTemplateCode:      getenv("MAIL_TEMPLATE_ACCESS_CODE", "trusted_party_access_code"),
		MailTemplateCompleted: getenv("MAIL_TEMPLATE_COMPLETED", "withdrawal_approved"),
		MailTimeout:           getsecs("MAIL_TIMEOUT_SECONDS", 10),

		KafkaTopic: getenv("KAFKA_TOPIC", "vault.withdrawals"),

		ApprovalMaxAttempts: getint("APPROVAL_MAX_ATTEMPTS", 5),
		ApprovalWindow:      getsecs("APPROVAL_ATTEMPT_WINDOW_SECONDS", 900),
		ApprovalLockout:     getsecs("APPROVAL_LOCKOUT_SECONDS", 1800),
	}
	c.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))
	c.TrustedProxies = splitList(os.Getenv("TRUSTED_PROXIES"))
	return c
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
		return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
	}
	// ensure port is valid
	if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
		return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	if u, err := url.Parse(c.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid PUBLIC_BASE_URL %q", c.PublicBaseURL)
	}
	if c.RequiredApprovals < 1 {
		return errors.New("REQUIRED_APPROVALS must be >= 1")
	}
	if c.ApprovalMaxAttempts < 1 {
		return errors.New("APPROVAL_MAX_ATTEMPTS must be >= 1")
	}
	if _, err := c.TrustedProxyNets(); err != nil {
		return err
	}
	return nil
}

// TrustedProxyNets parses TrustedProxies; a bare IP is taken as a single host.
func (c *Config) TrustedProxyNets() ([]*net.IPNet, error) {
	out := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q", raw)
			}
			bits := 8 * net.IPv6len
			if ip.To4() != nil {
				ip, bits = ip.To4(), 8*net.IPv4len
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", raw, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func (c *Config) IdempotencyTTL() time.Duration { return time.Duration(c.IdempTTLSecs) * time.Second }

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

package access

import (
	"os"
	"strconv"
	"strings"
)

// ConfigValues is a plain struct implementation of Config for applications
// that do not carry their own configuration layer.
type ConfigValues struct {
	SigningKey            string
	SigningMethod         string
	Issuer                string
	Audience              []string
	AdminTokenExpiration  int
	MemberTokenExpiration int
	SessionSecret         string
	CookieName            string
	ContextKey            string
	SecureCookies         bool
}

func (c *ConfigValues) GetSigningKey() string { return c.SigningKey }

func (c *ConfigValues) GetSigningMethod() string {
	if c.SigningMethod == "" {
		return "HS256"
	}
	return c.SigningMethod
}

func (c *ConfigValues) GetIssuer() string      { return c.Issuer }
func (c *ConfigValues) GetAudience() []string  { return c.Audience }
func (c *ConfigValues) GetSessionSecret() string { return c.SessionSecret }
func (c *ConfigValues) GetCookieName() string  { return c.CookieName }
func (c *ConfigValues) GetContextKey() string  { return c.ContextKey }
func (c *ConfigValues) GetSecureCookies() bool { return c.SecureCookies }

func (c *ConfigValues) GetAdminTokenExpiration() int {
	if c.AdminTokenExpiration <= 0 {
		return DefaultAdminTokenExpiration
	}
	return c.AdminTokenExpiration
}

func (c *ConfigValues) GetMemberTokenExpiration() int {
	if c.MemberTokenExpiration <= 0 {
		return DefaultMemberTokenExpiration
	}
	return c.MemberTokenExpiration
}

var _ Config = (*ConfigValues)(nil)

// ConfigFromEnv reads configuration from the process environment. Missing
// secrets are not an error here; they surface as fatal configuration errors
// on first use of the signing or sealing path.
func ConfigFromEnv() *ConfigValues {
	return &ConfigValues{
		SigningKey:            os.Getenv("ACCESS_SIGNING_KEY"),
		SigningMethod:         os.Getenv("ACCESS_SIGNING_METHOD"),
		Issuer:                os.Getenv("ACCESS_ISSUER"),
		Audience:              splitEnvList(os.Getenv("ACCESS_AUDIENCE")),
		AdminTokenExpiration:  envInt("ACCESS_ADMIN_TOKEN_HOURS"),
		MemberTokenExpiration: envInt("ACCESS_MEMBER_TOKEN_HOURS"),
		SessionSecret:         os.Getenv("ACCESS_SESSION_SECRET"),
		CookieName:            os.Getenv("ACCESS_COOKIE_NAME"),
		ContextKey:            os.Getenv("ACCESS_CONTEXT_KEY"),
		SecureCookies:         envBool("ACCESS_SECURE_COOKIES"),
	}
}

func splitEnvList(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return false
	}
	return b
}

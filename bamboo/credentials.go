package bamboo

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Credentials hold the account used for basic authentication against the
// Bamboo server. When loaded from the environment they come from BAMBOO_USER
// and BAMBOO_PASS.
type Credentials struct {
	Username string
	Password string
}

// envCredentials has no envconfig tags so that only the prefixed variables
// are read, never USER or PASS.
type envCredentials struct {
	User string
	Pass string
}

// Complete reports whether both a username and a password are set.
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}

// LoadCredentials reads the default credentials from the environment. Missing
// values never fail; they are left empty so callers can set them later.
func LoadCredentials() Credentials {
	var c envCredentials
	if err := envconfig.Process("bamboo", &c); err != nil {
		log.Warn().Err(err).Msg("Unable to read Bamboo credentials from the environment")
		return Credentials{}
	}
	return Credentials{Username: c.User, Password: c.Pass}
}

// SetCredentials replaces the account used for basic authentication.
func (c *Client) SetCredentials(creds Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credentials = creds
}

// Credentials returns the account used for basic authentication.
func (c *Client) Credentials() Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.credentials
}

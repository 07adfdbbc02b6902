package auth

import "golang.org/x/oauth2/clientcredentials"

// Conf represents the configuration needed for authentication against the
// ranking oracle's token endpoint. It includes the client ID, client secret,
// and the token URL.
type Conf struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthURL      string `json:"auth_url"`
}

// Configured reports whether client-credentials auth is set up.
func (c Conf) Configured() bool {
	return c.ClientID != "" && c.AuthURL != ""
}

func (c *Conf) toOauth2Config() clientcredentials.Config {
	return clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.AuthURL,
	}
}

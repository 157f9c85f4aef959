package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AuthConfig configures the auth-service provisioning client.
type AuthConfig struct {
	AdminURL       string        `env:"AUTH_ADMIN_URL,required"`
	ServiceToken   string        `env:"AUTH_SERVICE_TOKEN,required"`
	RequestTimeout time.Duration `env:"AUTH_REQUEST_TIMEOUT" envDefault:"10s"`
}

// AuthProvisioner implements IdentityProvisioner against the auth service's
// admin API. Creating the identity there fires the store-side trigger that
// materializes the profile row; this client never writes profiles itself.
type AuthProvisioner struct {
	cfg    AuthConfig
	client *http.Client
}

// NewAuthProvisioner creates an auth-service provisioning client.
func NewAuthProvisioner(cfg AuthConfig) (*AuthProvisioner, error) {
	if cfg.AdminURL == "" {
		return nil, fmt.Errorf("auth admin URL is required")
	}
	if cfg.ServiceToken == "" {
		return nil, fmt.Errorf("auth service token is required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AuthProvisioner{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Provision implements IdentityProvisioner. The admin API treats an existing
// identity as success, so racing redeliveries for the same email are safe.
func (p *AuthProvisioner) Provision(ctx context.Context, emailAddr string) error {
	body, err := json.Marshal(map[string]any{
		"email":         emailAddr,
		"email_confirm": true,
	})
	if err != nil {
		return fmt.Errorf("encode provision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.AdminURL+"/admin/users", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build provision request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.ServiceToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("provision identity: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict, resp.StatusCode == http.StatusUnprocessableEntity:
		// Identity already exists; the poll will find its profile row.
		return nil
	default:
		return fmt.Errorf("provision identity: auth service returned %d", resp.StatusCode)
	}
}

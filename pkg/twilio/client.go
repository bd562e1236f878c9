package twilio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	twilio "github.com/twilio/twilio-go"

	"github.com/tabletalk-ai/tabletalk-backend/pkg/config"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/logger"
)

var (
	errAccountSIDRequired = errors.New("twilio account sid is required")
	errAuthTokenRequired  = errors.New("twilio auth token is required")
)

// Client wraps Twilio's REST client plus the search country used when
// provisioning numbers.
type Client struct {
	api     *twilio.RestClient
	country string
}

// NewClient initializes the Twilio REST client with the configured credentials.
func NewClient(ctx context.Context, cfg config.TwilioConfig, logg *logger.Logger) (*Client, error) {
	accountSID := strings.TrimSpace(cfg.AccountSID)
	if accountSID == "" {
		return nil, errAccountSIDRequired
	}
	if !strings.HasPrefix(accountSID, "AC") {
		return nil, fmt.Errorf("twilio account sid must start with AC")
	}

	authToken := strings.TrimSpace(cfg.AuthToken)
	if authToken == "" {
		return nil, errAuthTokenRequired
	}

	api := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	country := strings.ToUpper(strings.TrimSpace(cfg.Country))
	if country == "" {
		country = "GB"
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("twilio client initialized (%s)", country))
	}

	return &Client{api: api, country: country}, nil
}

// API returns the underlying Twilio REST client.
func (c *Client) API() *twilio.RestClient {
	if c == nil {
		return nil
	}
	return c.api
}

// Country reports the ISO country used for number searches.
func (c *Client) Country() string {
	if c == nil {
		return ""
	}
	return c.country
}

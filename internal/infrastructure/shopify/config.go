package shopify

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds configuration for the Shopify Admin API
type Config struct {
	// Domain is the shop domain, e.g. example.myshopify.com
	Domain string
	// AccessToken is the Admin API access token
	AccessToken string
	// APIVersion is the Admin API version, e.g. 2023-04
	APIVersion string
	// BaseURL overrides https://<Domain>; used by tests
	BaseURL string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
	// DetailDelay spaces out per-product GraphQL queries. Zero disables spacing.
	DetailDelay time.Duration
}

const (
	// DefaultAPIVersion is the Admin API version the importers were written against
	DefaultAPIVersion = "2023-04"
	// DefaultTimeout is the HTTP request timeout when none is configured
	DefaultTimeout = 60 * time.Second
)

// Errors for Shopify configuration
var (
	ErrConfigMissingDomain      = errors.New("shopify: shop domain is required")
	ErrConfigMissingAccessToken = errors.New("shopify: access token is required")
)

// NewConfig creates a Shopify configuration with defaults
func NewConfig(domain, accessToken string) *Config {
	return &Config{
		Domain:      domain,
		AccessToken: accessToken,
		APIVersion:  DefaultAPIVersion,
		Timeout:     DefaultTimeout,
	}
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.Domain == "" && c.BaseURL == "" {
		return ErrConfigMissingDomain
	}
	if c.AccessToken == "" {
		return ErrConfigMissingAccessToken
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.BaseURL == "" {
		domain := strings.TrimPrefix(strings.TrimPrefix(c.Domain, "https://"), "http://")
		c.BaseURL = "https://" + strings.TrimSuffix(domain, "/")
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	return nil
}

// RESTURL returns the URL of a REST resource, e.g. RESTURL("orders") for orders.json
func (c *Config) RESTURL(resource string) string {
	return fmt.Sprintf("%s/admin/api/%s/%s.json", c.BaseURL, c.APIVersion, resource)
}

// GraphQLURL returns the GraphQL endpoint
func (c *Config) GraphQLURL() string {
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", c.BaseURL, c.APIVersion)
}

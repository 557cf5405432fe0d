package httpclient

import "context"

// HTTPClientInterface is the set of calls backends make against a REST service.
type HTTPClientInterface interface {
	// ResolveURL returns the absolute URL for a resource path.
	ResolveURL(path string) (string, error)

	// DoRequest sends an arbitrary request. See HTTPClient.DoRequest for the
	// Response/error contract.
	DoRequest(ctx context.Context, opts RequestOptions) (*Response, error)

	CreateResource(ctx context.Context, resourcePath string, data []byte) (*Response, error)
	UpdateResource(ctx context.Context, resourcePath string, data []byte) (*Response, error)
	DeleteResource(ctx context.Context, resourcePath string) (*Response, error)
	ListResources(ctx context.Context, resourcePath string, queryParams map[string]string) (*Response, error)
}

var _ HTTPClientInterface = &HTTPClient{}

// StaticConfig is a Configurator with fixed values.
type StaticConfig struct {
	ServerURL string
	APIKey    string
}

func (s StaticConfig) GetServerURL() string { return s.ServerURL }
func (s StaticConfig) GetAPIKey() string    { return s.APIKey }

// Package credentials provides the credential variants used to open a
// storage backend and the providers that hand them to a browser session.
package credentials

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/damacus/iron-folders/internal/fserrors"
)

// Service identities
const (
	ServiceAWS    = "aws"
	ServiceWasabi = "wasabi"
	ServiceAzure  = "azure"
	ServiceMinio  = "minio"
)

// KnownServices lists the service identities in display order
func KnownServices() []string {
	return []string{ServiceAWS, ServiceWasabi, ServiceAzure, ServiceMinio}
}

// ExpectsURL reports whether service is configured with a URL instead of keys
func ExpectsURL(service string) bool {
	return service == ServiceAzure
}

// Credentials is either Keyed or URL. Exactly one shape is active per
// service identity.
type Credentials interface {
	Kind() string
}

// Kinds of credentials
const (
	KindKeyed = "keyed"
	KindURL   = "url"
)

// Keyed holds access-key style credentials for S3-compatible services
type Keyed struct {
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
	Bucket    string `json:"bucketName,omitempty"`
	Region    string `json:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
}

func (Keyed) Kind() string { return KindKeyed }

// URL holds a pre-authorized URL, e.g. an Azure SAS URL
type URL struct {
	URL string `json:"url"`
}

func (URL) Kind() string { return KindURL }

// Validate checks that creds carries what service needs
func Validate(service string, creds Credentials) error {
	switch c := creds.(type) {
	case Keyed:
		if ExpectsURL(service) {
			return fmt.Errorf("%s expects a URL, got keys", service)
		}
		if c.AccessKey == "" || c.SecretKey == "" {
			return fmt.Errorf("%s: access key and secret key are required", service)
		}
		if service == ServiceMinio && c.Endpoint == "" {
			return fmt.Errorf("%s: endpoint is required", service)
		}
	case URL:
		if !ExpectsURL(service) {
			return fmt.Errorf("%s expects keys, got a URL", service)
		}
		if strings.TrimSpace(c.URL) == "" {
			return fmt.Errorf("%s: url is required", service)
		}
	case nil:
		return fserrors.ErrMissingCredentials
	default:
		return fmt.Errorf("%s: unsupported credentials %T", service, creds)
	}
	return nil
}

// Provider hands out the stored credentials of a service.
// GetConfig returns fserrors.ErrMissingCredentials when nothing is stored.
type Provider interface {
	GetConfig(ctx context.Context, service string) (Credentials, error)
}

// Static is an in-memory Provider
type Static struct {
	mu      sync.RWMutex
	entries map[string]Credentials
}

// NewStatic creates a provider seeded with entries
func NewStatic(entries map[string]Credentials) *Static {
	s := &Static{entries: make(map[string]Credentials, len(entries))}
	for k, v := range entries {
		s.entries[k] = v
	}
	return s
}

func (s *Static) GetConfig(_ context.Context, service string) (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	creds, ok := s.entries[service]
	if !ok {
		return nil, fmt.Errorf("%s: %w", service, fserrors.ErrMissingCredentials)
	}
	return creds, nil
}

// Set stores creds for service
func (s *Static) Set(service string, creds Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[service] = creds
}

// Services lists the configured service identities
func (s *Static) Services() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

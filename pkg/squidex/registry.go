// pkg/squidex/registry.go
package squidex

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"apgate/pkg/config"
)

// AppInfo is the credential-free app description exposed by the config
// endpoint.
type AppInfo struct {
	URL string `json:"url"`
}

// Registry maps app names to lazily constructed Clients. One instance
// per process, injected where needed; clients live for the process
// lifetime (the tenant list is small and static, so no eviction).
type Registry struct {
	defaultURL string
	defaultApp string
	apps       map[string]config.SquidexApp
	log        *zap.SugaredLogger

	mu      sync.Mutex
	clients map[string]*Client
}

func NewRegistry(cfg config.Config, log *zap.SugaredLogger) *Registry {
	apps := cfg.SquidexApps
	if apps == nil {
		apps = map[string]config.SquidexApp{}
	}
	return &Registry{
		defaultURL: cfg.SquidexDefaultURL,
		defaultApp: cfg.SquidexDefaultApp,
		apps:       apps,
		log:        log,
		clients:    map[string]*Client{},
	}
}

// Resolve returns the Client for the named app, substituting the
// configured default when app is empty. Repeated calls return the same
// instance. An unconfigured app is a hard error, never a fallback to
// another app's credentials.
func (r *Registry) Resolve(app string) (*Client, error) {
	name := app
	if name == "" {
		name = r.defaultApp
	}
	cred, ok := r.apps[name]
	if !ok {
		return nil, &UnknownTenantError{App: name, Available: r.Apps()}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[name]; ok {
		return c, nil
	}
	baseURL := cred.URL
	if baseURL == "" {
		baseURL = r.defaultURL
	}
	c := NewClient(Credentials{
		AppName:      name,
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		BaseURL:      baseURL,
	}, r.log)
	r.clients[name] = c
	r.log.Infow("squidex client created", "app", name, "url", baseURL)
	return c, nil
}

// Apps lists the configured app names, sorted.
func (r *Registry) Apps() []string {
	names := make([]string, 0, len(r.apps))
	for name := range r.apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) DefaultApp() string { return r.defaultApp }
func (r *Registry) DefaultURL() string { return r.defaultURL }

// Describe returns app names with their effective base URLs. Credentials
// never leave the process.
func (r *Registry) Describe() map[string]AppInfo {
	out := make(map[string]AppInfo, len(r.apps))
	for name, cred := range r.apps {
		u := cred.URL
		if u == "" {
			u = r.defaultURL
		}
		out[name] = AppInfo{URL: u}
	}
	return out
}

package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/parivision/bridgebet/internal/domain"
)

// credentialTTL matches the Redis store's validity window.
const credentialTTL = 7 * 24 * time.Hour

// registryDoc is the on-disk layout: proxies and credentials keyed by
// lowercase user address.
type registryDoc struct {
	Proxies     map[string]string                `json:"proxies"`
	Credentials map[string]domain.APICredentials `json:"credentials"`
}

// Registry implements domain.ProxyStore and domain.CredentialStore in one
// JSON file. The whole document is small (one user in practice), so every
// mutation rewrites it.
type Registry struct {
	path string
	mu   sync.Mutex
}

// NewRegistry creates a Registry at path.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// Get returns the cached proxy for a user, or domain.ErrNotFound.
func (r *Registry) Get(ctx context.Context, userAddress string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return "", err
	}
	proxy, ok := doc.Proxies[strings.ToLower(userAddress)]
	if !ok {
		return "", domain.ErrNotFound
	}
	return proxy, nil
}

// Put stores the proxy for a user.
func (r *Registry) Put(ctx context.Context, userAddress, proxyAddress string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	doc.Proxies[strings.ToLower(userAddress)] = proxyAddress
	return r.save(doc)
}

// Remove drops the cached proxy for a user.
func (r *Registry) Remove(ctx context.Context, userAddress string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	delete(doc.Proxies, strings.ToLower(userAddress))
	return r.save(doc)
}

// GetCredentials returns cached API credentials, enforcing the validity
// window.
func (r *Registry) GetCredentials(ctx context.Context, userAddress string) (domain.APICredentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return domain.APICredentials{}, err
	}
	creds, ok := doc.Credentials[strings.ToLower(userAddress)]
	if !ok {
		return domain.APICredentials{}, domain.ErrNotFound
	}
	if time.Since(creds.IssuedAt) > credentialTTL {
		delete(doc.Credentials, strings.ToLower(userAddress))
		_ = r.save(doc)
		return domain.APICredentials{}, domain.ErrNotFound
	}
	return creds, nil
}

// PutCredentials stores API credentials for a user.
func (r *Registry) PutCredentials(ctx context.Context, userAddress string, creds domain.APICredentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if creds.IssuedAt.IsZero() {
		creds.IssuedAt = time.Now()
	}
	doc, err := r.load()
	if err != nil {
		return err
	}
	doc.Credentials[strings.ToLower(userAddress)] = creds
	return r.save(doc)
}

// CredentialView adapts the Registry to domain.CredentialStore, whose
// method names collide with ProxyStore's.
type CredentialView struct {
	*Registry
}

// Get implements domain.CredentialStore.
func (v CredentialView) Get(ctx context.Context, userAddress string) (domain.APICredentials, error) {
	return v.GetCredentials(ctx, userAddress)
}

// Put implements domain.CredentialStore.
func (v CredentialView) Put(ctx context.Context, userAddress string, creds domain.APICredentials) error {
	return v.PutCredentials(ctx, userAddress, creds)
}

// ----- Internal helpers -----

func (r *Registry) load() (registryDoc, error) {
	doc := registryDoc{
		Proxies:     map[string]string{},
		Credentials: map[string]domain.APICredentials{},
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("file: read registry: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("file: decode registry: %w", err)
	}
	if doc.Proxies == nil {
		doc.Proxies = map[string]string{}
	}
	if doc.Credentials == nil {
		doc.Credentials = map[string]domain.APICredentials{}
	}
	return doc, nil
}

func (r *Registry) save(doc registryDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("file: marshal registry: %w", err)
	}
	return writeAtomic(r.path, data)
}

// Compile-time interface checks.
var (
	_ domain.ProxyStore      = (*Registry)(nil)
	_ domain.CredentialStore = CredentialView{}
)

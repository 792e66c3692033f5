// Package secrets resolves opaque secret references to live credential values.
// Resolved values are returned to the caller for a single request and are
// never cached or logged by this package.
package secrets

import (
	"context"
	"os"
	"strings"
	"sync"
)

// SecretRef points at a credential value held by a vault. It never carries
// the plaintext secret.
type SecretRef struct {
	ProviderID   string `json:"providerId" yaml:"providerId"`
	Key          string `json:"key" yaml:"key"`
	CredentialID string `json:"credentialId" yaml:"credentialId"`
}

// Resolver resolves a SecretRef. ok is false when the vault has no value for
// the reference; err is reserved for vault failures.
type Resolver interface {
	ResolveSecret(ctx context.Context, ref SecretRef) (value string, ok bool, err error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, ref SecretRef) (string, bool, error)

// ResolveSecret calls f.
func (f ResolverFunc) ResolveSecret(ctx context.Context, ref SecretRef) (string, bool, error) {
	return f(ctx, ref)
}

// EnvResolver reads secrets from environment variables named
// <PREFIX>_<CREDENTIAL_ID>_<KEY>, falling back to <PREFIX>_<PROVIDER_ID>_<KEY>.
type EnvResolver struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvResolver creates an EnvResolver reading the process environment.
func NewEnvResolver(prefix string) *EnvResolver {
	return &EnvResolver{prefix: prefix, lookup: os.LookupEnv}
}

// ResolveSecret implements Resolver.
func (r *EnvResolver) ResolveSecret(ctx context.Context, ref SecretRef) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	for _, name := range r.VariableNames(ref) {
		if v, ok := r.lookup(name); ok && v != "" {
			return v, true, nil
		}
	}
	return "", false, nil
}

// VariableNames lists the environment variables consulted for ref, in order.
func (r *EnvResolver) VariableNames(ref SecretRef) []string {
	key := ref.Key
	if key == "" {
		key = "api_key"
	}
	var names []string
	if ref.CredentialID != "" {
		names = append(names, envName(r.prefix, ref.CredentialID, key))
	}
	if ref.ProviderID != "" {
		names = append(names, envName(r.prefix, ref.ProviderID, key))
	}
	return names
}

func envName(parts ...string) string {
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i > 0 && b.Len() > 0 {
			b.WriteByte('_')
		}
		for _, c := range strings.ToUpper(p) {
			if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
				b.WriteRune(c)
			} else {
				b.WriteByte('_')
			}
		}
	}
	return b.String()
}

// MemoryVault is an in-process vault keyed by the full SecretRef.
type MemoryVault struct {
	mu     sync.RWMutex
	values map[SecretRef]string
}

// NewMemoryVault creates an empty MemoryVault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{values: make(map[SecretRef]string)}
}

// Put stores value under ref.
func (v *MemoryVault) Put(ref SecretRef, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values[ref] = value
}

// Delete removes the value stored under ref.
func (v *MemoryVault) Delete(ref SecretRef) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.values, ref)
}

// ResolveSecret implements Resolver.
func (v *MemoryVault) ResolveSecret(ctx context.Context, ref SecretRef) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	value, ok := v.values[ref]
	return value, ok && value != "", nil
}

// Chain tries each resolver in order and returns the first value found.
type Chain []Resolver

// ResolveSecret implements Resolver.
func (c Chain) ResolveSecret(ctx context.Context, ref SecretRef) (string, bool, error) {
	for _, r := range c {
		value, ok, err := r.ResolveSecret(ctx, ref)
		if err != nil {
			return "", false, err
		}
		if ok {
			return value, true, nil
		}
	}
	return "", false, nil
}

package credential

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/quillon/quill/internal/log"
)

// throwingKeyStore always fails, exercising the absorb-and-continue path.
type throwingKeyStore struct{ err error }

func (k *throwingKeyStore) DecryptedKey(context.Context, string, string) (string, error) {
	return "", k.err
}

// mapKeyStore returns keys from a static map.
type mapKeyStore struct{ keys map[string]string }

func (k *mapKeyStore) DecryptedKey(_ context.Context, userID, provider string) (string, error) {
	return k.keys[userID+"/"+provider], nil
}

// recordingUsage captures Record calls.
type recordingUsage struct {
	records []string
	err     error
}

func (u *recordingUsage) Record(_ context.Context, source Source, provider, model string) error {
	u.records = append(u.records, string(source)+"/"+provider+"/"+model)
	return u.err
}

func staticProvider(provider string) func(string) string {
	return func(string) string { return provider }
}

func noEnv(string) string { return "" }

func TestResolveGatewayWins(t *testing.T) {
	usage := &recordingUsage{}
	r := NewResolver(ResolverConfig{
		GatewayEnabled: true,
		Keys:           &mapKeyStore{keys: map[string]string{"u1/openai": "sk-byok"}},
		Usage:          usage,
		ProviderFor:    staticProvider("openai"),
		EnvLookup:      noEnv,
		Logger:         log.NewNop(),
	})

	cred := r.Resolve(context.Background(), &User{Authenticated: true, ID: "u1"}, "gpt-5", nil)

	if cred.Source != SourceGateway {
		t.Errorf("Source = %q, want gateway", cred.Source)
	}
	if cred.APIKey != "" {
		t.Error("gateway credential must not carry an explicit key")
	}
	if len(usage.records) != 1 || usage.records[0] != "gateway/openai/gpt-5" {
		t.Errorf("usage records = %v, want one gateway record", usage.records)
	}
}

func TestResolveBYOK(t *testing.T) {
	r := NewResolver(ResolverConfig{
		Keys:        &mapKeyStore{keys: map[string]string{"u1/openai": "sk-byok"}},
		ProviderFor: staticProvider("openai"),
		EnvLookup:   noEnv,
		Logger:      log.NewNop(),
	})

	cred := r.Resolve(context.Background(), &User{Authenticated: true, ID: "u1"}, "gpt-5", nil)
	if cred.Source != SourceUserBYOK || cred.APIKey != "sk-byok" {
		t.Errorf("got %+v, want BYOK credential", cred)
	}
}

func TestResolveKeyStoreFailureFallsThrough(t *testing.T) {
	headers := http.Header{}
	headers.Set("x-model-provider", "openai") // case-insensitive lookup
	headers.Set("x-provider-api-key", "sk-guest")

	r := NewResolver(ResolverConfig{
		Keys:        &throwingKeyStore{err: errors.New("store down")},
		ProviderFor: staticProvider("openai"),
		EnvLookup:   noEnv,
		Logger:      log.NewNop(),
	})

	cred := r.Resolve(context.Background(), &User{Authenticated: true, ID: "u1"}, "gpt-5", headers)
	if cred.Source != SourceGuestHeader || cred.APIKey != "sk-guest" {
		t.Errorf("got %+v, want guest-header credential after keystore failure", cred)
	}
}

func TestResolveGuestHeaderProviderMismatch(t *testing.T) {
	headers := http.Header{}
	headers.Set(headerProvider, "anthropic")
	headers.Set(headerAPIKey, "sk-guest")

	r := NewResolver(ResolverConfig{
		ProviderFor: staticProvider("openai"),
		EnvLookup:   func(provider string) string { return "sk-env-" + provider },
		Logger:      log.NewNop(),
	})

	cred := r.Resolve(context.Background(), nil, "gpt-5", headers)
	if cred.Source != SourceEnvironment {
		t.Errorf("Source = %q, want environment after provider mismatch", cred.Source)
	}
	if cred.APIKey != "sk-env-openai" {
		t.Errorf("APIKey = %q, want environment key", cred.APIKey)
	}
}

func TestResolveEnvironmentWithoutKey(t *testing.T) {
	r := NewResolver(ResolverConfig{
		ProviderFor: staticProvider(""),
		EnvLookup:   noEnv,
		Logger:      log.NewNop(),
	})

	cred := r.Resolve(context.Background(), nil, "unknown-model", nil)
	if cred.Source != SourceEnvironment {
		t.Errorf("Source = %q, want environment", cred.Source)
	}
	if cred.APIKey != "" {
		t.Errorf("APIKey = %q, want empty when no environment key is configured", cred.APIKey)
	}
}

// TestResolveNeverFails drives the resolver through failure combinations;
// every call must complete with a valid source.
func TestResolveNeverFails(t *testing.T) {
	validSources := map[Source]bool{
		SourceGateway: true, SourceUserBYOK: true, SourceGuestHeader: true, SourceEnvironment: true,
	}

	mismatched := http.Header{}
	mismatched.Set(headerProvider, "google")
	mismatched.Set(headerAPIKey, "sk-x")

	users := []*User{nil, {}, {Authenticated: true}, {Authenticated: true, ID: "u1"}}
	stores := []KeyStore{nil, &throwingKeyStore{err: errors.New("boom")}, &mapKeyStore{}}
	headerSets := []http.Header{nil, {}, mismatched}

	for _, gateway := range []bool{true, false} {
		for _, user := range users {
			for _, store := range stores {
				for _, headers := range headerSets {
					r := NewResolver(ResolverConfig{
						GatewayEnabled: gateway,
						Keys:           store,
						Usage:          &recordingUsage{err: errors.New("redis down")},
						ProviderFor:    staticProvider("openai"),
						EnvLookup:      noEnv,
						Logger:         log.NewNop(),
					})

					cred := r.Resolve(context.Background(), user, "gpt-5", headers)
					if !validSources[cred.Source] {
						t.Fatalf("invalid source %q for gateway=%v user=%+v", cred.Source, gateway, user)
					}
				}
			}
		}
	}
}

func TestResolveWithoutProviderFor(t *testing.T) {
	r := NewResolver(ResolverConfig{
		EnvLookup: func(provider string) string {
			if provider != "" {
				t.Errorf("provider = %q, want empty", provider)
			}
			return "sk-env"
		},
		Logger: log.NewNop(),
	})

	cred := r.Resolve(context.Background(), nil, "gpt-5", nil)
	if cred.Source != SourceEnvironment || cred.APIKey != "sk-env" {
		t.Errorf("got %+v, want environment credential", cred)
	}
}

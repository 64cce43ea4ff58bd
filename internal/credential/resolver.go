package credential

import (
	"context"
	"log/slog"
	"net/http"
)

// Guest header names. Header lookup is case-insensitive via http.Header.
const (
	headerProvider = "X-Model-Provider"
	headerAPIKey   = "X-Provider-Api-Key"
)

// KeyStore is the stored-key boundary for the BYOK tier. DecryptedKey may
// fail (store down, decryption error); the resolver absorbs those failures.
type KeyStore interface {
	DecryptedKey(ctx context.Context, userID, provider string) (string, error)
}

// UsageRecorder records which credential source served a given provider and
// model. Recording failures never affect resolution.
type UsageRecorder interface {
	Record(ctx context.Context, source Source, provider, model string) error
}

// tierOutcome is the tagged result of one precedence tier. Modeling each
// tier as a value the resolver folds over makes the never-fails contract
// structural: there is no error path out of Resolve.
type tierOutcome struct {
	credential Credential
	resolved   bool
	failReason string
}

func resolved(c Credential) tierOutcome { return tierOutcome{credential: c, resolved: true} }

func tierFailed(reason string) tierOutcome { return tierOutcome{failReason: reason} }

func tierSkipped() tierOutcome { return tierOutcome{} }

// Resolver walks the credential precedence chain:
// gateway, user BYOK, guest header, environment.
type Resolver struct {
	gatewayEnabled bool
	keys           KeyStore      // nil disables the BYOK tier
	usage          UsageRecorder // nil disables usage recording
	providerFor    func(model string) string
	envLookup      func(provider string) string
	logger         *slog.Logger
}

// ResolverConfig bundles Resolver dependencies.
type ResolverConfig struct {
	GatewayEnabled bool
	Keys           KeyStore
	Usage          UsageRecorder
	ProviderFor    func(model string) string    // model-to-provider map, nil = unknown provider
	EnvLookup      func(provider string) string // nil = process environment
	Logger         *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	envLookup := cfg.EnvLookup
	if envLookup == nil {
		envLookup = envKey
	}
	providerFor := cfg.ProviderFor
	if providerFor == nil {
		providerFor = func(string) string { return "" }
	}
	return &Resolver{
		gatewayEnabled: cfg.GatewayEnabled,
		keys:           cfg.Keys,
		usage:          cfg.Usage,
		providerFor:    providerFor,
		envLookup:      envLookup,
		logger:         logger,
	}
}

// Resolve walks the precedence chain and always returns a usable
// Credential. It never returns an error: tier failures are logged and the
// next tier is attempted, ending at the environment fallback.
//
// Provider identity for model is resolved once and reused by every tier.
func (r *Resolver) Resolve(ctx context.Context, user *User, model string, headers http.Header) Credential {
	provider := r.providerFor(model)

	tiers := []func(context.Context, *User, string, http.Header) tierOutcome{
		r.gatewayTier,
		r.byokTier,
		r.guestHeaderTier,
	}

	for _, tier := range tiers {
		outcome := tier(ctx, user, provider, headers)
		if outcome.resolved {
			r.recordUsage(ctx, outcome.credential.Source, provider, model)
			return outcome.credential
		}
		if outcome.failReason != "" {
			r.logger.Warn("credential tier failed, trying next",
				"reason", outcome.failReason,
				"provider", provider,
				"model", model,
			)
		}
	}

	cred := Credential{APIKey: r.envLookup(provider), Source: SourceEnvironment}
	r.recordUsage(ctx, cred.Source, provider, model)
	return cred
}

// gatewayTier resolves immediately when the gateway is enabled; the gateway
// injects authorization at the proxy level, so no key is returned.
func (r *Resolver) gatewayTier(_ context.Context, _ *User, _ string, _ http.Header) tierOutcome {
	if !r.gatewayEnabled {
		return tierSkipped()
	}
	return resolved(Credential{Source: SourceGateway})
}

// byokTier looks up a stored key for authenticated users.
func (r *Resolver) byokTier(ctx context.Context, user *User, provider string, _ http.Header) tierOutcome {
	if r.keys == nil || user == nil || !user.Authenticated || user.ID == "" {
		return tierSkipped()
	}

	key, err := r.keys.DecryptedKey(ctx, user.ID, provider)
	if err != nil {
		return tierFailed("byok lookup: " + err.Error())
	}
	if key == "" {
		return tierSkipped()
	}
	return resolved(Credential{APIKey: key, Source: SourceUserBYOK})
}

// guestHeaderTier reads a caller-supplied key, honored only when the
// header's declared provider matches the provider resolved for the model.
func (r *Resolver) guestHeaderTier(_ context.Context, _ *User, provider string, headers http.Header) tierOutcome {
	if headers == nil {
		return tierSkipped()
	}

	headerProv := headers.Get(headerProvider)
	key := headers.Get(headerAPIKey)
	if headerProv == "" || key == "" {
		return tierSkipped()
	}
	if headerProv != provider {
		return tierFailed("guest header provider " + headerProv + " does not match " + provider)
	}
	return resolved(Credential{APIKey: key, Source: SourceGuestHeader})
}

func (r *Resolver) recordUsage(ctx context.Context, source Source, provider, model string) {
	if r.usage == nil {
		return
	}
	if err := r.usage.Record(ctx, source, provider, model); err != nil {
		r.logger.Warn("usage recording failed", "source", string(source), "error", err)
	}
}

// Package credential resolves which API key and key source to use for a
// generation call. Resolution walks a strict precedence chain and never
// fails: every tier's error is logged and absorbed, and control always
// reaches the environment fallback.
package credential

// Source identifies where a credential came from, ordered by precedence
// (gateway highest).
type Source string

const (
	// SourceGateway means an intermediary injects provider authorization;
	// no raw key is held here.
	SourceGateway Source = "gateway"

	// SourceUserBYOK is a stored, user-supplied key.
	SourceUserBYOK Source = "user-byok"

	// SourceGuestHeader is a key supplied in request headers by an
	// unauthenticated caller.
	SourceGuestHeader Source = "guest-header"

	// SourceEnvironment is the process-level fallback key.
	SourceEnvironment Source = "environment"
)

// Credential is the outcome of resolution. APIKey is empty when the source
// supplies authorization implicitly (gateway) or no key is configured
// (environment without a matching variable).
type Credential struct {
	APIKey string
	Source Source
}

// User is the request identity as seen by the resolver.
type User struct {
	Authenticated bool
	ID            string
}

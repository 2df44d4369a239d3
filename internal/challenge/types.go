package challenge

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"portalauth/internal/tokenstore"
)

// Type discriminates why the resource layer is asking for credentials.
type Type int

const (
	// SchemeDetected means the resource announced that it needs this auth
	// scheme and no credential has been rejected yet.
	SchemeDetected Type = iota

	// TokenRetry means the previously supplied credential was rejected.
	TokenRetry
)

// String returns the string representation of the challenge type.
func (t Type) String() string {
	switch t {
	case SchemeDetected:
		return "scheme_detected"
	case TokenRetry:
		return "token_retry"
	default:
		return "unknown"
	}
}

// Challenge is raised by the resource layer for a secured resource.
type Challenge struct {
	Type Type

	// FailureCount is the number of prior failed attempts for this access.
	FailureCount int

	// Resource identifies the secured resource, for logging only.
	Resource string
}

// Kind is the decision carried by an Outcome.
type Kind int

const (
	// UseCredential means retry the access with Outcome.Credential.
	UseCredential Kind = iota

	// Cancel aborts the access.
	Cancel

	// RestartFlow aborts this attempt; a new authorization flow has been
	// launched and the access can be retried once it completes.
	RestartFlow
)

// String returns the string representation of the outcome kind.
func (k Kind) String() string {
	switch k {
	case UseCredential:
		return "use_credential"
	case Cancel:
		return "cancel"
	case RestartFlow:
		return "restart_flow"
	default:
		return "unknown"
	}
}

// Outcome is the resolver's decision for one challenge.
type Outcome struct {
	Kind Kind

	// Credential is set for UseCredential.
	Credential tokenstore.Credential

	// Reason explains a cancel-type outcome. It is nil for UseCredential and
	// for a plain restart without a prior failure.
	Reason error
}

// IsCancel reports whether the current attempt is cancelled.
func (o Outcome) IsCancel() bool {
	return o.Kind == Cancel || o.Kind == RestartFlow
}

func useCredential(cred tokenstore.Credential) Outcome {
	return Outcome{Kind: UseCredential, Credential: cred}
}

// Exchanger trades an authorization code for a token.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// FlowRestarter launches a new authorization flow.
type FlowRestarter interface {
	RestartFlow(ctx context.Context) error
}

// Notifier shows a transient failure message to the user.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(message string) {
	f(message)
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

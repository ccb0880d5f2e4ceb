// Package identity carries the identity-change stream that drives the
// permission caches: who signed in, who signed out, whose session expired.
package identity

import "context"

// Principal is the signed-in user as handed out by the session source.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Reason explains an identity transition.
type Reason string

const (
	ReasonSignIn  Reason = "sign_in"
	ReasonSignOut Reason = "sign_out"
	// ReasonExpired marks an identity lost mid-use. Consumers treat it exactly
	// like a sign-out.
	ReasonExpired Reason = "expired"
)

// Event is one identity transition for a browser session. A nil Principal
// means the session no longer has an identity.
type Event struct {
	SessionID string     `json:"session_id"`
	Principal *Principal `json:"principal,omitempty"`
	Reason    Reason     `json:"reason"`
}

// SignIn builds the event emitted after a successful sign-in.
func SignIn(sessionID string, p Principal) Event {
	return Event{SessionID: sessionID, Principal: &p, Reason: ReasonSignIn}
}

// SignOut builds the event emitted on an explicit sign-out.
func SignOut(sessionID string) Event {
	return Event{SessionID: sessionID, Reason: ReasonSignOut}
}

// Expired builds the event emitted when a session disappears underneath a
// signed-in workspace.
func Expired(sessionID string) Event {
	return Event{SessionID: sessionID, Reason: ReasonExpired}
}

// Source delivers identity events to subscribers. The returned function
// releases the subscription and is safe to call more than once.
type Source interface {
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Publisher emits identity events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

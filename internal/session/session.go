// Package session resolves the device token into an authenticated student.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/moneykin1993/habit-app/internal/api"
	"github.com/moneykin1993/habit-app/internal/gateway"
	"github.com/moneykin1993/habit-app/internal/model"
	"github.com/moneykin1993/habit-app/internal/validate"
)

// ErrNoToken means no device token is stored.
var ErrNoToken = errors.New("no device token stored")

// TokenStore is the durable slot holding the device token.
type TokenStore interface {
	ReadToken(ctx context.Context) (string, error)
	WriteToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// State is the resolver's position in the login flow.
type State int

// Resolver states.
const (
	Unauthenticated State = iota
	Resolving
	Authenticated
	Rejected
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Resolving:
		return "resolving"
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the outcome of one resolution.
type Result struct {
	State   State
	Session model.Session
	// Err is why the session was rejected. ErrNoToken when nothing was stored.
	Err error
}

// Resolver turns the stored token into a Session.
type Resolver struct {
	store  TokenStore
	caller api.Caller
	log    *zap.Logger
}

// NewResolver returns a Resolver. A nil logger discards output.
func NewResolver(store TokenStore, caller api.Caller, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{store: store, caller: caller, log: log}
}

// Resolve reads the token and, when one exists, confirms it with the backend.
// Any failure of the confirmation clears the token. Resolve never returns
// Unauthenticated or Resolving.
func (r *Resolver) Resolve(ctx context.Context) Result {
	token, err := r.store.ReadToken(ctx)
	if err != nil {
		return Result{State: Rejected, Err: fmt.Errorf("failed to read device token: %w", err)}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Result{State: Rejected, Err: ErrNoToken}
	}

	id, err := api.AutoLogin(ctx, r.caller, token)
	if err != nil {
		r.log.Info("auto-login rejected, clearing device token", zap.Error(err))
		if cerr := r.store.ClearToken(ctx); cerr != nil {
			r.log.Warn("failed to clear device token", zap.Error(cerr))
		}
		return Result{State: Rejected, Err: err}
	}
	return Result{
		State: Authenticated,
		Session: model.Session{
			DeviceToken: token,
			StudentKey:  id.StudentKey,
			GroupName:   id.GroupName,
			DisplayName: id.DisplayName,
		},
	}
}

// Credentials is the first-login form.
type Credentials struct {
	Group string `json:"group" validate:"notblank"`
	Name  string `json:"name" validate:"notblank,nospace"`
	Email string `json:"email" validate:"notblank"`
}

// Validate returns validate.Errors for an incomplete form.
func (c Credentials) Validate() error {
	return validate.Struct(c)
}

// FirstLogin registers this device and persists the returned token.
// Callers resolve again afterwards to obtain the full identity.
func (r *Resolver) FirstLogin(ctx context.Context, cred Credentials) (model.Session, error) {
	if err := cred.Validate(); err != nil {
		return model.Session{}, err
	}
	sess, err := api.FirstLogin(ctx, r.caller, cred.Group, cred.Name, cred.Email)
	if err != nil {
		return model.Session{}, err
	}
	if err := r.store.WriteToken(ctx, sess.DeviceToken); err != nil {
		return model.Session{}, fmt.Errorf("failed to save device token: %w", err)
	}
	r.log.Info("device registered", zap.String("group", cred.Group))
	return sess, nil
}

// Logout clears the stored token.
func (r *Resolver) Logout(ctx context.Context) error {
	if err := r.store.ClearToken(ctx); err != nil {
		return fmt.Errorf("failed to clear device token: %w", err)
	}
	return nil
}

// Message is the text a screen shows for a rejected result, or "" when the
// rejection needs no explanation.
func (res Result) Message() string {
	if res.Err == nil || errors.Is(res.Err, ErrNoToken) {
		return ""
	}
	var appErr *gateway.ApplicationError
	if errors.As(res.Err, &appErr) {
		return ""
	}
	return gateway.UserMessage(res.Err, "")
}

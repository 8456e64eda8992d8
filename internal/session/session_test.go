package session

import (
	"context"
	"errors"
	"testing"

	"github.com/moneykin1993/habit-app/internal/api"
	"github.com/moneykin1993/habit-app/internal/gateway"
	"github.com/moneykin1993/habit-app/internal/testutil"
	"github.com/moneykin1993/habit-app/internal/validate"
)

type memStore struct {
	token   string
	cleared int
}

func (m *memStore) ReadToken(context.Context) (string, error) { return m.token, nil }

func (m *memStore) WriteToken(_ context.Context, token string) error {
	m.token = token
	return nil
}

func (m *memStore) ClearToken(context.Context) error {
	m.token = ""
	m.cleared++
	return nil
}

func TestResolveWithoutTokenMakesNoCall(t *testing.T) {
	b := testutil.NewBackend(t)
	r := NewResolver(&memStore{}, gateway.New(b.URL()), nil)

	res := r.Resolve(context.Background())
	if res.State != Rejected || !errors.Is(res.Err, ErrNoToken) {
		t.Fatalf("expected rejection for missing token, got %+v", res)
	}
	if b.TotalCalls() != 0 {
		t.Fatalf("expected no network call, got %d", b.TotalCalls())
	}
	if res.Message() != "" {
		t.Fatalf("missing token needs no message")
	}
}

func TestResolveAuthenticated(t *testing.T) {
	b := testutil.NewBackend(t)
	s := b.AddStudent(testutil.Student{Group: "グループ1", Name: "佐藤花子", Email: "h@example.com"})
	store := &memStore{token: b.IssueToken(s.Key)}
	r := NewResolver(store, gateway.New(b.URL()), nil)

	res := r.Resolve(context.Background())
	if res.State != Authenticated {
		t.Fatalf("expected authenticated, got %s (%v)", res.State, res.Err)
	}
	if res.Session.StudentKey != s.Key || res.Session.DisplayName != s.Name || res.Session.DeviceToken != store.token {
		t.Fatalf("unexpected session %+v", res.Session)
	}
}

func TestResolveRejectedClearsToken(t *testing.T) {
	b := testutil.NewBackend(t)
	store := &memStore{token: "stale"}
	r := NewResolver(store, gateway.New(b.URL()), nil)

	res := r.Resolve(context.Background())
	if res.State != Rejected || store.token != "" || store.cleared != 1 {
		t.Fatalf("expected token cleared on rejection, got %+v store=%+v", res, store)
	}
	if b.Calls(api.PathAutoLogin) != 1 {
		t.Fatalf("expected one auto-login call")
	}
}

func TestResolveNetworkFailureClearsToken(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Raw(api.PathAutoLogin, "<html>maintenance</html>")
	store := &memStore{token: "tok"}
	r := NewResolver(store, gateway.New(b.URL()), nil)

	res := r.Resolve(context.Background())
	if res.State != Rejected || store.token != "" {
		t.Fatalf("expected rejection and cleared token, got %+v", res)
	}
	if res.Message() != gateway.MsgCommunicationFailed {
		t.Fatalf("unexpected message %q", res.Message())
	}
}

func TestFirstLoginPersistsToken(t *testing.T) {
	b := testutil.NewBackend(t)
	s := b.AddStudent(testutil.Student{Group: "グループ2", Name: "鈴木一郎", Email: "i@example.com"})
	store := &memStore{}
	r := NewResolver(store, gateway.New(b.URL()), nil)
	ctx := context.Background()

	sess, err := r.FirstLogin(ctx, Credentials{Group: s.Group, Name: s.Name, Email: s.Email})
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if store.token == "" || store.token != sess.DeviceToken {
		t.Fatalf("expected token persisted")
	}
	if res := r.Resolve(ctx); res.State != Authenticated || res.Session.StudentKey != s.Key {
		t.Fatalf("expected authenticated after first login, got %+v", res)
	}
}

func TestFirstLoginValidatesLocally(t *testing.T) {
	b := testutil.NewBackend(t)
	r := NewResolver(&memStore{}, gateway.New(b.URL()), nil)

	_, err := r.FirstLogin(context.Background(), Credentials{Group: "グループ1", Name: "山田 太郎", Email: "x@example.com"})
	if validate.Field(err, "name") == "" {
		t.Fatalf("expected name validation error, got %v", err)
	}
	if b.TotalCalls() != 0 {
		t.Fatalf("invalid input must not reach the backend")
	}
}

func TestLogout(t *testing.T) {
	store := &memStore{token: "tok"}
	r := NewResolver(store, nil, nil)
	if err := r.Logout(context.Background()); err != nil || store.token != "" {
		t.Fatalf("expected token cleared, err=%v", err)
	}
}

package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memRepo struct {
	byEmail  map[string]*User
	sessions map[string]*Session
}

func newMemRepo() *memRepo {
	return &memRepo{byEmail: map[string]*User{}, sessions: map[string]*Session{}}
}

func (m *memRepo) Create(_ context.Context, u *User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return ErrAlreadyExist
	}
	cp := *u
	m.byEmail[u.Email] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) CreateSession(_ context.Context, s *Session) error {
	cp := *s
	m.sessions[s.Token] = &cp
	return nil
}

func (m *memRepo) GetSession(_ context.Context, token string) (*Session, error) {
	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memRepo) DeleteSession(_ context.Context, token string) error {
	delete(m.sessions, token)
	return nil
}

func TestRegisterLoginResolve(t *testing.T) {
	t.Parallel()

	svc := NewService(newMemRepo(), time.Hour)
	ctx := context.Background()

	u, err := svc.Register(ctx, "Ada", "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Role != RoleUser {
		t.Fatalf("role=%q, want %q", u.Role, RoleUser)
	}
	if u.PasswordHash == "hunter22" {
		t.Fatalf("password stored in the clear")
	}

	token, lu, err := svc.Login(ctx, "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if lu.ID != u.ID || token == "" {
		t.Fatalf("login returned user=%s token=%q", lu.ID, token)
	}

	uid, role, err := svc.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if uid != u.ID || role != RoleUser {
		t.Fatalf("resolved uid=%s role=%s", uid, role)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	svc := NewService(newMemRepo(), time.Hour)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "Ada", "ada@example.com", "hunter22"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := svc.Login(ctx, "ada@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err=%v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email err=%v", err)
	}
}

func TestResolveExpiredSession(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	svc := NewService(repo, -time.Minute) // sessions are born expired
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Ada", "ada@example.com", "hunter22"); err != nil {
		t.Fatalf("register: %v", err)
	}
	token, _, err := svc.Login(ctx, "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, _, err := svc.Resolve(ctx, token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err=%v, want ErrSessionExpired", err)
	}
	if _, ok := repo.sessions[token]; ok {
		t.Fatalf("expired session not deleted")
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	t.Parallel()

	svc := NewService(newMemRepo(), time.Hour)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "Ada", "ada@example.com", "hunter22"); err != nil {
		t.Fatalf("register: %v", err)
	}
	token, _, err := svc.Login(ctx, "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, _, err := svc.Resolve(ctx, token); err == nil {
		t.Fatalf("resolve succeeded after logout")
	}
}

package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"inventra-api/internal/model"
	"inventra-api/internal/repository"
	"inventra-api/pkg/jwt"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
	roles map[uint]model.Role
}

func newMemUsers() *memUsers {
	staff := model.Role{ID: 3, Code: model.RoleStaff, Name: "Staff", Privileges: []model.Privilege{
		{ID: 10, Code: model.PrivOrderCreate},
		{ID: 11, Code: model.PrivOrderView},
	}}
	admin := model.Role{ID: 1, Code: model.RoleAdmin, Name: "Administrator", Privileges: []model.Privilege{
		{ID: 1, Code: model.PrivUserView},
		{ID: 2, Code: model.PrivUserCreate},
	}}
	return &memUsers{
		users: map[uuid.UUID]model.User{},
		roles: map[uint]model.Role{staff.ID: staff, admin.ID: admin},
	}
}

func (r *memUsers) hydrate(u model.User) *model.User {
	if u.RoleID != nil {
		if role, ok := r.roles[*u.RoleID]; ok {
			u.Role = &role
		}
	}
	return &u
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return r.hydrate(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUsers) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.hydrate(u), nil
}

func (r *memUsers) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	stored := *user
	stored.Role = nil
	r.users[user.ID] = stored
	return nil
}

func (r *memUsers) Update(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	stored := *user
	stored.Role = nil
	r.users[user.ID] = stored
	return nil
}

func (r *memUsers) Delete(_ context.Context, id uuid.UUID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memUsers) UpdatePassword(_ context.Context, id uuid.UUID, hashed string) error {
	return r.patch(id, func(u *model.User) { u.Password = hashed })
}

func (r *memUsers) FindAll(_ context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.User
	for _, u := range r.users {
		out = append(out, *r.hydrate(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (r *memUsers) UpdateTokenVersion(_ context.Context, id uuid.UUID, version string) error {
	return r.patch(id, func(u *model.User) { u.TokenVersion = version })
}

func (r *memUsers) RecordLogin(_ context.Context, id uuid.UUID, version string, at time.Time) error {
	return r.patch(id, func(u *model.User) {
		u.TokenVersion = version
		u.LastLoginAt = &at
	})
}

func (r *memUsers) patch(id uuid.UUID, fn func(*model.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	r.users[id] = u
	return nil
}

// role repository side of the same fake

func (r *memUsers) allRoles() []model.Role {
	var out []model.Role
	for _, role := range r.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memRoles struct{ *memUsers }

func (r memRoles) FindAll(context.Context) ([]model.Role, error) { return r.allRoles(), nil }

func (r memRoles) FindByID(_ context.Context, id uint) (*model.Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &role, nil
}

func (r memRoles) FindByCode(_ context.Context, code string) (*model.Role, error) {
	for _, role := range r.roles {
		if role.Code == code {
			role := role
			return &role, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memRoles) ReplacePrivileges(_ context.Context, role *model.Role, privileges []model.Privilege) error {
	role.Privileges = privileges
	r.roles[role.ID] = *role
	return nil
}

func (r memRoles) SeedDefaults(context.Context) error { return nil }

var (
	_ repository.UserRepository = (*memUsers)(nil)
	_ repository.RoleRepository = memRoles{}
)

func (r *memUsers) add(t *testing.T, email, password string, roleID uint, active bool) model.User {
	t.Helper()
	u := model.User{Email: email, FullName: "User " + email, RoleID: &roleID, IsActive: active}
	require.NoError(t, u.SetPassword(password))
	require.NoError(t, r.Create(context.Background(), &u))
	return u
}

func newAuthFixture(t *testing.T) (*memUsers, *jwt.Manager, AuthService) {
	t.Helper()
	users := newMemUsers()
	tokens := jwt.NewManager("test-secret", "inventra-test", time.Hour)
	return users, tokens, NewAuthService(users, tokens, time.Second)
}

func TestLogin(t *testing.T) {
	users, tokens, auth := newAuthFixture(t)
	u := users.add(t, "staff@example.com", "secret1", 3, true)

	resp, err := auth.Login(context.Background(), "staff@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, u.ID, resp.User.ID)
	assert.Equal(t, model.RoleStaff, resp.Role.Code)
	assert.ElementsMatch(t, []string{model.PrivOrderCreate, model.PrivOrderView}, resp.Privileges)
	assert.NotNil(t, resp.User.LastLoginAt)

	claims, err := tokens.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, model.RoleStaff, claims.RoleCode)

	stored, _ := users.FindByID(context.Background(), u.ID)
	assert.Equal(t, claims.TokenVersion, stored.TokenVersion)
}

func TestLogin_Failures(t *testing.T) {
	users, _, auth := newAuthFixture(t)
	users.add(t, "staff@example.com", "secret1", 3, true)
	users.add(t, "gone@example.com", "secret1", 3, false)

	_, err := auth.Login(context.Background(), "staff@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Login(context.Background(), "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Login(context.Background(), "gone@example.com", "secret1")
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestValidateToken_SingleSession(t *testing.T) {
	users, _, auth := newAuthFixture(t)
	users.add(t, "staff@example.com", "secret1", 3, true)

	first, err := auth.Login(context.Background(), "staff@example.com", "secret1")
	require.NoError(t, err)
	session, err := auth.ValidateToken(context.Background(), first.Token)
	require.NoError(t, err)
	assert.Equal(t, "staff@example.com", session.User.Email)

	_, err = auth.Login(context.Background(), "staff@example.com", "secret1")
	require.NoError(t, err)

	_, err = auth.ValidateToken(context.Background(), first.Token)
	assert.ErrorIs(t, err, ErrSessionReplaced)

	_, err = auth.ValidateToken(context.Background(), "garbage")
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestChangePassword(t *testing.T) {
	users, _, auth := newAuthFixture(t)
	u := users.add(t, "staff@example.com", "secret1", 3, true)
	ctx := context.Background()

	assert.ErrorIs(t, auth.ChangePassword(ctx, u.ID, "nope", "another1"), ErrWrongPassword)

	var vErr *ValidationError
	assert.ErrorAs(t, auth.ChangePassword(ctx, u.ID, "secret1", "123"), &vErr)

	require.NoError(t, auth.ChangePassword(ctx, u.ID, "secret1", "another1"))
	_, err := auth.Login(ctx, "staff@example.com", "another1")
	assert.NoError(t, err)

	assert.ErrorIs(t, auth.ChangePassword(ctx, uuid.New(), "x", "another1"), ErrUserNotFound)

	me, err := auth.Me(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, me.User.ID)
}

// deadlineUsers records whether each lookup arrived with a deadline
type deadlineUsers struct {
	*memUsers
	sawDeadline []bool
}

func (d *deadlineUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	_, ok := ctx.Deadline()
	d.sawDeadline = append(d.sawDeadline, ok)
	return d.memUsers.FindByEmail(ctx, email)
}

func TestLoginAndReset_RunUnderRequestTimeout(t *testing.T) {
	users := &deadlineUsers{memUsers: newMemUsers()}
	users.add(t, "staff@example.com", "secret1", 3, true)
	tokens := jwt.NewManager("test-secret", "inventra-test", time.Hour)

	_, err := NewAuthService(users, tokens, time.Second).Login(context.Background(), "staff@example.com", "secret1")
	require.NoError(t, err)

	err = NewUserService(users, memRoles{users.memUsers}, time.Second).ResetPassword(context.Background(), "staff@example.com", "another1")
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true}, users.sawDeadline)
}

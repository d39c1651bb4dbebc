package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"super-admin", RoleSuperAdmin, false},
		{"Admin", RoleAdmin, false},
		{" manager ", RoleManager, false},
		{"user", RoleUser, false},
		{"root", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownRole)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRolePermissions(t *testing.T) {
	for _, r := range Roles {
		assert.True(t, r.Can(UseMP3Tools), "%s should be able to use mp3 tools", r)
		assert.True(t, r.Can(ViewDashboard), "%s should see the dashboard", r)
	}

	assert.ElementsMatch(t, AllPermissions, RoleSuperAdmin.Permissions())
	assert.ElementsMatch(t, AllPermissions, RoleAdmin.Permissions())

	assert.True(t, RoleManager.Can(ManageCourses))
	assert.True(t, RoleManager.Can(CreatePDF))
	assert.False(t, RoleManager.Can(ManageUsers))

	assert.True(t, RoleUser.Can(ViewCourses))
	assert.False(t, RoleUser.Can(CreateCourses))
	assert.False(t, RoleUser.Can(DeleteUsers))

	assert.False(t, Role("ghost").Can(ViewDashboard))
}

func TestAddAndAuthenticate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, token, err := s.AddUser(ctx, "ada@example.com", "Ada", RoleUser)
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.Equal(t, RoleUser, u.Role)

	got, err := s.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = s.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAddUserValidation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _, err := s.AddUser(ctx, "not an email", "", RoleUser)
	assert.Error(t, err)

	_, _, err = s.AddUser(ctx, "ada@example.com", "", Role("root"))
	assert.ErrorIs(t, err, ErrUnknownRole)

	_, _, err = s.AddUser(ctx, "ada@example.com", "", RoleUser)
	require.NoError(t, err)
	_, _, err = s.AddUser(ctx, "ADA@example.com", "", RoleAdmin)
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestAssignRole(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _, err := s.AddUser(ctx, "ops@example.com", "Ops", RoleUser)
	require.NoError(t, err)

	require.NoError(t, s.AssignRole(ctx, "ops@example.com", RoleSuperAdmin))
	u, err := s.GetByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, RoleSuperAdmin, u.Role)

	err = s.AssignRole(ctx, "nobody@example.com", RoleAdmin)
	assert.True(t, errors.Is(err, ErrUserNotFound))

	err = s.AssignRole(ctx, "ops@example.com", Role("owner"))
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestRotateToken(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, old, err := s.AddUser(ctx, "ada@example.com", "", RoleUser)
	require.NoError(t, err)

	fresh, err := s.RotateToken(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, old, fresh)

	_, err = s.Authenticate(ctx, old)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = s.Authenticate(ctx, fresh)
	assert.NoError(t, err)

	_, err = s.RotateToken(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestListSortedByEmail(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, email := range []string{"zed@example.com", "amy@example.com", "mia@example.com"} {
		_, _, err := s.AddUser(ctx, email, "", RoleUser)
		require.NoError(t, err)
	}

	users, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "amy@example.com", users[0].Email)
	assert.Equal(t, "zed@example.com", users[2].Email)
	assert.False(t, users[0].CreatedAt.IsZero())
}

func TestReopenKeepsUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, token, err := s.AddUser(ctx, "ada@example.com", "", RoleManager)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	u, err := s.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, RoleManager, u.Role)
}

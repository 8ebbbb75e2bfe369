package user

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/tests"
)

func TestParseRole(t *testing.T) {
	for _, role := range Roles {
		got, err := ParseRole(string(role))
		assert.NoError(t, err)
		assert.Equal(t, role, got)
	}
	for _, s := range []string{"", "Admin", "professor", "teacher:"} {
		_, err := ParseRole(s)
		assert.True(t, errors.Is(err, ErrUnknownRole), s)
	}
}

func TestDashboardFor(t *testing.T) {
	titles := map[Role]string{
		RoleAdmin:   "Admin Dashboard",
		RoleTeacher: "Professor Dashboard",
		RoleParent:  "Parent Dashboard",
		RoleStudent: "Student Portal",
	}
	for _, role := range Roles {
		dash, err := DashboardFor(role)
		require.NoError(t, err, role)
		assert.Equal(t, role, dash.Role)
		assert.Equal(t, titles[role], dash.Title)
		assert.NotEmpty(t, dash.Tabs)
	}

	_, err := DashboardFor("janitor")
	assert.True(t, errors.Is(err, ErrUnknownRole))
}

func TestUser_CanViewAttendance(t *testing.T) {
	dir := DefaultDirectory()
	users := dir.QueryAll()
	require.Len(t, users, 4)

	tests := []struct {
		role   Role
		rollNo string
		want   bool
	}{
		{RoleAdmin, "CS21012", true},
		{RoleTeacher, "CS99999", true},
		{RoleParent, "CS21012", true},
		{RoleParent, "CS99999", false},
		{RoleStudent, "CS21012", true},
		{RoleStudent, "CS99999", false},
	}
	for _, tt := range tests {
		usr, err := dir.Login("", tt.role)
		require.NoError(t, err)
		assert.Equal(t, tt.want, usr.CanViewAttendance(tt.rollNo), "%s -> %s", tt.role, tt.rollNo)
	}
	assert.False(t, User{}.CanViewAttendance("CS21012"))
}

func TestDirectory_Login(t *testing.T) {
	dir := NewDirectory(
		User{ID: 1, Name: "A", Email: "a@college.edu", Role: RoleTeacher},
		User{ID: 2, Name: "B", Email: "b@college.edu", Role: RoleTeacher},
	)

	usr, err := dir.Login(" B@College.edu ", RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, 2, usr.ID)

	usr, err = dir.Login("someone@else.edu", RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, 1, usr.ID)

	_, err = dir.Login("a@college.edu", RoleStudent)
	assert.Equal(t, ErrNotFound, err)
	_, err = dir.Login("a@college.edu", "janitor")
	assert.Equal(t, ErrUnknownRole, err)

	_, err = dir.GetByID(3)
	assert.Equal(t, ErrNotFound, err)
}

func TestDirectory_SuggestRollNos(t *testing.T) {
	d := DefaultDirectory()
	tests := []struct {
		rollNo string
		want   []string
	}{
		{rollNo: "CS2101", want: []string{"CS21012"}},
		{rollNo: " cs21012 ", want: []string{"CS21012"}},
		{rollNo: "lol"},
	}
	for _, tt := range tests {
		t.Run(tt.rollNo, func(t *testing.T) {
			got := d.SuggestRollNos(tt.rollNo, 3)
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
	assert.Empty(t, d.SuggestRollNos("CS2101", 0))
}

func TestDirectory_GuardiansOf(t *testing.T) {
	ctx := context.Background()
	dir := DefaultDirectory()

	name, addrs, err := dir.GuardiansOf(ctx, "CS21012")
	require.NoError(t, err)
	assert.Equal(t, "Alex Kumar", name)
	require.Len(t, addrs, 1)
	assert.Equal(t, "parent@email.com", addrs[0].Address)

	_, _, err = dir.GuardiansOf(ctx, "CS99999")
	assert.Equal(t, ErrNotFound, err)

	students := dir.Students()
	require.Len(t, students, 1)
	assert.Equal(t, "CS21012", students[0].RollNo)
}

func TestLoginCredentials_validation(t *testing.T) {
	validate, translator := testutil.NewValidator()
	InitValidators(validate, translator)

	err := validate.Struct(LoginCredentials{Email: "student@college.edu", Password: "x", Role: "student"})
	assert.NoError(t, err)

	err = validate.Struct(LoginCredentials{Email: "nope", Role: "janitor"})
	assert.Equal(t, map[string]string{
		"email":    "email must be a valid email address",
		"password": "this field is required",
		"role":     "role must be one of admin, teacher, parent, student",
	}, core.FieldMap(core.FieldErrors(err, translator)))

	err = validate.Struct(LoginCredentials{Email: "student@college.edu", Password: " \t", Role: "student"})
	assert.Equal(t, map[string]string{
		"password": "password must not be blank",
	}, core.FieldMap(core.FieldErrors(err, translator)))
}

package boiledrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/user"
	boiledrepos "github.com/trezcool/kujifunza/storage/database/sqlboiler"
	testutil "github.com/trezcool/kujifunza/tests"
)

func TestUserRepository_QueryUsers(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	repo := boiledrepos.NewUserRepository(db)

	now := time.Now().Truncate(time.Second)
	admin := testutil.CreateUser(t, repo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true, now.Add(-4*time.Hour))
	ines := testutil.CreateUser(t, repo, "Ines", "ines", "ines@test.cd", "", []string{user.RoleInstructorDesigner}, true, now.Add(-3*time.Hour))
	jane := testutil.CreateUser(t, repo, "Jane", "jane", "jane@test.cd", "", []string{user.RoleStudent}, true, now.Add(-2*time.Hour))
	gone := testutil.CreateUser(t, repo, "Gone", "janet", "gone@test.cd", "", []string{user.RoleStudent}, false, now.Add(-time.Hour))

	newest := []core.DBOrdering{{Field: "created_at"}}
	bPtr := func(b bool) *bool { return &b }
	ids := func(users []user.User) []string {
		out := make([]string, 0, len(users))
		for _, u := range users {
			out = append(out, u.ID)
		}
		return out
	}

	tests := []struct {
		name     string
		filter   *user.QueryFilter
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "no filter", ordering: newest, want: []string{gone.ID, jane.ID, ines.ID, admin.ID}},
		{name: "empty filter", filter: &user.QueryFilter{}, ordering: newest, want: []string{gone.ID, jane.ID, ines.ID, admin.ID}},
		{name: "search", filter: &user.QueryFilter{Search: "JAN"}, ordering: newest, want: []string{gone.ID, jane.ID}},
		{name: "search email", filter: &user.QueryFilter{Search: "ines@"}, ordering: newest, want: []string{ines.ID}},
		{name: "role prefix", filter: &user.QueryFilter{Roles: []string{user.RoleInstructor}}, ordering: newest, want: []string{ines.ID}},
		{name: "roles", filter: &user.QueryFilter{Roles: []string{user.RoleAdmin, user.RoleStudent}}, ordering: newest, want: []string{gone.ID, jane.ID, admin.ID}},
		{name: "unknown role", filter: &user.QueryFilter{Roles: []string{"wizard:"}}, want: []string{}},
		{name: "inactive", filter: &user.QueryFilter{IsActive: bPtr(false)}, want: []string{gone.ID}},
		{
			name:     "created range",
			filter:   &user.QueryFilter{CreatedFrom: now.Add(-3 * time.Hour), CreatedTo: now.Add(-2 * time.Hour)},
			ordering: newest,
			want:     []string{jane.ID, ines.ID},
		},
		{
			name:     "combined",
			filter:   &user.QueryFilter{Search: "jan", Roles: []string{user.RoleStudent}, IsActive: bPtr(true)},
			ordering: newest,
			want:     []string{jane.ID},
		},
		{
			name:     "by is_active then -name",
			ordering: []core.DBOrdering{{Field: "is_active", Ascending: true}, {Field: "name"}},
			want:     []string{gone.ID, jane.ID, ines.ID, admin.ID},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QueryUsers(ctx, tt.filter, tt.ordering)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestUserRepository_DeleteUsersByID(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	repo := boiledrepos.NewUserRepository(db)

	jane := testutil.CreateUser(t, repo, "Jane", "jane", "jane@test.cd", "", []string{user.RoleStudent}, true)
	john := testutil.CreateUser(t, repo, "John", "john", "john@test.cd", "", []string{user.RoleStudent}, true)
	maths := testutil.CreateCourse(t, db, "MATH", "Mathematics")
	testutil.Enrol(t, db, jane.ID, maths)

	n, err := repo.DeleteUsersByID(ctx, []string{"nope"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = repo.DeleteUsersByID(ctx, []string{jane.ID, "nope", "a8c1f9a6-4f7d-4c56-9a38-e1d27fbd0d0e"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.GetUser(ctx, user.GetFilter{ID: jane.ID})
	assert.Equal(t, user.ErrNotFound, err)
	assert.Equal(t, 0, count(t, db, `SELECT COUNT(*) FROM student_enrolments WHERE student_id = $1`, jane.ID))

	_, err = repo.GetUser(ctx, user.GetFilter{ID: john.ID})
	assert.NoError(t, err)
}

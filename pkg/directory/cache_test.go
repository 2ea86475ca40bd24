package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trainhub/trainhub/pkg/auth"
)

type fakeStore struct {
	users   map[string]User
	lookups int

	// duringRegister runs inside Register before the write is committed
	duringRegister func()
	registerErr    error
}

func (f *fakeStore) LookupByTelegramID(_ context.Context, telegramID string) (*User, error) {
	f.lookups++
	u, ok := f.users[telegramID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeStore) GroupByAccessCode(_ context.Context, code string) (*Group, error) {
	return nil, ErrGroupNotFound
}

func (f *fakeStore) Register(_ context.Context, p Profile, role auth.Role, g *Group) (*User, error) {
	if f.duringRegister != nil {
		f.duringRegister()
	}
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	gid := g.ID
	u := User{ID: int64(len(f.users) + 1), TelegramID: p.TelegramID, Role: role, GroupID: &gid}
	f.users[p.TelegramID] = u
	return &u, nil
}

func TestCachedDirectory_Lookup(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{users: map[string]User{
		"42": {ID: 7, TelegramID: "42", Role: auth.RoleMentor},
	}}
	c := NewCachedDirectory(store, CacheConfig{MaxEntries: 8, TTL: time.Minute})

	u, err := c.LookupByTelegramID(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)

	u, err = c.LookupByTelegramID(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, 1, store.lookups)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestCachedDirectory_MissesNotCached(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{users: map[string]User{}}
	c := NewCachedDirectory(store, DefaultCacheConfig())

	_, err := c.LookupByTelegramID(ctx, "42")
	assert.ErrorIs(t, err, ErrUserNotFound)

	store.users["42"] = User{ID: 1, TelegramID: "42", Role: auth.RoleStudent}

	u, err := c.LookupByTelegramID(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStudent, u.Role)
	assert.Equal(t, 2, store.lookups)
}

func TestCachedDirectory_RegisterInvalidates(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{users: map[string]User{
		"42": {ID: 1, TelegramID: "42", Role: auth.RoleStudent},
	}}
	c := NewCachedDirectory(store, DefaultCacheConfig())

	u, err := c.LookupByTelegramID(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStudent, u.Role)

	_, err = c.Register(ctx, Profile{TelegramID: "42"}, auth.RoleMentor, &Group{ID: 3})
	require.NoError(t, err)

	u, err = c.LookupByTelegramID(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleMentor, u.Role)
}

func TestCachedDirectory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{users: map[string]User{
		"42": {ID: 7, TelegramID: "42", Role: auth.RoleMentor},
	}}
	c := NewCachedDirectory(store, DefaultCacheConfig())

	u, _ := c.LookupByTelegramID(ctx, "42")
	u.Role = auth.RoleTeacher

	again, _ := c.LookupByTelegramID(ctx, "42")
	assert.Equal(t, auth.RoleMentor, again.Role)
}

func TestCachedDirectory_LookupDuringRegisterNotCached(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{users: map[string]User{
		"42": {ID: 1, TelegramID: "42", Role: auth.RoleStudent},
	}}
	c := NewCachedDirectory(store, DefaultCacheConfig())

	var seenDuringWrite *User
	store.duringRegister = func() {
		// A concurrent login reads the pre-registration record
		seenDuringWrite, _ = c.LookupByTelegramID(ctx, "42")
	}

	registered, err := c.Register(ctx, Profile{TelegramID: "42"}, auth.RoleTeacher, &Group{ID: 3})
	require.NoError(t, err)
	require.NotNil(t, seenDuringWrite)
	assert.Equal(t, auth.RoleStudent, seenDuringWrite.Role)
	assert.Equal(t, auth.RoleTeacher, registered.Role)

	lookupsBefore := store.lookups
	u, err := c.LookupByTelegramID(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleTeacher, u.Role)
	require.NotNil(t, u.GroupID)
	assert.Equal(t, int64(3), *u.GroupID)
	assert.Equal(t, lookupsBefore, store.lookups, "fresh record served from cache")
}

func TestCachedDirectory_RegisterFailureDropsEntry(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{users: map[string]User{
		"42": {ID: 1, TelegramID: "42", Role: auth.RoleStudent},
	}}
	c := NewCachedDirectory(store, DefaultCacheConfig())

	store.duringRegister = func() {
		_, _ = c.LookupByTelegramID(ctx, "42")
	}
	store.registerErr = ErrTeacherTaken

	_, err := c.Register(ctx, Profile{TelegramID: "42"}, auth.RoleTeacher, &Group{ID: 3})
	assert.ErrorIs(t, err, ErrTeacherTaken)
	assert.Equal(t, 0, c.Stats().Size)
}

func TestCachedDirectory_StaleFillAfterRegisterDiscarded(t *testing.T) {
	ctx := context.Background()
	store := &blockingStore{fakeStore: fakeStore{users: map[string]User{
		"42": {ID: 1, TelegramID: "42", Role: auth.RoleStudent},
	}}, release: make(chan struct{}), reading: make(chan struct{})}
	c := NewCachedDirectory(store, DefaultCacheConfig())

	done := make(chan *User)
	go func() {
		u, _ := c.LookupByTelegramID(ctx, "42")
		done <- u
	}()

	// The lookup has read the old record but not stored it yet
	<-store.reading
	_, err := c.Register(ctx, Profile{TelegramID: "42"}, auth.RoleMentor, &Group{ID: 3})
	require.NoError(t, err)
	close(store.release)

	stale := <-done
	assert.Equal(t, auth.RoleStudent, stale.Role)

	u, err := c.LookupByTelegramID(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleMentor, u.Role)
}

// blockingStore holds the first lookup after it has read the record
type blockingStore struct {
	fakeStore
	reading chan struct{}
	release chan struct{}
	blocked bool
}

func (b *blockingStore) LookupByTelegramID(ctx context.Context, telegramID string) (*User, error) {
	u, err := b.fakeStore.LookupByTelegramID(ctx, telegramID)
	if !b.blocked {
		b.blocked = true
		close(b.reading)
		<-b.release
	}
	return u, err
}

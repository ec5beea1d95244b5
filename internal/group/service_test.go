package group

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"murmur/internal/apperr"
)

type fakeStore struct {
	nextID  int64
	groups  map[int64]*Group
	members map[int64][]int64
	fail    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, groups: make(map[int64]*Group), members: make(map[int64][]int64)}
}

func (f *fakeStore) Create(_ context.Context, g *Group, memberIDs []int64) (*Group, error) {
	created := *g
	created.ID = f.nextID
	f.nextID++
	f.groups[created.ID] = &created
	f.members[created.ID] = append([]int64{}, memberIDs...)
	out := created
	return &out, nil
}

func (f *fakeStore) ByID(_ context.Context, id int64) (*Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, apperr.NotFound("group not found")
	}
	out := *g
	return &out, nil
}

func (f *fakeStore) IsMember(_ context.Context, groupID, userID int64) (bool, error) {
	return lo.Contains(f.members[groupID], userID), nil
}

func (f *fakeStore) MemberIDs(_ context.Context, groupID int64) ([]int64, error) {
	return f.members[groupID], nil
}

func (f *fakeStore) IDsForMember(_ context.Context, userID int64) ([]int64, error) {
	if f.fail {
		return nil, errors.New("store unavailable")
	}
	var ids []int64
	for groupID, members := range f.members {
		if lo.Contains(members, userID) {
			ids = append(ids, groupID)
		}
	}
	return ids, nil
}

func (f *fakeStore) ForMember(ctx context.Context, userID int64) ([]Group, error) {
	ids, _ := f.IDsForMember(ctx, userID)
	var out []Group
	for _, id := range ids {
		out = append(out, *f.groups[id])
	}
	return out, nil
}

func (f *fakeStore) AddMembers(_ context.Context, groupID int64, userIDs []int64) error {
	f.members[groupID] = lo.Uniq(append(f.members[groupID], userIDs...))
	return nil
}

type fakeCache struct {
	data        map[int64][]int64
	invalidated []int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[int64][]int64)}
}

func (f *fakeCache) GroupIDs(_ context.Context, userID int64) ([]int64, bool) {
	ids, ok := f.data[userID]
	return ids, ok
}

func (f *fakeCache) SetGroupIDs(_ context.Context, userID int64, ids []int64) {
	if len(ids) > 0 {
		f.data[userID] = ids
	}
}

func (f *fakeCache) Invalidate(_ context.Context, userIDs ...int64) {
	for _, id := range userIDs {
		delete(f.data, id)
		f.invalidated = append(f.invalidated, id)
	}
}

type fakeJoiner struct {
	joined []userJoinPair
}

type userJoinPair struct{ userID, roomID int64 }

func (f *fakeJoiner) JoinUser(userID, roomID int64) {
	f.joined = append(f.joined, userJoinPair{userID, roomID})
}

type fakeMedia struct{}

func (fakeMedia) Upload(_ context.Context, _ []byte, _ string) (string, error) {
	return "https://cdn.example.com/group-pic", nil
}

func newTestService() (*Service, *fakeStore, *fakeCache, *fakeJoiner) {
	store := newFakeStore()
	cache := newFakeCache()
	joiner := &fakeJoiner{}
	svc := NewService(store, cache, fakeMedia{}, joiner, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, store, cache, joiner
}

func TestCreate_AdminIsAlwaysAMember(t *testing.T) {
	req := require.New(t)
	svc, store, _, joiner := newTestService()

	g, err := svc.Create(context.Background(), 1, &CreateGroupRequest{
		Name:    "team",
		Members: []int64{2, 3, 2}, // duplicate on purpose
	})
	req.NoError(err)
	req.Equal(int64(1), g.AdminID)
	req.ElementsMatch([]int64{1, 2, 3}, store.members[g.ID])

	// The creating session joins its own room before the call returns.
	req.Contains(joiner.joined, userJoinPair{1, g.ID})
}

func TestCreate_AdminListedExplicitlyIsNotDuplicated(t *testing.T) {
	req := require.New(t)
	svc, store, _, _ := newTestService()

	g, err := svc.Create(context.Background(), 1, &CreateGroupRequest{
		Name:    "team",
		Members: []int64{1, 2},
	})
	req.NoError(err)
	req.ElementsMatch([]int64{1, 2}, store.members[g.ID])
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Create(context.Background(), 1, &CreateGroupRequest{Name: "", Members: []int64{2}})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Create(context.Background(), 1, &CreateGroupRequest{Name: "team"})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreate_InvalidatesMembershipCache(t *testing.T) {
	req := require.New(t)
	svc, _, cache, _ := newTestService()

	cache.data[2] = []int64{99}

	_, err := svc.Create(context.Background(), 1, &CreateGroupRequest{Name: "team", Members: []int64{2}})
	req.NoError(err)
	req.NotContains(cache.data, int64(2))
}

func TestAddMembers_AdminOnly(t *testing.T) {
	req := require.New(t)
	svc, store, _, joiner := newTestService()
	ctx := context.Background()

	g, err := svc.Create(ctx, 1, &CreateGroupRequest{Name: "team", Members: []int64{2}})
	req.NoError(err)

	_, err = svc.AddMembers(ctx, g.ID, 2, &AddMembersRequest{Members: []int64{4}})
	req.Equal(apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.AddMembers(ctx, 99, 1, &AddMembersRequest{Members: []int64{4}})
	req.Equal(apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.AddMembers(ctx, g.ID, 1, &AddMembersRequest{Members: []int64{4, 4}})
	req.NoError(err)
	req.ElementsMatch([]int64{1, 2, 4}, store.members[g.ID])
	req.Contains(joiner.joined, userJoinPair{4, g.ID})
}

func TestRoomsForUser_ReadThroughCache(t *testing.T) {
	req := require.New(t)
	svc, store, cache, _ := newTestService()
	ctx := context.Background()

	g, err := svc.Create(ctx, 1, &CreateGroupRequest{Name: "team", Members: []int64{2}})
	req.NoError(err)

	// Miss populates the cache.
	rooms, err := svc.RoomsForUser(ctx, 2)
	req.NoError(err)
	req.Equal([]int64{g.ID}, rooms)
	req.Contains(cache.data, int64(2))

	// Hit never touches the store.
	store.fail = true
	rooms, err = svc.RoomsForUser(ctx, 2)
	req.NoError(err)
	req.Equal([]int64{g.ID}, rooms)

	// Miss with a failing store surfaces the error so the gateway can
	// degrade the session instead of aborting the connection.
	_, err = svc.RoomsForUser(ctx, 3)
	req.Error(err)
}

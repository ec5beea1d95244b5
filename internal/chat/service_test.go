package chat

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"murmur/internal/apperr"
)

// fakeMessageStore keeps messages in memory with the same visibility and
// seen-marking predicates the SQL repository applies.
type fakeMessageStore struct {
	nextID   int64
	messages map[int64]*Message
	deleted  map[int64]map[int64]bool // message id -> user ids who hid it
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{
		nextID:   1,
		messages: make(map[int64]*Message),
		deleted:  make(map[int64]map[int64]bool),
	}
}

func (f *fakeMessageStore) Insert(_ context.Context, m *Message) (*Message, error) {
	saved := *m
	saved.ID = f.nextID
	saved.CreatedAt = time.Now()
	f.nextID++
	f.messages[saved.ID] = &saved
	out := saved
	return &out, nil
}

func (f *fakeMessageStore) ByID(_ context.Context, id int64) (*Message, error) {
	m, ok := f.messages[id]
	if !ok {
		return nil, apperr.NotFound("message not found")
	}
	out := *m
	return &out, nil
}

func (f *fakeMessageStore) visible(m *Message, viewerID int64) bool {
	return !m.IsDeleted && !f.deleted[m.ID][viewerID]
}

func (f *fakeMessageStore) Conversation(_ context.Context, viewerID, otherID int64) ([]Message, error) {
	var out []Message
	for id := int64(1); id < f.nextID; id++ {
		m, ok := f.messages[id]
		if !ok || m.ReceiverID == nil {
			continue
		}
		direct := (m.SenderID == viewerID && *m.ReceiverID == otherID) ||
			(m.SenderID == otherID && *m.ReceiverID == viewerID)
		if direct && f.visible(m, viewerID) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) GroupMessages(_ context.Context, groupID, viewerID int64) ([]Message, error) {
	var out []Message
	for id := int64(1); id < f.nextID; id++ {
		m, ok := f.messages[id]
		if ok && m.GroupID != nil && *m.GroupID == groupID && f.visible(m, viewerID) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) MarkSeen(_ context.Context, viewerID int64, t Target, seenAt, expireAt time.Time) (int64, error) {
	var n int64
	for _, m := range f.messages {
		if m.SeenAt != nil {
			continue
		}
		var qualifies bool
		if t.IsGroup() {
			qualifies = m.GroupID != nil && *m.GroupID == t.ID && m.SenderID != viewerID
		} else {
			qualifies = m.ReceiverID != nil && *m.ReceiverID == viewerID && m.SenderID == t.ID
		}
		if qualifies {
			s, e := seenAt, expireAt
			m.SeenAt, m.ExpireAt = &s, &e
			n++
		}
	}
	return n, nil
}

func (f *fakeMessageStore) HardDelete(_ context.Context, id int64) error {
	delete(f.messages, id)
	return nil
}

func (f *fakeMessageStore) AddDeletion(_ context.Context, messageID, userID int64) error {
	if f.deleted[messageID] == nil {
		f.deleted[messageID] = make(map[int64]bool)
	}
	f.deleted[messageID][userID] = true
	return nil
}

func (f *fakeMessageStore) PartnerIDs(_ context.Context, userID int64) ([]int64, error) {
	seen := make(map[int64]bool)
	var out []int64
	for _, m := range f.messages {
		if m.ReceiverID == nil {
			continue
		}
		var partner int64
		switch {
		case m.SenderID == userID:
			partner = *m.ReceiverID
		case *m.ReceiverID == userID:
			partner = m.SenderID
		default:
			continue
		}
		if !seen[partner] {
			seen[partner] = true
			out = append(out, partner)
		}
	}
	return out, nil
}

type fakeDirectory struct {
	users map[int64]string
}

func (f *fakeDirectory) Exists(_ context.Context, id int64) (bool, error) {
	_, ok := f.users[id]
	return ok, nil
}

func (f *fakeDirectory) Display(_ context.Context, id int64) (string, string, error) {
	name, ok := f.users[id]
	if !ok {
		return "", "", apperr.NotFound("user not found")
	}
	return name, "pic-" + name, nil
}

type fakeMembership struct {
	members map[int64][]int64 // group id -> user ids
}

func (f *fakeMembership) IsMember(_ context.Context, groupID, userID int64) (bool, error) {
	for _, id := range f.members[groupID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

type fakeRouter struct {
	delivered []Target
	messages  []*Message
}

func (f *fakeRouter) Deliver(m *Message, t Target) {
	f.messages = append(f.messages, m)
	f.delivered = append(f.delivered, t)
}

type fakeMedia struct {
	fail bool
}

func (f *fakeMedia) Upload(_ context.Context, _ []byte, _ string) (string, error) {
	if f.fail {
		return "", apperr.Upstream("media store unavailable", nil)
	}
	return "https://cdn.example.com/obj", nil
}

func newTestService() (*Service, *fakeMessageStore, *fakeRouter) {
	store := newFakeMessageStore()
	router := &fakeRouter{}
	dir := &fakeDirectory{users: map[int64]string{1: "alice", 2: "bob"}}
	groups := &fakeMembership{members: map[int64][]int64{7: {1, 2}}}
	svc := NewService(store, dir, groups, &fakeMedia{}, router, 2*time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, store, router
}

func TestSend_DirectPersistsAndRoutes(t *testing.T) {
	req := require.New(t)
	svc, store, router := newTestService()

	m, err := svc.Send(context.Background(), 1, DirectTarget(2), &SendRequest{Text: "hi"})
	req.NoError(err)
	req.NotNil(m.ReceiverID)
	req.Equal(int64(2), *m.ReceiverID)
	req.Nil(m.GroupID)
	req.Len(store.messages, 1)

	req.Len(router.delivered, 1)
	req.Equal(DirectTarget(2), router.delivered[0])
}

func TestSend_GroupPersistsAndEnrichesSender(t *testing.T) {
	req := require.New(t)
	svc, _, router := newTestService()

	m, err := svc.Send(context.Background(), 1, GroupTarget(7), &SendRequest{Text: "hello all", IsGroup: true})
	req.NoError(err)
	req.NotNil(m.GroupID)
	req.Equal(int64(7), *m.GroupID)
	req.Nil(m.ReceiverID)
	req.Equal("alice", m.SenderName)
	req.Equal("pic-alice", m.SenderPic)

	req.Equal(GroupTarget(7), router.delivered[0])
	req.Equal("alice", router.messages[0].SenderName)
}

func TestSend_Rejections(t *testing.T) {
	svc, store, router := newTestService()
	ctx := context.Background()

	cases := []struct {
		name   string
		sender int64
		target Target
		req    SendRequest
		kind   apperr.Kind
	}{
		{"empty payload", 1, DirectTarget(2), SendRequest{}, apperr.KindValidation},
		{"self send", 1, DirectTarget(1), SendRequest{Text: "hi"}, apperr.KindValidation},
		{"ghost receiver", 1, DirectTarget(99), SendRequest{Text: "hi"}, apperr.KindNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Send(ctx, tc.sender, tc.target, &tc.req)
			require.Error(t, err)
			require.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}

	// No rejection left a record or a delivery behind.
	require.Empty(t, store.messages)
	require.Empty(t, router.delivered)
}

func TestSend_MediaFailureIsUpstreamAndWritesNothing(t *testing.T) {
	req := require.New(t)
	store := newFakeMessageStore()
	router := &fakeRouter{}
	dir := &fakeDirectory{users: map[int64]string{1: "alice", 2: "bob"}}
	svc := NewService(store, dir, &fakeMembership{}, &fakeMedia{fail: true}, router, 2*time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.Send(context.Background(), 1, DirectTarget(2), &SendRequest{Image: "aGVsbG8="})
	req.Error(err)
	req.Equal(apperr.KindUpstream, apperr.KindOf(err))
	req.Empty(store.messages)
	req.Empty(router.delivered)
}

func TestSend_AttachmentsResolveToURLs(t *testing.T) {
	req := require.New(t)
	svc, _, _ := newTestService()

	m, err := svc.Send(context.Background(), 1, DirectTarget(2), &SendRequest{
		File:     "aGVsbG8gd29ybGQ=", // "hello world": not an image
		FileName: "notes.txt",
		FileType: "text/plain",
	})
	req.NoError(err)
	req.Equal("https://cdn.example.com/obj", m.FileURL)
	req.Equal("notes.txt", m.FileName)
	req.Equal("text/plain", m.FileType)
	req.Empty(m.Image)

	m, err = svc.Send(context.Background(), 1, DirectTarget(2), &SendRequest{
		File:     "aGVsbG8=",
		FileType: "image/png",
	})
	req.NoError(err)
	req.Equal("https://cdn.example.com/obj", m.Image)
	req.Empty(m.FileURL)
}

func TestMarkSeen_IsIdempotent(t *testing.T) {
	req := require.New(t)
	svc, store, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Send(ctx, 1, DirectTarget(2), &SendRequest{Text: "one"})
	req.NoError(err)
	_, err = svc.Send(ctx, 1, DirectTarget(2), &SendRequest{Text: "two"})
	req.NoError(err)

	n, err := svc.MarkSeen(ctx, 2, DirectTarget(1))
	req.NoError(err)
	req.Equal(int64(2), n)

	first, err := store.ByID(ctx, 1)
	req.NoError(err)
	req.NotNil(first.SeenAt)
	req.NotNil(first.ExpireAt)
	req.Equal(first.SeenAt.Add(2*time.Hour), *first.ExpireAt)

	// Re-marking touches nothing: the timestamps never move.
	n, err = svc.MarkSeen(ctx, 2, DirectTarget(1))
	req.NoError(err)
	req.Zero(n)

	again, err := store.ByID(ctx, 1)
	req.NoError(err)
	req.Equal(*first.SeenAt, *again.SeenAt)
	req.Equal(*first.ExpireAt, *again.ExpireAt)
}

func TestMarkSeen_GroupSkipsOwnMessages(t *testing.T) {
	req := require.New(t)
	svc, store, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Send(ctx, 1, GroupTarget(7), &SendRequest{Text: "from alice", IsGroup: true})
	req.NoError(err)
	_, err = svc.Send(ctx, 2, GroupTarget(7), &SendRequest{Text: "from bob", IsGroup: true})
	req.NoError(err)

	n, err := svc.MarkSeen(ctx, 1, GroupTarget(7))
	req.NoError(err)
	req.Equal(int64(1), n) // only bob's message qualifies for alice

	own, err := store.ByID(ctx, 1)
	req.NoError(err)
	req.Nil(own.SeenAt)
}

func TestDelete_ScopeValidation(t *testing.T) {
	svc, _, _ := newTestService()

	err := svc.Delete(context.Background(), 1, 1, "everyone")
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = svc.Delete(context.Background(), 1, 99, ScopeMe)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDelete_AllIsSenderOnlyAndGlobal(t *testing.T) {
	req := require.New(t)
	svc, _, _ := newTestService()
	ctx := context.Background()

	m, err := svc.Send(ctx, 1, DirectTarget(2), &SendRequest{Text: "oops"})
	req.NoError(err)

	err = svc.Delete(ctx, 2, m.ID, ScopeAll)
	req.Equal(apperr.KindForbidden, apperr.KindOf(err))

	req.NoError(svc.Delete(ctx, 1, m.ID, ScopeAll))

	for _, viewer := range []int64{1, 2} {
		msgs, err := svc.Conversation(ctx, viewer, 3-viewer)
		req.NoError(err)
		req.Empty(msgs)
	}
}

func TestDelete_MeHidesForRequesterOnly(t *testing.T) {
	req := require.New(t)
	svc, _, _ := newTestService()
	ctx := context.Background()

	m, err := svc.Send(ctx, 1, DirectTarget(2), &SendRequest{Text: "keep"})
	req.NoError(err)

	req.NoError(svc.Delete(ctx, 2, m.ID, ScopeMe))
	req.NoError(svc.Delete(ctx, 2, m.ID, ScopeMe)) // repeat is a no-op, never an error

	mine, err := svc.Conversation(ctx, 1, 2)
	req.NoError(err)
	req.Len(mine, 1)

	hidden, err := svc.Conversation(ctx, 2, 1)
	req.NoError(err)
	req.Empty(hidden)
}

func TestGroupMessages_RequiresMembership(t *testing.T) {
	req := require.New(t)
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Send(ctx, 1, GroupTarget(7), &SendRequest{Text: "hi", IsGroup: true})
	req.NoError(err)

	msgs, err := svc.GroupMessages(ctx, 2, 7)
	req.NoError(err)
	req.Len(msgs, 1)

	_, err = svc.GroupMessages(ctx, 3, 7) // not a member
	req.Equal(apperr.KindForbidden, apperr.KindOf(err))
}

package access_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vnkhanh/coderoom-server/access"
	"github.com/vnkhanh/coderoom-server/models"
	"github.com/vnkhanh/coderoom-server/store"
	"github.com/vnkhanh/coderoom-server/store/storetest"
)

type fixture struct {
	db    *gorm.DB
	store *store.Store
	svc   *access.Service
	ctx   context.Context
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := storetest.Open(t)
	s := store.New(db)
	return &fixture{db: db, store: s, svc: access.NewServiceFromStore(s), ctx: context.Background()}
}

func (f *fixture) user(t *testing.T, name string) uint {
	return storetest.CreateUser(t, f.db, name).ID
}

func (f *fixture) pendingCount(t *testing.T, roomRef, requesterID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.JoinRequest{}).
		Where("room_ref = ? AND requester_id = ? AND status <> ?", roomRef, requesterID, models.JoinRejected).
		Count(&n).Error)
	return n
}

func TestCreateRoom(t *testing.T) {
	f := setup(t)
	u1 := f.user(t, "u1")

	room, err := f.svc.CreateRoom(f.ctx, "  algo-club ", u1)
	require.NoError(t, err)
	assert.Equal(t, "algo-club", room.Name)
	assert.Len(t, room.RoomID, 36)

	_, err = f.svc.CreateRoom(f.ctx, "algo-club", u1)
	assert.ErrorIs(t, err, access.ErrRoomNameTaken)
	assert.ErrorIs(t, err, access.ErrConflict)

	_, err = f.svc.CreateRoom(f.ctx, "   ", u1)
	assert.ErrorIs(t, err, access.ErrInvalidInput)
}

func TestAlgoClubScenario(t *testing.T) {
	f := setup(t)
	u1, u2, u3 := f.user(t, "u1"), f.user(t, "u2"), f.user(t, "u3")

	room, err := f.svc.CreateRoom(f.ctx, "algo-club", u1)
	require.NoError(t, err)

	res, err := f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)
	assert.Equal(t, access.OutcomeCreated, res.Outcome)

	pending, err := f.svc.ListPending(f.ctx, room.RoomID, u1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, u2, pending[0].Requester.ID)
	assert.Equal(t, "u2", pending[0].Requester.Username)
	assert.Equal(t, "u2@example.com", pending[0].Requester.Email)

	require.NoError(t, f.svc.AcceptRequest(f.ctx, pending[0].RequestID, u1))

	member, err := f.store.Rooms.IsMember(f.ctx, room.ID, u2)
	require.NoError(t, err)
	assert.True(t, member)
	req, err := f.store.Requests.FindByID(f.ctx, pending[0].RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.JoinAccepted, req.Status)

	// Accepted and already a member: nothing new is filed.
	res, err = f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)
	assert.Equal(t, access.OutcomeAlreadyMember, res.Outcome)
	assert.Equal(t, int64(1), f.pendingCount(t, room.ID, u2))

	// Membership gates the member list.
	_, err = f.svc.ListMembers(f.ctx, room.RoomID, u3)
	assert.ErrorIs(t, err, access.ErrNotAuthorized)

	members, err := f.svc.ListMembers(f.ctx, room.RoomID, u2)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, u2, members[0].ID)
}

func TestRequestJoin_AcceptedButNotJoined(t *testing.T) {
	f := setup(t)
	u1, u2 := f.user(t, "u1"), f.user(t, "u2")
	room, err := f.svc.CreateRoom(f.ctx, "r", u1)
	require.NoError(t, err)

	res, err := f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)
	require.NoError(t, f.svc.AcceptRequest(f.ctx, res.Request.ID, u1))

	// The requester left before ever joining; the accepted request remains.
	require.NoError(t, f.svc.Leave(f.ctx, room.RoomID, u2))
	res, err = f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)
	assert.Equal(t, access.OutcomeAccepted, res.Outcome)
	assert.Equal(t, int64(1), f.pendingCount(t, room.ID, u2))

	_, err = f.svc.Join(f.ctx, room.RoomID, u2)
	require.NoError(t, err)
}

func TestRequestJoin_CreatorIsAlreadyMember(t *testing.T) {
	f := setup(t)
	u1 := f.user(t, "u1")
	room, err := f.svc.CreateRoom(f.ctx, "r", u1)
	require.NoError(t, err)

	res, err := f.svc.RequestJoin(f.ctx, room.RoomID, u1)
	require.NoError(t, err)
	assert.Equal(t, access.OutcomeAlreadyMember, res.Outcome)
	assert.Equal(t, int64(0), f.pendingCount(t, room.ID, u1))
}

func TestRequestJoin_PendingIsWait(t *testing.T) {
	f := setup(t)
	u1, u2 := f.user(t, "u1"), f.user(t, "u2")
	room, err := f.svc.CreateRoom(f.ctx, "r", u1)
	require.NoError(t, err)

	first, err := f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)
	second, err := f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)
	assert.Equal(t, access.OutcomePending, second.Outcome)
	assert.Equal(t, first.Request.ID, second.Request.ID)
}

func TestRequestJoin_UnknownRoom(t *testing.T) {
	f := setup(t)
	_, err := f.svc.RequestJoin(f.ctx, "missing", f.user(t, "u2"))
	assert.ErrorIs(t, err, access.ErrNotFound)
}

func TestRequestJoin_Concurrent(t *testing.T) {
	f := setup(t)
	u1, u2 := f.user(t, "u1"), f.user(t, "u2")
	room, err := f.svc.CreateRoom(f.ctx, "r", u1)
	require.NoError(t, err)

	const callers = 8
	outcomes := make([]access.JoinOutcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.RequestJoin(f.ctx, room.RoomID, u2)
			if assert.NoError(t, err) {
				outcomes[i] = res.Outcome
			}
		}(i)
	}
	wg.Wait()

	created := 0
	for _, o := range outcomes {
		switch o {
		case access.OutcomeCreated:
			created++
		default:
			assert.Equal(t, access.OutcomePending, o)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, int64(1), f.pendingCount(t, room.ID, u2))
}

func TestListPending_CreatorOnly(t *testing.T) {
	f := setup(t)
	u1, u2 := f.user(t, "u1"), f.user(t, "u2")
	room, err := f.svc.CreateRoom(f.ctx, "r", u1)
	require.NoError(t, err)
	_, err = f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)

	_, err = f.svc.ListPending(f.ctx, room.RoomID, u2)
	assert.ErrorIs(t, err, access.ErrNotAuthorized)
}

func TestAcceptRequest_EffectiveOnce(t *testing.T) {
	f := setup(t)
	u1, u2 := f.user(t, "u1"), f.user(t, "u2")
	room, err := f.svc.CreateRoom(f.ctx, "r", u1)
	require.NoError(t, err)
	res, err := f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)

	require.NoError(t, f.svc.AcceptRequest(f.ctx, res.Request.ID, u1))
	err = f.svc.AcceptRequest(f.ctx, res.Request.ID, u1)
	assert.ErrorIs(t, err, access.ErrNotFound)

	ids, err := f.store.Rooms.MemberIDs(f.ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{u2}, ids)

	u, err := f.store.Users.FindByID(f.ctx, u2)
	require.NoError(t, err)
	assert.Equal(t, models.RoomHistory{room.RoomID}, u.Rooms)
}

func TestAcceptRequest_ConcurrentAcceptsApplyOnce(t *testing.T) {
	f := setup(t)
	u1, u2 := f.user(t, "u1"), f.user(t, "u2")
	room, err := f.svc.CreateRoom(f.ctx, "r", u1)
	require.NoError(t, err)
	res, err := f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)

	errs := make([]error, 4)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.AcceptRequest(f.ctx, res.Request.ID, u1)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, access.ErrNotFound)
	}
	assert.Equal(t, 1, ok)
}

func TestAcceptRequest_Guards(t *testing.T) {
	f := setup(t)
	u1, u2, u3 := f.user(t, "u1"), f.user(t, "u2"), f.user(t, "u3")
	room, err := f.svc.CreateRoom(f.ctx, "r", u1)
	require.NoError(t, err)
	res, err := f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.AcceptRequest(f.ctx, 9999, u1), access.ErrNotFound)
	assert.ErrorIs(t, f.svc.AcceptRequest(f.ctx, res.Request.ID, u3), access.ErrNotAuthorized)
	assert.ErrorIs(t, f.svc.AcceptRequest(f.ctx, res.Request.ID, u2), access.ErrNotAuthorized)
}

// failingDirectory breaks the last step of an acceptance.
type failingDirectory struct {
	access.Directory
}

func (failingDirectory) RecordVisit(context.Context, uint, string) error {
	return errors.New("history unavailable")
}

func TestAcceptRequest_FailureLeavesNoPartialState(t *testing.T) {
	f := setup(t)
	u1, u2 := f.user(t, "u1"), f.user(t, "u2")
	room, err := f.svc.CreateRoom(f.ctx, "r", u1)
	require.NoError(t, err)
	res, err := f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)

	broken := access.NewService(f.store.Rooms, f.store.Requests, failingDirectory{f.store.Users}, f.store.Tx)
	require.Error(t, broken.AcceptRequest(f.ctx, res.Request.ID, u1))

	req, err := f.store.Requests.FindByID(f.ctx, res.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JoinPending, req.Status)
	member, err := f.store.Rooms.IsMember(f.ctx, room.ID, u2)
	require.NoError(t, err)
	assert.False(t, member)

	// The request is still reviewable once the directory recovers.
	require.NoError(t, f.svc.AcceptRequest(f.ctx, res.Request.ID, u1))
}

// vanishedDirectory looks the requester up under an id that has no user row.
type vanishedDirectory struct {
	access.Directory
}

func (d vanishedDirectory) RecordVisit(ctx context.Context, userID uint, roomID string) error {
	return d.Directory.RecordVisit(ctx, userID+1000, roomID)
}

func TestAcceptRequest_MissingRequesterIsNotAlreadyHandled(t *testing.T) {
	f := setup(t)
	u1, u2 := f.user(t, "u1"), f.user(t, "u2")
	room, err := f.svc.CreateRoom(f.ctx, "r", u1)
	require.NoError(t, err)
	res, err := f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)

	broken := access.NewService(f.store.Rooms, f.store.Requests, vanishedDirectory{f.store.Users}, f.store.Tx)
	err = broken.AcceptRequest(f.ctx, res.Request.ID, u1)
	require.ErrorIs(t, err, access.ErrNotFound)
	assert.NotContains(t, err.Error(), "already handled")
	assert.Contains(t, err.Error(), "no longer exists")

	req, err := f.store.Requests.FindByID(f.ctx, res.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JoinPending, req.Status)
}

func TestAcceptRequest_RaceLostIsAlreadyHandled(t *testing.T) {
	f := setup(t)
	u1, u2 := f.user(t, "u1"), f.user(t, "u2")
	room, err := f.svc.CreateRoom(f.ctx, "r", u1)
	require.NoError(t, err)
	res, err := f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)

	// Another reviewer settles the request between the read and the transition.
	require.NoError(t, f.store.Requests.Transition(f.ctx, res.Request.ID, models.JoinPending, models.JoinRejected, u1))
	stale := access.NewService(f.store.Rooms, staleLedger{f.store.Requests, res.Request}, f.store.Users, f.store.Tx)
	err = stale.AcceptRequest(f.ctx, res.Request.ID, u1)
	require.ErrorIs(t, err, access.ErrNotFound)
	assert.Contains(t, err.Error(), "already handled")
}

// staleLedger returns a snapshot taken before the request was reviewed.
type staleLedger struct {
	access.RequestLedger
	snapshot *models.JoinRequest
}

func (l staleLedger) FindByID(context.Context, uint) (*models.JoinRequest, error) {
	c := *l.snapshot
	return &c, nil
}

func TestAcceptRequest_CancelledContextRollsBack(t *testing.T) {
	f := setup(t)
	u1, u2 := f.user(t, "u1"), f.user(t, "u2")
	room, err := f.svc.CreateRoom(f.ctx, "r", u1)
	require.NoError(t, err)
	res, err := f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()
	require.Error(t, f.svc.AcceptRequest(ctx, res.Request.ID, u1))

	req, err := f.store.Requests.FindByID(f.ctx, res.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JoinPending, req.Status)
}

func TestRejectRequest_AllowsRerequest(t *testing.T) {
	f := setup(t)
	u1, u2 := f.user(t, "u1"), f.user(t, "u2")
	room, err := f.svc.CreateRoom(f.ctx, "r", u1)
	require.NoError(t, err)
	first, err := f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)

	require.NoError(t, f.svc.RejectRequest(f.ctx, first.Request.ID, u1))
	assert.ErrorIs(t, f.svc.AcceptRequest(f.ctx, first.Request.ID, u1), access.ErrNotFound)

	_, err = f.svc.Join(f.ctx, room.RoomID, u2)
	assert.ErrorIs(t, err, access.ErrNotAuthorized)

	second, err := f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)
	assert.Equal(t, access.OutcomeCreated, second.Outcome)
	assert.NotEqual(t, first.Request.ID, second.Request.ID)
}

func TestJoinAndLeaveAreIdempotent(t *testing.T) {
	f := setup(t)
	u1, u2, u3 := f.user(t, "u1"), f.user(t, "u2"), f.user(t, "u3")
	room, err := f.svc.CreateRoom(f.ctx, "r", u1)
	require.NoError(t, err)

	_, err = f.svc.Join(f.ctx, room.RoomID, u3)
	assert.ErrorIs(t, err, access.ErrNotAuthorized)

	for i := 0; i < 3; i++ {
		_, err = f.svc.Join(f.ctx, room.RoomID, u1)
		require.NoError(t, err)
	}
	res, err := f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)
	require.NoError(t, f.svc.AcceptRequest(f.ctx, res.Request.ID, u1))
	_, err = f.svc.Join(f.ctx, room.RoomID, u2)
	require.NoError(t, err)

	ids, err := f.store.Rooms.MemberIDs(f.ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{u1, u2}, ids)

	u, err := f.store.Users.FindByID(f.ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, models.RoomHistory{room.RoomID}, u.Rooms)

	for i := 0; i < 2; i++ {
		require.NoError(t, f.svc.Leave(f.ctx, room.RoomID, u2))
	}
	require.NoError(t, f.svc.Leave(f.ctx, room.RoomID, u3))
	ids, err = f.store.Rooms.MemberIDs(f.ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{u1}, ids)
}

func TestListMembers_CallerFirst(t *testing.T) {
	f := setup(t)
	u1, u2, u3 := f.user(t, "u1"), f.user(t, "u2"), f.user(t, "u3")
	room, err := f.svc.CreateRoom(f.ctx, "r", u1)
	require.NoError(t, err)
	for _, id := range []uint{u1, u2, u3} {
		require.NoError(t, f.store.Rooms.AddMember(f.ctx, room.ID, id))
	}

	members, err := f.svc.ListMembers(f.ctx, room.RoomID, u3)
	require.NoError(t, err)
	got := []uint{}
	for _, m := range members {
		got = append(got, m.ID)
	}
	assert.Equal(t, []uint{u3, u1, u2}, got)
}

func TestAuthorize(t *testing.T) {
	f := setup(t)
	u1, u2, u3 := f.user(t, "u1"), f.user(t, "u2"), f.user(t, "u3")
	room, err := f.svc.CreateRoom(f.ctx, "r", u1)
	require.NoError(t, err)
	require.NoError(t, f.store.Rooms.AddMember(f.ctx, room.ID, u2))

	for id, want := range map[uint]access.Capability{u1: access.CapCreator, u2: access.CapMember, u3: access.CapStranger} {
		_, got, err := f.svc.Authorize(f.ctx, room.RoomID, id)
		require.NoError(t, err)
		assert.Equal(t, want, got, "user %d", id)
	}

	_, err = f.svc.RequireMember(f.ctx, room.RoomID, u3)
	assert.ErrorIs(t, err, access.ErrNotAuthorized)
	_, err = f.svc.RequireMember(f.ctx, room.RoomID, u2)
	assert.NoError(t, err)
	_, _, err = f.svc.Authorize(f.ctx, "missing", u1)
	assert.ErrorIs(t, err, access.ErrNotFound)
}

func TestRoomDetailsAndListing(t *testing.T) {
	f := setup(t)
	u1 := f.user(t, "u1")
	a, err := f.svc.CreateRoom(f.ctx, "a", u1)
	require.NoError(t, err)
	_, err = f.svc.CreateRoom(f.ctx, "b", u1)
	require.NoError(t, err)

	d, err := f.svc.GetRoomDetails(f.ctx, a.RoomID)
	require.NoError(t, err)
	assert.Equal(t, "a", d.Name)
	assert.Equal(t, "u1", d.Creator.Username)

	_, err = f.svc.GetRoomDetails(f.ctx, "missing")
	assert.ErrorIs(t, err, access.ErrNotFound)

	all, err := f.svc.ListRooms(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRecentRooms(t *testing.T) {
	f := setup(t)
	u1 := f.user(t, "u1")

	var ids []string
	for _, name := range []string{"r1", "r2", "r3", "r4", "r5", "r6"} {
		room, err := f.svc.CreateRoom(f.ctx, name, u1)
		require.NoError(t, err)
		_, err = f.svc.Join(f.ctx, room.RoomID, u1)
		require.NoError(t, err)
		ids = append(ids, room.RoomID)
	}
	require.NoError(t, f.svc.DeleteRoom(f.ctx, ids[4], u1))

	recent, err := f.svc.RecentRooms(f.ctx, u1)
	require.NoError(t, err)
	names := []string{}
	for _, r := range recent {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"r6", "r4", "r3", "r2"}, names)
}

func TestDeleteRoom(t *testing.T) {
	f := setup(t)
	u1, u2, u3 := f.user(t, "u1"), f.user(t, "u2"), f.user(t, "u3")
	room, err := f.svc.CreateRoom(f.ctx, "r", u1)
	require.NoError(t, err)
	res, err := f.svc.RequestJoin(f.ctx, room.RoomID, u2)
	require.NoError(t, err)
	require.NoError(t, f.svc.AcceptRequest(f.ctx, res.Request.ID, u1))
	_, err = f.svc.RequestJoin(f.ctx, room.RoomID, u3)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteRoom(f.ctx, room.RoomID, u2), access.ErrNotAuthorized)
	require.NoError(t, f.svc.DeleteRoom(f.ctx, room.RoomID, u1))

	var left int64
	require.NoError(t, f.db.Model(&models.JoinRequest{}).Where("room_ref = ?", room.ID).Count(&left).Error)
	assert.Zero(t, left)
	ids, err := f.store.Rooms.MemberIDs(f.ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	assert.ErrorIs(t, f.svc.DeleteRoom(f.ctx, room.RoomID, u1), access.ErrNotFound)

	// The name is free again.
	_, err = f.svc.CreateRoom(f.ctx, "r", u1)
	assert.NoError(t, err)
}

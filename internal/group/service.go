package group

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"murmur/internal/apperr"
	"murmur/internal/media"
)

type Store interface {
	Create(ctx context.Context, g *Group, memberIDs []int64) (*Group, error)
	ByID(ctx context.Context, id int64) (*Group, error)
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
	MemberIDs(ctx context.Context, groupID int64) ([]int64, error)
	IDsForMember(ctx context.Context, userID int64) ([]int64, error)
	ForMember(ctx context.Context, userID int64) ([]Group, error)
	AddMembers(ctx context.Context, groupID int64, userIDs []int64) error
}

// RoomJoiner joins a user's live session (if any) to a group's delivery
// room. Implemented by the chat hub.
type RoomJoiner interface {
	JoinUser(userID, roomID int64)
}

type Service struct {
	repo     Store
	cache    MembershipCache
	media    media.Store
	rooms    RoomJoiner
	validate *validator.Validate
	log      *slog.Logger
}

func NewService(repo Store, cache MembershipCache, mediaStore media.Store, rooms RoomJoiner, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		media:    mediaStore,
		rooms:    rooms,
		validate: validator.New(),
		log:      log,
	}
}

// Create persists a new group. The admin is always folded into the member
// set, and the creating user's live session joins the room before the call
// returns so the group is immediately deliverable.
func (s *Service) Create(ctx context.Context, adminID int64, req *CreateGroupRequest) (*Group, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Validation("name and at least one member are required")
	}

	imageURL := ""
	if req.ProfilePic != "" {
		data, err := media.Decode(req.ProfilePic)
		if err != nil {
			return nil, err
		}
		if imageURL, err = s.media.Upload(ctx, data, ""); err != nil {
			return nil, err
		}
	}

	memberIDs := lo.Uniq(append(append([]int64{}, req.Members...), adminID))

	created, err := s.repo.Create(ctx, &Group{
		Name:        req.Name,
		Description: req.Description,
		ProfilePic:  imageURL,
		AdminID:     adminID,
	}, memberIDs)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, memberIDs...)
	s.rooms.JoinUser(adminID, created.ID)

	groups, err := s.repo.ForMember(ctx, adminID)
	if err == nil {
		for i := range groups {
			if groups[i].ID == created.ID {
				return &groups[i], nil
			}
		}
	}
	return created, nil
}

func (s *Service) MyGroups(ctx context.Context, userID int64) ([]Group, error) {
	return s.repo.ForMember(ctx, userID)
}

func (s *Service) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	return s.repo.IsMember(ctx, groupID, userID)
}

// AddMembers is the only membership mutation besides creation. Admin only.
// Added members that are online join the room right away.
func (s *Service) AddMembers(ctx context.Context, groupID, actorID int64, req *AddMembersRequest) (*Group, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Validation("at least one member is required")
	}

	g, err := s.repo.ByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.AdminID != actorID {
		return nil, apperr.Forbidden("only the group admin may add members")
	}

	added := lo.Uniq(req.Members)
	if err := s.repo.AddMembers(ctx, groupID, added); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, added...)
	for _, id := range added {
		s.rooms.JoinUser(id, groupID)
	}

	return s.repo.ByID(ctx, groupID)
}

// RoomsForUser resolves the delivery rooms for a connecting session,
// read-through cached. Both cache and store failures degrade to "no rooms"
// at the caller, never to a failed connection.
func (s *Service) RoomsForUser(ctx context.Context, userID int64) ([]int64, error) {
	if ids, ok := s.cache.GroupIDs(ctx, userID); ok {
		return ids, nil
	}

	ids, err := s.repo.IDsForMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.SetGroupIDs(ctx, userID, ids)
	return ids, nil
}

package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"murmur/internal/apperr"
	"murmur/internal/media"
)

// MessageStore is the slice of the repository the lifecycle manager needs.
type MessageStore interface {
	Insert(ctx context.Context, m *Message) (*Message, error)
	ByID(ctx context.Context, id int64) (*Message, error)
	Conversation(ctx context.Context, viewerID, otherID int64) ([]Message, error)
	GroupMessages(ctx context.Context, groupID, viewerID int64) ([]Message, error)
	MarkSeen(ctx context.Context, viewerID int64, t Target, seenAt, expireAt time.Time) (int64, error)
	HardDelete(ctx context.Context, id int64) error
	AddDeletion(ctx context.Context, messageID, userID int64) error
	PartnerIDs(ctx context.Context, userID int64) ([]int64, error)
}

// UserDirectory is what the lifecycle manager needs from the identity side.
type UserDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
	Display(ctx context.Context, id int64) (name, pic string, err error)
}

// Membership answers group membership checks.
type Membership interface {
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
}

// Router hands a persisted message to the transport layer. Implemented by
// the hub; fire and forget.
type Router interface {
	Deliver(m *Message, t Target)
}

// Service owns the message lifecycle: creation, seen-marking with retention
// expiry, and scoped deletion. The store is the source of truth; live
// delivery is layered on top of each successful write.
type Service struct {
	messages  MessageStore
	users     UserDirectory
	groups    Membership
	media     media.Store
	router    Router
	retention time.Duration
	validate  *validator.Validate
	log       *slog.Logger
}

func NewService(messages MessageStore, users UserDirectory, groups Membership, mediaStore media.Store, router Router, retention time.Duration, log *slog.Logger) *Service {
	return &Service{
		messages:  messages,
		users:     users,
		groups:    groups,
		media:     mediaStore,
		router:    router,
		retention: retention,
		validate:  validator.New(),
		log:       log,
	}
}

// Send validates, persists and fans out one message. All rejections happen
// before anything is written; a failed send leaves no record behind.
func (s *Service) Send(ctx context.Context, senderID int64, t Target, req *SendRequest) (*Message, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Validation("text must be at most 2000 characters")
	}
	if !req.HasPayload() {
		return nil, apperr.Validation("text, image, audio or file is required")
	}

	m := &Message{SenderID: senderID, Text: req.Text}

	if t.IsGroup() {
		m.GroupID = &t.ID
	} else {
		if senderID == t.ID {
			return nil, apperr.Validation("cannot send messages to yourself")
		}
		exists, err := s.users.Exists(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, apperr.NotFound("receiver not found")
		}
		m.ReceiverID = &t.ID
	}

	if err := s.resolveAttachments(ctx, req, m); err != nil {
		return nil, err
	}

	saved, err := s.messages.Insert(ctx, m)
	if err != nil {
		return nil, err
	}

	if t.IsGroup() {
		// Denormalize sender display fields for immediate rendering.
		name, pic, err := s.users.Display(ctx, senderID)
		if err != nil {
			s.log.Warn("sender display lookup failed", "sender", senderID, "error", err)
		} else {
			saved.SenderName, saved.SenderPic = name, pic
		}
	}

	s.router.Deliver(saved, t)
	return saved, nil
}

// resolveAttachments swaps inbound binary payloads for durable URLs minted
// by the media store. Upload failures surface as upstream errors.
func (s *Service) resolveAttachments(ctx context.Context, req *SendRequest, m *Message) error {
	if req.Image != "" {
		data, err := media.Decode(req.Image)
		if err != nil {
			return err
		}
		if m.Image, err = s.media.Upload(ctx, data, ""); err != nil {
			return err
		}
	}

	if req.Audio != "" {
		data, err := media.Decode(req.Audio)
		if err != nil {
			return err
		}
		if m.Audio, err = s.media.Upload(ctx, data, ""); err != nil {
			return err
		}
	}

	if req.File != "" {
		data, err := media.Decode(req.File)
		if err != nil {
			return err
		}
		url, err := s.media.Upload(ctx, data, req.FileName)
		if err != nil {
			return err
		}
		// Image files land in the image slot so clients render them inline.
		if media.IsImage(data, req.FileType) {
			m.Image = url
		} else {
			m.FileURL = url
			m.FileName = req.FileName
			m.FileType = req.FileType
			if m.FileType == "" {
				m.FileType = media.DetectType(data)
			}
		}
	}

	return nil
}

// MarkSeen stamps every unseen message addressed to the viewer from the
// target, in one batch, and anchors each message's expiry to the retention
// window. Idempotent: re-marking never moves the timestamps.
func (s *Service) MarkSeen(ctx context.Context, viewerID int64, t Target) (int64, error) {
	now := time.Now().UTC()
	return s.messages.MarkSeen(ctx, viewerID, t, now, now.Add(s.retention))
}

// Delete applies the requested scope. "all" hard-deletes and is reserved for
// the original sender; "me" hides the message for the requester only.
func (s *Service) Delete(ctx context.Context, requesterID, messageID int64, scope string) error {
	if scope != ScopeMe && scope != ScopeAll {
		return apperr.Validation("invalid delete scope")
	}

	m, err := s.messages.ByID(ctx, messageID)
	if err != nil {
		return err
	}

	if scope == ScopeAll {
		if m.SenderID != requesterID {
			return apperr.Forbidden("only the sender may delete for everyone")
		}
		return s.messages.HardDelete(ctx, messageID)
	}

	return s.messages.AddDeletion(ctx, messageID, requesterID)
}

func (s *Service) Conversation(ctx context.Context, viewerID, otherID int64) ([]Message, error) {
	return s.messages.Conversation(ctx, viewerID, otherID)
}

// GroupMessages requires current membership.
func (s *Service) GroupMessages(ctx context.Context, viewerID, groupID int64) ([]Message, error) {
	member, err := s.groups.IsMember(ctx, groupID, viewerID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperr.Forbidden("not a member of this group")
	}
	return s.messages.GroupMessages(ctx, groupID, viewerID)
}

func (s *Service) PartnerIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.messages.PartnerIDs(ctx, userID)
}

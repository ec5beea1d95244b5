package chat

import "time"

// Message carries exactly one of ReceiverID / GroupID, enforced by the
// Target union on the write path and a CHECK constraint in the store.
type Message struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"senderId"`
	ReceiverID *int64 `json:"receiverId,omitempty"`
	GroupID    *int64 `json:"groupId,omitempty"`

	Text     string `json:"text,omitempty"`
	Image    string `json:"image,omitempty"`
	Audio    string `json:"audio,omitempty"`
	FileURL  string `json:"fileUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileType string `json:"fileType,omitempty"`

	// Sender display fields, denormalized onto group messages so clients
	// can render them without another fetch.
	SenderName string `json:"senderName,omitempty"`
	SenderPic  string `json:"senderPic,omitempty"`

	SeenAt   *time.Time `json:"seenAt"`
	ExpireAt *time.Time `json:"expireAt"`

	IsDeleted bool      `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

type SendRequest struct {
	Text     string `json:"text" validate:"max=2000"`
	Image    string `json:"image"`
	Audio    string `json:"audio"`
	File     string `json:"file"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	IsGroup  bool   `json:"isGroup"`
}

// HasPayload reports whether the request carries anything to send.
func (r SendRequest) HasPayload() bool {
	return r.Text != "" || r.Image != "" || r.Audio != "" || r.File != ""
}

// Deletion scopes.
const (
	ScopeMe  = "me"  // hide from the requester only
	ScopeAll = "all" // remove globally, sender only
)

package model

import (
	"encoding/json"
	"time"
)

// Source tags every interaction produced by this connector.
const Source = "instagram"

// InteractionType classifies an observed social event.
type InteractionType string

const (
	Post     InteractionType = "post"
	Reply    InteractionType = "reply"
	Reaction InteractionType = "reaction"
	Mention  InteractionType = "mention"
)

// Native subtypes as reported by the platform.
const (
	NativePost    = "POST"
	NativeComment = "comment"
	NativeLike    = "LIKE"
	NativeMention = "userinphoto"
)

// HarvestMode selects how an activity is harvested.
type HarvestMode string

const (
	// ModeUser iterates the individually linked tokens of every participant.
	ModeUser HarvestMode = "user"
	// ModeTag uses the activity's master token and searches by tag.
	ModeTag HarvestMode = "tag"
)

// Activity is the learning activity whose participants are harvested.
type Activity struct {
	ID          int64
	CourseID    int64
	Name        string
	Mode        HarvestMode
	Search      string // tag filter expression
	Start       time.Time
	End         time.Time // zero means open-ended
	LastHarvest *time.Time
}

// InWindow reports whether t falls inside [Start, End], both inclusive.
func (a Activity) InWindow(t time.Time) bool {
	if !a.Start.IsZero() && t.Before(a.Start) {
		return false
	}
	if !a.End.IsZero() && t.After(a.End) {
		return false
	}
	return true
}

// AccountToken is one platform credential bound to an activity.
// A nil UserID marks the activity's master token.
type AccountToken struct {
	ID          int64
	ActivityID  int64
	UserID      *int64
	AccessToken string
	Username    string
	ErrorStatus *string
	LastUsed    *time.Time
}

// IsMaster reports whether the token belongs to the whole activity.
func (t AccountToken) IsMaster() bool { return t.UserID == nil }

// SocialLink maps a local user onto a platform account.
type SocialLink struct {
	ActivityID int64
	UserID     int64
	SocialID   string
	SocialName string
}

// Interaction is one normalized social event.
type Interaction struct {
	UID            string
	Source         string
	Type           InteractionType
	NativeType     string
	NativeFrom     string
	NativeFromName string
	FromID         *int64
	NativeTo       string
	NativeToName   string
	ToID           *int64
	ParentUID      string
	Timestamp      *time.Time
	Description    string
	RawData        json.RawMessage
}

// Key identifies i within an activity. The same account can both like and be
// tagged on one post, which yields one uid for two interactions, so the type
// is part of the key.
func (i Interaction) Key() string { return string(i.Type) + ":" + i.UID }

// IsStudent reports whether the actor resolved to a local user.
func (i Interaction) IsStudent() bool { return i.FromID != nil }

// ChildUID derives the id of a reaction or mention under parentUID.
// Actors can react to a parent only once, so the pair is unique.
func ChildUID(parentUID, actorID string) string {
	return parentUID + "-" + actorID
}

package igclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UserRef identifies a platform account.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
}

type Caption struct {
	Text string `json:"text"`
}

type Count struct {
	Count int `json:"count"`
}

// UserInPhoto is an account tagged on a media item.
type UserInPhoto struct {
	User UserRef `json:"user"`
}

// UnixTime decodes created_time, which the platform sends as a quoted unix timestamp
// and occasionally as a bare number.
type UnixTime struct{ time.Time }

func (u *UnixTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		u.Time = time.Time{}
		return nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		t, perr := time.Parse(time.RFC3339, s)
		if perr != nil {
			return err
		}
		u.Time = t
		return nil
	}
	u.Time = time.Unix(secs, 0).UTC()
	return nil
}

// Media is one post as returned by the media listing endpoints.
type Media struct {
	ID           string        `json:"id"`
	Type         string        `json:"type,omitempty"`
	CreatedTime  UnixTime      `json:"created_time"`
	User         *UserRef      `json:"user"`
	Caption      *Caption      `json:"caption"`
	Tags         []string      `json:"tags"`
	Comments     Count         `json:"comments"`
	Likes        Count         `json:"likes"`
	UsersInPhoto []UserInPhoto `json:"users_in_photo"`
	Link         string        `json:"link,omitempty"`

	// Raw is the undecoded entity as received.
	Raw json.RawMessage `json:"-"`
}

func (m *Media) UnmarshalJSON(b []byte) error {
	type alias Media
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*m = Media(a)
	m.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// CaptionText returns the caption or an empty string.
func (m Media) CaptionText() string {
	if m.Caption == nil {
		return ""
	}
	return m.Caption.Text
}

// Comment is one comment on a media item. Replies nest to any depth.
type Comment struct {
	ID          string    `json:"id"`
	CreatedTime UnixTime  `json:"created_time"`
	From        *UserRef  `json:"from"`
	Text        string    `json:"text"`
	Replies     []Comment `json:"replies,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes replies one by one; a reply that does not decode is
// dropped without losing the comment itself.
func (c *Comment) UnmarshalJSON(b []byte) error {
	type alias Comment
	var a struct {
		alias
		Replies json.RawMessage `json:"replies"`
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*c = Comment(a.alias)
	c.Replies = nil
	if r := bytes.TrimSpace(a.Replies); len(r) > 0 && !bytes.Equal(r, []byte("null")) {
		replies, err := decodeItems[Comment](r, EndpointComments)
		if err != nil {
			skipItem(EndpointComments, 0, fmt.Errorf("replies of comment %s: %w", c.ID, err))
		}
		c.Replies = replies
	}
	c.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// Page is one page of a media listing. An empty NextCursor means the listing is exhausted.
type Page struct {
	Media      []Media
	NextCursor string
}

// Package normalize turns platform payloads into Interaction records.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"igharvest/internal/igclient"
	"igharvest/internal/logging"
	"igharvest/internal/model"
	"igharvest/internal/util"
)

// EmptyCaption is the description of posts without caption text.
const EmptyCaption = "No text."

// DefaultMinWords is the short-comment threshold used when none is configured.
const DefaultMinWords = 2

// ErrMalformedPayload marks a payload lacking required fields.
var ErrMalformedPayload = errors.New("malformed payload")

// Resolver maps a platform account id onto a local user. An empty id is unresolved.
type Resolver interface {
	ResolveLocalUser(ctx context.Context, nativeID string) (*int64, error)
}

// Normalizer is stateless apart from its configuration and safe for concurrent use.
type Normalizer struct {
	// Comments with MinWords words or fewer are dropped.
	MinWords int
	Resolver Resolver
}

func New(minWords int, r Resolver) *Normalizer {
	if minWords < 0 {
		minWords = DefaultMinWords
	}
	return &Normalizer{MinWords: minWords, Resolver: r}
}

// NormalizePost builds the Post interaction of m.
func (n *Normalizer) NormalizePost(ctx context.Context, m igclient.Media) (model.Interaction, error) {
	if m.ID == "" {
		return model.Interaction{}, fmt.Errorf("post without id: %w", ErrMalformedPayload)
	}
	id, name := author(m.User)
	desc := m.CaptionText()
	if desc == "" {
		desc = EmptyCaption
	}
	return model.Interaction{
		UID:            m.ID,
		Source:         model.Source,
		Type:           model.Post,
		NativeType:     model.NativePost,
		NativeFrom:     id,
		NativeFromName: name,
		FromID:         n.resolve(ctx, id),
		Timestamp:      timestamp(m.CreatedTime),
		Description:    desc,
		RawData:        m.Raw,
	}, nil
}

// NormalizeComment builds the Reply interaction of c answering parent.
// It reports false for comments too short to be relevant.
func (n *Normalizer) NormalizeComment(ctx context.Context, c igclient.Comment, parent model.Interaction) (model.Interaction, bool, error) {
	if c.ID == "" {
		return model.Interaction{}, false, fmt.Errorf("comment without id: %w", ErrMalformedPayload)
	}
	if strings.TrimSpace(c.Text) == "" {
		return model.Interaction{}, false, fmt.Errorf("comment %s without text: %w", c.ID, ErrMalformedPayload)
	}
	if util.WordCount(c.Text) <= n.MinWords {
		return model.Interaction{}, false, nil
	}
	id, name := author(c.From)
	return model.Interaction{
		UID:            c.ID,
		Source:         model.Source,
		Type:           model.Reply,
		NativeType:     model.NativeComment,
		NativeFrom:     id,
		NativeFromName: name,
		FromID:         n.resolve(ctx, id),
		NativeTo:       parent.NativeFrom,
		NativeToName:   parent.NativeFromName,
		ToID:           parent.FromID,
		ParentUID:      parent.UID,
		Timestamp:      timestamp(c.CreatedTime),
		Description:    c.Text,
		RawData:        c.Raw,
	}, true, nil
}

// NormalizeReaction builds the "LIKE" reaction of u on parent.
func (n *Normalizer) NormalizeReaction(ctx context.Context, u igclient.UserRef, parent model.Interaction) (model.Interaction, error) {
	i, err := n.child(ctx, u, parent, model.Reaction, model.NativeLike)
	if err != nil {
		return i, fmt.Errorf("reaction on %s: %w", parent.UID, err)
	}
	return i, nil
}

// NormalizeMention builds the interaction of tagged appearing on parent.
func (n *Normalizer) NormalizeMention(ctx context.Context, tagged igclient.UserRef, parent model.Interaction) (model.Interaction, error) {
	i, err := n.child(ctx, tagged, parent, model.Mention, model.NativeMention)
	if err != nil {
		return i, fmt.Errorf("mention on %s: %w", parent.UID, err)
	}
	return i, nil
}

func (n *Normalizer) child(ctx context.Context, u igclient.UserRef, parent model.Interaction, typ model.InteractionType, native string) (model.Interaction, error) {
	if u.ID == "" {
		return model.Interaction{}, fmt.Errorf("actor without id: %w", ErrMalformedPayload)
	}
	raw, _ := jsonOf(u)
	return model.Interaction{
		UID:            model.ChildUID(parent.UID, u.ID),
		Source:         model.Source,
		Type:           typ,
		NativeType:     native,
		NativeFrom:     u.ID,
		NativeFromName: u.Username,
		FromID:         n.resolve(ctx, u.ID),
		NativeTo:       parent.NativeFrom,
		NativeToName:   parent.NativeFromName,
		ToID:           parent.FromID,
		ParentUID:      parent.UID,
		RawData:        raw,
	}, nil
}

// NormalizeThread normalizes comments and their nested replies under parent.
// Replies of a dropped comment attach to the closest kept ancestor. Malformed
// comments are logged and skipped along the same rule.
func (n *Normalizer) NormalizeThread(ctx context.Context, comments []igclient.Comment, parent model.Interaction) []model.Interaction {
	var out []model.Interaction
	for _, c := range comments {
		anchor := parent
		i, ok, err := n.NormalizeComment(ctx, c, parent)
		switch {
		case err != nil:
			logging.Warn("payload_skipped", map[string]any{"parent": parent.UID, "error": err})
		case ok:
			out = append(out, i)
			anchor = i
		}
		if len(c.Replies) > 0 {
			out = append(out, n.NormalizeThread(ctx, c.Replies, anchor)...)
		}
	}
	return out
}

func (n *Normalizer) resolve(ctx context.Context, nativeID string) *int64 {
	if nativeID == "" || n.Resolver == nil {
		return nil
	}
	id, err := n.Resolver.ResolveLocalUser(ctx, nativeID)
	if err != nil {
		logging.Warn("resolve_user_failed", map[string]any{"native_id": nativeID, "error": err})
		return nil
	}
	return id
}

// author returns id and username, empty for unknown authors.
func author(u *igclient.UserRef) (string, string) {
	if u == nil {
		return "", ""
	}
	return u.ID, u.Username
}

func timestamp(t igclient.UnixTime) *time.Time {
	if t.IsZero() {
		return nil
	}
	ts := t.Time
	return &ts
}

package normalize

import (
	"encoding/json"
	"strings"

	"github.com/buger/jsonparser"

	"igharvest/internal/model"
)

const webBase = "https://www.instagram.com/"

// InteractionURL returns a browsable link for i. The raw "link" field wins;
// otherwise it is derived from the uid, where "<post>_<comment>" denotes a comment.
func InteractionURL(i model.Interaction) string {
	if len(i.RawData) > 0 {
		if link, err := jsonparser.GetString(i.RawData, "link"); err == nil && link != "" {
			return link
		}
	}
	parts := strings.Split(i.UID, "_")
	if len(parts) == 2 {
		return webBase + "p/" + parts[0] + "/permalink/" + parts[1]
	}
	return webBase + "p/" + parts[0]
}

// UserURL returns the profile page of a platform username.
func UserURL(socialName string) string {
	return webBase + socialName
}

func jsonOf(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

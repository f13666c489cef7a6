package analytics

import (
	"sort"
	"time"

	"igharvest/internal/model"
)

// HourlyActivity aggregates interactions into per-hour buckets by type.
// Interactions without a timestamp use their parent's; orphans are skipped.
func HourlyActivity(interactions []model.Interaction) map[time.Time]map[model.InteractionType]int {
	when := make(map[string]time.Time, len(interactions))
	for _, i := range interactions {
		if i.Timestamp != nil {
			when[i.UID] = *i.Timestamp
		}
	}
	buckets := make(map[time.Time]map[model.InteractionType]int)
	for _, i := range interactions {
		ts, ok := when[i.UID]
		if i.Timestamp == nil {
			ts, ok = when[i.ParentUID]
		}
		if !ok {
			continue
		}
		ts = ts.UTC()
		key := time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, time.UTC)
		if _, ok := buckets[key]; !ok {
			buckets[key] = make(map[model.InteractionType]int)
		}
		buckets[key][i.Type]++
	}
	return buckets
}

// SortedBucketKeys returns sorted hour keys.
func SortedBucketKeys(m map[time.Time]map[model.InteractionType]int) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

// Contribution is the number of interactions a platform account authored.
type Contribution struct {
	NativeFrom     string
	NativeFromName string
	Student        bool
	Count          int
	// Latest is the account's most recent timestamped interaction, or its
	// first one when none carries a timestamp.
	Latest model.Interaction
}

// TopContributors ranks authors by interaction count, then by name. n <= 0 returns all.
func TopContributors(interactions []model.Interaction, n int) []Contribution {
	idx := map[string]int{}
	var out []Contribution
	for _, i := range interactions {
		if i.NativeFrom == "" {
			continue
		}
		at, ok := idx[i.NativeFrom]
		if !ok {
			at = len(out)
			idx[i.NativeFrom] = at
			out = append(out, Contribution{NativeFrom: i.NativeFrom, NativeFromName: i.NativeFromName, Latest: i})
		}
		if l := out[at].Latest.Timestamp; i.Timestamp != nil && (l == nil || i.Timestamp.After(*l)) {
			out[at].Latest = i
		}
		out[at].Count++
		out[at].Student = out[at].Student || i.IsStudent()
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].NativeFromName < out[b].NativeFromName
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

package harvest

import (
	"context"
	"errors"
	"sort"
	"time"

	"igharvest/internal/igclient"
	"igharvest/internal/kpi"
	"igharvest/internal/model"
)

// fakeClient serves pages keyed by token and cursor.
type fakeClient struct {
	pages     map[string]map[string]igclient.Page
	pageErr   map[string]map[string]error
	comments  map[string][]igclient.Comment
	likes     map[string][]igclient.UserRef
	likeErr   error
	tagCalls  []string
	likeCalls int
	// listed records every media listing request as "token@cursor".
	listed []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		pages:    map[string]map[string]igclient.Page{},
		pageErr:  map[string]map[string]error{},
		comments: map[string][]igclient.Comment{},
		likes:    map[string][]igclient.UserRef{},
	}
}

func (f *fakeClient) page(token, cursor string, p igclient.Page) {
	if f.pages[token] == nil {
		f.pages[token] = map[string]igclient.Page{}
	}
	f.pages[token][cursor] = p
}

func (f *fakeClient) fail(token, cursor string, err error) {
	if f.pageErr[token] == nil {
		f.pageErr[token] = map[string]error{}
	}
	f.pageErr[token][cursor] = err
}

func (f *fakeClient) ListUserMedia(_ context.Context, token, cursor string) (igclient.Page, error) {
	f.listed = append(f.listed, token+"@"+cursor)
	if err := f.pageErr[token][cursor]; err != nil {
		return igclient.Page{}, err
	}
	return f.pages[token][cursor], nil
}

// ListTagMedia serves pages registered under "token#tag" and falls back to
// the token's own pages.
func (f *fakeClient) ListTagMedia(ctx context.Context, token, tag, cursor string) (igclient.Page, error) {
	f.tagCalls = append(f.tagCalls, tag)
	if _, ok := f.pages[token+"#"+tag]; ok {
		return f.ListUserMedia(ctx, token+"#"+tag, cursor)
	}
	return f.ListUserMedia(ctx, token, cursor)
}

func (f *fakeClient) ListComments(_ context.Context, _, mediaID string) ([]igclient.Comment, error) {
	return f.comments[mediaID], nil
}

func (f *fakeClient) ListReactions(_ context.Context, _, mediaID string) ([]igclient.UserRef, error) {
	f.likeCalls++
	if f.likeErr != nil {
		return nil, f.likeErr
	}
	return f.likes[mediaID], nil
}

// memStore implements every store contract in memory.
type memStore struct {
	activities   map[int64]*model.Activity
	tokens       map[int64]*model.AccountToken
	interactions map[int64]map[string]model.Interaction
	links        map[int64]map[string]int64
	cohort       map[int64][]int64
	kpis         map[int64]kpi.Set
	cleared      []int64
	insertErr    error
}

func newMemStore() *memStore {
	return &memStore{
		activities:   map[int64]*model.Activity{},
		tokens:       map[int64]*model.AccountToken{},
		interactions: map[int64]map[string]model.Interaction{},
		links:        map[int64]map[string]int64{},
		cohort:       map[int64][]int64{},
		kpis:         map[int64]kpi.Set{},
	}
}

func (s *memStore) stores() Stores {
	return Stores{Tokens: s, Interactions: s, Users: s, Activities: s, Cohort: s, KPIs: s}
}

func (s *memStore) addToken(t model.AccountToken) {
	s.tokens[t.ID] = &t
}

func (s *memStore) token(id int64) model.AccountToken { return *s.tokens[id] }

func (s *memStore) MasterToken(_ context.Context, activityID int64) (*model.AccountToken, error) {
	for _, t := range s.tokens {
		if t.ActivityID == activityID && t.IsMaster() {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (s *memStore) UserTokens(_ context.Context, activityID int64, userID *int64) ([]model.AccountToken, error) {
	var out []model.AccountToken
	for _, t := range s.tokens {
		if t.ActivityID != activityID || t.IsMaster() {
			continue
		}
		if userID != nil && *t.UserID != *userID {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) UpsertToken(_ context.Context, t *model.AccountToken) error {
	c := *t
	s.tokens[t.ID] = &c
	return nil
}

func (s *memStore) DeleteTokens(_ context.Context, activityID int64) error {
	for id, t := range s.tokens {
		if t.ActivityID == activityID {
			delete(s.tokens, id)
		}
	}
	return nil
}

func (s *memStore) ClearErrorStatus(_ context.Context, tokenID int64) error {
	s.cleared = append(s.cleared, tokenID)
	if t, ok := s.tokens[tokenID]; ok {
		t.ErrorStatus = nil
	}
	return nil
}

func (s *memStore) BulkInsert(_ context.Context, activityID int64, batch []model.Interaction) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	if s.interactions[activityID] == nil {
		s.interactions[activityID] = map[string]model.Interaction{}
	}
	for _, i := range batch {
		s.interactions[activityID][i.Key()] = i
	}
	return nil
}

func (s *memStore) Query(_ context.Context, activityID int64, start, end time.Time) ([]model.Interaction, error) {
	all := s.interactions[activityID]
	var out []model.Interaction
	for _, i := range all {
		ts := i.Timestamp
		if ts == nil {
			if p, ok := all[model.Interaction{UID: i.ParentUID, Type: model.Post}.Key()]; ok {
				ts = p.Timestamp
			}
		}
		if ts == nil || ts.Before(start) || ts.After(end) {
			continue
		}
		out = append(out, i)
	}
	return out, nil
}

func (s *memStore) DeleteForActivity(_ context.Context, activityID int64, _ string) error {
	delete(s.interactions, activityID)
	return nil
}

func (s *memStore) Resolver(activityID int64) UserResolver {
	return memResolver{links: s.links[activityID]}
}

func (s *memStore) DeleteLinks(_ context.Context, activityID int64) error {
	delete(s.links, activityID)
	return nil
}

func (s *memStore) Activity(_ context.Context, id int64) (*model.Activity, error) {
	a, ok := s.activities[id]
	if !ok {
		return nil, errors.New("activity not found")
	}
	c := *a
	return &c, nil
}

func (s *memStore) SetLastHarvest(_ context.Context, id int64, t time.Time) error {
	s.activities[id].LastHarvest = &t
	return nil
}

func (s *memStore) Cohort(_ context.Context, activityID int64) ([]int64, error) {
	return s.cohort[activityID], nil
}

func (s *memStore) SaveKPIs(_ context.Context, activityID int64, set kpi.Set) error {
	s.kpis[activityID] = set
	return nil
}

type memResolver struct{ links map[string]int64 }

func (m memResolver) ResolveLocalUser(_ context.Context, nativeID string) (*int64, error) {
	if id, ok := m.links[nativeID]; ok {
		return &id, nil
	}
	return nil, nil
}

func (m memResolver) LocalUserLink(_ context.Context, userID int64) (*model.SocialLink, error) {
	for native, id := range m.links {
		if id == userID {
			return &model.SocialLink{UserID: id, SocialID: native}, nil
		}
	}
	return nil, nil
}

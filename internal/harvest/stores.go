package harvest

import (
	"context"
	"time"

	"igharvest/internal/kpi"
	"igharvest/internal/model"
)

// TokenStore keeps the platform credentials of each activity.
type TokenStore interface {
	// MasterToken returns nil without error when the activity has none.
	MasterToken(ctx context.Context, activityID int64) (*model.AccountToken, error)
	// UserTokens returns the tokens of userID, or of every user when userID is nil.
	UserTokens(ctx context.Context, activityID int64, userID *int64) ([]model.AccountToken, error)
	UpsertToken(ctx context.Context, t *model.AccountToken) error
	DeleteTokens(ctx context.Context, activityID int64) error
	ClearErrorStatus(ctx context.Context, tokenID int64) error
}

// InteractionStore persists normalized interactions per activity.
type InteractionStore interface {
	// BulkInsert upserts on (activity, uid).
	BulkInsert(ctx context.Context, activityID int64, batch []model.Interaction) error
	// Query returns interactions inside [start, end]. Interactions without a
	// timestamp are included when their parent is inside the window.
	Query(ctx context.Context, activityID int64, start, end time.Time) ([]model.Interaction, error)
	DeleteForActivity(ctx context.Context, activityID int64, source string) error
}

// UserResolver maps platform accounts to local users within one activity.
type UserResolver interface {
	ResolveLocalUser(ctx context.Context, nativeID string) (*int64, error)
	LocalUserLink(ctx context.Context, userID int64) (*model.SocialLink, error)
}

// UserDirectory hands out activity scoped resolvers.
type UserDirectory interface {
	Resolver(activityID int64) UserResolver
	DeleteLinks(ctx context.Context, activityID int64) error
}

type ActivityStore interface {
	Activity(ctx context.Context, id int64) (*model.Activity, error)
	SetLastHarvest(ctx context.Context, id int64, t time.Time) error
}

// CohortProvider lists the local users whose KPIs are computed.
type CohortProvider interface {
	Cohort(ctx context.Context, activityID int64) ([]int64, error)
}

type KPIStore interface {
	SaveKPIs(ctx context.Context, activityID int64, set kpi.Set) error
}

// Stores groups the persistence collaborators of a Harvester.
type Stores struct {
	Tokens       TokenStore
	Interactions InteractionStore
	Users        UserDirectory
	Activities   ActivityStore
	Cohort       CohortProvider
	KPIs         KPIStore
}

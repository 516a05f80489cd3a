package prefs

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"cityweather/internal/types"
)

// IdentityStore is the durable preference realm, keyed by authenticated
// visitor identity.
type IdentityStore interface {
	Get(ctx context.Context, userID string) (cityID string, found bool, err error)
	Set(ctx context.Context, userID, cityID string) error
}

// CityGetter looks up a city record by id. A nil city with a nil error means
// the id is unknown.
type CityGetter interface {
	Get(ctx context.Context, id string) (*types.City, error)
}

// Resolver selects which city to display for a request and saves preference
// changes into the realm matching the visitor's identity.
type Resolver struct {
	identities IdentityStore
	cities     CityGetter
	codec      *CookieCodec
	logger     *slog.Logger

	newToken func() string // injectable for tests
}

// NewResolver creates a Resolver.
func NewResolver(identities IdentityStore, cities CityGetter, codec *CookieCodec, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		identities: identities,
		cities:     cities,
		codec:      codec,
		logger:     logger,
		newToken:   uuid.NewString,
	}
}

// ResolveVisitor identifies the visitor making the request: the X-User-Id
// header marks an authenticated visitor, otherwise a valid preference cookie
// supplies the anonymous token. Resolution never fails; an unrecognized
// request is simply anonymous without a token.
func (r *Resolver) ResolveVisitor(req *http.Request) types.Visitor {
	if userID := req.Header.Get("X-User-Id"); userID != "" {
		return types.Visitor{UserID: userID}
	}
	if token, _, ok := r.codec.Read(req); ok {
		return types.Visitor{Token: token}
	}
	return types.Visitor{}
}

// Resolve returns the city the visitor has chosen, or nil when no usable
// preference exists (the caller falls back to the default city). A stored
// preference referencing a since-removed city is treated as absent, not as
// an error; the authenticated realm is consulted before the anonymous one.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*types.City, error) {
	visitor := types.GetVisitor(ctx)

	if visitor.Authenticated() {
		cityID, found, err := r.identities.Get(ctx, visitor.UserID)
		if err != nil {
			return nil, err
		}
		if found {
			city, err := r.cities.Get(ctx, cityID)
			if err != nil {
				return nil, err
			}
			if city != nil {
				return city, nil
			}
			r.logger.DebugContext(ctx, "stored preference references removed city",
				"user_id", visitor.UserID, "city_id", cityID)
		}
	}

	if _, cityID, ok := r.codec.Read(req); ok && cityID != "" {
		city, err := r.cities.Get(ctx, cityID)
		if err != nil {
			return nil, err
		}
		if city != nil {
			return city, nil
		}
	}

	return nil, nil
}

// Save records the visitor's chosen city. Authenticated visitors get a
// durable row; anonymous visitors get a refreshed signed cookie, reusing
// their existing token when one is present so repeated saves keep a stable
// anonymous identity.
func (r *Resolver) Save(ctx context.Context, w http.ResponseWriter, req *http.Request, cityID string) error {
	visitor := types.GetVisitor(ctx)

	if visitor.Authenticated() {
		return r.identities.Set(ctx, visitor.UserID, cityID)
	}

	token := visitor.Token
	if token == "" {
		token = r.newToken()
	}
	r.codec.Write(w, token, cityID)
	return nil
}

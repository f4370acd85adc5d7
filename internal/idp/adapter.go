package idp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"

	"deskauth/internal/credstore"
	"deskauth/pkg/logging"
)

// Config configures the directory client.
type Config struct {
	ClientID string
	TenantID string
	// AuthorityHost replaces https://login.microsoftonline.com when set.
	AuthorityHost string
	Scopes        []string
	// RenewalMargin is subtracted from every issued expiry.
	RenewalMargin time.Duration
	// HTTPClient is used for token endpoint calls. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
	// Clock defaults to the real clock.
	Clock clock.PassiveClock
}

// Token is the result of a successful acquisition.
type Token struct {
	AccessToken credstore.Secret
	// ExpiresAt already has the renewal margin applied.
	ExpiresAt time.Time
	Account   Account
	Claims    Claims
}

// Adapter acquires tokens from an Azure AD style tenant authority as a
// public client. Silent acquisition uses the refresh token of the most
// recently used cached account; interactive sign-in uses the device code
// flow.
type Adapter struct {
	cfg    Config
	oauth  *oauth2.Config
	cache  *AccountCache
	store  credstore.Store
	clock  clock.PassiveClock
	group  singleflight.Group
	tracer trace.Tracer
}

// New creates an adapter. store may be nil, in which case silent
// acquisition does not persist anything.
func New(cfg Config, cache *AccountCache, store credstore.Store) (*Adapter, error) {
	if cfg.ClientID == "" || cfg.TenantID == "" {
		return nil, errors.New("identity provider client ID and tenant ID are required")
	}
	if cache == nil {
		return nil, errors.New("account cache is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	return &Adapter{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: endpointFor(cfg),
			Scopes:   cfg.Scopes,
		},
		cache:  cache,
		store:  store,
		clock:  cfg.Clock,
		tracer: otel.Tracer("deskauth/idp"),
	}, nil
}

func endpointFor(cfg Config) oauth2.Endpoint {
	var ep oauth2.Endpoint
	if cfg.AuthorityHost == "" {
		ep = microsoft.AzureADEndpoint(cfg.TenantID)
	} else {
		base := strings.TrimSuffix(cfg.AuthorityHost, "/") + "/" + cfg.TenantID + "/oauth2/v2.0"
		ep = oauth2.Endpoint{
			AuthURL:       base + "/authorize",
			TokenURL:      base + "/token",
			DeviceAuthURL: base + "/devicecode",
		}
	}
	// Public client: client_id travels in the form body, no secret.
	ep.AuthStyle = oauth2.AuthStyleInParams
	return ep
}

// Accounts lists the cached accounts, most recent first.
func (a *Adapter) Accounts() ([]Account, error) {
	return a.cache.Accounts()
}

// AcquireTokenSilent renews the access token without user interaction.
// Concurrent callers share one token endpoint request.
func (a *Adapter) AcquireTokenSilent(ctx context.Context) (*Token, error) {
	v, err, shared := a.group.Do("silent", func() (interface{}, error) {
		return a.acquireTokenSilent(ctx)
	})
	if shared {
		logging.Debug("IdP", "Joined in-flight silent token acquisition")
	}
	if err != nil {
		return nil, err
	}
	return v.(*Token), nil
}

func (a *Adapter) acquireTokenSilent(ctx context.Context) (*Token, error) {
	ctx, span := a.tracer.Start(ctx, "idp.AcquireTokenSilent")
	defer span.End()

	accounts, err := a.cache.Accounts()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(accounts) == 0 || accounts[0].RefreshToken == "" {
		span.SetStatus(codes.Error, "no account")
		return nil, ErrNoAccount
	}
	acct := accounts[0]
	span.SetAttributes(attribute.String("idp.account", acct.HomeAccountID))

	ts := a.oauth.TokenSource(a.clientContext(ctx), &oauth2.Token{RefreshToken: acct.RefreshToken})
	tok, err := ts.Token()
	if err != nil {
		perr := providerError(err)
		span.RecordError(perr)
		span.SetStatus(codes.Error, "refresh failed")
		logging.Audit("idp_token_refresh_failed", "account", acct.Username, "error", perr.Error())
		return nil, perr
	}

	result, err := a.buildToken(tok, acct)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if tok.RefreshToken != "" && tok.RefreshToken != acct.RefreshToken {
		acct.RefreshToken = tok.RefreshToken
		result.Account = acct
		if err := a.cache.Put(acct); err != nil {
			logging.Warn("IdP", "Failed to update rotated refresh token: %v", err)
		}
	}

	if a.store != nil {
		creds := credstore.Credentials{AccessToken: result.AccessToken, Expiry: result.ExpiresAt}
		if err := a.store.SaveCredentials(ctx, creds); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("persist renewed credentials: %w", err)
		}
	}

	logging.Audit("idp_token_refreshed",
		"account", acct.Username,
		"expiry", result.ExpiresAt.Format(time.RFC3339),
	)
	return result, nil
}

// SignIn runs the device code flow. prompt receives the code and
// verification URL to show the user; SignIn then blocks until the user
// completes sign-in, the code expires or ctx is cancelled. The account is
// cached for later silent acquisition. Credentials are not persisted; the
// caller stores them together with the user profile.
func (a *Adapter) SignIn(ctx context.Context, prompt func(*oauth2.DeviceAuthResponse)) (*Token, error) {
	ctx, span := a.tracer.Start(ctx, "idp.SignIn")
	defer span.End()

	ctx = a.clientContext(ctx)

	da, err := a.oauth.DeviceAuth(ctx)
	if err != nil {
		perr := providerError(err)
		span.RecordError(perr)
		return nil, perr
	}
	if prompt != nil {
		prompt(da)
	}

	tok, err := a.oauth.DeviceAccessToken(ctx, da)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		perr := providerError(err)
		span.RecordError(perr)
		logging.Audit("idp_sign_in_failed", "error", perr.Error())
		return nil, perr
	}

	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		raw = tok.AccessToken
	}
	claims, err := ParseClaims(raw)
	if err != nil {
		return nil, &ProviderError{Description: "token response carries no readable identity", Err: err}
	}

	acct := Account{
		HomeAccountID: claims.ObjectID + "." + claims.TenantID,
		Username:      claims.PreferredUsername,
		Name:          claims.Name,
		Email:         claims.Email,
		TenantID:      claims.TenantID,
		RefreshToken:  tok.RefreshToken,
	}
	result, err := a.buildToken(tok, acct)
	if err != nil {
		return nil, err
	}
	result.Claims = claims

	if err := a.cache.Put(acct); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("idp.account", acct.HomeAccountID))
	logging.Audit("idp_sign_in", "account", acct.Username, "expiry", result.ExpiresAt.Format(time.RFC3339))
	return result, nil
}

// SignOut forgets every cached account.
func (a *Adapter) SignOut() error {
	if err := a.cache.Clear(); err != nil {
		return err
	}
	logging.Audit("idp_accounts_cleared")
	return nil
}

// buildToken derives the effective expiry and rejects tokens that would
// already be due for renewal.
func (a *Adapter) buildToken(tok *oauth2.Token, acct Account) (*Token, error) {
	now := a.clock.Now()

	var issued time.Time
	switch {
	case tok.ExpiresIn > 0:
		issued = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	case !tok.Expiry.IsZero():
		issued = tok.Expiry
	default:
		exp, ok := TokenExpiry(tok.AccessToken)
		if !ok {
			return nil, &ProviderError{Description: "token response carries no expiry"}
		}
		issued = exp
	}

	expiresAt := issued.Add(-a.cfg.RenewalMargin)
	if !expiresAt.After(now) {
		return nil, &ProviderError{Description: "issued token is already within its renewal margin"}
	}

	return &Token{
		AccessToken: credstore.NewSecret(tok.AccessToken),
		ExpiresAt:   expiresAt,
		Account:     acct,
	}, nil
}

func (a *Adapter) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.cfg.HTTPClient)
}

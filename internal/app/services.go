package app

import (
	"errors"
	"fmt"

	"deskauth/internal/backend"
	"deskauth/internal/config"
	"deskauth/internal/credstore"
	"deskauth/internal/idp"
	"deskauth/internal/session"
	"deskauth/pkg/logging"
)

// Services holds everything built from the configuration.
//
// Service Dependencies:
// The services are initialized in a specific order to handle dependencies:
//  1. Credential store (shared by the identity provider and the Manager)
//  2. Backend client
//  3. Identity provider adapter and its account cache (when configured)
//  4. Session Manager
type Services struct {
	// Store persists the signed-in user's credentials and profile.
	Store credstore.Store

	// WatchFiles are the store's files, relative to StorageDir, that change
	// when another process signs in or out.
	WatchFiles []string
	StorageDir string

	// Backend talks to the ITSM REST API.
	Backend *backend.Client

	// IdP is nil when no directory tenant is configured.
	IdP      *idp.Adapter
	Accounts *idp.AccountCache

	// Manager is the single session state machine of the process.
	Manager *session.Manager

	closeStore func() error
}

// InitializeServices creates the services for settings. Settings must have
// been validated.
func InitializeServices(settings config.Config) (*Services, error) {
	store, watchFiles, closeStore, err := credstore.Open(settings.Storage.Backend, settings.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	logging.Debug("Services", "Using %s credential storage in %s", settings.Storage.Backend, settings.Storage.Dir)

	client, err := backend.New(settings.API.BaseURL,
		backend.WithTimeout(settings.API.Timeout),
		backend.WithUserAgent("deskauth"),
	)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	svc := &Services{
		Store:      store,
		WatchFiles: watchFiles,
		StorageDir: settings.Storage.Dir,
		Backend:    client,
		closeStore: closeStore,
	}

	opts := session.Options{
		Backend:            client,
		Store:              store,
		Attempts:           session.NewFileAttemptStore(settings.Storage.Dir),
		Session:            settings.Session,
		DefaultRole:        settings.Identity.DefaultRole,
		DefaultPermissions: settings.Identity.DefaultPermissions,
	}

	if settings.Identity.Enabled() {
		accounts, err := idp.NewAccountCache(settings.Storage.Dir)
		if err != nil {
			_ = closeStore()
			return nil, fmt.Errorf("failed to open identity account cache: %w", err)
		}
		adapter, err := idp.New(idp.Config{
			ClientID:      settings.Identity.ClientID,
			TenantID:      settings.Identity.TenantID,
			AuthorityHost: settings.Identity.AuthorityHost,
			Scopes:        settings.Identity.Scopes,
			RenewalMargin: settings.Identity.RenewalMargin,
		}, accounts, store)
		if err != nil {
			_ = closeStore()
			return nil, fmt.Errorf("failed to create identity provider adapter: %w", err)
		}
		svc.IdP = adapter
		svc.Accounts = accounts
		svc.WatchFiles = append(svc.WatchFiles, idp.AccountCacheFileName)
		opts.IdP = adapter
	} else {
		logging.Debug("Services", "No identity provider configured; silent renewal is unavailable")
	}

	manager, err := session.NewManager(opts)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}
	svc.Manager = manager

	return svc, nil
}

// Close stops the renewal scheduler and closes the credential store.
func (s *Services) Close() error {
	var errs []error
	if s.Manager != nil {
		s.Manager.Close()
	}
	if s.closeStore != nil {
		if err := s.closeStore(); err != nil {
			errs = append(errs, fmt.Errorf("close credential store: %w", err))
		}
	}
	return errors.Join(errs...)
}

package chat

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// identityAPI is the part of Client the resolver needs.
type identityAPI interface {
	CurrentUser(ctx context.Context) (User, error)
	Workspaces(ctx context.Context) ([]Workspace, error)
}

// Identity resolves and memoises the authenticated user and the target
// workspace for the lifetime of the process. Concurrent first callers share
// a single lookup; failed lookups are not cached.
type Identity struct {
	api         identityAPI
	log         *zap.Logger
	group       singleflight.Group
	mu          sync.Mutex
	user        *User
	workspaceID string
}

// NewIdentity returns a resolver. A non-empty workspaceID is used as-is and
// never looked up.
func NewIdentity(api identityAPI, workspaceID string, log *zap.Logger) *Identity {
	if log == nil {
		log = zap.NewNop()
	}
	return &Identity{api: api, workspaceID: workspaceID, log: log}
}

// User returns the authenticated user.
func (i *Identity) User(ctx context.Context) (User, error) {
	i.mu.Lock()
	if i.user != nil {
		u := *i.user
		i.mu.Unlock()
		return u, nil
	}
	i.mu.Unlock()

	v, err, _ := i.group.Do("user", func() (any, error) {
		i.mu.Lock()
		cached := i.user
		i.mu.Unlock()
		if cached != nil {
			return *cached, nil
		}
		u, err := i.api.CurrentUser(ctx)
		if err != nil {
			return User{}, err
		}
		i.mu.Lock()
		i.user = &u
		i.mu.Unlock()
		return u, nil
	})
	if err != nil {
		return User{}, err
	}
	return v.(User), nil
}

// WorkspaceID returns the configured workspace, or the first workspace the
// token can access. No accessible workspace is a ConfigurationError.
func (i *Identity) WorkspaceID(ctx context.Context) (string, error) {
	i.mu.Lock()
	if i.workspaceID != "" {
		ws := i.workspaceID
		i.mu.Unlock()
		return ws, nil
	}
	i.mu.Unlock()

	v, err, _ := i.group.Do("workspace", func() (any, error) {
		i.mu.Lock()
		cached := i.workspaceID
		i.mu.Unlock()
		if cached != "" {
			return cached, nil
		}
		teams, err := i.api.Workspaces(ctx)
		if err != nil {
			return "", err
		}
		if len(teams) == 0 || teams[0].ID == "" {
			return "", &ConfigurationError{Reason: "no workspaces found for this api token"}
		}
		ws := teams[0].ID
		i.mu.Lock()
		i.workspaceID = ws
		i.mu.Unlock()
		i.log.Info("discovered workspace", zap.String("workspace_id", ws), zap.String("name", teams[0].Name))
		return ws, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

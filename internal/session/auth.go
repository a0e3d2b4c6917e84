package session

import (
	"context"
	"errors"
	"strings"

	"aquadash/internal/api"
	"aquadash/internal/model"
	"aquadash/internal/token"
	"golang.org/x/crypto/bcrypt"
)

// LocalAuthenticator is the standalone/offline mode: credentials are
// checked against a built-in allow-list and the token is synthesized
// client-side.
type LocalAuthenticator struct {
	tokens token.Config
	users  []localUser
}

type localUser struct {
	user model.User
	hash []byte
}

func NewLocalAuthenticator(cfg token.Config) (*LocalAuthenticator, error) {
	seeds := []struct {
		user     model.User
		password string
	}{
		{model.User{ID: 1, Username: "admin", Role: model.RoleAdmin, Email: "admin@smartgarden.com"}, "admin"},
		{model.User{ID: 2, Username: "user", Role: model.RoleUser, Email: "user@smartgarden.com"}, "user"},
	}

	a := &LocalAuthenticator{tokens: cfg}
	for _, seed := range seeds {
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		a.users = append(a.users, localUser{user: seed.user, hash: hash})
	}
	return a, nil
}

func (a *LocalAuthenticator) Authenticate(_ context.Context, username, password string) (string, model.User, error) {
	username = strings.TrimSpace(username)
	for _, candidate := range a.users {
		if candidate.user.Username != username {
			continue
		}
		if bcrypt.CompareHashAndPassword(candidate.hash, []byte(password)) != nil {
			break
		}
		tok, err := token.Encode(candidate.user, a.tokens)
		if err != nil {
			return "", model.User{}, err
		}
		return tok, candidate.user, nil
	}
	return "", model.User{}, ErrInvalidCredentials
}

// RemoteAuthenticator is the networked mode: credentials go to the auth
// collaborator and the returned token/user pair is adopted verbatim.
type RemoteAuthenticator struct {
	client *api.Client
}

func NewRemoteAuthenticator(client *api.Client) *RemoteAuthenticator {
	return &RemoteAuthenticator{client: client}
}

func (a *RemoteAuthenticator) Authenticate(ctx context.Context, username, password string) (string, model.User, error) {
	resp, err := a.client.Login(ctx, api.Credentials{Username: username, Password: password})
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return "", model.User{}, ErrInvalidCredentials
		}
		return "", model.User{}, err
	}
	return resp.Token, resp.User, nil
}

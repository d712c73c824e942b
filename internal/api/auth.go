package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nhle/taskclient/internal/model"
)

// ErrNoToken means the login call succeeded but the body had no token.
var ErrNoToken = errors.New("api: login response has no token")

// Register creates an account. Validation problems reported by the API
// come back as *ValidationError.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (model.RegisterResponse, error) {
	var resp model.RegisterResponse
	if _, err := c.do(ctx, false, http.MethodPost, "/Users/register", req, &resp); err != nil {
		return model.RegisterResponse{}, registerProblem(err)
	}
	return resp, nil
}

// registerProblem turns any 4xx answer from the register endpoint into a
// *ValidationError when its body carries something to show: an "errors"
// object, a message, or plain text such as "User already exists".
func registerProblem(err error) error {
	var rerr *RequestError
	if !errors.As(err, &rerr) || rerr.Status < 400 || rerr.Status >= 500 || rerr.Body == "" {
		return err
	}
	if verr := decodeValidation([]byte(rerr.Body)); verr != nil {
		return verr
	}
	if !json.Valid([]byte(rerr.Body)) {
		return &ValidationError{Messages: []string{rerr.Body}}
	}
	return err
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp model.LoginResponse
	_, err := c.do(ctx, false, http.MethodPost, "/Users/login", model.LoginRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", ErrNoToken
	}
	return resp.Token, nil
}

package userdetails

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-auth-nosql/internal/pkg/httpclient"
)

type creationRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type usernameResponse struct {
	Username string `json:"username"`
}

// Client talks to the user details service, which owns usernames.
type Client struct {
	http *httpclient.Client
}

func New(c *httpclient.Client) *Client {
	return &Client{http: c}
}

func (c *Client) CreateProfile(ctx context.Context, userID, username string) error {
	return c.http.Do(ctx, "create profile", http.MethodPost, "/internal/user-details",
		creationRequest{UserID: userID, Username: username}, nil)
}

func (c *Client) GetUsername(ctx context.Context, userID string) (string, error) {
	var resp usernameResponse
	err := c.http.Do(ctx, "get username", http.MethodGet, "/internal/user-details/username/"+url.PathEscape(userID), nil, &resp)
	if err != nil {
		return "", err
	}
	return resp.Username, nil
}

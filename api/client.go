// Package api talks to the crypto tracker backend: authentication, the top
// coin price list and the per-user watchlist.
package api

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
	"github.com/polyrabbit/crypto-tracker/http"
	"github.com/polyrabbit/crypto-tracker/model"
)

const (
	endpointRegister  = "/auth/register"
	endpointLogin     = "/auth/login"
	endpointMe        = "/auth/me"
	endpointTop       = "/crypto/top"
	endpointCoin      = "/crypto/coin"
	endpointWatchlist = "/crypto/watchlist"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type watchlistRequest struct {
	CoinID   string `json:"coinId"`
	CoinName string `json:"coinName"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string
	User  model.User
}

type Client struct {
	http *http.Client
}

func New(httpClient *http.Client) *Client {
	return &Client{http: httpClient}
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	body, err := c.http.Post(ctx, endpointRegister, req)
	if err != nil {
		return nil, errors.Wrap(err, "register")
	}
	return decodeAuth(body)
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	body, err := c.http.Post(ctx, endpointLogin, req)
	if err != nil {
		return nil, errors.Wrap(err, "login")
	}
	return decodeAuth(body)
}

// Me validates the stored token and returns the identity it belongs to.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	body, err := c.http.Get(ctx, endpointMe, nil)
	if err != nil {
		return nil, errors.Wrap(err, "validate token")
	}
	user, err := decodeUser(body)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) TopAssets(ctx context.Context) ([]model.Asset, error) {
	body, err := c.http.Get(ctx, endpointTop, nil)
	if err != nil {
		return nil, errors.Wrap(err, "get top coins")
	}
	var assets []model.Asset
	if err := json.Unmarshal(body, &assets); err != nil {
		return nil, errors.Wrap(err, "decode top coins")
	}
	return assets, nil
}

// Coin returns the backend's detail document of one coin as is.
func (c *Client) Coin(ctx context.Context, coinID string) (json.RawMessage, error) {
	endpoint, err := coinPath(endpointCoin, coinID)
	if err != nil {
		return nil, err
	}
	body, err := c.http.Get(ctx, endpoint, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "get coin %s", coinID)
	}
	if !json.Valid(body) {
		return nil, errors.Errorf("coin %s: response is not json", coinID)
	}
	return body, nil
}

func (c *Client) Watchlist(ctx context.Context) ([]model.Asset, error) {
	body, err := c.http.Get(ctx, endpointWatchlist, nil)
	if err != nil {
		return nil, errors.Wrap(err, "get watchlist")
	}
	var assets []model.Asset
	if err := json.Unmarshal(body, &assets); err != nil {
		return nil, errors.Wrap(err, "decode watchlist")
	}
	return assets, nil
}

func (c *Client) AddToWatchlist(ctx context.Context, coinID, coinName string) error {
	_, err := c.http.Post(ctx, endpointWatchlist, watchlistRequest{CoinID: coinID, CoinName: coinName})
	return errors.Wrapf(err, "add %s to watchlist", coinID)
}

func (c *Client) RemoveFromWatchlist(ctx context.Context, coinID string) error {
	endpoint, err := coinPath(endpointWatchlist, coinID)
	if err != nil {
		return err
	}
	_, err = c.http.Delete(ctx, endpoint)
	return errors.Wrapf(err, "remove %s from watchlist", coinID)
}

// coinPath appends coinID as one escaped path segment.
func coinPath(endpoint, coinID string) (string, error) {
	switch strings.TrimSpace(coinID) {
	case "", ".", "..":
		return "", errors.Errorf("invalid coin id %q", coinID)
	}
	return endpoint + "/" + url.PathEscape(coinID), nil
}

func decodeAuth(body []byte) (*AuthResponse, error) {
	token, err := jsonparser.GetString(body, "token")
	if err != nil || strings.TrimSpace(token) == "" {
		return nil, errors.New("response carries no token")
	}
	user, err := decodeUser(body)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, User: user}, nil
}

// decodeUser reads the "user" object, accepting either "id" or "_id".
func decodeUser(body []byte) (model.User, error) {
	var user model.User
	raw, dataType, _, err := jsonparser.Get(body, "user")
	if err != nil || dataType != jsonparser.Object {
		return user, errors.New("response carries no user")
	}
	if err := json.Unmarshal(raw, &user); err != nil {
		return user, errors.Wrap(err, "decode user")
	}
	if user.ID == "" {
		user.ID, _ = jsonparser.GetString(raw, "_id")
	}
	user.Watchlist = model.DedupWatchlist(user.Watchlist)
	return user, nil
}

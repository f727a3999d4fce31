package identity

import (
	"canvas-editor/core"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const DefaultRandomUserURL = "https://randomuser.me/api/"

// RandomUser signs people in as a random generated person. Credentials are
// not checked.
type RandomUser struct {
	url    string
	client *http.Client
}

func NewRandomUser(url string, client *http.Client) *RandomUser {
	if url == "" {
		url = DefaultRandomUserURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RandomUser{url: url, client: client}
}

type randomUserResponse struct {
	Results []struct {
		Login struct {
			UUID string `json:"uuid"`
		} `json:"login"`
		Name struct {
			First string `json:"first"`
			Last  string `json:"last"`
		} `json:"name"`
		Email   string `json:"email"`
		Picture struct {
			Large string `json:"large"`
		} `json:"picture"`
	} `json:"results"`
}

func (p *RandomUser) Fetch(ctx context.Context) (core.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return core.Profile{}, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return core.Profile{}, fmt.Errorf("fetching random user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.Profile{}, fmt.Errorf("fetching random user: unexpected status %d", resp.StatusCode)
	}

	var data randomUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return core.Profile{}, fmt.Errorf("decoding random user: %w", err)
	}
	if len(data.Results) == 0 || data.Results[0].Login.UUID == "" {
		return core.Profile{}, errors.New("random user response has no results")
	}

	u := data.Results[0]
	return core.Profile{
		ID:     u.Login.UUID,
		Name:   u.Name.First + " " + u.Name.Last,
		Email:  u.Email,
		Avatar: u.Picture.Large,
	}, nil
}

package weather

import (
	"canvas-editor/config"
	"canvas-editor/core"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(cfg config.WeatherConfig, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(cfg.BaseURL, "/"), apiKey: cfg.APIKey, client: client}
}

// Current fetches current conditions for location.
func (c *Client) Current(ctx context.Context, location string) (*core.WeatherData, error) {
	q := url.Values{"key": {c.apiKey}, "q": {location}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/current.json?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching weather: unexpected status %d", resp.StatusCode)
	}
	var data core.WeatherData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding weather: %w", err)
	}
	return &data, nil
}

// Snapshot is the observable weather state. Data survives failed refreshes.
type Snapshot struct {
	Data        *core.WeatherData `json:"data"`
	Loading     bool              `json:"loading"`
	Error       *string           `json:"error"`
	LastUpdated *time.Time        `json:"lastUpdated"`
}

// State tracks one user's weather widget.
type State struct {
	client   *Client
	location string
	now      func() time.Time

	mu   sync.Mutex
	snap Snapshot

	subMu       sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSub     int
}

func NewState(client *Client, location string) *State {
	return &State{
		client:      client,
		location:    location,
		now:         func() time.Time { return time.Now().UTC() },
		subscribers: make(map[int]func(Snapshot)),
	}
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *State) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

// Refresh fetches the configured location and records the outcome.
func (s *State) Refresh(ctx context.Context) Snapshot {
	s.set(func(snap *Snapshot) {
		snap.Loading = true
		snap.Error = nil
	})

	data, err := s.client.Current(ctx, s.location)

	return s.set(func(snap *Snapshot) {
		snap.Loading = false
		if err != nil {
			logrus.WithError(err).WithField("location", s.location).Warn("Weather refresh failed")
			msg := "Failed to fetch weather data"
			snap.Error = &msg
			return
		}
		now := s.now()
		snap.Data = data
		snap.LastUpdated = &now
	})
}

// Poll refreshes immediately and then every interval until ctx is done.
func (s *State) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	s.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

func (s *State) set(fn func(*Snapshot)) Snapshot {
	s.mu.Lock()
	fn(&s.snap)
	snap := s.snap
	s.mu.Unlock()

	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subscribers))
	for _, f := range s.subscribers {
		fns = append(fns, f)
	}
	s.subMu.Unlock()
	for _, f := range fns {
		f(snap)
	}
	return snap
}

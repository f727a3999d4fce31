package collab

import (
	"bytes"
	"canvas-editor/core"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultFeedURL = "https://jsonplaceholder.typicode.com"

var ErrEmptyFeed = errors.New("chat feed returned no messages")

// Feed is the placeholder chat backend. Posting a message is acknowledged
// but not stored; replies are canned comments.
type Feed struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewFeed(baseURL string, client *http.Client) *Feed {
	if baseURL == "" {
		baseURL = DefaultFeedURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Feed{baseURL: baseURL, client: client, now: func() time.Time { return time.Now().UTC() }}
}

type comment struct {
	ID     int    `json:"id"`
	PostID int    `json:"postId"`
	Body   string `json:"body"`
}

// FetchMessage returns one message attributed to "User {postId}".
func (f *Feed) FetchMessage(ctx context.Context) (core.ChatMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/comments?_limit=1", nil)
	if err != nil {
		return core.ChatMessage{}, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return core.ChatMessage{}, fmt.Errorf("fetching chat message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return core.ChatMessage{}, fmt.Errorf("fetching chat message: unexpected status %d", resp.StatusCode)
	}

	var comments []comment
	if err := json.NewDecoder(resp.Body).Decode(&comments); err != nil {
		return core.ChatMessage{}, fmt.Errorf("decoding chat message: %w", err)
	}
	if len(comments) == 0 {
		return core.ChatMessage{}, ErrEmptyFeed
	}

	c := comments[0]
	postID := strconv.Itoa(c.PostID)
	return core.ChatMessage{
		ID:        strconv.Itoa(c.ID),
		UserID:    postID,
		UserName:  "User " + postID,
		Text:      c.Body,
		Timestamp: f.now(),
	}, nil
}

// Post submits text on behalf of user.
func (f *Feed) Post(ctx context.Context, user core.Profile, text string) error {
	body, err := json.Marshal(map[string]string{
		"title":  user.Name,
		"body":   text,
		"userId": user.ID,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/posts", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting chat message: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("posting chat message: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Send posts text, appends it to the session transcript and then appends a
// reply from the feed. Failures are recorded as the session error.
func (f *Feed) Send(ctx context.Context, s *Session, user core.Profile, text string) error {
	if err := f.Post(ctx, user, text); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("Sending chat message failed")
		s.SetError("Failed to send message")
		return err
	}
	s.AddMessage(user.ID, user.Name, text)

	reply, err := f.FetchMessage(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Fetching chat reply failed")
		s.SetError("Failed to fetch reply")
		return err
	}
	s.append(reply)
	s.SetError("")
	return nil
}

// Prime fetches a single message into an empty transcript.
func (f *Feed) Prime(ctx context.Context, s *Session) {
	if len(s.View().Messages) > 0 {
		return
	}
	msg, err := f.FetchMessage(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Priming chat transcript failed")
		return
	}
	s.append(msg)
}

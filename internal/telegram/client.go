// Package telegram is a minimal Bot API client covering exactly what the bot
// needs: long-poll update consumption, plain-text messages, and multipart
// document uploads. API and network failures are classified so the delivery
// layer can decide what is worth retrying.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const apiBase = "https://api.telegram.org"

// Update is one long-poll result. Only message updates are consumed; other
// kinds are acknowledged and dropped.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is the subset of an incoming message the bot acts on.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// User identifies the sender of a message.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// Chat identifies where a message was posted.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// Title or a fallback for private chats, used for the usage ledger's name
// cache.
func (c Chat) DisplayName() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Type + ":" + strconv.FormatInt(c.ID, 10)
}

// APIError is a Bot API rejection (ok=false in the envelope).
type APIError struct {
	Code        int
	Description string
}

// Error implements error.
func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// Transient reports whether the rejection is worth retrying: rate limiting
// and server-side errors are, client errors like a bad chat ID are not.
func (e *APIError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// netError wraps a transport-level failure. Always transient.
type netError struct{ err error }

func (e *netError) Error() string   { return "telegram request failed: " + e.err.Error() }
func (e *netError) Unwrap() error   { return e.err }
func (e *netError) Transient() bool { return true }

// Client talks to the Bot API for one bot token.
type Client struct {
	token       string
	base        string
	http        *http.Client
	poll        *http.Client
	upload      *http.Client
	pollTimeout time.Duration
}

// NewClient constructs a Client. pollTimeout is the server-side long-poll
// hold; the poll transport's own timeout is padded past it so a quiet hold is
// not mistaken for a dead connection. uploadTimeout bounds document uploads,
// which move megabytes over slow links and outlive the plain-call timeout.
func NewClient(token string, pollTimeout, uploadTimeout time.Duration) *Client {
	if pollTimeout <= 0 {
		pollTimeout = 50 * time.Second
	}
	if uploadTimeout <= 0 {
		uploadTimeout = 180 * time.Second
	}
	return &Client{
		token:       token,
		base:        apiBase,
		http:        &http.Client{Timeout: 30 * time.Second},
		poll:        &http.Client{Timeout: pollTimeout + 15*time.Second},
		upload:      &http.Client{Timeout: uploadTimeout},
		pollTimeout: pollTimeout,
	}
}

func (c *Client) method(name string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.base, c.token, name)
}

type apiEnvelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &netError{err: err}
	}
	if !env.OK {
		code := env.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Code: code, Description: env.Description}
	}
	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return &netError{err: err}
		}
	}
	return nil
}

// GetUpdates long-polls for updates past offset. A timeout with no traffic
// returns an empty slice, not an error.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	vals := url.Values{
		"offset":          {strconv.FormatInt(offset, 10)},
		"timeout":         {strconv.Itoa(int(c.pollTimeout / time.Second))},
		"allowed_updates": {`["message"]`},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.method("getUpdates")+"?"+vals.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.poll.Do(req)
	if err != nil {
		return nil, &netError{err: err}
	}
	var updates []Update
	if err := decode(resp, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage posts plain text to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	vals := url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"text":    {text},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.method("sendMessage"), strings.NewReader(vals.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return &netError{err: err}
	}
	return decode(resp, nil)
}

// SendDocument uploads doc to a chat as a file named filename, streaming it
// as multipart form data.
func (c *Client) SendDocument(ctx context.Context, chatID int64, filename string, doc io.Reader, caption string) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := func() error {
			if err := mw.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
				return err
			}
			if caption != "" {
				if err := mw.WriteField("caption", caption); err != nil {
					return err
				}
			}
			part, err := mw.CreateFormFile("document", filename)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, doc); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.method("sendDocument"), pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.upload.Do(req)
	if err != nil {
		return &netError{err: err}
	}
	return decode(resp, nil)
}

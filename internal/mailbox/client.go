package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Message is the subset of a Graph message intake reads.
type Message struct {
	ID                string    `json:"id"`
	InternetMessageID string    `json:"internetMessageId"`
	Subject           string    `json:"subject"`
	Body              Body      `json:"body"`
	From              Recipient `json:"from"`
	ReceivedDateTime  time.Time `json:"receivedDateTime"`
	HasAttachments    bool      `json:"hasAttachments"`
}

// Body is a message body.
type Body struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Recipient wraps an email address.
type Recipient struct {
	EmailAddress struct {
		Address string `json:"address"`
		Name    string `json:"name"`
	} `json:"emailAddress"`
}

// Attachment is attachment metadata. ContentBytes is only filled by
// DownloadAttachment.
type Attachment struct {
	ODataType    string `json:"@odata.type"`
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	Size         int64  `json:"size"`
	IsInline     bool   `json:"isInline"`
	ContentBytes []byte `json:"contentBytes,omitempty"`
}

const fileAttachmentType = "#microsoft.graph.fileAttachment"

// IsFile reports whether the attachment carries file bytes. Item and
// reference attachments do not.
func (a Attachment) IsFile() bool {
	return a.ODataType == "" || a.ODataType == fileAttachmentType
}

// Reader is what intake needs from a mailbox.
type Reader interface {
	GetMessage(ctx context.Context, messageID string) (*Message, error)
	ListAttachments(ctx context.Context, messageID string) ([]Attachment, error)
	DownloadAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// APIError is a non-2xx Graph response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph: %d %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a Graph 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client reads one shared mailbox.
type Client struct {
	baseURL    string
	mailbox    string
	tokens     *TokenCache
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a Graph client for mailbox.
func NewClient(baseURL, mailbox string, tokens *TokenCache, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		mailbox:    mailbox,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) messagePath(messageID string, rest ...string) string {
	parts := append([]string{"users", url.PathEscape(c.mailbox), "messages", url.PathEscape(messageID)}, rest...)
	return "/" + strings.Join(parts, "/")
}

// GetMessage fetches a message with its body as plain text.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	query := url.Values{"$select": {"id,internetMessageId,subject,body,from,receivedDateTime,hasAttachments"}}
	var msg Message
	if err := c.getJSON(ctx, c.messagePath(messageID), query, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListAttachments lists attachment metadata without content.
func (c *Client) ListAttachments(ctx context.Context, messageID string) ([]Attachment, error) {
	query := url.Values{"$select": {"id,name,contentType,size,isInline"}}
	var resp struct {
		Value []Attachment `json:"value"`
	}
	if err := c.getJSON(ctx, c.messagePath(messageID, "attachments"), query, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// DownloadAttachment returns the decoded bytes of one file attachment.
func (c *Client) DownloadAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	var att Attachment
	if err := c.getJSON(ctx, c.messagePath(messageID, "attachments", url.PathEscape(attachmentID)), nil, &att); err != nil {
		return nil, err
	}
	if !att.IsFile() {
		return nil, fmt.Errorf("attachment %s is %s, not a file", attachmentID, att.ODataType)
	}
	if att.ContentBytes == nil {
		return nil, fmt.Errorf("attachment %s has no content", attachmentID)
	}
	return att.ContentBytes, nil
}

// getJSON issues a GET and decodes the response. A 401 invalidates the cached
// token and retries once with a fresh one.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	err := c.doGet(ctx, path, query, out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		c.logger.Info("graph rejected token; refreshing", zap.String("path", path))
		c.tokens.Invalidate(ctx)
		err = c.doGet(ctx, path, query, out)
	}
	return err
}

func (c *Client) doGet(ctx context.Context, path string, query url.Values, out any) error {
	token, err := c.tokens.Get(ctx)
	if err != nil {
		return err
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", `outlook.body-content-type="text"`)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode graph response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	if json.Unmarshal(raw, &body) == nil && body.Error.Code != "" {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	return apiErr
}

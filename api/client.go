// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/tourbase/chatkit/lib/ref"
	"github.com/tourbase/chatkit/wire"
)

// maxResponseBytes caps how much of a response body the client reads.
// Message history for one conversation page fits comfortably; a
// misbehaving server cannot exhaust memory.
const maxResponseBytes = 8 << 20

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the API origin (e.g., "https://api.tourbase.example").
	BaseURL string
	// AuthToken is the bearer token attached to every request.
	AuthToken string
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client talks to the chat REST endpoints.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client. The base URL is validated but otherwise
// stored as-is; request URLs are built by string concatenation so
// path segments pass through unmodified.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("api: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("api: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		authToken:  config.AuthToken,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Conversation is the conversation object from the bootstrap endpoint.
type Conversation struct {
	ID           ref.ConversationID `json:"id"`
	Participants []Participant      `json:"participants"`
}

// Participant is one member of a conversation, profile plus presence.
type Participant struct {
	wire.UserInfo
	OnlineStatus string `json:"onlineStatus,omitempty"`
}

// UploadResult is returned by the upload endpoint.
type UploadResult struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// GetConversation fetches conversation metadata and the participant
// list.
func (c *Client) GetConversation(ctx context.Context, conversationID ref.ConversationID) (*Conversation, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/conversations/"+conversationID.String(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("api: conversation fetch failed: %w", err)
	}
	var conversation Conversation
	if err := json.Unmarshal(body, &conversation); err != nil {
		return nil, fmt.Errorf("api: failed to parse conversation response: %w", err)
	}
	return &conversation, nil
}

// GetMessages fetches the most recent messages for a conversation,
// newest last. limit <= 0 uses the server default.
func (c *Client) GetMessages(ctx context.Context, conversationID ref.ConversationID, limit int) ([]wire.MessagePayload, error) {
	var query url.Values
	if limit > 0 {
		query = url.Values{"limit": []string{strconv.Itoa(limit)}}
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/api/conversations/"+conversationID.String()+"/messages", query, nil)
	if err != nil {
		return nil, fmt.Errorf("api: message history fetch failed: %w", err)
	}
	var messages []wire.MessagePayload
	if err := json.Unmarshal(body, &messages); err != nil {
		return nil, fmt.Errorf("api: failed to parse message history: %w", err)
	}
	return messages, nil
}

// MarkRead persists read receipts for the given messages.
func (c *Client) MarkRead(ctx context.Context, conversationID ref.ConversationID, messageIDs []ref.MessageID) error {
	request := struct {
		MessageIDs []ref.MessageID `json:"messageIds"`
	}{MessageIDs: messageIDs}

	if _, err := c.doRequest(ctx, http.MethodPost, "/api/conversations/"+conversationID.String()+"/read", nil, request); err != nil {
		return fmt.Errorf("api: mark read failed: %w", err)
	}
	return nil
}

// GetBooking resolves a booking reference for embedding in a
// booking-reference message.
func (c *Client) GetBooking(ctx context.Context, bookingID ref.BookingID) (*wire.BookingInfo, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/bookings/"+bookingID.String(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("api: booking lookup failed: %w", err)
	}
	var booking wire.BookingInfo
	if err := json.Unmarshal(body, &booking); err != nil {
		return nil, fmt.Errorf("api: failed to parse booking response: %w", err)
	}
	return &booking, nil
}

// UploadFile sends one file as a multipart request scoped to the
// conversation and returns the durable storage reference. The form is
// streamed through the request rather than buffered, so the content
// reader is consumed at the pace of the network transfer — callers
// wrapping it for progress tracking see the real upload position.
func (c *Client) UploadFile(ctx context.Context, conversationID ref.ConversationID, name, contentType string, content io.Reader) (*UploadResult, error) {
	pipeReader, pipeWriter := io.Pipe()
	form := multipart.NewWriter(pipeWriter)

	go func() {
		if err := writeUploadForm(form, conversationID, name, contentType, content); err != nil {
			pipeWriter.CloseWithError(err)
			return
		}
		pipeWriter.Close()
	}()

	body, err := c.doRequestRaw(ctx, http.MethodPost, "/api/chat/upload", form.FormDataContentType(), pipeReader)
	if err != nil {
		// Unblocks the form writer if the request ended before the
		// body was drained.
		pipeReader.CloseWithError(err)
		return nil, fmt.Errorf("api: upload of %q failed: %w", name, err)
	}
	var result UploadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("api: failed to parse upload response: %w", err)
	}
	return &result, nil
}

// writeUploadForm writes the upload form fields and the file part.
// Runs on the pipe feeding the request body, so each write blocks
// until the transport has room for it.
func writeUploadForm(form *multipart.Writer, conversationID ref.ConversationID, name, contentType string, content io.Reader) error {
	if err := form.WriteField("conversationId", conversationID.String()); err != nil {
		return fmt.Errorf("api: building upload form: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", contentType)
	part, err := form.CreatePart(header)
	if err != nil {
		return fmt.Errorf("api: building upload form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("api: reading upload content for %q: %w", name, err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("api: finalizing upload form: %w", err)
	}
	return nil
}

// doRequest performs a JSON request and returns the contents of the
// response's data envelope. On non-2xx, returns a *APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, requestBody any) (json.RawMessage, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	return c.send(request, method, path)
}

// doRequestRaw performs a request with a caller-built body (the
// multipart upload) and returns the data envelope contents.
func (c *Client) doRequestRaw(ctx context.Context, method, path, contentType string, body io.Reader) (json.RawMessage, error) {
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	request.Header.Set("Content-Type", contentType)
	return c.send(request, method, path)
}

func (c *Client) send(request *http.Request, method, path string) (json.RawMessage, error) {
	if c.authToken != "" {
		request.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s %s: %w", method, path, err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(responseBody, &envelope); err != nil {
			return nil, fmt.Errorf("unexpected response body from %s %s: %w", method, path, err)
		}
		return envelope.Data, nil
	}

	return nil, decodeAPIError(response.StatusCode, responseBody)
}

// decodeAPIError builds an *APIError from an error response. The
// backend wraps errors as {"error": {"code", "message"}}; anything
// else (proxies, panics) is kept as the raw body so the information
// is not lost.
func decodeAPIError(statusCode int, body []byte) *APIError {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return &APIError{
			StatusCode: statusCode,
			Code:       envelope.Error.Code,
			Message:    envelope.Error.Message,
		}
	}
	return &APIError{
		StatusCode: statusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}

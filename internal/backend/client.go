package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ramonehamilton/commander-builder/internal/metrics"
)

const (
	// DefaultBaseURL is the deck service's local address.
	DefaultBaseURL = "http://localhost:3839/api"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL    string
	APIKey     string
	ClientID   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Metrics    *metrics.RemoteMetrics
	Logger     *zap.Logger
}

// Client talks to the deck persistence service. Mutations are never retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.RemoteMetrics
	logger     *zap.Logger

	mu       sync.RWMutex
	apiKey   string
	clientID string
}

// NewClient creates a deck service client.
func NewClient(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		metrics:    opts.Metrics,
		logger:     logger,
		apiKey:     opts.APIKey,
		clientID:   opts.ClientID,
	}
}

// SetCredentials swaps the API key and client id used for later requests.
func (c *Client) SetCredentials(apiKey, clientID string) {
	c.mu.Lock()
	c.apiKey = apiKey
	c.clientID = clientID
	c.mu.Unlock()
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListDecks returns every deck owned by the client.
func (c *Client) ListDecks(ctx context.Context) ([]Deck, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "list_decks", http.MethodGet, "/decks", nil, &raw); err != nil {
		return nil, err
	}
	return decodeDeckList(raw)
}

// decodeDeckList accepts both {"decks": [...]} and a bare array.
func decodeDeckList(raw json.RawMessage) ([]Deck, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Deck{}, nil
	}
	if trimmed[0] == '[' {
		var decks []Deck
		if err := json.Unmarshal(trimmed, &decks); err != nil {
			return nil, fmt.Errorf("failed to parse deck list: %w", err)
		}
		return decks, nil
	}
	var resp deckListResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse deck list: %w", err)
	}
	if resp.Decks == nil {
		resp.Decks = []Deck{}
	}
	return resp.Decks, nil
}

// CreateDeck creates an empty deck.
func (c *Client) CreateDeck(ctx context.Context, name string) (*Deck, error) {
	var deck Deck
	if err := c.do(ctx, "create_deck", http.MethodPost, "/decks", nameRequest{Name: name}, &deck); err != nil {
		return nil, err
	}
	return &deck, nil
}

// GetFullDeck returns a deck and all of its card rows.
func (c *Client) GetFullDeck(ctx context.Context, deckID int) (*FullDeck, error) {
	var deck FullDeck
	if err := c.do(ctx, "get_full_deck", http.MethodGet, deckPath(deckID, "full"), nil, &deck); err != nil {
		return nil, err
	}
	return &deck, nil
}

// GetCommander returns the deck's commander row. A deck without a commander
// yields (nil, nil).
func (c *Client) GetCommander(ctx context.Context, deckID int) (*DeckCard, error) {
	var card DeckCard
	err := c.do(ctx, "get_commander", http.MethodGet, deckPath(deckID, "commander"), nil, &card)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if card.ID() == "" {
		return nil, nil
	}
	return &card, nil
}

// AddCard adds quantity copies of a card. The service adds to any existing
// quantity.
func (c *Client) AddCard(ctx context.Context, deckID int, cardID string, quantity int) (*DeckCard, error) {
	var card DeckCard
	body := addCardRequest{CardID: cardID, Quantity: quantity}
	if err := c.do(ctx, "add_card", http.MethodPost, deckPath(deckID, "cards"), body, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// RemoveCard removes quantity copies of a card.
func (c *Client) RemoveCard(ctx context.Context, deckID int, cardID string, quantity int) error {
	path := deckPath(deckID, "cards", url.PathEscape(cardID)) + "?quantity=" + strconv.Itoa(quantity)
	return c.do(ctx, "remove_card", http.MethodDelete, path, nil, nil)
}

// SetCommander marks a card already in the deck as its commander.
func (c *Client) SetCommander(ctx context.Context, deckID int, cardID string) (*DeckCard, error) {
	var card DeckCard
	body := setCommanderRequest{CardID: cardID}
	if err := c.do(ctx, "set_commander", http.MethodPut, deckPath(deckID, "commander"), body, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// DeleteDeck deletes a deck.
func (c *Client) DeleteDeck(ctx context.Context, deckID int) error {
	return c.do(ctx, "delete_deck", http.MethodDelete, deckPath(deckID), nil, nil)
}

// RenameDeck renames a deck.
func (c *Client) RenameDeck(ctx context.Context, deckID int, name string) (*Deck, error) {
	var deck Deck
	if err := c.do(ctx, "rename_deck", http.MethodPatch, deckPath(deckID), nameRequest{Name: name}, &deck); err != nil {
		return nil, err
	}
	return &deck, nil
}

// CopyDeck duplicates a deck under a new name.
func (c *Client) CopyDeck(ctx context.Context, deckID int, name string) (*Deck, error) {
	var deck Deck
	if err := c.do(ctx, "copy_deck", http.MethodPost, deckPath(deckID, "copy"), nameRequest{Name: name}, &deck); err != nil {
		return nil, err
	}
	return &deck, nil
}

// ExportDeck downloads a deck in the given format.
func (c *Client) ExportDeck(ctx context.Context, deckID int, format ExportFormat) (*ExportFile, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}

	start := time.Now()
	req, err := c.newRequest(ctx, http.MethodGet, deckPath(deckID, "export", string(format)), nil, "")
	if err != nil {
		return nil, err
	}
	resp, err := c.send(req, "export_deck")
	if err != nil {
		c.metrics.Observe("backend.export_deck", start, err)
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	c.metrics.Observe("backend.export_deck", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}

	file := &ExportFile{
		Filename:    fmt.Sprintf("deck-%d.%s", deckID, format),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		file.Filename = params["filename"]
	}
	return file, nil
}

// ImportDeck uploads a deck file and returns the created deck.
func (c *Client) ImportDeck(ctx context.Context, format ImportFormat, name string, content []byte) (*FullDeck, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("unsupported import format %q", format)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("name", name); err != nil {
		return nil, fmt.Errorf("failed to write name field: %w", err)
	}
	part, err := w.CreateFormFile("file", "deck."+string(format))
	if err != nil {
		return nil, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	start := time.Now()
	req, err := c.newRequest(ctx, http.MethodPost, "/decks/import/"+string(format), &buf, w.FormDataContentType())
	if err != nil {
		return nil, err
	}
	resp, err := c.send(req, "import_deck")
	if err == nil {
		defer func() { _ = resp.Body.Close() }()
	}

	var deck FullDeck
	if err == nil {
		err = decodeBody(resp.Body, &deck)
	}
	c.metrics.Observe("backend.import_deck", start, err)
	if err != nil {
		return nil, err
	}
	return &deck, nil
}

// do sends a JSON request and decodes a JSON response into result when
// result is non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, body, result any) (err error) {
	start := time.Now()
	defer func() { c.metrics.Observe("backend."+op, start, err) }()

	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := c.newRequest(ctx, method, path, reader, contentType)
	if err != nil {
		return err
	}
	resp, err := c.send(req, op)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if result == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decodeBody(resp.Body, result)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.mu.RLock()
	apiKey, clientID := c.apiKey, c.clientID
	c.mu.RUnlock()

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	if clientID != "" {
		req.Header.Set("x-client-id", clientID)
	}
	return req, nil
}

// send executes req and turns transport failures and non-2xx statuses into
// typed errors. The caller closes the body of a successful response.
func (c *Client) send(req *http.Request, op string) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		c.logger.Debug("deck service request failed",
			zap.String("op", op),
			zap.String("url", req.URL.Redacted()),
			zap.Error(err))
		return nil, &UnavailableError{Op: op, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	rejected := &RejectedError{
		Op:      op,
		Status:  resp.StatusCode,
		Message: errorMessage(body, resp.StatusCode),
	}
	c.logger.Debug("deck service rejected request",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.String("message", rejected.Message))
	return nil, rejected
}

// errorMessage extracts the service's detail or message field.
func errorMessage(body []byte, status int) string {
	var payload errorResponse
	if err := json.Unmarshal(body, &payload); err == nil {
		switch detail := payload.Detail.(type) {
		case string:
			if detail != "" {
				return detail
			}
		case nil:
		default:
			if data, err := json.Marshal(detail); err == nil {
				return string(data)
			}
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fmt.Sprintf("HTTP error! status: %d", status)
}

func decodeBody(r io.Reader, result any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

func deckPath(deckID int, parts ...string) string {
	var b strings.Builder
	b.WriteString("/decks/")
	b.WriteString(strconv.Itoa(deckID))
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(p)
	}
	return b.String()
}

// Package vapi implements voice.Provider over the Vapi REST API and its raw
// PCM websocket transport.
package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rbright/cloudprep/internal/voice"
)

const (
	// DefaultBaseURL is the public Vapi API endpoint.
	DefaultBaseURL = "https://api.vapi.ai"
	// SampleRate is the PCM rate negotiated for both directions.
	SampleRate = 16000

	defaultCreateTimeout = 30 * time.Second
	closeGracePeriod     = 2 * time.Second
)

// Capture streams microphone PCM into send until ctx is cancelled.
type Capture func(ctx context.Context, send func(pcm []byte) error) error

// Options configures a Client. APIKey is required.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Logger     *slog.Logger
	Assistants map[string]Assistant
	Capture    Capture
	Speaker    io.Writer
}

// Client runs at most one call at a time.
type Client struct {
	*voice.Emitter

	baseURL    string
	apiKey     string
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     *slog.Logger
	assistants map[string]Assistant
	capture    Capture
	speaker    io.Writer

	mu       sync.Mutex
	call     *call
	stopping bool
}

type call struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns a Client ready to Start calls.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("vapi api key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultCreateTimeout}
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	assistants := opts.Assistants
	if assistants == nil {
		loaded, err := LoadAssistants()
		if err != nil {
			return nil, err
		}
		assistants = loaded
	}

	return &Client{
		Emitter:    voice.NewEmitter(),
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		dialer:     dialer,
		logger:     logger,
		assistants: assistants,
		capture:    opts.Capture,
		speaker:    opts.Speaker,
	}, nil
}

type audioFormat struct {
	Format     string `json:"format"`
	Container  string `json:"container"`
	SampleRate int    `json:"sampleRate"`
}

type transportRequest struct {
	Provider    string      `json:"provider"`
	AudioFormat audioFormat `json:"audioFormat"`
}

type overrides struct {
	VariableValues map[string]string `json:"variableValues,omitempty"`
}

type createCallRequest struct {
	WorkflowID         string           `json:"workflowId,omitempty"`
	WorkflowOverrides  *overrides       `json:"workflowOverrides,omitempty"`
	Assistant          *Assistant       `json:"assistant,omitempty"`
	AssistantOverrides *overrides       `json:"assistantOverrides,omitempty"`
	Transport          transportRequest `json:"transport"`
}

type createCallResponse struct {
	ID        string `json:"id"`
	Transport struct {
		WebsocketCallURL string `json:"websocketCallUrl"`
	} `json:"transport"`
}

// buildCreateCall resolves TemplateID against the embedded assistants first
// and treats any other value as a workflow id.
func (c *Client) buildCreateCall(cfg voice.StartConfig) (createCallRequest, error) {
	templateID := strings.TrimSpace(cfg.TemplateID)
	if templateID == "" {
		return createCallRequest{}, errors.New("template id is required")
	}

	req := createCallRequest{
		Transport: transportRequest{
			Provider: "vapi.websocket",
			AudioFormat: audioFormat{
				Format:     "pcm_s16le",
				Container:  "raw",
				SampleRate: SampleRate,
			},
		},
	}
	vars := &overrides{VariableValues: cfg.Variables}
	if assistant, ok := c.assistants[templateID]; ok {
		req.Assistant = &assistant
		req.AssistantOverrides = vars
		return req, nil
	}
	req.WorkflowID = templateID
	req.WorkflowOverrides = vars
	return req, nil
}

// Start creates the call and connects its websocket transport. call-start is
// emitted once the transport is connected.
func (c *Client) Start(ctx context.Context, cfg voice.StartConfig) error {
	c.mu.Lock()
	if c.call != nil {
		c.mu.Unlock()
		return errors.New("vapi call already in progress")
	}
	c.stopping = false
	c.mu.Unlock()

	body, err := c.buildCreateCall(cfg)
	if err != nil {
		return err
	}
	created, err := c.createCall(ctx, body)
	if err != nil {
		return c.connectFailed(err)
	}

	conn, resp, err := c.dialer.DialContext(ctx, created.Transport.WebsocketCallURL, nil)
	if err != nil {
		if resp != nil {
			return c.connectFailed(fmt.Errorf("dial vapi transport (status %d): %w", resp.StatusCode, err))
		}
		return c.connectFailed(fmt.Errorf("dial vapi transport: %w", err))
	}

	callCtx, cancel := context.WithCancel(context.Background())
	active := &call{id: created.ID, conn: conn, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		cancel()
		_ = conn.Close()
		return errors.New("vapi call stopped while connecting")
	}
	c.call = active
	c.mu.Unlock()

	c.logger.Info("vapi call connected", "call_id", created.ID)
	c.Emit(voice.Event{Type: voice.EventCallStart})

	go c.readLoop(active)
	if c.capture != nil {
		go c.captureLoop(callCtx, active)
	}
	return nil
}

// connectFailed reports a connection failure as an error event and returns it.
func (c *Client) connectFailed(err error) error {
	c.logger.Error("vapi call connect failed", "error", err.Error())
	c.Emit(voice.Event{Type: voice.EventError, Err: err})
	return err
}

func (c *Client) createCall(ctx context.Context, body createCallRequest) (createCallResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return createCallResponse{}, fmt.Errorf("encode create call: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call", bytes.NewReader(payload))
	if err != nil {
		return createCallResponse{}, fmt.Errorf("build create call request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return createCallResponse{}, fmt.Errorf("create vapi call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return createCallResponse{}, fmt.Errorf("read create call response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return createCallResponse{}, fmt.Errorf("create vapi call: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var created createCallResponse
	if err := json.Unmarshal(raw, &created); err != nil {
		return createCallResponse{}, fmt.Errorf("decode create call response: %w", err)
	}
	if created.Transport.WebsocketCallURL == "" {
		return createCallResponse{}, errors.New("create vapi call: response missing websocketCallUrl")
	}
	return created, nil
}

// serverMessage covers the control frames the transport sends as text.
type serverMessage struct {
	voice.Message
	Status string `json:"status,omitempty"`
}

func (c *Client) readLoop(active *call) {
	defer c.endCall(active)

	for {
		messageType, data, err := active.conn.ReadMessage()
		if err != nil {
			if c.isStopping() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			c.logger.Error("vapi transport read failed", "call_id", active.id, "error", err.Error())
			c.Emit(voice.Event{Type: voice.EventError, Err: err})
			return
		}

		switch messageType {
		case websocket.TextMessage:
			if !c.handleText(active, data) {
				return
			}
		case websocket.BinaryMessage:
			if c.speaker == nil {
				continue
			}
			if _, err := c.speaker.Write(data); err != nil {
				c.logger.Warn("speaker write failed", "error", err.Error())
			}
		}
	}
}

// handleText reports false once the server signals that the call ended.
func (c *Client) handleText(active *call, data []byte) bool {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("vapi frame decode failed", "call_id", active.id, "error", err.Error())
		return true
	}

	switch msg.Type {
	case "speech-update":
		// Only the interviewer's speech drives the speaking flag.
		if msg.Role != "assistant" {
			break
		}
		switch msg.Status {
		case "started":
			c.Emit(voice.Event{Type: voice.EventSpeechStart})
		case "stopped":
			c.Emit(voice.Event{Type: voice.EventSpeechEnd})
		}
	case "status-update":
		if msg.Status == "ended" {
			return false
		}
	}

	c.Emit(voice.Event{Type: voice.EventMessage, Message: msg.Message})
	return true
}

func (c *Client) captureLoop(ctx context.Context, active *call) {
	err := c.capture(ctx, func(pcm []byte) error {
		active.writeMu.Lock()
		defer active.writeMu.Unlock()
		return active.conn.WriteMessage(websocket.BinaryMessage, pcm)
	})
	if err != nil && ctx.Err() == nil {
		c.logger.Error("microphone capture failed", "call_id", active.id, "error", err.Error())
		c.Emit(voice.Event{Type: voice.EventError, Err: fmt.Errorf("capture: %w", err)})
	}
}

func (c *Client) endCall(active *call) {
	active.cancel()
	_ = active.conn.Close()

	c.mu.Lock()
	if c.call == active {
		c.call = nil
	}
	c.mu.Unlock()
	close(active.done)

	c.logger.Info("vapi call ended", "call_id", active.id)
	c.Emit(voice.Event{Type: voice.EventCallEnd})
}

func (c *Client) isStopping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopping
}

// Stop asks the server to end the call and closes the transport. call-end is
// emitted by the read loop when the connection closes.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.stopping = true
	active := c.call
	c.mu.Unlock()
	if active == nil {
		return nil
	}

	active.writeMu.Lock()
	err := active.conn.WriteJSON(map[string]string{"type": "end-call"})
	_ = active.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGracePeriod),
	)
	active.writeMu.Unlock()

	select {
	case <-active.done:
	case <-ctx.Done():
		_ = active.conn.Close()
		return ctx.Err()
	case <-time.After(closeGracePeriod):
		_ = active.conn.Close()
	}
	if err != nil {
		return fmt.Errorf("send end-call: %w", err)
	}
	return nil
}

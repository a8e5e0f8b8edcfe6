package explorerclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/NotCoffee418/waveform_explorer/pkg/api"
	"github.com/NotCoffee418/waveform_explorer/pkg/waveform"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client talks to a running explorer API. Window calls share one websocket connection
// and are serialized. A connection that fails is dropped and redialed on the next call.
type Client struct {
	host   string
	opts   DialOptions
	logger *zap.SugaredLogger
	http   *http.Client

	mu   sync.Mutex
	conn *websocket.Conn
}

// Dial connects to the websocket endpoint of host, retrying with exponential backoff
// until it succeeds, the retries run out or ctx is done.
func Dial(ctx context.Context, host string, opts DialOptions, logger *zap.SugaredLogger) (*Client, error) {
	c := &Client{
		host:   host,
		opts:   opts,
		logger: logger,
		http:   &http.Client{Timeout: opts.Timeout},
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u := url.URL{Scheme: "ws", Host: c.host, Path: "/ws"}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.opts.Timeout,
	}

	retryCount := 0
	for {
		if retryCount > 0 {
			// Calculate retry delay with exponential backoff
			retryDelay := time.Duration(1<<(retryCount-1)) * c.opts.BaseRetryDelay
			if retryDelay > c.opts.MaxRetryDelay {
				retryDelay = c.opts.MaxRetryDelay
			}
			c.logger.Infof("Retrying connection in %v... (attempt %d/%d)", retryDelay, retryCount+1, c.opts.MaxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		c.logger.Infof("Connecting to %s", u.String())
		conn, _, err := dialer.DialContext(ctx, u.String(), nil)
		if err == nil {
			c.logger.Info("Connected!")
			return conn, nil
		}

		c.logger.Warnf("Connection failed: %v", err)
		retryCount++
		if retryCount >= c.opts.MaxRetries {
			return nil, fmt.Errorf("giving up on %s after %d attempts: %w", u.String(), retryCount, err)
		}
	}
}

// Window sends one request and waits for its response. A response carrying an error
// is returned as a *RemoteError.
func (c *Client) Window(ctx context.Context, req api.WindowRequest) (*api.WindowResponse, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if c.conn, err = c.dial(ctx); err != nil {
			return nil, err
		}
	}
	resp, err := c.roundTrip(ctx, payload)
	if err != nil {
		// gorilla connections are unusable after a read or write error
		c.logger.Warnf("Dropping connection: %v", err)
		c.conn.Close()
		c.conn = nil
		return nil, err
	}
	if resp.Error != "" {
		return resp, &RemoteError{Message: resp.Error}
	}
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, payload []byte) (*api.WindowResponse, error) {
	deadline := time.Now().Add(c.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, err
	}

	c.conn.SetReadDeadline(deadline)
	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if resp := api.WindowResponseFromJsonBytes(message); resp != nil {
			return resp, nil
		}
		c.logger.Warnf("Failed to parse window response: %s", string(message))
	}
}

func (c *Client) Streams(ctx context.Context) (*api.StreamListResponse, error) {
	var resp api.StreamListResponse
	if err := c.getJSON(ctx, "/streams", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Bounds(ctx context.Context, key waveform.StreamKey) (*api.BoundsResponse, error) {
	query := url.Values{}
	query.Set("observation_type_id", fmt.Sprint(key.ObservationTypeID))
	query.Set("source_location", key.SourceLocation)
	var resp api.BoundsResponse
	if err := c.getJSON(ctx, "/bounds", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Recheck asks the API to forget its cached queries.
func (c *Client) Recheck(ctx context.Context) error {
	u := url.URL{Scheme: "http", Host: c.host, Path: "/recheck"}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return err
	}
	return c.do(req, &api.RecheckResponse{})
}

// Close sends a close message and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	if err != nil {
		c.logger.Debugf("Error sending close message: %v", err)
	}
	err = c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := url.URL{Scheme: "http", Host: c.host, Path: path, RawQuery: query.Encode()}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if err := json.NewDecoder(res.Body).Decode(&apiErr); err != nil {
			apiErr.Error = res.Status
		}
		return &RemoteError{Status: res.StatusCode, Message: apiErr.Error}
	}
	return json.NewDecoder(res.Body).Decode(out)
}

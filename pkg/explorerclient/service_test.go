package explorerclient_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NotCoffee418/waveform_explorer/pkg/api"
	"github.com/NotCoffee418/waveform_explorer/pkg/explorerclient"
	"github.com/NotCoffee418/waveform_explorer/pkg/logging"
	"github.com/NotCoffee418/waveform_explorer/pkg/streamquery"
	"github.com/NotCoffee418/waveform_explorer/pkg/waveform"
	"github.com/NotCoffee418/waveform_explorer/pkg/waveform/waveformtest"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ecg = waveform.StreamKey{ObservationTypeID: 27, SourceLocation: "UCHT03ICURM08"}
	t0  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func fastOptions() explorerclient.DialOptions {
	return explorerclient.DialOptions{
		MaxRetries:     3,
		BaseRetryDelay: time.Millisecond,
		MaxRetryDelay:  5 * time.Millisecond,
		Timeout:        5 * time.Second,
	}
}

func dialTestServer(t *testing.T) (*explorerclient.Client, *waveformtest.Source) {
	src := waveformtest.NewSource()
	src.Add(waveformtest.Contiguous(ecg, t0, 10, 6, 50)...)
	src.Name(27, "ECG")
	queries := streamquery.NewService(src, streamquery.DefaultOptions(), logging.Nop())
	srv := httptest.NewServer(api.NewServer(queries, "uds_schema", logging.Nop()).Handler())
	t.Cleanup(srv.Close)

	client, err := explorerclient.Dial(context.Background(), strings.TrimPrefix(srv.URL, "http://"), fastOptions(), logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, src
}

func TestWindow(t *testing.T) {
	client, _ := dialTestServer(t)
	ctx := context.Background()

	start := t0.Add(5 * time.Second)
	resp, err := client.Window(ctx, api.WindowRequest{
		ObservationTypeID: ecg.ObservationTypeID,
		SourceLocation:    ecg.SourceLocation,
		Start:             &start,
		WidthSeconds:      1,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RequestID)
	require.Len(t, resp.Samples, 11)
	assert.Equal(t, float64(50), resp.Samples[0].Value)
	assert.Equal(t, "uV", resp.Unit)

	// the connection stays usable for further requests
	resp, err = client.Window(ctx, api.WindowRequest{RequestID: "next", ObservationTypeID: 27, SourceLocation: ecg.SourceLocation})
	require.NoError(t, err)
	assert.Equal(t, "next", resp.RequestID)
	assert.Len(t, resp.Samples, 200)
}

func TestWindowRemoteError(t *testing.T) {
	client, _ := dialTestServer(t)

	resp, err := client.Window(context.Background(), api.WindowRequest{ObservationTypeID: 27, SourceLocation: ecg.SourceLocation, WidthSeconds: 60})
	var remote *explorerclient.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Contains(t, remote.Message, "invalid window")
	require.NotNil(t, resp)
	assert.Empty(t, resp.Samples)
}

func TestStreamsBoundsAndRecheck(t *testing.T) {
	client, src := dialTestServer(t)
	ctx := context.Background()

	streams, err := client.Streams(ctx)
	require.NoError(t, err)
	require.Len(t, streams.Streams, 1)
	assert.Equal(t, "ECG", streams.Streams[0].DisplayName)

	bounds, err := client.Bounds(ctx, ecg)
	require.NoError(t, err)
	assert.True(t, t0.Equal(bounds.Min))

	_, err = client.Bounds(ctx, waveform.StreamKey{ObservationTypeID: 1, SourceLocation: "nowhere"})
	var remote *explorerclient.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusNotFound, remote.Status)

	require.NoError(t, client.Recheck(ctx))
	_, err = client.Streams(ctx)
	require.NoError(t, err)
	_, _, streamCalls := src.Calls()
	assert.Equal(t, 2, streamCalls)
}

func TestDialGivesUp(t *testing.T) {
	// grab a free port and release it so nothing is listening
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	_, err = explorerclient.Dial(context.Background(), addr, fastOptions(), logging.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestDialStopsOnContext(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	opts := fastOptions()
	opts.BaseRetryDelay = time.Hour
	opts.MaxRetryDelay = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = explorerclient.Dial(ctx, addr, opts, logging.Nop())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWindowRedialsAfterTimeout(t *testing.T) {
	var connections atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		first := connections.Add(1) == 1
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			// the first connection never answers
			if first {
				continue
			}
			var req api.WindowRequest
			if err := json.Unmarshal(message, &req); err != nil {
				return
			}
			resp := &api.WindowResponse{RequestID: req.RequestID, Unit: "uV"}
			if err := conn.WriteMessage(websocket.TextMessage, resp.ToJsonBytes()); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	opts := fastOptions()
	opts.Timeout = 200 * time.Millisecond
	client, err := explorerclient.Dial(context.Background(), strings.TrimPrefix(srv.URL, "http://"), opts, logging.Nop())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Window(context.Background(), api.WindowRequest{RequestID: "slow", SourceLocation: ecg.SourceLocation})
	require.Error(t, err)

	resp, err := client.Window(context.Background(), api.WindowRequest{RequestID: "again", SourceLocation: ecg.SourceLocation})
	require.NoError(t, err)
	assert.Equal(t, "again", resp.RequestID)
	assert.Equal(t, int32(2), connections.Load())
}

package api

import (
	"time"

	"github.com/NotCoffee418/waveform_explorer/pkg/streamquery"
	"github.com/NotCoffee418/waveform_explorer/pkg/waveform"
	"github.com/goccy/go-json"
)

// WindowRequest is sent by websocket clients. A nil Start opens the stream at its default start
// and a zero WidthSeconds uses the default width.
type WindowRequest struct {
	RequestID         string     `json:"request_id,omitempty"`
	ObservationTypeID int64      `json:"observation_type_id"`
	SourceLocation    string     `json:"source_location"`
	Start             *time.Time `json:"start,omitempty"`
	WidthSeconds      int        `json:"width_seconds,omitempty"`
}

func (r *WindowRequest) Key() waveform.StreamKey {
	return waveform.StreamKey{ObservationTypeID: r.ObservationTypeID, SourceLocation: r.SourceLocation}
}

type SamplePoint struct {
	Time  time.Time `json:"t"`
	Value float64   `json:"v"`
}

type WindowResponse struct {
	RequestID         string        `json:"request_id,omitempty"`
	ObservationTypeID int64         `json:"observation_type_id"`
	SourceLocation    string        `json:"source_location"`
	Unit              string        `json:"unit"`
	Start             time.Time     `json:"start"`
	End               time.Time     `json:"end"`
	QueryStart        time.Time     `json:"query_start"`
	QueryEnd          time.Time     `json:"query_end"`
	Samples           []SamplePoint `json:"samples"`
	Warnings          []string      `json:"warnings,omitempty"`
	// Set instead of the other fields when the request failed
	Error string `json:"error,omitempty"`
}

type StreamResponse struct {
	ObservationTypeID int64  `json:"observation_type_id"`
	SourceLocation    string `json:"source_location"`
	DisplayName       string `json:"display_name"`
}

type StreamListResponse struct {
	Locations []string         `json:"locations"`
	Streams   []StreamResponse `json:"streams"`
	Warnings  []string         `json:"warnings,omitempty"`
}

type BoundsResponse struct {
	Min          time.Time `json:"min"`
	Max          time.Time `json:"max"`
	DefaultStart time.Time `json:"default_start"`
}

type RecheckResponse struct {
	Cleared bool `json:"cleared"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewWindowResponse(requestID string, w *streamquery.Window) *WindowResponse {
	resp := &WindowResponse{
		RequestID:         requestID,
		ObservationTypeID: w.Key.ObservationTypeID,
		SourceLocation:    w.Key.SourceLocation,
		Unit:              w.Unit,
		Start:             w.Start,
		End:               w.End,
		QueryStart:        w.Query.QueryStart,
		QueryEnd:          w.Query.QueryEnd,
		Samples:           make([]SamplePoint, 0, len(w.Samples)),
		Warnings:          errorStrings(w.Warnings),
	}
	for _, s := range w.Samples {
		resp.Samples = append(resp.Samples, SamplePoint{Time: s.Time, Value: s.Value})
	}
	return resp
}

func NewStreamListResponse(l *streamquery.StreamList) *StreamListResponse {
	resp := &StreamListResponse{
		Locations: l.Locations(),
		Streams:   make([]StreamResponse, 0, len(l.Streams)),
		Warnings:  errorStrings(l.Warnings),
	}
	for _, s := range l.Streams {
		resp.Streams = append(resp.Streams, StreamResponse{
			ObservationTypeID: s.Key.ObservationTypeID,
			SourceLocation:    s.Key.SourceLocation,
			DisplayName:       s.DisplayName,
		})
	}
	return resp
}

func (r *WindowResponse) ToJsonBytes() []byte {
	data, _ := json.Marshal(r)
	return data
}

func WindowResponseFromJsonBytes(data []byte) *WindowResponse {
	var resp WindowResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil
	}
	return &resp
}

func errorStrings(errs []error) []string {
	var out []string
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}

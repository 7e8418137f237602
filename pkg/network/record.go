// Package network models the network activity log of a page load and
// normalizes it into request records the dependency graph is built from.
//
// All times are milliseconds on the same monotonic clock as the trace
// (trace timestamps are microseconds on that clock).
package network

import (
	"net/url"
	"strings"
)

// Resource types as reported by the browser
const (
	ResourceDocument   = "Document"
	ResourceStylesheet = "Stylesheet"
	ResourceScript     = "Script"
	ResourceImage      = "Image"
	ResourceFont       = "Font"
	ResourceXHR        = "XHR"
	ResourceFetch      = "Fetch"
	ResourceOther      = "Other"
)

// Initiator types
const (
	InitiatorParser   = "parser"
	InitiatorScript   = "script"
	InitiatorPreload  = "preload"
	InitiatorRedirect = "redirect"
	InitiatorOther    = "other"
)

// Timing is the per-phase breakdown of one request, in the HAR layout.
// A negative or zero phase means the phase did not happen.
type Timing struct {
	Blocked float64 `json:"blocked,omitempty"`
	DNS     float64 `json:"dns,omitempty"`
	Connect float64 `json:"connect,omitempty"`
	// SSL is included in Connect.
	SSL     float64 `json:"ssl,omitempty"`
	Send    float64 `json:"send,omitempty"`
	Wait    float64 `json:"wait,omitempty"`
	Receive float64 `json:"receive,omitempty"`
}

// Initiator is the weak causal reference to whatever discovered a request.
type Initiator struct {
	Type      string `json:"type,omitempty"`
	URL       string `json:"url,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Record is a single request lifecycle entry from the network log.
type Record struct {
	RequestID              string    `json:"request_id"`
	URL                    string    `json:"url"`
	ResourceType           string    `json:"resource_type,omitempty"`
	MimeType               string    `json:"mime_type,omitempty"`
	Protocol               string    `json:"protocol,omitempty"`
	Priority               Priority  `json:"priority"`
	TransferSize           int64     `json:"transfer_size"`
	ResourceSize           int64     `json:"resource_size"`
	StartTime              float64   `json:"start_time"`
	ResponseHeadersEndTime float64   `json:"response_headers_end_time"`
	EndTime                float64   `json:"end_time"`
	Timing                 Timing    `json:"timing"`
	ConnectionID           string    `json:"connection_id,omitempty"`
	ConnectionReused       bool      `json:"connection_reused,omitempty"`
	FromDiskCache          bool      `json:"from_disk_cache,omitempty"`
	FromMemoryCache        bool      `json:"from_memory_cache,omitempty"`
	RenderBlocking         bool      `json:"render_blocking,omitempty"`
	Initiator              Initiator `json:"initiator"`
	RedirectSourceID       string    `json:"redirect_source_id,omitempty"`
	FrameID                string    `json:"frame_id,omitempty"`
	Failed                 bool      `json:"failed,omitempty"`

	// Populated by Normalize.
	RedirectSource      *Record `json:"-"`
	RedirectDestination *Record `json:"-"`
	origin              string
	scheme              string
}

// Origin returns scheme://host[:port] of the request URL, computed during normalization
func (r *Record) Origin() string {
	if r.origin == "" {
		origin, _ := parseOrigin(r.URL)
		return origin
	}
	return r.origin
}

// Scheme returns the URL scheme in lower case
func (r *Record) Scheme() string {
	if r.scheme == "" {
		_, scheme := parseOrigin(r.URL)
		return scheme
	}
	return r.scheme
}

// IsSecure reports whether the connection needs a TLS handshake
func (r *Record) IsSecure() bool {
	s := r.Scheme()
	return s == "https" || s == "wss"
}

// IsNonNetworkProtocol reports whether the request never touches the network
func (r *Record) IsNonNetworkProtocol() bool {
	switch r.Scheme() {
	case "data", "blob", "about", "chrome", "chrome-extension", "file", "filesystem":
		return true
	}
	return false
}

// IsMultiplexed reports whether the protocol shares one connection across requests
func (r *Record) IsMultiplexed() bool {
	switch strings.ToLower(r.Protocol) {
	case "h2", "http/2", "http/2.0", "h3", "http/3", "quic", "h3-29":
		return true
	}
	return false
}

// IsCached reports whether the response came from a browser cache
func (r *Record) IsCached() bool {
	return r.FromDiskCache || r.FromMemoryCache
}

// Duration is the observed wall time of the request
func (r *Record) Duration() float64 {
	if r.EndTime < r.StartTime {
		return 0
	}
	return r.EndTime - r.StartTime
}

// IsDocument reports whether the record is a navigation document
func (r *Record) IsDocument() bool {
	return r.ResourceType == ResourceDocument
}

func parseOrigin(raw string) (origin, scheme string) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "", ""
	}
	scheme = strings.ToLower(u.Scheme)
	if u.Host == "" {
		return scheme + ":", scheme
	}
	return scheme + "://" + strings.ToLower(u.Host), scheme
}

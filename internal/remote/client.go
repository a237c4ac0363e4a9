// Package remote implements drive.Server over the Nayan REST API and a
// GraphHopper-compatible map-matching endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"nayancam/internal/drive"
)

const (
	segmentsPath   = "/api/segments"
	videosPath     = "/api/driver/videos"
	verifySyncPath = "/api/driver/videos/verify_videos_sync"
	matchPath      = "/match"
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
}

// Options configures a Client.
type Options struct {
	BaseURL string

	// RouteURL is the map-matching host. Empty means BaseURL.
	RouteURL string

	// Token is sent as a bearer token to BaseURL only.
	Token string

	// RequestsPerSecond paces all outgoing requests. Zero disables pacing.
	RequestsPerSecond float64

	Timeout time.Duration

	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client talks to the Nayan API.
type Client struct {
	base    *url.URL
	route   *url.URL
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

var _ drive.Server = (*Client)(nil)

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute: %q", opts.BaseURL)
	}

	routeRaw := opts.RouteURL
	if routeRaw == "" {
		routeRaw = base.String()
	}
	route, err := url.Parse(strings.TrimRight(routeRaw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing route URL: %w", err)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{
		base:    base,
		route:   route,
		token:   opts.Token,
		http:    hc,
		limiter: limiter,
	}, nil
}

// FetchRoute map-matches a GPX track.
func (c *Client) FetchRoute(ctx context.Context, gpx []byte) (*drive.RouteResponse, error) {
	u := c.route.JoinPath(matchPath)
	q := u.Query()
	q.Set("type", "json")
	q.Set("points_encoded", "false")
	if q.Get("profile") == "" {
		q.Set("profile", "car")
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(gpx))
	if err != nil {
		return nil, fmt.Errorf("building route request: %w", err)
	}
	req.Header.Set("Content-Type", "application/gpx+xml")

	var route drive.RouteResponse
	if err := c.do(req, &route); err != nil {
		var se *StatusError
		if errors.As(err, &se) && route.Hints != nil && route.Hints.Message != "" {
			se.Message = route.Hints.Message
		}
		return nil, err
	}
	return &route, nil
}

type segmentJSON struct {
	Coordinates string `json:"coordinates"`
	Count       int64  `json:"count"`
	Timestamp   int64  `json:"timestamp"`
}

type driverJSON struct {
	Location string `json:"location"`
	Color    string `json:"color"`
}

type segmentsRequest struct {
	PathList []segmentJSON `json:"path_list"`
	Drivers  []driverJSON  `json:"drivers"`
}

// PostSegments uploads segment weights.
func (c *Client) PostSegments(ctx context.Context, segments []drive.Segment) (bool, error) {
	body := segmentsRequest{
		PathList: make([]segmentJSON, 0, len(segments)),
		Drivers:  []driverJSON{},
	}
	for _, s := range segments {
		body.PathList = append(body.PathList, segmentJSON{
			Coordinates: s.Coordinates,
			Count:       s.Count,
			Timestamp:   s.LastUpdated,
		})
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost, segmentsPath, body)
	if err != nil {
		return false, err
	}
	var resp struct {
		Success bool `json:"success"`
	}
	if err := c.do(req, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

// CheckVideoFiles asks the server which uploads it has persisted.
func (c *Client) CheckVideoFiles(ctx context.Context, names []string) (*drive.VideoFilesStatus, error) {
	if names == nil {
		names = []string{}
	}
	req, err := c.newJSONRequest(ctx, http.MethodPut, verifySyncPath, struct {
		VideoFiles []string `json:"video_files"`
	}{names})
	if err != nil {
		return nil, err
	}
	var status drive.VideoFilesStatus
	if err := c.do(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// UploadVideo streams one recording as multipart form data.
// A 409 answer is reported as drive.ErrDuplicateVideo.
func (c *Client) UploadVideo(ctx context.Context, upload *drive.VideoUpload) (*drive.VideoUploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeVideoForm(mw, upload))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath(videosPath).String(), pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	var result drive.VideoUploadResult
	err = c.do(req, &result)
	pr.Close()
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusConflict {
			return nil, fmt.Errorf("%w: %s", drive.ErrDuplicateVideo, upload.Name)
		}
		return nil, err
	}
	return &result, nil
}

func writeVideoForm(mw *multipart.Writer, upload *drive.VideoUpload) error {
	fields := [][2]string{
		{"video[latitude]", upload.Latitude},
		{"video[longitude]", upload.Longitude},
		{"video[recorded_on]", upload.RecordedOn.UTC().Format(time.RFC3339)},
		{"pending_video_count", strconv.Itoa(upload.OfflineVideoCount)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("writing %s: %w", f[0], err)
		}
	}

	part, err := mw.CreateFormFile("video[video]", upload.Name)
	if err != nil {
		return fmt.Errorf("creating file part: %w", err)
	}
	n, err := io.Copy(part, upload.Content)
	if err != nil {
		return fmt.Errorf("streaming video: %w", err)
	}
	if upload.Size > 0 && n != upload.Size {
		return fmt.Errorf("streamed %d bytes, expected %d", n, upload.Size)
	}
	return mw.Close()
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	return req, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// do sends req and decodes a JSON body into out. Error bodies are decoded into
// out as well so callers can pick up server hints.
func (c *Client) do(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Method: req.Method, URL: req.URL.Path, StatusCode: resp.StatusCode}
		if len(data) > 0 && json.Unmarshal(data, out) != nil {
			se.Message = strings.TrimSpace(string(truncate(data, 200)))
		}
		return se
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

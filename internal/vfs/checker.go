package vfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL   = "https://lift.vfsglobal.com/prod/api/v1"
	DefaultPortalURL = "https://visa.vfsglobal.com"

	loginPath        = "/user/login"
	checkSlotsPath   = "/appointment/checkslots"
	availabilityPath = "/appointment/slots/checkavailability"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

	maxBodyPreview = 300
)

type Credentials struct {
	Username string
	Password string
}

// Options describe one origin/target check.
type Options struct {
	BaseURL     string
	PortalURL   string
	Origin      string
	Target      string
	Category    string
	Subcategory string
	Credentials Credentials

	Timeout       time.Duration // whole-request timeout of the HTTP client
	DetailTimeout time.Duration // per-center date lookup

	Logger zerolog.Logger
}

// SlotRecord is one center with open appointments.
type SlotRecord struct {
	Center       string   `json:"center"`
	EarliestDate string   `json:"earliest_date"`
	Slots        []string `json:"slots"`
	BookingURL   string   `json:"booking_url"`
}

// Checker checks one target country. The bearer token it obtains embeds the
// target country, so a Checker must not be reused for another target.
type Checker struct {
	opts       Options
	httpClient *http.Client
	token      string
	log        zerolog.Logger
}

func NewChecker(opts Options) (*Checker, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PortalURL == "" {
		opts.PortalURL = DefaultPortalURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.DetailTimeout <= 0 {
		opts.DetailTimeout = 15 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	opts.Origin = strings.ToLower(opts.Origin)
	opts.Target = strings.ToLower(opts.Target)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &Checker{
		opts: opts,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: opts.Timeout,
		},
		log: opts.Logger.With().Str("origin", opts.Origin).Str("target", opts.Target).Logger(),
	}, nil
}

// PortalURL builds the public booking page for an origin/target pair.
func PortalURL(portalBase, origin, target string) string {
	return fmt.Sprintf("%s/%s/en/%s", strings.TrimRight(portalBase, "/"), strings.ToLower(origin), strings.ToLower(target))
}

func (c *Checker) PortalURL() string {
	return PortalURL(c.opts.PortalURL, c.opts.Origin, c.opts.Target)
}

func (c *Checker) setDefaultHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,vi;q=0.8")
	req.Header.Set("Referer", c.PortalURL()+"/")
	req.Header.Set("Origin", c.opts.PortalURL)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Checker) countryContext() string {
	return "vfsglobal-" + c.opts.Target
}

// Authenticate logs in and keeps the bearer token on the Checker.
func (c *Checker) Authenticate(ctx context.Context) (string, error) {
	payload := map[string]string{
		"username":   c.opts.Credentials.Username,
		"password":   c.opts.Credentials.Password,
		"grant_type": "password",
		"country":    c.countryContext(),
		"origin":     c.opts.Origin,
		"brandName":  "vfsglobal",
		"lang":       "en-US",
	}
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+loginPath, bytes.NewReader(jsonPayload))
	if err != nil {
		return "", fmt.Errorf("error creating login request: %w", err)
	}
	c.token = ""
	c.setDefaultHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}
	if status < 200 || status > 299 {
		return "", &StatusError{
			Kind:       ErrAuthentication,
			StatusCode: status,
			Hint:       "check VFS_USERNAME / VFS_PASSWORD",
		}
	}

	token, err := decodeToken(body)
	if err != nil || token == "" {
		return "", fmt.Errorf("%w. Response: %s", ErrMissingToken, preview(body))
	}

	c.token = token
	c.log.Info().Msg("Logged in to VFS Global")
	return token, nil
}

func (c *Checker) appointmentQuery(extra map[string]string) url.Values {
	q := url.Values{}
	q.Set("country", c.countryContext())
	q.Set("language", "en-US")
	q.Set("origin", c.opts.Origin)
	q.Set("category", c.opts.Category)
	q.Set("subcategory", c.opts.Subcategory)
	for k, v := range extra {
		q.Set(k, v)
	}
	return q
}

// ListCenters fetches the centers and their summarized availability.
func (c *Checker) ListCenters(ctx context.Context) ([]CenterSummary, error) {
	endpoint := c.opts.BaseURL + checkSlotsPath + "?" + c.appointmentQuery(map[string]string{"count": "1"}).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating checkslots request: %w", err)
	}
	c.setDefaultHeaders(req)

	status, body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("checkslots request: %w", err)
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{Kind: ErrUpstream, StatusCode: status}
	}

	centers, err := DecodeCenters(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	c.log.Debug().Int("centers", len(centers)).Msg("Received centers")
	return centers, nil
}

// ListAvailableDates returns up to ten open dates for a center. It never
// fails: a missing detail list still leaves the coarse availability usable.
func (c *Checker) ListAvailableDates(ctx context.Context, center string) []string {
	ctx, cancel := context.WithTimeout(ctx, c.opts.DetailTimeout)
	defer cancel()

	query := c.appointmentQuery(map[string]string{"center": center, "count": "10"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+availabilityPath+"?"+query.Encode(), nil)
	if err != nil {
		c.log.Warn().Err(err).Str("center", center).Msg("Could not build availability request")
		return nil
	}
	c.setDefaultHeaders(req)

	status, body, err := c.do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("center", center).Msg("Could not fetch available dates")
		return nil
	}
	if status != http.StatusOK {
		c.log.Warn().Int("status", status).Str("center", center).Msg("Availability endpoint returned non-OK status")
		return nil
	}

	dates, err := DecodeDates(body)
	if err != nil {
		c.log.Warn().Err(err).Str("center", center).Msg("Could not parse available dates")
		return nil
	}
	return dates
}

// CheckAvailableSlots logs in, lists the centers and resolves open dates for
// every center that reports availability. Centers without availability are
// left out of the result.
func (c *Checker) CheckAvailableSlots(ctx context.Context) ([]SlotRecord, error) {
	if _, err := c.Authenticate(ctx); err != nil {
		return nil, err
	}

	centers, err := c.ListCenters(ctx)
	if err != nil {
		return nil, err
	}

	var available []SlotRecord
	for _, center := range centers {
		if !center.HasAvailability() {
			continue
		}

		dates := c.ListAvailableDates(ctx, center.Name)
		record := SlotRecord{
			Center:       center.Name,
			EarliestDate: center.EarliestDate,
			Slots:        dates,
			BookingURL:   c.PortalURL(),
		}
		if record.EarliestDate == "" && len(dates) > 0 {
			record.EarliestDate = dates[0]
		}
		if len(record.Slots) == 0 {
			record.Slots = center.Slots
		}
		if record.Slots == nil {
			record.Slots = []string{}
		}

		c.log.Info().Str("center", record.Center).Str("earliest", record.EarliestDate).Int("dates", len(record.Slots)).Msg("Found open slots")
		available = append(available, record)
	}
	return available, nil
}

func (c *Checker) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("error reading response body (status %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, body, nil
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodyPreview {
		return s[:maxBodyPreview] + "..."
	}
	return s
}

// IsAuthError reports whether err came from a rejected login.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthentication) || errors.Is(err, ErrMissingToken)
}

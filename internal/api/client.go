package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/serhatkrkmz54/eklinik-v2/internal/observability/metrics"
	"github.com/serhatkrkmz54/eklinik-v2/pkg/logging"
)

const defaultTimeout = 20 * time.Second

// TokenSource supplies the current bearer credential for authenticated calls.
// The session manager is the only implementation in production code.
type TokenSource interface {
	Token() (string, bool)
}

// Client talks to the eKlinik patient REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	metrics    *metrics.APIMetrics
	logger     *logging.Logger

	// onAuthError fires once per call that fails with an invalid credential,
	// letting the session manager drop the session.
	onAuthError func()
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource sets the credential source for authenticated endpoints.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithAuthErrorHook registers fn to run whenever a call fails with KindAuth.
func WithAuthErrorHook(fn func()) Option {
	return func(c *Client) { c.onAuthError = fn }
}

// WithMetrics records per-endpoint call counters and latency.
func WithMetrics(m *metrics.APIMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges national id + password for a bearer token.
func (c *Client) Login(ctx context.Context, nationalID, password string) (string, error) {
	var out tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", nil, loginRequest{NationalID: nationalID, Password: password}, &out)
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &Error{Kind: KindUnknown, Message: "login returned no token"}
	}
	return out.AccessToken, nil
}

// Register creates a patient account and returns the issued bearer token.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	var out tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", nil, registerEnvelope{UserRequest: req}, &out)
	if err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// Me returns the authenticated patient's profile.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile submits profile changes and returns the updated profile.
func (c *Client) UpdateProfile(ctx context.Context, p Profile) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodPut, "/auth/update-profile", nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Clinics lists all active clinics.
func (c *Client) Clinics(ctx context.Context) ([]ClinicSummary, error) {
	var out []ClinicSummary
	if err := c.do(ctx, http.MethodGet, "/patient/clinics", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DoctorsByClinic lists the doctors working at one clinic.
func (c *Client) DoctorsByClinic(ctx context.Context, clinicID int64) ([]Doctor, error) {
	var out []Doctor
	path := fmt.Sprintf("/patient/clinics/%d/doctors", clinicID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Doctor fetches one doctor's detail record.
func (c *Client) Doctor(ctx context.Context, doctorID int64) (*Doctor, error) {
	var out Doctor
	path := fmt.Sprintf("/patient/doctors/%d", doctorID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SlotsInRange fetches a doctor's per-day slot map for [start, end].
func (c *Client) SlotsInRange(ctx context.Context, doctorID int64, start, end time.Time) (SlotMap, error) {
	query := url.Values{
		"startDate": {start.Format("2006-01-02")},
		"endDate":   {end.Format("2006-01-02")},
	}
	var out SlotMap
	path := fmt.Sprintf("/patient/doctors/%d/slots-in-range", doctorID)
	if err := c.do(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = SlotMap{}
	}
	return out, nil
}

// BookSlot submits a booking for the given slot id.
func (c *Client) BookSlot(ctx context.Context, slotID int64) (*BookingResult, error) {
	var out BookingResult
	path := fmt.Sprintf("/patient/appointments/%d", slotID)
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelAppointment cancels an appointment. The server decides the
// resulting status; callers must refetch history afterwards.
func (c *Client) CancelAppointment(ctx context.Context, appointmentID int64) error {
	path := fmt.Sprintf("/patient/appointments/%d/cancel", appointmentID)
	return c.do(ctx, http.MethodPut, path, nil, nil, nil)
}

// MyHistory returns the patient's full appointment history.
func (c *Client) MyHistory(ctx context.Context) ([]Appointment, error) {
	var out []Appointment
	if err := c.do(ctx, http.MethodGet, "/patient/appointments/my-history", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AppointmentDetails returns one appointment with its medical record.
func (c *Client) AppointmentDetails(ctx context.Context, appointmentID int64) (*AppointmentDetails, error) {
	var out AppointmentDetails
	path := fmt.Sprintf("/patient/appointments/%d/details", appointmentID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	started := time.Now()
	err := c.doOnce(ctx, method, path, query, in, out)

	status := "ok"
	if err != nil {
		status = string(KindOf(err))
	}
	c.metrics.ObserveRequest(method+" "+path, status, time.Since(started).Seconds())

	if IsAuthError(err) && c.onAuthError != nil {
		c.onAuthError()
	}
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("api: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.tokens != nil {
		if token, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}

	if resp.StatusCode >= 400 {
		return c.errorFromResponse(method, path, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindUnknown, StatusCode: resp.StatusCode, Message: "sunucu yanıtı çözümlenemedi", Err: err}
	}
	return nil
}

func (c *Client) errorFromResponse(method, path string, status int, body []byte) error {
	kind := classifyStatus(status)

	var envelope errorEnvelope
	_ = json.Unmarshal(body, &envelope)

	c.logger.Warn("api: request failed",
		"method", method,
		"path", path,
		"status", status,
		"kind", string(kind),
	)

	return &Error{
		Kind:       kind,
		StatusCode: status,
		Message:    envelope.Message,
		Fields:     envelope.Errors,
	}
}

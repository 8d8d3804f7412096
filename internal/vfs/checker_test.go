package vfs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBookingService struct {
	loginStatus  int
	loginBody    string
	centerStatus int
	centerBody   string
	datesStatus  int
	datesBody    map[string]string // center -> body
	datesDelay   time.Duration

	loginPayload map[string]string
	authHeaders  []string
	dateRequests []string
}

func (f *fakeBookingService) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/user/login", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_ = json.NewDecoder(r.Body).Decode(&f.loginPayload)
		w.WriteHeader(orDefault(f.loginStatus))
		_, _ = w.Write([]byte(f.loginBody))
	})
	mux.HandleFunc("/appointment/checkslots", func(w http.ResponseWriter, r *http.Request) {
		f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
		assert.Equal(t, "vfsglobal-fra", r.URL.Query().Get("country"))
		assert.Equal(t, "Tourist", r.URL.Query().Get("category"))
		w.WriteHeader(orDefault(f.centerStatus))
		_, _ = w.Write([]byte(f.centerBody))
	})
	mux.HandleFunc("/appointment/slots/checkavailability", func(w http.ResponseWriter, r *http.Request) {
		center := r.URL.Query().Get("center")
		f.dateRequests = append(f.dateRequests, center)
		assert.Equal(t, "10", r.URL.Query().Get("count"))
		if f.datesDelay > 0 {
			time.Sleep(f.datesDelay)
		}
		body, ok := f.datesBody[center]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(orDefault(f.datesStatus))
		_, _ = w.Write([]byte(body))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func orDefault(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}

func newTestChecker(t *testing.T, baseURL string) *Checker {
	t.Helper()
	c, err := NewChecker(Options{
		BaseURL:       baseURL,
		PortalURL:     "https://visa.example.com",
		Origin:        "VNM",
		Target:        "FRA",
		Category:      "Tourist",
		Subcategory:   "Tourist Visa",
		Credentials:   Credentials{Username: "user", Password: "pass"},
		Timeout:       2 * time.Second,
		DetailTimeout: 200 * time.Millisecond,
		Logger:        zerolog.Nop(),
	})
	require.NoError(t, err)
	return c
}

func TestAuthenticate(t *testing.T) {
	t.Run("sends credentials with target context", func(t *testing.T) {
		fake := &fakeBookingService{loginBody: `{"token":"tok-1"}`}
		c := newTestChecker(t, fake.server(t).URL)

		token, err := c.Authenticate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token)
		assert.Equal(t, "user", fake.loginPayload["username"])
		assert.Equal(t, "password", fake.loginPayload["grant_type"])
		assert.Equal(t, "vfsglobal-fra", fake.loginPayload["country"])
		assert.Equal(t, "vnm", fake.loginPayload["origin"])
	})

	t.Run("non-success status is an authentication error", func(t *testing.T) {
		fake := &fakeBookingService{loginStatus: http.StatusUnauthorized, loginBody: `{"error":"bad"}`}
		c := newTestChecker(t, fake.server(t).URL)

		_, err := c.Authenticate(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAuthentication))
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
		assert.Contains(t, err.Error(), "VFS_USERNAME")
		assert.True(t, IsAuthError(err))
	})

	t.Run("missing token includes raw response", func(t *testing.T) {
		fake := &fakeBookingService{loginBody: `{"message":"captcha required"}`}
		c := newTestChecker(t, fake.server(t).URL)

		_, err := c.Authenticate(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingToken))
		assert.Contains(t, err.Error(), "captcha required")
	})
}

func TestListCenters_UpstreamError(t *testing.T) {
	fake := &fakeBookingService{loginBody: `{"token":"tok"}`, centerStatus: http.StatusTooManyRequests}
	c := newTestChecker(t, fake.server(t).URL)
	_, err := c.Authenticate(context.Background())
	require.NoError(t, err)

	_, err = c.ListCenters(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.Contains(t, err.Error(), "429")
}

func TestListAvailableDates_DegradesToEmpty(t *testing.T) {
	fake := &fakeBookingService{
		loginBody: `{"token":"tok"}`,
		datesBody: map[string]string{"Broken": `<html>`, "Slow": `["2025-06-01"]`},
	}
	fake.datesDelay = 0
	c := newTestChecker(t, fake.server(t).URL)

	assert.Empty(t, c.ListAvailableDates(context.Background(), "Broken"))
	assert.Empty(t, c.ListAvailableDates(context.Background(), "Missing"))

	fake.datesDelay = 500 * time.Millisecond
	assert.Empty(t, c.ListAvailableDates(context.Background(), "Slow"))
}

func TestCheckAvailableSlots(t *testing.T) {
	t.Run("earliest date without detail data", func(t *testing.T) {
		fake := &fakeBookingService{
			loginBody:  `{"token":"tok-2"}`,
			centerBody: `[{"centerName":"Hanoi","earliestDate":"2025-06-01"}]`,
		}
		c := newTestChecker(t, fake.server(t).URL)

		slots, err := c.CheckAvailableSlots(context.Background())
		require.NoError(t, err)
		require.Len(t, slots, 1)
		assert.Equal(t, SlotRecord{
			Center:       "Hanoi",
			EarliestDate: "2025-06-01",
			Slots:        []string{},
			BookingURL:   "https://visa.example.com/vnm/en/fra",
		}, slots[0])
		assert.Equal(t, []string{"Bearer tok-2"}, fake.authHeaders)
	})

	t.Run("detail dates take precedence and centers without availability are omitted", func(t *testing.T) {
		fake := &fakeBookingService{
			loginBody: `{"access_token":"tok"}`,
			centerBody: `[
				{"centerName":"Hanoi","slots":["2025-08-01"]},
				{"name":"Da Nang","slots":[],"earliestDate":""},
				{"locationName":"HCMC","availableSlots":["2025-09-09"]}
			]`,
			datesBody: map[string]string{
				"Hanoi": `{"dates":["2025-06-01","2025-06-02"]}`,
			},
		}
		c := newTestChecker(t, fake.server(t).URL)

		slots, err := c.CheckAvailableSlots(context.Background())
		require.NoError(t, err)
		require.Len(t, slots, 2)

		assert.Equal(t, "Hanoi", slots[0].Center)
		assert.Equal(t, "2025-06-01", slots[0].EarliestDate)
		assert.Equal(t, []string{"2025-06-01", "2025-06-02"}, slots[0].Slots)

		assert.Equal(t, "HCMC", slots[1].Center)
		assert.Equal(t, "", slots[1].EarliestDate)
		assert.Equal(t, []string{"2025-09-09"}, slots[1].Slots)

		assert.Equal(t, []string{"Hanoi", "HCMC"}, fake.dateRequests)
	})

	t.Run("no availability yields no records", func(t *testing.T) {
		fake := &fakeBookingService{
			loginBody:  `{"token":"tok"}`,
			centerBody: `{"centerName":"Hanoi","slots":[]}`,
		}
		c := newTestChecker(t, fake.server(t).URL)

		slots, err := c.CheckAvailableSlots(context.Background())
		require.NoError(t, err)
		assert.Empty(t, slots)
		assert.Empty(t, fake.dateRequests)
	})

	t.Run("slot entries without text still count", func(t *testing.T) {
		fake := &fakeBookingService{
			loginBody:  `{"token":"tok"}`,
			centerBody: `[{"centerName":"Hanoi","slots":[{}]},{"centerName":"Hue","slots":[null]}]`,
		}
		c := newTestChecker(t, fake.server(t).URL)

		slots, err := c.CheckAvailableSlots(context.Background())
		require.NoError(t, err)
		require.Len(t, slots, 2)
		assert.Equal(t, "Hanoi", slots[0].Center)
		assert.Equal(t, []string{"{}"}, slots[0].Slots)
		assert.Equal(t, "Hue", slots[1].Center)
		assert.Equal(t, []string{"true"}, slots[1].Slots)
		assert.Equal(t, []string{"Hanoi", "Hue"}, fake.dateRequests)
	})

	t.Run("null center payload means no slots", func(t *testing.T) {
		fake := &fakeBookingService{
			loginBody:  `{"token":"tok"}`,
			centerBody: `null`,
		}
		c := newTestChecker(t, fake.server(t).URL)

		slots, err := c.CheckAvailableSlots(context.Background())
		require.NoError(t, err)
		assert.Empty(t, slots)
	})

	t.Run("login failure stops before querying centers", func(t *testing.T) {
		fake := &fakeBookingService{loginStatus: http.StatusForbidden}
		c := newTestChecker(t, fake.server(t).URL)

		slots, err := c.CheckAvailableSlots(context.Background())
		require.Error(t, err)
		assert.Nil(t, slots)
		assert.Empty(t, fake.authHeaders)
	})
}

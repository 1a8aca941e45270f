package fireeye

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samvad-hq/tinyclients/pkg/httpclient"
	"github.com/samvad-hq/tinyclients/pkg/rest"
	"github.com/samvad-hq/tinyclients/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAppliance emulates the login and token check of a FireEye appliance.
type fakeAppliance struct {
	t          *testing.T
	token      string
	logins     atomic.Int32
	rejectAll  bool
	noToken    bool
	badLogin   bool
	handler    http.HandlerFunc
	lastHeader http.Header
	loginDelay time.Duration
}

func (f *fakeAppliance) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == APIPath+EndpointAuthLogin {
		f.logins.Add(1)
		time.Sleep(f.loginDelay)
		user, pass, ok := r.BasicAuth()
		if f.badLogin || !ok || user != "analyst" || pass != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !f.noToken {
			w.Header().Set(HeaderAPIToken, f.token)
		}
		w.WriteHeader(http.StatusOK)
		return
	}
	f.lastHeader = r.Header.Clone()
	if f.rejectAll || r.Header.Get(HeaderAPIToken) != f.token {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.Copy(io.Discard, r.Body)
		return
	}
	f.handler(w, r)
}

func newFixture(t *testing.T, handler http.HandlerFunc) (*fakeAppliance, *Client) {
	t.Helper()
	fake := &fakeAppliance{t: t, token: "tok-123", handler: handler}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := New(Config{BaseURL: srv.URL, Username: "analyst", Secret: "s3cret"}, httpclient.NewRestyClient(5*time.Second), nil)
	require.NoError(t, err)
	return fake, client
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestConfigLogsInWhenNoTokenCached(t *testing.T) {
	fake, client := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/wsapis/v2.0.0/config" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, map[string]any{"sensors": []any{"ax-01"}})
	})
	store := session.NewMemoryStore()

	res, err := client.Config(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sensors": []any{"ax-01"}}, res.Value)
	assert.EqualValues(t, 1, fake.logins.Load())

	tok, found, _ := store.Token(ServiceName)
	assert.True(t, found)
	assert.Equal(t, "tok-123", tok)

	// The cached token is reused without another login.
	_, err = client.Config(context.Background(), store)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fake.logins.Load())
}

func TestStaleTokenIsReplaced(t *testing.T) {
	fake, client := newFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"submissionStatus": "Done"})
	})
	store := session.NewMemoryStore()
	_ = store.SetToken(ServiceName, "expired")

	res, err := client.Status(context.Background(), store, "77")
	require.NoError(t, err)
	assert.Equal(t, "Done", res.Map()["submissionStatus"])
	assert.EqualValues(t, 1, fake.logins.Load())
	tok, _, _ := store.Token(ServiceName)
	assert.Equal(t, "tok-123", tok)
}

func TestSecondRejectionRaisesAuthError(t *testing.T) {
	fake, client := newFixture(t, nil)
	fake.rejectAll = true

	_, err := client.Results(context.Background(), session.NewMemoryStore(), "77")
	require.ErrorIs(t, err, rest.ErrUnauthorized)
	var authErr *rest.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.EqualValues(t, 1, fake.logins.Load())
}

func TestLoginFailures(t *testing.T) {
	t.Run("non-ok response", func(t *testing.T) {
		fake, client := newFixture(t, nil)
		fake.badLogin = true

		_, err := client.AuthToken(context.Background())
		var authErr *rest.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	})
	t.Run("missing token header", func(t *testing.T) {
		fake, client := newFixture(t, nil)
		fake.noToken = true

		_, err := client.Config(context.Background(), session.NewMemoryStore())
		require.ErrorIs(t, err, rest.ErrUnauthorized)
		assert.Contains(t, err.Error(), "no api token")
		assert.EqualValues(t, 1, fake.logins.Load())
	})
}

func TestInjectedTokenOverridesCallerHeader(t *testing.T) {
	fake, client := newFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{})
	})

	_, err := client.Config(context.Background(), session.NewMemoryStore(),
		rest.WithHeader(HeaderAPIToken, "bogus"),
		rest.WithHeader("X-Trace", "abc"),
	)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", fake.lastHeader.Get(HeaderAPIToken))
	assert.Equal(t, "abc", fake.lastHeader.Get("X-Trace"))
}

func TestSubmitRewindsConsumedStreams(t *testing.T) {
	sample := []byte("MZ-this-is-a-sample-executable")
	var received []byte
	var options string
	fake, client := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		options = r.FormValue("options")
		f, _, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		received, _ = io.ReadAll(f)
		writeJSON(w, []any{map[string]any{"ID": "991"}})
	})

	reader := bytes.NewReader(sample)
	_, err := reader.Seek(10, io.SeekStart)
	require.NoError(t, err)

	res, err := client.Submit(context.Background(), session.NewMemoryStore(),
		map[string]any{"application": "0", "timeout": "500"},
		[]File{{Name: "sample.exe", Reader: reader}},
	)
	require.NoError(t, err)
	assert.Equal(t, sample, received)
	assert.JSONEq(t, `{"application":"0","timeout":"500"}`, options)
	assert.EqualValues(t, 1, fake.logins.Load())
	assert.Equal(t, []any{map[string]any{"ID": "991"}}, res.Value)
}

func TestRewindResetsNonZeroPosition(t *testing.T) {
	reader := bytes.NewReader(make([]byte, 32))
	_, _ = reader.Seek(10, io.SeekStart)

	require.NoError(t, rewind([]File{{Name: "a", Reader: reader}, {Name: "b", Reader: io.MultiReader()}}))
	pos, _ := reader.Seek(0, io.SeekCurrent)
	assert.Zero(t, pos)
}

func TestSubmitURLSendsJSON(t *testing.T) {
	_, client := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wsapis/v2.0.0/submissions/url", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []any{"http://example.com"}, body["urls"])
		writeJSON(w, map[string]any{"ID": "12"})
	})

	res, err := client.SubmitURL(context.Background(), session.NewMemoryStore(), map[string]any{"urls": []string{"http://example.com"}})
	require.NoError(t, err)
	assert.Equal(t, "12", res.Map()["ID"])
}

func TestNonAuthErrorsAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	fake, client := newFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "missing", http.StatusNotFound)
	})
	store := session.NewMemoryStore()
	_ = store.SetToken(ServiceName, fake.token)

	_, err := client.Results(context.Background(), store, "404")
	assert.Equal(t, http.StatusNotFound, rest.StatusCode(err))
	assert.False(t, errors.Is(err, rest.ErrUnauthorized))
	assert.EqualValues(t, 1, hits.Load())
	assert.Zero(t, fake.logins.Load())
}

func TestLogoutClearsToken(t *testing.T) {
	var loggedOut bool
	fake, client := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		loggedOut = r.URL.Path == APIPath+EndpointAuthLogout
		w.WriteHeader(http.StatusNoContent)
	})
	store := session.NewMemoryStore()
	_ = store.SetToken(ServiceName, fake.token)

	require.NoError(t, client.Logout(context.Background(), store))
	assert.True(t, loggedOut)
	_, found, _ := store.Token(ServiceName)
	assert.False(t, found)
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{BaseURL: "https://ax.example"}, httpclient.NewRestyClient(time.Second), nil)
	require.ErrorIs(t, err, rest.ErrMissingConfig)
	assert.Contains(t, err.Error(), "username")
	assert.Contains(t, err.Error(), "api secret")
}

func TestSlowLoginOutlastsTransportDefaultTimeout(t *testing.T) {
	fake := &fakeAppliance{t: t, token: "tok-123", loginDelay: 400 * time.Millisecond}
	fake.handler = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"sensors": []any{"ax-01"}})
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := New(Config{BaseURL: srv.URL, Username: "analyst", Secret: "s3cret"}, httpclient.NewRestyClient(200*time.Millisecond), nil)
	require.NoError(t, err)

	res, err := client.Config(context.Background(), session.NewMemoryStore())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sensors": []any{"ax-01"}}, res.Value)
	assert.Equal(t, int32(1), fake.logins.Load())
}

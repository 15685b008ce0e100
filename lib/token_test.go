package lib

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestPasswordGrantRequest(t *testing.T) {
	idToken := testIDToken(t, jwt.MapClaims{"oid": "obj1", "tid": "tenant123"})
	calls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tenant123/oauth2/v2.0/token", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get(ClientRequestIDHeader))

		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "abc", r.PostForm.Get("client_id"))
		assert.Equal(t, "s3cret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "openid profile User.Read Mail.Read", r.PostForm.Get("scope"))
		assert.Equal(t, "u@x.com", r.PostForm.Get("username"))
		assert.Equal(t, "p", r.PostForm.Get("password"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"token_type":"Bearer","id_token":%q,"access_token":"AT1","expires_in":3600,"ext_expires_in":7200}`, idToken)
	}))
	defer srv.Close()

	client, err := NewHTTPClient(nil)
	require.NoError(t, err)

	settings := testSettings()
	settings.Authority = srv.URL + "/tenant123"
	settings.ClientSecret = "s3cret"

	tr, err := NewPasswordGrant(client).AcquireToken(context.Background(), settings)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, &TokenResponse{
		IDToken:      idToken,
		AccessToken:  "AT1",
		ExpiresIn:    3600,
		ExtExpiresIn: 7200,
	}, tr)
}

func TestPasswordGrantStringDurations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"AT1","expires_in":"3599","ext_expires_in":"3599"}`)
	}))
	defer srv.Close()

	settings := testSettings()
	settings.Authority = srv.URL + "/"

	tr, err := NewPasswordGrant(srv.Client()).AcquireToken(context.Background(), settings)
	require.NoError(t, err)
	assert.Equal(t, int64(3599), tr.ExpiresIn)
	assert.Equal(t, int64(3599), tr.ExtExpiresIn)
	assert.Empty(t, tr.IDToken)
}

func TestPasswordGrantErrorStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"AADSTS50126: Error validating credentials"}`)
	}))
	defer srv.Close()

	settings := testSettings()
	settings.Authority = srv.URL

	_, err := NewPasswordGrant(srv.Client()).AcquireToken(context.Background(), settings)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "no retries")

	var retrieveErr *oauth2.RetrieveError
	require.True(t, errors.As(err, &retrieveErr))
	assert.Equal(t, http.StatusBadRequest, retrieveErr.Response.StatusCode)
}

func TestPasswordGrantMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":`)
	}))
	defer srv.Close()

	settings := testSettings()
	settings.Authority = srv.URL

	_, err := NewPasswordGrant(srv.Client()).AcquireToken(context.Background(), settings)
	assert.Error(t, err)
}

func TestSeconds(t *testing.T) {
	for _, tc := range []struct {
		in   interface{}
		want int64
	}{
		{nil, 0}, {float64(3600), 3600}, {"7200", 7200}, {"", 0}, {int64(5), 5},
	} {
		got, err := seconds(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := seconds(true)
	assert.Error(t, err)
	_, err = seconds("soon")
	assert.Error(t, err)
}

func TestPasswordGrantOmitsEmptySecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		_, sent := r.PostForm["client_secret"]
		assert.False(t, sent, "public clients send no client_secret")
		assert.Equal(t, "abc", r.PostForm.Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"AT1","expires_in":3600}`)
	}))
	defer srv.Close()

	settings := testSettings()
	settings.Authority = srv.URL

	_, err := NewPasswordGrant(srv.Client()).AcquireToken(context.Background(), settings)
	require.NoError(t, err)
}

func TestPasswordGrantMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"token_type":"Bearer","id_token":"x.y.z","expires_in":3600}`)
	}))
	defer srv.Close()

	settings := testSettings()
	settings.Authority = srv.URL

	tr, err := NewPasswordGrant(srv.Client()).AcquireToken(context.Background(), settings)
	assert.Error(t, err)
	assert.Nil(t, tr)
}

// msalAuthority answers the requests MSAL makes for a username/password
// login against login.microsoftonline.com/tenant123.
func msalAuthority(t *testing.T, idToken string, form *map[string][]string) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Host != "login.microsoftonline.com" {
			return jsonResponse(req, http.StatusNotFound, `{}`), nil
		}
		switch {
		case req.URL.Path == "/tenant123/v2.0/.well-known/openid-configuration":
			return jsonResponse(req, http.StatusOK, `{
				"authorization_endpoint":"https://login.microsoftonline.com/tenant123/oauth2/v2.0/authorize",
				"token_endpoint":"https://login.microsoftonline.com/tenant123/oauth2/v2.0/token",
				"issuer":"https://login.microsoftonline.com/tenant123/v2.0"}`), nil
		case req.URL.Path == "/common/discovery/instance":
			return jsonResponse(req, http.StatusOK, `{
				"tenant_discovery_endpoint":"https://login.microsoftonline.com/tenant123/v2.0/.well-known/openid-configuration",
				"metadata":[{"preferred_network":"login.microsoftonline.com","preferred_cache":"login.windows.net",
				"aliases":["login.microsoftonline.com","login.windows.net"]}]}`), nil
		case strings.HasPrefix(strings.ToLower(req.URL.Path), "/common/userrealm/"):
			return jsonResponse(req, http.StatusOK, `{"account_type":"Managed","domain_name":"x.com",
				"cloud_instance_name":"microsoftonline.com","cloud_audience_urn":"urn:federation:MicrosoftOnline"}`), nil
		case req.URL.Path == "/tenant123/oauth2/v2.0/token":
			assert.Equal(t, http.MethodPost, req.Method)
			assert.NoError(t, req.ParseForm())
			*form = req.PostForm
			return jsonResponse(req, http.StatusOK, fmt.Sprintf(`{"token_type":"Bearer","access_token":"AT1",
				"id_token":%q,"expires_in":3600,"ext_expires_in":7200,
				"client_info":"eyJ1aWQiOiJvYmoxIiwidXRpZCI6InRlbmFudDEyMyJ9"}`, idToken)), nil
		}
		return jsonResponse(req, http.StatusNotFound, `{}`), nil
	})
}

func TestMSALPublicGrant(t *testing.T) {
	idToken := testIDToken(t, jwt.MapClaims{"oid": "obj1", "tid": "tenant123", "preferred_username": "u@x.com"})
	var form map[string][]string

	client, err := NewHTTPClient(msalAuthority(t, idToken, &form))
	require.NoError(t, err)

	grant := &MSALPublicGrant{
		HTTPClient: client,
		// ten minutes behind the clock MSAL stamps expires_on with
		Now: func() time.Time { return time.Now().Add(-10 * time.Minute) },
	}

	tr, err := grant.AcquireToken(context.Background(), testSettings())
	require.NoError(t, err)

	assert.Equal(t, idToken, tr.IDToken)
	assert.Equal(t, "AT1", tr.AccessToken)
	assert.InDelta(t, 4200, tr.ExpiresIn, 5)
	assert.Equal(t, tr.ExpiresIn, tr.ExtExpiresIn)

	require.NotNil(t, form)
	assert.Equal(t, []string{"password"}, form["grant_type"])
	assert.Equal(t, []string{"u@x.com"}, form["username"])
	assert.Equal(t, []string{"p"}, form["password"])
	assert.Equal(t, []string{"abc"}, form["client_id"])
	assert.NotContains(t, form, "client_secret")
}

func TestMSALPublicGrantExpiredClampsToZero(t *testing.T) {
	idToken := testIDToken(t, jwt.MapClaims{"oid": "obj1", "tid": "tenant123"})
	var form map[string][]string

	client, err := NewHTTPClient(msalAuthority(t, idToken, &form))
	require.NoError(t, err)

	grant := &MSALPublicGrant{
		HTTPClient: client,
		Now:        func() time.Time { return time.Now().Add(2 * time.Hour) },
	}

	tr, err := grant.AcquireToken(context.Background(), testSettings())
	require.NoError(t, err)
	assert.Equal(t, int64(0), tr.ExpiresIn)
	assert.Equal(t, int64(0), tr.ExtExpiresIn)
}

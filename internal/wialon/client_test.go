package wialon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-telemetry-reporter/internal/config"
	"fleet-telemetry-reporter/internal/logger"
	apperrors "fleet-telemetry-reporter/pkg/errors"
)

func TestMain(m *testing.M) {
	if err := logger.Init("production"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// apiCall is one decoded form POST to the fake endpoint.
type apiCall struct {
	svc    string
	params string
	sid    string
}

func newFakeAPI(t *testing.T, handler func(call apiCall) string) (*httptest.Server, *[]apiCall) {
	t.Helper()
	var calls []apiCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/wialon/ajax.html", r.URL.Path)
		require.NoError(t, r.ParseForm())
		call := apiCall{
			svc:    r.PostFormValue("svc"),
			params: r.PostFormValue("params"),
			sid:    r.PostFormValue("sid"),
		}
		calls = append(calls, call)
		fmt.Fprint(w, handler(call))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testClient(srv *httptest.Server) *Client {
	return NewClient(&config.Wialon{
		BaseURL:          srv.URL,
		Token:            "test-token",
		MaxRetries:       3,
		RateRPS:          1000,
		RateBurst:        1000,
		MessageLoadCount: 10000,
	})
}

func TestClientLogin(t *testing.T) {
	srv, calls := newFakeAPI(t, func(call apiCall) string {
		return `{"eid":"session-1","au":"tester"}`
	})
	c := testClient(srv)

	require.NoError(t, c.Login(context.Background()))

	require.Len(t, *calls, 1)
	assert.Equal(t, "token/login", (*calls)[0].svc)
	assert.JSONEq(t, `{"token":"test-token"}`, (*calls)[0].params)
	assert.Empty(t, (*calls)[0].sid)
}

func TestClientLoginRejected(t *testing.T) {
	srv, _ := newFakeAPI(t, func(call apiCall) string {
		return `{"error":8,"reason":"invalid token"}`
	})
	c := testClient(srv)

	err := c.Login(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrLoginFailed)
}

func TestClientRequestRequiresLogin(t *testing.T) {
	srv, _ := newFakeAPI(t, func(call apiCall) string { return `{}` })
	c := testClient(srv)

	_, err := c.Request(context.Background(), "core/search_items", map[string]int{"from": 0})
	assert.ErrorIs(t, err, apperrors.ErrNotLoggedIn)
}

func TestClientSessionRenewal(t *testing.T) {
	logins := 0
	srv, calls := newFakeAPI(t, func(call apiCall) string {
		switch call.svc {
		case "token/login":
			logins++
			return fmt.Sprintf(`{"eid":"session-%d","au":"tester"}`, logins)
		default:
			if call.sid == "session-1" {
				return `{"error":1}`
			}
			return `{"items":[],"totalItemsCount":0}`
		}
	})
	c := testClient(srv)

	ctx := context.Background()
	require.NoError(t, c.Login(ctx))

	units, err := c.Units(ctx)
	require.NoError(t, err)
	assert.Empty(t, units)
	assert.Equal(t, 2, logins)

	// login, rejected search, re-login, successful search
	require.Len(t, *calls, 4)
	assert.Equal(t, "session-2", (*calls)[3].sid)
}

func TestClientNonRetryableAPIError(t *testing.T) {
	srv, calls := newFakeAPI(t, func(call apiCall) string {
		if call.svc == "token/login" {
			return `{"eid":"session-1"}`
		}
		return `{"error":7,"reason":"access denied"}`
	})
	c := testClient(srv)

	ctx := context.Background()
	require.NoError(t, c.Login(ctx))

	_, err := c.Units(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	// One login plus exactly one rejected request: no retries on a
	// genuine API rejection.
	assert.Len(t, *calls, 2)
}

func TestClientUnitsDecoding(t *testing.T) {
	srv, _ := newFakeAPI(t, func(call apiCall) string {
		if call.svc == "token/login" {
			return `{"eid":"session-1"}`
		}
		return `{"items":[
			{"id":101,"nm":"Tanker 01","hw":"Teltonika FMB920","uid":"86000001",
			 "sens":{"1":{"n":"Fuel Sensor","p":"fuel_lvl"}}},
			{"id":102,"nm":"Tanker 02","hw":"Ruptela FM-Eco4"}
		]}`
	})
	c := testClient(srv)

	ctx := context.Background()
	require.NoError(t, c.Login(ctx))

	units, err := c.Units(ctx)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, int64(101), units[0].ID)
	assert.Equal(t, "Tanker 01", units[0].Name)
	assert.Equal(t, "Fuel Sensor", units[0].Sensors["1"].Name)
	assert.Empty(t, units[1].Sensors)
}

func TestClientMessagesDecoding(t *testing.T) {
	srv, calls := newFakeAPI(t, func(call apiCall) string {
		if call.svc == "token/login" {
			return `{"eid":"session-1"}`
		}
		return `{"count":2,"messages":[
			{"t":1735689600,"pos":{"y":13.75,"x":100.5,"s":62,"sc":11},
			 "p":{"pwr_ext":12800,"fuel_lvl":55}},
			{"t":1735689605,"p":{"ign":1}}
		]}`
	})
	c := testClient(srv)

	ctx := context.Background()
	require.NoError(t, c.Login(ctx))

	from := time.Unix(1735689600, 0)
	to := from.Add(time.Hour)
	msgs, err := c.Messages(ctx, 101, from, to)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	require.NotNil(t, msgs[0].Pos)
	assert.Equal(t, 13.75, msgs[0].Pos.Latitude)
	assert.Equal(t, 62.0, msgs[0].Pos.Speed)
	assert.Equal(t, 11, msgs[0].Pos.Satellites)
	assert.Nil(t, msgs[1].Pos)

	var params map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte((*calls)[1].params), &params))
	assert.Equal(t, float64(101), params["itemId"])
	assert.Equal(t, float64(from.Unix()), params["timeFrom"])
	assert.Equal(t, float64(10000), params["loadCount"])
}

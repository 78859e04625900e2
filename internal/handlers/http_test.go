package handlers

import (
	"net/http"
	"testing"

	"github.com/leaftrace/anomalyd/internal/testhelpers"
)

func TestHealth(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	mux := http.NewServeMux()
	NewHTTPHandler(db, nil).SetupRoutes(mux)

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/health", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		AssertBodyContains(`"status":"ok"`).
		AssertBodyContains(`"database":"ok"`)
}

func TestHealth_DatabaseDown(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.Close()

	mux := http.NewServeMux()
	NewHTTPHandler(db, nil).SetupRoutes(mux)

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/health", nil).
		Execute(mux).
		AssertStatus(http.StatusServiceUnavailable).
		AssertBodyContains(`"database":"unreachable"`)
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	mux := http.NewServeMux()
	NewHTTPHandler(nil, nil).SetupRoutes(mux)

	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/health", nil).
		Execute(mux).
		AssertStatus(http.StatusMethodNotAllowed)
}

type fakeFeed struct {
	called  bool
	clients int
}

func (f *fakeFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.called = true
	w.WriteHeader(http.StatusSwitchingProtocols)
}

func (f *fakeFeed) ClientCount() int { return f.clients }

func TestFeedRouteRegistered(t *testing.T) {
	feed := &fakeFeed{}
	mux := http.NewServeMux()
	NewHTTPHandler(nil, feed).SetupRoutes(mux)

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/ws/anomalies", nil).Execute(mux)
	if !feed.called {
		t.Error("expected websocket feed handler to be invoked")
	}
}

func TestHealth_ReportsLiveClients(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	mux := http.NewServeMux()
	NewHTTPHandler(db, &fakeFeed{clients: 3}).SetupRoutes(mux)

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/health", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		AssertBodyContains(`"live_clients":3`)
}

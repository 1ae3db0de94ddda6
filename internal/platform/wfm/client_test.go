package wfm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/davrix/relicflip/internal/domain"
)

func testClient(t *testing.T, baseURL string, maxAttempts int) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:        baseURL,
		UserAgent:      "relicflip-test",
		RequestTimeout: 5 * time.Second,
		MaxAttempts:    maxAttempts,
		BackoffBase:    time.Millisecond,
		BackoffCap:     5 * time.Millisecond,
	}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const ordersBody = `{"payload":{"orders":[
	{"order_type":"sell","platform":"pc","visible":true,"platinum":12,
	 "user":{"ingame_name":"alice","status":"ingame","platform":"pc"}},
	{"order_type":"sell","platform":"pc","visible":false,"platinum":5,
	 "user":{"ingame_name":"hidden","status":"ingame","platform":"pc"}},
	{"order_type":"buy","platform":"pc","visible":true,"platinum":9,
	 "user":{"ingame_name":"bob","status":"online","platform":"pc"}}
]}}`

func TestFetchOrders_DecodesAndDropsInvisible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items/mesa_prime_set/orders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != "relicflip-test" {
			t.Errorf("User-Agent = %q", ua)
		}
		io.WriteString(w, ordersBody)
	}))
	defer srv.Close()

	orders, err := testClient(t, srv.URL, 3).FetchOrders(context.Background(), "mesa_prime_set")
	if err != nil {
		t.Fatalf("FetchOrders: %v", err)
	}

	if len(orders) != 2 {
		t.Fatalf("got %d orders, want 2 (invisible dropped)", len(orders))
	}
	if orders[0].Side != domain.SideSell || orders[0].Price != 12 || orders[0].Seller != "alice" {
		t.Errorf("orders[0] = %+v", orders[0])
	}
	if orders[1].Side != domain.SideBuy || orders[1].Presence != domain.PresenceOnline {
		t.Errorf("orders[1] = %+v", orders[1])
	}
}

func TestFetchOrders_RetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, ordersBody)
	}))
	defer srv.Close()

	orders, err := testClient(t, srv.URL, 5).FetchOrders(context.Background(), "x")
	if err != nil {
		t.Fatalf("FetchOrders: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(orders) != 2 {
		t.Errorf("got %d orders, want 2", len(orders))
	}
}

func TestFetchOrders_Honors429(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, ordersBody)
	}))
	defer srv.Close()

	if _, err := testClient(t, srv.URL, 3).FetchOrders(context.Background(), "x"); err != nil {
		t.Fatalf("FetchOrders: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestFetchOrders_ExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL, 3).FetchOrders(context.Background(), "x")
	if !errors.Is(err, domain.ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
}

func TestFetchOrders_MalformedPayloadRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		io.WriteString(w, `{"payload":{"orders":[`)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL, 2).FetchOrders(context.Background(), "x")
	if !errors.Is(err, domain.ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (malformed payload retried)", calls)
	}
}

func TestFetchOrders_ClientErrorNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL, 5).FetchOrders(context.Background(), "no_such_item")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (4xx not retried)", calls)
	}
}

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"0", 0},
		{"-1", 0},
		{"Wed, 21 Oct 2026 07:28:00 GMT", 0},
	}
	for _, tc := range cases {
		if got := parseRetryAfter(tc.in); got != tc.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

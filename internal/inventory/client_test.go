package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"stockbot/internal/stock"
	logx "stockbot/pkg/logx"
)

func serve(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("missing X-Request-ID header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(Config{URL: srv.URL}, srv.Client(), logx.Nop())
}

func TestFetchDecodesInOrder(t *testing.T) {
	c := serve(t, http.StatusOK, `{"data":{
		"seed":{"items":[{"name":"Carrot","quantity":3},{"name":"Orange Tulip","quantity":"2"}]},
		"gear":{"items":[{"name":"Trowel","quantity":2}]}
	}}`)
	snap, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := []stock.Item{{Name: "Carrot", Quantity: 3}, {Name: "Orange Tulip", Quantity: 2}}
	if len(snap.Seeds) != 2 || snap.Seeds[0] != want[0] || snap.Seeds[1] != want[1] {
		t.Fatalf("seeds = %+v", snap.Seeds)
	}
	if len(snap.Gear) != 1 || snap.Gear[0].Name != "Trowel" {
		t.Fatalf("gear = %+v", snap.Gear)
	}
}

func TestFetchAbsentCategoriesAreEmpty(t *testing.T) {
	for _, body := range []string{`{"data":{}}`, `{}`, `{"data":{"seed":{"items":[]}}}`} {
		c := serve(t, http.StatusOK, body)
		snap, err := c.Fetch(context.Background())
		if err != nil {
			t.Fatalf("Fetch(%s): %v", body, err)
		}
		if snap.Len() != 0 {
			t.Fatalf("Fetch(%s) = %+v, want empty", body, snap)
		}
	}
}

func TestFetchFailures(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		c := serve(t, http.StatusBadGateway, `oops`)
		_, err := c.Fetch(context.Background())
		var fe *FetchError
		if !errors.As(err, &fe) || fe.StatusCode != http.StatusBadGateway {
			t.Fatalf("err = %v, want *FetchError 502", err)
		}
		if !errors.Is(err, ErrFetch) {
			t.Fatal("status error should match ErrFetch")
		}
	})
	t.Run("malformed json", func(t *testing.T) {
		c := serve(t, http.StatusOK, `{"data":`)
		if _, err := c.Fetch(context.Background()); !errors.Is(err, ErrFetch) {
			t.Fatalf("err = %v, want ErrFetch", err)
		}
	})
	t.Run("network", func(t *testing.T) {
		c := New(Config{URL: "http://127.0.0.1:1/grow-a-garden"}, nil, logx.Nop())
		if _, err := c.Fetch(context.Background()); !errors.Is(err, ErrFetch) {
			t.Fatalf("err = %v, want ErrFetch", err)
		}
	})
}

func TestQuantityDecode(t *testing.T) {
	cases := []struct {
		in      string
		want    quantity
		wantErr bool
	}{
		{`3`, 3, false},
		{`"2"`, 2, false},
		{`2.9`, 2, false},
		{`-4`, 0, false},
		{`null`, 0, false},
		{`""`, 0, false},
		{`2147483647`, maxQuantity, false},
		{`99999999999999999999`, maxQuantity, false},
		{`1e300`, maxQuantity, false},
		{`"1e400"`, maxQuantity, false},
		{`-1e300`, 0, false},
		{`"NaN"`, 0, true},
		{`"Inf"`, 0, true},
		{`"-Infinity"`, 0, true},
		{`"lots"`, 0, true},
	}
	for _, tc := range cases {
		var q quantity
		err := json.Unmarshal([]byte(tc.in), &q)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: err = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if err == nil && q != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.in, q, tc.want)
		}
	}
}

// Package inventory fetches the shop stock snapshot from the upstream API.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"stockbot/internal/stock"
	logx "stockbot/pkg/logx"
)

// ErrFetch is the class of every fetch failure: transport, status or decode.
var ErrFetch = errors.New("inventory: fetch failed")

// FetchError is returned for non-2xx upstream responses.
type FetchError struct {
	StatusCode int
	Status     string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("inventory: upstream returned %s", e.Status)
}

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// maxBody caps how much of a response is read.
const maxBody = 4 << 20

type Config struct {
	URL       string
	Timeout   time.Duration // 0 keeps http.Client's default (no timeout)
	UserAgent string
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, hc *http.Client, log logx.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "stockbot/1.0"
	}
	return &Client{cfg: cfg, http: hc, log: log}
}

// payload mirrors { data: { seed?: { items: [...] }, gear?: { items: [...] } } }.
type payload struct {
	Data *struct {
		Seed *section `json:"seed"`
		Gear *section `json:"gear"`
	} `json:"data"`
}

type section struct {
	Items []item `json:"items"`
}

type item struct {
	Name     string   `json:"name"`
	Quantity quantity `json:"quantity"`
}

// quantity accepts a JSON number or a numeric string. Negatives read as 0
// and values past maxQuantity are clamped to it.
type quantity int

const maxQuantity = math.MaxInt32

func (q *quantity) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*q = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("quantity %s: %w", b, err)
	}
	if math.IsNaN(f) || (math.IsInf(f, 0) && err == nil) {
		return fmt.Errorf("quantity %s: not a finite number", b)
	}
	switch {
	case f <= 0:
		*q = 0
	case f >= maxQuantity:
		*q = maxQuantity
	default:
		*q = quantity(f)
	}
	return nil
}

// Fetch performs one GET. Absent categories come back as empty slices; the
// caller decides what an empty snapshot means.
func (c *Client) Fetch(ctx context.Context) (stock.Snapshot, error) {
	reqID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, http.NoBody)
	if err != nil {
		return stock.Snapshot{}, fmt.Errorf("%w: build request: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return stock.Snapshot{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return stock.Snapshot{}, fmt.Errorf("%w: read body: %w", ErrFetch, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return stock.Snapshot{}, &FetchError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	snap, err := decode(body)
	if err != nil {
		return stock.Snapshot{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	c.log.Debug("inventory fetched",
		logx.String("req_id", reqID),
		logx.Int("seeds", len(snap.Seeds)),
		logx.Int("gear", len(snap.Gear)),
		logx.Duration("took", time.Since(start)),
	)
	return snap, nil
}

func decode(body []byte) (stock.Snapshot, error) {
	var p payload
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&p); err != nil {
		return stock.Snapshot{}, fmt.Errorf("decode: %w", err)
	}
	var snap stock.Snapshot
	if p.Data == nil {
		return snap, nil
	}
	if p.Data.Seed != nil {
		snap.Seeds = convert(p.Data.Seed.Items)
	}
	if p.Data.Gear != nil {
		snap.Gear = convert(p.Data.Gear.Items)
	}
	return snap, nil
}

func convert(in []item) []stock.Item {
	out := make([]stock.Item, 0, len(in))
	for _, it := range in {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		out = append(out, stock.Item{Name: name, Quantity: int(it.Quantity)})
	}
	return out
}

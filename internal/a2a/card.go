package a2a

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dunglas/httpsfv"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/mod/semver"

	"zen7-console/internal/model"
)

// AgentCardPath is the well-known location of the capability descriptor.
const AgentCardPath = "/.well-known/agent.json"

// DefaultCardTTL is used when the response carries no cache headers.
const DefaultCardTTL = 5 * time.Minute

// Protocol versions this client speaks. Cards without protocolVersion are accepted.
const (
	supportedProtocolMajor = "v0"
	minProtocolVersion     = "v0.2.0"
)

//go:embed agent_card.schema.json
var agentCardSchema []byte

var (
	compiledSchema *gojsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

func getSchema() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(agentCardSchema))
	})
	return compiledSchema, compileErr
}

// validateCard checks raw card JSON against the embedded schema.
func validateCard(data []byte) error {
	schema, err := getSchema()
	if err != nil {
		return fmt.Errorf("compiling agent card schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("malformed agent card: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return fmt.Errorf("malformed agent card: %s", strings.Join(errs, "; "))
}

// checkProtocolVersion rejects cards advertising a protocol this client cannot speak.
func checkProtocolVersion(v string) error {
	if v == "" {
		return nil
	}
	nv := normalizeVersion(v)
	if !semver.IsValid(nv) {
		return fmt.Errorf("invalid protocolVersion %q", v)
	}
	if semver.Major(nv) != supportedProtocolMajor || semver.Compare(nv, minProtocolVersion) < 0 {
		return fmt.Errorf("unsupported protocolVersion %q", v)
	}
	return nil
}

// normalizeVersion adds "v" prefix if needed for semver parsing.
func normalizeVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}

// CardResolver fetches agent cards over HTTP with caching.
// Respects Cache-Control max-age and ETag revalidation; on fetch failure a
// stale cached card is returned.
type CardResolver struct {
	client     *http.Client
	defaultTTL time.Duration

	mu    sync.RWMutex
	cache map[string]*cardEntry
}

type cardEntry struct {
	card      *model.AgentCard
	expiresAt time.Time
	etag      string
}

// NewCardResolver creates a resolver. A nil client uses http.DefaultClient.
func NewCardResolver(client *http.Client, defaultTTL time.Duration) *CardResolver {
	if client == nil {
		client = http.DefaultClient
	}
	if defaultTTL == 0 {
		defaultTTL = DefaultCardTTL
	}
	return &CardResolver{
		client:     client,
		defaultTTL: defaultTTL,
		cache:      make(map[string]*cardEntry),
	}
}

// Resolve returns the agent card published under baseURL.
func (r *CardResolver) Resolve(ctx context.Context, baseURL string) (*model.AgentCard, error) {
	cardURL := strings.TrimSuffix(baseURL, "/") + AgentCardPath

	r.mu.RLock()
	entry, exists := r.cache[cardURL]
	r.mu.RUnlock()

	if exists && entry.expiresAt.After(time.Now()) {
		return entry.card, nil
	}

	card, err := r.fetch(ctx, cardURL, entry)
	if err != nil {
		// Serve stale on network trouble, but never mask a malformed card
		if exists && ctx.Err() == nil {
			return entry.card, nil
		}
		return nil, err
	}
	return card, nil
}

func (r *CardResolver) fetch(ctx context.Context, cardURL string, stale *cardEntry) (*model.AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cardURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if stale != nil && stale.etag != "" {
		req.Header.Set("If-None-Match", stale.etag)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	// 304 Not Modified - refresh TTL on the cached card
	if resp.StatusCode == http.StatusNotModified && stale != nil {
		r.store(cardURL, stale.card, resp.Header)
		return stale.card, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, cardURL)
	}

	// Limit to 1MB
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if err := validateCard(body); err != nil {
		return nil, err
	}

	var card model.AgentCard
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, fmt.Errorf("parse agent card JSON: %w", err)
	}
	if err := checkProtocolVersion(card.ProtocolVersion); err != nil {
		return nil, err
	}

	r.store(cardURL, &card, resp.Header)
	return &card, nil
}

func (r *CardResolver) store(cardURL string, card *model.AgentCard, h http.Header) {
	ttl := parseCacheTTL(h, r.defaultTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	if ttl <= 0 {
		delete(r.cache, cardURL)
		return
	}
	r.cache[cardURL] = &cardEntry{
		card:      card,
		expiresAt: time.Now().Add(ttl),
		etag:      h.Get("ETag"),
	}
}

// parseCacheTTL extracts TTL from HTTP cache headers.
// Cache-Control is read as an RFC 8941 dictionary: no-store and no-cache
// disable caching, max-age sets the TTL. Falls back to Expires, then defaultTTL.
func parseCacheTTL(h http.Header, defaultTTL time.Duration) time.Duration {
	if cc := h.Values("Cache-Control"); len(cc) > 0 {
		if dict, err := httpsfv.UnmarshalDictionary(cc); err == nil {
			for _, directive := range []string{"no-store", "no-cache"} {
				if _, ok := dict.Get(directive); ok {
					return 0
				}
			}
			if member, ok := dict.Get("max-age"); ok {
				if item, ok := member.(httpsfv.Item); ok {
					if secs, ok := item.Value.(int64); ok && secs >= 0 {
						return time.Duration(secs) * time.Second
					}
				}
			}
		}
	}

	if expires := h.Get("Expires"); expires != "" {
		if t, err := http.ParseTime(expires); err == nil {
			if ttl := time.Until(t); ttl > 0 {
				return ttl
			}
		}
	}

	return defaultTTL
}

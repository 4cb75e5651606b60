package terminology

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
	"github.com/codeready-toolchain/eligibility/pkg/resilience"
)

// HTTPProvider is a TerminologyProvider backed by an HTTP vocabulary search
// endpoint (e.g. a SNOMED/LOINC/RxNorm/UMLS lookup service). Grounded on the
// teacher's pkg/runbook/github.go single-client HTTP adapter style.
type HTTPProvider struct {
	name       string
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.Breaker
	retry      resilience.RetryConfig
	cache      *resilience.Cache
}

// NewHTTPProvider builds an HTTP-backed provider named name, talking to
// baseURL, with results cached for cacheTTL (spec.md §4.6 "Caching":
// TTL 5 minutes, LRU eviction at capacity).
func NewHTTPProvider(name, baseURL string, timeout, cacheTTL time.Duration, cacheCapacity int) *HTTPProvider {
	return &HTTPProvider{
		name:       name,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    resilience.NewBreaker(resilience.DefaultBreakerConfig("terminology." + name)),
		retry:      resilience.DefaultRetryConfig(),
		cache:      resilience.NewCache(cacheTTL, cacheCapacity),
	}
}

func (p *HTTPProvider) Name() string { return p.name }

// BreakerName and BreakerState expose this provider's circuit breaker for
// cmd/pipeline-worker's periodic breaker-state poll (spec.md §4.11).
func (p *HTTPProvider) BreakerName() string  { return "terminology." + p.name }
func (p *HTTPProvider) BreakerState() string { return p.breaker.State() }

type searchRequest struct {
	Text       string `json:"text"`
	EntityType string `json:"entity_type"`
}

type wireCandidate struct {
	Code         string  `json:"code"`
	System       string  `json:"system"`
	Display      string  `json:"display"`
	Confidence   float64 `json:"confidence"`
	SemanticType string  `json:"semantic_type,omitempty"`
}

// Search looks up text in this provider's vocabulary, using a
// (provider, entity_type, normalized_text) cache key per spec.md §4.6.
func (p *HTTPProvider) Search(ctx context.Context, text string, entityType domain.EntityType) ([]Candidate, error) {
	key := cacheKey(p.name, entityType, text)
	if cached, ok := p.cache.Get(key); ok {
		return cached.([]Candidate), nil
	}

	var result []Candidate
	op := func(ctx context.Context) error {
		v, err := p.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
			return p.searchOnce(ctx, text, entityType)
		})
		if err != nil {
			return err
		}
		result = v.([]Candidate)
		return nil
	}

	if err := resilience.Retry(ctx, p.retry, op); err != nil {
		return nil, err
	}
	p.cache.Set(key, result)
	return result, nil
}

func (p *HTTPProvider) searchOnce(ctx context.Context, text string, entityType domain.EntityType) ([]Candidate, error) {
	body, err := json.Marshal(searchRequest{Text: text, EntityType: string(entityType)})
	if err != nil {
		return nil, resilience.NewPermanent("terminology."+p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, resilience.NewPermanent("terminology."+p.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransient("terminology."+p.name, fmt.Errorf("search: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransient("terminology."+p.name, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode >= 500 {
		return nil, resilience.NewTransient("terminology."+p.name, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewPermanent("terminology."+p.name, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody))
	}

	var wire []wireCandidate
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, resilience.NewPermanent("terminology."+p.name, fmt.Errorf("decode response: %w", err))
	}

	out := make([]Candidate, len(wire))
	for i, c := range wire {
		tier := classifyTier(text, c.Display)
		out[i] = Candidate{
			Code:         c.Code,
			System:       c.System,
			Display:      c.Display,
			Confidence:   TierConfidence(tier),
			SemanticType: c.SemanticType,
			Tier:         tier,
			Method:       tierGroundingMethod(tier),
		}
	}
	return out, nil
}

// classifyTier assigns the spec.md §4.6 step 3 tier to a wire candidate by
// comparing the search text against the candidate's display string: an
// exact normalized match wins, a same-word-set match (the same words in a
// different order) is the synonym tier, anything else the provider still
// chose to return is fuzzy.
func classifyTier(queryText, display string) MatchTier {
	nq, nd := normalize(queryText), normalize(display)
	if nq == nd {
		return TierExact
	}
	if sameWordSet(nq, nd) {
		return TierSynonym
	}
	return TierFuzzy
}

func sameWordSet(a, b string) bool {
	wa, wb := strings.Fields(a), strings.Fields(b)
	if len(wa) != len(wb) {
		return false
	}
	counts := make(map[string]int, len(wa))
	for _, w := range wa {
		counts[w]++
	}
	for _, w := range wb {
		counts[w]--
	}
	for _, n := range counts {
		if n != 0 {
			return false
		}
	}
	return true
}

// tierGroundingMethod maps a match tier to the domain.GroundingMethod
// persisted on the grounded entity (spec.md §4.6 "Output"); synonym and
// fuzzy tiers both surface as the wire value "word/synonym" since the
// GroundingMethod enum has no separate fuzzy member.
func tierGroundingMethod(t MatchTier) domain.GroundingMethod {
	if t == TierExact {
		return domain.GroundingMethodExact
	}
	return domain.GroundingMethodSynonym
}

func cacheKey(provider string, entityType domain.EntityType, text string) string {
	return provider + "|" + string(entityType) + "|" + normalize(text)
}

func normalize(text string) string {
	// Lowercase + collapse to a stable cache key; full NLP normalization is
	// the reasoning LLM's job, not the cache key's.
	out := make([]byte, 0, len(text))
	lastSpace := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c == ' ' || c == '\t' || c == '\n' {
			if lastSpace {
				continue
			}
			lastSpace = true
			c = ' '
		} else {
			lastSpace = false
		}
		out = append(out, c)
	}
	return string(out)
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-insights/internal/config"
	"github.com/platformbuilds/mirador-insights/internal/models"
	"github.com/platformbuilds/mirador-insights/internal/monitoring"
	"github.com/platformbuilds/mirador-insights/internal/utils/timeutil"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

const (
	defaultVMTimeout     = 30 * time.Second
	defaultVMMaxLookback = "P2Y"
)

// VictoriaMetricsService answers boundary queries against a
// VictoriaMetrics (single-node or cluster) Prometheus API. A dataset maps to
// a series selector: the "selector" dataset property, or the metric named
// after the dataset table.
type VictoriaMetricsService struct {
	name        string
	endpoints   []string
	client      *http.Client
	logger      logger.Logger
	username    string
	password    string
	accountID   string
	maxLookback timeutil.Period
	now         func() time.Time

	mu      sync.Mutex
	current int // round-robin cursor
}

// ReplaceEndpoints swaps the round-robin list. DNS discovery calls it on
// every refresh.
func (s *VictoriaMetricsService) ReplaceEndpoints(endpoints []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints = append([]string(nil), endpoints...)
	s.current = 0
	s.logger.Info("VictoriaMetrics endpoints updated", "source", s.name, "endpoints", endpoints)
}

// Endpoints returns a copy of the current endpoint list.
func (s *VictoriaMetricsService) Endpoints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.endpoints...)
}

func NewVictoriaMetricsService(name string, cfg config.VictoriaMetricsConfig, log logger.Logger) (*VictoriaMetricsService, error) {
	if len(cfg.Endpoints) == 0 && !cfg.Discovery.Enabled {
		return nil, fmt.Errorf("victoriametrics datasource %s has no endpoints", name)
	}
	lookback := cfg.MaxLookback
	if lookback == "" {
		lookback = defaultVMMaxLookback
	}
	maxLookback, err := timeutil.ParsePeriod(lookback)
	if err != nil {
		return nil, fmt.Errorf("victoriametrics datasource %s: max_lookback: %w", name, err)
	}
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultVMTimeout
	}
	return &VictoriaMetricsService{
		name:        name,
		endpoints:   append([]string(nil), cfg.Endpoints...),
		client:      &http.Client{Timeout: timeout},
		logger:      log,
		username:    cfg.Username,
		password:    cfg.Password,
		accountID:   cfg.AccountID,
		maxLookback: maxLookback,
		now:         time.Now,
	}, nil
}

func (s *VictoriaMetricsService) FetchMinTime(ctx context.Context, dataset *models.DatasetConfig, interval *models.Interval) (*int64, error) {
	return s.fetch(ctx, "min", "tfirst_over_time", dataset, interval)
}

func (s *VictoriaMetricsService) FetchMaxTime(ctx context.Context, dataset *models.DatasetConfig, interval *models.Interval) (*int64, error) {
	return s.fetch(ctx, "max", "tlast_over_time", dataset, interval)
}

// fetch evaluates agg(fn(selector[window])) at the end of the interval. The
// lookbehind window never reaches further back than maxLookback.
func (s *VictoriaMetricsService) fetch(ctx context.Context, agg, fn string, dataset *models.DatasetConfig, interval *models.Interval) (*int64, error) {
	now := s.now().UnixMilli()
	end := now
	if interval != nil && interval.End < end {
		end = interval.End
	}
	start := s.maxLookback.Minus(timeutil.FromEpochMillis(end, time.UTC)).UnixMilli()
	if interval != nil && interval.Start > start {
		start = interval.Start
	}
	if start >= end {
		return nil, nil
	}

	// the API window is (t-w, t]; evaluating 1ms early keeps [start, end)
	evalAt := end - 1
	query := fmt.Sprintf("%s(%s(%s[%dms]))", agg, fn, selectorFor(dataset), end-start)
	value, err := s.instantQuery(ctx, query, evalAt)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", dataset.Name, err)
	}
	return value, nil
}

func selectorFor(dataset *models.DatasetConfig) string {
	if sel := strings.TrimSpace(dataset.Properties["selector"]); sel != "" {
		return sel
	}
	return fmt.Sprintf(`{__name__=%q}`, dataset.EffectiveTable())
}

type vmResponse struct {
	Status    string `json:"status"`
	ErrorType string `json:"errorType"`
	Error     string `json:"error"`
	Data      struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Value  []any             `json:"value"`
		} `json:"result"`
	} `json:"data"`
}

// instantQuery runs query at evalAt (epoch millis) and returns the single
// sample value as epoch millis. An empty vector yields nil.
func (s *VictoriaMetricsService) instantQuery(ctx context.Context, query string, evalAt int64) (*int64, error) {
	start := time.Now()
	endpoint := s.selectEndpoint()
	if endpoint == "" {
		return nil, errors.New("no VictoriaMetrics endpoint configured")
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("time", strconv.FormatFloat(float64(evalAt)/1000, 'f', 3, 64))

	resp, err := s.doRequest(ctx, s.queryURL(endpoint)+"?"+params.Encode())
	if err != nil {
		monitoring.RecordVictoriaMetricsQuery("instant", time.Since(start), false)
		return nil, fmt.Errorf("VictoriaMetrics request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		monitoring.RecordVictoriaMetricsQuery("instant", time.Since(start), false)
		return nil, fmt.Errorf("VictoriaMetrics returned status %d: %s", resp.StatusCode, readBodySnippet(resp.Body))
	}

	var vm vmResponse
	if err := json.NewDecoder(resp.Body).Decode(&vm); err != nil {
		monitoring.RecordVictoriaMetricsQuery("instant", time.Since(start), false)
		return nil, fmt.Errorf("failed to parse VictoriaMetrics response: %w", err)
	}
	if vm.Status != "success" {
		monitoring.RecordVictoriaMetricsQuery("instant", time.Since(start), false)
		return nil, fmt.Errorf("VictoriaMetrics query failed: %s: %s", vm.ErrorType, vm.Error)
	}
	monitoring.RecordVictoriaMetricsQuery("instant", time.Since(start), true)

	s.logger.Debug("MetricsQL boundary query executed",
		"query", query,
		"source", s.name,
		"endpoint", endpoint,
		"took", time.Since(start),
		"seriesCount", len(vm.Data.Result),
	)

	if len(vm.Data.Result) == 0 || len(vm.Data.Result[0].Value) != 2 {
		return nil, nil
	}
	raw, ok := vm.Data.Result[0].Value[1].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected sample value %v", vm.Data.Result[0].Value[1])
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("unexpected sample value %q: %w", raw, err)
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return nil, nil
	}
	ms := int64(math.Round(seconds * 1000))
	return &ms, nil
}

func (s *VictoriaMetricsService) queryURL(endpoint string) string {
	endpoint = strings.TrimRight(endpoint, "/")
	if s.accountID != "" {
		return fmt.Sprintf("%s/select/%s/prometheus/api/v1/query", endpoint, s.accountID)
	}
	return endpoint + "/api/v1/query"
}

// HealthCheck probes every endpoint's /health and fails if none answers.
func (s *VictoriaMetricsService) HealthCheck(ctx context.Context) error {
	endpoints := s.Endpoints()
	if len(endpoints) == 0 {
		return fmt.Errorf("victoriametrics datasource %s has no endpoints", s.name)
	}
	var errs []error
	for _, ep := range endpoints {
		resp, err := s.doRequest(ctx, strings.TrimRight(ep, "/")+"/health")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: health status %d", ep, resp.StatusCode))
	}
	return fmt.Errorf("victoriametrics datasource %s unhealthy: %w", s.name, errors.Join(errs...))
}

func (s *VictoriaMetricsService) selectEndpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.endpoints) == 0 {
		return ""
	}
	ep := s.endpoints[s.current%len(s.endpoints)]
	s.current++
	return ep
}

// doRequest sends a single GET; boundary queries are never retried.
func (s *VictoriaMetricsService) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.accountID != "" {
		req.Header.Set("AccountID", s.accountID)
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}
	return s.client.Do(req)
}

func readBodySnippet(r io.Reader) string {
	const max = 8 << 10 // 8KB
	b, _ := io.ReadAll(io.LimitReader(r, max))
	return string(b)
}

package rest

import (
	"PICs_Gallery/config"
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/database"
	"PICs_Gallery/pkg/metrics"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// StatusError 表示远端返回了非 2xx 状态码。
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("请求失败，状态码 %d: %s", e.Code, e.Message)
}

type response struct {
	body   []byte
	header http.Header
}

// Client 是 database.Store 的 REST 实现，兼容 PostgREST 风格的 /rest/v1/{table} 接口。
// 所有请求经过限流器和熔断器；读取操作按配置重试。
type Client struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	limiter       *rate.Limiter
	breaker       *gobreaker.CircuitBreaker[*response]
	retryAttempts int
	retryDelay    time.Duration
	pageSize      int
	logger        *slog.Logger
}

var _ database.Store = (*Client)(nil)

func NewClient(cfg config.RestConfig, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("缺少 rest.url 配置")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("缺少 rest.apiKey 配置")
	}
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	c := &Client{
		baseURL:       strings.TrimRight(cfg.URL, "/"),
		apiKey:        cfg.APIKey,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		limiter:       rate.NewLimiter(limit, 1),
		retryAttempts: attempts,
		retryDelay:    cfg.RetryDelay,
		pageSize:      pageSize,
		logger:        logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:    "rest-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// 4xx 是调用方的问题，不计入熔断
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("存储熔断器状态变化", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

// FetchAll 读取整张表，按 Range 分页直到拿到不满一页的结果。
func (c *Client) FetchAll(ctx context.Context, table string) ([]models.RawRecord, error) {
	var all []models.RawRecord
	for offset := 0; ; offset += c.pageSize {
		var page []models.RawRecord
		err := c.withRetry(ctx, "fetch "+table, func() error {
			page = nil
			return c.getJSON(ctx, "/"+url.PathEscape(table), url.Values{"select": {"*"}}, offset, &page)
		})
		if err != nil {
			return nil, fmt.Errorf("读取表 %s 失败: %w", table, err)
		}
		all = append(all, page...)
		if len(page) < c.pageSize {
			break
		}
	}
	return all, nil
}

type counterRow struct {
	TableName  string  `json:"table_name"`
	PhotoID    any     `json:"photo_id"`
	ClickCount *int64  `json:"click_count"`
	ViewCount  *int64  `json:"view_count"`
	UpdatedAt  *string `json:"updated_at"`
}

func (r counterRow) record() models.CounterRecord {
	rec := models.CounterRecord{TableName: r.TableName, PhotoID: idText(r.PhotoID)}
	if r.ClickCount != nil {
		rec.ClickCount = *r.ClickCount
	}
	if r.ViewCount != nil {
		rec.ViewCount = *r.ViewCount
	}
	if r.UpdatedAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *r.UpdatedAt); err == nil {
			rec.UpdatedAt = t
		}
	}
	return rec
}

func (c *Client) FetchCounters(ctx context.Context) (map[string]models.CounterRecord, error) {
	counters := make(map[string]models.CounterRecord)
	query := url.Values{"select": {"table_name,photo_id,click_count,view_count,updated_at"}}
	for offset := 0; ; offset += c.pageSize {
		var rows []counterRow
		err := c.withRetry(ctx, "fetch counters", func() error {
			rows = nil
			return c.getJSON(ctx, "/"+database.CountersTable, query, offset, &rows)
		})
		if err != nil {
			return nil, fmt.Errorf("读取计数失败: %w", err)
		}
		for _, row := range rows {
			rec := row.record()
			counters[rec.Key()] = rec
		}
		if len(rows) < c.pageSize {
			break
		}
	}
	return counters, nil
}

func counterFilter(table, photoID string) url.Values {
	return url.Values{
		"table_name": {"eq." + table},
		"photo_id":   {"eq." + photoID},
	}
}

func (c *Client) GetCounter(ctx context.Context, table, photoID string) (*models.CounterRecord, error) {
	query := counterFilter(table, photoID)
	query.Set("select", "*")
	query.Set("limit", "1")
	var rows []counterRow
	if err := c.getJSON(ctx, "/"+database.CountersTable, query, -1, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec := rows[0].record()
	return &rec, nil
}

func (c *Client) InsertCounter(ctx context.Context, rec models.CounterRecord) error {
	body := map[string]any{
		"table_name":      rec.TableName,
		"photo_id":        rec.PhotoID,
		"table_image_iid": rec.Key(),
		"click_count":     rec.ClickCount,
		"view_count":      rec.ViewCount,
		"updated_at":      rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	_, err := c.do(ctx, http.MethodPost, "/"+database.CountersTable, nil, body, map[string]string{"Prefer": "return=minimal"})
	return err
}

func (c *Client) UpdateCounter(ctx context.Context, rec models.CounterRecord) error {
	body := map[string]any{
		"click_count": rec.ClickCount,
		"view_count":  rec.ViewCount,
		"updated_at":  rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	_, err := c.do(ctx, http.MethodPatch, "/"+database.CountersTable, counterFilter(rec.TableName, rec.PhotoID), body, map[string]string{"Prefer": "return=minimal"})
	return err
}

func (c *Client) Close(ctx context.Context) error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// getJSON 发起 GET 并解码结果。offset >= 0 时附带 Range 分页头。
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, offset int, dest any) error {
	headers := map[string]string{}
	if offset >= 0 {
		headers["Range-Unit"] = "items"
		headers["Range"] = strconv.Itoa(offset) + "-" + strconv.Itoa(offset+c.pageSize-1)
	}
	resp, err := c.do(ctx, http.MethodGet, path, query, nil, headers)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(resp.body))
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("无法解析响应: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, headers map[string]string) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	started := time.Now()
	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.send(ctx, method, path, query, body, headers)
	})
	metrics.StoreRequestDuration.WithLabelValues(method, strings.TrimPrefix(path, "/")).Observe(time.Since(started).Seconds())
	return resp, err
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any, headers map[string]string) (*response, error) {
	endpoint := c.baseURL + "/rest/v1" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &apiErr)
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(res.StatusCode)
		}
		return nil, &StatusError{Code: res.StatusCode, Message: apiErr.Message}
	}
	return &response{body: data, header: res.Header}, nil
}

// withRetry 最多执行 retryAttempts 次，第 i 次失败后等待 retryDelay*i。
// 4xx 错误和 context 取消不重试。
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var se *StatusError
		if errors.As(err, &se) && se.Code < 500 {
			return err
		}
		if ctx.Err() != nil || attempt == c.retryAttempts {
			break
		}
		c.logger.Debug("请求失败，准备重试", "op", op, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay * time.Duration(attempt)):
		}
	}
	return err
}

func idText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Package catalyst implements the client for the QQ Catalyst document
// API: authenticated, paginated enumeration of a contact's files and the
// two per-document content endpoints (raw bytes and base64 properties).
package catalyst

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfrecampione/golden-review-backend/config"
	"github.com/alfrecampione/golden-review-backend/internal/entity"
	"github.com/alfrecampione/golden-review-backend/observability"
)

// quotaExceededMarker is the body fragment the provider returns (with an
// authentication-class status) once the per-minute request quota is spent.
const quotaExceededMarker = "Maximum admitted 60 requests per Minute"

// Client talks to the QQ Catalyst files API. It owns the access-token
// cache and the retry/cool-down policy for transient provider errors.
type Client struct {
	cfg        config.CatalystConfig
	httpClient *http.Client
	logger     observability.Logger
	metrics    observability.Metrics
	tokens     *tokenCache

	// sleep and now are injectable for tests
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewClient creates a Catalyst API client.
func NewClient(cfg config.CatalystConfig, logger observability.Logger, metrics observability.Metrics) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger:  logger,
		metrics: metrics,
		tokens:  &tokenCache{},
		sleep:   sleepContext,
		now:     time.Now,
	}
}

// ListAllDocuments enumerates every document of a customer, deduplicated
// by document id. Paging stops when a page yields no previously-unseen
// ids, when the reported total page count is reached, or when a page
// comes back short — whichever happens first. Providers have been seen
// reporting wrong totals and returning trailing empty pages, hence the
// triple condition.
func (c *Client) ListAllDocuments(ctx context.Context, customerID string) ([]entity.RemoteDocument, error) {
	start := c.now()
	defer func() {
		c.metrics.RecordDuration("catalyst.list", time.Since(start).Seconds())
	}()

	seen := make(map[string]struct{})
	var all []entity.RemoteDocument

	page := 1
	pagesTotal := 0
	for {
		listing, err := c.listPage(ctx, customerID, page)
		if err != nil {
			c.metrics.RecordError("catalyst.list", "page_fetch")
			return nil, err
		}
		if pagesTotal == 0 && listing.PagesTotal > 0 {
			pagesTotal = listing.PagesTotal
		}

		newInPage := 0
		for _, item := range listing.Data {
			id := item.id()
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			all = append(all, item.toEntity())
			newInPage++
		}

		noMore := len(listing.Data) < c.cfg.PageSize ||
			(pagesTotal > 0 && page >= pagesTotal) ||
			newInPage == 0
		if noMore {
			break
		}
		page++
	}

	c.logger.Debug(ctx, "document listing complete", observability.Fields{
		"customer_id": customerID,
		"pages":       page,
		"documents":   len(all),
	})
	c.metrics.RecordSuccess("catalyst.list")

	return all, nil
}

// listPage fetches one listing page. When the provider signals that the
// per-minute quota is spent it waits out the fixed quota window and
// retries the same page; the window length is not negotiable, so this is
// a flat cool-down rather than a backoff.
func (c *Client) listPage(ctx context.Context, customerID string, page int) (*listResponse, error) {
	for {
		token, err := c.token(ctx)
		if err != nil {
			return nil, err
		}

		params := url.Values{
			"contactid":  {customerID},
			"dlFileType": {"None"},
			"pageNumber": {strconv.Itoa(page)},
			"pageSize":   {strconv.Itoa(c.cfg.PageSize)},
		}
		endpoint := fmt.Sprintf("%s/v1/Files/FilesByContact?%s", strings.TrimRight(c.cfg.BaseURL, "/"), params.Encode())

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create listing request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("listing request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read listing response: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && strings.Contains(string(body), quotaExceededMarker) {
			c.logger.Warn(ctx, "provider quota exceeded, waiting out the window", observability.Fields{
				"customer_id": customerID,
				"page":        page,
				"cooldown":    c.cfg.QuotaCooldown.String(),
			})
			if err := c.sleep(ctx, c.cfg.QuotaCooldown); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			c.logger.Error(ctx, "listing endpoint returned error", nil, observability.Fields{
				"customer_id": customerID,
				"page":        page,
				"status":      resp.StatusCode,
				"body":        truncate(string(body), 512),
			})
			return nil, fmt.Errorf("HTTP %d from FilesByContact: %s", resp.StatusCode, truncate(string(body), 512))
		}

		var listing listResponse
		if err := json.Unmarshal(body, &listing); err != nil {
			return nil, fmt.Errorf("failed to decode listing response: %w", err)
		}
		return &listing, nil
	}
}

// FetchRaw requests a document's raw bytes. Transient failures (429 and
// 5xx) are retried with exponential backoff up to the configured ceiling;
// other statuses are returned in the payload so the caller can fall back
// to the properties endpoint.
func (c *Client) FetchRaw(ctx context.Context, documentID string) (*RawPayload, error) {
	endpoint := fmt.Sprintf("%s/v1/Files/%s", strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(documentID))

	var payload *RawPayload
	err := c.withRetry(ctx, "catalyst.raw", func() (int, error) {
		token, err := c.token(ctx)
		if err != nil {
			return 0, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to create raw request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/octet-stream, application/json;q=0.9, */*;q=0.8")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, fmt.Errorf("raw request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("failed to read raw response: %w", err)
		}

		payload = &RawPayload{
			Status:             resp.StatusCode,
			Data:               data,
			ContentType:        resp.Header.Get("Content-Type"),
			ContentDisposition: resp.Header.Get("Content-Disposition"),
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// FetchProperties requests a document's structured properties, which
// embed the content as base64. Same retry policy as FetchRaw, but a
// non-2xx status here is terminal: there is no further fallback.
func (c *Client) FetchProperties(ctx context.Context, documentID string) (*PropertiesDocument, error) {
	endpoint := fmt.Sprintf("%s/v1/Files/Properties/%s?downloadAs=Original",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(documentID))

	var props PropertiesDocument
	err := c.withRetry(ctx, "catalyst.properties", func() (int, error) {
		token, err := c.token(ctx)
		if err != nil {
			return 0, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to create properties request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, fmt.Errorf("properties request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("failed to read properties response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if retriableStatus(resp.StatusCode) {
				return resp.StatusCode, nil
			}
			return resp.StatusCode, fmt.Errorf("HTTP %d from Properties: %s", resp.StatusCode, truncate(string(body), 512))
		}

		if err := json.Unmarshal(body, &props); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode properties response: %w", err)
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return &props, nil
}

// withRetry runs fn with exponential backoff on transient failures.
// fn reports the HTTP status it observed; 429 and 5xx trigger a retry,
// as do transport-level errors (status 0). Any other failure propagates
// immediately. The delay doubles from RetryBaseDelay.
func (c *Client) withRetry(ctx context.Context, operation string, fn func() (int, error)) error {
	delay := c.cfg.RetryBaseDelay

	var lastErr error
	for attempt := 0; ; attempt++ {
		status, err := fn()

		if err == nil && !retriableStatus(status) {
			if attempt > 0 {
				c.logger.Debug(ctx, "transient error recovered", observability.Fields{
					"operation": operation,
					"attempts":  attempt + 1,
				})
			}
			return nil
		}

		// Errors carrying a definitive HTTP status are terminal.
		if err != nil && status != 0 && !retriableStatus(status) {
			return err
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("HTTP %d from %s", status, operation)
		}

		if attempt >= c.cfg.MaxRetries {
			c.metrics.RecordError(operation, "retry_exhausted")
			return fmt.Errorf("%s failed after %d attempts: %w", operation, attempt+1, lastErr)
		}

		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}
}

func retriableStatus(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

// sleepContext sleeps for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

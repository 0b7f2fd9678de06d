// File: internal/backend/response.go
package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cafogleman/cb-response-surveyor/internal/config"
	"github.com/cafogleman/cb-response-surveyor/internal/credentials"
	"github.com/cafogleman/cb-response-surveyor/internal/network"
	"github.com/cafogleman/cb-response-surveyor/internal/observability"
)

// ResponseBackend queries an on-prem Carbon Black EDR Response server over
// its v1 process search API.
type ResponseBackend struct {
	client   *network.Client
	baseURL  string
	token    string
	pageSize int
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// responsePage is one page of the paginated process search result.
type responsePage struct {
	TotalResults int               `json:"total_results"`
	Results      []responseProcess `json:"results"`
}

type responseProcess struct {
	Hostname string `json:"hostname"`
	Username string `json:"username"`
	Path     string `json:"path"`
	Cmdline  string `json:"cmdline"`
}

// NewResponse builds a Response backend from a resolved credential profile.
func NewResponse(profile *credentials.Profile, cfg config.BackendConfig) *ResponseBackend {
	clientCfg := network.NewDefaultClientConfig()
	clientCfg.RequestTimeout = cfg.RequestTimeout
	clientCfg.IgnoreTLSErrors = cfg.IgnoreTLSErrors || !profile.SSLVerify

	return &ResponseBackend{
		client:   network.NewClient(clientCfg),
		baseURL:  profile.URL,
		token:    profile.Token,
		pageSize: cfg.PageSize,
		limiter:  rate.NewLimiter(rate.Limit(cfg.PageRateLimit), 1),
		logger:   observability.GetLogger().Named("response"),
	}
}

func (b *ResponseBackend) Name() string      { return "response" }
func (b *ResponseBackend) HostField() string { return "hostname" }
func (b *ResponseBackend) UserField() string { return "username" }

// TimeWindow renders the Response relative-start clause. The server only
// speaks minutes, so days are converted.
func (b *ResponseBackend) TimeWindow(days, minutes int) string {
	if days > 0 {
		return fmt.Sprintf(" start:-%dm", days*1440)
	}
	if minutes > 0 {
		return fmt.Sprintf(" start:-%dm", minutes)
	}
	return ""
}

// ConvertQuery is the identity for the Response dialect; queries are already
// written in it.
func (b *ResponseBackend) ConvertQuery(_ context.Context, query string) (string, error) {
	return query, nil
}

// Search pages through /api/v1/process, delivering each record to visit.
func (b *ResponseBackend) Search(ctx context.Context, query string, visit func(Record) bool) error {
	offset := 0
	for {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}

		page, err := b.fetchPage(ctx, query, offset)
		if err != nil {
			return err
		}
		if len(page.Results) == 0 {
			return nil
		}

		for _, proc := range page.Results {
			if err := ctx.Err(); err != nil {
				return err
			}
			record := Record{
				Endpoint: proc.Hostname,
				Username: proc.Username,
				Path:     proc.Path,
				Cmdline:  proc.Cmdline,
			}
			if !visit(record) {
				return nil
			}
		}

		offset += len(page.Results)
		if offset >= page.TotalResults {
			return nil
		}
	}
}

func (b *ResponseBackend) fetchPage(ctx context.Context, query string, offset int) (*responsePage, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("rows", strconv.Itoa(b.pageSize))
	params.Set("start", strconv.Itoa(offset))

	endpoint := b.baseURL + "/api/v1/process?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build process search request: %w", err)
	}
	req.Header.Set("X-Auth-Token", b.token)
	req.Header.Set("Accept", "application/json")

	b.logger.Debug("Fetching process page", zap.Int("offset", offset))

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("process search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("process search returned HTTP %d", resp.StatusCode)
	}

	var page responsePage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode process search page: %w", err)
	}
	return &page, nil
}

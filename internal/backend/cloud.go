// File: internal/backend/cloud.go
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cafogleman/cb-response-surveyor/internal/config"
	"github.com/cafogleman/cb-response-surveyor/internal/credentials"
	"github.com/cafogleman/cb-response-surveyor/internal/network"
	"github.com/cafogleman/cb-response-surveyor/internal/observability"
)

// cloudStartTimeLayout matches the timestamp format the cloud query language
// expects in process_start_time range clauses.
const cloudStartTimeLayout = "2006-01-02T15:04:05.000000Z"

// CloudBackend queries Carbon Black Cloud Enterprise EDR (formerly
// ThreatHunter). Cloud searches are asynchronous: a search job is created,
// polled until the backend has contacted every sensor shard, then paged.
type CloudBackend struct {
	client   *network.Client
	baseURL  string
	token    string
	orgKey   string
	pageSize int
	limiter  *rate.Limiter
	logger   *zap.Logger

	// now is swappable in tests that assert TimeWindow output.
	now func() time.Time
}

type cloudJob struct {
	JobID string `json:"job_id"`
}

type cloudResults struct {
	Contacted    int              `json:"contacted"`
	Completed    int              `json:"completed"`
	NumAvailable int              `json:"num_available"`
	Results      []map[string]any `json:"results"`
}

// NewCloud builds a Cloud backend from a resolved credential profile.
func NewCloud(profile *credentials.Profile, cfg config.BackendConfig) *CloudBackend {
	clientCfg := network.NewDefaultClientConfig()
	clientCfg.RequestTimeout = cfg.RequestTimeout
	clientCfg.IgnoreTLSErrors = cfg.IgnoreTLSErrors || !profile.SSLVerify

	return &CloudBackend{
		client:   network.NewClient(clientCfg),
		baseURL:  profile.URL,
		token:    profile.Token,
		orgKey:   profile.OrgKey,
		pageSize: cfg.PageSize,
		limiter:  rate.NewLimiter(rate.Limit(cfg.PageRateLimit), 1),
		logger:   observability.GetLogger().Named("cloud"),
		now:      time.Now,
	}
}

func (b *CloudBackend) Name() string      { return "cloud" }
func (b *CloudBackend) HostField() string { return "device_name" }
func (b *CloudBackend) UserField() string { return "process_username" }

// TimeWindow renders an absolute process_start_time range anchored at
// now minus the requested window. Days take precedence over minutes.
func (b *CloudBackend) TimeWindow(days, minutes int) string {
	var window time.Duration
	switch {
	case days > 0:
		window = time.Duration(days) * 24 * time.Hour
	case minutes > 0:
		window = time.Duration(minutes) * time.Minute
	default:
		return ""
	}
	start := b.now().Add(-window).UTC().Format(cloudStartTimeLayout)
	return fmt.Sprintf(" process_start_time:[%s TO *]", start)
}

// ConvertQuery asks the cloud API to translate a Response-dialect query
// into the cloud query language. A refusal, meaning the server answered but
// rejected the query, comes back as ErrTranslation so callers can skip the
// query instead of aborting the run. Transport failures propagate unchanged;
// an unreachable server must kill the run, not drain it to zero results.
func (b *CloudBackend) ConvertQuery(ctx context.Context, query string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/investigate/v1/orgs/%s/query/translate", b.baseURL, b.orgKey)
	payload := map[string]string{"query": query}

	var result struct {
		Query string `json:"query"`
	}
	if err := b.post(ctx, endpoint, payload, &result); err != nil {
		var httpErr *statusError
		if errors.As(err, &httpErr) {
			return "", fmt.Errorf("%w: %v", ErrTranslation, err)
		}
		return "", fmt.Errorf("query translation request failed: %w", err)
	}
	return result.Query, nil
}

// Search creates a process search job, waits for it to complete, then pages
// through the results delivering each record to visit. Fields the cloud
// omits for a record come back as the literal "None"; the API leaves out
// anything the sensor never reported and that is not worth failing over.
func (b *CloudBackend) Search(ctx context.Context, query string, visit func(Record) bool) error {
	jobID, err := b.createJob(ctx, query)
	if err != nil {
		return err
	}

	if err := b.awaitJob(ctx, jobID); err != nil {
		return err
	}

	offset := 0
	for {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}

		page, err := b.fetchResults(ctx, jobID, offset)
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
				Endpoint: stringField(proc, "device_name"),
				Username: stringField(proc, "process_username"),
				Path:     stringField(proc, "process_name"),
				Cmdline:  stringField(proc, "process_cmdline"),
			}
			if !visit(record) {
				return nil
			}
		}

		offset += len(page.Results)
		if offset >= page.NumAvailable {
			return nil
		}
	}
}

func (b *CloudBackend) createJob(ctx context.Context, query string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/investigate/v2/orgs/%s/processes/search_jobs", b.baseURL, b.orgKey)
	payload := map[string]any{
		"query": query,
		"rows":  b.pageSize,
		"fields": []string{
			"device_name", "process_username", "process_name", "process_cmdline",
		},
	}

	var job cloudJob
	if err := b.post(ctx, endpoint, payload, &job); err != nil {
		return "", fmt.Errorf("failed to create search job: %w", err)
	}
	if job.JobID == "" {
		return "", fmt.Errorf("search job response carried no job_id")
	}

	b.logger.Debug("Created search job", zap.String("job_id", job.JobID))
	return job.JobID, nil
}

// awaitJob polls the job until every contacted shard has completed. The page
// limiter doubles as the poll pacer.
func (b *CloudBackend) awaitJob(ctx context.Context, jobID string) error {
	for {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}

		page, err := b.fetchResults(ctx, jobID, 0)
		if err != nil {
			return err
		}
		if page.Contacted > 0 && page.Completed >= page.Contacted {
			return nil
		}

		b.logger.Debug("Search job still running",
			zap.String("job_id", jobID),
			zap.Int("completed", page.Completed),
			zap.Int("contacted", page.Contacted),
		)
	}
}

func (b *CloudBackend) fetchResults(ctx context.Context, jobID string, offset int) (*cloudResults, error) {
	endpoint := fmt.Sprintf("%s/api/investigate/v2/orgs/%s/processes/search_jobs/%s/results?start=%d&rows=%d",
		b.baseURL, b.orgKey, jobID, offset, b.pageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build results request: %w", err)
	}
	req.Header.Set("X-Auth-Token", b.token)
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("results request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("results request returned HTTP %d", resp.StatusCode)
	}

	var page cloudResults
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode results page: %w", err)
	}
	return &page, nil
}

// statusError marks a request that reached the server and came back non-OK,
// as opposed to one that never completed.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned HTTP %d", e.code)
}

// post sends a JSON payload and decodes a JSON reply into out.
func (b *CloudBackend) post(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-Auth-Token", b.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// stringField reads a string attribute off a raw cloud record, substituting
// the literal "None" when the field is absent or null.
func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return "None"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

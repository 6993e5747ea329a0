// Package analysis submits jobs to the external gait-analysis worker and
// reconciles its completion webhooks into the analysis record.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Job is the submission payload for the external worker.
type Job struct {
	AnalysisID string    `json:"analysisId"`
	UserID     string    `json:"userId"`
	Videos     JobVideos `json:"videos"`
	WebhookURL string    `json:"webhookUrl"`
}

// JobVideos carries one presigned read URL per uploaded angle; absent
// angles are null.
type JobVideos struct {
	Normal      *string `json:"normal"`
	LeftToRight *string `json:"leftToRight"`
	RightToLeft *string `json:"rightToLeft"`
	RearView    *string `json:"rearView"`
}

// JobSubmitter submits an analysis job to the compute worker.
type JobSubmitter interface {
	Submit(ctx context.Context, job Job) error
}

// WorkerClient talks to the worker's HTTP API.
type WorkerClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewWorkerClient(baseURL string) *WorkerClient {
	return &WorkerClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *WorkerClient) Submit(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}

	url := c.baseURL + "/api/analyze"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("worker returned status %d", resp.StatusCode)
	}
	return nil
}

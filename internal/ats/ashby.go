// Package ats talks to the Ashby applicant tracking system. The pipeline
// only needs two capabilities: archiving an application and moving it to
// another interview stage.
package ats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultBaseURL = "https://api.ashbyhq.com"
	defaultTimeout = 30 * time.Second
)

// Mover archives applications and moves them between interview stages.
// Both calls report whether the remote accepted the change.
type Mover interface {
	Archive(ctx context.Context, applicationID uuid.UUID) (bool, error)
	MoveStage(ctx context.Context, applicationID, stageID uuid.UUID) (bool, error)
}

// Client is an Ashby API client. Ashby exposes RPC-style POST endpoints
// authenticated with HTTP basic auth (API key as the username).
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Archived-type stage and archive reason the account uses for
	// pipeline rejections.
	archiveStageID  uuid.UUID
	archiveReasonID uuid.UUID
}

// NewClient creates an Ashby client with the given API key and the
// account's archive stage and reason identifiers.
func NewClient(apiKey string, archiveStageID, archiveReasonID uuid.UUID) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		archiveStageID:  archiveStageID,
		archiveReasonID: archiveReasonID,
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey string, archiveStageID, archiveReasonID uuid.UUID, baseURL string) *Client {
	c := NewClient(apiKey, archiveStageID, archiveReasonID)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type changeStageRequest struct {
	ApplicationID    string `json:"applicationId"`
	InterviewStageID string `json:"interviewStageId"`
	ArchiveReasonID  string `json:"archiveReasonId,omitempty"`
}

// envelope is Ashby's uniform response wrapper.
type envelope struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors,omitempty"`
}

// Archive moves the application into the configured archived stage with
// the configured archive reason.
func (c *Client) Archive(ctx context.Context, applicationID uuid.UUID) (bool, error) {
	return c.changeStage(ctx, changeStageRequest{
		ApplicationID:    applicationID.String(),
		InterviewStageID: c.archiveStageID.String(),
		ArchiveReasonID:  c.archiveReasonID.String(),
	})
}

// MoveStage moves the application to the given interview stage.
func (c *Client) MoveStage(ctx context.Context, applicationID, stageID uuid.UUID) (bool, error) {
	return c.changeStage(ctx, changeStageRequest{
		ApplicationID:    applicationID.String(),
		InterviewStageID: stageID.String(),
	})
}

func (c *Client) changeStage(ctx context.Context, req changeStageRequest) (bool, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return false, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/application.changeStage", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	httpReq.SetBasicAuth(c.apiKey, "")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("ashby returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, fmt.Errorf("decoding response: %w", err)
	}
	if !env.Success && len(env.Errors) > 0 {
		return false, fmt.Errorf("ashby refused: %s", strings.Join(env.Errors, "; "))
	}
	return env.Success, nil
}

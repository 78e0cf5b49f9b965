// Package sigaa fetches enrollment records from the SIGAA REST API.
package sigaa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"enrollment_sync/internal/domain/campus"
	"enrollment_sync/internal/domain/enrollment"
	"enrollment_sync/internal/domain/period"

	"github.com/sirupsen/logrus"
)

const enrollmentsPath = "/api/v1/matriculas"

// maxErrorBody caps how much of a failed response ends up in the error.
const maxErrorBody = 512

// ClientConfig contains configuration for the SIGAA API client.
type ClientConfig struct {
	BaseURL string
	Token   string
	// Timeout bounds each request, body included.
	Timeout time.Duration
	Logger  logrus.FieldLogger
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sigaa responded with status %d: %s", e.StatusCode, e.Body)
}

// Client is the SIGAA API client.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     logrus.FieldLogger
}

func NewClient(config ClientConfig) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     config.Logger,
	}
}

// GetEnrollments returns the enrollments of a campus for a period, ordered
// by registration id so that repeated fetches yield the same sequence.
func (c *Client) GetEnrollments(ctx context.Context, cp campus.Campus, p period.Period) ([]enrollment.Record, error) {
	params := url.Values{}
	params.Set("id_campus", cp.ID)
	params.Set("ano", p.Year())
	params.Set("periodo", p.Term())
	if cp.EducationModality != "" {
		params.Set("modalidade_educacao", cp.EducationModality)
	}

	body, err := c.get(ctx, enrollmentsPath+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("get enrollments for campus %s: %w", cp.ID, err)
	}

	records, err := decodeEnrollments(body, c.logger.WithField("campus", cp.Name))
	if err != nil {
		return nil, fmt.Errorf("parse enrollments for campus %s: %w", cp.ID, err)
	}
	c.logger.WithFields(logrus.Fields{"campus": cp.Name, "records": len(records)}).Debug("Fetched enrollments from SIGAA")
	return records, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// decodeEnrollments accepts either an object keyed by registration id or a
// plain array of entries. Entries that cannot be decoded are logged and
// dropped; only a body that is not a collection at all is an error.
func decodeEnrollments(body []byte, log logrus.FieldLogger) ([]enrollment.Record, error) {
	entries, err := splitCollection(body)
	if err != nil {
		return nil, err
	}

	records := make([]enrollment.Record, 0, len(entries))
	for _, e := range entries {
		var d enrollmentDTO
		if err := json.Unmarshal(e.Raw, &d); err != nil {
			log.WithError(err).WithField("registration_id", e.Key).Warn("Skipping malformed enrollment entry")
			continue
		}
		records = append(records, d.toRecord(e.Key))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].RegistrationID < records[j].RegistrationID
	})
	return records, nil
}

var _ enrollment.Provider = (*Client)(nil)

// Package mapon is a thin client for the Mapon fleet telematics API. The
// enrichment engine only ever needs one call: the historical position and
// mileage of a unit at a point in time.
package mapon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/DeadSloth/mapon-backend-assignment/internal/domain"
	"github.com/DeadSloth/mapon-backend-assignment/pkg/logger"
)

const (
	historyPointEndpoint = "unit_data/history_point.json"
	datetimeLayout       = "2006-01-02T15:04:05Z"
	defaultTimeout       = 10 * time.Second
)

// UnitSample is one position+mileage reading for a unit. Every field is
// independently optional; the provider may know where a unit was without
// knowing its mileage, and vice versa.
type UnitSample struct {
	Latitude  *float64
	Longitude *float64
	Odometer  *float64
	SampledAt *time.Time
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *logger.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     log,
	}
}

// history_point.json response. Nested position/mileage objects may be
// absent; their absence is a missing field, not an error.
type historyPointResponse struct {
	Data struct {
		Units []unitPayload `json:"units"`
	} `json:"data"`
}

type unitPayload struct {
	UnitID   int64 `json:"unit_id"`
	Position *struct {
		Value struct {
			Lat *float64 `json:"lat"`
			Lng *float64 `json:"lng"`
		} `json:"value"`
		GMT string `json:"gmt"`
	} `json:"position"`
	Mileage *struct {
		Value *float64 `json:"value"`
	} `json:"mileage"`
}

// FetchSample returns the position+mileage record closest to the given
// timestamp for the unit. Exactly one matching unit record is expected;
// transport errors, malformed responses and zero/multiple results all
// surface as domain.ErrEnrichmentNotFound.
func (c *Client) FetchSample(ctx context.Context, unitID int64, at time.Time) (*UnitSample, error) {
	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("unit_id", strconv.FormatInt(unitID, 10))
	query.Set("datetime", at.UTC().Format(datetimeLayout))
	query.Add("include", "position")
	query.Add("include", "mileage")

	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, historyPointEndpoint, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", domain.ErrEnrichmentNotFound, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn(ctx, "Mapon request failed",
			"unit_id", unitID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: API request failed: %v", domain.ErrEnrichmentNotFound, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrEnrichmentNotFound, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn(ctx, "Mapon returned non-OK status",
			"unit_id", unitID,
			"status", resp.StatusCode,
		)
		return nil, fmt.Errorf("%w: API returned status %d", domain.ErrEnrichmentNotFound, resp.StatusCode)
	}

	var payload historyPointResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON response: %v", domain.ErrEnrichmentNotFound, err)
	}

	if len(payload.Data.Units) != 1 {
		return nil, fmt.Errorf("%w: unit data not found for unit %d", domain.ErrEnrichmentNotFound, unitID)
	}

	return sampleFromPayload(payload.Data.Units[0]), nil
}

func sampleFromPayload(unit unitPayload) *UnitSample {
	sample := &UnitSample{}

	if unit.Position != nil {
		sample.Latitude = unit.Position.Value.Lat
		sample.Longitude = unit.Position.Value.Lng
		if ts, err := time.Parse(datetimeLayout, unit.Position.GMT); err == nil {
			sample.SampledAt = &ts
		}
	}

	if unit.Mileage != nil {
		sample.Odometer = unit.Mileage.Value
	}

	return sample
}

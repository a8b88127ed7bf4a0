package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	apperrors "labbook/pkg/errors"
	"labbook/pkg/logger"
)

// Provider supplies the question ids a booking requester must answer
// for an infrastructure. The engine validates presence only; question
// content and rendering belong to the question-form service.
type Provider interface {
	RequiredQuestionIDs(ctx context.Context, infrastructureID string) ([]string, error)
}

type httpProvider struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

// NewHTTPProvider builds a provider backed by the question-form
// service's REST API.
func NewHTTPProvider(baseURL string, timeout time.Duration, log *logger.Logger) Provider {
	return &httpProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

type requiredQuestionsResponse struct {
	QuestionIDs []string `json:"question_ids"`
}

func (p *httpProvider) RequiredQuestionIDs(ctx context.Context, infrastructureID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/infrastructures/%s/questions/required",
		p.baseURL, url.PathEscape(infrastructureID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build question service request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.Unavailable("question service")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		// Unknown infrastructure means no question form was ever
		// configured for it.
		return nil, nil
	default:
		p.log.Error("Question service returned unexpected status",
			"infrastructure_id", infrastructureID,
			"status", resp.StatusCode,
		)
		return nil, apperrors.Unavailable("question service")
	}

	var decoded requiredQuestionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode question service response: %w", err)
	}

	return decoded.QuestionIDs, nil
}

type noneProvider struct{}

// NewNoneProvider reports no required questions for any
// infrastructure. Used when no question service is configured.
func NewNoneProvider() Provider {
	return noneProvider{}
}

func (noneProvider) RequiredQuestionIDs(context.Context, string) ([]string, error) {
	return nil, nil
}

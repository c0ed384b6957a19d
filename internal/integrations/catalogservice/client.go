package catalogservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client клиент каталога бизнесов и услуг
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        Logger
}

// NewClient создает новый экземпляр клиента каталога
func NewClient(baseURL string, timeout time.Duration, log Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// GetService получает услугу бизнеса
func (c *Client) GetService(ctx context.Context, businessID, serviceID int64) (*Service, error) {
	url := fmt.Sprintf("%s/internal/businesses/%d/services/%d", c.baseURL, businessID, serviceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrInternal, err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to execute request: %v", ErrInternal, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrServiceNotFound
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: unexpected status code %d: %s", ErrInvalidResponse, resp.StatusCode, string(body))
	}

	var service Service
	if err := json.NewDecoder(resp.Body).Decode(&service); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrInvalidResponse, err)
	}

	return &service, nil
}

// GetServiceWithGracefulDegradation получает услугу с graceful degradation
// При недоступности каталога возвращает ErrServiceDegraded, бронирование создаётся без проверки
func (c *Client) GetServiceWithGracefulDegradation(ctx context.Context, businessID, serviceID int64) (*Service, error) {
	service, err := c.GetService(ctx, businessID, serviceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			c.log.Info("Service id=%d not found for business id=%d", serviceID, businessID)
			return nil, err
		}

		c.log.Error("CatalogService unavailable, applying graceful degradation for business=%d service=%d: %v",
			businessID, serviceID, err)
		return nil, fmt.Errorf("%w: business=%d, service=%d, error=%v", ErrServiceDegraded, businessID, serviceID, err)
	}

	return service, nil
}

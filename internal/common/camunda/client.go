package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"plant-advisor/internal/common/config"
	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client owns the gateway connection shared by every job worker.
type Client struct {
	zeebe          zbc.Client
	requestTimeout time.Duration
}

// Connect dials the gateway and waits until a topology request succeeds,
// backing off between attempts.
func Connect(ctx context.Context, cfg config.CamundaConfig, log logger.Logger, attempts int) (*Client, error) {
	var zeebeClient zbc.Client

	err := RetryWithBackoff(ctx, func(ctx context.Context) error {
		c, err := zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.BrokerAddress,
			UsePlaintextConnection: true,
		})
		if err != nil {
			return err
		}

		topoCtx, cancel := context.WithTimeout(ctx, config.GetDuration(cfg.RequestTimeout))
		defer cancel()
		if _, err := c.NewTopologyCommand().Send(topoCtx); err != nil {
			_ = c.Close()
			return mapZeebeError(err, "topology")
		}

		zeebeClient = c
		return nil
	}, attempts, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		return nil, err
	}

	return &Client{zeebe: zeebeClient, requestTimeout: config.GetDuration(cfg.RequestTimeout)}, nil
}

func (c *Client) Zeebe() zbc.Client {
	return c.zeebe
}

func (c *Client) Close() error {
	return c.zeebe.Close()
}

// HealthCheck matches database.Check so the gateway shows up on /ready.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	if _, err := c.zeebe.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

// RetryWithBackoff runs operation up to maxRetries times, doubling the delay
// after each failure. Cancelling ctx stops the loop early.
func RetryWithBackoff(ctx context.Context, operation func(context.Context) error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		if err = operation(ctx); err == nil {
			return nil
		}
		if i == maxRetries-1 {
			break
		}

		log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
			"error":       err.Error(),
			"attempt":     i + 1,
			"maxRetries":  maxRetries,
			"nextRetryIn": delay.String(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled after %d attempts: %w", operationName, i+1, ctx.Err())
		}
		delay *= 2
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
	} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

func mapZeebeError(err error, operation string) error {
	lowerMsg := strings.ToLower(err.Error())
	wrapped := fmt.Errorf("zeebe operation '%s' failed: %w", operation, err)

	switch {
	case strings.Contains(lowerMsg, "timeout") || strings.Contains(lowerMsg, "deadline exceeded"):
		return errors.NewTimeoutError("zeebe", wrapped)
	case isRetryableZeebeError(err):
		return errors.NewExternalServiceError("zeebe", wrapped)
	default:
		return errors.NewInternalError(wrapped)
	}
}

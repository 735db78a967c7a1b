// Package remote talks to an external proving service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zkemail/paytox/internal/app/claimerr"
	"github.com/zkemail/paytox/internal/app/pipeline"
	"github.com/zkemail/paytox/pkg/logger"
	reasoncodes "github.com/zkemail/paytox/pkg/reason_codes"
)

const (
	DefaultTimeout = 5 * time.Minute
	maxBodyBytes   = 16 << 20
)

type Client struct {
	HTTPClient *http.Client
	log        *logger.Logger
}

func New(timeout time.Duration, l *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		log:        logger.OrDefault(l).Named("remote-prover"),
	}
}

// Prove posts the request to endpoint and returns the body of a 2xx answer.
// Other statuses come back as a RemoteProving error carrying status and body.
func (c *Client) Prove(ctx context.Context, endpoint string, in pipeline.RemoteRequest) (json.RawMessage, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSpace(endpoint), bytes.NewReader(body))
	if err != nil {
		return nil, claimerr.Wrap(reasoncodes.ErrRemoteProving, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, claimerr.Wrap(reasoncodes.ErrRemoteProving, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, claimerr.Wrap(reasoncodes.ErrRemoteProving, fmt.Errorf("read response: %w", err))
	}

	c.log.Infof("Remote prover %s answered %d in %s", endpoint, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, claimerr.Remote(resp.StatusCode, string(raw))
	}
	return raw, nil
}

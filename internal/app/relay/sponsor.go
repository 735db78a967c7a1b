package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SponsorClient asks the paymaster-backed account service to wrap calldata in
// a sponsored user operation and hand it to the bundler.
type SponsorClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Bearer     string
}

func NewSponsorClient(baseURL, bearer string) *SponsorClient {
	return &SponsorClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Bearer:     bearer,
	}
}

type UserOperationRequest struct {
	ChainID uint64         `json:"chainId"`
	To      common.Address `json:"to"`
	Value   hexutil.Big    `json:"value"`
	Data    hexutil.Bytes  `json:"data"`
}

type UserOperationResponse struct {
	UserOpHash     string         `json:"userOpHash"`
	AccountAddress common.Address `json:"accountAddress"`
}

func (c *SponsorClient) SendUserOperation(ctx context.Context, in UserOperationRequest) (*UserOperationResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/userops", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("sponsor service http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out UserOperationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode sponsor response: %w", err)
	}
	if out.UserOpHash == "" {
		return nil, fmt.Errorf("sponsor service returned no userOpHash")
	}
	return &out, nil
}

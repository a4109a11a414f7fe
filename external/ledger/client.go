package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/qubic/batch-transfer-engine/entities"
)

const insufficientFundsCode = "INSUFFICIENT_FUNDS"

// Client talks to the external transfer service that holds the account
// balances and performs the individual value transfers.
type Client struct {
	baseUrl    string
	httpClient *http.Client
}

type statusResponse struct {
	LatestTick uint32 `json:"latestTick"`
}

type balanceResponse struct {
	Identity string `json:"identity"`
	Balance  uint64 `json:"balance"`
}

type transferRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Amount      uint64 `json:"amount"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewClient(baseUrl string, timeout time.Duration) *Client {
	return &Client{
		baseUrl: baseUrl,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) CurrentTick(ctx context.Context) (uint32, error) {
	var status statusResponse
	err := c.getJson(ctx, "/v1/status", &status)
	if err != nil {
		return 0, errors.Wrap(err, "getting transfer service status")
	}
	return status.LatestTick, nil
}

func (c *Client) GetBalance(ctx context.Context, identity string) (uint64, error) {
	var balance balanceResponse
	err := c.getJson(ctx, "/v1/balances/"+url.PathEscape(identity), &balance)
	if err != nil {
		return 0, errors.Wrapf(err, "getting balance of [%s]", identity)
	}
	return balance.Balance, nil
}

// Transfer moves the amount from source to destination. The call is atomic on
// the transfer service side. Insufficiency failures are reported as
// entities.ErrInsufficientFunds, all other faults as generic errors.
func (c *Client) Transfer(ctx context.Context, source, destination string, amount uint64) error {
	payload, err := json.Marshal(transferRequest{
		Source:      source,
		Destination: destination,
		Amount:      amount,
	})
	if err != nil {
		return errors.Wrap(err, "marshalling transfer request")
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl+"/v1/transfers", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "creating transfer request")
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return errors.Wrap(err, "calling transfer api")
	}
	defer response.Body.Close()

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return nil
	}

	var errorBody errorResponse
	if err := json.NewDecoder(response.Body).Decode(&errorBody); err == nil && errorBody.Code == insufficientFundsCode {
		return errors.Wrapf(entities.ErrInsufficientFunds, "transferring [%d] from [%s]", amount, source)
	}
	return fmt.Errorf("transfer api returned status [%d]", response.StatusCode)
}

func (c *Client) getJson(ctx context.Context, path string, target any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseUrl+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %v", err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("calling [%s]: %v", path, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("calling [%s]: status [%d]", path, response.StatusCode)
	}

	err = json.NewDecoder(response.Body).Decode(target)
	if err != nil {
		return fmt.Errorf("decoding response: %v", err)
	}
	return nil
}

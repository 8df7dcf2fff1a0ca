package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"context"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/cenkalti/backoff/v4"
	"github.com/credentio/bulkissue/internal/pkg/agent/api"
	"github.com/credentio/bulkissue/internal/pkg/utils"
)

// Client comunicates with wallet agent service
type Client struct {
	httpclient *http.Client
	issueURL   string
	timeout    time.Duration
	backoff    func() backoff.BackOff
}

// NewClient creates a wallet agent client
func NewClient(issueURL string) (*Client, error) {
	res := Client{}
	if issueURL == "" {
		return nil, fmt.Errorf("no issueURL")
	}
	res.issueURL = issueURL
	res.timeout = time.Second * 50
	res.httpclient = agentHTTPClient()
	res.backoff = newSimpleBackoff
	return &res, nil
}

type issueResponse struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail,omitempty"`
}

// IssueCredential asks the agent to issue one credential with out-of-band delivery.
// Transient failures are retried with backoff, a rejected payload is returned
// as ErrIssuance carrying the agent's response detail
func (sp *Client) IssueCredential(ctx context.Context, data *api.IssueData) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("can't marshal issue data: %w", err)
	}
	_, err = goapp.InvokeWithBackoff(ctx,
		func() (interface{}, bool, error) {
			ctx, cancelF := context.WithTimeout(ctx, sp.timeout)
			defer cancelF()
			req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/credentials/issue-oob", sp.issueURL), bytes.NewReader(body))
			if err != nil {
				return nil, false, err
			}
			req.Header.Set("Content-Type", "application/json")
			req = req.WithContext(ctx)
			goapp.Log.Debug().Str("url", req.URL.String()).Str("method", req.Method).Msg("call")
			resp, err := sp.httpclient.Do(req)
			if err != nil {
				return nil, goapp.IsRetryableErr(err), fmt.Errorf("can't call: %w", err)
			}
			defer func() {
				_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10000))
				_ = resp.Body.Close()
			}()
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				br, _ := io.ReadAll(io.LimitReader(resp.Body, 10000))
				err := fmt.Errorf("can't invoke '%s': wrong response code %d", req.URL.String(), resp.StatusCode)
				if goapp.IsRetryableCode(resp.StatusCode) {
					return nil, true, err
				}
				return nil, false, utils.NewErrIssuance(err, string(br))
			}
			var respData issueResponse
			if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
				return nil, false, fmt.Errorf("can't unmarshal: %w", err)
			}
			if !respData.Success {
				return nil, false, utils.NewErrIssuance(fmt.Errorf("agent rejected issuance"), respData.Detail)
			}
			return nil, false, nil
		}, sp.backoff())
	return err
}

func agentHTTPClient() *http.Client {
	return &http.Client{Transport: newTransport()}
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxIdleConns = 100
	res.MaxConnsPerHost = 100
	res.MaxIdleConnsPerHost = 50
	res.DialContext = (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	return res
}

func newSimpleBackoff() backoff.BackOff {
	res := backoff.NewExponentialBackOff()
	res.InitialInterval = time.Second * 2
	return backoff.WithMaxRetries(res, 3)
}

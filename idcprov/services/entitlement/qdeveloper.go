// Package entitlement assigns Amazon Q Developer subscriptions to identity
// store users. The service has no SDK client, so requests are signed and sent
// directly.
package entitlement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"go.uber.org/zap"

	"idcprov/idcprov/config"
	"idcprov/idcprov/types"
	httputils "idcprov/idcprov/utils/http"
	"idcprov/idcprov/utils/logging"
)

const contentType = "application/x-amz-json-1.0"

type assignmentRequest struct {
	PrincipalID   string `json:"principalId"`
	PrincipalType string `json:"principalType"`
}

type serviceError struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
	Upper   string `json:"Message"`
}

// Client calls the CreateAssignment operation.
type Client struct {
	cfg         config.QConfig
	credentials aws.CredentialsProvider
	httpClient  *http.Client
	signer      *v4.Signer
	now         func() time.Time
}

func NewClient(cfg config.QConfig, creds aws.CredentialsProvider, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		cfg:         cfg,
		credentials: creds,
		httpClient:  httpClient,
		signer:      v4.NewSigner(),
		now:         time.Now,
	}
}

// CreateAssignment subscribes principalID. Any status other than 200 is a
// failure carrying the raw response body.
func (c *Client) CreateAssignment(ctx context.Context, principalID, principalType string) error {
	defer logging.LogDuration(ctx, "q_create_assignment")()

	if principalType == "" {
		principalType = c.cfg.PrincipalType
	}
	req, payload, err := httputils.NewJSONRequest(ctx, c.cfg.Endpoint, contentType, assignmentRequest{
		PrincipalID:   principalID,
		PrincipalType: principalType,
	})
	if err != nil {
		return c.localError(err)
	}
	req.Header.Set("X-Amz-Target", c.cfg.Target)
	req.Header.Set("X-Amz-User-Agent", c.cfg.UserAgent)

	if err := c.sign(ctx, req, payload); err != nil {
		return c.localError(err)
	}

	resp, err := httputils.Do(c.httpClient, req)
	if err != nil {
		return &types.RemoteCallError{
			Service:   c.cfg.SigningName,
			Operation: c.operation(),
			Raw:       err.Error(),
			Err:       err,
		}
	}
	if resp.StatusCode != http.StatusOK {
		rerr := &types.RemoteCallError{
			Service:   c.cfg.SigningName,
			Operation: c.operation(),
			Raw:       fmt.Sprintf("HTTP %d - %s", resp.StatusCode, strings.TrimSpace(string(resp.Body))),
		}
		var se serviceError
		if json.Unmarshal(resp.Body, &se) == nil {
			rerr.Code = se.Type[strings.LastIndex(se.Type, "#")+1:]
			rerr.Message = se.Message
			if rerr.Message == "" {
				rerr.Message = se.Upper
			}
		}
		logging.ErrorLogger.Error("create assignment failed",
			zap.String("run_id", logging.RunID(ctx)),
			zap.String("principal_id", principalID),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(resp.Body)),
		)
		return rerr
	}
	return nil
}

func (c *Client) sign(ctx context.Context, req *http.Request, payload []byte) error {
	creds, err := c.credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve AWS credentials: %w", err)
	}
	sum := sha256.Sum256(payload)
	return c.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]), c.cfg.SigningName, c.cfg.Region, c.now())
}

func (c *Client) operation() string {
	if i := strings.LastIndex(c.cfg.Target, "."); i >= 0 {
		return c.cfg.Target[i+1:]
	}
	return c.cfg.Target
}

func (c *Client) localError(err error) error {
	return &types.RemoteCallError{
		Service:   c.cfg.SigningName,
		Operation: c.operation(),
		Raw:       err.Error(),
		Err:       err,
	}
}

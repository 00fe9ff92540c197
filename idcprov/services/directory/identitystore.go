package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/identitystore"
	istypes "github.com/aws/aws-sdk-go-v2/service/identitystore/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"idcprov/idcprov/types"
	"idcprov/idcprov/utils/logging"
)

const serviceName = "identitystore"

// API is the subset of the identity store SDK client used here.
type API interface {
	CreateUser(ctx context.Context, params *identitystore.CreateUserInput, optFns ...func(*identitystore.Options)) (*identitystore.CreateUserOutput, error)
	ListUsers(ctx context.Context, params *identitystore.ListUsersInput, optFns ...func(*identitystore.Options)) (*identitystore.ListUsersOutput, error)
}

// Client creates users in an IAM Identity Center identity store.
type Client struct {
	api API
}

// NewClient builds an SDK client from cfg. SDK retries are disabled: a
// failed call is reported once and never replayed.
func NewClient(cfg aws.Config) *Client {
	return NewClientWithAPI(identitystore.NewFromConfig(cfg, func(o *identitystore.Options) {
		o.RetryMaxAttempts = 1
	}))
}

func NewClientWithAPI(api API) *Client {
	return &Client{api: api}
}

// CreateUser registers rec with a single primary work email and returns the
// new user id.
func (c *Client) CreateUser(ctx context.Context, storeID string, rec types.UserRecord) (string, error) {
	defer logging.LogDuration(ctx, "identitystore_create_user")()

	out, err := c.api.CreateUser(ctx, &identitystore.CreateUserInput{
		IdentityStoreId: aws.String(storeID),
		UserName:        aws.String(rec.Username),
		DisplayName:     aws.String(rec.DisplayName),
		Name: &istypes.Name{
			GivenName:  aws.String(rec.GivenName),
			FamilyName: aws.String(rec.FamilyName),
		},
		Emails: []istypes.Email{{
			Value:   aws.String(rec.Email),
			Type:    aws.String("Work"),
			Primary: true,
		}},
	})
	if err != nil {
		rerr := wrapError("CreateUser", err)
		logging.ErrorLogger.Error("create user failed",
			zap.String("run_id", logging.RunID(ctx)),
			zap.String("username", rec.Username),
			zap.String("code", rerr.Code),
			zap.Error(err),
		)
		return "", rerr
	}
	userID := aws.ToString(out.UserId)
	if userID == "" {
		return "", &types.RemoteCallError{
			Service:   serviceName,
			Operation: "CreateUser",
			Raw:       "CreateUser returned no user id",
		}
	}
	return userID, nil
}

// ListUsers returns up to limit user ids from the store; limit <= 0 lists
// every user.
func (c *Client) ListUsers(ctx context.Context, storeID string, limit int) ([]string, error) {
	defer logging.LogDuration(ctx, "identitystore_list_users")()

	input := &identitystore.ListUsersInput{IdentityStoreId: aws.String(storeID)}
	if limit > 0 && limit <= 100 {
		input.MaxResults = aws.Int32(int32(limit))
	}

	var ids []string
	paginator := identitystore.NewListUsersPaginator(c.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrapError("ListUsers", err)
		}
		for _, u := range page.Users {
			ids = append(ids, aws.ToString(u.UserId))
			if limit > 0 && len(ids) >= limit {
				return ids, nil
			}
		}
	}
	return ids, nil
}

var hints = map[string]string{
	"ConflictException":         "user already exists",
	"ValidationException":       "the identity store rejected the user attributes",
	"AccessDeniedException":     "check IAM permissions for identitystore:CreateUser",
	"ResourceNotFoundException": "identity store not found, check the identity store id",
	"ThrottlingException":       "request was throttled, rerun the failed rows later",
}

// Hint returns an operator-facing explanation for a service error code.
func Hint(code string) string {
	return hints[code]
}

func wrapError(op string, err error) *types.RemoteCallError {
	rerr := &types.RemoteCallError{
		Service:   serviceName,
		Operation: op,
		Raw:       err.Error(),
		Err:       err,
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		rerr.Code = apiErr.ErrorCode()
		rerr.Message = apiErr.ErrorMessage()
	}
	return rerr
}

// Describe formats a remote error for the per-row failure line.
func Describe(err error) string {
	var rerr *types.RemoteCallError
	if !errors.As(err, &rerr) || rerr.Code == "" {
		return err.Error()
	}
	if hint := Hint(rerr.Code); hint != "" {
		return fmt.Sprintf("%s (%s)", rerr.Raw, hint)
	}
	return rerr.Raw
}

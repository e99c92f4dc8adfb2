package dynamo

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-core/internal/domain"
)

// ExternalLoginRepo manages provider-bound login records.
// PK: account_id, SK: login_key ("provider#providerKey") — the composite sort
// key enforces per-account pair uniqueness for free. The login_key-index GSI
// answers the cross-account "who owns this external identity" lookup.
type ExternalLoginRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewExternalLoginRepo(client *dynamodb.Client, tableName string) *ExternalLoginRepo {
	return &ExternalLoginRepo{client: client, tableName: tableName}
}

func (r *ExternalLoginRepo) Put(ctx context.Context, l *domain.ExternalLogin) error {
	item, err := attributevalue.MarshalMap(l)
	if err != nil {
		return fmt.Errorf("marshal external login: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ExternalLoginRepo) Get(ctx context.Context, accountID, loginKey string) (*domain.ExternalLogin, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("account_id", accountID, "login_key", loginKey),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("external login not found: %w", domain.ErrNotFound)
	}
	var l domain.ExternalLogin
	if err := attributevalue.UnmarshalMap(out.Item, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *ExternalLoginRepo) ListByAccount(ctx context.Context, accountID string) ([]domain.ExternalLogin, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("account_id = :aid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":aid": &types.AttributeValueMemberS{Value: accountID},
		},
	})
	if err != nil {
		return nil, err
	}
	var logins []domain.ExternalLogin
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &logins); err != nil {
		return nil, err
	}
	return logins, nil
}

// GetByLoginKey finds whichever account owns a (provider, providerKey) pair,
// via the cross-account GSI.
func (r *ExternalLoginRepo) GetByLoginKey(ctx context.Context, loginKey string) (*domain.ExternalLogin, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("login_key-index"),
		KeyConditionExpression: aws.String("login_key = :lk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lk": &types.AttributeValueMemberS{Value: loginKey},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("external login not found: %w", domain.ErrNotFound)
	}
	var l domain.ExternalLogin
	if err := attributevalue.UnmarshalMap(out.Items[0], &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// DeleteByProvider removes the account's login for the given provider.
// Returns ErrNotFound when the account has no login from that provider.
func (r *ExternalLoginRepo) DeleteByProvider(ctx context.Context, accountID, provider string) error {
	logins, err := r.ListByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	prefix := provider + "#"
	for _, l := range logins {
		if strings.HasPrefix(l.LoginKey, prefix) {
			_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(r.tableName),
				Key:       compositeKey("account_id", accountID, "login_key", l.LoginKey),
			})
			return err
		}
	}
	return fmt.Errorf("no login for provider %s: %w", provider, domain.ErrNotFound)
}

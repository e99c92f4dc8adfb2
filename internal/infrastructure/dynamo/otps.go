package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-core/internal/domain"
)

// OtpRepo manages one-time passcodes.
// PK: account_id, SK: otp_id. The expires_at attribute doubles as the table's
// TTL so DynamoDB garbage-collects stale codes on its own.
type OtpRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOtpRepo(client *dynamodb.Client, tableName string) *OtpRepo {
	return &OtpRepo{client: client, tableName: tableName}
}

func (r *OtpRepo) Put(ctx context.Context, o *domain.OneTimePasscode) error {
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// ListCandidates returns the account's unused, unexpired codes matching code
// and purpose. Callers apply the deterministic winner selection.
func (r *OtpRepo) ListCandidates(ctx context.Context, accountID, code string, purpose domain.OtpPurpose, nowUnix int64) ([]domain.OneTimePasscode, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("account_id = :aid"),
		FilterExpression:       aws.String("code = :c AND purpose = :p AND used = :f AND expires_at >= :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":aid": &types.AttributeValueMemberS{Value: accountID},
			":c":   &types.AttributeValueMemberS{Value: code},
			":p":   &types.AttributeValueMemberS{Value: string(purpose)},
			":f":   &types.AttributeValueMemberBOOL{Value: false},
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", nowUnix)},
		},
	})
	if err != nil {
		return nil, err
	}
	var otps []domain.OneTimePasscode
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &otps); err != nil {
		return nil, err
	}
	return otps, nil
}

// ListByPurpose returns the account's unused, unexpired codes for a purpose
// regardless of code value (used by the strict redemption path to count
// wrong-code attempts).
func (r *OtpRepo) ListByPurpose(ctx context.Context, accountID string, purpose domain.OtpPurpose, nowUnix int64) ([]domain.OneTimePasscode, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("account_id = :aid"),
		FilterExpression:       aws.String("purpose = :p AND used = :f AND expires_at >= :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":aid": &types.AttributeValueMemberS{Value: accountID},
			":p":   &types.AttributeValueMemberS{Value: string(purpose)},
			":f":   &types.AttributeValueMemberBOOL{Value: false},
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", nowUnix)},
		},
	})
	if err != nil {
		return nil, err
	}
	var otps []domain.OneTimePasscode
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &otps); err != nil {
		return nil, err
	}
	return otps, nil
}

// MarkUsed flips the used flag with a conditional write: it succeeds only if
// the code is still unused, which makes redemption an at-most-one-winner
// operation under concurrent attempts. A lost race surfaces as ErrConflict.
func (r *OtpRepo) MarkUsed(ctx context.Context, accountID, otpID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("account_id", accountID, "otp_id", otpID),
		UpdateExpression:    aws.String("SET #u = :t"),
		ConditionExpression: aws.String("#u = :f"),
		ExpressionAttributeNames: map[string]string{
			"#u": fieldUsed,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("otp already used: %w", domain.ErrConflict)
	}
	return err
}

// IncrementAttempts bumps the wrong-guess counter on a code.
func (r *OtpRepo) IncrementAttempts(ctx context.Context, accountID, otpID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              compositeKey("account_id", accountID, "otp_id", otpID),
		UpdateExpression: aws.String("ADD #a :one"),
		ExpressionAttributeNames: map[string]string{
			"#a": fieldAttempts,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	return err
}

package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-nosql/internal/domain"
)

// RecoveryCodeRepo stores one password-recovery code per user. PK: user_id.
type RecoveryCodeRepo struct {
	client    API
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

func NewRecoveryCodeRepo(client API, tableName string, ttl time.Duration) *RecoveryCodeRepo {
	return &RecoveryCodeRepo{client: client, tableName: tableName, ttl: ttl, now: time.Now}
}

// Create fails with ErrConflict while a live code exists for the user.
func (r *RecoveryCodeRepo) Create(ctx context.Context, c *domain.PasswordRecoveryCode) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal recovery code: %w", err)
	}
	item[fieldExpiresAt] = unixAttr(c.CreatedAt.Add(r.ttl))

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#id) OR #e <= :now"),
		ExpressionAttributeNames: map[string]string{
			"#id": fieldUserID,
			"#e":  fieldExpiresAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": unixAttr(r.now()),
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("recovery code for %s: %w", c.UserID, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("put recovery code: %w", err)
	}
	return nil
}

func (r *RecoveryCodeRepo) FindByUserID(ctx context.Context, userID string) (*domain.PasswordRecoveryCode, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get recovery code: %w", err)
	}
	if out.Item == nil || !liveItem(out.Item, r.now()) {
		return nil, fmt.Errorf("recovery code: %w", domain.ErrNotFound)
	}
	var c domain.PasswordRecoveryCode
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal recovery code: %w", err)
	}
	return &c, nil
}

func (r *RecoveryCodeRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldUserID, userID),
	})
	if err != nil {
		return fmt.Errorf("delete recovery code: %w", err)
	}
	return nil
}

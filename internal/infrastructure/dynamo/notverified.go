package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-nosql/internal/config"
	"github.com/go-auth-nosql/internal/domain"
)

// NotVerifiedUserRepo stores pending registrations. Rows carry an expires_at
// TTL attribute so DynamoDB reaps them after the retention window.
type NotVerifiedUserRepo struct {
	client    API
	tableName string
	claims    claimTable
	retention time.Duration
	now       func() time.Time
}

func NewNotVerifiedUserRepo(client API, tables config.DynamoTables, retention time.Duration) *NotVerifiedUserRepo {
	return &NotVerifiedUserRepo{
		client:    client,
		tableName: tables.NotVerifiedUsers,
		claims:    claimTable{tableName: tables.EmailClaims},
		retention: retention,
		now:       time.Now,
	}
}

func (r *NotVerifiedUserRepo) Create(ctx context.Context, u *domain.NotVerifiedUser) error {
	now := r.now()
	expiresAt := u.CreatedAt.Add(r.retention)

	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal not-verified user: %w", err)
	}
	item[fieldExpiresAt] = unixAttr(expiresAt)

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			r.claims.put(collectionNotVerified, u.Email, u.ID, expiresAt, now),
			{
				Put: &types.Put{
					TableName:           aws.String(r.tableName),
					Item:                item,
					ConditionExpression: aws.String("attribute_not_exists(#id) OR #e <= :now"),
					ExpressionAttributeNames: map[string]string{
						"#id": fieldUserID,
						"#e":  fieldExpiresAt,
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":now": unixAttr(now),
					},
				},
			},
		},
	})
	if isTxConditionFailed(err) {
		return fmt.Errorf("not-verified user %s: %w", u.Email, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create not-verified user: %w", err)
	}
	return nil
}

func (r *NotVerifiedUserRepo) FindByEmail(ctx context.Context, email string) (*domain.NotVerifiedUser, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(emailIndex),
		KeyConditionExpression: aws.String("#e = :email"),
		ExpressionAttributeNames: map[string]string{
			"#e": fieldEmail,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":email": &types.AttributeValueMemberS{Value: email},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query not-verified user by email: %w", err)
	}
	now := r.now()
	for _, item := range out.Items {
		if !liveItem(item, now) {
			continue
		}
		var u domain.NotVerifiedUser
		if err := attributevalue.UnmarshalMap(item, &u); err != nil {
			return nil, fmt.Errorf("unmarshal not-verified user: %w", err)
		}
		return &u, nil
	}
	return nil, fmt.Errorf("not-verified user: %w", domain.ErrNotFound)
}

// DeleteByID removes the row together with its email claim. Deleting a missing row is not an error.
func (r *NotVerifiedUserRepo) DeleteByID(ctx context.Context, userID string) error {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("get not-verified user: %w", err)
	}
	if out.Item == nil {
		return nil
	}
	var u domain.NotVerifiedUser
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return fmt.Errorf("unmarshal not-verified user: %w", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			r.claims.release(collectionNotVerified, u.Email, userID),
			{
				Delete: &types.Delete{
					TableName: aws.String(r.tableName),
					Key:       strKey(fieldUserID, userID),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete not-verified user: %w", err)
	}
	return nil
}

// UpdateVerificationCode replaces the code only if code_updated_at still equals prevUpdatedAt.
func (r *NotVerifiedUserRepo) UpdateVerificationCode(ctx context.Context, userID string, prevUpdatedAt time.Time, code string, updatedAt time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldCode:          code,
		fieldCodeUpdatedAt: updatedAt,
	})
	if err != nil {
		return err
	}
	prev, err := attributevalue.Marshal(prevUpdatedAt)
	if err != nil {
		return fmt.Errorf("marshal code_updated_at: %w", err)
	}
	ue.Names["#id"] = fieldUserID
	ue.Names["#prev"] = fieldCodeUpdatedAt
	ue.Names["#e"] = fieldExpiresAt
	ue.Values[":prev"] = prev
	ue.Values[":now"] = unixAttr(r.now())

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.tableName),
		Key:                                 strKey(fieldUserID, userID),
		UpdateExpression:                    aws.String(ue.Expr),
		ConditionExpression:                 aws.String("attribute_exists(#id) AND #prev = :prev AND #e > :now"),
		ExpressionAttributeNames:            ue.Names,
		ExpressionAttributeValues:           ue.Values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		if ccf.Item == nil || !liveItem(ccf.Item, r.now()) {
			return fmt.Errorf("not-verified user: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("verification code changed concurrently: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update verification code: %w", err)
	}
	return nil
}

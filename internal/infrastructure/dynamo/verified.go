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

// VerifiedUserRepo stores confirmed accounts. PK: user_id; GSI: email-index.
type VerifiedUserRepo struct {
	client    API
	tableName string
	claims    claimTable
	now       func() time.Time
}

func NewVerifiedUserRepo(client API, tables config.DynamoTables) *VerifiedUserRepo {
	return &VerifiedUserRepo{
		client:    client,
		tableName: tables.VerifiedUsers,
		claims:    claimTable{tableName: tables.EmailClaims},
		now:       time.Now,
	}
}

func (r *VerifiedUserRepo) Create(ctx context.Context, u *domain.VerifiedUser) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal verified user: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			r.claims.put(collectionVerified, u.Email, u.ID, time.Time{}, r.now()),
			{
				Put: &types.Put{
					TableName:           aws.String(r.tableName),
					Item:                item,
					ConditionExpression: aws.String("attribute_not_exists(#id)"),
					ExpressionAttributeNames: map[string]string{
						"#id": fieldUserID,
					},
				},
			},
		},
	})
	if isTxConditionFailed(err) {
		return fmt.Errorf("verified user %s: %w", u.Email, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create verified user: %w", err)
	}
	return nil
}

func (r *VerifiedUserRepo) FindByEmail(ctx context.Context, email string) (*domain.VerifiedUser, error) {
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
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query verified user by email: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("verified user: %w", domain.ErrNotFound)
	}
	var u domain.VerifiedUser
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, fmt.Errorf("unmarshal verified user: %w", err)
	}
	return &u, nil
}

func (r *VerifiedUserRepo) FindByID(ctx context.Context, userID string) (*domain.VerifiedUser, error) {
	return r.getByID(ctx, userID, false)
}

// getByID reads one account. consistent must be set when the row may have
// been written moments ago, as in the rollback of a verification.
func (r *VerifiedUserRepo) getByID(ctx context.Context, userID string, consistent bool) (*domain.VerifiedUser, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(consistent),
	})
	if err != nil {
		return nil, fmt.Errorf("get verified user: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verified user: %w", domain.ErrNotFound)
	}
	var u domain.VerifiedUser
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal verified user: %w", err)
	}
	return &u, nil
}

func (r *VerifiedUserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldPasswordHash: passwordHash})
	if err != nil {
		return err
	}
	ue.Names["#id"] = fieldUserID

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("verified user: %w", domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// DeleteByID removes the account together with its email claim. Deleting a missing row is not an error.
func (r *VerifiedUserRepo) DeleteByID(ctx context.Context, userID string) error {
	u, err := r.getByID(ctx, userID, true)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			r.claims.release(collectionVerified, u.Email, userID),
			{
				Delete: &types.Delete{
					TableName: aws.String(r.tableName),
					Key:       strKey(fieldUserID, userID),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete verified user: %w", err)
	}
	return nil
}

package dynamo

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Email uniqueness is enforced through a claims table: every user row is
// written in the same transaction as a claim item keyed by collection and
// email. GSIs are eventually consistent and cannot carry a uniqueness check.
const (
	collectionNotVerified = "not_verified"
	collectionVerified    = "verified"
)

type claimTable struct {
	tableName string
}

func claimKey(collection, email string) string {
	return collection + "#" + email
}

// put claims the email for userID. An existing claim only yields when its TTL has passed.
// A zero expiresAt writes a claim that never expires.
func (c claimTable) put(collection, email, userID string, expiresAt, now time.Time) types.TransactWriteItem {
	item := map[string]types.AttributeValue{
		fieldClaim:  &types.AttributeValueMemberS{Value: claimKey(collection, email)},
		fieldUserID: &types.AttributeValueMemberS{Value: userID},
	}
	if !expiresAt.IsZero() {
		item[fieldExpiresAt] = unixAttr(expiresAt)
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(c.tableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(#c) OR #e <= :now"),
			ExpressionAttributeNames: map[string]string{
				"#c": fieldClaim,
				"#e": fieldExpiresAt,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":now": unixAttr(now),
			},
		},
	}
}

// release drops the claim unless another user has taken it over since.
func (c claimTable) release(collection, email, userID string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName:           aws.String(c.tableName),
			Key:                 strKey(fieldClaim, claimKey(collection, email)),
			ConditionExpression: aws.String("attribute_not_exists(#c) OR #u = :uid"),
			ExpressionAttributeNames: map[string]string{
				"#c": fieldClaim,
				"#u": fieldUserID,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uid": &types.AttributeValueMemberS{Value: userID},
			},
		},
	}
}

package dynamo

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdateExpr_SingleField(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldPasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, "SET #f0 = :v0", ue.Expr)
	assert.Equal(t, map[string]string{"#f0": fieldPasswordHash}, ue.Names)
	_, ok := ue.Values[":v0"]
	assert.True(t, ok)
}

func TestBuildUpdateExpr_MultipleFields_Deterministic(t *testing.T) {
	updates := map[string]interface{}{
		fieldCodeUpdatedAt: "2024-01-01T00:00:00Z",
		fieldCode:          "123456",
		fieldExpiresAt:     1700000000,
	}
	ue1, err := buildUpdateExpr(updates)
	require.NoError(t, err)
	ue2, err := buildUpdateExpr(updates)
	require.NoError(t, err)

	assert.Equal(t, ue1.Expr, ue2.Expr)

	// code < code_updated_at < expires_at
	assert.Equal(t, fieldCode, ue1.Names["#f0"])
	assert.Equal(t, fieldCodeUpdatedAt, ue1.Names["#f1"])
	assert.Equal(t, fieldExpiresAt, ue1.Names["#f2"])
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2", ue1.Expr)
}

func TestBuildUpdateExpr_EmptyMap_ReturnsError(t *testing.T) {
	_, err := buildUpdateExpr(map[string]interface{}{})
	assert.ErrorContains(t, err, "no fields to update")
}

func TestLiveItem(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	expiresAt := func(ts int64) map[string]types.AttributeValue {
		return map[string]types.AttributeValue{
			fieldExpiresAt: &types.AttributeValueMemberN{Value: strconv.FormatInt(ts, 10)},
		}
	}

	assert.True(t, liveItem(map[string]types.AttributeValue{}, now))
	assert.True(t, liveItem(expiresAt(now.Unix()+1), now))
	assert.False(t, liveItem(expiresAt(now.Unix()), now))
	assert.False(t, liveItem(expiresAt(now.Unix()-60), now))
}

func TestConditionFailureDetection(t *testing.T) {
	assert.True(t, isConditionFailed(&types.ConditionalCheckFailedException{}))
	assert.False(t, isConditionFailed(errors.New("boom")))

	cancelled := &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String("ConditionalCheckFailed")},
		},
	}
	assert.True(t, isTxConditionFailed(cancelled))

	throttled := &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: aws.String("ThrottlingError")}},
	}
	assert.False(t, isTxConditionFailed(throttled))
}

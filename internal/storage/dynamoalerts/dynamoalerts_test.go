package dynamoalerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type putterMock struct {
	mock.Mock
}

func (m *putterMock) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	return &dynamodb.PutItemOutput{}, args.Error(0)
}

func TestArchive_Publish(t *testing.T) {
	pm := &putterMock{}
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	pm.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		owner, ok := in.Item["owner_id"].(*types.AttributeValueMemberS)
		if !ok || owner.Value != "o" {
			return false
		}
		sk, ok := in.Item["sk"].(*types.AttributeValueMemberS)
		if !ok || sk.Value != "2025-03-01T12:00:00Z#a1" {
			return false
		}
		exp, ok := in.Item["expires_at"].(*types.AttributeValueMemberN)
		return ok && exp.Value == "1743422400" && *in.TableName == "fleetsync-alerts"
	})).Return(nil).Once()

	a := newArchive(pm, "fleetsync-alerts")
	require.Equal(t, "dynamodb", a.Name())
	err := a.Publish(context.Background(), []*models.Alert{{
		ID: "a1", OwnerID: "o", ShipmentID: "TIVE-1",
		AlertType: models.AlertTemperatureExcursion, Severity: models.SeverityCritical,
		Message: "out of range", CreatedAt: created,
	}})
	require.NoError(t, err)
	pm.AssertExpectations(t)
}

func TestArchive_PublishError(t *testing.T) {
	pm := &putterMock{}
	pm.On("PutItem", mock.Anything, mock.Anything).Return(errors.New("throttled")).Once()

	err := newArchive(pm, "t").Publish(context.Background(), []*models.Alert{{ID: "a", OwnerID: "o", CreatedAt: time.Now()}, {ID: "b"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "throttled")
	pm.AssertNumberOfCalls(t, "PutItem", 1)
}

package dynamoalerts

import (
	"context"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/pkg/errors"
)

const defaultRetention = 30 * 24 * time.Hour

type itemPutter interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Archive keeps a TTL-bounded copy of every alert in DynamoDB
// (partition key owner_id, sort key sk = "<created_at>#<id>").
type Archive struct {
	client    itemPutter
	tableName string
	retention time.Duration
}

type item struct {
	OwnerID    string `dynamodbav:"owner_id"`
	SK         string `dynamodbav:"sk"`
	AlertID    string `dynamodbav:"alert_id"`
	ShipmentID string `dynamodbav:"shipment_id"`
	AlertType  string `dynamodbav:"alert_type"`
	Severity   string `dynamodbav:"severity"`
	Message    string `dynamodbav:"message"`
	CreatedAt  int64  `dynamodbav:"created_at"`
	ExpiresAt  int64  `dynamodbav:"expires_at"`
}

// NewClient loads the default AWS credential chain. endpoint overrides the
// service URL (DynamoDB Local, LocalStack).
func NewClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func New(client *dynamodb.Client, tableName string) *Archive {
	return newArchive(client, tableName)
}

func newArchive(client itemPutter, tableName string) *Archive {
	return &Archive{client: client, tableName: tableName, retention: defaultRetention}
}

func (a *Archive) Name() string { return "dynamodb" }

func (a *Archive) Publish(ctx context.Context, alerts []*models.Alert) error {
	for _, al := range alerts {
		it := item{
			OwnerID:    al.OwnerID,
			SK:         al.CreatedAt.UTC().Format(time.RFC3339Nano) + "#" + al.ID,
			AlertID:    al.ID,
			ShipmentID: al.ShipmentID,
			AlertType:  string(al.AlertType),
			Severity:   string(al.Severity),
			Message:    al.Message,
			CreatedAt:  al.CreatedAt.Unix(),
			ExpiresAt:  al.CreatedAt.Add(a.retention).Unix(),
		}
		av, err := attributevalue.MarshalMap(it)
		if err != nil {
			return errors.Wrap(err, "marshal alert")
		}
		if _, err := a.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(a.tableName),
			Item:      av,
		}); err != nil {
			return errors.Wrap(err, "dynamodb put alert")
		}
	}
	return nil
}

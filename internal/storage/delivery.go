// Package storage keeps the delivery audit trail in DynamoDB. Every send
// attempt made by the dispatcher is written as one item partitioned by UTC
// day, so operators can list what went out without touching the SQL store.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/ignite/notify-engine/internal/pkg/logger"
)

const (
	deliveryTTL      = 90 * 24 * time.Hour
	defaultRecentMax = 50
	dayLayout        = "2006-01-02"
	sortKeyLayout    = "2006-01-02T15:04:05.000Z"
)

// Delivery statuses.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// DynamoAPI is the subset of the DynamoDB client the delivery log uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Delivery is one audited send attempt. Recipient is stored redacted.
type Delivery struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// deliveryItem represents a delivery stored in DynamoDB
type deliveryItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	ID        string `dynamodbav:"ID"`
	Recipient string `dynamodbav:"Recipient"`
	Subject   string `dynamodbav:"Subject"`
	Status    string `dynamodbav:"Status"`
	Error     string `dynamodbav:"Error,omitempty"`
	Timestamp string `dynamodbav:"Timestamp"`
	TTL       int64  `dynamodbav:"TTL,omitempty"`
}

// DeliveryLog writes and lists audited deliveries.
type DeliveryLog struct {
	client DynamoAPI
	table  string
	now    func() time.Time
}

// NewDeliveryLog creates a delivery log on an existing client.
func NewDeliveryLog(client DynamoAPI, table string) *DeliveryLog {
	return &DeliveryLog{client: client, table: table, now: time.Now}
}

// NewDeliveryLogFromConfig loads the default AWS configuration for region
// and returns a delivery log on table.
func NewDeliveryLogFromConfig(ctx context.Context, region, table string) (*DeliveryLog, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewDeliveryLog(dynamodb.NewFromConfig(cfg), table), nil
}

func dayKey(t time.Time) string {
	return "DELIVERY#" + t.UTC().Format(dayLayout)
}

// Record stores d. ID and SentAt are filled in when empty; the recipient is
// redacted before it leaves the process.
func (l *DeliveryLog) Record(ctx context.Context, d Delivery) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.SentAt.IsZero() {
		d.SentAt = l.now()
	}
	at := d.SentAt.UTC()

	item := deliveryItem{
		PK:        dayKey(at),
		SK:        at.Format(sortKeyLayout) + "#" + d.ID,
		ID:        d.ID,
		Recipient: logger.RedactEmail(d.Recipient),
		Subject:   d.Subject,
		Status:    d.Status,
		Error:     d.Error,
		Timestamp: at.Format(time.RFC3339Nano),
		TTL:       at.Add(deliveryTTL).Unix(),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling delivery: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting delivery to DynamoDB: %w", err)
	}
	return nil
}

// Recent returns up to limit deliveries of the UTC day containing day,
// newest first.
func (l *DeliveryLog) Recent(ctx context.Context, day time.Time, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = defaultRecentMax
	}
	result, err := l.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: dayKey(day)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("querying DynamoDB: %w", err)
	}

	var items []deliveryItem
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, fmt.Errorf("unmarshaling deliveries: %w", err)
	}

	out := make([]Delivery, 0, len(items))
	for _, it := range items {
		sentAt, _ := time.Parse(time.RFC3339Nano, it.Timestamp)
		out = append(out, Delivery{
			ID:        it.ID,
			Recipient: it.Recipient,
			Subject:   it.Subject,
			Status:    it.Status,
			Error:     it.Error,
			SentAt:    sentAt,
		})
	}
	return out, nil
}

// ParseDay reads a YYYY-MM-DD day; an empty string means today in UTC.
func ParseDay(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.UTC(), nil
	}
	return time.Parse(dayLayout, s)
}

package events

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSHandler delivers outbox entries to the notification queue. The message
// body is the stored envelope; event type, org and subject are copied into
// message attributes for subscription filters.
type SQSHandler struct {
	client   sqsAPI
	queueURL string
}

var _ DeliveryHandler = (*SQSHandler)(nil)

func NewSQSHandler(client sqsAPI, queueURL string) *SQSHandler {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	return &SQSHandler{client: client, queueURL: queueURL}
}

func (h *SQSHandler) Handle(ctx context.Context, entry OutboxEntry) error {
	attrs := map[string]types.MessageAttributeValue{
		"event_type": stringAttr(entry.Type),
	}
	if entry.OrgID != "" {
		attrs["org_id"] = stringAttr(entry.OrgID)
	}
	if env, err := DecodeEnvelope(entry.Payload); err == nil && env.Subject != "" {
		attrs["subject"] = stringAttr(env.Subject)
	}
	_, err := h.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(h.queueURL),
		MessageBody:       aws.String(string(entry.Payload)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("events: send %s to SQS: %w", entry.ID, err)
	}
	return nil
}

func stringAttr(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}

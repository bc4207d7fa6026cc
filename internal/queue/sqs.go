// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the subset of the SQS client the queue calls.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueAttributes(ctx context.Context, in *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// SQSOptions configures receive behaviour.
type SQSOptions struct {
	URL string
	// Wait is the long-poll window, rounded down to whole seconds (max 20).
	Wait time.Duration
	// VisibilityTimeout overrides the queue default when positive.
	VisibilityTimeout time.Duration
}

// SQS reads one message at a time with long polling.
type SQS struct {
	api  SQSAPI
	opts SQSOptions
}

func NewSQS(api SQSAPI, opts SQSOptions) (*SQS, error) {
	if opts.URL == "" {
		return nil, errors.New("queue: sqs url required")
	}
	if opts.Wait > 20*time.Second {
		opts.Wait = 20 * time.Second
	}
	return &SQS{api: api, opts: opts}, nil
}

func (q *SQS) Receive(ctx context.Context) (*Message, error) {
	in := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.opts.URL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     int32(q.opts.Wait / time.Second),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	}
	if q.opts.VisibilityTimeout > 0 {
		in.VisibilityTimeout = int32(q.opts.VisibilityTimeout / time.Second)
	}
	out, err := q.api.ReceiveMessage(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("sqs receive: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}
	m := out.Messages[0]
	msg := &Message{
		ID:     aws.ToString(m.MessageId),
		Body:   []byte(aws.ToString(m.Body)),
		Handle: aws.ToString(m.ReceiptHandle),
	}
	if raw, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
		if n, err := strconv.Atoi(raw); err == nil {
			msg.ReceiveCount = n
		}
	}
	return msg, nil
}

func (q *SQS) Delete(ctx context.Context, handle string) error {
	_, err := q.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.opts.URL),
		ReceiptHandle: aws.String(handle),
	})
	if err != nil {
		return fmt.Errorf("sqs delete: %w", err)
	}
	return nil
}

func (q *SQS) Send(ctx context.Context, body []byte) (string, error) {
	out, err := q.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.opts.URL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return "", fmt.Errorf("sqs send: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

func (q *SQS) Ping(ctx context.Context) error {
	_, err := q.api.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(q.opts.URL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	return err
}

func (q *SQS) Close() error { return nil }

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	received *sqs.ReceiveMessageInput
	messages []types.Message
	deleted  []string
	err      error
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.received = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) SendMessage(context.Context, *sqs.SendMessageInput, ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	return &sqs.SendMessageOutput{MessageId: aws.String("m-new")}, nil
}

func (f *fakeSQS) GetQueueAttributes(context.Context, *sqs.GetQueueAttributesInput, ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	return &sqs.GetQueueAttributesOutput{}, f.err
}

const queueURL = "https://sqs.eu-central-1.amazonaws.com/123456789012/uploads"

func TestSQS_ReceiveOneWithLongPoll(t *testing.T) {
	api := &fakeSQS{messages: []types.Message{{
		MessageId:     aws.String("m-1"),
		ReceiptHandle: aws.String("rh-1"),
		Body:          aws.String(`{"Records":[]}`),
		Attributes:    map[string]string{"ApproximateReceiveCount": "3"},
	}}}
	q, err := NewSQS(api, SQSOptions{URL: queueURL, Wait: 2 * time.Second, VisibilityTimeout: 10 * time.Minute})
	require.NoError(t, err)

	msg, err := q.Receive(context.Background())
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, Message{ID: "m-1", Body: []byte(`{"Records":[]}`), Handle: "rh-1", ReceiveCount: 3}, *msg)

	assert.Equal(t, int32(1), api.received.MaxNumberOfMessages)
	assert.Equal(t, int32(2), api.received.WaitTimeSeconds)
	assert.Equal(t, int32(600), api.received.VisibilityTimeout)
	assert.Equal(t, queueURL, aws.ToString(api.received.QueueUrl))

	require.NoError(t, q.Delete(context.Background(), msg.Handle))
	assert.Equal(t, []string{"rh-1"}, api.deleted)
}

func TestSQS_EmptyReceive(t *testing.T) {
	q, err := NewSQS(&fakeSQS{}, SQSOptions{URL: queueURL, Wait: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, q.opts.Wait)

	msg, err := q.Receive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestSQS_ReceiveError(t *testing.T) {
	boom := errors.New("throttled")
	q, err := NewSQS(&fakeSQS{err: boom}, SQSOptions{URL: queueURL})
	require.NoError(t, err)

	_, err = q.Receive(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, q.Ping(context.Background()), boom)
}

func TestNewSQS_RequiresURL(t *testing.T) {
	_, err := NewSQS(&fakeSQS{}, SQSOptions{})
	assert.Error(t, err)
}

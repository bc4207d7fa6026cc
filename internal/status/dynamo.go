// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/vodladder/internal/job"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client the store calls.
type DynamoAPI interface {
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoTables names the status and metadata tables. Both are keyed by the
// string attribute "videoId". With no Metadata table the analysis result is
// kept as a "metadata" map on the status item.
type DynamoTables struct {
	Status   string
	Metadata string
}

const dynamoHashKey = "videoId"

type dynamoStatusItem struct {
	VideoID   string `json:"videoId"`
	Status    string `json:"status"`
	Bucket    string `json:"bucket,omitempty"`
	Key       string `json:"key,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`

	Metadata *job.MediaMetadata `json:"metadata,omitempty"`
}

type dynamoMetadataItem struct {
	VideoID string `json:"videoId"`
	job.MediaMetadata
	CreatedAt string `json:"createdAt"`
}

func useJSONTags(o *attributevalue.EncoderOptions) { o.TagKey = "json" }

func useJSONTagsDecode(o *attributevalue.DecoderOptions) { o.TagKey = "json" }

// Dynamo writes status transitions with UpdateItem and metadata with PutItem
// into two tables.
type Dynamo struct {
	api    DynamoAPI
	tables DynamoTables
}

func NewDynamo(api DynamoAPI, tables DynamoTables) (*Dynamo, error) {
	if tables.Status == "" {
		return nil, errors.New("status: dynamodb status table required")
	}
	return &Dynamo{api: api, tables: tables}, nil
}

func hashKey(jobID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoHashKey: &types.AttributeValueMemberS{Value: jobID},
	}
}

func (d *Dynamo) SetStatus(ctx context.Context, t Transition) error {
	if err := validTransition(t); err != nil {
		return err
	}
	expr := "SET #s = :s, updatedAt = :u, createdAt = if_not_exists(createdAt, :u)"
	names := map[string]string{"#s": "status"}
	values := map[string]types.AttributeValue{
		":s": &types.AttributeValueMemberS{Value: string(t.Status)},
		":u": &types.AttributeValueMemberS{Value: formatTime(t.At)},
	}
	if t.Bucket != "" {
		expr += ", #b = :b"
		names["#b"] = "bucket"
		values[":b"] = &types.AttributeValueMemberS{Value: t.Bucket}
	}
	if t.Key != "" {
		expr += ", #k = :k"
		names["#k"] = "key"
		values[":k"] = &types.AttributeValueMemberS{Value: t.Key}
	}
	_, err := d.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.tables.Status),
		Key:                       hashKey(t.JobID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return err
}

func (d *Dynamo) PutMetadata(ctx context.Context, jobID string, md job.MediaMetadata, at time.Time) error {
	if err := job.ValidateID(jobID); err != nil {
		return err
	}
	if d.tables.Metadata == "" {
		return d.putInlineMetadata(ctx, jobID, md, at)
	}
	item, err := attributevalue.MarshalMapWithOptions(dynamoMetadataItem{
		VideoID:       jobID,
		MediaMetadata: md,
		CreatedAt:     formatTime(at),
	}, useJSONTags)
	if err != nil {
		return fmt.Errorf("status: marshal metadata: %w", err)
	}
	_, err = d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tables.Metadata),
		Item:      item,
	})
	return err
}

func (d *Dynamo) putInlineMetadata(ctx context.Context, jobID string, md job.MediaMetadata, at time.Time) error {
	av, err := attributevalue.MarshalWithOptions(md, useJSONTags)
	if err != nil {
		return fmt.Errorf("status: marshal metadata: %w", err)
	}
	_, err = d.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(d.tables.Status),
		Key:              hashKey(jobID),
		UpdateExpression: aws.String("SET metadata = :m, updatedAt = :u, createdAt = if_not_exists(createdAt, :u)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":m": av,
			":u": &types.AttributeValueMemberS{Value: formatTime(at)},
		},
	})
	return err
}

func (d *Dynamo) Get(ctx context.Context, jobID string) (job.Record, error) {
	out, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tables.Status),
		Key:            hashKey(jobID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return job.Record{}, err
	}
	if len(out.Item) == 0 {
		return job.Record{}, ErrNotFound
	}
	var item dynamoStatusItem
	if err := attributevalue.UnmarshalMapWithOptions(out.Item, &item, useJSONTagsDecode); err != nil {
		return job.Record{}, fmt.Errorf("status: decode item: %w", err)
	}
	rec := job.Record{
		JobID:  jobID,
		Status: job.Status(item.Status),
		Bucket: item.Bucket,
		Key:    item.Key,

		Metadata: item.Metadata,
	}
	if item.CreatedAt != "" {
		if rec.CreatedAt, err = parseTime(item.CreatedAt); err != nil {
			return job.Record{}, err
		}
	}
	if item.UpdatedAt != "" {
		if rec.UpdatedAt, err = parseTime(item.UpdatedAt); err != nil {
			return job.Record{}, err
		}
	}

	if d.tables.Metadata == "" {
		return rec, nil
	}
	mout, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tables.Metadata),
		Key:       hashKey(jobID),
	})
	if err != nil {
		return job.Record{}, err
	}
	if len(mout.Item) > 0 {
		var mi dynamoMetadataItem
		if err := attributevalue.UnmarshalMapWithOptions(mout.Item, &mi, useJSONTagsDecode); err != nil {
			return job.Record{}, fmt.Errorf("status: decode metadata: %w", err)
		}
		md := mi.MediaMetadata
		rec.Metadata = &md
	}
	return rec, nil
}

func (d *Dynamo) Ping(ctx context.Context) error {
	_, err := d.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.tables.Status)})
	return err
}

func (d *Dynamo) Close() error { return nil }

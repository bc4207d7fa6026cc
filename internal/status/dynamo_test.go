// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package status

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/ManuGH/vodladder/internal/job"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	updates []*dynamodb.UpdateItemInput
	puts    []*dynamodb.PutItemInput
	items   map[string]map[string]types.AttributeValue // table -> item
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[aws.ToString(in.TableName)]}, nil
}

func (f *fakeDynamo) DescribeTable(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{}, nil
}

func av(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func TestDynamo_SetStatusUpsertsWithIfNotExists(t *testing.T) {
	api := &fakeDynamo{}
	d, err := NewDynamo(api, DynamoTables{Status: "video-status", Metadata: "video-metadata"})
	require.NoError(t, err)

	require.NoError(t, d.SetStatus(context.Background(), Transition{
		JobID: "clip", Status: job.StatusProcessing, Bucket: "uploads", Key: "raw/clip.mp4", At: t0,
	}))
	require.Len(t, api.updates, 1)
	in := api.updates[0]
	assert.Equal(t, "video-status", aws.ToString(in.TableName))
	assert.Equal(t, av("clip"), in.Key["videoId"])
	assert.Equal(t,
		"SET #s = :s, updatedAt = :u, createdAt = if_not_exists(createdAt, :u), #b = :b, #k = :k",
		aws.ToString(in.UpdateExpression))
	assert.Equal(t, map[string]string{"#s": "status", "#b": "bucket", "#k": "key"}, in.ExpressionAttributeNames)
	assert.Equal(t, av("processing"), in.ExpressionAttributeValues[":s"])
	assert.Equal(t, av("2025-03-01T10:00:00Z"), in.ExpressionAttributeValues[":u"])

	require.NoError(t, d.SetStatus(context.Background(), Transition{JobID: "clip", Status: job.StatusDone, At: t1}))
	assert.Equal(t, "SET #s = :s, updatedAt = :u, createdAt = if_not_exists(createdAt, :u)",
		aws.ToString(api.updates[1].UpdateExpression))
}

// dynamoReserved is the subset of DynamoDB reserved words that collide with
// attribute names this store writes.
var dynamoReserved = map[string]bool{
	"BUCKET": true, "KEY": true, "STATUS": true, "DATA": true, "NAME": true,
	"TIMESTAMP": true, "DURATION": true, "HEIGHT": true, "WIDTH": true,
}

var exprIdent = regexp.MustCompile(`[#:]?[A-Za-z_][A-Za-z0-9_]*`)

func TestDynamo_UpdateExpressionsAliasReservedWords(t *testing.T) {
	api := &fakeDynamo{}
	d, err := NewDynamo(api, DynamoTables{Status: "video-status"})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, d.SetStatus(ctx, Transition{
		JobID: "clip", Status: job.StatusProcessing, Bucket: "uploads", Key: "raw/clip.mp4", At: t0,
	}))
	require.NoError(t, d.SetStatus(ctx, Transition{
		JobID: "clip", Status: job.StatusFailed, Bucket: "uploads", Key: "raw/clip.mp4", At: t1,
	}))
	require.NoError(t, d.PutMetadata(ctx, "clip", sampleMetadata, t1))
	require.Len(t, api.updates, 3)

	for _, in := range api.updates {
		expr := aws.ToString(in.UpdateExpression)
		for _, ident := range exprIdent.FindAllString(expr, -1) {
			if ident[0] == '#' || ident[0] == ':' {
				continue
			}
			assert.False(t, dynamoReserved[strings.ToUpper(ident)],
				"reserved word %q used unaliased in %q", ident, expr)
		}
		for alias := range in.ExpressionAttributeNames {
			assert.Contains(t, expr, alias)
		}
	}
}

func TestDynamo_PutMetadataWritesSeparateTable(t *testing.T) {
	api := &fakeDynamo{}
	d, err := NewDynamo(api, DynamoTables{Status: "video-status", Metadata: "video-metadata"})
	require.NoError(t, err)

	require.NoError(t, d.PutMetadata(context.Background(), "clip", sampleMetadata, t0))
	require.Len(t, api.puts, 1)
	item := api.puts[0].Item
	assert.Equal(t, "video-metadata", aws.ToString(api.puts[0].TableName))
	assert.Equal(t, av("clip"), item["videoId"])
	assert.Equal(t, av("h264"), item["codec"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1080"}, item["height"])
	assert.Equal(t, av("2025-03-01T10:00:00Z"), item["createdAt"])
}

func TestDynamo_InlineMetadataWithoutTable(t *testing.T) {
	api := &fakeDynamo{}
	d, err := NewDynamo(api, DynamoTables{Status: "video-status"})
	require.NoError(t, err)

	require.NoError(t, d.PutMetadata(context.Background(), "clip", sampleMetadata, t0))
	assert.Empty(t, api.puts)
	require.Len(t, api.updates, 1)
	_, ok := api.updates[0].ExpressionAttributeValues[":m"].(*types.AttributeValueMemberM)
	assert.True(t, ok)
}

func TestDynamo_Get(t *testing.T) {
	api := &fakeDynamo{items: map[string]map[string]types.AttributeValue{
		"video-status": {
			"videoId":   av("clip"),
			"status":    av("done"),
			"bucket":    av("uploads"),
			"key":       av("raw/clip.mp4"),
			"createdAt": av("2025-03-01T10:00:00Z"),
			"updatedAt": av("2025-03-01T10:02:00Z"),
		},
		"video-metadata": {
			"videoId":   av("clip"),
			"codec":     av("h264"),
			"height":    &types.AttributeValueMemberN{Value: "1080"},
			"frameRate": &types.AttributeValueMemberN{Value: "25"},
			"createdAt": av("2025-03-01T10:01:00Z"),
		},
	}}
	d, err := NewDynamo(api, DynamoTables{Status: "video-status", Metadata: "video-metadata"})
	require.NoError(t, err)

	rec, err := d.Get(context.Background(), "clip")
	require.NoError(t, err)
	assert.Equal(t, job.StatusDone, rec.Status)
	assert.Equal(t, "raw/clip.mp4", rec.Key)
	assert.True(t, rec.UpdatedAt.Equal(t2))
	require.NotNil(t, rec.Metadata)
	assert.Equal(t, 1080, rec.Metadata.Height)
	assert.Equal(t, 25.0, rec.Metadata.FrameRate)

	api.items = nil
	_, err = d.Get(context.Background(), "clip")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewDynamo_RequiresStatusTable(t *testing.T) {
	_, err := NewDynamo(&fakeDynamo{}, DynamoTables{})
	assert.Error(t, err)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/ManuGH/vodladder/internal/log"
)

// ECSAPI is the subset of the ECS client used for dispatch.
type ECSAPI interface {
	RunTask(ctx context.Context, in *ecs.RunTaskInput, optFns ...func(*ecs.Options)) (*ecs.RunTaskOutput, error)
}

// ECSOptions describes the task to launch per job.
type ECSOptions struct {
	Cluster        string
	TaskDefinition string
	Container      string
	LaunchType     string // FARGATE or EC2
	Subnets        []string
	SecurityGroups []string
	AssignPublicIP bool
}

// ECS launches one task per job with the job parameters injected as
// container environment overrides. It does not wait for the task.
type ECS struct {
	api  ECSAPI
	opts ECSOptions
}

func NewECS(api ECSAPI, opts ECSOptions) (*ECS, error) {
	switch {
	case opts.Cluster == "":
		return nil, errors.New("dispatch: ecs cluster required")
	case opts.TaskDefinition == "":
		return nil, errors.New("dispatch: ecs task definition required")
	case opts.Container == "":
		return nil, errors.New("dispatch: ecs container name required")
	}
	if opts.LaunchType == "" {
		opts.LaunchType = string(types.LaunchTypeFargate)
	}
	return &ECS{api: api, opts: opts}, nil
}

func (e *ECS) Name() string { return StrategyECS }

func (e *ECS) input(req Request) *ecs.RunTaskInput {
	env := jobEnv(req.Job)
	pairs := make([]types.KeyValuePair, 0, len(env))
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		pairs = append(pairs, types.KeyValuePair{Name: aws.String(k), Value: aws.String(v)})
	}

	in := &ecs.RunTaskInput{
		Cluster:        aws.String(e.opts.Cluster),
		TaskDefinition: aws.String(e.opts.TaskDefinition),
		LaunchType:     types.LaunchType(e.opts.LaunchType),
		Count:          aws.Int32(1),
		StartedBy:      aws.String(startedBy(req.Job.JobID)),
		Overrides: &types.TaskOverride{
			ContainerOverrides: []types.ContainerOverride{{
				Name:        aws.String(e.opts.Container),
				Environment: pairs,
			}},
		},
	}
	if len(e.opts.Subnets) > 0 {
		assign := types.AssignPublicIpDisabled
		if e.opts.AssignPublicIP {
			assign = types.AssignPublicIpEnabled
		}
		in.NetworkConfiguration = &types.NetworkConfiguration{
			AwsvpcConfiguration: &types.AwsVpcConfiguration{
				Subnets:        e.opts.Subnets,
				SecurityGroups: e.opts.SecurityGroups,
				AssignPublicIp: assign,
			},
		}
	}
	return in
}

const maxStartedBy = 36

// startedBy fits the limit ECS puts on the field without splitting a rune.
func startedBy(jobID string) string {
	s := "vodladder/" + jobID
	if len(s) <= maxStartedBy {
		return s
	}
	n := maxStartedBy
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (e *ECS) Dispatch(ctx context.Context, req Request) (string, error) {
	out, err := e.api.RunTask(ctx, e.input(req))
	if err != nil {
		return "", wrap(req.Job, fmt.Errorf("run task: %w", err))
	}
	if len(out.Failures) > 0 {
		f := out.Failures[0]
		return "", wrap(req.Job, fmt.Errorf("run task: %s: %s", aws.ToString(f.Reason), aws.ToString(f.Detail)))
	}
	if len(out.Tasks) == 0 {
		return "", wrap(req.Job, errors.New("run task: no task started"))
	}
	handle := aws.ToString(out.Tasks[0].TaskArn)
	logger := log.WithComponentFromContext(ctx, "dispatch")
	logger.Info().
		Str(log.FieldEvent, "dispatch.ecs_started").
		Str(log.FieldHandle, handle).
		Msg("worker task launched")
	return handle, nil
}

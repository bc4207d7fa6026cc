// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package intake turns queue notifications and injected worker parameters
// into job descriptors.
package intake

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ManuGH/vodladder/internal/job"
)

// TestEvent is the marker value object stores send when a notification
// target is first configured.
const TestEvent = "s3:TestEvent"

var (
	ErrMalformedBody = errors.New("notification body is not valid JSON")
	ErrNoRecord      = errors.New("notification carries no object-creation record")
	ErrBadKey        = errors.New("object key cannot be decoded")
)

// Envelope is the JSON body of an object-storage event notification.
type Envelope struct {
	Event   string   `json:"Event,omitempty"`
	Service string   `json:"Service,omitempty"`
	Records []Record `json:"Records,omitempty"`
}

// Record is one object event inside an Envelope.
type Record struct {
	EventSource string `json:"eventSource,omitempty"`
	EventName   string `json:"eventName,omitempty"`
	S3          struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key  string `json:"key"`
			Size int64  `json:"size,omitempty"`
		} `json:"object"`
	} `json:"s3"`
}

func (r Record) objectCreated() bool {
	if r.S3.Bucket.Name == "" || r.S3.Object.Key == "" {
		return false
	}
	return r.EventName == "" || strings.HasPrefix(r.EventName, "ObjectCreated:")
}

// Parsed is the outcome of parsing one notification body.
type Parsed struct {
	// TestEvent is set for synthetic notifications that carry no job.
	TestEvent  bool
	Descriptor job.Descriptor
	// Extra counts additional object-creation records beyond the first.
	Extra int
}

// Parse decodes a notification body. Failures are *job.IntakeError wrapping
// ErrMalformedBody, ErrNoRecord or ErrBadKey.
func Parse(body []byte) (Parsed, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Parsed{}, &job.IntakeError{Reason: "parse body", Err: fmt.Errorf("%w: %v", ErrMalformedBody, err)}
	}
	if env.Event == TestEvent {
		return Parsed{TestEvent: true}, nil
	}

	var (
		first *Record
		extra int
	)
	for i := range env.Records {
		if !env.Records[i].objectCreated() {
			continue
		}
		if first == nil {
			first = &env.Records[i]
			continue
		}
		extra++
	}
	if first == nil {
		return Parsed{}, &job.IntakeError{Reason: "select record", Err: ErrNoRecord}
	}

	d, err := Describe(first.S3.Bucket.Name, first.S3.Object.Key)
	if err != nil {
		return Parsed{}, err
	}
	return Parsed{Descriptor: d, Extra: extra}, nil
}

// Describe builds a descriptor from a bucket and a URL-encoded object key as
// it appears in event notifications.
func Describe(bucket, rawKey string) (job.Descriptor, error) {
	key, err := DecodeKey(rawKey)
	if err != nil {
		return job.Descriptor{}, &job.IntakeError{Reason: "decode key", Err: err}
	}
	return describeDecoded(bucket, key)
}

func describeDecoded(bucket, key string) (job.Descriptor, error) {
	d := job.Descriptor{
		JobID:  job.IDFromKey(key),
		Bucket: bucket,
		Key:    key,
	}
	if err := d.Validate(); err != nil {
		return job.Descriptor{}, &job.IntakeError{Reason: "validate descriptor", Err: err}
	}
	return d, nil
}

// DecodeKey reverses the form encoding object stores apply to keys in event
// notifications ('+' for space, percent escapes) and normalizes the result
// to NFC so equivalent names map to one job.
func DecodeKey(raw string) (string, error) {
	key, err := url.QueryUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	return norm.NFC.String(key), nil
}

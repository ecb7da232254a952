package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const s3Scheme = "s3://"

const defaultS3Region = "us-east-1"

// objectPutter is the part of *s3.Client used to publish reports.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func isS3Target(path string) bool {
	return strings.HasPrefix(path, s3Scheme)
}

// parseS3URL splits s3://bucket/key. A key ending in "/" is a prefix and
// gets a timestamped file name.
func parseS3URL(raw string, now time.Time) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(raw, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 URL: %q", raw)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %q", raw)
	}
	if key == "" || strings.HasSuffix(key, "/") {
		key += "minirest-bench-" + now.UTC().Format("20060102T150405Z") + ".json"
	}
	return bucket, key, nil
}

// newS3Client builds a client from the standard AWS environment
// variables. AWS_ENDPOINT_URL switches to path-style addressing for
// S3-compatible stores.
func newS3Client() *s3.Client {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = defaultS3Region
	}

	opts := s3.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(envCredentials()),
	}
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

func envCredentials() aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		id := os.Getenv("AWS_ACCESS_KEY_ID")
		secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
		if id == "" || secret == "" {
			return aws.Credentials{}, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
		}
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}, nil
	})
}

// publishS3 uploads the report as JSON and returns the object key.
func publishS3(ctx context.Context, client objectPutter, target string, report benchReport) (string, error) {
	bucket, key, err := parseS3URL(target, time.Now())
	if err != nil {
		return "", err
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"profile":    report.Workload.Profile,
			"git-commit": report.Run.GitCommit,
		},
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}
	return key, nil
}

package report

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kenhuangus/ai-briefing/internal/obs"
)

// S3Mirror is the optional, best-effort artifact mirror: it copies the
// written artifact directory tree to an S3-compatible bucket, via the
// standard aws-sdk-go-v2 config+credentials+s3 client-construction
// idiom, adapted from single-object Get/Put to a whole-directory walk
// since this pipeline mirrors a tree of per-day artifacts, not
// individual blobs looked up by key.
type S3Mirror struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3MirrorFromEnv builds an S3Mirror from ARTIFACT_S3_* environment
// variables. Returns (nil, nil) when ARTIFACT_S3_BUCKET is unset: the
// mirror is purely additive and absence is not an error.
func S3MirrorFromEnv(ctx context.Context) (*S3Mirror, error) {
	bucket := os.Getenv("ARTIFACT_S3_BUCKET")
	if bucket == "" {
		return nil, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region := os.Getenv("ARTIFACT_S3_REGION"); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	// S3-compatible endpoints (MinIO, R2, etc.) rarely sit behind the
	// default AWS credential chain, so an explicit access/secret pair
	// overrides it when both are set; absent either, LoadDefaultConfig's
	// normal chain (env, shared config, IMDS) still applies.
	if ak, sk := os.Getenv("ARTIFACT_S3_ACCESS_KEY"), os.Getenv("ARTIFACT_S3_SECRET_KEY"); ak != "" && sk != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ak, sk, os.Getenv("ARTIFACT_S3_SESSION_TOKEN")),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if endpoint := os.Getenv("ARTIFACT_S3_ENDPOINT"); endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(endpoint) })
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return &S3Mirror{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: bucket,
		prefix: strings.TrimSuffix(os.Getenv("ARTIFACT_S3_PREFIX"), "/"),
	}, nil
}

// Mirror uploads every regular file under dir to the configured bucket,
// keyed by its path relative to dir (prefixed if configured). Best
// effort: a per-file failure is logged and skipped, never fatal to the
// run (spec §4.10, phase 5).
func (m *S3Mirror) Mirror(ctx context.Context, dir string) {
	if m == nil {
		return
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return nil
		}
		if putErr := m.putFile(ctx, path, m.key(rel)); putErr != nil {
			obs.LoggerWithTrace(ctx).Warn().Err(putErr).Str("file", path).Msg("s3_mirror_upload_failed")
		}
		return nil
	})
	if err != nil {
		obs.LoggerWithTrace(ctx).Warn().Err(err).Str("dir", dir).Msg("s3_mirror_walk_failed")
	}
}

func (m *S3Mirror) key(rel string) string {
	rel = filepath.ToSlash(rel)
	if m.prefix == "" {
		return rel
	}
	return m.prefix + "/" + rel
}

func (m *S3Mirror) putFile(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	return err
}

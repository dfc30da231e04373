// Package storage は書き出したCSVファイルを外部ストレージへ公開します。
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Publisher はローカルのファイルを公開し、その場所を返します。
type Publisher interface {
	Publish(ctx context.Context, path string) (string, error)
}

// putObjectAPI は S3Publisher が利用する s3.Client のメソッドです。
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher は CSV ファイルを S3 バケットへアップロードします。
type S3Publisher struct {
	client putObjectAPI
	bucket string
	prefix string
}

// NewS3Publisher は AWS のデフォルト認証情報チェーンから S3Publisher を生成します。
func NewS3Publisher(ctx context.Context, bucket, prefix, region string) (*S3Publisher, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage.NewS3Publisher: bucket cannot be empty")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("AWS SDK設定の読み込みに失敗しました: %w", err)
	}

	return newS3Publisher(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func newS3Publisher(client putObjectAPI, bucket, prefix string) *S3Publisher {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	return &S3Publisher{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Publish は path のファイルを prefix + ファイル名 のキーでアップロードし、s3:// URI を返します。
func (p *S3Publisher) Publish(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("アップロード対象ファイルを開けません (%s): %w", path, err)
	}
	defer f.Close()

	key := p.prefix + filepath.Base(path)

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("text/csv; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("S3へのアップロードに失敗しました (s3://%s/%s): %w", p.bucket, key, err)
	}

	return fmt.Sprintf("s3://%s/%s", p.bucket, key), nil
}

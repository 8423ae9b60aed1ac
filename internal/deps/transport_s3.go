package deps

import (
	"context"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// S3Transport fetches a dependency (a mirrored upstream ISO or kernel
// tarball) from s3://bucket/key URLs via the AWS SDK's default credential
// chain, for teams that mirror external inputs into an internal bucket.
type S3Transport struct{}

func (t *S3Transport) Fetch(rawURL, destPath string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrapf(err, "parsing s3 URL %s", rawURL)
	}
	if u.Scheme != "s3" {
		return errors.Errorf("not an s3 URL: %s", rawURL)
	}

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return errors.Wrap(err, "loading AWS config")
	}

	client := s3.NewFromConfig(cfg)
	key := strings.TrimPrefix(u.Path, "/")

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(err, "GetObject s3://%s/%s", u.Host, key)
	}
	defer out.Body.Close()

	f, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.ReadFrom(out.Body)
	return err
}

package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/rs/zerolog/log"

	"story-video-pipeline/config"
	"story-video-pipeline/types"
)

type objectPutter interface {
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// S3 copies the video and narration into a bucket
type S3 struct {
	cfg config.S3Config
	svc objectPutter
}

// NewS3 creates an S3 publisher with the default AWS credential chain
func NewS3(cfg config.S3Config) (*S3, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return &S3{cfg: cfg, svc: s3.New(sess)}, nil
}

// Name implements Publisher
func (s *S3) Name() string { return "s3" }

// Publish uploads <prefix>/<stem>/<stem>.mp4 and .mp3. Local files are kept.
func (s *S3) Publish(ctx context.Context, state *types.PipelineState) error {
	if err := requireArtifacts(state); err != nil {
		return err
	}
	for _, artifact := range []struct {
		file        string
		contentType string
	}{
		{state.Video.Path, "video/mp4"},
		{state.Audio.Path, "audio/mpeg"},
	} {
		key := ObjectKey(s.cfg.Prefix, state.Identity.Stem, artifact.file)
		if err := s.put(ctx, artifact.file, key, artifact.contentType); err != nil {
			return err
		}
		state.Published = append(state.Published, fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, key))
		log.Info().Str("stage", "publish").Str("bucket", s.cfg.Bucket).Str("key", key).Msg("uploaded to s3")
	}
	return nil
}

func (s *S3) put(ctx context.Context, file, key, contentType string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	_, err = s.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.cfg.Bucket, key, err)
	}
	return nil
}

// ObjectKey places an artifact under prefix/stem/
func ObjectKey(prefix, stem, file string) string {
	prefix = strings.Trim(prefix, "/")
	return path.Join(prefix, stem, filepath.Base(file))
}

package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Abraxas-365/chatflow/channels"
	"github.com/Abraxas-365/chatflow/pkg/config"
)

// S3MediaRelay copia media entrante de Meta a un bucket propio.
// Las URLs que entrega la Graph API expiran en ~5 minutos, así que
// cualquier cosa que quiera referenciarse después debe rehospedarse.
type S3MediaRelay struct {
	cfg        config.MediaConfig
	s3Client   *s3.Client
	httpClient *http.Client
}

var _ channels.MediaRelay = (*S3MediaRelay)(nil)

func NewS3MediaRelay(cfg config.MediaConfig) *S3MediaRelay {
	awsCfg := aws.Config{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3MediaRelay{
		cfg:        cfg,
		s3Client:   client,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Relay resuelve el media id contra la Graph API, descarga el binario
// y lo sube al bucket. Cualquier falla retorna "" sin error: el media
// simplemente queda sin rehospedar.
func (r *S3MediaRelay) Relay(ctx context.Context, channel *channels.Channel, mediaID string) (string, error) {
	if r.cfg.Bucket == "" {
		return "", nil
	}

	meta, err := r.lookupMedia(ctx, channel, mediaID)
	if err != nil {
		log.Printf("⚠️ media lookup failed for %s: %v", mediaID, err)
		return "", nil
	}

	data, err := r.download(ctx, channel, meta.URL)
	if err != nil {
		log.Printf("⚠️ media download failed for %s: %v", mediaID, err)
		return "", nil
	}

	key := fmt.Sprintf("%s/%s%s", channel.ID.String(), mediaID, extensionFor(meta.MimeType))

	_, err = r.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(meta.MimeType),
	})
	if err != nil {
		log.Printf("⚠️ media upload failed for %s: %v", mediaID, err)
		return "", nil
	}

	return r.publicURL(key), nil
}

type mediaMetadata struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// lookupMedia GET /{media_id} retorna la URL temporal de descarga
func (r *S3MediaRelay) lookupMedia(ctx context.Context, channel *channels.Channel, mediaID string) (*mediaMetadata, error) {
	url := fmt.Sprintf("%s/%s/%s", graphAPIBaseURL, apiVersion(channel.Config), mediaID)

	body, err := r.get(ctx, channel, url)
	if err != nil {
		return nil, err
	}

	var meta mediaMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("unparseable media metadata: %w", err)
	}
	if meta.URL == "" {
		return nil, fmt.Errorf("media metadata without url")
	}

	return &meta, nil
}

func (r *S3MediaRelay) download(ctx context.Context, channel *channels.Channel, url string) ([]byte, error) {
	return r.get(ctx, channel, url)
}

func (r *S3MediaRelay) get(ctx context.Context, channel *channels.Channel, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+channel.Config.AccessToken)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, channels.ErrMediaFetchFailed().
			WithDetail("status", resp.StatusCode).
			WithDetail("response", string(body))
	}

	return io.ReadAll(resp.Body)
}

func (r *S3MediaRelay) publicURL(key string) string {
	if r.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(r.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", r.cfg.Bucket, r.cfg.Region, key)
}

func extensionFor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(mimeType, "image/png"):
		return ".png"
	case strings.HasPrefix(mimeType, "image/webp"):
		return ".webp"
	case strings.HasPrefix(mimeType, "video/mp4"):
		return ".mp4"
	case strings.HasPrefix(mimeType, "audio/ogg"):
		return ".ogg"
	case strings.HasPrefix(mimeType, "audio/mpeg"):
		return ".mp3"
	case strings.HasPrefix(mimeType, "application/pdf"):
		return ".pdf"
	default:
		return ""
	}
}

package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/common"
	"github.com/dmitrijs2005/moodlog/internal/logging"
	"github.com/google/uuid"
)

const maxImageBytes = 8 << 20

// BlobStore keeps raw image bytes and returns a URL that can be shared with
// other stations.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// HTTPImage asks an HTTP endpoint for an illustration. The endpoint answers
// either with JSON {"imageUrl": "..."} or with the image bytes, which are
// then uploaded to the blob store.
type HTTPImage struct {
	endpoint string
	client   *http.Client
	store    BlobStore
	logger   logging.Logger
	now      func() time.Time
}

var _ ImageGenerator = (*HTTPImage)(nil)

func NewHTTPImage(endpoint string, store BlobStore, logger logging.Logger, client *http.Client) *HTTPImage {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPImage{
		endpoint: endpoint,
		client:   client,
		store:    store,
		logger:   logger.With("module", "image"),
		now:      time.Now,
	}
}

type imageRequest struct {
	Text      string `json:"text"`
	MoodLevel int    `json:"moodLevel"`
	Zone      string `json:"zone"`
}

type imageResponse struct {
	ImageURL string `json:"imageUrl"`
}

func (g *HTTPImage) Image(ctx context.Context, req ImageRequest) (string, error) {
	payload, err := json.Marshal(imageRequest{Text: req.Text, MoodLevel: req.MoodLevel, Zone: req.Zone})
	if err != nil {
		return "", fmt.Errorf("encode image request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build image request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrGenerationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: image endpoint returned %s", common.ErrGenerationUnavailable, resp.Status)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("%w: content type: %v", common.ErrMalformedGeneration, err)
	}

	switch {
	case mediaType == "application/json":
		var out imageResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxImageBytes)).Decode(&out); err != nil {
			return "", fmt.Errorf("%w: %v", common.ErrMalformedGeneration, err)
		}
		if out.ImageURL == "" {
			return "", fmt.Errorf("%w: empty imageUrl", common.ErrMalformedGeneration)
		}
		return out.ImageURL, nil

	case strings.HasPrefix(mediaType, "image/"):
		if g.store == nil {
			return "", fmt.Errorf("%w: no blob store for raw image", common.ErrGenerationUnavailable)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
		if err != nil {
			return "", fmt.Errorf("%w: read image: %v", common.ErrGenerationUnavailable, err)
		}
		if len(data) > maxImageBytes {
			return "", fmt.Errorf("%w: image larger than %d bytes", common.ErrMalformedGeneration, maxImageBytes)
		}
		url, err := g.store.Put(ctx, g.storageKey(mediaType), mediaType, data)
		if err != nil {
			return "", fmt.Errorf("upload image: %w", err)
		}
		g.logger.Debug(ctx, "image uploaded", "bytes", len(data))
		return url, nil

	default:
		return "", fmt.Errorf("%w: unexpected content type %q", common.ErrMalformedGeneration, mediaType)
	}
}

func (g *HTTPImage) storageKey(mediaType string) string {
	d := g.now().UTC()
	ext := strings.TrimPrefix(mediaType, "image/")
	if i := strings.IndexAny(ext, "+;"); i >= 0 {
		ext = ext[:i]
	}
	return fmt.Sprintf("images/%d/%02d/%02d/%s.%s", d.Year(), d.Month(), d.Day(), uuid.NewString(), ext)
}

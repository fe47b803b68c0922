package imageclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	genai "google.golang.org/genai"

	"github.com/kenhuangus/ai-briefing/internal/config"
	"github.com/kenhuangus/ai-briefing/internal/obs"
	"github.com/kenhuangus/ai-briefing/internal/perr"
)

// NativeClient issues a typed genai GenerateContent call with image
// response modalities enabled, via a buildContentConfig-style
// assembly of content parts for image prompts.
type NativeClient struct {
	client *genai.Client
	model  string
}

func NewNative(ctx context.Context, cfg config.ImageSection, httpClient *http.Client) (*NativeClient, error) {
	if httpClient == nil {
		httpClient = obs.NewHTTPClient(nil)
	}
	httpOpts := genai.HTTPOptions{}
	if cfg.TimeoutSeconds > 0 {
		t := time.Duration(cfg.TimeoutSeconds) * time.Second
		httpOpts.Timeout = &t
	}
	if cfg.BaseURL != "" {
		httpOpts.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/") + "/"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      strings.TrimSpace(cfg.APIKey),
		HTTPClient:  httpClient,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, perr.Wrap(perr.KindImageFailed, "init native image client", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash-image"
	}
	return &NativeClient{client: client, model: model}, nil
}

func (c *NativeClient) Generate(ctx context.Context, req Request) ([]byte, error) {
	size := req.Size
	if size == "" {
		size = "1K"
	}

	genCfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
		ImageConfig:        &genai.ImageConfig{ImageSize: size, AspectRatio: req.AspectRatio},
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if len(req.ReferenceImage) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.ReferenceImage, "image/png"))
	}
	contents := []*genai.Content{{Parts: parts, Role: "user"}}

	ctx, end := obs.StartSpan(ctx, "imageclient.native.generate")
	defer func() { end(nil) }()

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, genCfg)
	if err != nil {
		return nil, perr.Wrap(perr.KindImageFailed, "native image generate", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, perr.New(perr.KindImageFailed, "native image response contained no inline image data")
}

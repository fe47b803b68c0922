package imageclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/kenhuangus/ai-briefing/internal/config"
	"github.com/kenhuangus/ai-briefing/internal/obs"
	"github.com/kenhuangus/ai-briefing/internal/perr"
)

// ProxyClient issues a chat-completions-shaped request with a
// `modalities: ["image","text"]` extra field the typed SDK does not
// expose, extending a typed params struct via SetExtraFields for
// provider-specific fields.
type ProxyClient struct {
	sdk   openai.Client
	model string
}

func NewProxy(cfg config.ImageSection, httpClient *http.Client) (*ProxyClient, error) {
	if httpClient == nil {
		httpClient = obs.NewHTTPClient(nil)
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = cfg.BaseURL
	}
	if endpoint == "" {
		return nil, perr.New(perr.KindConfigInvalid, "image.endpoint is required in proxy mode")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithBaseURL(strings.TrimRight(endpoint, "/")),
		option.WithHTTPClient(httpClient),
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-image-1"
	}
	return &ProxyClient{sdk: openai.NewClient(opts...), model: model}, nil
}

type imageResponseExtra struct {
	Choices []struct {
		Message struct {
			Images []struct {
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *ProxyClient) Generate(ctx context.Context, req Request) ([]byte, error) {
	content := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(req.Prompt),
	}
	if len(req.ReferenceImage) > 0 {
		dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(req.ReferenceImage)
		content = append(content, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}))
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(content),
		},
	}
	params.SetExtraFields(map[string]any{"modalities": []string{"image", "text"}})

	ctx, end := obs.StartSpan(ctx, "imageclient.proxy.generate")
	defer func() { end(nil) }()

	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, perr.Wrap(perr.KindImageFailed, "proxy image generate", err)
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, perr.Wrap(perr.KindImageFailed, "marshal proxy image response", err)
	}
	var extra imageResponseExtra
	if err := json.Unmarshal(raw, &extra); err != nil {
		return nil, perr.Wrap(perr.KindImageFailed, "parse proxy image response", err)
	}
	if len(extra.Choices) == 0 || len(extra.Choices[0].Message.Images) == 0 {
		return nil, perr.New(perr.KindImageFailed, "proxy image response contained no images")
	}

	dataURL := extra.Choices[0].Message.Images[0].ImageURL.URL
	idx := strings.Index(dataURL, ",")
	if !strings.HasPrefix(dataURL, "data:") || idx < 0 {
		return nil, perr.New(perr.KindImageFailed, "proxy image response url was not a data URL")
	}
	return base64.StdEncoding.DecodeString(dataURL[idx+1:])
}

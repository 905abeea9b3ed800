package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/kelsos/design-survey/internal/config"
	"github.com/kelsos/design-survey/internal/logger"
	"github.com/kelsos/design-survey/internal/models"
)

const (
	moduleName    = "design-survey"
	moduleVersion = "v0.1.0"

	cognitiveServicesScope = "https://cognitiveservices.azure.com/.default"
)

// ErrNoChoices is returned when a response carries no completion choice.
var ErrNoChoices = errors.New("response contains no choices")

// Prompt is a single request: a system instruction plus one user turn made of text and images.
type Prompt struct {
	System string
	Text   string
	Images []string
}

// Reply is the raw model response together with request details the caller may report.
type Reply struct {
	Endpoint      string
	Response      *models.ChatCompletionResponse
	DroppedImages int
}

// Content returns the text of the first choice.
func (r *Reply) Content() (string, error) {
	if r == nil || r.Response == nil || len(r.Response.Choices) == 0 {
		return "", ErrNoChoices
	}
	return r.Response.Choices[0].Message.Content, nil
}

// Options tunes the Azure client.
type Options struct {
	// MaxImages caps the images sent per request; zero sends all of them.
	MaxImages int
	// Seed is sent with every request for reproducible sampling.
	Seed *int64
	// Timeout bounds one request.
	Timeout time.Duration
	// Transport overrides the HTTP transport, mainly for tests.
	Transport policy.Transporter
	// Credential is used for endpoints without an API key. When nil, DefaultAzureCredential is
	// created on demand.
	Credential azcore.TokenCredential
}

// AzureClient sends chat completion requests to Azure OpenAI deployments. It never retries;
// retrying is up to the caller.
type AzureClient struct {
	selector  Selector
	pipelines map[string]runtime.Pipeline
	opts      Options
}

// NewAzureClient builds one pipeline per endpoint known to the selector.
func NewAzureClient(selector Selector, opts Options) (*AzureClient, error) {
	c := &AzureClient{
		selector:  selector,
		pipelines: make(map[string]runtime.Pipeline),
		opts:      opts,
	}

	for _, endpoint := range selector.Endpoints() {
		pl, err := c.newPipeline(endpoint)
		if err != nil {
			return nil, err
		}
		c.pipelines[endpoint.Label] = pl
	}

	return c, nil
}

func (c *AzureClient) newPipeline(endpoint config.Endpoint) (runtime.Pipeline, error) {
	clientOptions := &policy.ClientOptions{
		Retry:     policy.RetryOptions{MaxRetries: -1},
		Transport: c.opts.Transport,
	}

	var pipelineOptions runtime.PipelineOptions
	if endpoint.APIKey != "" {
		pipelineOptions.PerCall = []policy.Policy{apiKeyPolicy{key: endpoint.APIKey}}
	} else {
		if c.opts.Credential == nil {
			cred, err := azidentity.NewDefaultAzureCredential(nil)
			if err != nil {
				return runtime.Pipeline{}, fmt.Errorf("endpoint %s has no api key and no Azure credential is available: %w", endpoint.Label, err)
			}
			c.opts.Credential = cred
		}
		logger.Debug("Endpoint %s uses Microsoft Entra ID authentication", endpoint.Label)
		pipelineOptions.PerRetry = []policy.Policy{
			runtime.NewBearerTokenPolicy(c.opts.Credential, []string{cognitiveServicesScope}, nil),
		}
	}

	return runtime.NewPipeline(moduleName, moduleVersion, pipelineOptions, clientOptions), nil
}

// Complete sends the prompt to the next endpoint chosen by the selector and returns the raw
// response. Transport and API errors are returned unmodified.
func (c *AzureClient) Complete(ctx context.Context, prompt Prompt) (*Reply, error) {
	endpoint := c.selector.Next()
	pl, ok := c.pipelines[endpoint.Label]
	if !ok {
		return nil, fmt.Errorf("%w: %s", config.ErrEndpointNotFound, endpoint.Label)
	}

	images, dropped := capImages(prompt.Images, c.opts.MaxImages)
	if dropped > 0 {
		logger.Warn("Only the first %d images will be processed, dropping %d", c.opts.MaxImages, dropped)
	}

	body, err := buildRequest(prompt, images, c.opts.Seed)
	if err != nil {
		return nil, err
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	url := runtime.JoinPaths(endpoint.APIBase, "openai", "deployments", endpoint.Deployment, "chat", "completions")
	req, err := runtime.NewRequest(ctx, http.MethodPost, url)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	query := req.Raw().URL.Query()
	query.Set("api-version", endpoint.APIVersion)
	req.Raw().URL.RawQuery = query.Encode()

	if err := runtime.MarshalAsJSON(req, body); err != nil {
		return nil, fmt.Errorf("error marshaling request body: %w", err)
	}

	start := time.Now()
	logger.Debug("Sending chat completion to %s (%s) with %d images", endpoint.Label, endpoint.Deployment, len(images))

	resp, err := pl.Do(req)
	if err != nil {
		logger.Debug("Request to %s failed after %v: %v", endpoint.Label, time.Since(start), err)
		return nil, err
	}

	logger.Debug("Request to %s completed in %v with status %d", endpoint.Label, time.Since(start), resp.StatusCode)

	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return nil, runtime.NewResponseError(resp)
	}

	var out models.ChatCompletionResponse
	if err := runtime.UnmarshalAsJSON(resp, &out); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	return &Reply{
		Endpoint:      endpoint.Label,
		Response:      &out,
		DroppedImages: dropped,
	}, nil
}

func buildRequest(prompt Prompt, images []string, seed *int64) (*models.ChatCompletionRequest, error) {
	content := []models.ContentPart{{Type: "text", Text: prompt.Text}}
	for _, ref := range images {
		url, err := ResolveImage(ref)
		if err != nil {
			return nil, err
		}
		content = append(content, models.ContentPart{
			Type:     "image_url",
			ImageURL: &models.ImageURL{URL: url},
		})
	}

	return &models.ChatCompletionRequest{
		Messages: []models.ChatMessage{
			{Role: models.RoleSystem, Content: prompt.System},
			{Role: models.RoleUser, Content: content},
		},
		Seed: seed,
	}, nil
}

type apiKeyPolicy struct {
	key string
}

func (p apiKeyPolicy) Do(req *policy.Request) (*http.Response, error) {
	req.Raw().Header.Set("api-key", p.key)
	return req.Next()
}

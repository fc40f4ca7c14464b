package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
)

const (
	apiBaseURL    = "https://api.twitter.com"
	uploadBaseURL = "https://upload.twitter.com"

	createTweetPath = "/2/tweets"
	mediaUploadPath = "/1.1/media/upload.json"
)

// ErrPublish 表示平台拒绝发帖或请求失败；调用方据此不推进轮次。
var ErrPublish = errors.New("publish failed")

// ErrMissingCredentials is returned by New when posting is requested without the four user-context secrets.
var ErrMissingCredentials = errors.New("twitter credentials missing")

// Credentials holds the OAuth 1.0a user-context secrets.
type Credentials struct {
	APIKey            string
	APIKeySecret      string
	AccessToken       string
	AccessTokenSecret string
}

func (c Credentials) complete() bool {
	return c.APIKey != "" && c.APIKeySecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

// PostResult describes one publish call.
type PostResult struct {
	Posted bool   `json:"posted"`
	ID     string `json:"id,omitempty"`
	DryRun bool   `json:"dry_run"`
}

// Image is an attachment ready for upload.
type Image struct {
	Name string
	Data []byte
}

type createTweetReq struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type createTweetResp struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type uploadMediaResp struct {
	MediaIDString string `json:"media_id_string"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"errors"`
}

func (e apiError) String() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Title != "" {
		return e.Title
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, m := range e.Errors {
		msgs = append(msgs, m.Message)
	}
	return strings.Join(msgs, "; ")
}

// Publisher posts to X/Twitter, or only logs when dry run is on.
type Publisher struct {
	client    *http.Client
	dryRun    bool
	logger    *slog.Logger
	apiURL    string
	uploadURL string
}

// New creates a Publisher. Credentials are only required when dryRun is false.
// client is the transport underneath OAuth signing; nil means a 60s-timeout client.
func New(creds Credentials, client *http.Client, dryRun bool, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		dryRun:    dryRun,
		logger:    logger,
		apiURL:    apiBaseURL,
		uploadURL: uploadBaseURL,
	}
	if dryRun {
		return p, nil
	}
	if !creds.complete() {
		return nil, ErrMissingCredentials
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	config := oauth1.NewConfig(creds.APIKey, creds.APIKeySecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, client)
	p.client = config.Client(ctx, token)
	// oauth1 only borrows the transport
	p.client.Timeout = client.Timeout
	return p, nil
}

func (p *Publisher) DryRun() bool {
	return p.dryRun
}

// PublishText posts text on its own.
func (p *Publisher) PublishText(ctx context.Context, text string) (PostResult, error) {
	if strings.TrimSpace(text) == "" {
		return PostResult{}, fmt.Errorf("%w: empty text", ErrPublish)
	}
	if p.dryRun {
		p.logger.Info("dry run, skipping post", "text", text)
		return PostResult{DryRun: true}, nil
	}
	return p.createTweet(ctx, createTweetReq{Text: text})
}

// PublishWithImage uploads img and posts text with it attached.
func (p *Publisher) PublishWithImage(ctx context.Context, text string, img Image) (PostResult, error) {
	if strings.TrimSpace(text) == "" {
		return PostResult{}, fmt.Errorf("%w: empty text", ErrPublish)
	}
	if len(img.Data) == 0 {
		return PostResult{}, fmt.Errorf("%w: empty image", ErrPublish)
	}
	if p.dryRun {
		p.logger.Info("dry run, skipping post", "text", text, "image", img.Name, "image_bytes", len(img.Data))
		return PostResult{DryRun: true}, nil
	}

	mediaID, err := p.uploadMedia(ctx, img)
	if err != nil {
		return PostResult{}, err
	}
	p.logger.Debug("media uploaded", "media_id", mediaID)
	return p.createTweet(ctx, createTweetReq{Text: text, Media: &tweetMedia{MediaIDs: []string{mediaID}}})
}

func (p *Publisher) createTweet(ctx context.Context, payload createTweetReq) (PostResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return PostResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+createTweetPath, bytes.NewReader(body))
	if err != nil {
		return PostResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var data createTweetResp
	if err := p.do(req, &data); err != nil {
		return PostResult{}, err
	}
	if data.Data.ID == "" {
		return PostResult{}, fmt.Errorf("%w: response has no tweet id", ErrPublish)
	}
	p.logger.Info("posted", "id", data.Data.ID)
	return PostResult{Posted: true, ID: data.Data.ID}, nil
}

func (p *Publisher) uploadMedia(ctx context.Context, img Image) (string, error) {
	name := img.Name
	if name == "" {
		name = "image.png"
	}
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("media", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.uploadURL+mediaUploadPath, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var data uploadMediaResp
	if err := p.do(req, &data); err != nil {
		return "", err
	}
	if data.MediaIDString == "" {
		return "", fmt.Errorf("%w: upload response has no media id", ErrPublish)
	}
	return data.MediaIDString, nil
}

func (p *Publisher) do(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrPublish, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		msg := apiErr.String()
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return fmt.Errorf("%w: %s %s: %d %s", ErrPublish, req.Method, req.URL.Path, resp.StatusCode, msg)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrPublish, err)
	}
	return nil
}

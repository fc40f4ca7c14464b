package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const stoicQuoteURL = "https://stoic-api.vercel.app/api/quote"

type stoicResp struct {
	Text    string `json:"text"`
	Quote   string `json:"quote"`
	Message string `json:"message"`
	Author  string `json:"author"`
}

// StoicClient fetches a single quote from the public stoic quote API.
type StoicClient struct {
	client *http.Client
	url    string
}

func NewStoicClient(client *http.Client) *StoicClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &StoicClient{client: client, url: stoicQuoteURL}
}

// Fetch returns the quote text and author (author may be empty).
func (c *StoicClient) Fetch(ctx context.Context) (Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Row{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Row{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Row{}, fmt.Errorf("stoic quote: unexpected status %d", resp.StatusCode)
	}

	var data stoicResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Row{}, err
	}
	text := strings.TrimSpace(firstNonEmpty(data.Text, data.Quote, data.Message))
	if text == "" {
		return Row{}, errors.New("stoic quote: empty text")
	}
	return Row{Text: text, Author: strings.TrimSpace(data.Author)}, nil
}

// Format renders a fetched quote as post text: "text" - author.
func (r Row) Format() string {
	if r.Author == "" {
		return r.Text
	}
	return fmt.Sprintf("\"%s\" — %s", r.Text, r.Author)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

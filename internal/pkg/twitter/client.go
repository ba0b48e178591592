package twitter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PostResult identifies a published status.
type PostResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Poster is the social-media posting API consumed as a black box: upload
// media, post a message, get back a public URL.
type Poster interface {
	Post(text, mediaURL string) (*PostResult, error)
}

// Client posts statuses through the platform's v2 HTTP API.
type Client struct {
	BaseURL     string
	BearerToken string
	AccountName string
	HTTPClient  *http.Client
}

// NewClient builds a posting client with a bounded request timeout.
func NewClient(baseURL, bearerToken, accountName string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BearerToken: bearerToken,
		AccountName: accountName,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

type createTweetRequest struct {
	Text  string `json:"text"`
	Media *struct {
		MediaIDs []string `json:"media_ids"`
	} `json:"media,omitempty"`
}

type createTweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type uploadMediaResponse struct {
	MediaID string `json:"media_id_string"`
}

// Post publishes a status, uploading the referenced media first when one is
// attached. Returns the status id and its public URL.
func (c *Client) Post(text, mediaURL string) (*PostResult, error) {
	payload := createTweetRequest{Text: text}
	if mediaURL != "" {
		mediaID, err := c.uploadMedia(mediaURL)
		if err != nil {
			return nil, fmt.Errorf("uploading media: %w", err)
		}
		payload.Media = &struct {
			MediaIDs []string `json:"media_ids"`
		}{MediaIDs: []string{mediaID}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("posting status: unexpected status %d", resp.StatusCode)
	}

	var parsed createTweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding post response: %w", err)
	}

	return &PostResult{
		ID:  parsed.Data.ID,
		URL: fmt.Sprintf("https://twitter.com/%s/status/%s", c.AccountName, parsed.Data.ID),
	}, nil
}

func (c *Client) uploadMedia(mediaURL string) (string, error) {
	body, err := json.Marshal(map[string]string{"media_url": mediaURL})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"/1.1/media/upload.json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var parsed uploadMediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.MediaID, nil
}

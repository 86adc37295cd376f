package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"qugrow/core/question"
)

// HTTPFetcher polls the today-feed endpoint of a running API server. It is
// what out-of-browser consumers (the feedwatch tool) plug into a Controller.
type HTTPFetcher struct {
	BaseURL string
	Token   string // JWT bearer token
	Client  *http.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

func (f *HTTPFetcher) FetchToday(ctx context.Context, className string) ([]question.Question, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	endpoint := fmt.Sprintf("%s/api/questions/today/%s", f.BaseURL, url.PathEscape(className))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetching today feed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching today feed: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Success   bool                `json:"success"`
		Questions []question.Question `json:"questions"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decoding today feed")
	}
	return body.Questions, nil
}

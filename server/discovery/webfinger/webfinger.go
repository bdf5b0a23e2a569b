// Package webfinger is a discovery backend which queries the remote node's
// well-known identity endpoint over HTTPS. A handle "alice@pod.example.org"
// is looked up at pod.example.org.
package webfinger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/seednode/pod/server/discovery"
	t "github.com/seednode/pod/server/store/types"
)

const defaultTimeout = 10 * time.Second

type finger struct {
	client *http.Client
	// "https" unless overridden in config for test setups.
	scheme string
}

type configType struct {
	// Request timeout in seconds.
	TimeoutSec int `json:"timeout"`
	// Scheme override, plain "http" is accepted for tests only.
	Scheme string `json:"scheme"`
}

// wire format of the identity endpoint response
type identityDoc struct {
	Handle    string `json:"handle"`
	PublicKey string `json:"public_key"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Init initializes the backend.
func (f *finger) Init(jsonconf json.RawMessage) error {
	var config configType
	if len(jsonconf) > 0 {
		if err := json.Unmarshal(jsonconf, &config); err != nil {
			return errors.New("webfinger: failed to parse config: " + err.Error())
		}
	}

	timeout := defaultTimeout
	if config.TimeoutSec > 0 {
		timeout = time.Duration(config.TimeoutSec) * time.Second
	}
	f.client = &http.Client{Timeout: timeout}
	f.scheme = config.Scheme
	if f.scheme == "" {
		f.scheme = "https"
	}
	return nil
}

// Discover fetches the identity behind the handle from its home node.
func (f *finger) Discover(ctx context.Context, handle string) (*discovery.Result, error) {
	_, domain, ok := strings.Cut(handle, "@")
	if !ok || domain == "" {
		return nil, discovery.ErrNotFound
	}

	endpoint := f.scheme + "://" + domain + "/.well-known/pod-identity?handle=" +
		url.QueryEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, discovery.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("webfinger: unexpected status " + resp.Status)
	}

	var doc identityDoc
	if err = json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}
	if doc.Handle == "" || doc.PublicKey == "" {
		return nil, discovery.ErrNotFound
	}

	res := &discovery.Result{Handle: doc.Handle, PubKey: doc.PublicKey}
	if doc.Name != "" || doc.AvatarURL != "" {
		res.Profile = &t.Profile{Name: doc.Name, AvatarURL: doc.AvatarURL}
	}
	return res, nil
}

func init() {
	discovery.Register("webfinger", &finger{})
}

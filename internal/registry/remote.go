package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/pspoerri/crstransform/internal/crs"
)

// maxDefinitionSize bounds a remote response; real WKT documents are a few
// kilobytes.
const maxDefinitionSize = 1 << 20

// RemoteConfig configures a RemoteStore.
type RemoteConfig struct {
	// URLTemplate contains one %s for the EPSG code, for example
	// "https://epsg.io/%s.wkt".
	URLTemplate string
	Timeout     time.Duration
	MaxRetries  uint
	Client      *http.Client
	Log         logrus.FieldLogger
}

// RemoteStore fetches EPSG definitions over HTTP. Transient failures are
// retried with exponential backoff until the timeout expires; a 404 is a
// plain miss.
type RemoteStore struct {
	cfg RemoteConfig
}

func NewRemoteStore(cfg RemoteConfig) *RemoteStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return &RemoteStore{cfg: cfg}
}

func (s *RemoteStore) Name() string { return "remote" }

func (s *RemoteStore) Init(_ context.Context) error {
	if strings.Count(s.cfg.URLTemplate, "%s") != 1 {
		return fmt.Errorf("URL template %q needs exactly one %%s", s.cfg.URLTemplate)
	}
	return nil
}

func (s *RemoteStore) Definition(ctx context.Context, id Identifier) (Definition, error) {
	if id.Authority != "EPSG" {
		return Definition{}, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	url := fmt.Sprintf(s.cfg.URLTemplate, id.Code)
	log := s.cfg.Log.WithFields(logrus.Fields{"store": s.Name(), "id": id.String()})

	body, err := backoff.Retry(ctx, func() (string, error) {
		return s.fetch(ctx, url)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(s.cfg.MaxRetries+1),
		backoff.WithNotify(func(err error, d time.Duration) {
			log.WithError(err).Debugf("retrying in %v", d)
		}),
	)
	if errors.Is(err, ErrNotFound) {
		return Definition{}, ErrNotFound
	}
	if err != nil {
		return Definition{}, &crs.ResourceInitError{Store: s.Name(), Err: err}
	}
	return Definition{ID: id, WKT: body}, nil
}

func (s *RemoteStore) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", backoff.Permanent(ErrNotFound)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("GET %s: %s", url, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return "", backoff.Permanent(fmt.Errorf("GET %s: %s", url, resp.Status))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDefinitionSize))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *RemoteStore) Codes() []string { return nil }

func (s *RemoteStore) Close() error {
	s.cfg.Client.CloseIdleConnections()
	return nil
}

// Package shopify runs ShopifyQL queries against the Admin GraphQL API.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/de-tools/commerce-atlas/pkg/models/domain"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const DefaultAPIVersion = "2025-10"

const shopifyqlDocument = `query ($qlQuery: String!) {
  shopifyqlQuery(query: $qlQuery) {
    tableData {
      columns {
        name
        dataType
        displayName
      }
      rows
    }
    parseErrors
  }
}`

type Config struct {
	ShopURL    string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	APISecret  string        `mapstructure:"api_secret"`
	APIVersion string        `mapstructure:"api_version"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// Client holds the connection settings shared by every session.
type Client struct {
	cfg  Config
	base string
	http *retryablehttp.Client
}

func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.ShopURL == "" {
		return nil, errors.New("shopify: shop url is required")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("shopify: api key and secret are required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}

	base := strings.TrimRight(cfg.ShopURL, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.Logger = leveledLogger{logger: logger.With().Str("component", "shopify").Logger()}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}

	return &Client{cfg: cfg, base: base, http: rc}, nil
}

// Open exchanges the app credentials for an access token.
func (c *Client) Open(ctx context.Context) (*Session, error) {
	cc := clientcredentials.Config{
		ClientID:     c.cfg.APIKey,
		ClientSecret: c.cfg.APISecret,
		TokenURL:     c.base + "/admin/oauth/access_token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tok, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, c.http.StandardClient()))
	if err != nil {
		return nil, fmt.Errorf("shopify: obtain access token: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Str("shop", c.base).Msg("shopify session opened")
	return &Session{client: c, token: tok.AccessToken}, nil
}

func (c *Client) graphqlURL() string {
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", c.base, c.cfg.APIVersion)
}

// Session is an authenticated connection to one shop.
type Session struct {
	client *Client
	token  string
}

type graphqlRequest struct {
	Query     string            `json:"query"`
	Variables map[string]string `json:"variables"`
}

type graphqlResponse struct {
	Data struct {
		ShopifyqlQuery struct {
			TableData   *domain.RawResultSet `json:"tableData"`
			ParseErrors json.RawMessage      `json:"parseErrors"`
		} `json:"shopifyqlQuery"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (s *Session) Query(ctx context.Context, req domain.QueryRequest) (*domain.RawResultSet, error) {
	if s.token == "" {
		return nil, errors.New("shopify: session is closed")
	}
	text, err := Render(req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(graphqlRequest{
		Query:     shopifyqlDocument,
		Variables: map[string]string{"qlQuery": text},
	})
	if err != nil {
		return nil, fmt.Errorf("encode query %s: %w", req.Kind, err)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.client.graphqlURL(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Shopify-Access-Token", s.token)

	resp, err := s.client.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("shopify query %s: %w", req.Kind, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response of %s: %w", req.Kind, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ExternalQueryError{Kind: req.Kind, Status: resp.StatusCode, Detail: string(payload)}
	}

	var out graphqlResponse
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response of %s: %w", req.Kind, err)
	}

	if len(out.Errors) > 0 {
		messages := make([]string, len(out.Errors))
		for i, e := range out.Errors {
			messages[i] = e.Message
		}
		return nil, &ExternalQueryError{Kind: req.Kind, Detail: strings.Join(messages, "; ")}
	}
	result := out.Data.ShopifyqlQuery
	if hasParseErrors(result.ParseErrors) {
		return nil, &ExternalQueryError{Kind: req.Kind, Detail: string(result.ParseErrors)}
	}
	if result.TableData == nil {
		return nil, &ExternalQueryError{Kind: req.Kind, Detail: "response carries no table data"}
	}

	zerolog.Ctx(ctx).Debug().
		Str("query", string(req.Kind)).
		Int("rows", len(result.TableData.Rows)).
		Msg("shopifyql query returned")
	return result.TableData, nil
}

// Close forgets the access token; later queries fail.
func (s *Session) Close() error {
	s.token = ""
	return nil
}

func hasParseErrors(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "[]", `""`, "{}":
		return false
	}
	return true
}

// leveledLogger routes retryablehttp's logging through zerolog.
type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
	"opacbridge/internal/components/assert"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/opac"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type ClientOptions struct {
	BaseURL string
	// RequestsPerSecond limits the request rate, 0 means unlimited.
	RequestsPerSecond float64
	// Cloudflare wraps the transport with a cloudflare bot check bypass.
	Cloudflare bool
	Timeout    time.Duration
}

// ClientOptionsFor reads the client options from a library's data blob.
func ClientOptionsFor(lib opac.Library) ClientOptions {
	return ClientOptions{
		BaseURL:           strings.TrimSuffix(lib.DataString("baseurl"), "/"),
		RequestsPerSecond: lib.DataFloat("requests_per_second", 0),
		Cloudflare:        lib.DataBool("cloudflare"),
		Timeout:           time.Duration(lib.DataInt("timeout_seconds", 30)) * time.Second,
	}
}

// Client is the http client adapters talk to their site with. It keeps
// cookies, refuses redirects off the site's host and turns every transport
// failure or error status into an *opac.UnreachableError.
type Client struct {
	BaseURL *url.URL
	Http    *resty.Client

	tel telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.BaseURL)

	parsedBaseUrl, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseURL)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if opts.Cloudflare {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("user-agent", userAgent)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsedBaseUrl.Hostname()))
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second * 30
	}
	httpClient.SetTimeout(timeout)

	if opts.RequestsPerSecond > 0 {
		// burst >= 1 just means that no requests will be dropped
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel)

	return &Client{
		BaseURL: parsedBaseUrl,
		Http:    httpClient,
		tel:     tel,
	}, nil
}

func (c *Client) endpoint(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.BaseURL.String() + path
}

func (c *Client) check(ctx context.Context, path string, res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		return nil, &opac.UnreachableError{Endpoint: c.endpoint(path), Err: err}
	}
	if res.StatusCode() >= 400 {
		return nil, &opac.UnreachableError{
			Endpoint: c.endpoint(path),
			Status:   res.StatusCode(),
			Err:      fmt.Errorf("%s", res.Status()),
		}
	}
	return res, nil
}

// Get issues a GET request, path may be relative to the base url or absolute.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*resty.Response, error) {
	req := c.Http.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	res, err := req.Get(path)
	return c.check(ctx, path, res, err)
}

// PostForm issues a form-encoded POST request.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		Post(path)
	return c.check(ctx, path, res, err)
}

// Document parses the body of res as html.
func Document(res *resty.Response) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ParseBody parses a raw html body, used for bodies kept in resume buffers.
func ParseBody(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func (c *Client) GetDocument(ctx context.Context, path string, query url.Values) (*goquery.Document, *resty.Response, error) {
	res, err := c.Get(ctx, path, query)
	if err != nil {
		return nil, nil, err
	}
	doc, err := Document(res)
	if err != nil {
		return nil, nil, err
	}
	return doc, res, nil
}

func (c *Client) PostFormDocument(ctx context.Context, path string, form url.Values) (*goquery.Document, *resty.Response, error) {
	res, err := c.PostForm(ctx, path, form)
	if err != nil {
		return nil, nil, err
	}
	doc, err := Document(res)
	if err != nil {
		return nil, nil, err
	}
	return doc, res, nil
}

// FinalURL is the url the response was served from after redirects.
func FinalURL(res *resty.Response) *url.URL {
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		return res.RawResponse.Request.URL
	}
	parsed, err := url.Parse(res.Request.URL)
	if err != nil {
		return &url.URL{}
	}
	return parsed
}

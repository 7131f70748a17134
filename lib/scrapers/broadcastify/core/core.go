// Package core owns the http transport and credential lifecycle for
// the broadcastify scrapers. The credential is the value of the
// bcfyuser1 cookie handed out on login; every other subpackage attaches
// it verbatim and assumes nothing about its contents.
package core

import (
	"bcfy-backend/lib/telemetry"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("bcfy.lib.scrapers.broadcastify.core")

const DefaultBaseUrl = "https://www.broadcastify.com"

// CredentialCookie is the session cookie the site issues on login.
const CredentialCookie = "bcfyuser1"

var ErrLoginFailed = fmt.Errorf("login failed")
var ErrNotAuthenticated = fmt.Errorf("not authenticated")

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	credential string
}

type ClientOptions struct {
	// BaseUrl defaults to DefaultBaseUrl.
	BaseUrl string
	// Timeout applies to every round trip. Defaults to 30s; the site
	// enforces nothing itself so this is the only bound on a hung
	// request.
	Timeout time.Duration
	// Credential resumes a previous session without logging in again.
	Credential string
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(loginAwareRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(opts.Timeout)

	telemetry.InstrumentResty(client, "bcfy.lib.scrapers.broadcastify.http")

	c := &Client{
		BaseUrl:    baseUrl,
		Http:       client,
		credential: opts.Credential,
	}
	return c, nil
}

// the login response carries the credential cookie on a redirect that
// must be inspected, not followed; everything else follows same-domain
// redirects
func loginAwareRedirectPolicy(hostname string) resty.RedirectPolicy {
	domainPolicy := resty.DomainCheckRedirectPolicy(hostname)
	return resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		if len(via) > 0 && strings.HasPrefix(via[0].URL.Path, "/login") {
			return http.ErrUseLastResponse
		}
		return domainPolicy.Apply(req, via)
	})
}

// Credential returns the current session token, empty when logged out.
func (c *Client) Credential() string {
	return c.credential
}

func (c *Client) SetCredential(token string) {
	c.credential = token
}

func (c *Client) LoggedIn() bool {
	return c.credential != ""
}

// Login exchanges the username/password for a credential token. The
// site answers with a redirect: failed logins carry failed=1 in the
// Location header, successful ones set the credential cookie.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": username,
			"password": password,
			"action":   "auth",
			"redirect": c.BaseUrl.String(),
		}).
		Post("/login/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login request failed")
		return "", fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if res.StatusCode() >= 400 {
		span.SetStatus(codes.Error, "login rejected by server")
		return "", fmt.Errorf("%w: server error %d", ErrLoginFailed, res.StatusCode())
	}

	if strings.Contains(res.Header().Get("Location"), "failed=1") {
		span.SetStatus(codes.Error, "incorrect credentials")
		return "", fmt.Errorf("%w: incorrect credentials", ErrLoginFailed)
	}

	for _, cookie := range res.Cookies() {
		if cookie.Name == CredentialCookie && cookie.Value != "" {
			c.credential = cookie.Value
			return c.credential, nil
		}
	}

	span.SetStatus(codes.Error, "credential cookie not present")
	return "", fmt.Errorf("%w: %s cookie not present in response", ErrLoginFailed, CredentialCookie)
}

// Logout invalidates the credential token server side and forgets it
// locally.
func (c *Client) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Logout")
	defer span.End()

	if c.credential == "" {
		return nil
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetCookie(&http.Cookie{Name: CredentialCookie, Value: c.credential}).
		Get("/account/?action=logout")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "logout request failed")
		return err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "logout rejected by server")
		return fmt.Errorf("logout failed: server error %d", res.StatusCode())
	}

	c.credential = ""
	return nil
}

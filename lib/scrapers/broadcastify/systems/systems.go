// Package systems scrapes trunked radio system metadata: the system
// page, its talkgroup table and county coverage.
package systems

import (
	"bcfy-backend/lib/htmlutil"
	"bcfy-backend/lib/ratelimit"
	"bcfy-backend/lib/scrapers/broadcastify/core"
	"bcfy-backend/lib/telemetry"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("bcfy.lib.scrapers.broadcastify.systems")

type System struct {
	ID       int64
	Name     string
	Location string
	Type     string
}

type Talkgroup struct {
	ID          int64
	Alpha       string
	Description string
	Encrypted   bool
}

type Client struct {
	core    *core.Client
	limiter *ratelimit.Limiter
	// system pages change rarely, talkgroup lookups hit them often
	systemCache *expirable.LRU[int64, System]
}

func NewClient(c *core.Client, limiter *ratelimit.Limiter) Client {
	return Client{
		core:        c,
		limiter:     limiter,
		systemCache: expirable.NewLRU[int64, System](256, nil, time.Hour*12),
	}
}

func (c Client) fetchDocument(ctx context.Context, endpoint string) (*goquery.Document, error) {
	err := c.limiter.Wait(ctx, ratelimit.CategoryScrape)
	if err != nil {
		return nil, err
	}

	res, err := c.core.Http.R().
		SetContext(ctx).
		Get(endpoint)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("fetch %s failed: server error %d", endpoint, res.StatusCode())
	}

	return goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
}

var systemTypeRegex = regexp.MustCompile(`System Type:\s*([^\n]+)`)

// System fetches a system's name, location and type. Results are
// memoized so repeated talkgroup work does not refetch the page.
func (c Client) System(ctx context.Context, systemId int64) (System, error) {
	ctx, span := tracer.Start(ctx, "systems:System")
	defer span.End()

	if cached, hit := c.systemCache.Get(systemId); hit {
		return cached, nil
	}

	doc, err := c.fetchDocument(ctx, fmt.Sprintf("/calls/trs/%d", systemId))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch system page")
		return System{}, err
	}

	system := System{
		ID:       systemId,
		Name:     htmlutil.CleanText(doc.Find("h1.btitle").First().Text()),
		Location: htmlutil.CleanText(doc.Find("div.blocation").First().Text()),
	}
	if groups := systemTypeRegex.FindStringSubmatch(doc.Text()); len(groups) == 2 {
		system.Type = htmlutil.CleanText(groups[1])
	}
	if system.Name == "" {
		span.SetStatus(codes.Error, "system page has no title")
		return System{}, fmt.Errorf("system %d: page has no title", systemId)
	}

	c.systemCache.Add(systemId, system)
	return system, nil
}

// Talkgroups lists the talkgroups of a system. Rows that do not carry
// a numeric talkgroup id are skipped.
func (c Client) Talkgroups(ctx context.Context, systemId int64) ([]Talkgroup, error) {
	ctx, span := tracer.Start(ctx, "systems:Talkgroups")
	defer span.End()

	doc, err := c.fetchDocument(ctx, fmt.Sprintf("/calls/tg/%d", systemId))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch talkgroup page")
		return nil, err
	}

	var talkgroups []Talkgroup
	doc.Find("table.btable tr").Each(func(_ int, row *goquery.Selection) {
		if row.Find("th").Length() > 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		id, err := strconv.ParseInt(
			htmlutil.CleanText(cells.Eq(0).Text()),
			10, 64,
		)
		if err != nil {
			return
		}

		description := htmlutil.CleanText(cells.Eq(2).Text())
		talkgroups = append(talkgroups, Talkgroup{
			ID:          id,
			Alpha:       htmlutil.CleanText(cells.Eq(1).Text()),
			Description: description,
			Encrypted:   isEncrypted(description, row.Text()),
		})
	})
	return talkgroups, nil
}

// the site marks encrypted talkgroups with a lock glyph or an [E] tag
// depending on the page vintage
func isEncrypted(description, rowText string) bool {
	return strings.Contains(rowText, "\U0001F512") ||
		strings.Contains(description, "[E]")
}

type CoverageEntry struct {
	SystemID int64  `json:"systemId"`
	Name     string `json:"name"`
}

// Coverage lists the systems with call coverage in a county, optionally
// filtered by service tag (0 means all tags).
func (c Client) Coverage(ctx context.Context, countyId, tagId int64) ([]CoverageEntry, error) {
	ctx, span := tracer.Start(ctx, "systems:Coverage")
	defer span.End()

	err := c.limiter.Wait(ctx, ratelimit.CategoryScrape)
	if err != nil {
		return nil, err
	}

	res, err := c.core.Http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ctid":  strconv.FormatInt(countyId, 10),
			"tagId": strconv.FormatInt(tagId, 10),
		}).
		Get("/calls/coverage/ctid/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch coverage")
		return nil, err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "coverage request rejected")
		return nil, fmt.Errorf("coverage failed: server error %d", res.StatusCode())
	}

	var entries []CoverageEntry
	err = json.Unmarshal(res.Body(), &entries)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode coverage")
		return nil, fmt.Errorf("decode coverage: %w", err)
	}
	return entries, nil
}

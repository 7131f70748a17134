// Package feeds scrapes the live audio feed directory. The markup is
// not under our control; parsers skip rows they cannot make sense of
// instead of failing a whole listing.
package feeds

import (
	"bcfy-backend/lib/htmlutil"
	"bcfy-backend/lib/ratelimit"
	"bcfy-backend/lib/scrapers/broadcastify/core"
	"bcfy-backend/lib/telemetry"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("bcfy.lib.scrapers.broadcastify.feeds")

type Feed struct {
	ID          int64
	Name        string
	Description string
	Location    string
	Status      string
	Listeners   int64
}

type Client struct {
	core    *core.Client
	limiter *ratelimit.Limiter
}

func NewClient(c *core.Client, limiter *ratelimit.Limiter) Client {
	return Client{core: c, limiter: limiter}
}

func (c Client) listing(ctx context.Context, endpoint string) ([]Feed, error) {
	ctx, span := tracer.Start(ctx, "feeds:listing")
	defer span.End()

	err := c.limiter.Wait(ctx, ratelimit.CategoryScrape)
	if err != nil {
		return nil, err
	}

	res, err := c.core.Http.R().
		SetContext(ctx).
		Get(endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch feed listing")
		return nil, err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "feed listing rejected")
		return nil, fmt.Errorf("feed listing failed: server error %d", res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse feed listing")
		return nil, err
	}

	return parseListing(doc), nil
}

var feedIdRegex = regexp.MustCompile(`l-(\d+)`)

func parseListing(doc *goquery.Document) []Feed {
	var feeds []Feed
	doc.Find("table.btable tr").Each(func(_ int, row *goquery.Selection) {
		// header rows carry th cells
		if row.Find("th").Length() > 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 5 {
			return
		}

		groups := feedIdRegex.FindStringSubmatch(cells.Eq(0).AttrOr("id", ""))
		if len(groups) < 2 {
			return
		}
		id, err := strconv.ParseInt(groups[1], 10, 64)
		if err != nil {
			return
		}

		name := cells.Eq(1).Find("a").First()
		if name.Length() == 0 {
			return
		}

		listeners, _ := strconv.ParseInt(
			htmlutil.CleanText(cells.Eq(4).Text()),
			10, 64,
		)

		feeds = append(feeds, Feed{
			ID:          id,
			Name:        htmlutil.CleanText(name.Text()),
			Description: htmlutil.CleanText(cells.Eq(1).Find("span.rrfont").Text()),
			Location:    htmlutil.CleanText(cells.Eq(2).Text()),
			Status:      htmlutil.CleanText(cells.Eq(3).Text()),
			Listeners:   listeners,
		})
	})
	return feeds
}

// FeedsByStateID lists the feeds of a state by its numeric id.
func (c Client) FeedsByStateID(ctx context.Context, stateId int64) ([]Feed, error) {
	return c.listing(ctx, fmt.Sprintf("/listen/stid/%d", stateId))
}

// FeedsByState accepts either a state name or its numeric id.
func (c Client) FeedsByState(ctx context.Context, state string) ([]Feed, error) {
	if id, err := strconv.ParseInt(state, 10, 64); err == nil {
		return c.FeedsByStateID(ctx, id)
	}
	id, err := StateID(state)
	if err != nil {
		return nil, err
	}
	return c.FeedsByStateID(ctx, id)
}

func (c Client) FeedsByCounty(ctx context.Context, countyId int64) ([]Feed, error) {
	return c.listing(ctx, fmt.Sprintf("/listen/ctid/%d", countyId))
}

func (c Client) FeedsByMetro(ctx context.Context, metroId int64) ([]Feed, error) {
	return c.listing(ctx, fmt.Sprintf("/listen/mid/%d", metroId))
}

var ErrUnknownState = fmt.Errorf("unknown state")

// ids from the website's state select list
var stateIds = map[string]int64{
	"alabama": 1, "alaska": 2, "arizona": 4, "arkansas": 5,
	"california": 6, "colorado": 8, "connecticut": 9, "delaware": 10,
	"district of columbia": 11, "florida": 12, "georgia": 13, "guam": 66,
	"hawaii": 15, "idaho": 16, "illinois": 17, "indiana": 18,
	"iowa": 19, "kansas": 20, "kentucky": 21, "louisiana": 22,
	"maine": 23, "maryland": 24, "massachusetts": 25, "michigan": 26,
	"minnesota": 27, "mississippi": 28, "missouri": 29, "montana": 30,
	"nebraska": 31, "nevada": 32, "new hampshire": 33, "new jersey": 34,
	"new mexico": 35, "new york": 36, "north carolina": 37,
	"north dakota": 38, "ohio": 39, "oklahoma": 40, "oregon": 41,
	"pennsylvania": 42, "puerto rico": 72, "rhode island": 44,
	"south carolina": 45, "south dakota": 46, "tennessee": 47,
	"texas": 48, "utah": 49, "vermont": 50, "virgin islands": 78,
	"virginia": 51, "washington": 53, "west virginia": 54,
	"wisconsin": 55, "wyoming": 56,
}

// StateID resolves a state name to its feed directory id, tolerating
// minor misspellings.
func StateID(name string) (int64, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if id, ok := stateIds[normalized]; ok {
		return id, nil
	}

	return fuzzyStateID(normalized)
}

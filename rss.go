package radpress

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// feedSize is the number of articles in the RSS feed.
const feedSize = 20

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Categories  []string `xml:"category"`
	PubDate     string   `xml:"pubDate"`
	GUID        string   `xml:"guid"`
}

// renderRSS writes the feed. Item descriptions carry the teaser HTML, which
// encoding/xml escapes.
func (a *App) renderRSS(c echo.Context, articles []Article) error {
	base := a.Config.URL
	items := make([]rssItem, 0, len(articles))
	var latest time.Time
	for _, ar := range articles {
		link := BuildURL(base, "detail", ar.Slug)
		item := rssItem{
			Title:       ar.Title,
			Link:        link,
			Description: ar.ContentByMore(a.Config.MoreTag),
			PubDate:     ar.CreatedAt.Format(time.RFC1123Z),
			GUID:        link,
		}
		for _, t := range ar.Tags {
			item.Categories = append(item.Categories, t.Name)
		}
		items = append(items, item)
		if ar.UpdatedAt.After(latest) {
			latest = ar.UpdatedAt
		}
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        BuildURL(base),
			Description: a.Config.Description,
			Items:       items,
		},
	}
	if !latest.IsZero() {
		feed.Channel.LastBuildDate = latest.Format(time.RFC1123Z)
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(feed)
}

package api

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-inbox/internal/database"
)

func TestRSSGeneratorRun(t *testing.T) {
	description := "All about examples"
	f := database.Feed{
		ID:          1,
		URL:         "https://example.com/feed.xml",
		Title:       "Example & Co",
		Description: &description,
	}

	published := time.Date(2023, 7, 3, 12, 0, 0, 0, time.UTC)
	entries := []database.UserEntryView{
		{
			GUID:        "https://example.com/item1",
			Title:       "Item <1>",
			Link:        "https://example.com/item1",
			Description: "<p>Full content</p>",
			Summary:     "Short summary",
			PublishedAt: &published,
		},
		{
			GUID:        "item-2",
			Title:       "Item 2",
			Description: "Only description",
		},
	}

	rss, err := NewRSSGenerator().Run(f, entries)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rss, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, rss, `<rss version="2.0"`)
	assert.Contains(t, rss, "<title>Example &amp; Co</title>")
	assert.Contains(t, rss, "<description>All about examples</description>")

	assert.Contains(t, rss, `<guid isPermaLink="true">https://example.com/item1</guid>`)
	assert.Contains(t, rss, "<title>Item &lt;1&gt;</title>")
	assert.Contains(t, rss, "<description>Short summary</description>")
	assert.Contains(t, rss, "<content:encoded><![CDATA[<p>Full content</p>]]></content:encoded>")
	assert.Contains(t, rss, "<pubDate>Mon, 03 Jul 2023 12:00:00 +0000</pubDate>")

	assert.Contains(t, rss, `<guid isPermaLink="false">item-2</guid>`)
	assert.Contains(t, rss, "<description>Only description</description>")
	assert.Equal(t, 1, strings.Count(rss, "<content:encoded>"))

	var doc struct {
		Channel struct {
			Items []struct {
				GUID string `xml:"guid"`
			} `xml:"item"`
		} `xml:"channel"`
	}
	require.NoError(t, xml.Unmarshal([]byte(rss), &doc))
	assert.Len(t, doc.Channel.Items, 2)
}

func TestRSSGeneratorEmptyInbox(t *testing.T) {
	rss, err := NewRSSGenerator().Run(database.Feed{URL: "https://example.com/rss", Title: "Empty"}, nil)
	require.NoError(t, err)

	assert.Contains(t, rss, "<description>Entries from https://example.com/rss</description>")
	assert.NotContains(t, rss, "<item>")
}

package api

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/lysyi3m/rss-inbox/internal/database"
)

// RSSGenerator renders a subscription's inbox as an RSS 2.0 document.
type RSSGenerator struct{}

func NewRSSGenerator() *RSSGenerator {
	return &RSSGenerator{}
}

func (g *RSSGenerator) Run(feed database.Feed, entries []database.UserEntryView) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(xml.Header)
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">`)
	buf.WriteString("\n  <channel>\n")

	if err := g.writeElement(&buf, "title", feed.Title, 4); err != nil {
		return "", err
	}
	if err := g.writeElement(&buf, "link", feed.URL, 4); err != nil {
		return "", err
	}

	description := fmt.Sprintf("Entries from %s", feed.URL)
	if feed.Description != nil && *feed.Description != "" {
		description = *feed.Description
	}
	if err := g.writeElement(&buf, "description", description, 4); err != nil {
		return "", err
	}

	if err := g.writeElement(&buf, "lastBuildDate", time.Now().UTC().Format(time.RFC1123Z), 4); err != nil {
		return "", err
	}
	if err := g.writeElement(&buf, "generator", "RSS-Inbox/1.0", 4); err != nil {
		return "", err
	}

	for _, entry := range entries {
		if err := g.writeItem(&buf, entry); err != nil {
			return "", err
		}
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *RSSGenerator) writeItem(buf *bytes.Buffer, entry database.UserEntryView) error {
	buf.WriteString("    <item>\n")

	fmt.Fprintf(buf, "      <guid isPermaLink=\"%t\">", g.isURL(entry.GUID))
	if err := xml.EscapeText(buf, []byte(entry.GUID)); err != nil {
		return err
	}
	buf.WriteString("</guid>\n")

	if err := g.writeElement(buf, "title", entry.Title, 6); err != nil {
		return err
	}
	if err := g.writeElement(buf, "link", entry.Link, 6); err != nil {
		return err
	}

	summary := entry.Summary
	if summary == "" {
		summary = entry.Description
	}
	if err := g.writeElement(buf, "description", summary, 6); err != nil {
		return err
	}

	// Full content only when it adds something to the summary
	if entry.Description != "" && entry.Description != summary {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(strings.ReplaceAll(entry.Description, "]]>", "]]]]><![CDATA[>"))
		buf.WriteString("]]></content:encoded>\n")
	}

	if entry.PublishedAt != nil {
		if err := g.writeElement(buf, "pubDate", entry.PublishedAt.UTC().Format(time.RFC1123Z), 6); err != nil {
			return err
		}
	}

	buf.WriteString("    </item>\n")
	return nil
}

func (g *RSSGenerator) writeElement(buf *bytes.Buffer, tag, content string, indent int) error {
	if content == "" {
		return nil
	}

	buf.WriteString(strings.Repeat(" ", indent))
	buf.WriteString("<" + tag + ">")
	if err := xml.EscapeText(buf, []byte(content)); err != nil {
		return fmt.Errorf("failed to escape %s: %w", tag, err)
	}
	buf.WriteString("</" + tag + ">\n")

	return nil
}

func (g *RSSGenerator) isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

package channeldata

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wuxler/chanidx/pkg/util/xos"
)

// feedItemLimit is the number of most-recent packages the syndication
// feed carries, per spec.md §4.7.6.
const feedItemLimit = 100

// rssItem is one <item> in the feed, grounded on the teacher-adjacent
// reference rss.py's field set and fallback chain.
type rssItem struct {
	XMLName     xml.Name `xml:"item"`
	Title       string   `xml:"title"`
	Description string   `xml:"description,omitempty"`
	Link        string   `xml:"link,omitempty"`
	Comments    string   `xml:"comments,omitempty"`
	GUID        string   `xml:"guid,omitempty"`
	PubDate     string   `xml:"pubDate,omitempty"`
	Source      string   `xml:"source,omitempty"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	PubDate       string    `xml:"pubDate"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

// candidateEntry pairs an entry's name with its fields, for the two
// buckets of a Document flattened into one feed.
type candidateEntry struct {
	name  string
	entry Entry
}

// recentEntries returns the feedItemLimit entries (across both pkgs and
// pkgs_c) with the greatest timestamp, sorted most-recent-first.
func recentEntries(doc Document) []candidateEntry {
	all := make([]candidateEntry, 0, len(doc.Packages)+len(doc.PackagesConda))
	for name, e := range doc.Packages {
		all = append(all, candidateEntry{name, e})
	}
	for name, e := range doc.PackagesConda {
		all = append(all, candidateEntry{name, e})
	}
	sort.Slice(all, func(i, j int) bool {
		ti, _ := all[i].entry["timestamp"].(int64)
		tj, _ := all[j].entry["timestamp"].(int64)
		if ti != tj {
			return ti > tj
		}
		return all[i].name < all[j].name
	})
	if len(all) > feedItemLimit {
		all = all[:feedItemLimit]
	}
	return all
}

func iso822(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
}

func stringField(e Entry, key string) string {
	s, _ := e[key].(string)
	return s
}

func coalesce(e Entry, keys ...string) string {
	for _, k := range keys {
		if s := stringField(e, k); s != "" {
			return s
		}
	}
	return "No description."
}

func subdirsCSV(e Entry) string {
	subdirs, _ := e["subdirs"].([]string)
	sorted := append([]string(nil), subdirs...)
	sort.Strings(sorted)
	out := ""
	for i, s := range sorted {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// BuildFeed renders the syndication feed for the feedItemLimit most
// recent packages in doc, grounded on the teacher-adjacent reference
// implementation's rss.py field layout.
func BuildFeed(channelName string, doc Document, now time.Time) ([]byte, error) {
	items := recentEntries(doc)
	channel := rssChannel{
		Title:         fmt.Sprintf("%s channel updates", channelName),
		Link:          channelName,
		Description:   fmt.Sprintf("%d package updates in %s.", len(items), channelName),
		PubDate:       iso822(now),
		LastBuildDate: iso822(now),
	}
	for _, c := range items {
		version := stringField(c.entry, "version")
		ts, _ := c.entry["timestamp"].(int64)
		channel.Items = append(channel.Items, rssItem{
			Title:       fmt.Sprintf("%s %s [%s]", c.name, version, subdirsCSV(c.entry)),
			Description: coalesce(c.entry, "description", "summary"),
			Link:        stringField(c.entry, "doc_url"),
			Comments:    stringField(c.entry, "dev_url"),
			GUID:        stringField(c.entry, "source_url"),
			PubDate:     iso822(time.Unix(ts, 0)),
			Source:      stringField(c.entry, "home"),
		})
	}

	feed := rssFeed{Version: "2.0", Channel: channel}
	body, err := xml.MarshalIndent(feed, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encoding rss.xml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// WriteFeed writes rss.xml atomically to channelRoot, skipping the write
// if the content is unchanged.
func WriteFeed(channelRoot string, body []byte) error {
	target := filepath.Join(channelRoot, "rss.xml")
	if existing, err := os.ReadFile(target); err == nil && string(existing) == string(body) {
		return nil
	}

	temper := xos.NewTemper(channelRoot)
	f, err := temper.CreateTemp("rss.xml.tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for rss.xml: %w", err)
	}
	tmpName := f.Name()
	if _, err := f.Write(body); err != nil {
		f.Close() //nolint:errcheck
		os.Remove(tmpName)
		return fmt.Errorf("writing rss.xml: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing rss.xml: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming into rss.xml: %w", err)
	}
	return nil
}

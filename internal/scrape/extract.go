package scrape

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMaxTextChars bounds Digest.BodyText in runes.
const DefaultMaxTextChars = 5000

// Digest is the reduced view of a page that feeds the prompt.
type Digest struct {
	Title           string   `json:"title"`
	MetaDescription string   `json:"meta_description"`
	Headings        string   `json:"headings"`
	BodyText        string   `json:"body_text"`
	SocialLinks     []string `json:"social_links,omitempty"`
	TechStack       []string `json:"tech_stack,omitempty"`
}

// Extractor turns raw HTML into a Digest.
type Extractor struct {
	MaxTextChars int
}

// Extract uses DefaultMaxTextChars.
func Extract(html, pageURL string) Digest {
	return Extractor{MaxTextChars: DefaultMaxTextChars}.Extract(html, pageURL)
}

// Extract never fails: empty or malformed HTML yields an empty digest whose
// Title is pageURL.
func (e Extractor) Extract(html, pageURL string) Digest {
	d := Digest{Title: pageURL}
	if strings.TrimSpace(html) == "" {
		return d
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return d
	}

	if t := collapseSpace(doc.Find("head title").First().Text()); t != "" {
		d.Title = t
	} else if t := collapseSpace(doc.Find("title").First().Text()); t != "" {
		d.Title = t
	} else if og := metaContent(doc, `meta[property="og:title"]`); og != "" {
		d.Title = og
	}

	d.MetaDescription = metaContent(doc, `meta[name="description"]`)
	if d.MetaDescription == "" {
		d.MetaDescription = metaContent(doc, `meta[property="og:description"]`)
	}

	var headings []string
	doc.Find("h1").Each(func(_ int, s *goquery.Selection) {
		if h := collapseSpace(s.Text()); h != "" {
			headings = append(headings, h)
		}
	})
	d.Headings = strings.Join(headings, "; ")

	d.SocialLinks = socialLinks(doc, pageURL)
	d.TechStack = DetectTechStack(html)

	doc.Find("script, style, noscript, template, svg").Remove()
	body := doc.Find("body")
	text := body.Text()
	if body.Length() == 0 {
		text = doc.Text()
	}
	limit := e.MaxTextChars
	if limit <= 0 {
		limit = DefaultMaxTextChars
	}
	d.BodyText = truncateRunes(collapseSpace(text), limit)

	return d
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return collapseSpace(v)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// socialHosts maps a registrable host to an optional required path prefix.
var socialHosts = []struct {
	host   string
	prefix []string
}{
	{"linkedin.com", []string{"/company", "/in"}},
	{"facebook.com", nil},
	{"instagram.com", nil},
	{"x.com", nil},
	{"twitter.com", nil},
	{"youtube.com", nil},
	{"tiktok.com", nil},
}

func socialLinks(doc *goquery.Document, pageURL string) []string {
	base, _ := url.Parse(pageURL)

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		if !isSocial(u) {
			return
		}
		u.Fragment = ""
		link := strings.TrimSuffix(u.String(), "/")
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})
	return links
}

func isSocial(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, sh := range socialHosts {
		if host != sh.host && !strings.HasSuffix(host, "."+sh.host) {
			continue
		}
		if len(sh.prefix) == 0 {
			return strings.Trim(u.Path, "/") != ""
		}
		for _, p := range sh.prefix {
			if strings.HasPrefix(u.Path, p+"/") {
				return true
			}
		}
	}
	return false
}

var techMarkers = []struct {
	name    string
	markers []string
}{
	{"WordPress", []string{"wp-content/", "wp-includes/", `content="wordpress`}},
	{"Shopify", []string{"cdn.shopify.com", "shopify.theme"}},
	{"Wix", []string{"static.wixstatic.com", "wix.com website builder"}},
	{"Squarespace", []string{"static1.squarespace.com", "squarespace-cdn.com"}},
	{"Webflow", []string{"data-wf-page", "webflow.js", "assets.website-files.com"}},
	{"HubSpot", []string{"js.hs-scripts.com", "js.hsforms.net", "js.hs-analytics.net"}},
	{"Google Tag Manager", []string{"googletagmanager.com/gtm.js", "googletagmanager.com/ns.html"}},
	{"Google Analytics", []string{"google-analytics.com/analytics.js", "googletagmanager.com/gtag/js", "gtag('config'"}},
	{"Next.js", []string{"__next_data__", "/_next/static/"}},
	{"React", []string{"data-reactroot", "react-dom"}},
	{"jQuery", []string{"jquery.min.js", "jquery.js", "/jquery-"}},
	{"Bootstrap", []string{"bootstrap.min.css", "bootstrap.min.js", "bootstrap.bundle"}},
}

// DetectTechStack returns the technologies whose markers appear in html, in a
// stable order.
func DetectTechStack(html string) []string {
	lower := strings.ToLower(html)
	var found []string
	for _, t := range techMarkers {
		for _, m := range t.markers {
			if strings.Contains(lower, m) {
				found = append(found, t.name)
				break
			}
		}
	}
	return found
}

package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"whoisgate/internal/classify"
	"whoisgate/internal/registry"
)

// --- GitHub ------------------------------------------------------------

type githubUser struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	Bio         string `json:"bio"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	HTMLURL     string `json:"html_url"`
	AvatarURL   string `json:"avatar_url"`
	CreatedAt   string `json:"created_at"`
}

func (d *Deps) registerGithub(reg *registry.Registry) {
	reg.Register(classify.KindGithub, func(ctx *registry.Context) (string, error) {
		var u githubUser
		apiURL := "https://api.github.com/users/" + url.PathEscape(ctx.Query.Payload)
		if err := d.getJSON(ctx.Ctx, apiURL, &u); err != nil {
			return comment("GitHub user %q not found", ctx.Query.Payload), nil
		}
		var b strings.Builder
		b.WriteString(comment("GitHub user: %s", u.Login))
		fmt.Fprintf(&b, "name: %s\n", u.Name)
		fmt.Fprintf(&b, "bio: %s\n", u.Bio)
		fmt.Fprintf(&b, "company: %s\n", u.Company)
		fmt.Fprintf(&b, "location: %s\n", u.Location)
		fmt.Fprintf(&b, "public-repos: %d\n", u.PublicRepos)
		fmt.Fprintf(&b, "followers: %d\n", u.Followers)
		fmt.Fprintf(&b, "created: %s\n", u.CreatedAt)
		fmt.Fprintf(&b, "github-url: %s\n", u.HTMLURL)
		fmt.Fprintf(&b, "avatar-url: %s\n", u.AvatarURL)
		return b.String(), nil
	}, false)
}

// --- Wikipedia / Moegirl (ACGC) ----------------------------------------

type mediaWikiQueryResponse struct {
	Query struct {
		Pages map[string]struct {
			Title        string `json:"title"`
			Extract      string `json:"extract"`
			CanonicalURL string `json:"canonicalurl"`
			FullURL      string `json:"fullurl"`
		} `json:"pages"`
	} `json:"query"`
}

func (d *Deps) queryMediaWiki(ctx context.Context, baseURL, title string) (string, string, error) {
	params := url.Values{
		"action":      {"query"},
		"format":      {"json"},
		"prop":        {"extracts|info"},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"inprop":      {"url"},
		"titles":      {title},
	}
	var resp mediaWikiQueryResponse
	if err := d.getJSON(ctx, baseURL+"?"+params.Encode(), &resp); err != nil {
		return "", "", err
	}
	for _, page := range resp.Query.Pages {
		pageURL := page.CanonicalURL
		if pageURL == "" {
			pageURL = page.FullURL
		}
		return page.Extract, pageURL, nil
	}
	return "", "", fmt.Errorf("no page found for %q", title)
}

func (d *Deps) registerWikipedia(reg *registry.Registry) {
	reg.Register(classify.KindWikipedia, func(ctx *registry.Context) (string, error) {
		extract, pageURL, err := d.queryMediaWiki(ctx.Ctx, "https://en.wikipedia.org/w/api.php", ctx.Query.Payload)
		if err != nil {
			return comment("Wikipedia lookup failed: %v", err), nil
		}
		var b strings.Builder
		b.WriteString(comment("Wikipedia: %s", ctx.Query.Payload))
		fmt.Fprintf(&b, "extract: %s\n", extract)
		fmt.Fprintf(&b, "wikipedia-url: %s\n", pageURL)
		return b.String(), nil
	}, false)
}

func (d *Deps) registerACGC(reg *registry.Registry) {
	reg.Register(classify.KindACGC, func(ctx *registry.Context) (string, error) {
		extract, pageURL, err := d.queryMediaWiki(ctx.Ctx, "https://zh.moegirl.org.cn/api.php", ctx.Query.Payload)
		if err != nil {
			return comment("Moegirl lookup failed: %v", err), nil
		}
		var b strings.Builder
		b.WriteString(comment("Moegirl (ACGC): %s", ctx.Query.Payload))
		fmt.Fprintf(&b, "extract: %s\n", extract)
		fmt.Fprintf(&b, "moegirl-url: %s\n", pageURL)
		return b.String(), nil
	}, false)
}

// --- Lyric ---------------------------------------------------------------

type lyricResponse struct {
	Title  string   `json:"title"`
	Author []string `json:"author"`
	Year   uint32   `json:"year"`
	Lines  []string `json:"lines"`
}

func (d *Deps) registerLyric(reg *registry.Registry) {
	reg.Register(classify.KindLyric, func(ctx *registry.Context) (string, error) {
		var r lyricResponse
		if err := d.getJSON(ctx.Ctx, "https://lty.vc/lyric?format=json", &r); err != nil {
			return comment("lyric lookup failed: %v", err), nil
		}
		var b strings.Builder
		b.WriteString(comment("Random Luotianyi lyric"))
		fmt.Fprintf(&b, "title: %s\n", r.Title)
		fmt.Fprintf(&b, "author: %s\n", strings.Join(r.Author, ", "))
		fmt.Fprintf(&b, "year: %d\n", r.Year)
		for _, line := range r.Lines {
			fmt.Fprintf(&b, "lyric: %s\n", line)
		}
		return b.String(), nil
	}, false)
}

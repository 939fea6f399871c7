package handlers

import (
	"encoding/json"
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"

	"praxis-website/internal/content"
	"praxis-website/internal/locale"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Page is one public page of the website
type Page struct {
	Route string
	Path  string
	Title string // catalog key
}

// Route names. The response cache keys and tags derive from them.
const (
	RouteHome           = "home"
	RouteServices       = "services"
	RouteTeam           = "team"
	RouteFAQ            = "faq"
	RouteContact        = "contact"
	RouteContactSubmit  = "contact.submit"
	RouteContactReasons = "contact.reasons"
	RouteImprint        = "legal.imprint"
	RoutePrivacy        = "legal.privacy"
	RouteSitemap        = "sitemap"
)

// Pages lists the public pages in navigation order
var Pages = []Page{
	{Route: RouteHome, Path: "/", Title: "pages.home"},
	{Route: RouteServices, Path: "/leistungen", Title: "pages.services"},
	{Route: RouteTeam, Path: "/team", Title: "pages.team"},
	{Route: RouteFAQ, Path: "/faq", Title: "pages.faq"},
	{Route: RouteContact, Path: "/kontakt", Title: "pages.contact"},
	{Route: RouteImprint, Path: "/impressum", Title: "pages.imprint"},
	{Route: RoutePrivacy, Path: "/datenschutz", Title: "pages.privacy"},
}

// PageHandler renders the public pages as JSON documents
type PageHandler struct {
	content    *content.Provider
	reasons    *ContactHandler
	translator Translator
	locales    []string
	fallback   string
	baseURL    string
	logger     *zap.Logger
}

// NewPageHandler creates a new page handler
func NewPageHandler(provider *content.Provider, reasons *ContactHandler, tr Translator, resolver *locale.Resolver, baseURL string, logger *zap.Logger) *PageHandler {
	return &PageHandler{
		content:    provider,
		reasons:    reasons,
		translator: tr,
		locales:    resolver.Supported(),
		fallback:   resolver.Default(),
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// Handler returns the gin handler of page
func (h *PageHandler) Handler(page Page) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		loc := locale.FromContext(ctx, h.fallback)

		body := gin.H{
			"route":  page.Route,
			"locale": loc,
			"title":  h.translator.Translate(loc, page.Title, nil),
		}
		var sections []string
		switch page.Route {
		case RouteHome:
			sections = []string{content.Navigation, content.OpeningHours, content.Services}
		case RouteServices:
			sections = []string{content.Navigation, content.Services}
		case RouteTeam:
			sections = []string{content.Navigation, content.Team}
		case RouteFAQ:
			sections = []string{content.Navigation, content.FAQ}
		case RouteContact:
			sections = []string{content.Navigation, content.OpeningHours}
		case RouteImprint:
			body["text"] = h.translator.Translate(loc, "legal.imprint", nil)
		case RoutePrivacy:
			body["text"] = h.translator.Translate(loc, "legal.privacy", nil)
		}

		for _, name := range sections {
			raw, err := h.content.Get(ctx, name, loc)
			if err != nil {
				h.logger.Error("Failed to load page content", zap.String("lookup", name), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			body[jsonName(name)] = json.RawMessage(raw)
		}

		if page.Route == RouteContact && h.reasons != nil {
			views, err := h.reasons.localizedReasons(ctx, loc)
			if err != nil {
				h.logger.Error("Failed to list contact reasons", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			body["reasons"] = views
		}

		c.JSON(http.StatusOK, body)
	}
}

// NotFound answers unknown routes in the request locale
func (h *PageHandler) NotFound(c *gin.Context) {
	loc := locale.FromContext(c.Request.Context(), h.fallback)
	c.JSON(http.StatusNotFound, gin.H{"error": h.translator.Translate(loc, "errors.not_found", nil)})
}

func jsonName(lookup string) string {
	parts := strings.Split(lookup, "_")
	for i := 1; i < len(parts); i++ {
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	XHTML   string       `xml:"xmlns:xhtml,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string        `xml:"loc"`
	Alternates []sitemapLink `xml:"xhtml:link"`
}

type sitemapLink struct {
	Rel      string `xml:"rel,attr"`
	Hreflang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}

// Sitemap lists every public page in every locale with hreflang alternates
func (h *PageHandler) Sitemap(c *gin.Context) {
	set := h.buildSitemap()
	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", append([]byte(xml.Header), out...))
}

func (h *PageHandler) buildSitemap() sitemapURLSet {
	set := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		XHTML: "http://www.w3.org/1999/xhtml",
	}
	for _, page := range Pages {
		alternates := make([]sitemapLink, 0, len(h.locales)+1)
		for _, loc := range h.locales {
			alternates = append(alternates, sitemapLink{Rel: "alternate", Hreflang: loc, Href: h.pageURL(page.Path, loc)})
		}
		alternates = append(alternates, sitemapLink{Rel: "alternate", Hreflang: "x-default", Href: h.pageURL(page.Path, "")})

		for _, loc := range h.locales {
			set.URLs = append(set.URLs, sitemapURL{Loc: h.pageURL(page.Path, loc), Alternates: alternates})
		}
	}
	return set
}

func (h *PageHandler) pageURL(path, loc string) string {
	if loc == "" {
		return h.baseURL + path
	}
	return h.baseURL + path + "?" + url.Values{locale.QueryParam: {loc}}.Encode()
}

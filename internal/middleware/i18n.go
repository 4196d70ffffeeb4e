package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}
type countryContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

var (
	supportedLocales = []language.Tag{language.English, language.Spanish}
	localeMatcher    = language.NewMatcher(supportedLocales)
)

// spanishCountries are regions whose visitors default to Spanish when the
// request carries no language preference.
var spanishCountries = map[string]bool{
	"AR": true, "BO": true, "CL": true, "CO": true, "CR": true, "CU": true,
	"DO": true, "EC": true, "ES": true, "GT": true, "HN": true, "MX": true,
	"NI": true, "PA": true, "PE": true, "PR": true, "PY": true, "SV": true,
	"UY": true, "VE": true,
}

func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			locale := detectLocale(r, defaultLocale, country)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, strings.ToUpper(country))
			}
			w.Header().Set("Content-Language", locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string, country string) string {
	if v := r.Header.Get("X-Locale"); v != "" {
		if locale, ok := matchLocale(v); ok {
			return locale
		}
	}
	if v := r.Header.Get("Accept-Language"); v != "" {
		if locale, ok := matchLocale(v); ok {
			return locale
		}
	}
	if spanishCountries[strings.ToUpper(country)] {
		return "es"
	}
	if country != "" {
		return "en"
	}
	if locale, ok := matchLocale(fallback); ok {
		return locale
	}
	return "en"
}

// matchLocale resolves an Accept-Language style value onto the supported
// locales. ok is false when nothing matched.
func matchLocale(header string) (string, bool) {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return "", false
	}
	_, index, confidence := localeMatcher.Match(tags...)
	if confidence == language.No {
		return "", false
	}
	base, _ := supportedLocales[index].Base()
	return base.String(), true
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry resolves a best-effort ISO country code for the given request.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	headerHints := []string{"X-Country-Code", "X-Vercel-IP-Country", "CF-IPCountry", "X-Appengine-Country"}
	for _, key := range headerHints {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	if region := localeRegion(r.Header.Get("X-Locale")); region != "" {
		return region
	}
	if region := localeRegion(r.Header.Get("Accept-Language")); region != "" {
		return region
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}

// localeRegion returns the region of the first tag in accept that names one.
func localeRegion(accept string) string {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil {
		return ""
	}
	for _, tag := range tags {
		if region, confidence := tag.Region(); confidence == language.Exact {
			if code := region.String(); len(code) == 2 {
				return code
			}
		}
	}
	return ""
}

package session

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"
)

// CookieKey is the storage key of the saved cookies
const CookieKey = "cookies"

// savedCookie is one cookie as written to the store. Max-Age is turned
// into an absolute expiry when the cookie is saved.
type savedCookie struct {
	URL      string     `json:"url"`
	Name     string     `json:"name"`
	Value    string     `json:"value"`
	Domain   string     `json:"domain,omitempty"`
	Path     string     `json:"path"`
	Expires  *time.Time `json:"expires,omitempty"`
	Secure   bool       `json:"secure,omitempty"`
	HttpOnly bool       `json:"httpOnly,omitempty"`
}

func (c savedCookie) expired(now time.Time) bool {
	return c.Expires != nil && !c.Expires.After(now)
}

func (c savedCookie) cookie() *http.Cookie {
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}
	if c.Expires != nil {
		hc.Expires = *c.Expires
	}
	return hc
}

// CookieJar is an http.CookieJar that mirrors every cookie into the
// session's Store. The refresh token only ever exists as an HTTP-only
// cookie, so a FileStore-backed jar is what lets a later process renew
// an expired access token.
type CookieJar struct {
	store   Store
	mu      sync.Mutex
	jar     *cookiejar.Jar
	saved   map[string]savedCookie
	onError func(error)
}

// NewCookieJar creates a jar holding the cookies saved in store. When the
// saved cookies cannot be read the jar starts empty and the error is
// returned alongside it.
func NewCookieJar(store Store) (*CookieJar, error) {
	if store == nil {
		store = NewMemoryStore()
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cookie jar")
	}

	j := &CookieJar{
		store: store,
		jar:   jar,
		saved: make(map[string]savedCookie),
	}
	return j, j.load()
}

// OnError registers a handler for failures to save cookies. SetCookies
// has no error return, so this is the only place they surface.
func (j *CookieJar) OnError(fn func(error)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onError = fn
}

// Cookies implements http.CookieJar
func (j *CookieJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// SetCookies implements http.CookieJar
func (j *CookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	now := time.Now()
	origin := *u
	origin.RawQuery = ""
	origin.Fragment = ""

	for _, c := range cookies {
		sc := savedCookie{
			URL:      origin.String(),
			Name:     c.Name,
			Value:    c.Value,
			Domain:   strings.TrimPrefix(strings.ToLower(c.Domain), "."),
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if sc.Path == "" || !strings.HasPrefix(sc.Path, "/") {
			sc.Path = defaultCookiePath(u.Path)
		}

		switch {
		case c.MaxAge < 0:
			sc.Expires = &now
		case c.MaxAge > 0:
			exp := now.Add(time.Duration(c.MaxAge) * time.Second)
			sc.Expires = &exp
		case !c.Expires.IsZero():
			exp := c.Expires
			sc.Expires = &exp
		}

		key := cookieID(u, sc)
		if sc.expired(now) {
			delete(j.saved, key)
			continue
		}
		j.saved[key] = sc
	}

	if err := j.save(); err != nil && j.onError != nil {
		j.onError(err)
	}
}

// Clear drops every cookie, in memory and in the store
func (j *CookieJar) Clear() error {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return errors.Wrap(err, "failed to create cookie jar")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar = jar
	j.saved = make(map[string]savedCookie)
	if err := j.store.Delete(CookieKey); err != nil {
		return errors.Wrap(err, "failed to clear cookies")
	}
	return nil
}

func (j *CookieJar) load() error {
	raw, ok, err := j.store.Get(CookieKey)
	if err != nil {
		return errors.Wrap(err, "failed to read cookies")
	}
	if !ok || raw == "" {
		return nil
	}

	var saved []savedCookie
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return errors.Wrap(err, "failed to unmarshal cookies")
	}

	now := time.Now()
	for _, sc := range saved {
		if sc.expired(now) {
			continue
		}
		u, err := url.Parse(sc.URL)
		if err != nil || u.Host == "" {
			continue
		}
		j.jar.SetCookies(u, []*http.Cookie{sc.cookie()})
		j.saved[cookieID(u, sc)] = sc
	}
	return nil
}

func (j *CookieJar) save() error {
	if len(j.saved) == 0 {
		return j.store.Delete(CookieKey)
	}

	saved := make([]savedCookie, 0, len(j.saved))
	for _, sc := range j.saved {
		saved = append(saved, sc)
	}
	data, err := json.Marshal(saved)
	if err != nil {
		return errors.Wrap(err, "failed to marshal cookies")
	}
	if err := j.store.Set(CookieKey, string(data)); err != nil {
		return errors.Wrap(err, "failed to store cookies")
	}
	return nil
}

// cookieID identifies a cookie the way a jar does: by domain, path and
// name. Host-only cookies use the request host.
func cookieID(u *url.URL, sc savedCookie) string {
	domain := sc.Domain
	if domain == "" {
		domain = strings.ToLower(u.Hostname())
	}
	return domain + ";" + sc.Path + ";" + sc.Name
}

// defaultCookiePath is the path a cookie without a Path attribute gets
// (RFC 6265 section 5.1.4)
func defaultCookiePath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}

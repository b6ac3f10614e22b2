package frontend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

const playerCookie = "xemk_player"

// savedLogin is what the login form remembers between visits.
type savedLogin struct {
	PlayerID string `json:"player_id"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
}

func loadLogin() (savedLogin, bool) {
	var l savedLogin
	v := getCookie(playerCookie)
	if v == "" {
		return l, false
	}
	if err := json.Unmarshal([]byte(v), &l); err != nil || l.PlayerID == "" {
		return l, false
	}
	return l, true
}

func saveLogin(l savedLogin) {
	b, _ := json.Marshal(l)
	setCookie(playerCookie, string(b), 30)
}

func clearLogin() {
	setDocumentCookie(cookieString(playerCookie, "", time.Unix(0, 0)))
}

func getCookie(name string) string {
	document := app.Window().Get("document")
	if !document.Truthy() {
		return ""
	}
	return cookieValue(document.Get("cookie").String(), name)
}

func setCookie(name, value string, days int) {
	setDocumentCookie(cookieString(name, value, time.Now().AddDate(0, 0, days)))
}

func setDocumentCookie(c string) {
	document := app.Window().Get("document")
	if document.Truthy() {
		document.Set("cookie", c)
	}
}

// cookieValue returns the unescaped value of name in a "k1=v1; k2=v2" cookie header.
func cookieValue(header, name string) string {
	for _, pair := range strings.Split(header, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k != name {
			continue
		}
		if unescaped, err := url.QueryUnescape(v); err == nil {
			return unescaped
		}
		return v
	}
	return ""
}

// cookieString formats a document.cookie assignment valid for the whole site.
func cookieString(name, value string, expires time.Time) string {
	return fmt.Sprintf("%s=%s; expires=%s; path=/", name, url.QueryEscape(value), expires.UTC().Format(http.TimeFormat))
}

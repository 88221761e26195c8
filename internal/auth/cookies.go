package auth

import (
	"net/http"
	"time"
)

const (
	AccessCookieName  = "mc_access"
	RefreshCookieName = "mc_refresh"
)

type CookieConfig struct {
	Domain string
	Secure bool
}

func SetAuthCookies(w http.ResponseWriter, cfg CookieConfig, accessToken, refreshToken string, accessTTL, refreshTTL time.Duration) {
	http.SetCookie(w, authCookie(cfg, AccessCookieName, accessToken, int(accessTTL.Seconds())))
	http.SetCookie(w, authCookie(cfg, RefreshCookieName, refreshToken, int(refreshTTL.Seconds())))
}

func ClearAuthCookies(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, authCookie(cfg, AccessCookieName, "", -1))
	http.SetCookie(w, authCookie(cfg, RefreshCookieName, "", -1))
}

// World App renders mini-apps in a webview on a different origin, so secure
// deployments need SameSite=None for the cookies to be sent at all.
func authCookie(cfg CookieConfig, name, value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if cfg.Secure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cfg.Domain,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: sameSite,
		MaxAge:   maxAge,
	}
}

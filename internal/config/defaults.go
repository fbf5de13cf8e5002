package config

// Browser drivers
const (
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
	DriverStatic     = "static"
)

// DefaultBaseURL and DefaultLoginURL point at the production BiNDup service
const (
	DefaultBaseURL  = "https://bindup.jp/"
	DefaultLoginURL = "https://accounts.digitalstage.jp/login"
)

// DefaultUserAgents provides a list of common user agents
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
}

// DefaultPopups are close controls of the announcement and tutorial dialogs
// shown after login
var DefaultPopups = []string{
	"#button-1014",
	"#id-first-guide-ok",
	`role=button[name="閉じる"]`,
	`.x-tool-close`,
	`button:has-text("OK")`,
}

// Element names used by the built-in cases
const (
	ElementUsername = "username"
	ElementPassword = "password"
	ElementSubmit   = "submit"
	ElementLoggedIn = "logged_in"
)

// DefaultElements returns the selectors of the login form and dashboard
func DefaultElements() map[string]ElementConfig {
	return map[string]ElementConfig{
		ElementUsername: {
			Description: "login id field",
			Primary:     "#loginID",
			Fallbacks:   []string{`input[name="mailaddress"]`, `input[type="email"]`, "role=textbox"},
		},
		ElementPassword: {
			Description: "password field",
			Primary:     "#loginPass",
			Fallbacks:   []string{`input[name="password"]`, `input[type="password"]`},
		},
		ElementSubmit: {
			Description: "login button",
			Primary:     "#login-btn",
			Fallbacks:   []string{`button[type="submit"]`, "text=ログイン", `role=button[name="Login"]`},
		},
		ElementLoggedIn: {
			Description: "dashboard start button",
			Primary:     `text=BiNDupを起動`,
			Fallbacks:   []string{"#dashboard", ".dashboard"},
		},
	}
}

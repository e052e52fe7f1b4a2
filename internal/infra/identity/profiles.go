package identity

// Profile is one coherent browser fingerprint. Every field must agree with
// the others: a Chrome 142 User-Agent ships with Chrome 142 client hints
// and the chrome142 TLS impersonation key, or the combination itself
// becomes the correlation signal.
type Profile struct {
	UserAgent       string
	SecChUA         string
	SecChUAMobile   string
	SecChUAPlatform string
	AcceptLanguage  string
	Platform        string // Windows, macOS, Linux
	BrowserName     string
	BrowserVersion  string
	Impersonation   string // TLS fingerprint key for the transport
	ViewportWidth   int
	ViewportHeight  int
}

// DefaultCatalog is the built-in set of coherent desktop profiles.
var DefaultCatalog = []Profile{
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36",
		SecChUA:         `"Not A Brand";v="99", "Google Chrome";v="142", "Chromium";v="142"`,
		SecChUAMobile:   "?0",
		SecChUAPlatform: `"Windows"`,
		AcceptLanguage:  "en-US,en;q=0.9",
		Platform:        "Windows",
		BrowserName:     "chrome",
		BrowserVersion:  "142",
		Impersonation:   "chrome142",
		ViewportWidth:   1920,
		ViewportHeight:  1080,
	},
	{
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36",
		SecChUA:         `"Not A Brand";v="99", "Google Chrome";v="142", "Chromium";v="142"`,
		SecChUAMobile:   "?0",
		SecChUAPlatform: `"macOS"`,
		AcceptLanguage:  "en-US,en;q=0.9",
		Platform:        "macOS",
		BrowserName:     "chrome",
		BrowserVersion:  "142",
		Impersonation:   "chrome142",
		ViewportWidth:   1728,
		ViewportHeight:  1117,
	},
	{
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36",
		SecChUA:         `"Not A Brand";v="99", "Google Chrome";v="142", "Chromium";v="142"`,
		SecChUAMobile:   "?0",
		SecChUAPlatform: `"Linux"`,
		AcceptLanguage:  "en-US,en;q=0.8",
		Platform:        "Linux",
		BrowserName:     "chrome",
		BrowserVersion:  "142",
		Impersonation:   "chrome142",
		ViewportWidth:   1920,
		ViewportHeight:  1080,
	},
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36",
		SecChUA:         `"Chromium";v="136", "Not A Brand";v="99", "Google Chrome";v="136"`,
		SecChUAMobile:   "?0",
		SecChUAPlatform: `"Windows"`,
		AcceptLanguage:  "en-US,en;q=0.9",
		Platform:        "Windows",
		BrowserName:     "chrome",
		BrowserVersion:  "136",
		Impersonation:   "chrome136",
		ViewportWidth:   2560,
		ViewportHeight:  1440,
	},
	{
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36",
		SecChUA:         `"Chromium";v="136", "Not A Brand";v="99", "Google Chrome";v="136"`,
		SecChUAMobile:   "?0",
		SecChUAPlatform: `"macOS"`,
		AcceptLanguage:  "en-GB,en;q=0.9",
		Platform:        "macOS",
		BrowserName:     "chrome",
		BrowserVersion:  "136",
		Impersonation:   "chrome136",
		ViewportWidth:   1512,
		ViewportHeight:  982,
	},
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		SecChUA:         `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		SecChUAMobile:   "?0",
		SecChUAPlatform: `"Windows"`,
		AcceptLanguage:  "en-US,en;q=0.9",
		Platform:        "Windows",
		BrowserName:     "chrome",
		BrowserVersion:  "131",
		Impersonation:   "chrome131",
		ViewportWidth:   1366,
		ViewportHeight:  768,
	},
}

package platform

import (
	"fmt"
	"math/rand"
)

// Fingerprint material used to make sessions look like real installs.
// Keeping the pool small and realistic matters more than variety.

var browserUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

type viewport struct {
	Width  int
	Height int
}

var viewportSizes = []viewport{
	{1920, 1080},
	{1536, 864},
	{1440, 900},
	{1366, 768},
	{2560, 1440},
}

// stealthArgs disable the browser features that most readily give away
// automation.
var stealthArgs = []string{
	"--disable-blink-features=AutomationControlled",
	"--disable-dev-shm-usage",
	"--disable-infobars",
	"--disable-background-networking",
	"--disable-breakpad",
	"--disable-component-update",
	"--disable-default-apps",
	"--disable-extensions",
	"--disable-hang-monitor",
	"--disable-popup-blocking",
	"--disable-prompt-on-repost",
	"--disable-sync",
	"--disable-translate",
	"--metrics-recording-only",
	"--no-first-run",
	"--safebrowsing-disable-auto-update",
	"--password-store=basic",
	"--use-mock-keychain",
}

// mobileDevice is an Android install profile for the private mobile API.
type mobileDevice struct {
	AppVersion     string
	AndroidVersion int
	AndroidRelease string
	DPI            string
	Resolution     string
	Manufacturer   string
	Device         string
	Model          string
	CPU            string
	VersionCode    string
}

var mobileDevices = []mobileDevice{
	{
		AppVersion:     "269.0.0.18.75",
		AndroidVersion: 31,
		AndroidRelease: "12.0",
		DPI:            "480dpi",
		Resolution:     "1080x2400",
		Manufacturer:   "Samsung",
		Device:         "SM-G991B",
		Model:          "Galaxy S21",
		CPU:            "exynos2100",
		VersionCode:    "314665256",
	},
	{
		AppVersion:     "269.0.0.18.75",
		AndroidVersion: 33,
		AndroidRelease: "13.0",
		DPI:            "420dpi",
		Resolution:     "1080x2340",
		Manufacturer:   "Google",
		Device:         "Pixel 7",
		Model:          "Pixel 7",
		CPU:            "tensor",
		VersionCode:    "314665256",
	},
	{
		AppVersion:     "269.0.0.18.75",
		AndroidVersion: 32,
		AndroidRelease: "12.1",
		DPI:            "440dpi",
		Resolution:     "1440x3200",
		Manufacturer:   "Samsung",
		Device:         "SM-S908B",
		Model:          "Galaxy S22 Ultra",
		CPU:            "exynos2200",
		VersionCode:    "314665256",
	},
}

func randomBrowserUserAgent() string {
	return browserUserAgents[rand.Intn(len(browserUserAgents))]
}

func randomViewport() viewport {
	return viewportSizes[rand.Intn(len(viewportSizes))]
}

func randomMobileDevice() mobileDevice {
	return mobileDevices[rand.Intn(len(mobileDevices))]
}

// userAgent renders the device as the mobile app's User-Agent string.
func (d mobileDevice) userAgent() string {
	return fmt.Sprintf("Instagram %s Android (%d/%s; %s; %s; %s; %s; %s; %s; en_US; %s)",
		d.AppVersion, d.AndroidVersion, d.AndroidRelease, d.DPI, d.Resolution,
		d.Manufacturer, d.Device, d.Model, d.CPU, d.VersionCode)
}

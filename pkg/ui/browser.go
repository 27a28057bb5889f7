package ui

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// openURL hands the URL to the platform opener. AV_NO_BROWSER suppresses it,
// which keeps automated runs from spawning windows.
func openURL(url string) error {
	if os.Getenv("AV_NO_BROWSER") != "" {
		return fmt.Errorf("browser disabled (AV_NO_BROWSER)")
	}
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		if _, err := exec.LookPath("xdg-open"); err != nil {
			return fmt.Errorf("no opener available: %w", err)
		}
		return exec.Command("xdg-open", url).Start()
	}
}

package observability

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorBold     = "\033[1m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

// PrintBanner clears the screen and centers the startup logo.
func PrintBanner() {
	fmt.Print("\033[2J\033[H")

	banner := `
    ___    _   ____ __ ___    ____  ____  ______
   /   |  / | / / //_//   |  / __ )/ __ \/_  __/
  / /| | /  |/ / ,<  / /| | / __  / / / / / /
 / ___ |/ /|  / /| |/ ___ |/ /_/ / /_/ / / /
/_/  |_/_/ |_/_/ |_/_/  |_/_____/\____/ /_/

         >> CONVERSATIONAL INTAKE BOT <<
`

	width := termWidth()
	lines := strings.Split(banner, "\n")

	for _, l := range lines {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Printf("%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan+l, colorReset)
	}
}

// PrintStartup summarizes the loaded configuration under the banner.
func PrintStartup(form string, steps int, organizers int, gateways []string) {
	fmt.Printf("%s[ FORM ]%s %s (%d steps)\n", colorBold, colorReset, form, steps)
	fmt.Printf("%s[ OPER ]%s %d organizer(s) configured\n", colorBold, colorReset, organizers)
	fmt.Printf("%s[ GATE ]%s %s\n", colorBold, colorReset, strings.Join(gateways, ", "))
}

// Uptime reports how long the process has been running.
func Uptime() time.Duration {
	return time.Since(startTime).Round(time.Second)
}

package main

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/term"
)

// Spinner runs an action while displaying a rotating text indicator on stdout.
type Spinner struct {
	title string
}

// NewSpinner creates a new Spinner instance.
func NewSpinner() *Spinner {
	return &Spinner{}
}

// Title sets the text displayed next to the indicator.
func (s *Spinner) Title(title string) *Spinner {
	s.title = title
	return s
}

const (
	eraseToEOL = "\033[0K"
	hideCursor = "\033[?25l"
	showCursor = "\033[?25h"
)

var spinRunes = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// Run executes the action while animating the indicator. If the action terminates
// the process (a fatal pre-flight diagnostic), the animation is simply cut short.
func (s *Spinner) Run(action func()) error {
	const interval = 200 * time.Millisecond

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		spinIdx := 0
		fmt.Print(hideCursor)
		defer fmt.Print(showCursor)

		for {
			select {
			case <-ticker.C:
				// Recalculated at every tick, the terminal may be resized mid-animation.
				terminalWidth, _, err := term.GetSize(0)
				if err != nil {
					terminalWidth = 80
				}
				fmt.Printf("\r%c %s%s", spinRunes[spinIdx%len(spinRunes)], truncateToWidth(s.title, terminalWidth-3), eraseToEOL)
				spinIdx++

			case <-stopChan:
				fmt.Printf("\r%s", eraseToEOL)
				return
			}
		}
	}()

	action()

	close(stopChan)
	wg.Wait()
	return nil
}

// truncateToWidth clips a string to the given display width.
func truncateToWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 1 {
		return string(runes[:width])
	}
	return string(runes[:width-1]) + "…"
}

package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wojtekolesinski/onchain-battleships/models"
)

const (
	maxRequests  = 3
	requestDelay = 500 * time.Millisecond
)

func promptList[T any](list []T, start int, mapper func(T) string) int {
	for i, el := range list {
		fmt.Printf("(%d)\t%s\n", start+i, mapper(el))
	}

	var res string
	var choice int
	for {
		fmt.Print("Your choice: ")
		_, err := fmt.Scanln(&res)
		if err != nil {
			fmt.Printf("Try again: %s\n", err)
			continue
		}
		choice, err = strconv.Atoi(res)
		if err != nil {
			fmt.Printf("Try again: %s\n", err)
			continue
		}

		if choice >= start && choice < len(list)+start {
			return choice
		}
	}
}

// makeRequest retries target a few times, logging each failure, and returns
// the last error.
func makeRequest(target func() error) error {
	var err error
	for i := 0; i < maxRequests; i++ {
		if err = target(); err == nil {
			return nil
		}
		log.Error("app [makeRequest]", "attempt", i+1, "err", err)
		time.Sleep(requestDelay)
	}
	return err
}

func promptPlayer(prompt string) bool {
	var res string
	for {
		fmt.Printf("%s (y/n): ", prompt)
		_, err := fmt.Scanln(&res)
		if err == nil {
			if res == "y" {
				return true
			} else if res == "n" {
				return false
			}
		} else {
			log.Error("app [promptPlayer]", "err", err, "res", res)
		}
	}
}

// parseCoords turns a board label like "B7" into a position: the letter is
// the column (x), the number the row (y), counted from 1.
func parseCoords(coords string) (models.Position, error) {
	coords = strings.ToUpper(strings.TrimSpace(coords))
	if len(coords) < 2 || coords[0] < 'A' || coords[0] > 'Z' {
		return models.Position{}, fmt.Errorf("app.parseCoords: bad coordinates %q", coords)
	}
	y, err := strconv.Atoi(coords[1:])
	if err != nil || y < 1 {
		return models.Position{}, fmt.Errorf("app.parseCoords: bad coordinates %q", coords)
	}
	return models.Position{X: int(coords[0] - 'A'), Y: y - 1}, nil
}

func formatCoords(p models.Position) string {
	return fmt.Sprintf("%c%d", 'A'+p.X, p.Y+1)
}

func shortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

// Package cli handles cmd line input and search results for DBG and testing various features
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bastiangx/menuserve/internal/utils"
	"github.com/bastiangx/menuserve/pkg/catalog"
	"github.com/bastiangx/menuserve/pkg/search"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	nameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// InputHandler reads queries from stdin and prints matching restaurants,
// menu items and suggestions. Lines starting with ":m " search menu items
// only, ":s " lists suggestions only.
type InputHandler struct {
	searcher       search.ISearcher
	minQueryLength int
	maxQueryLength int
	limit          int
	noFilter       bool
	in             io.Reader
	logger         *log.Logger
}

// NewInputHandler handles initialization of the InputHandler with basic parameters
func NewInputHandler(searcher search.ISearcher, minLength, maxLength, limit int, noFilter bool) *InputHandler {
	return &InputHandler{
		searcher:       searcher,
		minQueryLength: minLength,
		maxQueryLength: maxLength,
		limit:          limit,
		noFilter:       noFilter,
		in:             os.Stdin,
		logger:         log.Default(),
	}
}

// Start begins the interface loop. It returns nil when input ends.
func (h *InputHandler) Start() error {
	h.logger.Print("menuserve CLI [BETA]")
	reader := bufio.NewReader(h.in)
	h.logger.Print("type a query and press Enter (:m menu items, :s suggestions, Ctrl+C to exit):")

	for {
		h.logger.Print("> ")
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			h.handleInput(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// handleInput runs one line and returns how many rows it printed.
func (h *InputHandler) handleInput(line string) int {
	mode, query := "", line
	if strings.HasPrefix(line, ":m ") || strings.HasPrefix(line, ":s ") {
		mode, query = line[:2], strings.TrimSpace(line[3:])
	}
	query = utils.Normalize(query)

	if n := utf8.RuneCountInString(query); n < h.minQueryLength {
		h.logger.Errorf("Query too short: %s", query)
		return 0
	} else if h.maxQueryLength > 0 && n > h.maxQueryLength {
		h.logger.Errorf("Query too long: %s", query)
		return 0
	}

	// input filtering by default (unless --no-filter flag is used)
	if !h.noFilter && !utils.IsValidInput(query) {
		h.logger.Infof("No results found for query: '%s'", query)
		return 0
	}

	start := time.Now()
	printed := 0
	switch mode {
	case ":m":
		printed = h.printEntities("menu items", h.searcher.SearchMenuItems(query, "", h.limit))
	case ":s":
		printed = h.printSuggestions(h.searcher.GetSuggestions(query, h.limit))
	default:
		printed += h.printEntities("restaurants", h.searcher.SearchRestaurants(query, search.Filters{}, h.limit))
		printed += h.printEntities("menu items", h.searcher.SearchMenuItems(query, "", h.limit))
		printed += h.printSuggestions(h.searcher.GetSuggestions(query, h.limit))
	}
	h.logger.Debugf("Took [ %v ] for query '%s'", time.Since(start), query)

	if printed == 0 {
		h.logger.Warnf("Nothing found for query: '%s'", query)
	}
	return printed
}

func (h *InputHandler) printEntities(label string, entities []catalog.Entity) int {
	if len(entities) == 0 {
		return 0
	}
	h.logger.Printf("Found %d %s:", len(entities), label)
	for i, e := range entities {
		detail := e.Cuisine
		if e.Kind == catalog.KindMenuItem {
			detail = fmt.Sprintf("%.2f @ %s", e.Price, e.RestaurantID)
		} else if e.Rating > 0 {
			detail = fmt.Sprintf("%s, %.1f★", e.Cuisine, e.Rating)
		}
		h.logger.Printf("%2d. %-40s %s", i+1, nameStyle.Render(e.Name), dimStyle.Render(detail))
	}
	return len(entities)
}

func (h *InputHandler) printSuggestions(suggestions []string) int {
	if len(suggestions) == 0 {
		return 0
	}
	h.logger.Printf("Suggestions: %s", dimStyle.Render(strings.Join(suggestions, " · ")))
	return len(suggestions)
}

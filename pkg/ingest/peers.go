package ingest

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"dcfengine/pkg/models"
)

// peer table header spellings, lowercased. Comp tables saved from data
// terminals are inconsistent about punctuation.
var peerColumns = map[string]string{
	"company":   "name",
	"name":      "name",
	"peer":      "name",
	"ticker":    "name",
	"ev/ebitda": "ev_ebitda",
	"ev ebitda": "ev_ebitda",
	"p/e":       "pe",
	"pe":        "pe",
	"p/b":       "pb",
	"pb":        "pb",
}

// LoadPeersHTML reads a saved comp-table HTML file.
func LoadPeersHTML(path string) ([]models.PeerMultiple, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open peer table %s: %w", path, err)
	}
	defer f.Close()

	peers, err := ParsePeerTable(f)
	if err != nil {
		return nil, fmt.Errorf("parse peer table %s: %w", path, err)
	}
	return peers, nil
}

// ParsePeerTable extracts peer multiples from the first HTML table whose
// header row names a company column and at least one multiple. Cells that do
// not parse as numbers (dashes, "n/a", "nm") stay nil.
func ParsePeerTable(r io.Reader) ([]models.PeerMultiple, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var peers []models.PeerMultiple
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		cols := headerColumns(table)
		if cols["name"] < 0 || (cols["ev_ebitda"] < 0 && cols["pe"] < 0 && cols["pb"] < 0) {
			return true // not a comp table, keep looking
		}

		table.Find("tr").Each(func(i int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() == 0 {
				return // header row
			}
			name := strings.TrimSpace(cells.Eq(cols["name"]).Text())
			if name == "" {
				return
			}
			peers = append(peers, models.PeerMultiple{
				Name:     name,
				EVEBITDA: cellNumber(cells, cols["ev_ebitda"]),
				PE:       cellNumber(cells, cols["pe"]),
				PB:       cellNumber(cells, cols["pb"]),
			})
		})
		return false // first matching table wins
	})

	if len(peers) == 0 {
		return nil, fmt.Errorf("no peer table found")
	}
	return peers, nil
}

// headerColumns maps canonical column names to their index, -1 when absent.
func headerColumns(table *goquery.Selection) map[string]int {
	cols := map[string]int{"name": -1, "ev_ebitda": -1, "pe": -1, "pb": -1}
	table.Find("th").Each(func(i int, th *goquery.Selection) {
		header := strings.ToLower(strings.TrimSpace(th.Text()))
		if canon, ok := peerColumns[header]; ok && cols[canon] < 0 {
			cols[canon] = i
		}
	})
	return cols
}

// cellNumber parses a multiple cell, tolerating "12.5x", thousands commas,
// and placeholder text for missing values.
func cellNumber(cells *goquery.Selection, idx int) *float64 {
	if idx < 0 || idx >= cells.Length() {
		return nil
	}
	text := strings.TrimSpace(cells.Eq(idx).Text())
	text = strings.TrimSuffix(strings.ToLower(text), "x")
	text = strings.ReplaceAll(text, ",", "")
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return nil
	}
	return models.F(v)
}

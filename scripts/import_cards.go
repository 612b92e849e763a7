// Command import_cards converts a CSV card export into the YAML master
// data consumed by the battle server. Rows sharing a card id are merged,
// one attack per row, so flattened exports with multi-attack cards load
// correctly.
//
// Usage: go run scripts/import_cards.go [-in data/cards_export.csv] [-out data/cards.yaml]
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ptcgsim/battle-server-go/internal/card"
)

type cardFile struct {
	Cards []*card.Card `yaml:"cards"`
}

func main() {
	inPath := flag.String("in", "data/cards_export.csv", "CSV export to read")
	outPath := flag.String("out", "data/cards.yaml", "YAML master data to write")
	flag.Parse()

	f, err := os.Open(*inPath)
	if err != nil {
		log.Fatalf("open export: %v", err)
	}
	defer f.Close()

	cards, rows, err := parseExport(f)
	if err != nil {
		log.Fatalf("parse export: %v", err)
	}

	for _, c := range cards {
		if err := c.Validate(); err != nil {
			log.Fatalf("invalid card: %v", err)
		}
	}

	data, err := yaml.Marshal(cardFile{Cards: cards})
	if err != nil {
		log.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		log.Fatalf("write %s: %v", *outPath, err)
	}

	fmt.Printf("imported %d cards from %d rows into %s\n", len(cards), rows, *outPath)
}

// parseExport reads the CSV and merges rows by card id, keeping
// first-seen order. Returns the cards and the number of data rows read.
func parseExport(r io.Reader) ([]*card.Card, int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"id", "name", "kind"} {
		if _, ok := col[required]; !ok {
			return nil, 0, fmt.Errorf("missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}
	intField := func(row []string, name string) (int, error) {
		raw := field(row, name)
		if raw == "" {
			return 0, nil
		}
		return strconv.Atoi(raw)
	}

	byID := make(map[string]*card.Card)
	var cards []*card.Card
	rows := 0

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("row %d: %w", rows+2, err)
		}
		rows++

		id := field(row, "id")
		if id == "" {
			return nil, 0, fmt.Errorf("row %d: empty id", rows+1)
		}

		c, seen := byID[id]
		if !seen {
			hp, err := intField(row, "hp")
			if err != nil {
				return nil, 0, fmt.Errorf("card %s: bad hp: %w", id, err)
			}
			stage, err := intField(row, "stage")
			if err != nil {
				return nil, 0, fmt.Errorf("card %s: bad stage: %w", id, err)
			}
			retreat, err := intField(row, "retreat_cost")
			if err != nil {
				return nil, 0, fmt.Errorf("card %s: bad retreat_cost: %w", id, err)
			}
			c = &card.Card{
				ID:          id,
				Name:        field(row, "name"),
				Kind:        card.Kind(strings.ToUpper(field(row, "kind"))),
				EnergyType:  card.EnergyType(strings.ToUpper(field(row, "energy_type"))),
				HP:          hp,
				Stage:       card.Stage(stage),
				EvolvesFrom: field(row, "evolves_from"),
				RetreatCost: retreat,
				Weakness:    card.EnergyType(strings.ToUpper(field(row, "weakness"))),
				IsEx:        strings.EqualFold(field(row, "is_ex"), "true"),
			}
			byID[id] = c
			cards = append(cards, c)
		}

		attackName := field(row, "attack_name")
		if attackName == "" {
			continue
		}
		damage, err := intField(row, "attack_damage")
		if err != nil {
			return nil, 0, fmt.Errorf("card %s: bad attack_damage: %w", id, err)
		}
		c.Attacks = append(c.Attacks, card.Attack{
			Name:   attackName,
			Cost:   parseCost(field(row, "attack_cost")),
			Damage: damage,
			Text:   field(row, "attack_text"),
		})
	}

	return cards, rows, nil
}

// parseCost splits a cost string like "FIRE+FIRE+COLORLESS".
func parseCost(raw string) []card.EnergyType {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, "+")
	cost := make([]card.EnergyType, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		cost = append(cost, card.EnergyType(p))
	}
	return cost
}

package bot

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Card template names.
const (
	CardPayByCash          = "payByCash"
	CardDirectDebitPayment = "directDebitPayment"
	CardCantUsePayPoint    = "cantUsePayPoint"
)

//go:embed cards/*.json
var cardFS embed.FS

// Cards is a set of named adaptive card templates.
type Cards struct {
	byName map[string]json.RawMessage
}

// LoadCards reads the embedded card templates. Every template must be valid JSON.
func LoadCards() (*Cards, error) {
	return loadCards(cardFS, "cards")
}

func loadCards(fsys fs.FS, dir string) (*Cards, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read cards: %w", err)
	}
	c := &Cards{byName: make(map[string]json.RawMessage, len(entries))}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read card %s: %w", e.Name(), err)
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("card %s is not valid JSON", e.Name())
		}
		c.byName[strings.TrimSuffix(e.Name(), ".json")] = json.RawMessage(data)
	}
	return c, nil
}

// Card implements routing.CardSource.
func (c *Cards) Card(name string) (json.RawMessage, bool) {
	data, ok := c.byName[name]
	return data, ok
}

// Names returns the template names in sorted order.
func (c *Cards) Names() []string {
	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

package conversation

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// QuestionsPerCategory is fixed for every category in the catalog.
const QuestionsPerCategory = 4

// Category identifies one guided flow.
type Category string

const (
	CategoryPlantCare  Category = "plant_care"
	CategoryFertilizer Category = "fertilizer"
	CategoryDisease    Category = "disease"
	CategoryRepotting  Category = "repotting"
)

// AllCategories returns the categories in menu order.
func AllCategories() []Category {
	return []Category{CategoryPlantCare, CategoryFertilizer, CategoryDisease, CategoryRepotting}
}

// ParseCategory accepts a category id, ignoring case and surrounding space.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryPlantCare, CategoryFertilizer, CategoryDisease, CategoryRepotting:
		return c, true
	}
	return "", false
}

type Question struct {
	Prompt  string   `yaml:"prompt" json:"prompt"`
	Options []string `yaml:"options" json:"options"`
}

// CategoryInfo is the display text and question list of one category.
type CategoryInfo struct {
	ID          Category   `yaml:"id" json:"id"`
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description" json:"description"`
	Aliases     []string   `yaml:"aliases" json:"-"`
	Questions   []Question `yaml:"questions" json:"questions"`
	Suggestions []string   `yaml:"suggestions" json:"suggestions"`
}

// Question returns the question at index i.
func (c *CategoryInfo) Question(i int) (Question, bool) {
	if i < 0 || i >= len(c.Questions) {
		return Question{}, false
	}
	return c.Questions[i], true
}

// MenuOption is one entry of the category menu.
type MenuOption struct {
	ID          Category `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

// Catalog is the static, read-only set of categories.
type Catalog struct {
	categories []CategoryInfo
	byID       map[Category]int
	aliases    map[string]Category
}

//go:embed catalog.yaml
var catalogYAML []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// DefaultCatalog returns the catalog compiled into the binary. It panics if
// the embedded document is invalid.
func DefaultCatalog() *Catalog {
	defaultOnce.Do(func() {
		c, err := ParseCatalog(catalogYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// ParseCatalog loads and validates a catalog document. It must define each
// category exactly once, with QuestionsPerCategory non-empty prompts.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Categories []CategoryInfo `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		categories: doc.Categories,
		byID:       make(map[Category]int, len(doc.Categories)),
		aliases:    make(map[string]Category),
	}
	for i, info := range doc.Categories {
		id, ok := ParseCategory(string(info.ID))
		if !ok {
			return nil, fmt.Errorf("unknown category %q", info.ID)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("category %q defined twice", id)
		}
		if len(info.Questions) != QuestionsPerCategory {
			return nil, fmt.Errorf("category %q has %d questions, want %d", id, len(info.Questions), QuestionsPerCategory)
		}
		for j, q := range info.Questions {
			if strings.TrimSpace(q.Prompt) == "" {
				return nil, fmt.Errorf("category %q question %d has no prompt", id, j+1)
			}
		}
		c.categories[i].ID = id
		c.byID[id] = i

		c.aliases[string(id)] = id
		c.aliases[strings.ToLower(info.Title)] = id
		for _, alias := range info.Aliases {
			c.aliases[strings.ToLower(strings.TrimSpace(alias))] = id
		}
	}
	if len(c.byID) != len(AllCategories()) {
		return nil, fmt.Errorf("catalog defines %d categories, want %d", len(c.byID), len(AllCategories()))
	}
	return c, nil
}

// Get returns the category with the given id.
func (c *Catalog) Get(id Category) (*CategoryInfo, bool) {
	i, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return &c.categories[i], true
}

// Match resolves free text such as "plant care" or "Fertilizer & Nutrition"
// to a category.
func (c *Catalog) Match(text string) (Category, bool) {
	id, ok := c.aliases[strings.ToLower(strings.TrimSpace(text))]
	return id, ok
}

// Menu lists the categories in catalog order.
func (c *Catalog) Menu() []MenuOption {
	out := make([]MenuOption, len(c.categories))
	for i, info := range c.categories {
		out[i] = MenuOption{ID: info.ID, Title: info.Title, Description: info.Description}
	}
	return out
}

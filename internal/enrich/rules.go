package enrich

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxTagsLimit — верхняя граница размера набора тегов.
const MaxTagsLimit = 5

var ErrInvalidRules = errors.New("invalid enrichment rules")

// CategoryRule — строка упорядоченной таблицы категорий.
// Меньший Priority проверяется раньше; первое совпадение побеждает.
type CategoryRule struct {
	Priority int      `yaml:"priority"`
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// Place сопоставляет ключевое слово в тексте с меткой локации.
type Place struct {
	Keyword string `yaml:"keyword"`
	Label   string `yaml:"label"`
}

// TagRule даёт не более одного тега при совпадении любого ключевого слова.
type TagRule struct {
	Tag      string   `yaml:"tag"`
	Keywords []string `yaml:"keywords"`
}

// Rules — таблицы классификаторов. Порядок строк значим: районы
// проверяются раньше городов, а теги добавляются в порядке правил.
type Rules struct {
	Categories      []CategoryRule `yaml:"categories"`
	DefaultCategory string         `yaml:"default_category"`
	Neighborhoods   []Place        `yaml:"neighborhoods"`
	Cities          []Place        `yaml:"cities"`
	MetroDefault    string         `yaml:"metro_default"`
	Tags            []TagRule      `yaml:"tags"`
	MaxTags         int            `yaml:"max_tags"`
}

// DefaultRules возвращает встроенные таблицы для агломерации Оклахома-Сити.
func DefaultRules() Rules {
	return Rules{
		Categories: []CategoryRule{
			{Priority: 10, Category: "development", Keywords: []string{
				"construction", "groundbreaking", "breaks ground", "renovation", "redevelopment",
				"development", "mixed-use", "rezoning", "demolition", "under way on", "new building",
			}},
			{Priority: 20, Category: "event", Keywords: []string{
				"festival", "event", "workshop", "program", "conference", "concert",
				"celebration", "parade", "fundraiser", "networking",
			}},
			{Priority: 30, Category: "opening", Keywords: []string{
				"grand opening", "now open", "opens", "opening", "ribbon cutting", "debuts", "soft launch",
			}},
			{Priority: 40, Category: "expansion", Keywords: []string{
				"expansion", "expands", "expanding", "second location", "new location", "relocat", "adds jobs",
			}},
			{Priority: 50, Category: "data", Keywords: []string{
				"report", "survey", "study", "statistics", "ranking", "index", "census", "data shows",
			}},
		},
		DefaultCategory: "business",
		Neighborhoods: []Place{
			{Keyword: "bricktown", Label: "Bricktown, OKC"},
			{Keyword: "midtown", Label: "Midtown, OKC"},
			{Keyword: "automobile alley", Label: "Automobile Alley, OKC"},
			{Keyword: "deep deuce", Label: "Deep Deuce, OKC"},
			{Keyword: "film row", Label: "Film Row, OKC"},
			{Keyword: "plaza district", Label: "Plaza District, OKC"},
			{Keyword: "paseo", Label: "Paseo Arts District, OKC"},
			{Keyword: "uptown 23rd", Label: "Uptown 23rd, OKC"},
			{Keyword: "asian district", Label: "Asian District, OKC"},
			{Keyword: "stockyards city", Label: "Stockyards City, OKC"},
			{Keyword: "capitol hill", Label: "Capitol Hill, OKC"},
			{Keyword: "wheeler district", Label: "Wheeler District, OKC"},
			{Keyword: "boathouse district", Label: "Boathouse District, OKC"},
			{Keyword: "scissortail park", Label: "Scissortail Park, OKC"},
			{Keyword: "classen curve", Label: "Classen Curve, OKC"},
			{Keyword: "nichols hills", Label: "Nichols Hills"},
			{Keyword: "downtown okc", Label: "Downtown, OKC"},
			{Keyword: "downtown oklahoma city", Label: "Downtown, OKC"},
		},
		Cities: []Place{
			{Keyword: "midwest city", Label: "Midwest City"},
			{Keyword: "del city", Label: "Del City"},
			{Keyword: "warr acres", Label: "Warr Acres"},
			{Keyword: "oklahoma city", Label: "Oklahoma City"},
			{Keyword: "okc", Label: "Oklahoma City"},
			{Keyword: "edmond", Label: "Edmond"},
			{Keyword: "norman", Label: "Norman"},
			{Keyword: "moore", Label: "Moore"},
			{Keyword: "yukon", Label: "Yukon"},
			{Keyword: "mustang", Label: "Mustang"},
			{Keyword: "bethany", Label: "Bethany"},
			{Keyword: "choctaw", Label: "Choctaw"},
			{Keyword: "piedmont", Label: "Piedmont"},
			{Keyword: "newcastle", Label: "Newcastle"},
			{Keyword: "guthrie", Label: "Guthrie"},
			{Keyword: "shawnee", Label: "Shawnee"},
		},
		MetroDefault: "OKC Metro",
		Tags: []TagRule{
			{Tag: "downtown", Keywords: []string{
				"downtown", "bricktown", "midtown", "automobile alley", "deep deuce", "film row", "scissortail",
			}},
			{Tag: "food-beverage", Keywords: []string{
				"restaurant", "coffee", "cafe", "bakery", "brewery", "taproom", "eatery", "diner",
				"kitchen", "pizza", "taco", "bbq", "food hall", "cocktail",
			}},
			{Tag: "retail", Keywords: []string{"retail", "store", "shop", "boutique", "shopping"}},
			{Tag: "real-estate", Keywords: []string{
				"apartment", "housing", "real estate", "office space", "lease", "mixed-use", "condo",
			}},
			{Tag: "tech", Keywords: []string{"tech", "startup", "software", "innovation", "aerospace"}},
			{Tag: "health", Keywords: []string{"health", "hospital", "clinic", "medical"}},
			{Tag: "hospitality", Keywords: []string{"hotel", "hospitality", "tourism", "visitors"}},
			{Tag: "energy", Keywords: []string{"energy", "oil and gas", "pipeline", "renewable", "wind farm"}},
			{Tag: "arts-culture", Keywords: []string{"museum", "gallery", "theater", "theatre", "mural"}},
		},
		MaxTags: MaxTagsLimit,
	}
}

// LoadRules читает таблицы из YAML-файла, нормализует и проверяет их.
func LoadRules(path string) (Rules, error) {
	const op = "enrich.rules.LoadRules"

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("%s: %w", op, err)
	}

	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("%s: decode: %w", op, err)
	}

	if r.MaxTags == 0 {
		r.MaxTags = MaxTagsLimit
	}

	r = r.normalize()
	if err := r.Validate(); err != nil {
		return Rules{}, fmt.Errorf("%s: %w", op, err)
	}

	return r, nil
}

// Validate проверяет согласованность таблиц.
func (r Rules) Validate() error {
	if strings.TrimSpace(r.DefaultCategory) == "" {
		return fmt.Errorf("%w: default_category is empty", ErrInvalidRules)
	}

	if strings.TrimSpace(r.MetroDefault) == "" {
		return fmt.Errorf("%w: metro_default is empty", ErrInvalidRules)
	}

	if r.MaxTags < 1 || r.MaxTags > MaxTagsLimit {
		return fmt.Errorf("%w: max_tags must be within 1..%d", ErrInvalidRules, MaxTagsLimit)
	}

	seen := make(map[int]struct{}, len(r.Categories))
	for _, c := range r.Categories {
		if _, dup := seen[c.Priority]; dup {
			return fmt.Errorf("%w: duplicate category priority %d", ErrInvalidRules, c.Priority)
		}
		seen[c.Priority] = struct{}{}

		if c.Category == "" || len(c.Keywords) == 0 {
			return fmt.Errorf("%w: category rule %d needs a name and keywords", ErrInvalidRules, c.Priority)
		}
	}

	for _, p := range append(append([]Place{}, r.Neighborhoods...), r.Cities...) {
		if p.Keyword == "" || p.Label == "" {
			return fmt.Errorf("%w: place rule needs keyword and label", ErrInvalidRules)
		}
	}

	for _, t := range r.Tags {
		if t.Tag == "" || len(t.Keywords) == 0 {
			return fmt.Errorf("%w: tag rule needs a tag and keywords", ErrInvalidRules)
		}
	}

	return nil
}

// normalize приводит ключевые слова к нижнему регистру и сортирует
// категории по приоритету. Порядок районов, городов и тегов не меняется.
func (r Rules) normalize() Rules {
	out := r

	out.Categories = make([]CategoryRule, len(r.Categories))
	for i, c := range r.Categories {
		c.Keywords = lowerAll(c.Keywords)
		out.Categories[i] = c
	}
	sort.SliceStable(out.Categories, func(i, j int) bool {
		return out.Categories[i].Priority < out.Categories[j].Priority
	})

	out.Neighborhoods = lowerPlaces(r.Neighborhoods)
	out.Cities = lowerPlaces(r.Cities)

	out.Tags = make([]TagRule, len(r.Tags))
	for i, t := range r.Tags {
		t.Keywords = lowerAll(t.Keywords)
		out.Tags[i] = t
	}

	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}

	return out
}

func lowerPlaces(in []Place) []Place {
	out := make([]Place, 0, len(in))
	for _, p := range in {
		p.Keyword = strings.ToLower(strings.TrimSpace(p.Keyword))
		out = append(out, p)
	}

	return out
}

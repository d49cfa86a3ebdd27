// Package report builds the sales report for a researched lead.
package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Product tiers used by the keyword fallback.
const (
	TierLight    = "light"
	TierMid      = "mid"
	TierHeavy    = "heavy"
	TierHumanoid = "humanoid"
)

// Robot is one product in the closed catalog.
type Robot struct {
	Name          string   `yaml:"name" json:"name"`
	Tier          string   `yaml:"tier" json:"tier"`
	Price         string   `yaml:"price" json:"price"`
	Payload       string   `yaml:"payload" json:"payload"`
	Reach         string   `yaml:"reach" json:"reach"`
	Repeatability string   `yaml:"repeatability" json:"repeatability"`
	BestFor       []string `yaml:"best_for" json:"best_for"`
}

// Catalog is the set of robots a report may recommend.
type Catalog struct {
	Robots        []Robot `yaml:"robots"`
	SellingPoints string  `yaml:"selling_points"`
}

// DefaultCatalog returns the built-in product catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Robots: []Robot{
			{Name: "Spark", Tier: TierLight, Price: "$29,500", Payload: "7kg", Reach: "625mm", Repeatability: "±0.02mm",
				BestFor: []string{"assembly", "inspection", "testing", "light material handling"}},
			{Name: "Core/RO1", Tier: TierMid, Price: "$37,000", Payload: "18kg", Reach: "930mm", Repeatability: "±0.02mm",
				BestFor: []string{"welding", "machine tending", "material handling", "finishing", "deburring"}},
			{Name: "Thor", Tier: TierHeavy, Price: "$49,500", Payload: "30kg", Reach: "1300mm", Repeatability: "±0.05mm",
				BestFor: []string{"palletizing", "heavy material handling", "packaging", "case packing"}},
			{Name: "Bolt", Tier: TierHumanoid, Price: "Coming 2026", Payload: "Bimanual", Reach: "Full body", Repeatability: "Humanoid precision",
				BestFor: []string{"complex assembly", "dual-arm tasks", "human-like manipulation"}},
		},
		SellingPoints: "No-code programming (teach by hand-guiding), far cheaper than traditional industrial robots, " +
			"deploys in hours not months, collaborative safety (works alongside humans), cloud-connected with OTA updates.",
	}
}

// LoadCatalog reads a YAML catalog. An empty path returns the default.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "report: read catalog %s", path)
	}
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, eris.Wrapf(err, "report: parse catalog %s", path)
	}
	if err := c.validate(); err != nil {
		return nil, eris.Wrapf(err, "report: catalog %s", path)
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Robots) == 0 {
		return eris.New("no robots defined")
	}
	seen := map[string]bool{}
	hasMid := false
	for _, r := range c.Robots {
		if r.Name == "" {
			return eris.New("robot without a name")
		}
		key := strings.ToLower(r.Name)
		if seen[key] {
			return eris.Errorf("duplicate robot %q", r.Name)
		}
		seen[key] = true
		hasMid = hasMid || r.Tier == TierMid
	}
	if !hasMid {
		return eris.New("a mid tier robot is required as the default recommendation")
	}
	return nil
}

// Names lists the robot names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Robots))
	for i, r := range c.Robots {
		names[i] = r.Name
	}
	return names
}

// Lookup finds a robot by name, ignoring case and surrounding space.
func (c *Catalog) Lookup(name string) (Robot, bool) {
	name = strings.TrimSpace(name)
	for _, r := range c.Robots {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Robot{}, false
}

// ByTier returns the first robot of a tier, falling back to the mid tier.
func (c *Catalog) ByTier(tier string) Robot {
	var mid Robot
	for _, r := range c.Robots {
		if r.Tier == tier {
			return r
		}
		if mid.Name == "" && r.Tier == TierMid {
			mid = r
		}
	}
	return mid
}

var tierKeywords = []struct {
	tier     string
	keywords []string
}{
	{TierHeavy, []string{"palletiz", "heavy", "packaging"}},
	{TierMid, []string{"weld", "machine tending", "material handling", "deburr", "finish"}},
	{TierLight, []string{"assembl", "inspect", "test", "light"}},
}

// Recommend picks a robot from the use case by keyword. Unmatched use
// cases get the mid tier.
func (c *Catalog) Recommend(useCase string) Robot {
	uc := strings.ToLower(useCase)
	for _, tk := range tierKeywords {
		for _, kw := range tk.keywords {
			if strings.Contains(uc, kw) {
				return c.ByTier(tk.tier)
			}
		}
	}
	return c.ByTier(TierMid)
}

// Prompt renders the catalog for the system prompt.
func (c *Catalog) Prompt() string {
	var b strings.Builder
	for _, r := range c.Robots {
		fmt.Fprintf(&b, "- %s (%s): %s payload, %s reach, %s repeatability. Best for: %s.\n",
			r.Name, r.Price, r.Payload, r.Reach, r.Repeatability, strings.Join(r.BestFor, ", "))
	}
	if c.SellingPoints != "" {
		b.WriteString("\nKEY SELLING POINTS: " + c.SellingPoints + "\n")
	}
	return b.String()
}

package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/acheong08/pyextras/pkg/models"
)

// DefaultAllGroup is the extra expected to aggregate every other extra
const DefaultAllGroup = "all"

// rawPyproject mirrors the parts of pyproject.toml we read
type rawPyproject struct {
	Project     *rawProject     `toml:"project"`
	BuildSystem *rawBuildSystem `toml:"build-system"`
	Tool        struct {
		Pyextras rawTool `toml:"pyextras"`
	} `toml:"tool"`
}

type rawProject struct {
	Name                 string              `toml:"name"`
	Version              string              `toml:"version"`
	Description          string              `toml:"description"`
	Readme               interface{}         `toml:"readme"`
	License              interface{}         `toml:"license"`
	LicenseFiles         []string            `toml:"license-files"`
	Authors              []rawPerson         `toml:"authors"`
	Maintainers          []rawPerson         `toml:"maintainers"`
	Classifiers          []string            `toml:"classifiers"`
	Keywords             []string            `toml:"keywords"`
	RequiresPython       string              `toml:"requires-python"`
	Dependencies         []string            `toml:"dependencies"`
	Dynamic              []string            `toml:"dynamic"`
	URLs                 map[string]string   `toml:"urls"`
	OptionalDependencies map[string][]string `toml:"optional-dependencies"`
}

type rawPerson struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

type rawBuildSystem struct {
	Requires    []string `toml:"requires"`
	Backend     string   `toml:"build-backend"`
	BackendPath []string `toml:"backend-path"`
}

type rawTool struct {
	AllGroup   string   `toml:"all-group"`
	AllExclude []string `toml:"all-exclude"`
	Ignore     []string `toml:"ignore"`
}

// extraKeyRegex matches a key line inside [project.optional-dependencies]
var extraKeyRegex = regexp.MustCompile(`^\s*([A-Za-z0-9_.-]+|"[^"]+"|'[^']+')\s*=`)

// ParsePyproject reads and parses a pyproject.toml file
func ParsePyproject(path string) (*models.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pyproject.toml: %w", err)
	}
	return ParsePyprojectBytes(data, path)
}

// ParsePyprojectBytes parses pyproject.toml content. path is informational.
func ParsePyprojectBytes(data []byte, path string) (*models.Manifest, error) {
	var raw rawPyproject
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse pyproject.toml: %w", err)
	}

	if raw.Project == nil {
		return nil, fmt.Errorf("pyproject.toml has no [project] table")
	}

	readme, err := decodeReadme(raw.Project.Readme)
	if err != nil {
		return nil, fmt.Errorf("failed to parse project.readme: %w", err)
	}

	license, err := decodeLicense(raw.Project.License)
	if err != nil {
		return nil, fmt.Errorf("failed to parse project.license: %w", err)
	}

	manifest := &models.Manifest{
		Path: path,
		Project: models.Project{
			Name:                 raw.Project.Name,
			Version:              raw.Project.Version,
			Description:          raw.Project.Description,
			Readme:               readme,
			License:              license,
			LicenseFiles:         raw.Project.LicenseFiles,
			Authors:              toPeople(raw.Project.Authors),
			Maintainers:          toPeople(raw.Project.Maintainers),
			Classifiers:          raw.Project.Classifiers,
			Keywords:             raw.Project.Keywords,
			RequiresPython:       raw.Project.RequiresPython,
			Dependencies:         raw.Project.Dependencies,
			Dynamic:              raw.Project.Dynamic,
			URLs:                 raw.Project.URLs,
			OptionalDependencies: raw.Project.OptionalDependencies,
		},
		Tool: models.ToolConfig{
			AllGroup:   raw.Tool.Pyextras.AllGroup,
			AllExclude: raw.Tool.Pyextras.AllExclude,
			Ignore:     raw.Tool.Pyextras.Ignore,
		},
	}

	if manifest.Tool.AllGroup == "" {
		manifest.Tool.AllGroup = DefaultAllGroup
	}

	if raw.BuildSystem != nil {
		manifest.HasBuildSystem = true
		manifest.BuildSystem = models.BuildSystem{
			Requires:    raw.BuildSystem.Requires,
			Backend:     raw.BuildSystem.Backend,
			BackendPath: raw.BuildSystem.BackendPath,
		}
	}

	manifest.Project.ExtraOrder = extraOrder(data, raw.Project.OptionalDependencies)

	return manifest, nil
}

// ValidatePyproject checks if a pyproject.toml file exists and names its project
func ValidatePyproject(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("pyproject.toml not found at %s", path)
	}

	manifest, err := ParsePyproject(path)
	if err != nil {
		return err
	}

	if manifest.Project.Name == "" {
		return fmt.Errorf("pyproject.toml missing 'project.name' field")
	}

	return nil
}

// FindPyproject searches for pyproject.toml in the given directory
func FindPyproject(dir string) (string, error) {
	path := filepath.Join(dir, "pyproject.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("pyproject.toml not found in %s", dir)
	}
	return path, nil
}

func toPeople(raw []rawPerson) []models.Person {
	if len(raw) == 0 {
		return nil
	}
	people := make([]models.Person, 0, len(raw))
	for _, p := range raw {
		people = append(people, models.Person{Name: p.Name, Email: p.Email})
	}
	return people
}

// decodeReadme accepts `readme = "README.md"` or an inline table
func decodeReadme(v interface{}) (models.Readme, error) {
	switch r := v.(type) {
	case nil:
		return models.Readme{}, nil
	case string:
		return models.Readme{File: r}, nil
	case map[string]interface{}:
		var readme models.Readme
		readme.File, _ = r["file"].(string)
		readme.Text, _ = r["text"].(string)
		readme.ContentType, _ = r["content-type"].(string)
		if readme.File != "" && readme.Text != "" {
			return models.Readme{}, fmt.Errorf("readme sets both 'file' and 'text'")
		}
		return readme, nil
	default:
		return models.Readme{}, fmt.Errorf("unsupported readme value of type %T", v)
	}
}

// decodeLicense accepts an SPDX expression string or a {text|file} table
func decodeLicense(v interface{}) (models.License, error) {
	switch l := v.(type) {
	case nil:
		return models.License{}, nil
	case string:
		return models.License{Expression: strings.TrimSpace(l)}, nil
	case map[string]interface{}:
		var license models.License
		license.Text, _ = l["text"].(string)
		license.File, _ = l["file"].(string)
		if license.Text != "" && license.File != "" {
			return models.License{}, fmt.Errorf("license sets both 'file' and 'text'")
		}
		return license, nil
	default:
		return models.License{}, fmt.Errorf("unsupported license value of type %T", v)
	}
}

// extraOrder recovers the declaration order of the optional-dependency
// groups. Keys the line scan cannot see (inline tables) follow sorted.
func extraOrder(data []byte, groups map[string][]string) []string {
	if len(groups) == 0 {
		return nil
	}

	var order []string
	seen := make(map[string]bool, len(groups))
	inTable := false

	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			header := trimmed
			if idx := strings.Index(header, "#"); idx != -1 {
				header = strings.TrimSpace(header[:idx])
			}
			inTable = header == "[project.optional-dependencies]"
			continue
		}
		if !inTable {
			continue
		}

		m := extraKeyRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.Trim(m[1], `"'`)
		if _, ok := groups[key]; ok && !seen[key] {
			seen[key] = true
			order = append(order, key)
		}
	}

	var rest []string
	for key := range groups {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)

	return append(order, rest...)
}

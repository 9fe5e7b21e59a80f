package models

import "strings"

// Person is an entry of project.authors or project.maintainers
type Person struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Empty reports whether neither name nor email is set. Whitespace counts as unset.
func (p Person) Empty() bool {
	return strings.TrimSpace(p.Name) == "" && strings.TrimSpace(p.Email) == ""
}

// License holds either an SPDX expression or a legacy {text|file} table
type License struct {
	Expression string `json:"expression,omitempty"`
	Text       string `json:"text,omitempty"`
	File       string `json:"file,omitempty"`
}

// Empty reports whether no license information was declared
func (l License) Empty() bool {
	return strings.TrimSpace(l.Expression) == "" && strings.TrimSpace(l.Text) == "" && strings.TrimSpace(l.File) == ""
}

// Readme holds either a file path or an inline {file|text, content-type} table
type Readme struct {
	File        string `json:"file,omitempty"`
	Text        string `json:"text,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Project is the [project] table of a pyproject.toml
type Project struct {
	Name                 string              `json:"name"`
	Version              string              `json:"version,omitempty"`
	Description          string              `json:"description,omitempty"`
	Readme               Readme              `json:"readme"`
	License              License             `json:"license"`
	LicenseFiles         []string            `json:"license_files,omitempty"`
	Authors              []Person            `json:"authors,omitempty"`
	Maintainers          []Person            `json:"maintainers,omitempty"`
	Classifiers          []string            `json:"classifiers,omitempty"`
	Keywords             []string            `json:"keywords,omitempty"`
	RequiresPython       string              `json:"requires_python,omitempty"`
	Dependencies         []string            `json:"dependencies,omitempty"`
	Dynamic              []string            `json:"dynamic,omitempty"`
	URLs                 map[string]string   `json:"urls,omitempty"`
	OptionalDependencies map[string][]string `json:"optional_dependencies,omitempty"`

	// ExtraOrder lists the optional-dependency groups in declaration order
	ExtraOrder []string `json:"extra_order,omitempty"`
}

// IsDynamic reports whether field is listed in project.dynamic
func (p *Project) IsDynamic(field string) bool {
	for _, f := range p.Dynamic {
		if f == field {
			return true
		}
	}
	return false
}

// BuildSystem is the [build-system] table
type BuildSystem struct {
	Requires    []string `json:"requires,omitempty"`
	Backend     string   `json:"build_backend,omitempty"`
	BackendPath []string `json:"backend_path,omitempty"`
}

// ToolConfig is the [tool.pyextras] table
type ToolConfig struct {
	AllGroup   string   `json:"all_group,omitempty"`
	AllExclude []string `json:"all_exclude,omitempty"`
	Ignore     []string `json:"ignore,omitempty"`
}

// Manifest is a decoded pyproject.toml
type Manifest struct {
	Path        string      `json:"path,omitempty"`
	Project     Project     `json:"project"`
	BuildSystem BuildSystem `json:"build_system"`
	Tool        ToolConfig  `json:"tool"`

	// HasBuildSystem is false when the document has no [build-system] table
	HasBuildSystem bool `json:"has_build_system"`
}

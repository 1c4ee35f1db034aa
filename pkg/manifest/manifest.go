// Package manifest reads the YAML list of load jobs.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/mapping"
)

var validate = validator.New()

// Manifest is an ordered list of jobs run as one load.
type Manifest struct {
	Name string `yaml:"name" validate:"required"`
	// Taxa adds organism names to the built-in name to taxon table.
	Taxa map[string]string `yaml:"taxa" validate:"dive,keys,required,endkeys,numeric"`
	Jobs []Job             `yaml:"jobs" validate:"required,min=1,dive"`
}

// Job runs one source definition, named from the catalog or given inline,
// over exactly one input.
type Job struct {
	Name       string              `yaml:"name"`
	Source     string              `yaml:"source" validate:"required_without=Definition,excluded_with=Definition"`
	Definition *mapping.Definition `yaml:"definition"`
	Path       string              `yaml:"path" validate:"required_without=Query,excluded_with=Query"`
	Query      string              `yaml:"query"`
	Args       []string            `yaml:"args" validate:"excluded_without=Query"`
}

func (j Job) IsQuery() bool {
	return j.Query != ""
}

// QueryArgs returns Args as driver arguments.
func (j Job) QueryArgs() []any {
	args := make([]any, len(j.Args))
	for i, a := range j.Args {
		args[i] = a
	}
	return args
}

// Load reads and validates the manifest at path. Relative local input paths
// are resolved against the manifest's directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range m.Jobs {
		p := m.Jobs[i].Path
		if p != "" && !strings.HasPrefix(p, "s3://") && !filepath.IsAbs(p) {
			m.Jobs[i].Path = filepath.Join(dir, p)
		}
	}
	return m, nil
}

func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks struct tags, inline definitions and job name uniqueness.
// Jobs without a name take the source or definition name.
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}

	seen := make(map[string]bool, len(m.Jobs))
	for i := range m.Jobs {
		job := &m.Jobs[i]
		if job.Definition != nil {
			if err := job.Definition.Validate(); err != nil {
				return fmt.Errorf("job %d: %w", i, err)
			}
		}
		if job.Name == "" {
			job.Name = job.Source
			if job.Definition != nil {
				job.Name = job.Definition.Name
			}
		}
		if seen[job.Name] {
			return fmt.Errorf("invalid manifest: duplicate job name %s", job.Name)
		}
		seen[job.Name] = true
	}
	return nil
}

// Only returns the jobs whose names are listed, in manifest order. An empty
// list selects every job. Unknown names are an error.
func (m *Manifest) Only(names []string) ([]Job, error) {
	if len(names) == 0 {
		return m.Jobs, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	jobs := make([]Job, 0, len(names))
	for _, job := range m.Jobs {
		if wanted[job.Name] {
			jobs = append(jobs, job)
			delete(wanted, job.Name)
		}
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for n := range wanted {
			missing = append(missing, n)
		}
		return nil, fmt.Errorf("unknown jobs: %s", strings.Join(missing, ", "))
	}
	return jobs, nil
}

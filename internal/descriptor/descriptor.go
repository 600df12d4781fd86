// Package descriptor reads the plugin.yml file that identifies the plugin to
// its host: name, version, authors and the commands it exposes.
package descriptor

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the descriptor file name expected next to the plugin binary.
const FileName = "plugin.yml"

var namePattern = regexp.MustCompile(`^[A-Za-z0-9 _.-]+$`)

var ErrMissingName = errors.New("descriptor: name is required")
var ErrMissingVersion = errors.New("descriptor: version is required")

type Descriptor struct {
	Name        string             `yaml:"name"`
	Version     string             `yaml:"version"`
	Main        string             `yaml:"main,omitempty"`
	Description string             `yaml:"description,omitempty"`
	Author      string             `yaml:"author,omitempty"`
	Authors     []string           `yaml:"authors,omitempty"`
	Website     string             `yaml:"website,omitempty"`
	Commands    map[string]Command `yaml:"commands,omitempty"`
}

type Command struct {
	Description string   `yaml:"description,omitempty"`
	Usage       string   `yaml:"usage,omitempty"`
	Aliases     []string `yaml:"aliases,omitempty"`
	Permission  string   `yaml:"permission,omitempty"`
}

// FullName is "<name> v<version>".
func (d *Descriptor) FullName() string {
	return d.Name + " v" + d.Version
}

// AllAuthors merges the single author field into the authors list.
func (d *Descriptor) AllAuthors() []string {
	var out []string
	if d.Author != "" {
		out = append(out, d.Author)
	}
	for _, a := range d.Authors {
		if a != d.Author {
			out = append(out, a)
		}
	}
	return out
}

// Permission builds a permission node under the plugin name, e.g.
// Permission("update", "notify") == "plugintemplate.update.notify".
func (d *Descriptor) Permission(parts ...string) string {
	return strings.ToLower(strings.Join(append([]string{d.Name}, parts...), "."))
}

// Labels returns the command name and the aliases it may be invoked by.
func (d *Descriptor) Labels(command string) []string {
	cmd, ok := d.Commands[command]
	if !ok {
		return nil
	}
	return append([]string{command}, cmd.Aliases...)
}

func Parse(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	return Parse(data)
}

func (d *Descriptor) validate() error {
	d.Name = strings.TrimSpace(d.Name)
	d.Version = strings.TrimSpace(d.Version)
	if d.Name == "" {
		return ErrMissingName
	}
	if !namePattern.MatchString(d.Name) {
		return fmt.Errorf("descriptor: name %q contains invalid characters", d.Name)
	}
	if d.Version == "" {
		return ErrMissingVersion
	}
	return nil
}

// Marshal encodes d back to YAML.
func (d *Descriptor) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

package update

import (
	"fmt"
	"path"
	"strings"

	"github.com/codelanx/plugintemplate/pkg/api"
)

// VersionSource extracts the version string of a published release.
type VersionSource interface {
	Name() string
	Version(f api.File) string
}

type fromName struct{}

// FromName takes the text after the last '-' of the release display name,
// e.g. "PluginTemplate-1.4.2" yields "1.4.2".
var FromName VersionSource = fromName{}

func (fromName) Name() string { return "name" }

func (fromName) Version(f api.File) string {
	return suffixVersion(f.Name)
}

type fromFileName struct{}

// FromFileName applies the same rule to the file name without its extension,
// e.g. "PluginTemplate-1.4.2.jar" yields "1.4.2".
var FromFileName VersionSource = fromFileName{}

func (fromFileName) Name() string { return "file" }

func (fromFileName) Version(f api.File) string {
	name := f.FileName
	name = strings.TrimSuffix(name, path.Ext(name))
	return suffixVersion(name)
}

func suffixVersion(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "-"); i >= 0 {
		s = s[i+1:]
	}
	return Normalize(s)
}

// ParseVersionSource maps the update.version-source config value.
func ParseVersionSource(name string) (VersionSource, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "name":
		return FromName, nil
	case "file":
		return FromFileName, nil
	}
	return nil, fmt.Errorf("unknown version source %q", name)
}
